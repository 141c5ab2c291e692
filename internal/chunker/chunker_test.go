package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\n", "\r\n \t"} {
		if pieces := Split(input, 0, 0); len(pieces) != 0 {
			t.Errorf("Split(%q) = %d pieces, want 0", input, len(pieces))
		}
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	text := "A short paragraph that fits in one chunk."
	pieces := Split(text, 0, 0)

	if len(pieces) != 1 {
		t.Fatalf("got %d pieces, want 1", len(pieces))
	}
	p := pieces[0]
	if p.Content != text {
		t.Errorf("content = %q, want %q", p.Content, text)
	}
	if p.Index != 0 || p.StartChar != 0 || p.EndChar != len(text) {
		t.Errorf("unexpected piece metadata: %+v", p)
	}
}

func TestSplit_ExactChunkSizeSingleChunk(t *testing.T) {
	text := strings.Repeat("a", 1500)
	pieces := Split(text, 1500, 200)

	if len(pieces) != 1 {
		t.Fatalf("text of exactly chunkSize: got %d pieces, want 1", len(pieces))
	}
}

func TestSplit_LongTextOverlappingCoverage(t *testing.T) {
	// 3000 chars of unbroken text must produce at least 2 chunks whose
	// ranges cover the whole input.
	text := strings.Repeat("b", 3000)
	pieces := Split(text, 1500, 200)

	if len(pieces) < 2 {
		t.Fatalf("got %d pieces, want at least 2", len(pieces))
	}
	if pieces[0].StartChar != 0 {
		t.Errorf("first piece starts at %d, want 0", pieces[0].StartChar)
	}
	if last := pieces[len(pieces)-1]; last.EndChar != 3000 {
		t.Errorf("last piece ends at %d, want 3000", last.EndChar)
	}
	for i := 1; i < len(pieces); i++ {
		if pieces[i].StartChar > pieces[i-1].EndChar {
			t.Errorf("gap between piece %d (end %d) and piece %d (start %d)",
				i-1, pieces[i-1].EndChar, i, pieces[i].StartChar)
		}
	}
}

func TestSplit_MonotonicStartsAndIndices(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("This is sentence number some. It says nothing interesting at all. ")
	}
	pieces := Split(sb.String(), 500, 100)

	if len(pieces) < 2 {
		t.Fatalf("got %d pieces, want several", len(pieces))
	}
	for i := 1; i < len(pieces); i++ {
		if pieces[i].StartChar <= pieces[i-1].StartChar {
			t.Errorf("starts not strictly increasing: piece %d start %d, piece %d start %d",
				i-1, pieces[i-1].StartChar, i, pieces[i].StartChar)
		}
		if pieces[i].Index != pieces[i-1].Index+1 {
			t.Errorf("indices not contiguous: %d then %d", pieces[i-1].Index, pieces[i].Index)
		}
	}
}

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	// A paragraph break past the window midpoint should win over a raw cut.
	para1 := strings.Repeat("x", 400)
	para2 := strings.Repeat("y", 400)
	text := para1 + "\n\n" + para2

	pieces := Split(text, 500, 100)
	if len(pieces) < 2 {
		t.Fatalf("got %d pieces, want at least 2", len(pieces))
	}
	if got := pieces[0].Content; got != para1 {
		t.Errorf("first chunk should end at the paragraph break, got %d chars", len(got))
	}
}

func TestSplit_HardCutWhenNoBoundary(t *testing.T) {
	// No break point anywhere: every window decays to a hard cut of
	// exactly chunkSize characters.
	text := strings.Repeat("z", 2000)
	pieces := Split(text, 500, 100)

	if pieces[0].EndChar-pieces[0].StartChar != 500 {
		t.Errorf("first piece spans %d chars, want 500", pieces[0].EndChar-pieces[0].StartChar)
	}
	for i := 1; i < len(pieces); i++ {
		if want := pieces[i-1].EndChar - 100; pieces[i].StartChar != want {
			t.Errorf("piece %d starts at %d, want %d (end-overlap)", i, pieces[i].StartChar, want)
		}
	}
}

func TestSplit_MultiByteHardCutsStayValidUTF8(t *testing.T) {
	// 700 three-byte runes with no break candidates: every cut is a hard cut,
	// and 500 is not a multiple of 3, so naive byte cuts would split runes.
	text := strings.Repeat("あ", 700)
	pieces := Split(text, 500, 100)

	if len(pieces) < 2 {
		t.Fatalf("got %d pieces, want multiple hard cuts", len(pieces))
	}
	for i, p := range pieces {
		if !utf8.ValidString(p.Content) {
			t.Errorf("piece %d content is not valid UTF-8 (bytes %d..%d)", i, p.StartChar, p.EndChar)
		}
		if i > 0 && p.StartChar <= pieces[i-1].StartChar {
			t.Errorf("piece %d start %d does not advance past %d", i, p.StartChar, pieces[i-1].StartChar)
		}
	}
	last := pieces[len(pieces)-1]
	if last.EndChar != len(normalize(text)) {
		t.Errorf("last piece ends at %d, want %d", last.EndChar, len(normalize(text)))
	}
}

func TestSplit_ContentPreserved(t *testing.T) {
	// Every non-whitespace character of the normalized input must appear in
	// the union of chunk ranges.
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("Paragraph content with words in it, repeated to exceed the window size.\n\n")
	}
	text := normalize(sb.String())
	pieces := Split(text, 400, 80)

	covered := make([]bool, len(text))
	for _, p := range pieces {
		for i := p.StartChar; i < p.EndChar && i < len(text); i++ {
			covered[i] = true
		}
	}
	for i, c := range text {
		if c != ' ' && c != '\n' && !covered[i] {
			t.Fatalf("character at offset %d (%q) not covered by any chunk", i, c)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\r\nb", "a\nb"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"  padded  ", "padded"},
		{"\r\n\r\nx\r\n", "x"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
