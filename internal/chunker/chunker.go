// Package chunker splits normalized document text into overlapping pieces at
// semantic boundaries, preferring paragraph breaks, then sentence ends, then
// newlines, then spaces.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Defaults, in characters. 1500 characters is roughly 375 tokens.
const (
	DefaultChunkSize = 1500
	DefaultOverlap   = 200
)

// Piece is one chunk of text produced by Split. StartChar/EndChar are the
// pre-trim character range within the normalized text; ranges of consecutive
// pieces overlap by design but start positions are strictly increasing.
type Piece struct {
	Content   string
	Index     int
	StartChar int
	EndChar   int
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// normalize collapses CRLF to LF, squeezes runs of 3+ newlines down to 2,
// and trims surrounding whitespace.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split chunks text into overlapping pieces of at most chunkSize characters.
// Empty or whitespace-only input yields no pieces. Values <= 0 select the
// defaults; overlap is clamped below chunkSize to keep the loop terminating.
func Split(text string, chunkSize, overlap int) []Piece {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	cleaned := normalize(text)
	if len(cleaned) == 0 {
		return nil
	}

	if len(cleaned) <= chunkSize {
		return []Piece{{
			Content:   cleaned,
			Index:     0,
			StartChar: 0,
			EndChar:   len(cleaned),
		}}
	}

	var pieces []Piece
	start := 0
	index := 0

	for start < len(cleaned) {
		end := start + chunkSize
		if end >= len(cleaned) {
			end = len(cleaned)
		} else {
			if bp := breakPoint(cleaned, start, end); bp > start {
				end = bp
			}
			// A hard cut can land inside a multi-byte rune; back up to the
			// rune start so chunk content stays valid UTF-8.
			if r := runeStart(cleaned, end); r > start {
				end = r
			}
		}

		content := strings.TrimSpace(cleaned[start:end])
		if len(content) > 0 {
			pieces = append(pieces, Piece{
				Content:   content,
				Index:     index,
				StartChar: start,
				EndChar:   end,
			})
			index++
		}

		next := end - overlap
		if end < len(cleaned) {
			if r := runeStart(cleaned, next); r > start {
				next = r
			}
		}
		start = next

		// Fewer than overlap characters left means the remainder is already
		// covered by the previous piece.
		if start >= len(cleaned)-overlap {
			break
		}
	}

	return pieces
}

// breakPoint searches backward from end for the best boundary to cut at.
// A candidate is accepted only past the midpoint of the window; otherwise the
// raw window end is used and a mid-token cut is allowed. Long unbroken spans
// therefore decay to hard cuts.
// runeStart rounds pos back to the nearest UTF-8 rune boundary.
func runeStart(s string, pos int) int {
	for pos > 0 && pos < len(s) && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}

func breakPoint(text string, start, end int) int {
	mid := start + (end-start)/2

	if p := strings.LastIndex(text[:end], "\n\n"); p > mid {
		return p + 2
	}
	if p := strings.LastIndex(text[:end], ". "); p > mid {
		return p + 2
	}
	if p := strings.LastIndex(text[:end], "\n"); p > mid {
		return p + 1
	}
	if p := strings.LastIndex(text[:end], " "); p > mid {
		return p + 1
	}
	return end
}
