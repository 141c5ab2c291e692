package llm

import "context"

// Stream is a lazy, ordered sequence of text fragments from a generation
// backend. Recv blocks for the next non-empty fragment; it returns io.EOF
// when the backend signals normal completion and a non-EOF error (wrapping
// ErrGeneration, or the context error on cancellation) otherwise. A Stream
// is finite and not restartable. Close releases the underlying connection
// and is safe to call at any point, including mid-stream.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Embedder produces a fixed-length vector for a text string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator turns a system prompt plus conversation into a fragment stream.
// The conversation's final message must have RoleUser; callers validate this
// before invoking StreamChat.
type Generator interface {
	StreamChat(ctx context.Context, systemPrompt string, messages []Message) (Stream, error)
	Name() string
}
