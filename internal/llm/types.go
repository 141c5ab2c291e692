// Package llm provides clients for the two generation/embedding backends:
// a hosted Gemini API and a local Ollama server. Both expose the same
// capability surface (Embedder, Generator) so callers never depend on a
// concrete backend.
package llm

import "errors"

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sentinel errors for backend failures. Clients wrap these with backend
// identity and detail so callers can classify with errors.Is.
var (
	// ErrEmbedding marks a failed embedding call.
	ErrEmbedding = errors.New("embedding failed")
	// ErrGeneration marks a failed generation call.
	ErrGeneration = errors.New("generation failed")
)
