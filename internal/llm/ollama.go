package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama communicates with a local Ollama server over HTTP. It serves both
// as an Embedder (POST /api/embed) and a Generator (POST /api/chat with
// streaming enabled).
type Ollama struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// NewOllama creates a client for the Ollama server at baseURL.
// No client-level timeout is set; streaming responses are bounded by the
// request context instead.
func NewOllama(baseURL, chatModel, embedModel string) *Ollama {
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 0},
	}
}

// Name identifies the backend in errors and logs.
func (c *Ollama) Name() string { return "ollama" }

// IsRunning reports whether the Ollama server responds to GET /api/tags.
func (c *Ollama) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of all locally available models.
func (c *Ollama) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting model list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// embedRequest is the JSON body for POST /api/embed.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the JSON returned by POST /api/embed.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for the given text.
func (c *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.embedModel, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w: %v", ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: %w: unexpected status %d", ErrEmbedding, resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama: %w: decoding response: %v", ErrEmbedding, err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama: %w: empty embeddings array", ErrEmbedding)
	}
	return result.Embeddings[0], nil
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// chatStreamLine is one NDJSON line of the streamed chat response.
type chatStreamLine struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// StreamChat sends the conversation to the chat model and returns a Stream of
// response fragments. Ollama has no dedicated instruction channel, so the
// system prompt is injected as a synthetic leading system message.
func (c *Ollama) StreamChat(ctx context.Context, systemPrompt string, messages []Message) (Stream, error) {
	msgs := make([]Message, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, messages...)

	body, err := json.Marshal(chatRequest{Model: c.chatModel, Messages: msgs, Stream: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w: %v", ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama: %w: unexpected status %d: %s", ErrGeneration, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return &ollamaStream{body: resp.Body, dec: json.NewDecoder(resp.Body), ctx: ctx}, nil
}

// ollamaStream reads NDJSON chat lines, skipping empty deltas.
type ollamaStream struct {
	body io.ReadCloser
	dec  *json.Decoder
	ctx  context.Context
	done bool
}

func (s *ollamaStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		if err := s.ctx.Err(); err != nil {
			return "", err
		}

		var line chatStreamLine
		if err := s.dec.Decode(&line); err != nil {
			if err == io.EOF {
				s.done = true
				return "", io.EOF
			}
			// A context cancel closes the body mid-read; report it as a
			// cancellation, not a backend failure.
			if s.ctx.Err() != nil {
				return "", s.ctx.Err()
			}
			return "", fmt.Errorf("ollama: %w: reading stream: %v", ErrGeneration, err)
		}
		if line.Error != "" {
			return "", fmt.Errorf("ollama: %w: %s", ErrGeneration, line.Error)
		}
		if line.Done {
			s.done = true
			return "", io.EOF
		}
		if line.Message.Content != "" {
			return line.Message.Content, nil
		}
	}
}

func (s *ollamaStream) Close() error {
	return s.body.Close()
}
