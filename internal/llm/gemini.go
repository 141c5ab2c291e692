package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini communicates with the Google Generative Language API. It serves
// both as an Embedder (models/{m}:embedContent) and a Generator
// (models/{m}:streamGenerateContent with SSE framing).
type Gemini struct {
	apiKey     string
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// NewGemini creates a client with the given API key and model names.
func NewGemini(apiKey, chatModel, embedModel string) *Gemini {
	return &Gemini{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 0},
	}
}

// NewGeminiWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewGeminiWithBaseURL(apiKey, chatModel, embedModel, baseURL string) *Gemini {
	c := NewGemini(apiKey, chatModel, embedModel)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Name identifies the backend in errors and logs.
func (c *Gemini) Name() string { return "gemini" }

// geminiPart is one text part of a content block.
type geminiPart struct {
	Text string `json:"text"`
}

// geminiContent is a role-tagged block of parts. Gemini uses "model" where
// the rest of this codebase says "assistant".
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// embedContentRequest is the JSON body for models/{m}:embedContent.
type embedContentRequest struct {
	Content geminiContent `json:"content"`
}

// embedContentResponse is the JSON returned by models/{m}:embedContent.
type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for the given text.
func (c *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	body, err := json.Marshal(embedContentRequest{
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embedModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating embed request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w: %v", ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: %w: unexpected status %d", ErrEmbedding, resp.StatusCode)
	}

	var result embedContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gemini: %w: decoding response: %v", ErrEmbedding, err)
	}

	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: %w: empty embedding", ErrEmbedding)
	}
	return result.Embedding.Values, nil
}

// generateRequest is the JSON body for models/{m}:streamGenerateContent.
type generateRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

// generateChunk is one SSE data payload of the streamed response.
type generateChunk struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StreamChat sends the conversation to the chat model and returns a Stream of
// response fragments. The system prompt travels on the dedicated
// systemInstruction channel; assistant turns are mapped to the "model" role.
func (c *Gemini) StreamChat(ctx context.Context, systemPrompt string, messages []Message) (Stream, error) {
	gr := generateRequest{Contents: make([]geminiContent, 0, len(messages))}
	if systemPrompt != "" {
		gr.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	for _, m := range messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		gr.Contents = append(gr.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	body, err := json.Marshal(gr)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, c.chatModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating chat request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w: %v", ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("gemini: %w: unexpected status %d: %s", ErrGeneration, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	scanner := bufio.NewScanner(resp.Body)
	// SSE data lines can exceed the 64KB scanner default on long generations.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &geminiStream{body: resp.Body, scanner: scanner, ctx: ctx}, nil
}

func (c *Gemini) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
}

// geminiStream reads SSE "data:" lines, skipping keep-alives and empty deltas.
type geminiStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	done    bool
}

func (s *geminiStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		if err := s.ctx.Err(); err != nil {
			return "", err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				if s.ctx.Err() != nil {
					return "", s.ctx.Err()
				}
				return "", fmt.Errorf("gemini: %w: reading stream: %v", ErrGeneration, err)
			}
			s.done = true
			return "", io.EOF
		}

		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("gemini: %w: decoding stream chunk: %v", ErrGeneration, err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("gemini: %w: %s", ErrGeneration, chunk.Error.Message)
		}

		var delta strings.Builder
		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				delta.WriteString(part.Text)
			}
		}
		if delta.Len() > 0 {
			return delta.String(), nil
		}
	}
}

func (s *geminiStream) Close() error {
	return s.body.Close()
}
