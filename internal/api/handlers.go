// Package api exposes the HTTP surface: document upload and management plus
// the streaming chat endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/docchat/internal/chat"
	"github.com/kalambet/docchat/internal/composer"
	"github.com/kalambet/docchat/internal/extract"
	"github.com/kalambet/docchat/internal/ingest"
	"github.com/kalambet/docchat/internal/llm"
	"github.com/kalambet/docchat/internal/store"
)

const maxUploadSize = 10 << 20 // 10MB

// Deps holds the collaborators the HTTP layer is wired with.
type Deps struct {
	Store        *store.Store
	Pipeline     *ingest.Pipeline
	Orchestrator *chat.Orchestrator
	// Generator resolves the per-request backend choice ("gemini", "ollama"
	// or empty for the default) to a client.
	Generator func(provider string) llm.Generator
}

// NewHandler builds the chi router for all API routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/documents/upload", handleUpload(deps))
	r.Get("/api/documents", handleListDocuments(deps))
	r.Delete("/api/documents/{id}", handleDeleteDocument(deps))
	r.Post("/api/chat", handleChat(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no file provided")
			return
		}
		defer file.Close()

		if !extract.Supported(header.Filename) {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"unsupported file type, supported: PDF, TXT, MD, DOCX")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading file: %v", err)
			return
		}

		docType := header.Header.Get("Content-Type")
		if docType == "" {
			docType = "unknown"
		}

		doc := store.Document{
			ID:         uuid.New().String(),
			Name:       header.Filename,
			Type:       docType,
			Size:       header.Size,
			UploadedAt: time.Now().UTC(),
			Status:     store.StatusProcessing,
		}
		deps.Store.Put(doc)

		// Ingestion is decoupled from this request: respond immediately and
		// let callers poll the document status.
		go deps.Pipeline.Process(context.WithoutCancel(r.Context()), doc.ID, doc.Name, data)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":     doc.ID,
			"name":   doc.Name,
			"status": doc.Status,
		})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"documents": deps.Store.ListAll(),
		})
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.Delete(id)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Messages []llm.Message `json:"messages"`
	Provider string        `json:"provider,omitempty"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		gen := deps.Generator(req.Provider)
		events, err := deps.Orchestrator.Stream(r.Context(), req.Messages, gen)
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrNoMessages), errors.Is(err, chat.ErrLastNotUser):
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			}
			return
		}

		streamEvents(w, events)
	}
}

// sseEvent is the wire shape of one chat stream event. Sources carries no
// omitempty: the sources event must serialize an empty citation list as [].
type sseEvent struct {
	Type    string            `json:"type"`
	Sources []composer.Source `json:"sources"`
	Content string            `json:"content,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// streamEvents writes the event sequence as server-sent events, flushing
// after each one. The channel closes after the terminal event, or without
// one when the client disconnects.
func streamEvents(w http.ResponseWriter, events <-chan chat.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for ev := range events {
		out := sseEvent{Type: ev.Type, Sources: ev.Sources, Content: ev.Content}
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
		if ev.Type == chat.EventSources && out.Sources == nil {
			out.Sources = []composer.Source{}
		}

		data, err := json.Marshal(out)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
