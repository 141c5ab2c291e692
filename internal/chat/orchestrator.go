// Package chat drives a generation backend over retrieved document context,
// producing an ordered, cancellable event stream for one conversation turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kalambet/docchat/internal/composer"
	"github.com/kalambet/docchat/internal/llm"
	"github.com/kalambet/docchat/internal/retrieval"
)

// Event types emitted on the stream, in protocol order: one EventSources,
// zero or more EventText, then exactly one EventDone or EventError. No event
// follows the terminal one. Caller cancellation ends the stream without a
// terminal event; it is not an error outcome.
const (
	EventSources = "sources"
	EventText    = "text"
	EventDone    = "done"
	EventError   = "error"
)

// Event is one element of the chat stream.
type Event struct {
	Type    string
	Sources []composer.Source
	Content string
	Err     error
}

// Validation errors returned before any event is produced.
var (
	ErrNoMessages  = errors.New("no messages provided")
	ErrLastNotUser = errors.New("last message must be from user")
)

// Orchestrator retrieves grounding context and streams a grounded reply.
type Orchestrator struct {
	retriever     *retrieval.Retriever
	topK          int
	minSimilarity float64
	logger        *slog.Logger
}

// New creates an Orchestrator. topK and minSimilarity <= 0 select the
// retrieval defaults.
func New(r *retrieval.Retriever, topK int, minSimilarity float64) *Orchestrator {
	return &Orchestrator{
		retriever:     r,
		topK:          topK,
		minSimilarity: minSimilarity,
		logger:        slog.Default(),
	}
}

// Stream validates the conversation, retrieves context for the final user
// message, and returns a channel of events driven by gen. The channel is
// closed after the terminal event, or silently when ctx is cancelled.
// Validation and retrieval failures are returned synchronously, before any
// event exists.
func (o *Orchestrator) Stream(ctx context.Context, messages []llm.Message, gen llm.Generator) (<-chan Event, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	last := messages[len(messages)-1]
	if last.Role != llm.RoleUser {
		return nil, ErrLastNotUser
	}

	results, err := o.retriever.Retrieve(ctx, last.Content, o.topK, o.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	systemPrompt := composer.BuildSystemPrompt(results)
	sources := composer.BuildSources(results)

	events := make(chan Event)
	go o.run(ctx, events, gen, systemPrompt, sources, messages)
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, events chan<- Event, gen llm.Generator, systemPrompt string, sources []composer.Source, messages []llm.Message) {
	defer close(events)

	if !o.emit(ctx, events, Event{Type: EventSources, Sources: sources}) {
		return
	}

	stream, err := gen.StreamChat(ctx, systemPrompt, messages)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Warn("generation backend failed to start", "backend", gen.Name(), "error", err)
		o.emit(ctx, events, Event{Type: EventError, Err: err})
		return
	}
	defer stream.Close()

	for {
		delta, err := stream.Recv()
		switch {
		case err == nil:
			if !o.emit(ctx, events, Event{Type: EventText, Content: delta}) {
				return
			}
		case errors.Is(err, io.EOF):
			o.emit(ctx, events, Event{Type: EventDone})
			return
		case ctx.Err() != nil || errors.Is(err, context.Canceled):
			// Caller cancelled; text already emitted stands, no terminal event.
			return
		default:
			o.logger.Warn("generation stream aborted", "backend", gen.Name(), "error", err)
			o.emit(ctx, events, Event{Type: EventError, Err: err})
			return
		}
	}
}

// emit sends an event unless the caller has gone away. Reports whether the
// send happened.
func (o *Orchestrator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
