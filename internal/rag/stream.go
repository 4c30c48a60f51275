package rag

import (
	"context"
	"strings"
	"time"
)

// SSE event types emitted during a streamed answer.
const (
	EventToken     = "token"
	EventCitations = "citations"
	EventDone      = "done"
	EventError     = "error"
)

// Event is one streaming event. The transport layer decides how events
// are framed on the wire; the state machine only guarantees their order.
type Event struct {
	Type      string
	Delta     string     // EventToken
	Citations []Citation // EventCitations
}

// EmitFunc delivers one event to the client. A returned error means the
// client channel is broken and emission must stop.
type EmitFunc func(Event) error

// Streaming state machine states. Transitions are linear
// (init → tokens → citations → done) with streamError terminal from the
// token stage; the degraded word-replay path is a first-class part of
// the token stage, not an exception handler.
type streamState int

const (
	streamInit streamState = iota
	streamTokens
	streamCitationsSent
	streamDone
	streamError
)

// wordGroupSize is how many words are batched per simulated token event
// on the degraded path.
const wordGroupSize = 5

type streamMachine struct {
	state streamState
	emit  EmitFunc
}

func (m *streamMachine) token(delta string) error {
	return m.emit(Event{Type: EventToken, Delta: delta})
}

// Stream runs the streaming flow. If retrieval yields zero chunks it
// short-circuits before the state machine and returns the no-documents
// Response for the caller to deliver as a plain JSON body, stream flag
// notwithstanding. Otherwise the returned Response is nil and events
// are delivered through emit in the order token*, citations, done.
//
// The returned error is non-nil only when emission itself failed (client
// gone); provider failures degrade to simulated streaming instead.
func (s *Service) Stream(ctx context.Context, req Request, emit EmitFunc) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "rag.stream")
	defer span.End()

	if req.K <= 0 {
		req.K = DefaultK
	}

	chunks := s.retrieve(ctx, req)
	if len(chunks) == 0 {
		resp := noDocumentsResponse()
		return &resp, nil
	}

	docContext := AssembleContext(chunks)
	citations := BuildCitations(chunks)
	system := systemPrompt(docContext)

	m := &streamMachine{state: streamInit, emit: emit}

	// Keep-alive signal so clients can render an empty bubble immediately.
	if err := m.token(""); err != nil {
		m.state = streamError
		return nil, err
	}
	m.state = streamTokens

	var emitErr error
	provider, err := s.generator.GenerateStream(ctx, system, req.Query, func(delta string) error {
		if delta == "" {
			return nil
		}
		if tokenErr := m.token(delta); tokenErr != nil {
			emitErr = tokenErr
			return tokenErr
		}
		return nil
	})
	switch {
	case emitErr != nil:
		m.state = streamError
		return nil, emitErr
	case err != nil:
		// Provider stream failed to open or parse. Generate the whole
		// answer synchronously and replay it in word groups so the
		// client still gets incremental rendering.
		s.logger.Warn("provider stream failed, simulating stream", "error", err)
		var answer string
		answer, provider = s.generate(ctx, system, req.Query)
		if replayErr := m.replayWords(ctx, answer, s.streamDelay); replayErr != nil {
			m.state = streamError
			return nil, replayErr
		}
	}

	m.state = streamCitationsSent
	if err := m.emit(Event{Type: EventCitations, Citations: citations}); err != nil {
		m.state = streamError
		return nil, err
	}

	m.state = streamDone
	if err := m.emit(Event{Type: EventDone}); err != nil {
		return nil, err
	}

	s.logger.Debug("stream completed", "provider", provider, "citations", len(citations))
	return nil, nil
}

// replayWords emits answer in fixed-size word groups with a small delay
// between groups.
func (m *streamMachine) replayWords(ctx context.Context, answer string, delay time.Duration) error {
	words := strings.Fields(answer)
	for i := 0; i < len(words); i += wordGroupSize {
		end := min(i+wordGroupSize, len(words))
		if err := m.token(strings.Join(words[i:end], " ") + " "); err != nil {
			return err
		}
		if end < len(words) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}
