package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// collectEvents returns an EmitFunc appending into events, failing after
// failAfter calls if failAfter >= 0.
func collectEvents(events *[]Event, failAfter int) EmitFunc {
	calls := 0
	return func(e Event) error {
		if failAfter >= 0 && calls >= failAfter {
			return errors.New("client gone")
		}
		calls++
		*events = append(*events, e)
		return nil
	}
}

// assertEventOrder checks the token*, citations, done sequence.
func assertEventOrder(t *testing.T, events []Event) {
	t.Helper()
	if len(events) < 3 {
		t.Fatalf("got %d events, want at least token, citations, done", len(events))
	}
	for i, e := range events[:len(events)-2] {
		if e.Type != EventToken {
			t.Errorf("event %d type = %q, want token", i, e.Type)
		}
	}
	if events[len(events)-2].Type != EventCitations {
		t.Errorf("penultimate event = %q, want citations", events[len(events)-2].Type)
	}
	if events[len(events)-1].Type != EventDone {
		t.Errorf("final event = %q, want done", events[len(events)-1].Type)
	}
}

func streamedText(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		if e.Type == EventToken {
			b.WriteString(e.Delta)
		}
	}
	return b.String()
}

func TestStream_HappyPath(t *testing.T) {
	generator := &fakeGenerator{deltas: []string{"The notice ", "period is ", "60 days [1]."}, name: "genspark"}
	svc := newTestService(&fakeRetriever{chunks: testChunks()}, generator)

	var events []Event
	resp, err := svc.Stream(context.Background(), Request{CompanyID: "co-1", Query: "q", Stream: true}, collectEvents(&events, -1))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if resp != nil {
		t.Fatalf("expected streamed delivery, got short-circuit response %+v", resp)
	}

	assertEventOrder(t, events)

	// First token is the empty keep-alive signal.
	if events[0].Type != EventToken || events[0].Delta != "" {
		t.Errorf("first event = %+v, want empty token", events[0])
	}
	if got := streamedText(events); got != "The notice period is 60 days [1]." {
		t.Errorf("streamed text = %q", got)
	}

	citations := events[len(events)-2].Citations
	if len(citations) != 2 || citations[0].ID != "doc-1" {
		t.Errorf("citations event wrong: %+v", citations)
	}
}

func TestStream_NoChunksShortCircuits(t *testing.T) {
	svc := newTestService(&fakeRetriever{}, &fakeGenerator{})

	var events []Event
	resp, err := svc.Stream(context.Background(), Request{CompanyID: "co-1", Query: "q", Stream: true}, collectEvents(&events, -1))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if resp == nil {
		t.Fatal("expected short-circuit response")
	}
	if resp.Answer != NoDocumentsAnswer || resp.Usage.Provider != "none" {
		t.Errorf("short-circuit response = %+v", resp)
	}
	if len(events) != 0 {
		t.Errorf("no events should be emitted before the state machine, got %d", len(events))
	}
}

// Provider stream dies after two deltas: the rest of the answer arrives
// via the word-group fallback and citations + done still follow.
func TestStream_DegradesToSimulatedStreaming(t *testing.T) {
	generator := &fakeGenerator{
		deltas:    []string{"partial ", "output "},
		streamErr: errors.New("stream reset"),
		answer:    "one two three four five six seven",
		name:      "openai",
	}
	svc := newTestService(&fakeRetriever{chunks: testChunks()}, generator)

	var events []Event
	resp, err := svc.Stream(context.Background(), Request{CompanyID: "co-1", Query: "q", Stream: true}, collectEvents(&events, -1))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if resp != nil {
		t.Fatal("degraded path must still stream, not short-circuit")
	}

	assertEventOrder(t, events)

	got := streamedText(events)
	if !strings.Contains(got, "partial output") {
		t.Errorf("streamed text lost the pre-failure deltas: %q", got)
	}
	if !strings.Contains(got, "one two three four five") || !strings.Contains(got, "six seven") {
		t.Errorf("fallback answer not replayed in word groups: %q", got)
	}

	// Seven words in groups of five = two fallback token events.
	var fallbackGroups int
	for _, e := range events {
		if e.Type == EventToken && (e.Delta == "one two three four five " || e.Delta == "six seven ") {
			fallbackGroups++
		}
	}
	if fallbackGroups != 2 {
		t.Errorf("fallback token groups = %d, want 2", fallbackGroups)
	}
}

func TestStream_TotalFailureStreamsApology(t *testing.T) {
	generator := &fakeGenerator{
		streamErr: errors.New("stream failed"),
		err:       errors.New("completion failed"),
	}
	svc := newTestService(&fakeRetriever{chunks: testChunks()}, generator)

	var events []Event
	_, err := svc.Stream(context.Background(), Request{CompanyID: "co-1", Query: "q", Stream: true}, collectEvents(&events, -1))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	assertEventOrder(t, events)
	if got := streamedText(events); !strings.Contains(got, "I encountered an error") {
		t.Errorf("expected apology in streamed text, got %q", got)
	}
}

func TestStream_EmitFailureAborts(t *testing.T) {
	generator := &fakeGenerator{deltas: []string{"a ", "b ", "c "}, name: "genspark"}
	svc := newTestService(&fakeRetriever{chunks: testChunks()}, generator)

	var events []Event
	// Allow keep-alive plus one delta, then break the channel.
	_, err := svc.Stream(context.Background(), Request{CompanyID: "co-1", Query: "q", Stream: true}, collectEvents(&events, 2))
	if err == nil {
		t.Fatal("expected error when client channel breaks")
	}
	for _, e := range events {
		if e.Type == EventCitations || e.Type == EventDone {
			t.Errorf("no citations/done after transport failure, got %q", e.Type)
		}
	}
}
