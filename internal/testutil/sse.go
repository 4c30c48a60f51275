package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent is one parsed Server-Sent Event.
type SSEEvent struct {
	Type string // event: value
	Data string // data: value, multi-line payloads joined with \n
}

// ParseSSEEvents parses a raw SSE response body into structured events.
//
// Follows the W3C framing rules the service relies on:
//   - multiple "data:" lines belong to one event, joined with newline
//   - an empty line terminates the event
//   - data before an event name defaults the type to "message"
//   - lines starting with ":" are comments and ignored
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var events []SSEEvent
	var current SSEEvent
	var dataLines []string

	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			if current.Type != "" && len(dataLines) > 0 {
				t.Fatalf("SSE parse error at line %d: event %q not terminated before %q", lineNum, current.Type, line)
			}
			current.Type = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			if current.Type == "" {
				current.Type = "message"
			}
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))

		case line == "":
			if current.Type != "" {
				current.Data = strings.Join(dataLines, "\n")
				events = append(events, current)
				current = SSEEvent{}
				dataLines = nil
			}

		case strings.HasPrefix(line, ":"):
			// comment, ignored

		default:
			t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}
	if current.Type != "" {
		t.Fatalf("SSE stream ended without terminating event %q", current.Type)
	}

	return events
}

// EventTypes returns the event type sequence, for order assertions.
func EventTypes(events []SSEEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

// FindEvent returns the first event of the given type, or nil.
func FindEvent(events []SSEEvent, eventType string) *SSEEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}
