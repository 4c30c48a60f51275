// Package sse provides Server-Sent Events framing for streaming
// responses.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Writer wraps an http.ResponseWriter for SSE streaming.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter creates an SSE writer and sets the stream headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent sends one named event with a JSON-encoded payload and
// flushes it to the client.
func (w *Writer) WriteEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return w.writeRaw(event, string(data))
}

// writeRaw writes the SSE frame. Each line of a multi-line payload gets
// its own "data: " prefix per the SSE spec; an empty line terminates
// the event.
func (w *Writer) writeRaw(event, data string) error {
	if _, err := fmt.Fprintf(w.w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write event name: %w", err)
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write data line: %w", err)
		}
	}
	if _, err := w.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}

	w.flusher.Flush()
	return nil
}
