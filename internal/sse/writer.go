// Package sse provides Server-Sent Events utilities for streaming chat
// responses to the browser.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Event names on the client-facing stream.
const (
	EventStatus = "status"
	EventToken  = "token"
	EventError  = "error"
	EventDone   = "done"
)

// Writer wraps an http.ResponseWriter for SSE streaming. Each event is
// flushed immediately so tokens reach the client as they are produced.
// Writer is not safe for concurrent use; the agent emits sequentially.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter creates an SSE writer and sets the streaming response headers.
// It fails if the underlying writer cannot flush, since buffered SSE
// defeats the point.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// Status reports a human-readable progress update.
func (w *Writer) Status(message string) error {
	return w.writeEvent(EventStatus, map[string]string{"message": message})
}

// Token streams one increment of assistant text.
func (w *Writer) Token(content string) error {
	return w.writeEvent(EventToken, map[string]string{"content": content})
}

// Error reports a terminal failure ending the stream.
func (w *Writer) Error(message string) error {
	return w.writeEvent(EventError, map[string]string{"message": message})
}

// Done signals the end of the stream.
func (w *Writer) Done() error {
	return w.writeEvent(EventDone, map[string]string{"message": "complete"})
}

// writeEvent frames one event and flushes it. JSON payloads never contain
// raw newlines, so a single data line suffices.
func (w *Writer) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event, err)
	}

	if _, err := fmt.Fprintf(w.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing %s event: %w", event, err)
	}

	w.flusher.Flush()
	return nil
}
