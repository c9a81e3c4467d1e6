// Package sse implements the Server-Sent Events transport contract (§4.9):
// header/flush setup, `event: <name>\ndata: <json>\n\n` framing, and the
// synchronous chat-sync aggregation semantics layered on the same event
// stream.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer frames and flushes events to an http.ResponseWriter that supports
// http.Flusher (true of every net/http server response).
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// Init sets the SSE response headers and flushes them immediately so
// intermediary proxies start forwarding bytes right away, then returns a
// Writer for subsequent emissions.
func Init(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{w: w, flusher: flusher}, nil
}

// Emit writes one `event: name\ndata: <json>\n\n` frame and flushes it.
func (sw *Writer) Emit(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: encode payload: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Close is a no-op placeholder for symmetry with the JS original's
// `close()`; the HTTP handler ends the response simply by returning.
func (sw *Writer) Close() {}
