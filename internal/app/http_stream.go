package app

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/surface"
)

// eventWriter writes server-sent events. Headers go out with the first
// event so that setup failures can still be answered with a JSON error.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newEventWriter(w http.ResponseWriter) (*eventWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &eventWriter{w: w, flusher: flusher}, true
}

func (e *eventWriter) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if !e.started {
		header := e.w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-store")
		header.Set("Connection", "keep-alive")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	e.flusher.Flush()
	return nil
}

// handleStream sends a snapshot event after every refetch of the artifact's
// comments until the client goes away.
func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request, viewer model.Author) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	events, ok := newEventWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Streaming unsupported", nil)
		return
	}
	err := s.service.Stream(r.Context(), viewer, r.URL.Query().Get("artifact"), func(view surface.SnapshotView) error {
		return events.send("snapshot", view)
	})
	s.finishStream(w, r, events, err)
}

func (s *HTTPServer) handleInboxStream(w http.ResponseWriter, r *http.Request, viewer model.Author) {
	events, ok := newEventWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Streaming unsupported", nil)
		return
	}
	err := s.service.StreamInbox(r.Context(), viewer, func(inbox Inbox) error {
		return events.send("inbox", inbox)
	})
	s.finishStream(w, r, events, err)
}

func (s *HTTPServer) finishStream(w http.ResponseWriter, r *http.Request, events *eventWriter, err error) {
	if err == nil {
		return
	}
	if events.started {
		s.logger.Warn(r.Context(), "stream ended", "path", r.URL.Path, "error", err)
		return
	}
	respond(w, http.StatusOK, nil, err)
}
