package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TWLS151/Soootudy-sub000/internal/auth"
	"github.com/TWLS151/Soootudy-sub000/internal/geometry"
	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     logging.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		ok, checks := s.service.Ready(ctx)
		status, statusCode := "ready", http.StatusOK
		if !ok {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     ok,
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	viewer, ok := s.requireViewer(w, r)
	if !ok {
		return
	}

	switch parts[1] {
	case "comments":
		s.handleComments(w, r, viewer, parts[2:])
	case "layout":
		s.handleLayout(w, r)
	case "export":
		s.handleExport(w, r)
	case "stream":
		s.handleStream(w, r, viewer)
	case "sessions":
		s.handleSessions(w, r, viewer, parts[2:])
	case "notifications":
		s.handleNotifications(w, r, viewer, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, viewer model.Author, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		payload, err := s.service.Comments(r.Context(), viewer, r.URL.Query().Get("artifact"))
		respond(w, http.StatusOK, payload, err)

	case len(parts) == 0 && r.Method == http.MethodPost:
		var body CreateCommentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateComment(r.Context(), viewer, body)
		respond(w, http.StatusCreated, created, err)

	case len(parts) == 1 && r.Method == http.MethodPatch:
		var body UpdateCommentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateComment(r.Context(), viewer, parts[0], body)
		respond(w, http.StatusOK, updated, err)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		err := s.service.DeleteComment(r.Context(), viewer, r.URL.Query().Get("artifact"), parts[0])
		respond(w, http.StatusOK, map[string]any{"ok": true}, err)

	case len(parts) == 2 && parts[1] == "reactions" && r.Method == http.MethodPost:
		var body ReactionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.ToggleReaction(r.Context(), viewer, parts[0], body)
		respond(w, http.StatusOK, result, err)

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	query := r.URL.Query()
	metrics, err := metricsFromQuery(query.Get("charWidth"), query.Get("gutterWidth"), query.Get("viewportWidth"), query.Get("lineHeight"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	layout, err := s.service.Layout(r.Context(), LayoutInput{ArtifactID: query.Get("artifact"), Metrics: metrics})
	respond(w, http.StatusOK, layout, err)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	text, err := s.service.Export(r.Context(), r.URL.Query().Get("artifact"))
	if err != nil {
		s.logFailure(r, "export", err)
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, viewer model.Author, parts []string) {
	ctx := r.Context()

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body OpenSessionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		opened, err := s.service.OpenSession(ctx, viewer, body)
		respond(w, http.StatusCreated, opened, err)
		return
	}

	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			frame, err := s.service.SessionFrame(ctx, viewer, id)
			respond(w, http.StatusOK, frame, err)
		case http.MethodDelete:
			err := s.service.CloseSession(ctx, viewer, id)
			respond(w, http.StatusOK, map[string]any{"ok": true}, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "click", "hover":
		var body PointerInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		action := s.service.SessionClick
		if parts[1] == "hover" {
			action = s.service.SessionHover
		}
		frame, err := action(ctx, viewer, id, body)
		respond(w, http.StatusOK, frame, err)
	case "key":
		var body KeyInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		frame, err := s.service.SessionKey(ctx, viewer, id, body)
		respond(w, http.StatusOK, frame, err)
	case "outside":
		frame, err := s.service.SessionOutside(ctx, viewer, id)
		respond(w, http.StatusOK, frame, err)
	case "close":
		frame, err := s.service.SessionClose(ctx, viewer, id)
		respond(w, http.StatusOK, frame, err)
	case "resize":
		var body ResizeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		frame, err := s.service.SessionResize(ctx, viewer, id, body)
		respond(w, http.StatusOK, frame, err)
	case "submit":
		var body SubmitInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		frame, err := s.service.SessionSubmit(ctx, viewer, id, body)
		if err != nil {
			s.logFailure(r, "submit", err)
		}
		respond(w, http.StatusOK, frame, err)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, viewer model.Author, parts []string) {
	ctx := r.Context()
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		inbox, err := s.service.Notifications(ctx, viewer)
		respond(w, http.StatusOK, inbox, err)
	case len(parts) == 1 && parts[0] == "unread-count" && r.Method == http.MethodGet:
		count, err := s.service.UnreadCount(ctx, viewer)
		respond(w, http.StatusOK, map[string]any{"count": count}, err)
	case len(parts) == 1 && parts[0] == "stream" && r.Method == http.MethodGet:
		s.handleInboxStream(w, r, viewer)
	case len(parts) == 1 && parts[0] == "read-all" && r.Method == http.MethodPost:
		err := s.service.MarkAllRead(ctx, viewer)
		respond(w, http.StatusOK, map[string]any{"ok": true}, err)
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		err := s.service.MarkRead(ctx, viewer, parts[0])
		respond(w, http.StatusOK, map[string]any{"ok": true}, err)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) requireViewer(w http.ResponseWriter, r *http.Request) (model.Author, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return model.Author{}, false
	}
	viewer, err := s.service.Viewer(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return model.Author{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return model.Author{}, false
	}
	return viewer, true
}

func (s *HTTPServer) logFailure(r *http.Request, action string, err error) {
	status, _, _, _ := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), action+" failed", "path", r.URL.Path, "error", err)
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		r = r.WithContext(logging.WithRequestID(r.Context(), requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

// respond writes payload, or the mapped error when err is set.
func respond(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		// EventSource cannot set headers.
		if r.Method == http.MethodGet {
			return strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// metricsFromQuery parses view metrics. Missing values are zero and left to
// validation.
func metricsFromQuery(charWidth, gutterWidth, viewportWidth, lineHeight string) (geometry.Metrics, error) {
	var m geometry.Metrics
	for _, field := range []struct {
		name  string
		raw   string
		value *float64
	}{
		{"charWidth", charWidth, &m.CharWidth},
		{"gutterWidth", gutterWidth, &m.GutterWidth},
		{"viewportWidth", viewportWidth, &m.ViewportWidth},
		{"lineHeight", lineHeight, &m.LineHeight},
	} {
		if field.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(field.raw, 64)
		if err != nil {
			return geometry.Metrics{}, fmt.Errorf("%s must be a number", field.name)
		}
		*field.value = v
	}
	return m, nil
}
