package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"atlasd/model"
	"atlasd/session"
)

// MaxMessageLength bounds a single chat message.
const MaxMessageLength = 10000

// pingTimeout bounds the backend reachability probe on the status endpoint.
const pingTimeout = 2 * time.Second

// Streamer produces the SSE event sequence for a session; satisfied by
// *chat.Relay.
type Streamer interface {
	Stream(ctx context.Context, sessionID string) <-chan model.StreamEvent
}

// Pinger checks backend reachability; satisfied by model.Provider.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	enabled  bool
	sessions *session.Store
	streamer Streamer
	backend  Pinger // nil when chat is disabled
	logger   *zap.Logger
}

func NewChatHandler(enabled bool, sessions *session.Store, streamer Streamer, backend Pinger, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		enabled:  enabled,
		sessions: sessions,
		streamer: streamer,
		backend:  backend,
		logger:   logger,
	}
}

// RegisterRoutes registers the chat routes on the mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/message", h.handleMessage)
	mux.HandleFunc("GET /api/chat/stream/{session_id}", h.handleStream)
	mux.HandleFunc("GET /api/chat/history/{session_id}", h.handleHistory)
	mux.HandleFunc("GET /api/chat/status", h.handleStatus)
}

type messageRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context"`
}

// handleMessage records a user message and hands back the stream URL the
// client should connect to for the response.
func (h *ChatHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !h.enabled {
		writeError(w, http.StatusServiceUnavailable, "Chat service is disabled")
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}

	message := strings.TrimSpace(req.Message)
	sessionID := strings.TrimSpace(req.SessionID)

	if message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	// Character limit, not bytes: multibyte text counts by code points.
	if utf8.RuneCountInString(message) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "Message too long")
		return
	}

	sessionID = h.sessions.CreateOrTouch(sessionID)
	h.sessions.Append(sessionID, model.RoleUser, message, req.Context)

	h.logger.Debug("chat message accepted",
		zap.String("session_id", sessionID),
		zap.Int("length", len(message)))

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"stream_url": "/api/chat/stream/" + sessionID,
	})
}

// handleStream serves the SSE response stream for a session. Every outcome,
// including rejection, is delivered as SSE so the client reads one protocol.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	if !h.enabled {
		writeSSEEvent(w, flusher, model.StreamEvent{Type: model.EventError, Error: "Chat service is disabled"})
		return
	}

	sessionID := r.PathValue("session_id")
	if !h.sessions.Exists(sessionID) {
		writeSSEEvent(w, flusher, model.StreamEvent{Type: model.EventError, Error: "Invalid session ID"})
		return
	}

	ctx := r.Context()
	for event := range h.streamer.Stream(ctx, sessionID) {
		if ctx.Err() != nil {
			h.logger.Debug("client disconnected", zap.String("session_id", sessionID))
			return
		}
		writeSSEEvent(w, flusher, event)
		if event.Terminal() {
			break
		}
	}
}

// writeSSEEvent frames one event as `data: <json>\n\n` and flushes it.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event model.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

type historyMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// handleHistory returns the session transcript without internal context.
// Unknown sessions yield an empty list rather than an error.
func (h *ChatHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !h.enabled {
		writeError(w, http.StatusServiceUnavailable, "Chat service is disabled")
		return
	}

	sessionID := r.PathValue("session_id")
	messages := h.sessions.History(sessionID)

	formatted := make([]historyMessage, 0, len(messages))
	for _, msg := range messages {
		formatted = append(formatted, historyMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": formatted})
}

// handleStatus reports service availability.
func (h *ChatHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	backendAvailable := false
	if h.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		backendAvailable = h.backend.Ping(ctx) == nil
		cancel()
	}

	activeSessions := 0
	if h.sessions != nil {
		activeSessions = h.sessions.Count()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":           h.enabled,
		"backend_available": backendAvailable,
		"active_sessions":   activeSessions,
	})
}
