package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SP-Shreya-SP/MyChat-app/internal/chat"
	"github.com/SP-Shreya-SP/MyChat-app/internal/db"
	"github.com/SP-Shreya-SP/MyChat-app/internal/models"
	"go.uber.org/zap"
)

type Handler struct {
	controller *chat.Controller
	logger     *zap.Logger
}

func NewHandler(controller *chat.Controller, logger *zap.Logger) *Handler {
	return &Handler{
		controller: controller,
		logger:     logger,
	}
}

type MessageRequest struct {
	Content string `json:"content"`
	Quote   string `json:"quote,omitempty"`
	Display string `json:"display,omitempty"`
	Mode    string `json:"mode,omitempty"` // "", "search" or "image"
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type UpdateSessionRequest struct {
	Title string `json:"title"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func sessionID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get("session_id"), 10, 64)
}

// HandleMessage runs one turn and relays streamed deltas to the browser
// as SSE frames, terminated by the done sentinel and a final frame
// carrying the persisted message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessID, err := sessionID(r)
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	onDelta := func(delta string) {
		frame, err := json.Marshal(map[string]string{"content": delta})
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", frame)
		flusher.Flush()
	}

	var response *models.Message
	switch req.Mode {
	case "image":
		response, err = h.controller.SendImage(r.Context(), sessID, req.Content)
	case "search":
		response, err = h.controller.SendSearch(r.Context(), sessID, req.Content, onDelta)
	default:
		response, err = h.controller.Send(r.Context(), models.Turn{
			SessionID:        sessID,
			DisplayContent:   req.Display,
			SubmittedContent: req.Content,
			Quote:            req.Quote,
		}, onDelta)
	}
	if err != nil {
		// Turn failures become conversation entries inside the
		// controller; an error here means the turn never started.
		h.logger.Error("Failed to process message", zap.Error(err))
		frame, _ := json.Marshal(errorResponse{Error: err.Error()})
		if errors.Is(err, chat.ErrTurnInFlight) {
			w.WriteHeader(http.StatusConflict)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		fmt.Fprintf(w, "data: %s\n\n", frame)
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	final, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", final)
	flusher.Flush()
}

// GetSessions handles both listing and creation.
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := h.controller.ListSessions()
		if err != nil {
			h.logger.Error("Failed to get sessions",
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.logger.Debug("Retrieved sessions",
			zap.Int("count", len(sessions)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sessions); err != nil {
			h.logger.Error("Failed to encode sessions", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

	case http.MethodPost:
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		id, err := h.controller.NewSession(req.Title)
		if err != nil {
			h.logger.Error("Failed to create session", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"id": id})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessID, err := sessionID(r)
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	messages, err := h.controller.Messages(sessID)
	if err != nil {
		h.logger.Error("Failed to get messages", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessID, err := sessionID(r)
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	if err := h.controller.DeleteSession(sessID); err != nil {
		h.logger.Error("Failed to delete session", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessID, err := sessionID(r)
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.controller.RenameSession(sessID, req.Title); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to update session", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.controller.Reset(); err != nil {
		h.logger.Error("Failed to clear data", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
