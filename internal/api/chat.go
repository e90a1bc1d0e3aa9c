package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/vibeyhq/vibey/internal/agent"
	"github.com/vibeyhq/vibey/internal/files"
	"github.com/vibeyhq/vibey/internal/log"
	"github.com/vibeyhq/vibey/internal/sse"
	"github.com/vibeyhq/vibey/internal/store"
	"github.com/vibeyhq/vibey/internal/tools"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100

	// multipartMemoryLimit is how much of the form may be buffered in
	// memory before spilling to disk.
	multipartMemoryLimit = 4 << 20
)

// fileMessageFallback is used when a file arrives without a message.
const fileMessageFallback = "Please analyze this file."

// TurnRunner runs one conversational turn against the emitter.
// Implemented by agent.Agent.
type TurnRunner interface {
	Run(ctx context.Context, req agent.Request, emitter agent.Emitter)
}

// ChatHistory is the persistence surface the chat endpoints need.
type ChatHistory interface {
	History(ctx context.Context, userID string, limit int) ([]store.ChatTurn, error)
	ClearHistory(ctx context.Context, userID string) error
}

// chatHandler serves the chat endpoints.
type chatHandler struct {
	agent   TurnRunner
	history ChatHistory
	logger  log.Logger
}

// chat handles POST /api/chat: validates the multipart request, then hands
// off to the agent over an SSE stream. Validation failures are plain JSON;
// once streaming starts all errors travel as SSE error events.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, files.MaxFileSize+multipartMemoryLimit)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_form", "Invalid multipart form data.", h.logger)
		return
	}

	message := r.FormValue("message")

	upload, err := h.readUpload(r)
	if err != nil {
		status, code := http.StatusBadRequest, "unsupported_file_type"
		if errors.Is(err, errFileTooLarge) {
			status, code = http.StatusRequestEntityTooLarge, "file_too_large"
		}
		WriteError(w, status, code, err.Error(), h.logger)
		return
	}

	if message == "" && upload == nil {
		WriteError(w, http.StatusBadRequest, "missing_input", "Message or file is required.", h.logger)
		return
	}
	if message == "" {
		message = fileMessageFallback
	}

	userID := userIDFromContext(r.Context())

	// Guests keep their history client-side and send it with the request.
	var localHistory []agent.Turn
	if raw := r.FormValue("history"); raw != "" && userID == tools.GuestUserID {
		if err := json.Unmarshal([]byte(raw), &localHistory); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_history", "Invalid history payload.", h.logger)
			return
		}
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		h.logger.Error("creating SSE writer failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming is not supported.", h.logger)
		return
	}

	h.agent.Run(r.Context(), agent.Request{
		UserID:       userID,
		Message:      message,
		File:         upload,
		LocalHistory: localHistory,
	}, writer)
}

var errFileTooLarge = fmt.Errorf("file exceeds the %d MB limit", files.MaxFileSize/(1024*1024))

// readUpload extracts and validates the optional file part.
func (h *chatHandler) readUpload(r *http.Request) (*agent.Upload, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid file upload")
	}
	defer func() { _ = file.Close() }()

	if header.Size > files.MaxFileSize {
		return nil, errFileTooLarge
	}

	mimeType := header.Header.Get("Content-Type")
	if !files.Allowed(mimeType) {
		return nil, fmt.Errorf("unsupported file type: %s", mimeType)
	}

	data, err := io.ReadAll(io.LimitReader(file, files.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading file upload failed")
	}
	if len(data) > files.MaxFileSize {
		return nil, errFileTooLarge
	}

	return &agent.Upload{Data: data, MimeType: mimeType, Filename: header.Filename}, nil
}

// getHistory handles GET /api/chat/history.
// Guests have no server-side history and get an empty list.
func (h *chatHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == tools.GuestUserID {
		WriteJSON(w, http.StatusOK, map[string]any{"history": []store.ChatTurn{}}, h.logger)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxHistoryLimit)
		}
	}

	turns, err := h.history.History(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("loading chat history failed", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "history_failed", "Failed to load chat history.", h.logger)
		return
	}
	if turns == nil {
		turns = []store.ChatTurn{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"history": turns}, h.logger)
}

// clearHistory handles DELETE /api/chat/history.
func (h *chatHandler) clearHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == tools.GuestUserID {
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Guest chat history cleared locally."}, h.logger)
		return
	}

	if err := h.history.ClearHistory(r.Context(), userID); err != nil {
		h.logger.Error("clearing chat history failed", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "clear_failed", "Failed to clear chat history.", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared."}, h.logger)
}
