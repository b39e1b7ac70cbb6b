// Package api exposes the intake conversation over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/intake/service"
)

// TurnHandler runs one chat turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req service.Request) (*service.Response, error)
}

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	turns        TurnHandler
	maxBodyBytes int64
	logger       logger.Logger
}

func NewChatHandler(turns TurnHandler, maxBodyBytes int64, log logger.Logger) *ChatHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 << 10
	}
	return &ChatHandler{
		turns:        turns,
		maxBodyBytes: maxBodyBytes,
		logger:       log.WithFields(map[string]interface{}{"component": "chat-handler"}),
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, ErrInvalidRequest, "Invalid request", "request body too large", false)
			return
		}
		writeError(w, http.StatusBadRequest, ErrInvalidRequest, "Invalid request", "body must be a JSON object", false)
		return
	}

	req.ClientKey = clientKey(r)
	if id := IdentityFrom(r.Context()); id != nil {
		req.UserID = id.UserID
		req.Email = id.Email
	}

	start := time.Now()
	resp, err := h.turns.HandleTurn(r.Context(), req)
	if err != nil {
		h.logger.Warn("chat turn failed", map[string]interface{}{
			"requestId":  middleware.GetReqID(r.Context()),
			"sessionId":  req.SessionID,
			"error":      err.Error(),
			"durationMs": time.Since(start).Milliseconds(),
		})
		writeStandardError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
