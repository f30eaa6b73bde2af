package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "groutflow/internal/errors"
	"groutflow/internal/middleware"
)

// ClientLogHandler ingests log entries from the browser frontend so
// chart and upload failures on the client side land in the server log
type ClientLogHandler struct {
	logger *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		logger: logger.With(slog.String("handler", "client_log")),
	}
}

// ClientLogRequest represents a log entry sent by the frontend
type ClientLogRequest struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Page    string                 `json:"page,omitempty"`
}

// Handle processes POST /api/logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req ClientLogRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorJSON(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if req.Message == "" {
		h.errorJSON(w, r, apierrors.ErrValidation("message", "message is required"))
		return
	}

	level := slog.LevelInfo
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("source", "web_client"),
		slog.String("page", req.Page),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}

	h.logger.LogAttrs(r.Context(), level, req.Message, attrs...)

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
	})
}

func (h *ClientLogHandler) errorJSON(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	render.Status(r, apiErr.StatusCode)
	render.JSON(w, r, apierrors.NewErrorResponse(apiErr))
}
