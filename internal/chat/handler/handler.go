// Package handler exposes the chat admission endpoint over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cortex/internal/chat/models"
	"cortex/internal/chat/service"
	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
	"cortex/pkg/httputil"
	"cortex/pkg/middleware/auth"
	"cortex/pkg/requestcontext"
)

// Handler serves POST /chat/messages.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the chat routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/chat/messages", h.sendMessage)
}

// messageResponse is the success envelope.
type messageResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	RemainingRequests int    `json:"remainingRequests"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(auth.UserIDFromContext(ctx))
	if err != nil || userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}

	req, ok := httputil.DecodeJSON[models.ChatMessageRequest](w, r, h.logger)
	if !ok {
		return
	}

	reply, err := h.svc.SendMessage(ctx, userID, req)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &messageResponse{
		Success:           true,
		Message:           reply.Message,
		RemainingRequests: reply.Remaining,
	})
}

// writeFailure maps service errors onto the wire contract. Rate-limit
// denials get their own envelope with retry headers; everything else goes
// through the shared domain-error translation.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var rlErr *service.RateLimitedError
	if errors.As(err, &rlErr) {
		result := rlErr.Result
		w.Header().Set("X-RateLimit-Remaining", "0")
		if result.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
		}
		httputil.WriteJSON(w, http.StatusTooManyRequests, &httputil.ErrorResponse{
			Success:    false,
			Error:      rlErr.Error(),
			RetryAfter: result.ResetAt.UTC().Format(time.RFC3339),
		})
		return
	}

	// Client mistakes stay at warn; anything server-side is an error.
	if h.logger != nil {
		logFn := h.logger.WarnContext
		if status := failureStatus(err); status >= http.StatusInternalServerError {
			logFn = h.logger.ErrorContext
		}
		logFn(r.Context(), "chat message failed",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
	httputil.WriteError(w, err)
}

func failureStatus(err error) int {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return httputil.DomainCodeToHTTPStatus(domainErr.Code)
	}
	return http.StatusInternalServerError
}
