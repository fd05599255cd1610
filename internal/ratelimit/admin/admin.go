// Package admin exposes the rate-limit policy and usage endpoints. Routes
// are mounted behind the admin scope; policies are the only mutable rate
// limit state and these handlers are their only writers.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cortex/internal/ratelimit/models"
	"cortex/internal/ratelimit/service"
	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
	"cortex/pkg/httputil"
)

// Handler serves the admin rate-limit endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts admin routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/rate-limit/policy/{feature}", h.HandleGetPolicy)
	r.Put("/rate-limit/policy/{feature}", h.HandleUpdatePolicy)
	r.Post("/rate-limit/reset", h.HandleReset)
	r.Get("/rate-limit/usage/{user}", h.HandleUsage)
}

// policyPayload is the wire form of a policy. Durations travel as seconds.
type policyPayload struct {
	FeatureKey           string `json:"featureKey"`
	MaxAttempts          int    `json:"maxAttempts"`
	WindowSeconds        int    `json:"windowSeconds"`
	BlockDurationSeconds int    `json:"blockDurationSeconds"`
	Enabled              bool   `json:"enabled"`
}

func toPayload(p models.Policy) policyPayload {
	return policyPayload{
		FeatureKey:           p.FeatureKey,
		MaxAttempts:          p.MaxAttempts,
		WindowSeconds:        int(p.Window.Seconds()),
		BlockDurationSeconds: int(p.BlockDuration.Seconds()),
		Enabled:              p.Enabled,
	}
}

func (h *Handler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	feature := chi.URLParam(r, "feature")

	policy, err := h.svc.GetPolicy(r.Context(), feature)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPayload(policy))
}

type updatePolicyRequest struct {
	MaxAttempts          int  `json:"maxAttempts"`
	WindowSeconds        int  `json:"windowSeconds"`
	BlockDurationSeconds int  `json:"blockDurationSeconds"`
	Enabled              bool `json:"enabled"`
}

func (h *Handler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feature := chi.URLParam(r, "feature")

	req, ok := httputil.DecodeJSON[updatePolicyRequest](w, r, h.logger)
	if !ok {
		return
	}

	policy := &models.Policy{
		FeatureKey:    feature,
		MaxAttempts:   req.MaxAttempts,
		Window:        time.Duration(req.WindowSeconds) * time.Second,
		BlockDuration: time.Duration(req.BlockDurationSeconds) * time.Second,
		Enabled:       req.Enabled,
	}
	if err := h.svc.UpdatePolicy(ctx, policy); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPayload(*policy))
}

type resetRequest struct {
	UserID     string `json:"userId"`
	FeatureKey string `json:"featureKey"`
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[resetRequest](w, r, h.logger)
	if !ok {
		return
	}

	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Valid user ID is required"))
		return
	}
	if req.FeatureKey == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Feature key is required"))
		return
	}

	if err := h.svc.ResetUsage(ctx, userID, req.FeatureKey); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "user"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Valid user ID is required"))
		return
	}

	feature := r.URL.Query().Get("feature")
	if feature == "" {
		feature = "chat"
	}

	usage, err := h.svc.Usage(ctx, userID, feature)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"userId":     usage.UserID.String(),
		"featureKey": usage.FeatureKey,
		"count":      usage.Count,
		"limit":      usage.Limit,
		"remaining":  usage.Remaining,
	})
}
