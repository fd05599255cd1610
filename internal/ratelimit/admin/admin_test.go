package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/ratelimit/models"
	"cortex/internal/ratelimit/service"
	"cortex/internal/ratelimit/store/policy"
	"cortex/internal/ratelimit/store/usage"
	id "cortex/pkg/domain"
)

func newTestRouter(t *testing.T) (*chi.Mux, *service.Service) {
	t.Helper()

	svc, err := service.New(policy.NewInMemoryStore(), usage.NewInMemoryStore())
	require.NoError(t, err)

	h := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/admin", h.Register)
	return r, svc
}

func TestGetPolicy_ReturnsDefaultWhenUnset(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/rate-limit/policy/chat", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "chat", got["featureKey"])
	assert.EqualValues(t, 20, got["maxAttempts"])
	assert.EqualValues(t, 60, got["windowSeconds"])
	assert.EqualValues(t, 300, got["blockDurationSeconds"])
	assert.Equal(t, true, got["enabled"])
}

func TestUpdatePolicy_RoundTrips(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"maxAttempts":5,"windowSeconds":120,"blockDurationSeconds":60,"enabled":true}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/rate-limit/policy/chat", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/rate-limit/policy/chat", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 5, got["maxAttempts"])
	assert.EqualValues(t, 120, got["windowSeconds"])
}

func TestUpdatePolicy_RejectsInvalid(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"maxAttempts":0,"windowSeconds":60,"enabled":true}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/rate-limit/policy/chat", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestReset_ClearsUsage(t *testing.T) {
	r, svc := newTestRouter(t)

	// Exhaust the default window for one user.
	userID := id.NewUserID()
	require.NoError(t, svc.UpdatePolicy(context.Background(), &models.Policy{
		FeatureKey:  "chat",
		MaxAttempts: 1,
		Window:      time.Hour,
		Enabled:     true,
	}))
	res, err := svc.Check(context.Background(), userID, "chat")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	res, err = svc.Check(context.Background(), userID, "chat")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	body := fmt.Sprintf(`{"userId":%q,"featureKey":"chat"}`, userID.String())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/rate-limit/reset", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	res, err = svc.Check(context.Background(), userID, "chat")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestReset_RejectsBadUserID(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/rate-limit/reset", bytes.NewBufferString(`{"userId":"nope","featureKey":"chat"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsage_ReportsWindowState(t *testing.T) {
	r, svc := newTestRouter(t)

	userID := id.NewUserID()
	_, err := svc.Check(context.Background(), userID, "chat")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/rate-limit/usage/"+userID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1, got["count"])
	assert.EqualValues(t, 20, got["limit"])
	assert.EqualValues(t, 19, got["remaining"])
}
