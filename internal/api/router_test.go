package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/entraops/guestgate/internal/app"
	"github.com/entraops/guestgate/internal/models"
	"github.com/entraops/guestgate/internal/services"
)

type allowAllAuthorizer struct{}

func (allowAllAuthorizer) Authorize(ctx context.Context, principal *models.ClientPrincipal) (*models.AuthorizationDecision, error) {
	return &models.AuthorizationDecision{Authorized: true, Mode: models.ModeLocalBypass}, nil
}

type denyAllAuthorizer struct{}

func (denyAllAuthorizer) Authorize(ctx context.Context, principal *models.ClientPrincipal) (*models.AuthorizationDecision, error) {
	return &models.AuthorizationDecision{Status: http.StatusForbidden, Reason: "denied"}, nil
}

type noopSender struct{}

func (noopSender) CreateInvitation(ctx context.Context, payload map[string]any) (int, []byte, error) {
	return http.StatusCreated, []byte(`{}`), nil
}

func newTestRouter(t *testing.T, authz interface {
	Authorize(context.Context, *models.ClientPrincipal) (*models.AuthorizationDecision, error)
}) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bulk := services.NewBulkService(services.BulkConfig{DefaultRedirectURL: "https://myapplications.microsoft.com"})
	invites, err := services.NewInviteService(noopSender{})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true

	router, err := NewRouter(authz, bulk, invites, cfg)
	require.NoError(t, err)
	return router
}

func TestRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	router := newTestRouter(t, allowAllAuthorizer{})

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestTemplateDownloadSkipsAuthorization(t *testing.T) {
	router := newTestRouter(t, denyAllAuthorizer{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invites/template", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInviteRoutesAreProtected(t *testing.T) {
	router := newTestRouter(t, denyAllAuthorizer{})

	body := bytes.NewBufferString(`{"email":"guest@external.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/invites", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInviteFlowThroughRouter(t *testing.T) {
	router := newTestRouter(t, allowAllAuthorizer{})

	body := bytes.NewBufferString(`{"email":"guest@external.com","sendEmail":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/invites", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Invite sent")
}
