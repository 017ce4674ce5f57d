package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/entraops/guestgate/internal/models"
)

func runPrincipal(t *testing.T, mutate func(*http.Request)) *models.ClientPrincipal {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var captured *models.ClientPrincipal
	r := gin.New()
	r.Use(Principal())
	r.GET("/probe", func(c *gin.Context) {
		captured = PrincipalFrom(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	mutate(req)
	r.ServeHTTP(httptest.NewRecorder(), req)
	return captured
}

func TestPrincipalDecodesPerimeterHeader(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(
		`{"auth_typ":"aad","claims":[{"typ":"oid","val":"caller-1"}]}`,
	))

	p := runPrincipal(t, func(req *http.Request) {
		req.Header.Set(PrincipalHeader, encoded)
	})
	require.NotNil(t, p)
	require.Equal(t, "aad", p.AuthType)
	require.Equal(t, "caller-1", p.ObjectID())
}

func TestPrincipalToleratesUnpaddedBase64(t *testing.T) {
	encoded := base64.RawStdEncoding.EncodeToString([]byte(
		`{"claims":[{"typ":"oid","val":"caller-2"}]}`,
	))

	p := runPrincipal(t, func(req *http.Request) {
		req.Header.Set(PrincipalHeader, encoded)
	})
	require.NotNil(t, p)
	require.Equal(t, "caller-2", p.ObjectID())
}

func TestPrincipalIgnoresGarbageHeader(t *testing.T) {
	p := runPrincipal(t, func(req *http.Request) {
		req.Header.Set(PrincipalHeader, "%%%not-base64%%%")
	})
	require.Nil(t, p)
}

func TestPrincipalAbsentWithoutAssertion(t *testing.T) {
	p := runPrincipal(t, func(*http.Request) {})
	require.Nil(t, p)
}

func TestPrincipalFallsBackToUnverifiedBearerClaims(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"oid": "caller-3",
		"sub": "subject-3",
	})
	signed, err := token.SignedString([]byte("irrelevant-key"))
	require.NoError(t, err)

	p := runPrincipal(t, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+signed)
	})
	require.NotNil(t, p)
	require.Equal(t, "caller-3", p.ObjectID())
}
