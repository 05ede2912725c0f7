package httptransport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "pixellocker/internal/jwt_token"
	"pixellocker/internal/platform/health"
	"pixellocker/pkg/platform/httputil"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/testutil"
)

type echoModule struct{}

func (echoModule) RegisterPublic(r chi.Router) {
	r.Get("/public", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"device": requestcontext.Device(r.Context())})
	})
}

func (echoModule) Register(r chi.Router) {
	r.Post("/private", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"caller": requestcontext.Principal(r.Context()).String()})
	})
}

func newRouter(t *testing.T) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	jwtService := jwttoken.NewJWTService("test-key", "pixellocker", "pixellocker-api", time.Hour)
	router := NewRouter(Config{
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Health:    health.New("test"),
	}, echoModule{})
	return router, jwtService
}

func TestRouter_PublicRoutesSkipAuth(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("User-Agent", "curl/8.4.0")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_ProtectedRoutesRequireBearer(t *testing.T) {
	router, jwtService := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/private", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwtService.GenerateAccessToken(context.Background(), testutil.Alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/private", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"caller":"`+testutil.Alice.String()+`"}`, rec.Body.String())
}

func TestRouter_RejectsNonJSONBodies(t *testing.T) {
	router, jwtService := newRouter(t)
	token, err := jwtService.GenerateAccessToken(context.Background(), testutil.Alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/private", strings.NewReader(`id=1`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router, _ := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
