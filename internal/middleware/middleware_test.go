package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, sub, role string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func actorEcho(t *testing.T, got *models.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFrom(r.Context())
		require.True(t, ok)
		*got = a
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	user := uuid.New()
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), user.String(), "authority", time.Now().Add(time.Hour))

	var got models.Actor
	h := RequireAuth(testSecret)(actorEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, models.Actor{ID: user, Role: models.RoleAuthority}, got)

	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), user.String(), "citizen", time.Now().Add(time.Hour)),
		"expired":      "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), user.String(), "citizen", time.Now().Add(-time.Minute)),
		"bad subject":  "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "not-a-uuid", "citizen", time.Now().Add(time.Hour)),
		"bad role":     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), user.String(), "mayor", time.Now().Add(time.Hour)),
		"wrong alg":    "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), user.String(), "citizen", time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole(models.RoleAuthority, models.RoleAdmin)(ok)

	serve := func(a *models.Actor) int {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		if a != nil {
			req = req.WithContext(WithActor(req.Context(), *a))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(&models.Actor{ID: uuid.New(), Role: models.RoleAdmin}))
	assert.Equal(t, http.StatusForbidden, serve(&models.Actor{ID: uuid.New(), Role: models.RoleCitizen}))
	assert.Equal(t, http.StatusUnauthorized, serve(nil))
}

func TestRateLimitPerCaller(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(t.Context(), 2)(ok)

	a := models.Actor{ID: uuid.New(), Role: models.RoleCitizen}
	b := models.Actor{ID: uuid.New(), Role: models.RoleCitizen}
	serve := func(actor models.Actor) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(a))
	assert.Equal(t, http.StatusOK, serve(a))
	assert.Equal(t, http.StatusTooManyRequests, serve(a))
	assert.Equal(t, http.StatusOK, serve(b))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRateLimiterEvictsIdleCallers(t *testing.T) {
	l := &rateLimiter{clients: make(map[string]*rateClient), limit: 1}
	start := time.Now()

	assert.True(t, l.allow("a", start))
	assert.False(t, l.allow("a", start.Add(time.Second)))
	assert.True(t, l.allow("b", start.Add(90*time.Second)))

	l.evict(start.Add(3 * time.Minute))
	assert.NotContains(t, l.clients, "a")
	assert.Contains(t, l.clients, "b")

	// a fresh window after eviction
	assert.True(t, l.allow("a", start.Add(3*time.Minute)))
}

func TestRateLimiterCleanupStopsWithContext(t *testing.T) {
	l := &rateLimiter{clients: make(map[string]*rateClient), limit: 1}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.cleanup(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop after cancel")
	}
}
