package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civictrack-be/middlewares"
	authUtils "civictrack-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var secret = []byte("middleware-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine mounts the middlewares in front of a handler that echoes the
// user id and role found in the context.
func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middlewares.UserIDKey)+"|"+c.GetString(middlewares.RoleKey))
	})
	r.GET("/test", handlers...)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func mustToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := authUtils.GenerateAndSetToken(userID, role, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAndSetToken: %v", err)
	}
	return token
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	rec := serve(newEngine(middlewares.AuthMiddleware(secret)), httptest.NewRequest(http.MethodGet, "/test", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer nope")

	rec := serve(newEngine(middlewares.AuthMiddleware(secret)), req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid authorization token") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "user-1", "citizen"))

	rec := serve(newEngine(middlewares.AuthMiddleware(secret)), req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user-1|citizen" {
		t.Errorf("expected 200 user-1|citizen, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware_Cookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: middlewares.AuthCookieName, Value: mustToken(t, "user-2", "admin")})

	rec := serve(newEngine(middlewares.AuthMiddleware(secret)), req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user-2|admin" {
		t.Errorf("expected 200 user-2|admin, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newEngine(middlewares.OptionalAuth(secret))

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "|" {
		t.Errorf("anonymous: expected 200 with no user, got %d %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = serve(r, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "|" {
		t.Errorf("bad token: expected 200 with no user, got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "user-3", "citizen"))
	rec = serve(r, req)
	if rec.Body.String() != "user-3|citizen" {
		t.Errorf("valid token: unexpected body %q", rec.Body.String())
	}
}

func TestAdminMiddleware(t *testing.T) {
	r := newEngine(middlewares.AuthMiddleware(secret), middlewares.AdminMiddleware())

	tests := []struct {
		name string
		role string
		want int
	}{
		{"citizen", "citizen", http.StatusForbidden},
		{"admin", "admin", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", "Bearer "+mustToken(t, "user-4", tt.role))
			if rec := serve(r, req); rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	rec := serve(newEngine(middlewares.AdminMiddleware()), httptest.NewRequest(http.MethodGet, "/test", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a user, got %d", rec.Code)
	}
}

func TestRateLimiter_LocalCounter(t *testing.T) {
	r := newEngine(
		middlewares.AuthMiddleware(secret),
		middlewares.RateLimiter(middlewares.NewLocalCounter(), "test", "issues", 2, 24*time.Hour),
	)
	token := mustToken(t, "user-5", "citizen")
	other := mustToken(t, "user-6", "citizen")

	call := func(tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		return serve(r, req)
	}

	for i := 0; i < 2; i++ {
		if rec := call(token); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := call(token)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "retry_after") {
		t.Errorf("expected retry_after in body, got %q", rec.Body.String())
	}

	if rec := call(other); rec.Code != http.StatusOK {
		t.Errorf("expected another user to be unaffected, got %d", rec.Code)
	}
}

func TestLocalCounter_RejectedRequestsTakeNoToken(t *testing.T) {
	counter := middlewares.NewLocalCounter()
	ctx := context.Background()
	window := 200 * time.Millisecond

	for i := 0; i < 2; i++ {
		if ok, _, err := counter.Allow(ctx, "k", 2, window); err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v %v", i, ok, err)
		}
	}
	for i := 0; i < 5; i++ {
		ok, retryAfter, err := counter.Allow(ctx, "k", 2, window)
		if err != nil || ok {
			t.Fatalf("expected rejection, got %v %v", ok, err)
		}
		if retryAfter <= 0 || retryAfter > window/2 {
			t.Errorf("expected retryAfter within one refill interval, got %v", retryAfter)
		}
	}

	time.Sleep(window/2 + 20*time.Millisecond)
	if ok, _, err := counter.Allow(ctx, "k", 2, window); err != nil || !ok {
		t.Errorf("expected a token after one refill interval, got %v %v", ok, err)
	}
}

type failingCounter struct{}

func (failingCounter) Allow(context.Context, string, int, time.Duration) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}

func TestRateLimiter_CounterError(t *testing.T) {
	r := newEngine(
		middlewares.AuthMiddleware(secret),
		middlewares.RateLimiter(failingCounter{}, "test", "flags", 5, time.Hour),
	)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "user-7", "citizen"))

	if rec := serve(r, req); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middlewares.RequestIDKey))
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))
	if _, err := uuid.Parse(rec.Body.String()); err != nil {
		t.Fatalf("expected a generated uuid, got %q", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") != rec.Body.String() {
		t.Errorf("expected the id to be echoed in the response header")
	}

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", given)
	if rec := serve(r, req); rec.Body.String() != given {
		t.Errorf("expected the caller's id %q, got %q", given, rec.Body.String())
	}
}
