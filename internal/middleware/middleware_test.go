package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/carlosmourajunior/minhasfinancas/internal/config"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Get().JWTSecret = "test-secret"
}

func doRequest(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID"), "email": c.GetString("email")})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	user := &models.User{Base: models.Base{ID: "0190aaaa-0000-7000-8000-000000000001"}, Email: "ana@example.com"}
	token, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    tokenIssuer,
		},
	})
	expiredToken, _ := expired.SignedString(getJWTKey())

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	})
	foreignToken, _ := foreign.SignedString(getJWTKey())

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid_token", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing_header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "garbage_token", header: "Bearer not-a-token", wantStatus: http.StatusUnauthorized},
		{name: "expired_token", header: "Bearer " + expiredToken, wantStatus: http.StatusUnauthorized},
		{name: "foreign_issuer", header: "Bearer " + foreignToken, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			rec := doRequest(setupAuthRouter(), http.MethodGet, "/me", headers)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				body := parseBody(t, rec)
				if body["user_id"] != user.ID || body["email"] != user.Email {
					t.Errorf("unexpected context values %v", body)
				}
				return
			}
			if code := errorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %s", code)
			}
		})
	}
}

func TestScrapeAuth(t *testing.T) {
	setup := func(token string) *gin.Engine {
		r := gin.New()
		r.GET("/metrics", ScrapeAuth(token), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		return r
	}

	tests := []struct {
		name       string
		configured string
		headers    map[string]string
		wantStatus int
	}{
		{name: "open_when_unconfigured", configured: "", wantStatus: http.StatusOK},
		{name: "api_key_header", configured: "scrape", headers: map[string]string{"X-API-Key": "scrape"}, wantStatus: http.StatusOK},
		{name: "bearer_header", configured: "scrape", headers: map[string]string{"Authorization": "Bearer scrape"}, wantStatus: http.StatusOK},
		{name: "wrong_token", configured: "scrape", headers: map[string]string{"X-API-Key": "nope"}, wantStatus: http.StatusUnauthorized},
		{name: "missing_token", configured: "scrape", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(setup(tt.configured), http.MethodGet, "/metrics", tt.headers)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized && errorCode(t, rec) != "INVALID_SCRAPE_TOKEN" {
				t.Error("expected INVALID_SCRAPE_TOKEN")
			}
		})
	}
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging(), Metrics())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	t.Run("generates a request id", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/ping", nil)
		id := rec.Header().Get(requestIDHeader)
		if id == "" || rec.Body.String() != id {
			t.Errorf("expected the generated id in header and context, got %q and %q", id, rec.Body.String())
		}
	})

	t.Run("keeps the incoming request id", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/ping", map[string]string{requestIDHeader: "abc-123"})
		if rec.Header().Get(requestIDHeader) != "abc-123" {
			t.Errorf("expected abc-123, got %q", rec.Header().Get(requestIDHeader))
		}
	})

	t.Run("unmatched routes are still recorded", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/missing", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.Wrap(apperrors.ErrConsistencyViolation, errors.New("two statements for one cycle")))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusTeapot, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	rec := doRequest(r, http.MethodGet, "/app", nil)
	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "CONSISTENCY_VIOLATION" {
		t.Errorf("unexpected app error response %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(r, http.MethodGet, "/plain", nil)
	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "INTERNAL_ERROR" {
		t.Errorf("unexpected plain error response %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(r, http.MethodGet, "/written", nil)
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected the handler response to be kept, got %d", rec.Code)
	}
}
