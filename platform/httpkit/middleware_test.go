package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testAuthConfig struct {
	cronSecret string
	jwtSecret  string
}

func (c testAuthConfig) GetCronSecret() string      { return c.cronSecret }
func (c testAuthConfig) GetJWTAccessSecret() string { return c.jwtSecret }

func newProtectedEngine(cfg testAuthConfig, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handlers := append([]gin.HandlerFunc{CronOrAuth(cfg, cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"scheduler": id.IsScheduler()})
	})
	engine.POST("/run", handlers...)
	return engine
}

func signToken(t *testing.T, secret string, roles []string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   uuid.NewString(),
		"type":  "access",
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCronOrAuthAcceptsCronHeader(t *testing.T) {
	engine := newProtectedEngine(testAuthConfig{cronSecret: "cron-123", jwtSecret: "jwt"})

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set(CronSecretHeader, "cron-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCronOrAuthAcceptsCronBearer(t *testing.T) {
	engine := newProtectedEngine(testAuthConfig{cronSecret: "cron-123", jwtSecret: "jwt"})

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set("Authorization", "Bearer cron-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCronOrAuthRejectsWrongSecret(t *testing.T) {
	engine := newProtectedEngine(testAuthConfig{cronSecret: "cron-123", jwtSecret: "jwt"})

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set(CronSecretHeader, "nope")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCronOrAuthDisabledSecretFallsBackToJWT(t *testing.T) {
	engine := newProtectedEngine(testAuthConfig{cronSecret: "", jwtSecret: "jwt"})

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set(CronSecretHeader, "")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "jwt", nil))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid JWT, got %d", rec.Code)
	}
}

func TestRequireRoleRejectsUserWithoutRole(t *testing.T) {
	cfg := testAuthConfig{cronSecret: "cron-123", jwtSecret: "jwt"}
	engine := newProtectedEngine(cfg, RequireRole("admin"))

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "jwt", []string{"user"}))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireRoleAllowsScheduler(t *testing.T) {
	cfg := testAuthConfig{cronSecret: "cron-123", jwtSecret: "jwt"}
	engine := newProtectedEngine(cfg, RequireRole("admin"))

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set(CronSecretHeader, "cron-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for scheduler, got %d", rec.Code)
	}
}
