package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/auth"
)

const testSecret = "server-test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
server:
  mode: production
backend:
  driver: memory
  seed: true
auth:
  secret: %s
  issuer: unilife-test
preferences:
  path: %s
rate_limit:
  requests_per_second: 1000
  burst: 1000
logging:
  level: error
`, testSecret, filepath.Join(dir, "prefs.yaml"))
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	srv, err := NewServer(configPath)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func call(t *testing.T, srv *Server, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode body: %v", method, path, err)
		}
	}
	return w.Code, env
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	srv := newTestServer(t)

	code, env := call(t, srv, http.MethodGet, "/api/v1/circles", "")
	assert.Equal(t, code, http.StatusUnauthorized)
	assert.Equal(t, env.Error.Code, "AUTH_008")

	code, _ = call(t, srv, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, code, http.StatusOK)
}

func TestGuestSessionFlow(t *testing.T) {
	srv := newTestServer(t)

	code, env := call(t, srv, http.MethodPost, "/api/v1/session/guest", "")
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, strings.Contains(string(env.Data), `"guest":true`), true)

	eventually(t, "seeded circles", func() bool {
		code, env := call(t, srv, http.MethodGet, "/api/v1/circles", "")
		return code == http.StatusOK && strings.Contains(string(env.Data), "demo-analisi")
	})

	code, _ = call(t, srv, http.MethodPost, "/api/v1/circles/demo-analisi/join", "")
	assert.Equal(t, code, http.StatusOK)
	eventually(t, "membership", func() bool {
		_, env := call(t, srv, http.MethodGet, "/api/v1/circles", "")
		return strings.Contains(string(env.Data), `"isMember":true`)
	})

	code, _ = call(t, srv, http.MethodPost, "/api/v1/circles/demo-analisi/messages", `{"text":"ciao"}`)
	assert.Equal(t, code, http.StatusCreated)
	code, _ = call(t, srv, http.MethodPost, "/api/v1/circles/demo-analisi/messages", `{}`)
	assert.Equal(t, code, http.StatusBadRequest)

	code, _ = call(t, srv, http.MethodPost, "/api/v1/circles/demo-analisi/announcements", `{"title":"Spam"}`)
	assert.Equal(t, code, http.StatusForbidden)

	code, _ = call(t, srv, http.MethodPost, "/api/v1/requests/demo-request/fulfill", "")
	assert.Equal(t, code, http.StatusOK)
	code, env = call(t, srv, http.MethodPost, "/api/v1/requests/demo-request/fulfill", "")
	assert.Equal(t, code, http.StatusConflict)
	assert.Equal(t, env.Error.Code, "RES_004")

	eventually(t, "study plan fallback", func() bool {
		code, env := call(t, srv, http.MethodPost, "/api/v1/requests/demo-request/study-plan", "")
		return code == http.StatusOK && strings.Contains(string(env.Data), `"text"`)
	})

	code, _ = call(t, srv, http.MethodPost, "/api/v1/session/sign-out", "")
	assert.Equal(t, code, http.StatusOK)
	code, _ = call(t, srv, http.MethodGet, "/api/v1/circles", "")
	assert.Equal(t, code, http.StatusUnauthorized)
}

func TestSignInRejectsForeignDomain(t *testing.T) {
	srv := newTestServer(t)
	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret, TokenIssuer: "unilife-test", TokenTTL: time.Hour})

	token, _, err := jwtService.IssueToken(gateway.Identity{UID: "x", Email: "x@gmail.com"})
	assert.Equal(t, err, nil)
	code, env := call(t, srv, http.MethodPost, "/api/v1/session/sign-in", fmt.Sprintf(`{"idToken":%q}`, token))
	assert.Equal(t, code, http.StatusForbidden)
	assert.Equal(t, env.Error.Code, "AUTH_002")

	token, _, err = jwtService.IssueToken(gateway.Identity{UID: "s1", Email: "Mario.Rossi@UNIKORESTUDENT.IT", DisplayName: "Mario"})
	assert.Equal(t, err, nil)
	code, env = call(t, srv, http.MethodPost, "/api/v1/session/sign-in", fmt.Sprintf(`{"idToken":%q}`, token))
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, strings.Contains(string(env.Data), `"authenticated":true`), true)

	code, _ = call(t, srv, http.MethodPost, "/api/v1/session/sign-in", `{"idToken":"garbage"}`)
	assert.Equal(t, code, http.StatusUnauthorized)
}

func TestThemeAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	code, env := call(t, srv, http.MethodGet, "/api/v1/preferences/theme", "")
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, string(env.Data), `{"theme":"light"}`)

	code, _ = call(t, srv, http.MethodPut, "/api/v1/preferences/theme", `{"theme":"dark"}`)
	assert.Equal(t, code, http.StatusOK)
	code, _ = call(t, srv, http.MethodPut, "/api/v1/preferences/theme", `{"theme":"blue"}`)
	assert.Equal(t, code, http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, strings.Contains(w.Body.String(), "go_goroutines"), true)
}
