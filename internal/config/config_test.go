package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with secret from env", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", "s3cret")
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Equal(t, err, nil)
		assert.Equal(t, cfg.Backend.Driver, DriverMemory)
		assert.Equal(t, cfg.Auth.AllowedEmailDomain, "@unikorestudent.it")
		assert.Equal(t, cfg.Assistant.Model, "gemini-3-flash-preview")
		assert.Equal(t, cfg.Auth.Secret, "s3cret")
	})

	t.Run("file then env override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "server:\n  port: \"9000\"\nbackend:\n  driver: sqlite\n  sqlite_path: /tmp/u.db\nauth:\n  secret: from-file\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("SERVER_PORT", "9100")
		t.Setenv("RATE_LIMIT_RPS", "2.5")

		cfg, err := LoadConfig(path)
		assert.Equal(t, err, nil)
		assert.Equal(t, cfg.Server.Port, "9100")
		assert.Equal(t, cfg.Backend.Driver, DriverSQLite)
		assert.Equal(t, cfg.Auth.Secret, "from-file")
		assert.Equal(t, cfg.RateLimit.RequestsPerSecond, 2.5)
	})

	t.Run("fallback env name", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", "x")
		t.Setenv("API_KEY", "from-api-key")
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Equal(t, err, nil)
		assert.Equal(t, cfg.Assistant.APIKey, "from-api-key")

		t.Setenv("GEMINI_API_KEY", "from-gemini")
		cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Equal(t, err, nil)
		assert.Equal(t, cfg.Assistant.APIKey, "from-gemini")
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := map[string]map[string]string{
			"missing secret": {},
			"bad driver":     {"AUTH_SECRET": "x", "BACKEND_DRIVER": "mongo"},
			"bad domain":     {"AUTH_SECRET": "x", "AUTH_ALLOWED_EMAIL_DOMAIN": "unikore.it"},
			"bad timeout":    {"AUTH_SECRET": "x", "ASSISTANT_TIMEOUT": "soon"},
		}
		for name, env := range cases {
			t.Run(name, func(t *testing.T) {
				os.Unsetenv("AUTH_SECRET")
				os.Unsetenv("JWT_SECRET")
				for k, v := range env {
					t.Setenv(k, v)
				}
				_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
				assert.NotEqual(t, err, nil)
			})
		}
	})
}
