package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/cookie-auth-gateway/app"
	"github.com/upb/cookie-auth-gateway/config"
	"github.com/upb/cookie-auth-gateway/routes"
)

func TestMain(m *testing.M) {
	// Setup
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "error")

	// Run tests
	code := m.Run()

	// Teardown
	os.Exit(code)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			RequestTimeout:  5 * time.Second,
		},
		Credentials: config.CredentialConfig{
			PrivateKey:      "0123456789abcdef0123456789abcdef",
			AuthorizedUsers: []string{"alice@example.com"},
		},
		Google: config.GoogleConfig{
			JWKSURL:       config.DefaultJWKSURL,
			CacheTTL:      time.Hour,
			HTTPTimeout:   time.Second,
			VerifyTimeout: time.Second,
		},
		Cookies: config.CookieConfig{
			OpaqueName:   config.DefaultOpaqueCookie,
			ExternalName: config.DefaultExternalCookie,
		},
		Observability: config.ObservabilityConfig{LogLevel: "error", LogFormat: "json"},
	}
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "info")
		t.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "invalid")
		t.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("LOG_FORMAT", "")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr error
	}{
		{"no flags", nil, "", nil},
		{"long flag", []string{"--config-file", "/etc/videoauth.yaml"}, "/etc/videoauth.yaml", nil},
		{"short flag", []string{"-c", "videoauth.yaml"}, "videoauth.yaml", nil},
		{"help", []string{"--help"}, "", pflag.ErrHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.configFile)
		})
	}

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseFlags([]string{"--bogus"})
		assert.Error(t, err)
	})
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	srv := newServer(cfg, http.NotFoundHandler())

	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
	assert.Equal(t, 5*time.Second, srv.WriteTimeout)
}

func TestRun(t *testing.T) {
	t.Run("help exits cleanly", func(t *testing.T) {
		assert.NoError(t, run(context.Background(), []string{"--help"}))
	})

	t.Run("config error", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.yaml")
		err := run(context.Background(), []string{"-c", missing})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config file")
	})

	t.Run("serves until cancelled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "videoauth.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"private-cred-key: 0123456789abcdef0123456789abcdef\nauthorized-users: [alice@example.com]\n"), 0o600))
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := l.Addr().(*net.TCPAddr).Port
		require.NoError(t, l.Close())

		t.Setenv("SERVER_HOST", "127.0.0.1")
		t.Setenv("PORT", strconv.Itoa(port))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx, []string{"-c", path}) }()

		require.Eventually(t, func() bool {
			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
			if err != nil {
				return false
			}
			resp.Body.Close()
			return resp.StatusCode == http.StatusOK
		}, 5*time.Second, 20*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("run did not return after cancel")
		}
	})
}

func TestApplicationStartup(t *testing.T) {
	t.Run("successful startup with test dependencies", func(t *testing.T) {
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := app.NewDependencies(context.Background(), cfg, logger)
		require.NoError(t, err)

		// Setup routes
		handler := routes.SetupRoutes(deps)
		require.NotNil(t, handler)

		// Create test server
		ts := httptest.NewServer(handler)
		defer ts.Close()

		// Test health check endpoint
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		err = json.NewDecoder(resp.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, "healthy", body["data"].(map[string]interface{})["status"])

		// Unauthenticated auth subrequest
		resp2, err := http.Get(ts.URL + "/auth/check_auth")
		require.NoError(t, err)
		defer resp2.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	})
}
