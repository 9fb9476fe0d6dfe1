package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bloodbridge/ui-gateway/config"
)

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		Auth: config.AuthConfig{
			Mode: config.AuthModeMock,
			DevAuth: config.DevAuthConfig{
				Email:    "dev@example.com",
				Password: "devpass",
				Name:     "Dev User",
			},
		},
		Backend: config.BackendConfig{BaseURL: "http://localhost:5000"},
		HTTP:    config.HTTPConfig{BaseURL: "http://localhost:8080"},
	}
	cfg.Sanitize()
	return cfg
}

func TestNewServicesWithoutRedis(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	services, err := NewServices(&ServiceDeps{
		Config: testConfig(),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}

	if services.Auth == nil {
		t.Fatal("NewServices() auth service is nil")
	}
	if services.Sessions == nil {
		t.Fatal("NewServices() session manager is nil")
	}
	if services.Backend == nil {
		t.Fatal("NewServices() backend client is nil")
	}

	id, store := services.Sessions.Issue(context.Background())
	if id == "" || store == nil {
		t.Fatalf("Issue() = (%q, %v), want id and store", id, store)
	}
	if got, ok := services.Sessions.Get(context.Background(), id); !ok || got != store {
		t.Fatalf("Get(%q) = (%v, %v), want original store", id, got, ok)
	}
}

func TestNewServicesRequiresBackendURL(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.BaseURL = ""

	if _, err := NewServices(&ServiceDeps{Config: cfg}); err == nil {
		t.Fatal("NewServices() expected error for missing backend URL")
	}
}

func TestBuildObservabilityDisabled(t *testing.T) {
	obs := buildObservability(nil, config.ObservabilityConfig{})
	if obs.MetricsSink != nil {
		t.Fatalf("buildObservability() sink = %v, want nil", obs.MetricsSink)
	}
}

func TestNewHTTPServerServesHealthz(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	services, err := NewServices(&ServiceDeps{
		Config: testConfig(),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}

	cfg := testConfig()
	cfg.HTTP.Addr = ""
	server := NewHTTPServer(&HTTPServerConfig{
		Config:   cfg,
		Services: services,
		Logger:   logger,
	})

	if server.Addr != ":8080" {
		t.Fatalf("server.Addr = %q, want :8080", server.Addr)
	}

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("BACKEND_BASE_URL", "http://backend.internal:5000")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Auth.Mode != config.AuthModeMock {
		t.Fatalf("Auth.Mode = %q, want mock", cfg.Auth.Mode)
	}
	if cfg.Backend.BaseURL != "http://backend.internal:5000" {
		t.Fatalf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Session.TTL.String() != "1h0m0s" {
		t.Fatalf("Session.TTL = %s, want 1h", cfg.Session.TTL)
	}
	if cfg.Redis.Enabled {
		t.Fatal("Redis.Enabled = true, want false")
	}
}
