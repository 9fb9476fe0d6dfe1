package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/bloodbridge/ui-gateway/config"
	redisadapter "github.com/bloodbridge/ui-gateway/internal/adapters/redis"
	"github.com/bloodbridge/ui-gateway/internal/backend"
	"github.com/bloodbridge/ui-gateway/internal/observability/statsd"
	"github.com/bloodbridge/ui-gateway/internal/ports"
	"github.com/bloodbridge/ui-gateway/internal/roles"
	"github.com/bloodbridge/ui-gateway/internal/service"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth          *service.AuthService
	Sessions      *session.Manager
	Roles         *roles.Resolver
	Backend       *backend.Client
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "bloodbridge",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// NewServices wires the auth stack, backend client, session manager and
// role resolver into a ServiceContainer.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability)

	stack := BuildAuthStack(AuthStackConfig{
		Auth:   appCfg.Auth,
		Logger: logger,
	})

	backendClient, err := backend.NewClient(backend.Options{
		BaseURL: appCfg.Backend.BaseURL,
		Tokens:  stack.Tokens,
		Timeout: appCfg.Backend.Timeout,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create backend client: %w", err)
	}

	sessions := session.NewManager(session.ManagerOptions{
		Persistence: sessionPersistence(deps.RedisClient),
		Prober:      stack.Prober,
		TTL:         appCfg.Session.TTL,
		Metrics:     observability.MetricsSink,
		Logger:      logger,
	})

	resolver := roles.NewResolver(roles.Options{
		Source:  backendClient,
		Logger:  logger,
		Metrics: observability.MetricsSink,
	})

	// Every issued or restored session gets a role lookup attached; the
	// role lands in the store asynchronously.
	sessions.Watch(func(_ string, store *session.Store) {
		resolver.Attach(context.Background(), store)
	})

	authService := service.NewAuthService(service.AuthServiceOptions{
		Provider:  stack.Provider,
		Federated: stack.Federated,
		Directory: backendClient,
		Metrics:   observability.MetricsSink,
		Logger:    logger,
	})

	return ServiceContainer{
		Auth:          authService,
		Sessions:      sessions,
		Roles:         resolver,
		Backend:       backendClient,
		Observability: observability,
	}, nil
}

// sessionPersistence returns a nil interface, not a typed nil, when redis
// is disabled so the session manager falls back to memory-only sessions.
//
//nolint:ireturn // nil-or-adapter selection requires the interface type.
func sessionPersistence(client redis.UniversalClient) ports.SessionPersistence {
	if client == nil {
		return nil
	}
	return redisadapter.NewSessionStoreWithPrefix(client, sessionKeyPrefix)
}

// RunConfig contains configuration for running the gateway.
type RunConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// Run starts the HTTP server and blocks until a shutdown signal arrives or
// the server fails.
func Run(cfg *RunConfig) error {
	if cfg == nil {
		return errors.New("run config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := NewHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down services...")
		return ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  server,
			Logger:  logger,
		})
	})

	return group.Wait()
}
