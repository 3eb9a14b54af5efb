// Package server provides the public entry point for initializing the
// container-assist service.
//
// All collaborators are constructed here and injected explicitly; there
// is no process-global wrapper instance. Embedders that want different
// stores or sinks can build a Server with NewWithConfig and swap the
// environment-selected backends via CASSIST_* variables.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/internal/api"
	"github.com/gambtho/container-assist/internal/api/handlers"
	"github.com/gambtho/container-assist/internal/config"
	"github.com/gambtho/container-assist/internal/metrics"
	"github.com/gambtho/container-assist/internal/notify"
	"github.com/gambtho/container-assist/internal/ops"
	"github.com/gambtho/container-assist/internal/pipeline"
	"github.com/gambtho/container-assist/internal/resources"
	"github.com/gambtho/container-assist/internal/sessions"
	"github.com/gambtho/container-assist/internal/telemetry"
	"github.com/gambtho/container-assist/pkg/contracts"
	"github.com/gambtho/container-assist/pkg/models"
)

// Server holds the initialized container-assist service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Wrapper is the enhancement pipeline, exposed for embedders that
	// call operations directly instead of over HTTP.
	Wrapper *pipeline.Wrapper

	// Registry is the per-operation configuration registry.
	Registry *config.Registry

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush
	// telemetry and close the stores.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	resourceStore, err := newResourceStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init resource store: %w", err)
	}
	sessionStore, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		resourceStore.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	defaults := config.Defaults()
	publisher := resources.NewPublisher(resourceStore, cfg.Resources.Scheme,
		defaults.Resources.DefaultTTLSeconds, defaults.Limits.MaxResourceSizeMB)

	opRegistry := ops.NewRegistry()
	ops.RegisterBuiltins(opRegistry)

	registry := config.NewRegistry(opRegistry.CategoryOf)

	m := metrics.New("cassist")

	notifier := notify.NewService(
		notify.WithFailureHook(func() { m.NotifyFailures.Inc() }))
	if cfg.Notify.WebhookURL != "" {
		notifier.RegisterChannel(models.NotificationChannel{
			Name:   "default-webhook",
			URL:    cfg.Notify.WebhookURL,
			Secret: cfg.Notify.WebhookSecret,
			Active: true,
		})
		log.Info().Str("url", cfg.Notify.WebhookURL).Msg("Progress webhook registered")
	}

	sweeper := resources.NewSweeper(resourceStore,
		time.Duration(cfg.Resources.SweepIntervalSeconds)*time.Second,
		func(n int) { m.ResourcesExpired.Add(float64(n)) })
	sweeper.Start(ctx)

	wrapper := pipeline.NewWrapper(registry, opRegistry, publisher,
		pipeline.WithProgressSink(notifier),
		pipeline.WithSessions(sessionStore),
		pipeline.WithMetrics(m),
	)

	h := handlers.New(wrapper, registry, opRegistry, publisher, sessionStore, notifier)
	router := api.NewRouter(cfg, h)

	shutdown := func(shutdownCtx context.Context) error {
		sweeper.Stop()
		closeSessions()
		if cerr := resourceStore.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close resource store")
		}
		return shutdownTelemetry(shutdownCtx)
	}

	return &Server{
		Handler:      router,
		Wrapper:      wrapper,
		Registry:     registry,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

func newResourceStore(ctx context.Context, cfg *config.Config) (resources.Store, error) {
	switch cfg.Resources.Backend {
	case "redis":
		store, err := resources.NewRedisStore(ctx, cfg.Resources.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Info().Str("backend", "redis").Msg("Resource store initialized")
		return store, nil
	case "", "memory":
		log.Info().Str("backend", "memory").Msg("Resource store initialized")
		return resources.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown resource backend %q", cfg.Resources.Backend)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config) (contracts.ExtendedSessionService, func(), error) {
	switch cfg.Sessions.Backend {
	case "postgres":
		store, err := sessions.NewPostgresStore(ctx, cfg.Sessions.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("backend", "postgres").Msg("Session store initialized")
		return store, store.Close, nil
	case "", "memory":
		log.Info().Str("backend", "memory").Msg("Session store initialized")
		return sessions.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}
