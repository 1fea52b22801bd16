package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/config"
	"github.com/jackzampolin/cuentos/internal/export"
	"github.com/jackzampolin/cuentos/internal/jobs"
	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/pipeline"
	"github.com/jackzampolin/cuentos/internal/prompts"
	"github.com/jackzampolin/cuentos/internal/providers"
	"github.com/jackzampolin/cuentos/internal/server/endpoints"
	"github.com/jackzampolin/cuentos/internal/store"
	"github.com/jackzampolin/cuentos/internal/svcctx"
)

// Server is the main cuentos HTTP server.
// It opens the session store on start and cancels running stories on
// shutdown.
type Server struct {
	httpServer *http.Server
	store      store.Store
	jobManager *jobs.Manager
	registry   *providers.Registry
	metrics    *metrics.Recorder
	prompts    *prompts.Resolver
	exporter   *export.Exporter
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host from config)
	Host string
	// Port is the port to listen on (default: server.port from config)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Store overrides the session store selected by the config file
	Store store.Store
	// Registry overrides the provider registry built from the config file
	Registry *providers.Registry
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("server: config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := cfg.ConfigManager.Get()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = c.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = c.Server.Port
	}

	registry := cfg.Registry
	if registry == nil {
		registry = providers.NewRegistryFromConfig(c.ToProviderRegistryConfig(), cfg.Logger)
	}
	resolver := pipeline.NewPromptResolver(c.PromptOverrides(), cfg.Logger)

	s := &Server{
		store:     cfg.Store,
		registry:  registry,
		metrics:   metrics.NewRecorder(c.Server.MetricsLimit),
		prompts:   resolver,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
		exporter: export.New(export.Config{
			Author: export.DefaultAuthor,
			Logger: cfg.Logger,
		}),
	}

	// Providers and prompt overrides follow the config file
	if cfg.Registry == nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		resolver.SetOverrides(c.PromptOverrides())
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Init opens the session store and starts the job manager. Story endpoints
// answer 503 until it succeeds. Start calls it.
func (s *Server) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobManager != nil {
		return nil
	}

	c := s.configMgr.Get()
	if s.store == nil {
		st, err := store.New(store.Config{
			Type:          c.Store.Type,
			TTL:           c.Server.SessionTTLDuration(),
			RedisAddr:     c.Store.RedisAddr,
			RedisPassword: config.ResolveEnvVars(c.Store.RedisPassword),
			RedisDB:       c.Store.RedisDB,
			Logger:        s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		s.store = st
	}
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("session store is unreachable: %w", err)
		}
	}

	mgr, err := jobs.NewManager(jobs.Config{
		Store:   s.store,
		Factory: s.orchestrator,
		Logger:  s.logger,
	})
	if err != nil {
		return err
	}
	s.jobManager = mgr

	s.services = &svcctx.Services{
		Jobs:     mgr,
		Exporter: s.exporter,
		Registry: s.registry,
		Metrics:  s.metrics,
		Config:   s.configMgr,
		Logger:   s.logger,
	}
	s.logger.Info("story services ready", "store", c.Store.Type, "default_strategy", c.DefaultStrategy)
	return nil
}

// orchestrator builds the pipeline for a strategy from the live config.
func (s *Server) orchestrator(strategy string) (string, *pipeline.Orchestrator, error) {
	return pipeline.FromConfig(s.configMgr.Get(), s.registry, s.prompts, s.metrics, strategy, s.logger)
}

// Start initializes services and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Init(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server, cancels running stories and closes the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.Close(shutdownCtx); err != nil {
		s.logger.Error("service shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

// Close cancels running stories and closes the session store.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	mgr, st := s.jobManager, s.store
	s.jobManager, s.services, s.store = nil, nil, nil
	s.mu.Unlock()

	var errs []error
	if mgr != nil {
		if err := mgr.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stories did not stop: %w", err))
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the routed handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Metrics returns the pipeline call recorder.
func (s *Server) Metrics() *metrics.Recorder {
	return s.metrics
}

// Jobs returns the job manager, or nil before Init.
func (s *Server) Jobs() *jobs.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobManager
}

// Routes lists the registered routes.
func (s *Server) Routes() []string {
	return s.endpointRegistry.Routes()
}

// withServices wraps a handler to enrich the request context with services.
// Before Init only the registry and config are attached.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()
		if services == nil {
			services = &svcctx.Services{Registry: s.registry, Metrics: s.metrics, Config: s.configMgr, Logger: s.logger}
		}
		next.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})
}

// requireInit is middleware that ensures the story services are running.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.JobsFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
