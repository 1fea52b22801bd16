// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/cuentos/internal/config"
	"github.com/jackzampolin/cuentos/internal/export"
	"github.com/jackzampolin/cuentos/internal/jobs"
	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/providers"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Jobs     *jobs.Manager
	Exporter *export.Exporter
	Registry *providers.Registry
	Metrics  *metrics.Recorder
	Config   *config.Manager
	Logger   *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// JobsFrom extracts the story job manager from context.
func JobsFrom(ctx context.Context) *jobs.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Jobs
	}
	return nil
}

// ExporterFor returns the exporter configured for a strategy's HTML audio
// mode. It returns nil when no exporter is attached.
func ExporterFor(ctx context.Context, strategy string) *export.Exporter {
	s := ServicesFrom(ctx)
	if s == nil || s.Exporter == nil {
		return nil
	}
	if s.Config == nil {
		return s.Exporter
	}
	_, sc, ok := s.Config.Get().GetStrategy(strategy)
	if !ok {
		return s.Exporter
	}
	mode, err := export.ParseAudioMode(sc.HTMLAudio)
	if err != nil {
		return s.Exporter
	}
	return s.Exporter.WithAudioMode(mode)
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// MetricsFrom extracts the pipeline call recorder from context.
func MetricsFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
