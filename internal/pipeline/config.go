package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/cuentos/internal/config"
	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/prompts"
	"github.com/jackzampolin/cuentos/internal/providers"
	"github.com/jackzampolin/cuentos/internal/story"
)

// NewPromptResolver returns a resolver holding every embedded prompt plus
// the configured overrides.
func NewPromptResolver(overrides map[string]string, logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(logger)
	RegisterPrompts(r)
	if len(overrides) > 0 {
		r.SetOverrides(overrides)
	}
	return r
}

// ConfigFrom maps the pipeline section of the config file.
func ConfigFrom(p config.PipelineCfg, logger *slog.Logger) Config {
	return Config{
		Policy:            FailurePolicy(p.MediaFailurePolicy),
		RetryAttempts:     p.RetryAttempts,
		RetryDelay:        p.RetryDelayDuration(),
		MaxRetryDelay:     p.MaxRetryDelayDuration(),
		RequestsPerSecond: p.RequestsPerSecond,
		Burst:             p.Burst,
		Logger:            logger,
	}
}

// FromConfig builds an orchestrator for the named strategy. An empty name
// selects default_strategy. It returns the resolved strategy name. rec may
// be nil.
func FromConfig(cfg *config.Config, reg *providers.Registry, resolver *prompts.Resolver, rec *metrics.Recorder, strategy string, logger *slog.Logger) (string, *Orchestrator, error) {
	name, sc, ok := cfg.GetStrategy(strategy)
	if !ok {
		return name, nil, story.ConfigError(fmt.Errorf("unknown strategy %q", name))
	}
	st, err := StrategyFromRegistry(reg, name, sc.Text, sc.Image, sc.Narration, resolver, logger)
	if err != nil {
		return name, nil, err
	}
	pc := ConfigFrom(cfg.Pipeline, logger)
	pc.Metrics = rec
	o, err := New(st, pc)
	if err != nil {
		return name, nil, err
	}
	return name, o, nil
}
