package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/config"
	"github.com/jackzampolin/cuentos/internal/export"
	"github.com/jackzampolin/cuentos/internal/home"
	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/pipeline"
	"github.com/jackzampolin/cuentos/internal/providers"
	"github.com/jackzampolin/cuentos/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "cuentos",
	Short: "Illustrated, narrated Spanish children's stories",
	Long: `Cuentos turns a one-line idea into an illustrated, narrated children's
story in Spanish and exports it as an HTML storybook, an EPUB or a WAV
audiobook.

The pipeline:
  - Writes a title, a character description and the page texts
  - Illustrates every page (or uses placeholders)
  - Narrates every page
  - Exports HTML, EPUB, narrated EPUB (media overlays) and WAV`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := api.ParseOutputFormat(outputFormat); err != nil {
			return err
		}
		api.SetOutputFormat(outputFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.cuentos/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "cuentos home directory (default: ~/.cuentos)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default from config)",
	)

	rootCmd.AddCommand(versionCmd)
}

// env holds what most commands need: the home layout, the config, a
// logger at the configured level and a call recorder.
type env struct {
	home    *home.Dir
	config  *config.Manager
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func loadEnv() (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}

	level := logLevel
	if level == "" {
		level = mgr.Get().LogLevel
	}
	logger := newLogger(level)
	mgr.SetLogger(logger)
	return &env{home: h, config: mgr, logger: logger, metrics: metrics.NewRecorder(0)}, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// orchestrator builds the pipeline for a strategy from the loaded config.
func (e *env) orchestrator(strategy string) (string, *pipeline.Orchestrator, error) {
	cfg := e.config.Get()
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	reg := providers.NewRegistryFromConfig(cfg.ToProviderRegistryConfig(), e.logger)
	resolver := pipeline.NewPromptResolver(cfg.PromptOverrides(), e.logger)
	return pipeline.FromConfig(cfg, reg, resolver, e.metrics, strategy, e.logger)
}

// exporter returns an exporter using the strategy's HTML audio mode, or
// mode when it is set.
func (e *env) exporter(strategy, mode string) (*export.Exporter, error) {
	if mode == "" {
		if _, sc, ok := e.config.Get().GetStrategy(strategy); ok {
			mode = sc.HTMLAudio
		}
	}
	audio, err := export.ParseAudioMode(mode)
	if err != nil {
		return nil, err
	}
	return export.New(export.Config{
		AudioMode: audio,
		Author:    export.DefaultAuthor,
		Logger:    e.logger,
	}), nil
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
