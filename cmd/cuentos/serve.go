package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cuentos server",
	Long: `Start the cuentos HTTP server.

Stories are generated in the background; clients poll for progress and
download exports when the story is ready. Sessions live in memory or in
Redis, depending on store.type. Provider settings and prompt overrides are
reloaded when the config file changes.

The server provides:
  - /health                              - Basic server health check
  - /status                              - Strategies and providers
  - /api/ideas                           - Suggest a story idea
  - /api/stories                         - Start a story
  - /api/stories/{id}                    - Progress, or delete
  - /api/stories/{id}/export/{format}    - Download html, epub, narrated-epub or wav

Examples:
  cuentos serve                    # Start on the configured port
  cuentos serve --port 3000        # Start on custom port
  cuentos serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := e.home.EnsureExists(); err != nil {
			return err
		}
		e.config.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: e.config,
			Logger:        e.logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
