package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/export"
	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/svcctx"
)

// ExportStoryEndpoint handles GET /api/stories/{id}/export/{format}.
type ExportStoryEndpoint struct{}

func (e *ExportStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}/export/{format}", e.handler
}

func (e *ExportStoryEndpoint) RequiresInit() bool { return true }

func (e *ExportStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := svcctx.JobsFrom(ctx).Get(ctx, r.PathValue("id"))
	if err != nil {
		writeStoryError(w, err)
		return
	}
	if !sess.Ready() {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: story.UserMessage(story.ExportError(story.ErrNotReady)),
			Kind:  string(story.KindExport),
		})
		return
	}

	exporter := svcctx.ExporterFor(ctx, sess.Strategy)
	if exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exporter not configured")
		return
	}
	artifact, err := exporter.Export(ctx, sess.Story, format)
	if err != nil {
		writeStoryError(w, err)
		return
	}
	if err := (export.ResponseSink{W: w}).Deliver(ctx, artifact); err != nil {
		if logger := svcctx.LoggerFrom(ctx); logger != nil {
			logger.Warn("failed to write export", "id", sess.ID, "format", format, "error", err)
		}
	}
}

func (e *ExportStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export <id> <format>",
		Short: "Download a story export (html, epub, narrated-epub, wav)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(args[1])
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			name, data, err := client.Download(cmd.Context(), fmt.Sprintf("/api/stories/%s/export/%s", args[0], format))
			if err != nil {
				return err
			}
			if name == "" {
				name = export.Filename("", format)
			}
			path := filepath.Join(outDir, filepath.Base(name))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Printf("Downloaded to: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	return cmd
}
