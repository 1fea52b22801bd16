package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/export"
	"github.com/jackzampolin/cuentos/internal/story"
)

var (
	exportFormats  string
	exportOutDir   string
	exportStrategy string
	exportAudio    string
)

var exportCmd = &cobra.Command{
	Use:   "export <story.json>",
	Short: "Export a saved story",
	Long: `Export a story snapshot written by 'cuentos generate'.

The files are written next to the snapshot unless --out is set.

Examples:
  cuentos export ~/.cuentos/exports/El_Zorro_Valiente/story.json --format wav
  cuentos export story.json --format html --html-audio webaudio --out ./site`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		formats, err := export.ParseFormats(exportFormats)
		if err != nil {
			return err
		}
		s, err := story.ReadFile(args[0])
		if err != nil {
			return err
		}
		if !s.Ready() {
			return fmt.Errorf("%s: %w", args[0], story.ErrNotReady)
		}

		exporter, err := e.exporter(exportStrategy, exportAudio)
		if err != nil {
			return err
		}
		dir := exportOutDir
		if dir == "" {
			dir = filepath.Dir(args[0])
		}
		artifacts, err := exporter.Deliver(cmd.Context(), s, formats, export.DirSink{Dir: dir})
		if err != nil {
			return err
		}

		files := make([]string, 0, len(artifacts))
		for _, a := range artifacts {
			files = append(files, filepath.Join(dir, a.Name))
		}
		return api.Output(map[string]any{"title": s.Title, "files": files})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormats, "format", "html,epub", "Comma-separated formats: html, epub, narrated-epub, wav")
	exportCmd.Flags().StringVar(&exportOutDir, "out", "", "Output directory (default: the snapshot's directory)")
	exportCmd.Flags().StringVar(&exportStrategy, "strategy", "", "Strategy whose HTML audio mode applies (default from config)")
	exportCmd.Flags().StringVar(&exportAudio, "html-audio", "", "HTML narration: element or webaudio")
	rootCmd.AddCommand(exportCmd)
}
