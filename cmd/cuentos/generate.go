package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/export"
	"github.com/jackzampolin/cuentos/internal/home"
	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/pipeline"
	"github.com/jackzampolin/cuentos/internal/server/endpoints"
	"github.com/jackzampolin/cuentos/internal/story"
)

var (
	genRequest  endpoints.CreateStoryRequest
	genHQ       bool
	genOutDir   string
	genFormats  string
	genAudioFmt string
)

// generateResult is printed when a story is finished.
type generateResult struct {
	Title    string   `json:"title" yaml:"title"`
	Strategy string   `json:"strategy" yaml:"strategy"`
	Pages    int      `json:"pages" yaml:"pages"`
	Dir      string   `json:"dir" yaml:"dir"`
	Files    []string `json:"files" yaml:"files"`

	Calls []metrics.StepSummary `json:"calls" yaml:"calls"`
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a story and export it",
	Long: `Generate runs the full pipeline for one idea: title, character, page
texts, then an illustration and a narration per page.

The story snapshot is saved as story.json next to the exports, so it can
be exported again later with 'cuentos export'.

Examples:
  cuentos generate --idea "Un dragón que tiene miedo a la oscuridad"
  cuentos generate --idea "Un gatito astronauta" --age early --pages 4 --hq
  cuentos generate --idea "Un robot jardinero" --format html,narrated-epub,wav --out ./robot`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv()
		if err != nil {
			return err
		}
		formats, err := export.ParseFormats(genFormats)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("hq") {
			genRequest.HighQualityImages = &genHQ
		}
		req := genRequest.Request(e.config.Get().Story)
		if err := req.Validate(); err != nil {
			return err
		}

		name, orch, err := e.orchestrator(genRequest.Strategy)
		if err != nil {
			return err
		}
		exporter, err := e.exporter(name, genAudioFmt)
		if err != nil {
			return err
		}

		s, err := orch.Run(ctx, req, progressPrinter())
		if err != nil {
			return err
		}

		dir := genOutDir
		if dir == "" {
			dir = e.home.StoryExportDir(export.Basename(s.Title))
		}
		storyPath := filepath.Join(dir, home.StoryFileName)
		if err := story.WriteFile(storyPath, s); err != nil {
			return err
		}

		artifacts, err := exporter.Deliver(ctx, s, formats, export.DirSink{Dir: dir})
		if err != nil {
			return err
		}

		result := generateResult{
			Title:    s.Title,
			Strategy: name,
			Pages:    len(s.Pages),
			Dir:      dir,
			Files:    []string{storyPath},
			Calls:    e.metrics.ByStep(metrics.Filter{}),
		}
		for _, a := range artifacts {
			result.Files = append(result.Files, filepath.Join(dir, a.Name))
		}
		return api.Output(result)
	},
}

// progressPrinter writes each new loading message to stderr.
func progressPrinter() pipeline.Observer {
	var last string
	return func(ev pipeline.Event) {
		if !ev.Loading.IsLoading || ev.Loading.Message == last {
			return
		}
		last = ev.Loading.Message
		printf("%s\n", last)
	}
}

func init() {
	generateCmd.Flags().StringVar(&genRequest.Idea, "idea", "", "Story idea (required)")
	generateCmd.Flags().StringVar(&genRequest.AgeRange, "age", "", "Age range: early, middle or late (default from config)")
	generateCmd.Flags().IntVar(&genRequest.NumPages, "pages", 0, "Number of pages, even and between 2 and 24 (default from config)")
	generateCmd.Flags().BoolVar(&genHQ, "hq", false, "Generate illustrations instead of placeholders")
	generateCmd.Flags().StringVar(&genRequest.Strategy, "strategy", "", "Strategy name (default from config)")
	generateCmd.Flags().StringVar(&genOutDir, "out", "", "Output directory (default: ~/.cuentos/exports/<title>)")
	generateCmd.Flags().StringVar(&genFormats, "format", "html,epub", "Comma-separated formats: html, epub, narrated-epub, wav")
	generateCmd.Flags().StringVar(&genAudioFmt, "html-audio", "", "HTML narration: element or webaudio (default from strategy)")
	generateCmd.MarkFlagRequired("idea")

	rootCmd.AddCommand(generateCmd)
}
