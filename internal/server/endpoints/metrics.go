package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/svcctx"
)

// MetricsResponse summarizes pipeline calls.
type MetricsResponse struct {
	Summary metrics.Summary       `json:"summary" yaml:"summary"`
	Steps   []metrics.StepSummary `json:"steps" yaml:"steps"`
	Recent  []metrics.Metric      `json:"recent,omitempty" yaml:"recent,omitempty"`
}

// MetricsEndpoint handles GET /api/metrics.
// Query parameters: story, strategy, step, limit (recent calls, default 0).
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return false }

func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := metrics.Filter{
		StoryID:  q.Get("story"),
		Strategy: q.Get("strategy"),
		Step:     q.Get("step"),
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rec := svcctx.MetricsFrom(r.Context())
	resp := MetricsResponse{
		Summary: rec.GetSummary(f),
		Steps:   rec.ByStep(f),
	}
	if limit > 0 {
		resp.Recent = rec.List(f, limit)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *MetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var storyID, strategy, step string
	var limit int
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show pipeline call metrics",
		Long: `Show timing and outcome of the upstream calls made while generating
stories, grouped by pipeline step.

Examples:
  cuentos api metrics
  cuentos api metrics --story <id> --limit 10
  cuentos api metrics --step narration`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if storyID != "" {
				q.Set("story", storyID)
			}
			if strategy != "" {
				q.Set("strategy", strategy)
			}
			if step != "" {
				q.Set("step", step)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/metrics"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			client := api.NewClient(getServerURL())
			var resp MetricsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&storyID, "story", "", "Only calls for this story session")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Only calls made by this strategy")
	cmd.Flags().StringVar(&step, "step", "", "Only this step: idea, title, character, story, image or narration")
	cmd.Flags().IntVar(&limit, "limit", 0, "Include this many recent calls")
	return cmd
}
