package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/config"
	"github.com/jackzampolin/cuentos/internal/store"
	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/svcctx"
)

// CreateStoryRequest is the body of POST /api/stories. Zero fields take
// the story defaults from the config file.
type CreateStoryRequest struct {
	Idea              string `json:"idea"`
	AgeRange          string `json:"age_range,omitempty"`
	NumPages          int    `json:"num_pages,omitempty"`
	HighQualityImages *bool  `json:"high_quality_images,omitempty"`
	Strategy          string `json:"strategy,omitempty"`
}

// Request fills in defaults and converts the body to a pipeline request.
func (b CreateStoryRequest) Request(defaults config.StoryCfg) story.Request {
	req := story.Request{
		Idea:     b.Idea,
		AgeRange: story.AgeRange(b.AgeRange),
		NumPages: b.NumPages,
		Quality:  story.QualityPlaceholder,
	}
	if req.AgeRange == "" {
		req.AgeRange = story.AgeRange(defaults.AgeRange)
	}
	if req.NumPages == 0 {
		req.NumPages = defaults.NumPages
	}
	hq := defaults.HighQualityImages
	if b.HighQualityImages != nil {
		hq = *b.HighQualityImages
	}
	if hq {
		req.Quality = story.QualityHigh
	}
	return req
}

// CreateStoryResponse is returned when a story session starts.
type CreateStoryResponse struct {
	ID       string `json:"id" yaml:"id"`
	Strategy string `json:"strategy" yaml:"strategy"`
}

// StoryResponse is the current snapshot of a story session.
type StoryResponse struct {
	ID        string             `json:"id"`
	Strategy  string             `json:"strategy,omitempty"`
	State     string             `json:"state"`
	Loading   story.LoadingState `json:"loading"`
	Title     string             `json:"title,omitempty"`
	Pages     []story.Page       `json:"pages"`
	Ready     bool               `json:"ready"`
	Error     string             `json:"error,omitempty"`
	ErrorKind story.Kind         `json:"error_kind,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func newStoryResponse(s *store.Session) StoryResponse {
	resp := StoryResponse{
		ID:        s.ID,
		Strategy:  s.Strategy,
		State:     s.State,
		Loading:   s.Loading,
		Pages:     []story.Page{},
		Ready:     s.Ready(),
		Error:     s.Error,
		ErrorKind: s.ErrorKind,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Story != nil {
		resp.Title = s.Story.Title
		resp.Pages = s.Story.Pages
	}
	return resp
}

// writeStoryError maps a classified story error to a status code and a
// localized message.
func writeStoryError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case story.KindOf(err) == story.KindValidation, story.KindOf(err) == story.KindConfig:
		status = http.StatusBadRequest
	case story.KindOf(err) == story.KindExport:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ErrorResponse{Error: story.UserMessage(err), Kind: string(story.KindOf(err))})
}

// CreateStoryEndpoint handles POST /api/stories.
type CreateStoryEndpoint struct{}

func (e *CreateStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/stories", e.handler
}

func (e *CreateStoryEndpoint) RequiresInit() bool { return true }

func (e *CreateStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var body CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx := r.Context()
	mgr := svcctx.JobsFrom(ctx)
	defaults := config.DefaultConfig().Story
	if cm := svcctx.ConfigFrom(ctx); cm != nil {
		defaults = cm.Get().Story
	}

	sess, err := mgr.Create(ctx, body.Request(defaults), body.Strategy)
	if err != nil {
		writeStoryError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, CreateStoryResponse{ID: sess.ID, Strategy: sess.Strategy})
}

func (e *CreateStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		body CreateStoryRequest
		hq   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start generating a story",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("hq") {
				body.HighQualityImages = &hq
			}
			client := api.NewClient(getServerURL())
			var resp CreateStoryResponse
			if err := client.Post(cmd.Context(), "/api/stories", body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&body.Idea, "idea", "", "Story idea (required)")
	cmd.Flags().StringVar(&body.AgeRange, "age", "", "Age range: early, middle or late")
	cmd.Flags().IntVar(&body.NumPages, "pages", 0, "Number of pages (even, 2 to 24)")
	cmd.Flags().BoolVar(&hq, "hq", false, "Generate illustrations instead of placeholders")
	cmd.Flags().StringVar(&body.Strategy, "strategy", "", "Strategy name (default from config)")
	cmd.MarkFlagRequired("idea")
	return cmd
}

// GetStoryEndpoint handles GET /api/stories/{id}.
type GetStoryEndpoint struct{}

func (e *GetStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}", e.handler
}

func (e *GetStoryEndpoint) RequiresInit() bool { return true }

func (e *GetStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, err := svcctx.JobsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStoryResponse(sess))
}

// StorySummary is the CLI view of a session; media payloads are reduced
// to flags.
type StorySummary struct {
	ID      string        `json:"id" yaml:"id"`
	State   string        `json:"state" yaml:"state"`
	Loading string        `json:"loading,omitempty" yaml:"loading,omitempty"`
	Title   string        `json:"title,omitempty" yaml:"title,omitempty"`
	Ready   bool          `json:"ready" yaml:"ready"`
	Error   string        `json:"error,omitempty" yaml:"error,omitempty"`
	Pages   []PageSummary `json:"pages,omitempty" yaml:"pages,omitempty"`
}

// PageSummary reports which media a page has.
type PageSummary struct {
	ID    int    `json:"id" yaml:"id"`
	Text  string `json:"text" yaml:"text"`
	Image bool   `json:"image" yaml:"image"`
	Audio bool   `json:"audio" yaml:"audio"`
}

// Summarize reduces a story response for display.
func Summarize(resp StoryResponse) StorySummary {
	out := StorySummary{
		ID:    resp.ID,
		State: resp.State,
		Title: resp.Title,
		Ready: resp.Ready,
		Error: resp.Error,
	}
	if resp.Loading.IsLoading {
		out.Loading = resp.Loading.Message
	}
	for _, p := range resp.Pages {
		out.Pages = append(out.Pages, PageSummary{ID: p.ID, Text: p.Text, Image: p.HasImage(), Audio: p.HasAudio()})
	}
	return out
}

func (e *GetStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a story's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StoryResponse
			if err := client.Get(cmd.Context(), "/api/stories/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(Summarize(resp))
		},
	}
}

// DeleteStoryEndpoint handles DELETE /api/stories/{id}.
type DeleteStoryEndpoint struct{}

func (e *DeleteStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/stories/{id}", e.handler
}

func (e *DeleteStoryEndpoint) RequiresInit() bool { return true }

func (e *DeleteStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.JobsFrom(r.Context()).Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Cancel and discard a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/stories/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
