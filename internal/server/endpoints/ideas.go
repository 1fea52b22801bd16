package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/svcctx"
)

// SuggestIdeaRequest is the optional body of POST /api/ideas.
type SuggestIdeaRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

// SuggestIdeaResponse carries one suggested story idea.
type SuggestIdeaResponse struct {
	Idea string `json:"idea" yaml:"idea"`
}

// SuggestIdeaEndpoint handles POST /api/ideas.
type SuggestIdeaEndpoint struct{}

func (e *SuggestIdeaEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/ideas", e.handler
}

func (e *SuggestIdeaEndpoint) RequiresInit() bool { return true }

func (e *SuggestIdeaEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var body SuggestIdeaRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	idea, err := svcctx.JobsFrom(r.Context()).SuggestIdea(r.Context(), body.Strategy)
	if err != nil {
		writeStoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestIdeaResponse{Idea: idea})
}

func (e *SuggestIdeaEndpoint) Command(getServerURL func() string) *cobra.Command {
	var body SuggestIdeaRequest
	cmd := &cobra.Command{
		Use:   "idea",
		Short: "Suggest a story idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SuggestIdeaResponse
			if err := client.Post(cmd.Context(), "/api/ideas", body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&body.Strategy, "strategy", "", "Strategy name (default from config)")
	return cmd
}
