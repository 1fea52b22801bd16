package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/cuentos/internal/api"
)

var ideaStrategy string

var ideaCmd = &cobra.Command{
	Use:   "idea",
	Short: "Suggest a story idea",
	Long: `Ask the text provider for a short story idea in Spanish.

The suggestion never fails: when the provider is unreachable, a fixed idea
is returned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		_, orch, err := e.orchestrator(ideaStrategy)
		if err != nil {
			return err
		}
		idea := orch.SuggestIdea(cmd.Context(), nil)
		return api.Output(map[string]string{"idea": idea})
	},
}

func init() {
	ideaCmd.Flags().StringVar(&ideaStrategy, "strategy", "", "Strategy name (default from config)")
	rootCmd.AddCommand(ideaCmd)
}
