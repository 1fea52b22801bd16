package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/cuentos/internal/api"
	"github.com/jackzampolin/cuentos/internal/config"
	"github.com/jackzampolin/cuentos/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration",
	Long: `Inspect and edit the cuentos configuration file.

Examples:
  cuentos config init                                        # Write ~/.cuentos/config.yaml
  cuentos config list                                        # Documented keys and values
  cuentos config set pipeline.media_failure_policy abort
  cuentos config set prompts.title "Escribe un título corto para: {{.Idea}}"
  cuentos config reset pipeline.media_failure_policy`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		path := h.ConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if !configForce && fileExists(path) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		printf("wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		return api.Output(e.config.Get())
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documented keys with their effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		return api.Output(e.config.Entries())
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		v, ok := e.config.Lookup(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", config.ErrInvalidKey, args[0])
		}
		return api.Output(map[string]any{args[0]: v})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key and save the file",
	Long: `Set a key and save the config file.

The value is parsed as YAML, so numbers and booleans keep their type.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := e.config.Set(args[0], parseValue(args[1])); err != nil {
			return err
		}
		printf("%s updated in %s\n", args[0], e.config.ConfigFile())
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Restore a key to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := e.config.Reset(args[0]); err != nil {
			return err
		}
		printf("%s reset in %s\n", args[0], e.config.ConfigFile())
		return nil
	},
}

// parseValue decodes a command-line value as a YAML scalar. Anything else
// is kept as the raw string, so prompts containing ": " survive.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case string, bool, int, float64:
		return v
	}
	return s
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	rootCmd.AddCommand(configCmd)
}
