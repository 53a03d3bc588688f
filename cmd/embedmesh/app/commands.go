// Package app provides the commands of the embedmesh CLI.
package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/embedmesh/config"
	"github.com/hupe1980/embedmesh/logging"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "embedmesh",
		Short:        "Render third-party embeds into page slots",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to configuration file (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newRenderCmd(flags))
	cmd.AddCommand(newServeCmd(flags))

	return cmd
}

// load returns the configuration and logger selected by the flags.
func (f *rootFlags) load() (*config.Config, *logging.EmbedMeshLogger, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	if f.logLevel != "" {
		if _, err := logging.ParseLevel(f.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.Logging.Level = f.logLevel
	}

	return cfg, cfg.Logger().WithComponent("cli"), nil
}
