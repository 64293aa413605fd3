// Package cli implements the docqa command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/logging"
)

// app carries what every subcommand needs once the root has loaded configuration.
type app struct {
	cfgPath  string
	cfg      *config.AppConfig
	logger   *slog.Logger
	closeLog func() error
}

func (a *app) load() error {
	_ = godotenv.Load()
	var err error
	path := a.cfgPath
	if path == "" {
		a.cfg, path, err = config.LoadDefault()
	} else {
		a.cfg, err = config.Load(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.logger, a.closeLog, err = logging.New(a.cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)
	a.logger.Debug("config loaded", "path", path)
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "docqa answers questions about uploaded documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to YAML config file (defaults to ./config.yaml or ~/.config/docqa/config.yaml)")
	root.AddCommand(newServeCmd(a), newIndexCmd(a), newAskCmd(a), newTUICmd(a))
	return root
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorf("error: %v", err))
		os.Exit(1)
	}
}
