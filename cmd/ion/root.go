package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edgard/ion/internal/config"
	"github.com/edgard/ion/internal/logger"
)

// app carries what the subcommands share after the root pre-run.
type app struct {
	cfgPath  string
	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "ion",
		Short:         "Chat bot runtime with pluggable command modules",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skipConfig"] == "true" {
				return nil
			}
			return a.load(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "./config.yaml", "path to configuration file")

	root.AddCommand(
		newRunCmd(a),
		newSessionCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", a.cfgPath, err)
	}
	a.cfg = cfg

	a.log, a.closeLog = logger.New(logger.Options{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     cmd.ErrOrStderr(),
	})
	a.log.Debug("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version of ion",
		Annotations: map[string]string{"skipConfig": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ion %s\n", Version)
		},
	}
}
