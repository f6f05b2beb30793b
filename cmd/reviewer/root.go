package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/youtube-reviewer/internal/config"
)

// commandContext carries state shared by every subcommand.
type commandContext struct {
	configPath string
	level      slog.LevelVar

	cfg    *config.Config
	logger *slog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.level.Set(cfg.Logging.SlogLevel())
	return cfg, nil
}

// initLogger installs a JSON logger writing to w at the configured level.
func (c *commandContext) initLogger(w io.Writer) *slog.Logger {
	c.logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: &c.level}))
	slog.SetDefault(c.logger)
	return c.logger
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "reviewer",
		Short:         "Structured study notes for YouTube videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine.
			_ = godotenv.Load()
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, cmd.OutOrStdout())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (default config.yaml when present)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))

	return rootCmd
}
