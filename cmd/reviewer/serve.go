package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/youtube-reviewer/internal/config"
	"github.com/tjfontaine/youtube-reviewer/internal/phases"
	"github.com/tjfontaine/youtube-reviewer/internal/server"
	"github.com/tjfontaine/youtube-reviewer/internal/session"
	"github.com/tjfontaine/youtube-reviewer/internal/telemetry"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis phases over websockets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, cmd.OutOrStdout())
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext, logOut io.Writer) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger := ctx.initLogger(logOut)

	shutdownTracer, err := telemetry.InitTracer(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	a, err := newApp(cfg, logger, appDeps{})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		StaticDir:   cfg.Server.StaticDir,
		ServiceName: cfg.Telemetry.ServiceName,
	}, logger)

	sessions := session.NewHandler(a.registry, session.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Session.RequestTimeout,
		WriteTimeout:   cfg.Session.WriteTimeout,
	}, logger)
	sessions.Routes(srv.Router)
	advertisePhases(srv)

	if err := config.Watch(signalCtx, ctx.configPath, logger, func(c *config.Config) {
		ctx.level.Set(c.Logging.SlogLevel())
	}); err != nil {
		logger.Warn("config hot reload unavailable", slog.String("error", err.Error()))
	}

	logger.Info("reviewer starting",
		slog.String("storage", cfg.Storage.Type),
		slog.String("provider", cfg.Analysis.Provider),
		slog.String("model", cfg.Analysis.Model),
	)

	if err := srv.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("reviewer stopped")
	return nil
}

func advertisePhases(srv *server.Server) {
	for _, p := range phases.All {
		srv.Advertise("WS /ws/"+p.Slug(), fmt.Sprintf("Phase %d: %s", int(p), p))
	}
	srv.Advertise("WS /ws/phase/{phase}", "Any phase by number or name")
}
