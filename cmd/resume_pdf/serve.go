package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/compiler"
	"github.com/jonathan/resume-renderer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operational listener (/metrics, /health)",
	Long:  "Serves Prometheus metrics and health checks. When sandbox.sweep_interval is set, also sweeps orphaned sandbox containers in the background.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := newContainerLister(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	checks := map[string]server.CheckFunc{
		"templates": func(ctx context.Context) error {
			_, err := c.catalog.List(ctx, 1)
			return err
		},
		"sandbox_image": func(ctx context.Context) error {
			ok, err := engine.ImageExists(ctx, cfg.Sandbox.Image)
			if err != nil {
				return err
			}
			if !ok && !cfg.Sandbox.PullIfMissing {
				return fmt.Errorf("image %s is not present", cfg.Sandbox.Image)
			}
			return nil
		},
	}

	if cfg.Sandbox.SweepInterval > 0 {
		sweeper := compiler.NewSweeper(engine, cfg.Sandbox.OrphanMaxAge, logger)
		go sweeper.Run(ctx, cfg.Sandbox.SweepInterval)
		logger.Info("orphan sweeper enabled", zap.Duration("interval", cfg.Sandbox.SweepInterval))
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(server.Config{
		Addr:            addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Checks:          checks,
	}, logger)
	return srv.Run(ctx)
}
