package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyhole-dev/keyhole/internal/config"
	"github.com/keyhole-dev/keyhole/pkg/devserver"
	"github.com/keyhole-dev/keyhole/pkg/store"
	"github.com/keyhole-dev/keyhole/pkg/telemetry"
)

// demoReducer drives the built-in counter store served by `keyhole serve`:
// {type: "increment"}, {type: "decrement"}, {type: "reset"} and
// {type: "label", payload: "..."}.
func demoReducer(s store.State, a store.Action) store.State {
	switch a.Kind() {
	case "increment":
		return s.With("counter", s["counter"].(int)+1)
	case "decrement":
		return s.With("counter", s["counter"].(int)-1)
	case "reset":
		return s.With("counter", 0)
	case "label":
		if label, ok := a.(store.Act).Payload.(string); ok {
			return s.With("label", label)
		}
		return s
	default:
		return s
	}
}

func serveCmd() *cobra.Command {
	var host string
	var port int
	var dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inspection server over a demo store",
		Long: `Runs the keyhole inspection server over a built-in counter store.

Endpoints:
  GET  /state     current state as JSON
  POST /dispatch  dispatch {"type": "...", "payload": ...}
  GET  /ws        stream committed transitions
  GET  /metrics   Prometheus metrics (if enabled)
  GET  /healthz   liveness check

Configuration is read from keyhole.json in the working directory;
--host and --port override it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger := newLogger(cfg)
			slog.SetDefault(logger)

			opts := []store.Option{store.WithLogger(logger)}
			if cfg.Metrics.Enabled {
				opts = append(opts, store.WithInstrumentation(telemetry.Instrument(
					telemetry.WithNamespace(cfg.Metrics.Namespace),
				)))
			}

			st, err := store.New(demoReducer, store.State{"counter": 0, "label": "demo"}, opts...)
			if err != nil {
				return err
			}

			srv := devserver.New(st, devserver.Config{
				Addr:           cfg.Addr(),
				AllowAnyOrigin: cfg.Server.AllowAnyOrigin,
				Logger:         logger,
				EnableMetrics:  cfg.Metrics.Enabled,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			fmt.Printf("keyhole inspection server on http://%s\n", cfg.Addr())
			fmt.Printf("try: curl -X POST -d '{\"type\":\"increment\"}' http://%s/dispatch\n", cfg.Addr())

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "listen host")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "listen port")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory containing keyhole.json")
	return cmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.SlogLevel())); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	if cfg.Name != "" {
		logger = logger.With("app", cfg.Name)
	}
	return logger
}
