// Command coordinatord runs the Rift Coordinator (spec.md §4.1): the
// authoritative HTTP+WebSocket server backing every Daemon and rift.
// Flag/config wiring follows the teacher's cmd/bd daemon_start.go command
// shape (cobra command, config file + env override, signal-aware shutdown).
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

	"github.com/riftsync/rift/internal/blobstore"
	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/coordinator"
	"github.com/riftsync/rift/internal/store/sqlstore"
	"github.com/riftsync/rift/internal/telemetry"
)

const (
	shutdownGrace = 10 * time.Second
	version       = "0.1.0"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "coordinatord",
	Short: "Run the Rift Coordinator server",
	RunE:  runCoordinator,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to coordinator.toml (defaults baked in if omitted)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "coordinatord:", err)
		os.Exit(1)
	}
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadCoordinator(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel, cfg.LogJSON, cfg.LogFile)

	if err := telemetry.Init(cmd.Context(), "coordinatord", version); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	st, err := sqlstore.Open(cmd.Context(), sqlstore.Backend(cfg.StorageBackend), cfg.StorageDSN)
	if err != nil {
		return fmt.Errorf("open store (%s): %w", cfg.StorageBackend, err)
	}
	defer st.Close()

	blobs, err := blobstore.NewFSStore(cfg.BlobRoot)
	if err != nil {
		return fmt.Errorf("open blob store at %s: %w", cfg.BlobRoot, err)
	}

	srv := coordinator.New(cfg, telemetry.Wrap(st), blobs, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down coordinator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newLogger(level string, jsonLogs bool, file string) *slog.Logger {
	out := os.Stderr
	if file != "" {
		if f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if jsonLogs {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
