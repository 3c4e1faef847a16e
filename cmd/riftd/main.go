// Command riftd runs the per-workstation Rift Daemon (spec.md §4.2): the
// file watcher and loopback IPC server the rift CLI beams projects through.
// Command shape grounded in the teacher's cmd/bd daemon_start.go.
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

	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/daemon"
	"github.com/riftsync/rift/internal/telemetry"
)

const (
	shutdownGrace = 10 * time.Second
	version       = "0.1.0"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "riftd",
	Short: "Run the Rift Daemon",
	RunE:  runDaemon,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to daemon.toml (defaults baked in if omitted)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "riftd:", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDaemon(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel, cfg.LogJSON, cfg.LogFile)

	if err := telemetry.Init(cmd.Context(), "riftd", version); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	d := daemon.New(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
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
