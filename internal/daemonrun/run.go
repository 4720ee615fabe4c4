package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"agrisync/internal/config"
	"agrisync/internal/daemon"
	"agrisync/internal/ipc"
	"agrisync/internal/kvstore"
	"agrisync/internal/logging"
	"agrisync/internal/preflight"
	"agrisync/internal/telemetry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the agrisync daemon runtime loop and blocks until the context
// is cancelled or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("agrisync-%s.log", runID))
	logger, err := logging.NewFromConfig(cfg, logPath, opts.LogLevel, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update daemon.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "agrisync-*.log", Exclude: []string{logPath}},
	)

	if blocking := logPreflight(signalCtx, logger, cfg); len(blocking) > 0 {
		return fmt.Errorf("preflight failed: %s: %s", blocking[0].Name, blocking[0].Detail)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "agrisync.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := kvstore.Open(signalCtx, cfg.DatabasePath())
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	provider, err := telemetry.Init(signalCtx, telemetry.Config{Enabled: cfg.Telemetry.Enabled})
	if err != nil {
		store.Close()
		return fmt.Errorf("init telemetry: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, daemon.WithTelemetry(provider))
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "queued items will not sync until the daemon is started"),
		)
	}

	<-signalCtx.Done()
	logger.Info("agrisync daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) []preflight.Result {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		attrs := []any{
			logging.String(logging.FieldEventType, "preflight_check"),
			logging.String("check", r.Name),
			logging.Bool("passed", r.Passed),
			logging.String("detail", r.Detail),
		}
		if r.Passed {
			logger.Info("preflight check", attrs...)
			continue
		}
		logger.Warn("preflight check failed", attrs...)
	}
	return preflight.Blocking(results)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "daemon.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
