package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"agrisync/internal/api"
	"agrisync/internal/config"
	"agrisync/internal/ipc"
	"agrisync/internal/kvstore"
	"agrisync/internal/logging"
	"agrisync/internal/offlinecache"
	"agrisync/internal/preflight"
	"agrisync/internal/queue"
)

// Snapshot is the combined daemon and host view rendered by `agrisync status`.
type Snapshot struct {
	Status       ipc.StatusResponse
	Reachable    bool
	SystemChecks []api.StatusLine
	Paths        []api.StatusLine
}

// BuildStatusSnapshot collects daemon status and falls back to reading the
// queue database directly when the daemon is not reachable.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &Snapshot{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Status = *resp
			snapshot.Reachable = true
		}
	}

	if !snapshot.Reachable {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		snapshot.Status.DatabasePath = cfg.DatabasePath()
		snapshot.Status.LockFilePath = cfg.LockPath()
		if health, readErr := readOfflineQueue(queryCtx, cfg); readErr == nil {
			snapshot.Status.Queue = health.queue
			snapshot.Status.UnreadResults = health.unread
		}
	}

	snapshot.SystemChecks = BuildSystemChecks(ctx, cfg, snapshot.Status, snapshot.Reachable)
	snapshot.Paths = BuildPathChecks(cfg)
	return snapshot, nil
}

type offlineQueue struct {
	queue  api.QueueHealth
	unread int
}

func readOfflineQueue(ctx context.Context, cfg *config.Config) (offlineQueue, error) {
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		return offlineQueue{}, err
	}
	store, err := kvstore.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return offlineQueue{}, err
	}
	defer store.Close()

	health, err := queue.NewManager(store, logging.NewNop()).Health(ctx)
	if err != nil {
		return offlineQueue{}, err
	}
	unread, err := offlinecache.NewInbox(store).Count(ctx)
	if err != nil {
		return offlineQueue{}, err
	}
	return offlineQueue{queue: api.FromQueueHealth(health), unread: unread}, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, status ipc.StatusResponse, reachable bool) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 5)
	switch {
	case status.Running:
		lines = append(lines, api.StatusLine{Label: "AgriSync", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
	case reachable:
		lines = append(lines, api.StatusLine{Label: "AgriSync", Severity: "warn", Detail: "Daemon idle (run `agrisync start`)"})
	default:
		lines = append(lines, api.StatusLine{Label: "AgriSync", Severity: "warn", Detail: "Not running (run `agrisync start`)"})
	}

	if reachable {
		if status.Network.Online {
			lines = append(lines, api.StatusLine{Label: "Network", Severity: "ok", Detail: "Online"})
		} else {
			lines = append(lines, api.StatusLine{Label: "Network", Severity: "warn", Detail: "Offline (items will sync on reconnect)"})
		}
		sync := status.Sync
		detail := fmt.Sprintf("%s, schedule %s", sync.State, sync.Schedule)
		severity := "ok"
		if sync.LastError != "" {
			severity = "warn"
			detail = fmt.Sprintf("%s (last error: %s)", detail, sync.LastError)
		}
		lines = append(lines, api.StatusLine{Label: "Sync", Severity: severity, Detail: detail})
	}

	remote := preflight.CheckRemoteFromConfig(ctx, cfg)
	if remote.Passed {
		lines = append(lines, api.StatusLine{Label: "Remote", Severity: "ok", Detail: remote.Detail})
	} else {
		lines = append(lines, api.StatusLine{Label: "Remote", Severity: "warn", Detail: remote.Detail})
	}

	notify := preflight.CheckNotificationsFromConfig(cfg)
	if strings.EqualFold(notify.Detail, "Disabled") {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	} else {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "ok", Detail: notify.Detail})
	}

	return lines
}

// BuildPathChecks resolves data and log directory readiness.
func BuildPathChecks(cfg *config.Config) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 2)
	for _, dir := range []struct {
		label string
		path  string
	}{
		{label: "Data", path: cfg.Paths.DataDir},
		{label: "Logs", path: cfg.Paths.LogDir},
	} {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, api.StatusLine{
			Label:    dir.label,
			Severity: severity,
			Detail:   result.Detail,
		})
	}
	return lines
}
