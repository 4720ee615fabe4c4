package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agrisync/internal/config"
	"agrisync/internal/ipc"
	"agrisync/internal/queue"
	"agrisync/internal/testsupport"
)

func TestDeriveLogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/agrisync"

	if got := DeriveLogDir("/run/agrisync/agrisync.lock", &cfg); got != "/run/agrisync" {
		t.Fatalf("expected lock dir, got %q", got)
	}
	if got := DeriveLogDir("", &cfg); got != "/var/log/agrisync" {
		t.Fatalf("expected config log dir, got %q", got)
	}
	if got := DeriveLogDir("", nil); got != "" {
		t.Fatalf("expected empty dir, got %q", got)
	}
}

func TestForceKillProcessRejectsUnknownPID(t *testing.T) {
	dir := t.TempDir()
	if _, err := ForceKillProcess(filepath.Join(dir, "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without pid")
	}

	pidPath := filepath.Join(dir, "agrisync.pid")
	if err := os.WriteFile(pidPath, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ForceKillProcess(pidPath, "", os.Getpid())
	if err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal to kill self, got %v", err)
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "agrisync.sock")
	if _, err := StopAndTerminate(socket, nil, time.Millisecond); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	alive, pid, err := ProcessInfo(socket)
	if alive || pid != 0 || err != nil {
		t.Fatalf("expected no process, got alive=%v pid=%d err=%v", alive, pid, err)
	}
	if err := WaitForShutdown(socket, time.Millisecond); err != nil {
		t.Fatalf("expected immediate shutdown, got %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Remote.BaseURL = ""
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewQueue(t, store)
	testsupport.MustEnqueue(t, mgr, queue.KindMarketQuery, `{"commodity":"onion"}`)
	testsupport.MustEnqueue(t, mgr, queue.KindDiagnosis, `{"prompt":"leaf curl"}`)

	snapshot, err := BuildStatusSnapshot(context.Background(), filepath.Join(t.TempDir(), "none.sock"), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Reachable || snapshot.Status.Running {
		t.Fatal("expected unreachable daemon")
	}
	if snapshot.Status.Queue.Pending != 2 || snapshot.Status.Queue.Total != 2 {
		t.Fatalf("expected offline queue counts, got %+v", snapshot.Status.Queue)
	}
	if snapshot.SystemChecks[0].Severity != "warn" || !strings.Contains(snapshot.SystemChecks[0].Detail, "Not running") {
		t.Fatalf("unexpected daemon line %+v", snapshot.SystemChecks[0])
	}
	if len(snapshot.Paths) != 2 || snapshot.Paths[0].Severity != "ok" {
		t.Fatalf("unexpected path checks %+v", snapshot.Paths)
	}
}

func TestBuildSystemChecksReachable(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.BaseURL = ""
	status := ipc.StatusResponse{Running: true, PID: 42}
	status.Network.Online = false
	status.Sync.State = "idle"
	status.Sync.Schedule = "@every 5m"

	lines := BuildSystemChecks(context.Background(), &cfg, status, true)
	labels := make(map[string]string, len(lines))
	for _, line := range lines {
		labels[line.Label] = line.Severity + ":" + line.Detail
	}
	if labels["AgriSync"] != "ok:Running (pid 42)" {
		t.Fatalf("unexpected daemon line %q", labels["AgriSync"])
	}
	if !strings.HasPrefix(labels["Network"], "warn:Offline") {
		t.Fatalf("unexpected network line %q", labels["Network"])
	}
	if labels["Sync"] != "ok:idle, schedule @every 5m" {
		t.Fatalf("unexpected sync line %q", labels["Sync"])
	}
	if labels["Remote"] != "warn:Missing URL" {
		t.Fatalf("unexpected remote line %q", labels["Remote"])
	}
	if labels["Notifications"] != "info:Not configured" {
		t.Fatalf("unexpected notifications line %q", labels["Notifications"])
	}
}
