package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agrisync/internal/logging"
	"agrisync/internal/testsupport"
)

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "agrisync-1.log")
	second := filepath.Join(dir, "agrisync-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "daemon.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "agrisync-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agrisync.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Fatal("expected pid contents")
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be ignored: %v", err)
	}
}

func TestLogPreflightReportsBlockingFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Remote.BaseURL = ""
	if blocking := logPreflight(context.Background(), logging.NewNop(), cfg); len(blocking) != 0 {
		t.Fatalf("expected clean preflight, got %+v", blocking)
	}

	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "gone")
	blocking := logPreflight(context.Background(), logging.NewNop(), cfg)
	if len(blocking) != 1 || blocking[0].Name != "Log directory" {
		t.Fatalf("unexpected blocking results %+v", blocking)
	}
}
