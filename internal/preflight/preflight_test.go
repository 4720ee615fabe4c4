package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agrisync/internal/config"
	"agrisync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckRemote_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := CheckRemote(context.Background(), srv.URL, "good-token")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckRemote_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckRemote(context.Background(), srv.URL, "bad-token")
	if result.Passed {
		t.Fatal("expected failure for bad token")
	}
	if !strings.Contains(result.Detail, "auth") {
		t.Fatalf("expected auth detail, got %q", result.Detail)
	}
}

func TestCheckRemote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if result := CheckRemote(context.Background(), srv.URL, ""); result.Passed {
		t.Fatal("expected failure for 502")
	}
}

func TestCheckRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := CheckRemote(context.Background(), url, "")
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
	if !strings.HasPrefix(result.Detail, "unreachable") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckRemote_MissingURL(t *testing.T) {
	if result := CheckRemote(context.Background(), "  ", "token"); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_OfflineRemoteIsNotBlocking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithRemoteURL(url))
	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[2].Name != "Remote endpoint" || results[2].Passed {
		t.Fatalf("expected failing remote check, got %+v", results[2])
	}
	if blocking := Blocking(results); len(blocking) != 0 {
		t.Fatalf("expected no blocking failures, got %+v", blocking)
	}
}

func TestRunAll_MissingDataDirBlocks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "missing")
	cfg.Remote.BaseURL = ""

	results := RunAll(context.Background(), cfg)
	if len(results) != 2 {
		t.Fatalf("expected directory checks only, got %d", len(results))
	}
	blocking := Blocking(results)
	if len(blocking) != 1 || blocking[0].Name != "Data directory" {
		t.Fatalf("unexpected blocking results %+v", blocking)
	}
}

func TestCheckNotificationsFromConfig(t *testing.T) {
	cfg := config.Default()
	if got := CheckNotificationsFromConfig(&cfg); got.Detail != "Disabled" {
		t.Fatalf("expected disabled, got %q", got.Detail)
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/farm"
	cfg.Notifications.SyncComplete = false
	got := CheckNotificationsFromConfig(&cfg)
	if !got.Passed || got.Detail != "https://ntfy.sh/farm (item failed)" {
		t.Fatalf("unexpected result %+v", got)
	}
	if got := CheckNotificationsFromConfig(nil); got.Passed {
		t.Fatal("expected nil config to fail")
	}
}
