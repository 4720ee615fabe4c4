package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agrisync/internal/api"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Network", statusWarn, "Offline", false)
	if line != "  Network:         [WARN] Offline" {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("Network", statusOK, "Online", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected colored line, got %q", colored)
	}
	if got := renderStatusLine("Remote", statusInfo, "", false); !strings.HasSuffix(got, "[INFO]") {
		t.Fatalf("expected bare label, got %q", got)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{
		"ok":     statusOK,
		" WARN ": statusWarn,
		"error":  statusError,
		"info":   statusInfo,
		"":       statusInfo,
	}
	for input, want := range cases {
		if got := statusKindFromSeverity(input); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestShouldColorizeNonTerminal(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected no color for non-file writer")
	}
}

func TestBuildQueueListRowsOldestFirst(t *testing.T) {
	items := []api.QueueItem{
		{ID: "0192aaaa-bbbb-7ccc-8ddd-000000000002", Kind: "market_query", Status: "failed", AttemptCount: 2, LastError: "remote_failure: 502", EnqueuedAt: "2026-03-02T08:00:00Z"},
		{ID: "0192aaaa-bbbb-7ccc-8ddd-000000000001", Kind: "diagnosis", Status: "pending", EnqueuedAt: "2026-03-01T08:00:00Z"},
	}
	rows := buildQueueListRows(items)
	if len(rows) != 2 {
		t.Fatalf("expected two rows, got %d", len(rows))
	}
	if rows[0][0] != "00000001" || rows[0][1] != "Diagnosis" {
		t.Fatalf("expected oldest item first, got %v", rows[0])
	}
	if rows[1][2] != "Failed" || rows[1][3] != "2" || rows[1][5] != "remote_failure" {
		t.Fatalf("unexpected failed row %v", rows[1])
	}
	if rows[1][4] != "2026-03-02 08:00" {
		t.Fatalf("unexpected enqueue time %q", rows[1][4])
	}
}

func TestBuildQueueHealthRowsSkipsZeroCounts(t *testing.T) {
	if rows := buildQueueHealthRows(api.QueueHealth{}); rows != nil {
		t.Fatalf("expected nil rows for empty queue, got %v", rows)
	}
	rows := buildQueueHealthRows(api.QueueHealth{Total: 3, Pending: 2, Failed: 1})
	if len(rows) != 2 || rows[0][0] != "Pending" || rows[1][0] != "Failed" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"in_flight":      "In Flight",
		"advisory_query": "Advisory Query",
		" pending ":      "Pending",
		"":               "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestReadPayload(t *testing.T) {
	if _, err := readPayload(nil, nil, ""); err == nil {
		t.Fatal("expected missing payload to fail")
	}
	if _, err := readPayload(nil, []string{`{}`}, "x.json"); err == nil {
		t.Fatal("expected inline and file together to fail")
	}
	if _, err := readPayload(nil, []string{`{"commodity"`}, ""); err == nil {
		t.Fatal("expected invalid JSON to fail")
	}

	got, err := readPayload(strings.NewReader(`{"commodity":"onion"}`), nil, "-")
	if err != nil {
		t.Fatalf("stdin payload: %v", err)
	}
	if string(got) != `{"commodity":"onion"}` {
		t.Fatalf("unexpected payload %s", got)
	}

	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(`{"prompt":"leaf curl"}`), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	got, err = readPayload(nil, nil, path)
	if err != nil {
		t.Fatalf("file payload: %v", err)
	}
	if !strings.Contains(string(got), "leaf curl") {
		t.Fatalf("unexpected payload %s", got)
	}
}

func TestQueueItemDetailLinesMarksParkedItems(t *testing.T) {
	item := api.QueueItem{ID: "abc", Kind: "market_query", Status: "failed", LastError: "validation_error: commodity rejected", Parked: true}
	joined := strings.Join(queueItemDetailLines(item), "\n")
	if !strings.Contains(joined, "agrisync queue retry") {
		t.Fatalf("expected parked hint, got:\n%s", joined)
	}
	item.Parked = false
	if strings.Contains(strings.Join(queueItemDetailLines(item), "\n"), "Retry:") {
		t.Fatal("unexpected retry hint for a retryable failure")
	}
}
