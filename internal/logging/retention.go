package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionTarget names a directory and filename pattern to prune. Exclude
// lists paths that must survive regardless of age, such as the active log.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

type logFile struct {
	path    string
	modTime time.Time
}

// CleanupOldLogs removes files matched by targets whose modification time is
// older than retentionDays and returns how many were removed. A retentionDays
// value of 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for _, target := range targets {
		for _, file := range matchLogFiles(target) {
			if !file.modTime.Before(cutoff) {
				continue
			}
			if err := os.Remove(file.path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", file.path),
					Error(err),
					String(FieldErrorHint, "check permissions on log_dir"),
					String(FieldImpact, "old log file stays on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Info("log pruned", String("path", file.path), String(FieldEventType, "log_pruned"))
			}
		}
	}
	return removed
}

// matchLogFiles lists regular files in target.Dir matching its pattern,
// oldest first, skipping excluded paths.
func matchLogFiles(target RetentionTarget) []logFile {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	skip := make(map[string]bool, len(target.Exclude))
	for _, path := range target.Exclude {
		if abs := absPath(path); abs != "" {
			skip[abs] = true
		}
	}
	pattern := strings.TrimSpace(target.Pattern)

	var files []logFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := absPath(filepath.Join(dir, entry.Name()))
		if skip[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: path, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	return files
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
