package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Health describes the state of the backing database file.
type Health struct {
	Path           string `json:"path"`
	Exists         bool   `json:"exists"`
	Readable       bool   `json:"readable"`
	SchemaVersion  int    `json:"schema_version"`
	IntegrityCheck bool   `json:"integrity_ok"`
	Records        int    `json:"records"`
	Error          string `json:"error,omitempty"`
}

// CheckHealth returns diagnostic information about the database.
func (s *SQLite) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{Path: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.Exists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.Readable = true

	if health.SchemaVersion, err = s.readSchemaVersion(connCtx); err != nil {
		health.Error = err.Error()
		return health, err
	}

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM records").Scan(&health.Records); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count records: %w", err)
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA quick_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	return health, nil
}
