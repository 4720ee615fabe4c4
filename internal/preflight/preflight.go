package preflight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"agrisync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks run concurrently and results keep a fixed order. The remote check
// is informational: an unreachable remote is the normal offline case.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	checks := []func(context.Context) Result{
		func(context.Context) Result { return CheckDirectoryAccess("Data directory", cfg.Paths.DataDir) },
		func(context.Context) Result { return CheckDirectoryAccess("Log directory", cfg.Paths.LogDir) },
	}
	if cfg.Remote.BaseURL != "" {
		checks = append(checks, func(ctx context.Context) Result {
			return CheckRemote(ctx, cfg.Remote.BaseURL, cfg.Remote.APIToken)
		})
	}

	results := make([]Result, len(checks))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, check := range checks {
		eg.Go(func() error {
			results[i] = check(egCtx)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// Blocking returns the failed results the daemon cannot run without.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Passed || r.Name == remoteCheckName {
			continue
		}
		out = append(out, r)
	}
	return out
}
