package preflight

import (
	"context"
	"path/filepath"

	"devopsmirror/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The listener check is skipped when checkBind is false, which callers use
// when a server is already expected to hold the address.
func RunAll(ctx context.Context, cfg *config.Config, checkBind bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		results = append(results, CheckPostgresReachable(ctx, cfg.Storage.PostgresDSN))
	default:
		results = append(results, CheckDirectoryAccess("SQLite directory", filepath.Dir(cfg.Storage.SQLitePath)))
	}

	if checkBind {
		results = append(results, CheckBindAvailable(cfg.HTTP.Bind))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
