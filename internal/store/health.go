package store

import (
	"context"
	"fmt"
	"time"
)

// Stats returns row counts for the work item and transition tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_items`).Scan(&stats.WorkItems); err != nil {
		return Stats{}, fmt.Errorf("count work items: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM state_transitions`).Scan(&stats.Transitions); err != nil {
		return Stats{}, fmt.Errorf("count transitions: %w", err)
	}
	return stats, nil
}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{Driver: s.driver, Location: s.location}
	if s.db == nil {
		health.Error = "database connection unavailable"
		return health, fmt.Errorf("check health: %s", health.Error)
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.Reachable = true

	version, err := s.readSchemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}
	health.SchemaVersion = version

	stats, err := s.Stats(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.Stats = stats
	return health, nil
}
