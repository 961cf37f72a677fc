package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertWorkItem creates the work item for externalID or overwrites its
// title, state, and last-updated time. The latest write wins regardless of
// changedAt ordering; Previous lets callers notice a regression.
func (t *Tx) UpsertWorkItem(ctx context.Context, externalID, title, newState string, changedAt time.Time) (Upserted, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Upserted{}, errors.New("upsert work item: external id is required")
	}

	previous, err := getByExternalID(ctx, t.store, t.q(), externalID)
	if err != nil {
		return Upserted{}, fmt.Errorf("upsert work item: %w", err)
	}

	query := t.store.rebind(`INSERT INTO work_items (external_id, title, current_state, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			title = excluded.title,
			current_state = excluded.current_state,
			last_updated = excluded.last_updated
		RETURNING ` + workItemColumns)

	row := t.q().QueryRowContext(ctx, query,
		externalID,
		title,
		newState,
		formatTime(changedAt),
		formatTime(t.now()),
	)
	item, err := scanWorkItem(row)
	if err != nil {
		return Upserted{}, fmt.Errorf("upsert work item: %w", err)
	}
	return Upserted{Item: item, Created: previous == nil, Previous: previous}, nil
}

// GetByExternalID returns the work item for externalID, or nil when none exists.
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*WorkItem, error) {
	item, err := getByExternalID(ensureContext(ctx), s, s.db, strings.TrimSpace(externalID))
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

func getByExternalID(ctx context.Context, s *Store, q querier, externalID string) (*WorkItem, error) {
	row := q.QueryRowContext(ctx, s.rebind(`SELECT `+workItemColumns+` FROM work_items WHERE external_id = ?`), externalID)
	item, err := scanWorkItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List returns work items ordered by most recent update. A limit <= 0
// returns every item.
func (s *Store) List(ctx context.Context, limit int) ([]*WorkItem, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + workItemColumns + ` FROM work_items ORDER BY last_updated DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list work items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return items, nil
}
