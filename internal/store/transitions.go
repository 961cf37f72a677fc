package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordTransitionIfNew appends a transition unless one with the same work
// item, from state, to state, and changed-at already exists. It reports
// whether a row was written. The unique index on those four columns backs
// the lookup, so concurrent duplicates also resolve to false.
func (t *Tx) RecordTransitionIfNew(ctx context.Context, workItemID int64, fromState, toState, changedBy string, changedAt time.Time) (bool, error) {
	changedAtText := formatTime(changedAt)

	var existing int64
	err := t.q().QueryRowContext(ctx, t.store.rebind(`SELECT id FROM state_transitions
		WHERE work_item_id = ? AND from_state = ? AND to_state = ? AND changed_at = ?`),
		workItemID, fromState, toState, changedAtText,
	).Scan(&existing)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("lookup transition: %w", err)
	}

	res, err := t.q().ExecContext(ctx, t.store.rebind(`INSERT INTO state_transitions
		(work_item_id, from_state, to_state, changed_by, changed_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (work_item_id, from_state, to_state, changed_at) DO NOTHING`),
		workItemID, fromState, toState, changedBy, changedAtText, formatTime(t.now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert transition: %w", err)
	}
	return affected > 0, nil
}

// History returns every transition of a work item ordered by changed-at,
// with insertion order breaking ties.
func (s *Store) History(ctx context.Context, workItemID int64) ([]Transition, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+transitionColumns+` FROM state_transitions
		WHERE work_item_id = ? ORDER BY changed_at ASC, id ASC`), workItemID)
	if err != nil {
		return nil, fmt.Errorf("transition history: %w", err)
	}
	defer rows.Close()

	history := make([]Transition, 0)
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("transition history: %w", err)
		}
		history = append(history, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transition history: %w", err)
	}
	return history, nil
}
