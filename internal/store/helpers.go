package store

import (
	"errors"
	"fmt"
	"time"
)

// timestampLayout is fixed width so text comparison orders chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const workItemColumns = "id, external_id, title, current_state, last_updated, created_at"

func scanWorkItem(scanner rowScanner) (*WorkItem, error) {
	var (
		item           WorkItem
		lastUpdatedRaw string
		createdRaw     string
		err            error
	)
	if err := scanner.Scan(&item.ID, &item.ExternalID, &item.Title, &item.CurrentState, &lastUpdatedRaw, &createdRaw); err != nil {
		return nil, err
	}
	if item.LastUpdated, err = parseTime(lastUpdatedRaw); err != nil {
		return nil, fmt.Errorf("work item %d last_updated: %w", item.ID, err)
	}
	if item.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, fmt.Errorf("work item %d created_at: %w", item.ID, err)
	}
	return &item, nil
}

const transitionColumns = "id, work_item_id, from_state, to_state, changed_by, changed_at, recorded_at"

func scanTransition(scanner rowScanner) (Transition, error) {
	var (
		tr          Transition
		changedRaw  string
		recordedRaw string
		err         error
	)
	if err := scanner.Scan(&tr.ID, &tr.WorkItemID, &tr.FromState, &tr.ToState, &tr.ChangedBy, &changedRaw, &recordedRaw); err != nil {
		return Transition{}, err
	}
	if tr.ChangedAt, err = parseTime(changedRaw); err != nil {
		return Transition{}, fmt.Errorf("transition %d changed_at: %w", tr.ID, err)
	}
	if tr.RecordedAt, err = parseTime(recordedRaw); err != nil {
		return Transition{}, fmt.Errorf("transition %d recorded_at: %w", tr.ID, err)
	}
	return tr, nil
}
