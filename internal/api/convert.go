package api

import (
	"time"

	"devopsmirror/internal/store"
)

// FromWorkItem converts a store record to its API summary.
func FromWorkItem(item *store.WorkItem) WorkItemSummary {
	if item == nil {
		return WorkItemSummary{}
	}
	return WorkItemSummary{
		DevOpsID:     ExternalID(item.ExternalID),
		Title:        item.Title,
		CurrentState: item.CurrentState,
		LastUpdated:  formatTime(item.LastUpdated),
		CreatedAt:    formatTime(item.CreatedAt),
	}
}

// FromWorkItems converts a slice of store records, never returning nil.
func FromWorkItems(items []*store.WorkItem) []WorkItemSummary {
	out := make([]WorkItemSummary, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromWorkItem(item))
	}
	return out
}

// FromTransitions converts ledger rows, preserving order.
func FromTransitions(history []store.Transition) []Transition {
	out := make([]Transition, 0, len(history))
	for _, tr := range history {
		out = append(out, Transition{
			FromState:  tr.FromState,
			ToState:    tr.ToState,
			ChangedBy:  tr.ChangedBy,
			ChangedAt:  formatTime(tr.ChangedAt),
			RecordedAt: formatTime(tr.RecordedAt),
		})
	}
	return out
}

// FromDatabaseHealth converts store diagnostics.
func FromDatabaseHealth(h store.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		Driver:        h.Driver,
		Location:      h.Location,
		Reachable:     h.Reachable,
		SchemaVersion: h.SchemaVersion,
		WorkItems:     h.Stats.WorkItems,
		Transitions:   h.Stats.Transitions,
		Error:         h.Error,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
