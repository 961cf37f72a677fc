// Package timeinstate computes how long a work item has spent in each state
// from its ordered transition history.
package timeinstate

import (
	"context"
	"fmt"
	"time"

	"devopsmirror/internal/services"
	"devopsmirror/internal/store"
)

// HistoryReader supplies a work item's transitions ordered by changed-at.
type HistoryReader interface {
	History(ctx context.Context, workItemID int64) ([]store.Transition, error)
}

// Compute credits each interval between consecutive transitions to the state
// entered at its start. The final interval runs until now. History must be
// ordered by ChangedAt; a negative interval (unordered input or a changed-at
// after now) fails with services.ErrComputation.
func Compute(history []store.Transition, now time.Time) (map[string]float64, error) {
	totals := make(map[string]float64, len(history))
	for i, tr := range history {
		end := now
		if i+1 < len(history) {
			end = history[i+1].ChangedAt
		}
		span := end.Sub(tr.ChangedAt)
		if span < 0 {
			return nil, services.Wrap(services.ErrComputation, "timeinstate", "compute",
				fmt.Sprintf("negative interval in state %q starting %s (%s)", tr.ToState, tr.ChangedAt.UTC().Format(time.RFC3339Nano), span), nil)
		}
		totals[tr.ToState] += span.Seconds()
	}
	return totals, nil
}

// Aggregator loads history and computes per-state totals against a clock.
type Aggregator struct {
	reader HistoryReader
	now    func() time.Time
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source used to close the final interval.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator builds an Aggregator backed by reader.
func NewAggregator(reader HistoryReader, opts ...Option) *Aggregator {
	a := &Aggregator{reader: reader, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate computes time in state for one work item.
func (a *Aggregator) Aggregate(ctx context.Context, workItemID int64) (map[string]float64, error) {
	history, err := a.reader.History(ctx, workItemID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "timeinstate", "load history", "", err)
	}
	return Compute(history, a.now())
}
