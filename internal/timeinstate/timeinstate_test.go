package timeinstate_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"devopsmirror/internal/services"
	"devopsmirror/internal/store"
	"devopsmirror/internal/testsupport"
	"devopsmirror/internal/timeinstate"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func tr(id int64, from, to string, offset time.Duration) store.Transition {
	return store.Transition{ID: id, WorkItemID: 1, FromState: from, ToState: to, ChangedAt: base.Add(offset)}
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestComputeScenario(t *testing.T) {
	history := []store.Transition{
		tr(1, "New", "Active", 0),
		tr(2, "Active", "Resolved", 2*time.Hour),
	}
	now := base.Add(3 * time.Hour)

	got, err := timeinstate.Compute(history, now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := map[string]float64{"Active": 7200, "Resolved": 3600}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	got, err := timeinstate.Compute(nil, base)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil map, got %#v", got)
	}
}

func TestComputeAccumulatesRevisitedStates(t *testing.T) {
	history := []store.Transition{
		tr(1, "New", "Active", 0),
		tr(2, "Active", "Blocked", 30*time.Minute),
		tr(3, "Blocked", "Active", 45*time.Minute),
		tr(4, "Active", "Active", 50*time.Minute),
	}
	got, err := timeinstate.Compute(history, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := map[string]float64{"Active": 2700, "Blocked": 900}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeTotalsSpanHistory(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	states := []string{"New", "Active", "Blocked", "Resolved", "Closed"}
	for run := 0; run < 50; run++ {
		var (
			history []store.Transition
			offset  time.Duration
		)
		count := 1 + rng.IntN(12)
		for i := 0; i < count; i++ {
			offset += time.Duration(rng.IntN(100_000)) * time.Millisecond
			history = append(history, tr(int64(i+1), states[rng.IntN(len(states))], states[rng.IntN(len(states))], offset))
		}
		now := base.Add(offset + time.Duration(rng.IntN(10_000))*time.Millisecond)

		got, err := timeinstate.Compute(history, now)
		if err != nil {
			t.Fatalf("run %d: Compute: %v", run, err)
		}
		var sum float64
		for state, seconds := range got {
			if seconds < 0 {
				t.Fatalf("run %d: negative total for %s", run, state)
			}
			sum += seconds
		}
		want := now.Sub(history[0].ChangedAt).Seconds()
		if diff := cmp.Diff(want, sum, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Fatalf("run %d: sum mismatch (-want +got):\n%s", run, diff)
		}
		for state := range got {
			found := false
			for _, h := range history {
				if h.ToState == state {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("run %d: state %s credited but never entered", run, state)
			}
		}
	}
}

func TestComputeRejectsNegativeInterval(t *testing.T) {
	history := []store.Transition{
		tr(1, "New", "Active", time.Hour),
		tr(2, "Active", "Resolved", 0),
	}
	_, err := timeinstate.Compute(history, base.Add(2*time.Hour))
	if !errors.Is(err, services.ErrComputation) {
		t.Fatalf("expected computation error, got %v", err)
	}

	_, err = timeinstate.Compute([]store.Transition{tr(1, "New", "Active", time.Hour)}, base)
	if !errors.Is(err, services.ErrComputation) {
		t.Fatalf("expected computation error for future changed-at, got %v", err)
	}
}

func TestAggregateIsIndependentOfInsertionOrder(t *testing.T) {
	t0 := base
	t1 := base.Add(90 * time.Minute)
	t2 := base.Add(4 * time.Hour)
	now := base.Add(5 * time.Hour)

	type step struct {
		from, to string
		at       time.Time
	}
	steps := []step{{"New", "Active", t0}, {"Active", "Blocked", t1}, {"Blocked", "Resolved", t2}}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}

	var first map[string]float64
	for i, order := range orders {
		st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
		var item *store.WorkItem
		for _, idx := range order {
			s := steps[idx]
			item = testsupport.SeedTransition(t, st, "42", s.from, s.to, s.at)
		}

		agg := timeinstate.NewAggregator(st, timeinstate.WithClock(func() time.Time { return now }))
		got, err := agg.Aggregate(context.Background(), item.ID)
		if err != nil {
			t.Fatalf("order %d: Aggregate: %v", i, err)
		}
		if first == nil {
			first = got
			want := map[string]float64{"Active": 5400, "Blocked": 9000, "Resolved": 3600}
			if diff := cmp.Diff(want, got, approx); diff != "" {
				t.Fatalf("totals mismatch (-want +got):\n%s", diff)
			}
			continue
		}
		if diff := cmp.Diff(first, got, approx); diff != "" {
			t.Fatalf("order %d differs (-first +got):\n%s", i, diff)
		}
	}
}

type failingReader struct{}

func (failingReader) History(context.Context, int64) ([]store.Transition, error) {
	return nil, errors.New("disk gone")
}

func TestAggregateWrapsReaderFailure(t *testing.T) {
	_, err := timeinstate.NewAggregator(failingReader{}).Aggregate(context.Background(), 1)
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
