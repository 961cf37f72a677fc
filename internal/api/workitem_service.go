package api

import (
	"context"
	"log/slog"
	"time"

	"devopsmirror/internal/logging"
	"devopsmirror/internal/metrics"
	"devopsmirror/internal/services"
	"devopsmirror/internal/store"
	"devopsmirror/internal/timeinstate"
	"devopsmirror/internal/webhook"
)

const component = "workitems"

// WorkItemStore abstracts the persistence the service needs.
type WorkItemStore interface {
	InTx(ctx context.Context, fn func(*store.Tx) error, opts ...store.TxOption) error
	GetByExternalID(ctx context.Context, externalID string) (*store.WorkItem, error)
	History(ctx context.Context, workItemID int64) ([]store.Transition, error)
	List(ctx context.Context, limit int) ([]*store.WorkItem, error)
	CheckHealth(ctx context.Context) (store.DatabaseHealth, error)
}

// IngestObserver receives ingest outcomes, typically a metrics collector.
type IngestObserver interface {
	ObserveIngest(outcome string)
	ObserveStaleSummary()
}

// WorkItemService implements ingestion and queries over mirrored work items.
type WorkItemService struct {
	store      WorkItemStore
	aggregator *timeinstate.Aggregator
	observer   IngestObserver
	logger     *slog.Logger
	now        func() time.Time
}

// ServiceOption customizes a WorkItemService.
type ServiceOption func(*WorkItemService)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *WorkItemService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an ingest observer.
func WithObserver(observer IngestObserver) ServiceOption {
	return func(s *WorkItemService) {
		s.observer = observer
	}
}

// WithClock overrides the clock used for recording times and for closing
// the open time-in-state interval.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *WorkItemService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWorkItemService constructs a WorkItemService around the provided store.
func NewWorkItemService(st WorkItemStore, opts ...ServiceOption) *WorkItemService {
	if st == nil {
		return nil
	}
	svc := &WorkItemService{store: st, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = logging.NewNop()
	}
	svc.logger = logging.NewComponentLogger(svc.logger, component)
	svc.aggregator = timeinstate.NewAggregator(st, timeinstate.WithClock(svc.now))
	return svc
}

// Ingest validates a raw notification, upserts the work item summary, and
// records the transition unless it was already recorded. Upsert and ledger
// write commit together.
func (s *WorkItemService) Ingest(ctx context.Context, raw []byte) (IngestResult, error) {
	event, err := webhook.Normalize(raw)
	if err != nil {
		s.observe(metrics.OutcomeInvalid)
		logging.WithContext(ctx, s.logger).Info("webhook rejected",
			logging.String(logging.FieldEventType, "webhook_rejected"),
			logging.Error(err),
		)
		return IngestResult{}, err
	}

	ctx = services.WithExternalID(ctx, event.ExternalID)
	logger := logging.WithContext(ctx, s.logger)

	var (
		upserted store.Upserted
		created  bool
	)
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		var txErr error
		upserted, txErr = tx.UpsertWorkItem(ctx, event.ExternalID, event.Title, event.ToState, event.ChangedAt)
		if txErr != nil {
			return txErr
		}
		created, txErr = tx.RecordTransitionIfNew(ctx, upserted.Item.ID, event.FromState, event.ToState, event.ChangedBy, event.ChangedAt)
		return txErr
	}, store.WithRecordClock(s.now))
	if err != nil {
		s.observe(metrics.OutcomeFailed)
		wrapped := services.Wrap(services.ErrStorage, component, "ingest", "persist transition", err)
		logging.ErrorWithContext(logger, "ingest failed", "ingest_failed",
			logging.String(logging.FieldErrorHint, "check database connectivity; the sender may retry safely"),
			logging.Error(err),
		)
		return IngestResult{}, wrapped
	}

	if prev := upserted.Previous; prev != nil && event.ChangedAt.Before(prev.LastUpdated) {
		if s.observer != nil {
			s.observer.ObserveStaleSummary()
		}
		logging.WarnWithContext(logger, "summary overwritten by older event", "stale_summary_update",
			logging.String("previous_state", prev.CurrentState),
			logging.Time("previous_last_updated", prev.LastUpdated),
			logging.String("new_state", event.ToState),
			logging.Time("changed_at", event.ChangedAt),
			logging.String(logging.FieldImpact, "current_state reflects the latest arrival, not the latest event"),
			logging.String(logging.FieldErrorHint, "a newer notification for this item will restore the summary"),
		)
	}

	if !created {
		s.observe(metrics.OutcomeDuplicate)
		logger.Debug("duplicate transition ignored",
			logging.String(logging.FieldEventType, "transition_duplicate"),
			logging.String("from_state", event.FromState),
			logging.String("to_state", event.ToState),
		)
		return IngestResult{Status: StatusDuplicateIgnored, Processed: false}, nil
	}

	s.observe(metrics.OutcomeRecorded)
	logger.Info("transition recorded",
		logging.String(logging.FieldEventType, "transition_recorded"),
		logging.String("from_state", event.FromState),
		logging.String("to_state", event.ToState),
		logging.String("changed_by", event.ChangedBy),
		logging.Time("changed_at", event.ChangedAt),
		logging.Bool("created_item", upserted.Created),
	)
	return IngestResult{Status: StatusOK, Processed: true}, nil
}

// Describe returns a work item with its transitions ordered by changed-at.
func (s *WorkItemService) Describe(ctx context.Context, externalID string) (*WorkItemDetail, error) {
	item, err := s.lookup(ctx, externalID, "describe")
	if err != nil {
		return nil, err
	}
	history, err := s.store.History(ctx, item.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "describe", "load history", err)
	}
	return &WorkItemDetail{
		WorkItemSummary: FromWorkItem(item),
		Transitions:     FromTransitions(history),
	}, nil
}

// TimeInState returns cumulative seconds per entered state, closing the
// open interval at the service clock.
func (s *WorkItemService) TimeInState(ctx context.Context, externalID string) (*TimeInState, error) {
	item, err := s.lookup(ctx, externalID, "time in state")
	if err != nil {
		return nil, err
	}
	totals, err := s.aggregator.Aggregate(ctx, item.ID)
	if err != nil {
		if services.Kind(err) == services.KindComputation {
			logging.ErrorWithContext(logging.WithContext(services.WithExternalID(ctx, item.ExternalID), s.logger),
				"time in state computation failed", "time_in_state_failed",
				logging.Alert("ledger_inconsistent"),
				logging.String(logging.FieldErrorHint, "inspect the transition history for this item"),
				logging.Error(err),
			)
		}
		return nil, err
	}
	return &TimeInState{
		DevOpsID:          ExternalID(item.ExternalID),
		Title:             item.Title,
		CurrentState:      item.CurrentState,
		StateTimesSeconds: totals,
	}, nil
}

// List returns work item summaries, most recently updated first.
func (s *WorkItemService) List(ctx context.Context, limit int) ([]WorkItemSummary, error) {
	items, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "list", "", err)
	}
	return FromWorkItems(items), nil
}

// Health reports database diagnostics. Status is "healthy" when the database
// answers, "unhealthy" otherwise; the error is returned alongside.
func (s *WorkItemService) Health(ctx context.Context) (HealthStatus, error) {
	db, err := s.store.CheckHealth(ctx)
	status := HealthStatus{Status: "healthy", Database: FromDatabaseHealth(db)}
	if err != nil {
		status.Status = "unhealthy"
		return status, services.Wrap(services.ErrStorage, component, "health", "", err)
	}
	return status, nil
}

func (s *WorkItemService) lookup(ctx context.Context, externalID, operation string) (*store.WorkItem, error) {
	externalID = webhook.CanonicalExternalID(externalID)
	if externalID == "" {
		return nil, services.Wrap(services.ErrValidation, component, operation, "work item id is required", nil)
	}
	item, err := s.store.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, operation, "", err)
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, component, operation, "work item "+externalID+" not found", nil)
	}
	return item, nil
}

func (s *WorkItemService) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveIngest(outcome)
	}
}
