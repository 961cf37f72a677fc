package store

import "time"

// WorkItem is the latest known summary of one external work item.
type WorkItem struct {
	ID           int64
	ExternalID   string
	Title        string
	CurrentState string
	LastUpdated  time.Time
	CreatedAt    time.Time
}

// Transition is one immutable entry in a work item's state ledger.
type Transition struct {
	ID         int64
	WorkItemID int64
	FromState  string
	ToState    string
	ChangedBy  string
	ChangedAt  time.Time
	RecordedAt time.Time
}

// Upserted reports the outcome of UpsertWorkItem.
type Upserted struct {
	Item    *WorkItem
	Created bool
	// Previous holds the row as it was before the write; nil when Created.
	Previous *WorkItem
}

// Stats summarizes table sizes for diagnostics.
type Stats struct {
	WorkItems   int64
	Transitions int64
}

// DatabaseHealth describes connectivity and schema state.
type DatabaseHealth struct {
	Driver        string
	Location      string
	Reachable     bool
	SchemaVersion int
	Stats         Stats
	Error         string
}
