package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = time.RFC3339Nano

// Ingest statuses.
const (
	StatusOK               = "ok"
	StatusDuplicateIgnored = "duplicate_ignored"
)

// ExternalID is a caller-defined work item id. Canonical base-10 integers are
// encoded as JSON numbers; other ids as strings.
type ExternalID string

// MarshalJSON implements json.Marshaler.
func (id ExternalID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ExternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("external id: %w", err)
	}
	*id = ExternalID(n.String())
	return nil
}

// IngestResult reports whether a notification added a transition.
type IngestResult struct {
	Status    string `json:"status"`
	Processed bool   `json:"processed"`
}

// Transition is one ledger entry in a work item detail.
type Transition struct {
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
	ChangedBy  string `json:"changed_by"`
	ChangedAt  string `json:"changed_at"`
	RecordedAt string `json:"recorded_at,omitempty"`
}

// WorkItemSummary is the latest known state of a work item.
type WorkItemSummary struct {
	DevOpsID     ExternalID `json:"devops_id"`
	Title        string     `json:"title"`
	CurrentState string     `json:"current_state"`
	LastUpdated  string     `json:"last_updated"`
	CreatedAt    string     `json:"created_at,omitempty"`
}

// WorkItemDetail is a summary plus its transitions ordered by changed-at.
type WorkItemDetail struct {
	WorkItemSummary
	Transitions []Transition `json:"transitions"`
}

// TimeInState carries cumulative seconds spent in each entered state.
type TimeInState struct {
	DevOpsID          ExternalID         `json:"devops_id"`
	Title             string             `json:"title"`
	CurrentState      string             `json:"current_state"`
	StateTimesSeconds map[string]float64 `json:"state_times_seconds"`
}

// WorkItemList wraps a collection of work item summaries.
type WorkItemList struct {
	Items []WorkItemSummary `json:"items"`
}

// DatabaseHealth mirrors store diagnostics.
type DatabaseHealth struct {
	Driver        string `json:"driver"`
	Location      string `json:"location"`
	Reachable     bool   `json:"reachable"`
	SchemaVersion int    `json:"schema_version"`
	WorkItems     int64  `json:"work_items"`
	Transitions   int64  `json:"transitions"`
	Error         string `json:"error,omitempty"`
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status   string         `json:"status"`
	Database DatabaseHealth `json:"database"`
}

// ErrorResponse is the body of a failed HTTP request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
	// Retryable is set when resending the same request may succeed.
	Retryable bool `json:"retryable,omitempty"`
}
