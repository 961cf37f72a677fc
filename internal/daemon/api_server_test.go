package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"devopsmirror/internal/api"
	"devopsmirror/internal/config"
	"devopsmirror/internal/metrics"
	"devopsmirror/internal/store"
	"devopsmirror/internal/testsupport"
)

func newTestHandler(t *testing.T, opts ...testsupport.ConfigOption) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	collector := metrics.New(st)
	svc := api.NewWorkItemService(st, api.WithObserver(collector))
	return newAPIServer(cfg, svc, collector, nil).routes(), cfg
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestWebhookFlowMatchesExistingClients(t *testing.T) {
	h, _ := newTestHandler(t)
	first := testsupport.WorkItemUpdated(t, 42, "New", "Active", "2024-01-15T09:00:00Z", testsupport.WithTitle("Fix login bug"))
	second := testsupport.WorkItemUpdated(t, 42, "Active", "Resolved", "2024-01-15T11:00:00Z", testsupport.WithTitle("Fix login bug"))

	w := do(t, h, http.MethodPost, "/webhook/workitem/updated", first)
	if w.Code != http.StatusOK {
		t.Fatalf("first webhook status %d: %s", w.Code, w.Body.String())
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok","processed":true}` {
		t.Fatalf("first webhook body %s", got)
	}
	do(t, h, http.MethodPost, "/webhook/workitem/updated", second)

	w = do(t, h, http.MethodPost, "/webhook/workitem/updated", first)
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"duplicate_ignored","processed":false}` {
		t.Fatalf("duplicate webhook body %s", got)
	}

	w = do(t, h, http.MethodGet, "/workitems/42", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detail status %d", w.Code)
	}
	detail := decode[map[string]any](t, w)
	if detail["devops_id"] != float64(42) || detail["current_state"] != "Resolved" || detail["title"] != "Fix login bug" {
		t.Fatalf("unexpected detail: %#v", detail)
	}
	transitions, _ := detail["transitions"].([]any)
	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %#v", detail["transitions"])
	}
	firstTransition := transitions[0].(map[string]any)
	if diff := cmp.Diff("2024-01-15T09:00:00Z", firstTransition["changed_at"]); diff != "" {
		t.Fatalf("changed_at mismatch: %s", diff)
	}

	w = do(t, h, http.MethodGet, "/workitems/42/time-in-state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("time-in-state status %d", w.Code)
	}
	tis := decode[api.TimeInState](t, w)
	if tis.StateTimesSeconds["Active"] != 7200 {
		t.Fatalf("unexpected active seconds: %v", tis.StateTimesSeconds)
	}
	if _, ok := tis.StateTimesSeconds["Resolved"]; !ok {
		t.Fatalf("expected Resolved entry: %v", tis.StateTimesSeconds)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/webhook/workitem/updated", []byte(`{"resource":{}}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid payload status %d", w.Code)
	}
	errResp := decode[api.ErrorResponse](t, w)
	if errResp.Kind != "validation" || errResp.RequestID == "" {
		t.Fatalf("unexpected error body: %#v", errResp)
	}

	if w := do(t, h, http.MethodGet, "/workitems/999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown item status %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/workitems/999/time-in-state", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown item time-in-state status %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/webhook/workitem/updated", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET webhook status %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/workitems?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status %d", w.Code)
	}
}

// unavailableStore fails every call the way a dropped database connection does.
type unavailableStore struct{}

var errDatabaseDown = errors.New("dial tcp 127.0.0.1:5432: connection refused")

func (unavailableStore) InTx(context.Context, func(*store.Tx) error, ...store.TxOption) error {
	return errDatabaseDown
}

func (unavailableStore) GetByExternalID(context.Context, string) (*store.WorkItem, error) {
	return nil, errDatabaseDown
}

func (unavailableStore) History(context.Context, int64) ([]store.Transition, error) {
	return nil, errDatabaseDown
}

func (unavailableStore) List(context.Context, int) ([]*store.WorkItem, error) {
	return nil, errDatabaseDown
}

func (unavailableStore) CheckHealth(context.Context) (store.DatabaseHealth, error) {
	return store.DatabaseHealth{}, errDatabaseDown
}

func TestStorageFailuresAreMarkedRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newAPIServer(cfg, api.NewWorkItemService(unavailableStore{}), metrics.New(nil), nil).routes()
	body := testsupport.WorkItemUpdated(t, 7, "New", "Active", "2024-01-15T09:00:00Z")

	w := do(t, h, http.MethodPost, "/webhook/workitem/updated", body)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
	errResp := decode[api.ErrorResponse](t, w)
	if !errResp.Retryable || errResp.Kind != "storage" {
		t.Fatalf("unexpected error body: %#v", errResp)
	}

	w = do(t, h, http.MethodPost, "/webhook/workitem/updated", []byte(`{"resource":{}}`))
	if w.Header().Get("Retry-After") != "" || decode[api.ErrorResponse](t, w).Retryable {
		t.Fatalf("validation errors must not be retryable: %s", w.Body.String())
	}
}

func TestWebhookBodyLimit(t *testing.T) {
	h, _ := newTestHandler(t, testsupport.WithMaxBodyBytes(1024))
	body := testsupport.WorkItemUpdated(t, 1, "New", "Active", "2024-01-15T09:00:00Z",
		testsupport.WithTitle(strings.Repeat("x", 2048)))

	w := do(t, h, http.MethodPost, "/webhook/workitem/updated", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/health", nil, requestIDHeader, "abc-123")
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
	w = do(t, h, http.MethodGet, "/health", nil)
	if got := w.Header().Get(requestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}

func TestHealthAndList(t *testing.T) {
	h, _ := newTestHandler(t)
	do(t, h, http.MethodPost, "/webhook/workitem/updated", testsupport.WorkItemUpdated(t, 7, "New", "Active", "2024-01-15T09:00:00Z"))

	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	health := decode[api.HealthStatus](t, w)
	if health.Status != "healthy" || health.Database.WorkItems != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}

	w = do(t, h, http.MethodGet, "/workitems", nil)
	list := decode[api.WorkItemList](t, w)
	if len(list.Items) != 1 || list.Items[0].DevOpsID != "7" {
		t.Fatalf("unexpected list: %#v", list)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	do(t, h, http.MethodPost, "/webhook/workitem/updated", testsupport.WorkItemUpdated(t, 7, "New", "Active", "2024-01-15T09:00:00Z"))

	w := do(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`devopsmirror_ingest_total{outcome="recorded"} 1`,
		`devopsmirror_http_requests_total{code="200",route="POST /webhook/workitem/updated"} 1`,
		`devopsmirror_work_items 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
