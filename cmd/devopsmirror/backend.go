package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"devopsmirror/internal/api"
	"devopsmirror/internal/store"
)

// workItemBackend is the surface the CLI commands need. It is satisfied by
// the in-process service over the local database and by the HTTP client.
type workItemBackend interface {
	Ingest(ctx context.Context, payload []byte) (api.IngestResult, error)
	Describe(ctx context.Context, id string) (*api.WorkItemDetail, error)
	TimeInState(ctx context.Context, id string) (*api.TimeInState, error)
	List(ctx context.Context, limit int) ([]api.WorkItemSummary, error)
	Health(ctx context.Context) (api.HealthStatus, error)
	Close() error
}

func (c *commandContext) withBackend(fn func(workItemBackend) error) error {
	backend, err := c.openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(backend)
}

func (c *commandContext) openBackend() (workItemBackend, error) {
	if server := c.serverURL(); server != "" {
		return newHTTPBackend(server)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &localBackend{WorkItemService: api.NewWorkItemService(st), store: st}, nil
}

type localBackend struct {
	*api.WorkItemService
	store *store.Store
}

func (b *localBackend) Close() error {
	return b.store.Close()
}

type httpBackend struct {
	base   *url.URL
	client *http.Client
}

func newHTTPBackend(server string) (*httpBackend, error) {
	base, err := url.Parse(server)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid --server %q: expected a URL such as http://127.0.0.1:5000", server)
	}
	return &httpBackend{
		base:   base,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (b *httpBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *httpBackend) Ingest(ctx context.Context, payload []byte) (api.IngestResult, error) {
	var result api.IngestResult
	err := b.do(ctx, http.MethodPost, "/webhook/workitem/updated", nil, payload, &result)
	return result, err
}

func (b *httpBackend) Describe(ctx context.Context, id string) (*api.WorkItemDetail, error) {
	var detail api.WorkItemDetail
	if err := b.do(ctx, http.MethodGet, "/workitems/"+url.PathEscape(id), nil, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (b *httpBackend) TimeInState(ctx context.Context, id string) (*api.TimeInState, error) {
	var summary api.TimeInState
	if err := b.do(ctx, http.MethodGet, "/workitems/"+url.PathEscape(id)+"/time-in-state", nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (b *httpBackend) List(ctx context.Context, limit int) ([]api.WorkItemSummary, error) {
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	var list api.WorkItemList
	if err := b.do(ctx, http.MethodGet, "/workitems", query, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Health decodes the body on both 200 and 503 so callers can render the
// database diagnostics of an unhealthy server.
func (b *httpBackend) Health(ctx context.Context) (api.HealthStatus, error) {
	var status api.HealthStatus
	resp, err := b.send(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("server reported %s (HTTP %d)", status.Status, resp.StatusCode)
	}
	return status, nil
}

func (b *httpBackend) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	resp, err := b.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeRemoteError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (b *httpBackend) send(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	target := b.base.JoinPath(path)
	if query != nil {
		target.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to server %s: %w", b.base.Redacted(), err)
	}
	return resp, nil
}

// remoteError carries a non-200 response from the server.
type remoteError struct {
	StatusCode int
	Kind       string
	Message    string
	RequestID  string
}

func (e *remoteError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("server returned %d: %s (request %s)", e.StatusCode, msg, e.RequestID)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, msg)
}

func decodeRemoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	remote := &remoteError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}
	var payload api.ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		remote.Kind = payload.Kind
		remote.Message = payload.Error
		if payload.RequestID != "" {
			remote.RequestID = payload.RequestID
		}
	} else {
		remote.Message = strings.TrimSpace(string(data))
	}
	return remote
}

func isRemoteStatus(err error, code int) bool {
	var remote *remoteError
	return errors.As(err, &remote) && remote.StatusCode == code
}
