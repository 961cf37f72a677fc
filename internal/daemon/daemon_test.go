package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"devopsmirror/internal/api"
	"devopsmirror/internal/daemon"
	"devopsmirror/internal/logging"
	"devopsmirror/internal/testsupport"
)

func TestDaemonStartStopServesHTTP(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}
	if d.Addr() == "" {
		t.Fatal("expected bound address")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	payload := testsupport.WorkItemUpdated(t, 42, "New", "Active", "2024-01-15T09:00:00Z")
	resp, err := client.Post("http://"+d.Addr()+"/webhook/workitem/updated", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	var result api.IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode ingest result: %v", err)
	}
	resp.Body.Close()
	if !result.Processed || result.Status != api.StatusOK {
		t.Fatalf("unexpected ingest result: %#v", result)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to report stopped")
	}
	if _, err := client.Get("http://" + d.Addr() + "/health"); err == nil {
		t.Fatal("expected listener to be closed after Stop")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, st, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, st, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second daemon to fail acquiring the lock")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}

func TestNewRequiresStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, nil); err == nil {
		t.Fatal("expected error without store")
	}
}
