package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"devopsmirror/internal/api"
)

func TestEnvironmentLinesMarkFailedChecks(t *testing.T) {
	lines := environmentLines([]checkView{
		{Name: "Data directory", Passed: true, Detail: "/tmp/data"},
		{Name: "HTTP bind", Passed: false, Detail: "address in use"},
	})
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0].State != healthOK || lines[1].State != healthFailed {
		t.Fatalf("unexpected states: %+v", lines)
	}
	if got := lines[1].format(false); got != "  HTTP bind:       [FAIL] address in use" {
		t.Fatalf("format = %q", got)
	}
}

func TestDatabaseLinesUnreachableBackendShowsOnlyError(t *testing.T) {
	lines := databaseLines(healthReport{Status: "unhealthy", Error: "connection refused"})
	if len(lines) != 1 {
		t.Fatalf("expected a single status line, got %+v", lines)
	}
	if lines[0].State != healthFailed || lines[0].Detail != "connection refused" {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
}

func TestDatabaseLinesPreferStoreError(t *testing.T) {
	lines := databaseLines(healthReport{
		Status: "unhealthy",
		Error:  "server returned 503",
		Database: api.DatabaseHealth{
			Driver:   "postgres",
			Location: "db:5432/mirror",
			Error:    "ping: timeout",
		},
	})
	if lines[0].State != healthFailed || lines[0].Detail != "ping: timeout" {
		t.Fatalf("status line = %+v", lines[0])
	}
	if lines[1].Detail != "postgres" || lines[1].State != healthFact {
		t.Fatalf("driver line = %+v", lines[1])
	}
	if got := lines[1].format(false); strings.Contains(got, "[") {
		t.Fatalf("fact line should carry no verdict: %q", got)
	}
}

func TestWriteHealthSectionColorizesVerdictOnly(t *testing.T) {
	// go-pretty disables colors globally for dumb terminals.
	text.EnableColors()
	var plain, colored bytes.Buffer
	lines := []healthLine{{Label: "Status", State: healthOK, Detail: "ok"}, {Label: "Driver", Detail: "sqlite"}}
	writeHealthSection(&plain, "Database", lines, false)
	writeHealthSection(&colored, "Database", lines, true)

	if want := "== Database ==\n  Status:          [OK] ok\n  Driver:          sqlite\n"; plain.String() != want {
		t.Fatalf("plain output = %q", plain.String())
	}
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatal("plain output contains escape codes")
	}
	if !strings.Contains(colored.String(), "\x1b[") || !strings.Contains(colored.String(), "sqlite") {
		t.Fatalf("colored output = %q", colored.String())
	}
}

func TestColorOutputDisabledForBuffers(t *testing.T) {
	if colorOutput(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}
