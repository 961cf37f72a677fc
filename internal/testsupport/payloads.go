package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// PayloadOption adjusts a generated webhook payload.
type PayloadOption func(resource map[string]any)

// WithTitle sets resource.fields["System.Title"].
func WithTitle(title string) PayloadOption {
	return func(resource map[string]any) {
		fields(resource)["System.Title"] = title
	}
}

// WithChangedBy sets resource.fields["System.ChangedBy"] to an identity object.
func WithChangedBy(displayName string) PayloadOption {
	return func(resource map[string]any) {
		fields(resource)["System.ChangedBy"] = map[string]any{"displayName": displayName}
	}
}

// WithoutField deletes a key from resource.fields.
func WithoutField(name string) PayloadOption {
	return func(resource map[string]any) {
		delete(fields(resource), name)
	}
}

// WorkItemUpdated builds an Azure DevOps workitem.updated payload carrying a
// System.State change.
func WorkItemUpdated(t testing.TB, id any, from, to, changedDate string, opts ...PayloadOption) []byte {
	t.Helper()

	resource := map[string]any{
		"id":         id,
		"workItemId": id,
		"fields": map[string]any{
			"System.Title":       "Work item",
			"System.ChangedBy":   map[string]any{"displayName": "Test User"},
			"System.ChangedDate": changedDate,
		},
		"revision": map[string]any{
			"fields": map[string]any{
				"System.State": map[string]any{"oldValue": from, "newValue": to},
			},
		},
	}
	for _, opt := range opts {
		opt(resource)
	}

	data, err := json.Marshal(map[string]any{
		"eventType": "workitem.updated",
		"resource":  resource,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

// WritePayloadFile writes data under dir and returns the file path.
func WritePayloadFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func fields(resource map[string]any) map[string]any {
	f, ok := resource["fields"].(map[string]any)
	if !ok {
		f = map[string]any{}
		resource["fields"] = f
	}
	return f
}
