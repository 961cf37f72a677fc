package api_test

import (
	"encoding/json"
	"testing"

	"devopsmirror/internal/api"
)

func TestExternalIDEncoding(t *testing.T) {
	cases := map[api.ExternalID]string{
		"42":   `42`,
		"-7":   `-7`,
		"042":  `"042"`,
		"WI-9": `"WI-9"`,
		"1e3":  `"1e3"`,
	}
	for id, want := range cases {
		got, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal %q: %v", id, err)
		}
		if string(got) != want {
			t.Fatalf("marshal %q = %s, want %s", id, got, want)
		}
	}

	var decoded struct {
		A api.ExternalID `json:"a"`
		B api.ExternalID `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":42,"b":"WI-9"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.A != "42" || decoded.B != "WI-9" {
		t.Fatalf("unexpected decode: %#v", decoded)
	}
}

func TestTimeInStateJSONShape(t *testing.T) {
	data, err := json.Marshal(api.TimeInState{
		DevOpsID:          "42",
		Title:             "Fix",
		CurrentState:      "Resolved",
		StateTimesSeconds: map[string]float64{"Active": 7200},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"devops_id":42,"title":"Fix","current_state":"Resolved","state_times_seconds":{"Active":7200}}`
	if string(data) != want {
		t.Fatalf("json = %s\nwant %s", data, want)
	}
}
