package wms

import (
	"encoding/json"
	"testing"
)

func TestPickDetailAccepted(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"success":true}`, true},
		{`{"success":false,"data":[]}`, true},
		{`{"data":null}`, true},
		{`{"success":false}`, false},
		{`{}`, false},
	}
	for _, tt := range tests {
		var env Envelope
		if err := json.Unmarshal([]byte(tt.body), &env); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.body, err)
		}
		if got := pickDetailAccepted(env); got != tt.want {
			t.Fatalf("pickDetailAccepted(%s) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestIsEmptyJSON(t *testing.T) {
	empty := []string{"", "null", "false", "0", `""`, "{}", "[]", " [ ] ", "{ }"}
	for _, raw := range empty {
		if !isEmptyJSON(json.RawMessage(raw)) {
			t.Fatalf("expected %q to be empty", raw)
		}
	}
	full := []string{`[{"a":1}]`, `{"a":1}`, `"x"`, "1", "true"}
	for _, raw := range full {
		if isEmptyJSON(json.RawMessage(raw)) {
			t.Fatalf("expected %q to be non-empty", raw)
		}
	}
}
