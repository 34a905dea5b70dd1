package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONPlain(t *testing.T) {
	got := ExtractJSON(`{"key": "value"}`)
	if got != `{"key": "value"}` {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExtractJSONWithCodeFence(t *testing.T) {
	got := ExtractJSON("```json\n{\"key\": \"value\"}\n```")
	if got != `{"key": "value"}` {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExtractJSONWithPlainFence(t *testing.T) {
	got := ExtractJSON("```\n{\"key\": \"value\"}\n```")
	if got != `{"key": "value"}` {
		t.Errorf("unexpected result %q", got)
	}
}

func TestRepairJSONControlCharacters(t *testing.T) {
	raw := "{\"text\": \"line one\nline two\ttabbed\"}"

	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		t.Fatal("fixture should fail strict parse")
	}

	repaired := RepairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		t.Fatalf("repaired JSON should parse: %v", err)
	}
	if out["text"] != "line one\nline two\ttabbed" {
		t.Errorf("unexpected repaired value %q", out["text"])
	}
}

func TestRepairJSONLeavesValidAlone(t *testing.T) {
	raw := `{"a": "b\nc", "n": 1}`
	if RepairJSON(raw) != raw {
		t.Errorf("valid JSON should pass through unchanged")
	}
}
