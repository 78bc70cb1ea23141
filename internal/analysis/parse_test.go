package analysis

import (
	"encoding/json"
	"testing"
)

func TestParseResponse_PlainJSON(t *testing.T) {
	raw := `{"chunk_index": 2, "you": {"sentiment": {"score": 80, "trend": "stable"}}, "cumulative_summary": "Warm exchange."}`

	ca, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ca.ChunkIndex != 2 {
		t.Errorf("chunk_index = %d, want 2", ca.ChunkIndex)
	}
	if ca.You.Sentiment.Score != 80 {
		t.Errorf("sentiment score = %d, want 80", ca.You.Sentiment.Score)
	}
	if ca.Summary != "Warm exchange." {
		t.Errorf("summary = %q", ca.Summary)
	}
}

func TestParseResponse_FencedJSON(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"chunk_index\": 0, \"cumulative_summary\": \"ok\"}\n```\nDone."

	ca, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ca.Summary != "ok" {
		t.Errorf("summary = %q, want ok", ca.Summary)
	}
}

func TestParseResponse_BareFence(t *testing.T) {
	raw := "```\n{\"chunk_index\": 1}\n```"

	ca, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ca.ChunkIndex != 1 {
		t.Errorf("chunk_index = %d, want 1", ca.ChunkIndex)
	}
}

func TestParseResponse_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json at all", "```json\n```"} {
		if _, err := ParseResponse(raw); err == nil {
			t.Errorf("ParseResponse(%q): expected error, got nil", raw)
		}
	}
}

func TestScore_UnmarshalForms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Score
	}{
		{"number", `75`, 75},
		{"string", `"75"`, 75},
		{"slash notation", `"75/100"`, 75},
		{"padded", `" 60 /100"`, 60},
		{"zero", `0`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Score
			if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s != tt.want {
				t.Errorf("score = %d, want %d", s, tt.want)
			}
		})
	}
}

func TestScore_UnmarshalInvalid(t *testing.T) {
	for _, in := range []string{`"high"`, `"N/A"`, `true`, `[1]`} {
		var s Score
		if err := json.Unmarshal([]byte(in), &s); err == nil {
			t.Errorf("Unmarshal(%s): expected error, got score %d", in, s)
		}
	}
}
