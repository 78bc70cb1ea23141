package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResponse parses a raw model response into a ChunkAnalysis. Models often
// wrap JSON in markdown code fences despite instructions not to, so fences are
// stripped before unmarshalling.
func ParseResponse(raw string) (*ChunkAnalysis, error) {
	text := StripCodeFences(raw)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response")
	}

	var ca ChunkAnalysis
	if err := json.Unmarshal([]byte(text), &ca); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &ca, nil
}

// StripCodeFences removes a surrounding ```json ... ``` (or plain ```) block
// if present and returns the inner text trimmed.
func StripCodeFences(raw string) string {
	text := raw
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+len("```"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	}
	return strings.TrimSpace(text)
}
