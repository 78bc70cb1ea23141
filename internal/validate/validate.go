// Package validate checks structured analysis responses before they are
// accepted into a run. Validation is pure and never panics: malformed input is
// itself a validation error, not an exception.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
)

// Policy holds the tunable validation rules. The tone thresholds mirror the
// consistency rules stated in the system prompt; they are configuration, not
// fixed constants, because the calibration is a product decision.
type Policy struct {
	PositiveThreshold int // sentiment >= this must carry a positive tone label
	NegativeThreshold int // sentiment <= this must carry a negative tone label
	MinCitations      int // fewer total citations than this is a warning
}

// DefaultPolicy returns the standard thresholds: 70/40 tone cutoffs and a
// three-citation minimum.
func DefaultPolicy() Policy {
	return Policy{
		PositiveThreshold: 70,
		NegativeThreshold: 40,
		MinCitations:      3,
	}
}

// requiredDimensions are the per-speaker fields that must be present for a
// response to be structurally complete.
var requiredDimensions = []string{"sentiment", "toxicity", "sarcasm", "personality", "overall_tone"}

// Validate scores a raw model response against the policy. Errors invalidate
// the response (it must be retried or flagged); warnings do not.
func Validate(raw string, p Policy) analysis.Validation {
	v := analysis.Validation{Valid: true}

	ca, err := analysis.ParseResponse(raw)
	if err != nil {
		v.Valid = false
		v.Errors = append(v.Errors, fmt.Sprintf("parse response: %v", err))
		return v
	}

	checkStructure(raw, &v)

	for _, spk := range []struct {
		label string
		sa    analysis.SpeakerAnalysis
	}{
		{analysis.SpeakerYou, ca.You},
		{analysis.SpeakerThem, ca.Them},
	} {
		checkRanges(spk.label, spk.sa, &v)
		checkToneConsistency(spk.label, spk.sa, p, &v)
	}

	if n := citationCount(ca); n < p.MinCitations {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("only %d citations found, expected at least %d", n, p.MinCitations))
	}

	if strings.TrimSpace(ca.Summary) == "" {
		v.Errors = append(v.Errors, "missing cumulative_summary")
		v.Valid = false
	}

	return v
}

// checkStructure verifies the required sections exist in the JSON itself.
// Typed unmarshalling zero-fills absent fields, so presence is checked
// against the raw object keys.
func checkStructure(raw string, v *analysis.Validation) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(analysis.StripCodeFences(raw)), &top); err != nil {
		// ParseResponse already succeeded; a non-object at the top level
		// cannot happen here, but stay defensive.
		v.Errors = append(v.Errors, "response is not a JSON object")
		v.Valid = false
		return
	}

	for _, speaker := range []string{"you", "them"} {
		body, ok := top[speaker]
		if !ok {
			v.Errors = append(v.Errors, "missing required section: "+speaker)
			v.Valid = false
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			v.Errors = append(v.Errors, speaker+" section is not a JSON object")
			v.Valid = false
			continue
		}
		for _, dim := range requiredDimensions {
			if _, ok := fields[dim]; !ok {
				v.Errors = append(v.Errors, fmt.Sprintf("missing required field: %s.%s", speaker, dim))
				v.Valid = false
			}
		}
	}
}

func checkRanges(label string, sa analysis.SpeakerAnalysis, v *analysis.Validation) {
	dims := []struct {
		name  string
		score analysis.Score
	}{
		{"sentiment", sa.Sentiment.Score},
		{"toxicity", sa.Toxicity.Score},
		{"sarcasm", sa.Sarcasm.Score},
		{"personality.openness", sa.Personality.Openness.Score},
		{"personality.conscientiousness", sa.Personality.Conscientiousness.Score},
		{"personality.extraversion", sa.Personality.Extraversion.Score},
		{"personality.agreeableness", sa.Personality.Agreeableness.Score},
		{"personality.neuroticism", sa.Personality.Neuroticism.Score},
	}
	for _, dim := range dims {
		if dim.score < 0 || dim.score > 100 {
			v.Errors = append(v.Errors, fmt.Sprintf("%s %s score %d out of range 0-100", label, dim.name, dim.score))
			v.Valid = false
		}
	}
}

// checkToneConsistency enforces the score/label pairing rule: a high
// sentiment score with a non-positive tone label (or the inverse) means the
// response is internally incoherent and cannot be trusted.
func checkToneConsistency(label string, sa analysis.SpeakerAnalysis, p Policy, v *analysis.Validation) {
	tone := strings.ToLower(strings.TrimSpace(sa.Tone))
	score := int(sa.Sentiment.Score)

	switch {
	case score >= p.PositiveThreshold:
		if tone != "positive" && tone != "very positive" {
			v.Errors = append(v.Errors,
				fmt.Sprintf("%s sentiment score (%d) suggests positive but tone is %q", label, score, sa.Tone))
			v.Valid = false
		}
	case score <= p.NegativeThreshold:
		if tone != "negative" && tone != "very negative" {
			v.Errors = append(v.Errors,
				fmt.Sprintf("%s sentiment score (%d) suggests negative but tone is %q", label, score, sa.Tone))
			v.Valid = false
		}
	}
}

func citationCount(ca *analysis.ChunkAnalysis) int {
	n := 0
	for _, sa := range []analysis.SpeakerAnalysis{ca.You, ca.Them} {
		for _, d := range []analysis.Dimension{
			sa.Sentiment, sa.Toxicity, sa.Sarcasm,
			sa.Personality.Openness, sa.Personality.Conscientiousness,
			sa.Personality.Extraversion, sa.Personality.Agreeableness,
			sa.Personality.Neuroticism,
		} {
			n += len(d.Evidence)
		}
	}
	return n
}
