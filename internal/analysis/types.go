// Package analysis defines the shared data model for conversation analysis:
// input messages, the structured per-chunk analysis the model returns, and the
// auxiliary per-speaker aggregates supplied by upstream classifiers.
package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message is a single text message in a conversation. Read-only input.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	FromSelf  bool      `json:"from_self"`
	Text      string    `json:"text"`
}

// Speaker labels used throughout prompts and analysis output.
const (
	SpeakerYou  = "You"
	SpeakerThem = "Them"
)

// Score is a 0-100 assessment value. Models occasionally emit scores as
// strings ("75") or in slash notation ("75/100"), so unmarshalling accepts
// all three forms. Range checking is the validator's job.
type Score int

func (s *Score) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Score(n)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("score is neither number nor string: %s", data)
	}
	str = strings.TrimSpace(str)
	if i := strings.Index(str, "/"); i >= 0 {
		str = strings.TrimSpace(str[:i])
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return fmt.Errorf("unparseable score %q", str)
	}
	*s = Score(n)
	return nil
}

// Evidence is a single citation backing an assessment: a verbatim quote,
// its timestamp, and a brief rationale.
type Evidence struct {
	Quote     string `json:"message"`
	Timestamp string `json:"timestamp"`
	Context   string `json:"context"`
}

// Dimension is one assessed psychological dimension for one speaker.
type Dimension struct {
	Score      Score      `json:"score"`
	Trend      string     `json:"trend"`      // stable | increasing | decreasing | insufficient_data
	Confidence string     `json:"confidence"` // low | medium | high
	Evidence   []Evidence `json:"evidence"`
	Reasoning  string     `json:"reasoning"`
}

// Personality holds the Big Five dimensions.
type Personality struct {
	Openness          Dimension `json:"openness"`
	Conscientiousness Dimension `json:"conscientiousness"`
	Extraversion      Dimension `json:"extraversion"`
	Agreeableness     Dimension `json:"agreeableness"`
	Neuroticism       Dimension `json:"neuroticism"`
}

// SpeakerAnalysis is the per-speaker portion of a chunk analysis.
type SpeakerAnalysis struct {
	Sentiment   Dimension   `json:"sentiment"`
	Toxicity    Dimension   `json:"toxicity"`
	Sarcasm     Dimension   `json:"sarcasm"`
	Personality Personality `json:"personality"`
	Tone        string      `json:"overall_tone"` // positive | negative | neutral | mixed (optionally "very " prefixed)
}

// Dynamic describes the relationship-level reading of a chunk.
type Dynamic struct {
	PowerBalance       string `json:"power_balance"`
	CommunicationStyle string `json:"communication_style"`
	ConflictTrajectory string `json:"conflict_trajectory"`
}

// Validation records the validator's verdict on a model response.
// Errors invalidate the response; warnings do not.
type Validation struct {
	Valid    bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ChunkAnalysis is the structured result of analyzing one chunk. Once
// produced it is appended to the run history and never mutated.
type ChunkAnalysis struct {
	ChunkIndex int             `json:"chunk_index"`
	You        SpeakerAnalysis `json:"you"`
	Them       SpeakerAnalysis `json:"them"`
	Summary    string          `json:"cumulative_summary"`
	Dynamic    Dynamic         `json:"conversation_dynamic"`
	Model      string          `json:"model,omitempty"`
	AnalyzedAt time.Time       `json:"analyzed_at,omitzero"`
	Validation Validation      `json:"validation"`
}

// SpeakerAggregate holds conversation-level rates from the upstream
// classification models, embedded as context in analysis prompts.
type SpeakerAggregate struct {
	PrimaryTrait      string  `json:"primary_trait"`
	ToxicityRate      float64 `json:"toxicity_rate"`
	ToxicMessages     int     `json:"toxic_messages"`
	SarcasmRate       float64 `json:"sarcasm_rate"`
	SarcasticMessages int     `json:"sarcastic_messages"`
	PositiveRate      float64 `json:"positive_rate"`
	NegativeRate      float64 `json:"negative_rate"`
	NeutralRate       float64 `json:"neutral_rate"`
	AnalyzedMessages  int     `json:"analyzed_messages"`
}

// AuxScores pairs the aggregates for both speakers. A nil *AuxScores means
// the upstream scorer has not run for this conversation.
type AuxScores struct {
	You  SpeakerAggregate `json:"you"`
	Them SpeakerAggregate `json:"them"`
}
