// Package runstate holds the cumulative result of an analysis run and its
// crash-safe checkpoint. The checkpoint is rewritten after every chunk so an
// interrupted run resumes at the first chunk it has not completed.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
	"github.com/MikeSquared-Agency/voight/internal/analyzer"
)

// Version is bumped whenever the checkpoint layout changes incompatibly.
// A checkpoint with a different version is rejected rather than misread.
const Version = 1

// ErrNoCheckpoint is returned by Load when no checkpoint file exists.
var ErrNoCheckpoint = errors.New("no checkpoint")

// toxicFlagThreshold is the dimension score at or above which a chunk counts
// toward a speaker's toxic/sarcastic chunk tallies.
const toxicFlagThreshold = 50

// SpeakerStats accumulates per-speaker tallies across completed chunks.
type SpeakerStats struct {
	Chunks          int            `json:"chunks"`
	ToxicChunks     int            `json:"toxic_chunks"`
	SarcasticChunks int            `json:"sarcastic_chunks"`
	SentimentTotal  int            `json:"sentiment_total"`
	ToneCounts      map[string]int `json:"tone_counts"`
}

func (s *SpeakerStats) fold(sa analysis.SpeakerAnalysis) {
	s.Chunks++
	if int(sa.Toxicity.Score) >= toxicFlagThreshold {
		s.ToxicChunks++
	}
	if int(sa.Sarcasm.Score) >= toxicFlagThreshold {
		s.SarcasticChunks++
	}
	s.SentimentTotal += int(sa.Sentiment.Score)
	if sa.Tone != "" {
		if s.ToneCounts == nil {
			s.ToneCounts = make(map[string]int)
		}
		s.ToneCounts[sa.Tone]++
	}
}

// ToxicRate is the fraction of completed chunks flagged toxic.
func (s SpeakerStats) ToxicRate() float64 {
	if s.Chunks == 0 {
		return 0
	}
	return float64(s.ToxicChunks) / float64(s.Chunks)
}

// AvgSentiment is the mean sentiment score across completed chunks.
func (s SpeakerStats) AvgSentiment() float64 {
	if s.Chunks == 0 {
		return 0
	}
	return float64(s.SentimentTotal) / float64(s.Chunks)
}

// DominantTone is the most frequent tone label, or "" with no chunks.
// Ties break alphabetically so the result is stable across runs.
func (s SpeakerStats) DominantTone() string {
	best, bestN := "", 0
	for tone, n := range s.ToneCounts {
		if n > bestN || (n == bestN && (best == "" || tone < best)) {
			best, bestN = tone, n
		}
	}
	return best
}

// ChunkDiagnostics records the attempt history of one chunk for debugging.
type ChunkDiagnostics struct {
	ChunkIndex int                      `json:"chunk_index"`
	State      string                   `json:"state"`
	Attempts   []analyzer.AttemptRecord `json:"attempts"`
}

// RunState is one run of one conversation against one model. The windowing
// budgets are recorded so a resumed run can verify it will regenerate the
// same chunk boundaries the checkpoint's cursor refers to.
type RunState struct {
	Version        int       `json:"version"`
	RunID          string    `json:"run_id"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	TokenBudget    int       `json:"token_budget"`
	OverlapBudget  int       `json:"overlap_budget"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	NextChunk   int  `json:"next_chunk"`
	TotalChunks int  `json:"total_chunks"`
	Completed   bool `json:"completed"`

	Analyses []analysis.ChunkAnalysis `json:"analyses"`

	You  SpeakerStats `json:"you_stats"`
	Them SpeakerStats `json:"them_stats"`

	Retries          int                `json:"retries"`
	ChunksWithErrors int                `json:"chunks_with_errors"`
	Diagnostics      []ChunkDiagnostics `json:"diagnostics,omitempty"`

	path string // not serialized
}

// New creates a fresh run state that will checkpoint to path.
func New(path, conversationID, model string, tokenBudget, overlapBudget int) *RunState {
	return &RunState{
		Version:        Version,
		RunID:          uuid.NewString(),
		ConversationID: conversationID,
		Model:          model,
		TokenBudget:    tokenBudget,
		OverlapBudget:  overlapBudget,
		StartedAt:      time.Now().UTC(),
		path:           path,
	}
}

// Load reads a checkpoint from path. Returns ErrNoCheckpoint when the file
// does not exist.
func Load(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("checkpoint version %d, want %d", s.Version, Version)
	}
	s.path = path
	return &s, nil
}

// Fold absorbs a completed chunk outcome: the analysis is appended, the
// per-speaker tallies update, and the cursor advances to the next chunk.
func (s *RunState) Fold(out analyzer.Outcome) {
	ca := *out.Analysis
	s.Analyses = append(s.Analyses, ca)
	s.You.fold(ca.You)
	s.Them.fold(ca.Them)

	s.Retries += out.Retries()
	if !ca.Validation.Valid {
		s.ChunksWithErrors++
	}
	s.Diagnostics = append(s.Diagnostics, ChunkDiagnostics{
		ChunkIndex: ca.ChunkIndex,
		State:      out.State.String(),
		Attempts:   out.Attempts,
	})

	s.NextChunk++
	if s.TotalChunks > 0 && s.NextChunk >= s.TotalChunks {
		s.Completed = true
	}
}

// Save writes the checkpoint atomically: the state is written to a temp file
// in the same directory and renamed over the old checkpoint, so a crash
// mid-write never corrupts the previous one.
func (s *RunState) Save() error {
	s.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Path returns the checkpoint location on disk.
func (s *RunState) Path() string {
	return s.path
}
