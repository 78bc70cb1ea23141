package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
	"github.com/MikeSquared-Agency/voight/internal/analyzer"
)

func outcome(chunkIndex int, youTox, themSent int, youTone string, valid bool) analyzer.Outcome {
	ca := &analysis.ChunkAnalysis{
		ChunkIndex: chunkIndex,
		You: analysis.SpeakerAnalysis{
			Sentiment: analysis.Dimension{Score: 60},
			Toxicity:  analysis.Dimension{Score: analysis.Score(youTox)},
			Tone:      youTone,
		},
		Them: analysis.SpeakerAnalysis{
			Sentiment: analysis.Dimension{Score: analysis.Score(themSent)},
			Tone:      "neutral",
		},
		Summary:    "summary",
		Validation: analysis.Validation{Valid: valid},
	}
	state := analyzer.StateAccepted
	if !valid {
		state = analyzer.StateAcceptedWithErrors
		ca.Validation.Errors = []string{"tone mismatch"}
	}
	return analyzer.Outcome{
		State:    state,
		Analysis: ca,
		Attempts: []analyzer.AttemptRecord{{Attempt: 1, Temperature: 0.3}},
	}
}

func TestFold_AdvancesCursorAndStats(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "run.json"), "conv-1", "model-a", 450, 45)
	s.TotalChunks = 3

	s.Fold(outcome(0, 80, 30, "neutral", true))
	s.Fold(outcome(1, 10, 70, "positive", true))

	if s.NextChunk != 2 {
		t.Errorf("expected NextChunk 2, got %d", s.NextChunk)
	}
	if s.Completed {
		t.Error("run must not be complete with a chunk remaining")
	}
	if s.You.Chunks != 2 || s.You.ToxicChunks != 1 {
		t.Errorf("unexpected You stats: %+v", s.You)
	}
	if got := s.Them.AvgSentiment(); got != 50 {
		t.Errorf("expected Them average sentiment 50, got %v", got)
	}
	if got := s.You.ToxicRate(); got != 0.5 {
		t.Errorf("expected You toxic rate 0.5, got %v", got)
	}

	s.Fold(outcome(2, 0, 50, "neutral", true))
	if !s.Completed {
		t.Error("expected Completed after the final chunk")
	}
}

func TestFold_CountsErrorsAndRetries(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "run.json"), "conv-1", "model-a", 450, 45)

	out := outcome(0, 0, 50, "neutral", false)
	out.Attempts = append(out.Attempts,
		analyzer.AttemptRecord{Attempt: 2, Temperature: 0.2},
		analyzer.AttemptRecord{Attempt: 3, Temperature: 0.2},
	)
	s.Fold(out)

	if s.ChunksWithErrors != 1 {
		t.Errorf("expected 1 chunk with errors, got %d", s.ChunksWithErrors)
	}
	if s.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", s.Retries)
	}
	if len(s.Diagnostics) != 1 || s.Diagnostics[0].State != "accepted_with_errors" {
		t.Errorf("unexpected diagnostics: %+v", s.Diagnostics)
	}
}

func TestDominantTone(t *testing.T) {
	s := SpeakerStats{ToneCounts: map[string]int{"neutral": 2, "positive": 3}}
	if got := s.DominantTone(); got != "positive" {
		t.Errorf("expected positive, got %q", got)
	}

	// Ties break alphabetically.
	s = SpeakerStats{ToneCounts: map[string]int{"neutral": 2, "mixed": 2}}
	if got := s.DominantTone(); got != "mixed" {
		t.Errorf("expected mixed on tie, got %q", got)
	}

	if got := (SpeakerStats{}).DominantTone(); got != "" {
		t.Errorf("expected empty tone with no chunks, got %q", got)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	s := New(path, "conv-7", "model-a", 450, 45)
	s.TotalChunks = 5
	s.Fold(outcome(0, 80, 60, "neutral", true))

	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RunID != s.RunID {
		t.Errorf("run id changed: %q vs %q", loaded.RunID, s.RunID)
	}
	if loaded.NextChunk != 1 || loaded.TotalChunks != 5 {
		t.Errorf("cursor not preserved: next=%d total=%d", loaded.NextChunk, loaded.TotalChunks)
	}
	if loaded.TokenBudget != 450 || loaded.OverlapBudget != 45 {
		t.Errorf("budgets not preserved: %d/%d", loaded.TokenBudget, loaded.OverlapBudget)
	}
	if len(loaded.Analyses) != 1 || loaded.Analyses[0].ChunkIndex != 0 {
		t.Errorf("analyses not preserved: %+v", loaded.Analyses)
	}
	if loaded.You.ToxicChunks != 1 {
		t.Errorf("stats not preserved: %+v", loaded.You)
	}
}

func TestLoad_MissingReturnsSentinel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("expected ErrNoCheckpoint, got %v", err)
	}
}

func TestLoad_RejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	s := New(path, "conv-1", "model-a", 450, 45)

	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("second save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "run.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only run.json, got %v", names)
	}
}
