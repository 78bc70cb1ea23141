// Package runner orchestrates analysis runs: it loads a conversation, windows
// it into chunks, and drives each chunk through the analyzer sequentially,
// checkpointing after every chunk. Chunks within a run are strictly ordered
// because each prompt embeds the compressed history of all earlier chunks;
// separate runs are independent and execute concurrently.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
	"github.com/MikeSquared-Agency/voight/internal/analyzer"
	"github.com/MikeSquared-Agency/voight/internal/chunker"
	"github.com/MikeSquared-Agency/voight/internal/events"
	"github.com/MikeSquared-Agency/voight/internal/history"
	"github.com/MikeSquared-Agency/voight/internal/prompt"
	"github.com/MikeSquared-Agency/voight/internal/runstate"
)

// Source supplies conversations and optional upstream classifier context.
type Source interface {
	Messages(ctx context.Context, conversationID string) ([]analysis.Message, error)
	SpeakerAggregates(ctx context.Context, conversationID string) (*analysis.AuxScores, error)
}

// ChunkAnalyzer runs one chunk prompt to an accepted outcome.
type ChunkAnalyzer interface {
	AnalyzeChunk(ctx context.Context, chunkIndex int, prompt string) (analyzer.Outcome, error)
}

// Job is one conversation analyzed by one model.
type Job struct {
	ConversationID string
	Model          string
	Analyzer       ChunkAnalyzer
}

// Config holds the runner configuration.
type Config struct {
	OutputDir     string
	TokenBudget   int
	OverlapBudget int
}

type Runner struct {
	cfg    Config
	source Source
	events *events.Publisher // nil disables publishing
	logger *slog.Logger
}

func NewRunner(cfg Config, source Source, pub *events.Publisher, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		source: source,
		events: pub,
		logger: logger,
	}
}

// CheckpointPath returns where a job's run state lives on disk.
func (r *Runner) CheckpointPath(job Job) string {
	name := sanitize(job.ConversationID) + "_" + sanitize(job.Model) + ".json"
	return filepath.Join(r.cfg.OutputDir, name)
}

// RunAll executes every job, one goroutine per job. It returns the joined
// errors of all failed jobs and the final state of each job that produced one.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]*runstate.RunState, error) {
	var (
		mu     sync.Mutex
		states []*runstate.RunState
		errs   []error
		wg     sync.WaitGroup
	)

	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			st, err := r.RunConversation(ctx, job)
			mu.Lock()
			defer mu.Unlock()
			if st != nil {
				states = append(states, st)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", job.ConversationID, job.Model, err))
			}
		}(job)
	}
	wg.Wait()

	return states, errors.Join(errs...)
}

// RunConversation runs a single job to completion, resuming from its
// checkpoint if one exists. On cancellation the checkpoint is saved before
// returning so the run can pick up where it stopped.
func (r *Runner) RunConversation(ctx context.Context, job Job) (*runstate.RunState, error) {
	logger := r.logger.With("conversation", job.ConversationID, "model", job.Model)

	msgs, err := r.source.Messages(ctx, job.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("conversation %s has no messages", job.ConversationID)
	}

	aux, err := r.source.SpeakerAggregates(ctx, job.ConversationID)
	if err != nil {
		logger.Warn("speaker aggregates unavailable, continuing without", "error", err)
		aux = nil
	}

	chunks := chunker.Window(msgs, r.cfg.TokenBudget, r.cfg.OverlapBudget)

	path := r.CheckpointPath(job)
	st, resumed, err := r.loadOrCreate(path, job, len(chunks))
	if err != nil {
		return nil, err
	}
	if st.Completed {
		logger.Info("run already complete", "chunks", st.TotalChunks)
		return st, nil
	}

	if err := st.Save(); err != nil {
		return st, fmt.Errorf("save checkpoint: %w", err)
	}

	logger.Info("run starting",
		"run_id", st.RunID,
		"messages", len(msgs),
		"chunks", len(chunks),
		"next_chunk", st.NextChunk,
		"resumed", resumed,
	)
	r.events.RunStarted(events.RunStarted{
		RunID:          st.RunID,
		ConversationID: job.ConversationID,
		Model:          job.Model,
		NextChunk:      st.NextChunk,
		TotalChunks:    st.TotalChunks,
		Resumed:        resumed,
	})

	builder := prompt.Builder{MaxChars: prompt.DefaultMaxChars}

	for i := st.NextChunk; i < len(chunks); i++ {
		if ctx.Err() != nil {
			logger.Info("run interrupted, saving checkpoint", "next_chunk", st.NextChunk)
			if err := st.Save(); err != nil {
				logger.Error("save checkpoint on interrupt", "error", err)
			}
			return st, ctx.Err()
		}

		if chunks[i].TokenEstimate > r.cfg.TokenBudget {
			logger.Warn("chunk exceeds token budget, force-included",
				"chunk", i, "token_estimate", chunks[i].TokenEstimate, "budget", r.cfg.TokenBudget)
		}

		compressed := history.Compress(st.Analyses, chunks[i].Index)
		p, truncated := builder.Build(chunks[i], compressed, aux)
		if truncated {
			logger.Warn("chunk text truncated to fit prompt cap",
				"chunk", i, "token_estimate", chunks[i].TokenEstimate)
		}

		out, err := job.Analyzer.AnalyzeChunk(ctx, i, p)
		if err != nil {
			if serr := st.Save(); serr != nil {
				logger.Error("save checkpoint after failure", "error", serr)
			}
			return st, fmt.Errorf("chunk %d: %w", i, err)
		}

		st.Fold(out)
		if err := st.Save(); err != nil {
			// An unsaveable checkpoint means progress would silently be
			// lost on the next crash. Stop here.
			return st, fmt.Errorf("save checkpoint after chunk %d: %w", i, err)
		}

		r.events.ChunkAnalyzed(events.ChunkAnalyzed{
			RunID:          st.RunID,
			ConversationID: job.ConversationID,
			Model:          job.Model,
			ChunkIndex:     i,
			State:          out.State.String(),
			Attempts:       len(out.Attempts),
		})
	}

	logger.Info("run complete",
		"run_id", st.RunID,
		"chunks", st.TotalChunks,
		"retries", st.Retries,
		"chunks_with_errors", st.ChunksWithErrors,
	)
	r.events.RunCompleted(events.RunCompleted{
		RunID:            st.RunID,
		ConversationID:   job.ConversationID,
		Model:            job.Model,
		TotalChunks:      st.TotalChunks,
		Retries:          st.Retries,
		ChunksWithErrors: st.ChunksWithErrors,
	})

	return st, nil
}

// loadOrCreate resumes from an existing checkpoint or starts fresh. A
// checkpoint taken under different windowing budgets refers to chunk
// boundaries this run would not regenerate, so it is rejected rather than
// resumed into the wrong chunks.
func (r *Runner) loadOrCreate(path string, job Job, totalChunks int) (*runstate.RunState, bool, error) {
	st, err := runstate.Load(path)
	if errors.Is(err, runstate.ErrNoCheckpoint) {
		st = runstate.New(path, job.ConversationID, job.Model, r.cfg.TokenBudget, r.cfg.OverlapBudget)
		st.TotalChunks = totalChunks
		if totalChunks == 0 {
			st.Completed = true
		}
		return st, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}

	if st.TokenBudget != r.cfg.TokenBudget || st.OverlapBudget != r.cfg.OverlapBudget {
		return nil, false, fmt.Errorf("checkpoint %s was taken with budgets %d/%d, run configured with %d/%d",
			path, st.TokenBudget, st.OverlapBudget, r.cfg.TokenBudget, r.cfg.OverlapBudget)
	}
	if st.TotalChunks != totalChunks {
		return nil, false, fmt.Errorf("checkpoint %s expects %d chunks, conversation now windows to %d",
			path, st.TotalChunks, totalChunks)
	}

	return st, true, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}
