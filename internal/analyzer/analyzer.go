// Package analyzer drives a single chunk through the model: send, validate,
// and retry with progressively stronger guidance until the response passes or
// the attempt ceiling is reached.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
	"github.com/MikeSquared-Agency/voight/internal/anthropic"
	"github.com/MikeSquared-Agency/voight/internal/prompt"
	"github.com/MikeSquared-Agency/voight/internal/validate"
)

const (
	// DefaultMaxAttempts bounds the total calls per chunk, first try included.
	DefaultMaxAttempts = 5

	firstAttemptTemperature = 0.3
	retryTemperature        = 0.2

	responseMaxTokens = 8192
)

// Inference is the slice of the Anthropic client the controller needs.
type Inference interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.SamplingOptions) (string, error)
	Model() string
}

// AttemptRecord captures one model call for diagnostics.
type AttemptRecord struct {
	Attempt     int                 `json:"attempt"`
	Temperature float64             `json:"temperature"`
	Refinement  string              `json:"refinement,omitempty"`
	ElapsedMs   int64               `json:"elapsed_ms"`
	Err         string              `json:"error,omitempty"`
	Validation  analysis.Validation `json:"validation"`
}

// Outcome is the result of running one chunk to completion.
type Outcome struct {
	State    State
	Analysis *analysis.ChunkAnalysis
	Attempts []AttemptRecord
}

// Retries returns the number of calls beyond the first analysis attempt,
// meta-refinement calls excluded.
func (o Outcome) Retries() int {
	if len(o.Attempts) == 0 {
		return 0
	}
	return len(o.Attempts) - 1
}

type Controller struct {
	llm         Inference
	policy      validate.Policy
	maxAttempts int
	logger      *slog.Logger
}

func NewController(llm Inference, policy validate.Policy, maxAttempts int, logger *slog.Logger) *Controller {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Controller{
		llm:         llm,
		policy:      policy,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// AnalyzeChunk runs the attempt loop for one chunk prompt. It returns an
// error only when no parseable analysis was produced across all attempts;
// a response that parses but still fails validation at the ceiling is
// returned as AcceptedWithErrors so the run can continue.
func (c *Controller) AnalyzeChunk(ctx context.Context, chunkIndex int, basePrompt string) (Outcome, error) {
	var (
		out        Outcome
		refinement string
		lastGood   *analysis.ChunkAnalysis
		lastVal    analysis.Validation
	)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("analyze chunk %d: %w", chunkIndex, err)
		}

		temp := firstAttemptTemperature
		if attempt > 1 {
			temp = retryTemperature
		}

		fullPrompt := basePrompt
		if refinement != "" {
			fullPrompt += "\n" + refinement
		}

		start := time.Now()
		raw, err := c.llm.Complete(ctx, prompt.SystemPrompt,
			[]anthropic.Message{{Role: "user", Content: fullPrompt}},
			anthropic.SamplingOptions{MaxTokens: responseMaxTokens, Temperature: temp})
		elapsed := time.Since(start)

		rec := AttemptRecord{
			Attempt:     attempt,
			Temperature: temp,
			Refinement:  refinement,
			ElapsedMs:   elapsed.Milliseconds(),
		}

		if err != nil {
			rec.Err = err.Error()
			out.Attempts = append(out.Attempts, rec)
			c.logger.Warn("model call failed",
				"chunk", chunkIndex, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				return out, fmt.Errorf("analyze chunk %d: %w", chunkIndex, ctx.Err())
			}
			continue
		}

		v := validate.Validate(raw, c.policy)
		rec.Validation = v
		out.Attempts = append(out.Attempts, rec)

		if ca, perr := analysis.ParseResponse(raw); perr == nil {
			lastGood = ca
			lastVal = v
		}

		if v.Valid {
			out.State = StateAccepted
			out.Analysis = lastGood
			out.Analysis.Validation = v
			out.Analysis.Model = c.llm.Model()
			out.Analysis.AnalyzedAt = time.Now().UTC()
			c.logger.Info("chunk accepted",
				"chunk", chunkIndex, "attempt", attempt, "warnings", len(v.Warnings))
			return out, nil
		}

		c.logger.Warn("chunk failed validation",
			"chunk", chunkIndex, "attempt", attempt, "errors", v.Errors)

		if attempt == c.maxAttempts {
			break
		}

		switch nextEscalation(attempt) {
		case StateMetaRefine:
			refinement = c.metaRefine(ctx, chunkIndex, basePrompt, raw, v.Errors)
		default:
			refinement = prompt.StrictRetryNote
		}
	}

	if lastGood == nil {
		return out, fmt.Errorf("analyze chunk %d: no usable response after %d attempts", chunkIndex, c.maxAttempts)
	}

	out.State = StateAcceptedWithErrors
	out.Analysis = lastGood
	out.Analysis.Validation = lastVal
	out.Analysis.Model = c.llm.Model()
	out.Analysis.AnalyzedAt = time.Now().UTC()
	c.logger.Warn("chunk accepted with errors",
		"chunk", chunkIndex, "attempts", len(out.Attempts), "errors", lastVal.Errors)
	return out, nil
}

// metaRefine asks the model to rewrite the formatting guidance after repeated
// failures. Falls back to canned guidance when the meta call itself fails.
func (c *Controller) metaRefine(ctx context.Context, chunkIndex int, basePrompt, failedOutput string, errs []string) string {
	refined, err := c.llm.Complete(ctx, "",
		[]anthropic.Message{{Role: "user", Content: prompt.MetaPrompt(basePrompt, failedOutput, errs)}},
		anthropic.SamplingOptions{MaxTokens: 1024, Temperature: retryTemperature})
	if err != nil || refined == "" {
		c.logger.Warn("meta-refinement failed, using fallback",
			"chunk", chunkIndex, "error", err)
		return prompt.FallbackRefinement
	}
	return refined
}
