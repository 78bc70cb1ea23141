package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MikeSquared-Agency/voight/internal/analyzer"
	"github.com/MikeSquared-Agency/voight/internal/anthropic"
	"github.com/MikeSquared-Agency/voight/internal/api"
	"github.com/MikeSquared-Agency/voight/internal/config"
	"github.com/MikeSquared-Agency/voight/internal/events"
	"github.com/MikeSquared-Agency/voight/internal/runner"
	"github.com/MikeSquared-Agency/voight/internal/source"
	"github.com/MikeSquared-Agency/voight/internal/validate"
)

func main() {
	cfg := config.Load()

	var (
		conversations = flag.String("conversation", "", "comma-separated conversation ids (default: all)")
		models        = flag.String("models", cfg.AnthropicModel, "comma-separated model ids to run")
		tokenBudget   = flag.Int("token-budget", cfg.TokenBudget, "estimated tokens per chunk")
		overlapBudget = flag.Int("overlap-budget", cfg.OverlapBudget, "estimated tokens of chunk overlap")
		retries       = flag.Int("retries", cfg.MaxAttempts, "max model attempts per chunk")
		outDir        = flag.String("out", cfg.OutputDir, "checkpoint output directory")
		serve         = flag.Bool("serve", false, "serve the run report API while analyzing")
	)
	flag.Parse()

	setupLogging(cfg.LogLevel)
	slog.Info("voight starting", "models", *models, "output", *outDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := source.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}

	// NATS (optional, runs work without it, just no progress events)
	var pub *events.Publisher
	if cfg.NatsURL != "" {
		pub, err = events.NewPublisher(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("NATS unavailable, running without progress events", "error", err)
			pub = nil
		} else {
			defer pub.Close()
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	convIDs, err := resolveConversations(ctx, db, *conversations)
	if err != nil {
		slog.Error("failed to resolve conversations", "error", err)
		os.Exit(1)
	}
	if len(convIDs) == 0 {
		slog.Error("no conversations to analyze")
		os.Exit(1)
	}

	// One controller per model; controllers hold no per-run state.
	var jobs []runner.Job
	for _, model := range splitList(*models) {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, model)
		ctrl := analyzer.NewController(llm, validate.DefaultPolicy(), *retries, slog.Default())
		for _, conv := range convIDs {
			jobs = append(jobs, runner.Job{ConversationID: conv, Model: model, Analyzer: ctrl})
		}
	}

	if *serve {
		srv := api.NewServer(cfg.Port, *outDir)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("HTTP server error", "error", err)
			}
		}()
	}

	// Graceful shutdown: first signal checkpoints and stops, second kills.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown requested, checkpointing")
		cancel()
	}()

	run := runner.NewRunner(runner.Config{
		OutputDir:     *outDir,
		TokenBudget:   *tokenBudget,
		OverlapBudget: *overlapBudget,
	}, db, pub, slog.Default())

	states, err := run.RunAll(ctx, jobs)

	fmt.Printf("\n=== Analysis Summary ===\n")
	for _, st := range states {
		status := "complete"
		if !st.Completed {
			status = fmt.Sprintf("interrupted at chunk %d/%d", st.NextChunk, st.TotalChunks)
		}
		fmt.Printf("%s × %s: %s", st.ConversationID, st.Model, status)
		if st.Retries > 0 {
			fmt.Printf(", %d retries", st.Retries)
		}
		if st.ChunksWithErrors > 0 {
			fmt.Printf(", %d chunks with errors", st.ChunksWithErrors)
		}
		fmt.Printf("\n  You: tone=%s avg_sentiment=%.0f toxic=%.0f%%\n",
			st.You.DominantTone(), st.You.AvgSentiment(), st.You.ToxicRate()*100)
		fmt.Printf("  Them: tone=%s avg_sentiment=%.0f toxic=%.0f%%\n",
			st.Them.DominantTone(), st.Them.AvgSentiment(), st.Them.ToxicRate()*100)
	}
	fmt.Printf("Checkpoints: %s\n", *outDir)

	if err != nil {
		slog.Error("analysis finished with errors", "error", err)
		os.Exit(1)
	}
	slog.Info("voight done", "runs", len(states))
}

func resolveConversations(ctx context.Context, db *source.Store, flagValue string) ([]string, error) {
	if flagValue != "" {
		return splitList(flagValue), nil
	}
	return db.Conversations(ctx)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
