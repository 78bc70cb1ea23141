// Package prompt assembles analysis requests: instructions, compressed
// history, the chunk's formatted messages, auxiliary classifier scores, and an
// output-schema example, in that fixed order.
package prompt

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
	"github.com/MikeSquared-Agency/voight/internal/chunker"
)

// DefaultMaxChars caps the assembled user prompt. Chunk and history budgets
// keep prompts well under this by construction; the cap only matters if they
// are misconfigured.
const DefaultMaxChars = 60000

const truncationNotice = "\n[... message text truncated to fit the context window ...]\n"

// Builder formats chunk analysis prompts. The zero value uses DefaultMaxChars.
type Builder struct {
	MaxChars int
}

// Build assembles the user prompt for one chunk. The returned bool reports
// whether the chunk's message text had to be truncated to stay within the
// size cap; callers should log it as a warning. Building never fails.
func (b *Builder) Build(chunk chunker.Chunk, compressedHistory string, aux *analysis.AuxScores) (string, bool) {
	maxChars := b.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	messages := FormatMessages(chunk.Messages)

	fixed := b.assemble(chunk, compressedHistory, "", aux)
	truncated := false
	if len(fixed)+len(messages) > maxChars {
		budget := maxChars - len(fixed) - len(truncationNotice)
		if budget < 0 {
			budget = 0
		}
		messages = messages[:budget] + truncationNotice
		truncated = true
	}

	return b.assemble(chunk, compressedHistory, messages, aux), truncated
}

func (b *Builder) assemble(chunk chunker.Chunk, compressedHistory, messages string, aux *analysis.AuxScores) string {
	var sb strings.Builder

	sb.WriteString(analysisInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(compressedHistory)
	fmt.Fprintf(&sb, "\n\nCURRENT CONVERSATION CHUNK (Chunk %d):\n", chunk.Index+1)
	sb.WriteString(messages)

	if aux != nil {
		sb.WriteString("\n\nCONVERSATION-LEVEL SCORES FROM SPECIALIZED MODELS:\n\n")
		writeAggregate(&sb, analysis.SpeakerYou, aux.You)
		sb.WriteString("\n")
		writeAggregate(&sb, analysis.SpeakerThem, aux.Them)
		sb.WriteString("\n(These are aggregate statistics from specialized models analyzing the full conversation)\n")
	}

	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, schemaExample, chunk.Index)

	return sb.String()
}

// FormatMessages renders messages chronologically with speaker labels and
// timestamps, one per line.
func FormatMessages(msgs []analysis.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		label := analysis.SpeakerThem
		if m.FromSelf {
			label = analysis.SpeakerYou
		}
		ts := ""
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Format("[Jan 02 3:04 PM] ")
		}
		fmt.Fprintf(&sb, "%s%s: %s\n", ts, label, m.Text)
	}
	return sb.String()
}

func writeAggregate(sb *strings.Builder, label string, agg analysis.SpeakerAggregate) {
	fmt.Fprintf(sb, "%s (conversation-level metrics):\n", label)
	if agg.PrimaryTrait != "" {
		fmt.Fprintf(sb, "  - Personality: primary trait %s\n", agg.PrimaryTrait)
	}
	fmt.Fprintf(sb, "  - Toxicity: %.1f%% of messages (%d/%d)\n",
		agg.ToxicityRate*100, agg.ToxicMessages, agg.AnalyzedMessages)
	fmt.Fprintf(sb, "  - Sarcasm: %.1f%% of messages (%d/%d)\n",
		agg.SarcasmRate*100, agg.SarcasticMessages, agg.AnalyzedMessages)
	fmt.Fprintf(sb, "  - Sentiment: POS=%.1f%%, NEG=%.1f%%, NEU=%.1f%%\n",
		agg.PositiveRate*100, agg.NegativeRate*100, agg.NeutralRate*100)
}

// MetaPrompt builds the secondary request used to refine a failed prompt. The
// original prompt and output are truncated so the refinement call is cheap.
func MetaPrompt(originalPrompt, failedOutput string, errs []string) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = "- " + e
	}
	return fmt.Sprintf(metaPrompt,
		truncateTail(originalPrompt, 1000),
		truncateTail(failedOutput, 1000),
		strings.Join(lines, "\n"))
}

func truncateTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
