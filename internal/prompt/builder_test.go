package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
	"github.com/MikeSquared-Agency/voight/internal/chunker"
)

func testChunk() chunker.Chunk {
	base := time.Date(2026, 4, 2, 19, 30, 0, 0, time.UTC)
	return chunker.Chunk{
		Index: 1,
		Messages: []analysis.Message{
			{Timestamp: base, FromSelf: true, Text: "dinner friday?"},
			{Timestamp: base.Add(2 * time.Minute), FromSelf: false, Text: "yes! where?"},
		},
	}
}

func TestBuild_SectionOrder(t *testing.T) {
	b := &Builder{}
	out, truncated := b.Build(testChunk(), "HISTORY MARKER", nil)

	if truncated {
		t.Error("unexpected truncation for tiny chunk")
	}

	instructions := strings.Index(out, "Analyze this chunk")
	hist := strings.Index(out, "HISTORY MARKER")
	msgs := strings.Index(out, "dinner friday?")
	schema := strings.Index(out, `"chunk_index": 1`)

	for name, idx := range map[string]int{"instructions": instructions, "history": hist, "messages": msgs, "schema": schema} {
		if idx < 0 {
			t.Fatalf("missing %s section:\n%s", name, out)
		}
	}
	if !(instructions < hist && hist < msgs && msgs < schema) {
		t.Errorf("sections out of order: instructions=%d history=%d messages=%d schema=%d",
			instructions, hist, msgs, schema)
	}
}

func TestBuild_OmitsAuxWhenAbsent(t *testing.T) {
	b := &Builder{}
	out, _ := b.Build(testChunk(), "h", nil)

	if strings.Contains(out, "SPECIALIZED MODELS") {
		t.Error("aux section should be omitted when no scores are available")
	}
}

func TestBuild_IncludesAuxScores(t *testing.T) {
	aux := &analysis.AuxScores{
		You:  analysis.SpeakerAggregate{ToxicityRate: 0.02, ToxicMessages: 1, AnalyzedMessages: 50, PositiveRate: 0.6},
		Them: analysis.SpeakerAggregate{PrimaryTrait: "agreeableness", AnalyzedMessages: 50},
	}
	b := &Builder{}
	out, _ := b.Build(testChunk(), "h", aux)

	if !strings.Contains(out, "Toxicity: 2.0% of messages (1/50)") {
		t.Errorf("missing formatted toxicity rate:\n%s", out)
	}
	if !strings.Contains(out, "primary trait agreeableness") {
		t.Errorf("missing primary trait:\n%s", out)
	}
}

func TestBuild_TruncatesOversizedChunk(t *testing.T) {
	c := testChunk()
	c.Messages = append(c.Messages, analysis.Message{
		FromSelf: true,
		Text:     strings.Repeat("a", 5000),
	})

	b := &Builder{MaxChars: 4000}
	out, truncated := b.Build(c, "h", nil)

	if !truncated {
		t.Fatal("expected truncation to be reported")
	}
	if len(out) > 4000+len(truncationNotice) {
		t.Errorf("prompt length %d exceeds cap", len(out))
	}
	if !strings.Contains(out, "truncated to fit") {
		t.Error("missing truncation notice")
	}
	// Schema example must survive truncation.
	if !strings.Contains(out, `"chunk_index": 1`) {
		t.Error("schema example lost during truncation")
	}
}

func TestFormatMessages(t *testing.T) {
	msgs := testChunk().Messages
	out := FormatMessages(msgs)

	if !strings.Contains(out, "You: dinner friday?") {
		t.Errorf("missing self message:\n%s", out)
	}
	if !strings.Contains(out, "Them: yes! where?") {
		t.Errorf("missing other message:\n%s", out)
	}
	if !strings.Contains(out, "[Apr 02 7:30 PM]") {
		t.Errorf("missing formatted timestamp:\n%s", out)
	}
}

func TestFormatMessages_SkipsEmptyText(t *testing.T) {
	out := FormatMessages([]analysis.Message{{FromSelf: true, Text: ""}})
	if out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestMetaPrompt(t *testing.T) {
	out := MetaPrompt(strings.Repeat("p", 2000), "bad output", []string{"missing section: you", "score out of range"})

	if !strings.Contains(out, "- missing section: you") {
		t.Errorf("missing error line:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("p", 1500)) {
		t.Error("original prompt should be truncated in meta prompt")
	}
}
