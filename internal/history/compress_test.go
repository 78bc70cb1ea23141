package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
)

func makeHistory(n int) []analysis.ChunkAnalysis {
	hist := make([]analysis.ChunkAnalysis, n)
	for i := range hist {
		hist[i] = analysis.ChunkAnalysis{
			ChunkIndex: i,
			Summary:    fmt.Sprintf("Chunk %d narrative: the exchange stays cordial and practical.", i+1),
			You: analysis.SpeakerAnalysis{
				Sentiment: analysis.Dimension{Score: 70, Trend: "stable"},
				Toxicity:  analysis.Dimension{Score: 5, Trend: "stable"},
				Sarcasm:   analysis.Dimension{Score: 10, Trend: "increasing"},
			},
			Them: analysis.SpeakerAnalysis{
				Sentiment: analysis.Dimension{Score: 65, Trend: "stable"},
				Toxicity:  analysis.Dimension{Score: 5, Trend: "stable"},
				Sarcasm:   analysis.Dimension{Score: 15, Trend: "stable"},
			},
		}
	}
	return hist
}

func TestCompress_FirstChunk(t *testing.T) {
	if got := Compress(nil, 0); got != NoPriorContext {
		t.Errorf("expected no-prior marker, got %q", got)
	}
	// Index 0 ignores any strays in the history slice.
	if got := Compress(makeHistory(4), 0); got != NoPriorContext {
		t.Errorf("expected no-prior marker for index 0, got %q", got)
	}
}

func TestCompress_EarlyRegimeKeepsAllNarratives(t *testing.T) {
	hist := makeHistory(2)
	out := Compress(hist, 2)

	for i := range hist {
		if !strings.Contains(out, hist[i].Summary) {
			t.Errorf("early regime should keep chunk %d narrative verbatim", i)
		}
	}
	if !strings.Contains(out, "PREVIOUS ANALYSIS:") {
		t.Errorf("missing header:\n%s", out)
	}
}

func TestCompress_MiddleRegimeKeepsLatestAndTrends(t *testing.T) {
	hist := makeHistory(4)
	out := Compress(hist, 4)

	if !strings.Contains(out, hist[3].Summary) {
		t.Error("middle regime should keep the latest narrative")
	}
	if strings.Contains(out, hist[0].Summary) {
		t.Error("middle regime should not restate old narratives")
	}
	// Only the non-stable trend is restated.
	if !strings.Contains(out, "Sarcasm: increasing") {
		t.Errorf("missing moving trend:\n%s", out)
	}
	if strings.Contains(out, "Toxicity: stable") {
		t.Error("stable trends should be omitted")
	}
}

func TestCompress_LongRegimeSections(t *testing.T) {
	hist := makeHistory(12)
	out := Compress(hist, 12)

	for _, want := range []string{"Early conversation", "Middle conversation", "Recent analysis"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q section:\n%s", want, out)
		}
	}
	// Recent narrative kept in full.
	if !strings.Contains(out, hist[11].Summary) {
		t.Error("long regime should keep the most recent narrative in full")
	}
}

func TestCompress_Pure(t *testing.T) {
	hist := makeHistory(9)
	if Compress(hist, 9) != Compress(hist, 9) {
		t.Error("identical inputs produced different output")
	}
}

func TestCompress_OutputBounded(t *testing.T) {
	small := Compress(makeHistory(10), 10)
	large := Compress(makeHistory(10000), 10000)

	// Hierarchical decay: output must not grow with history length. Allow
	// slack for wider chunk numbers in headers.
	if len(large) > len(small)+64 {
		t.Errorf("compressed summary grew with history: %d bytes for 10 chunks, %d for 10000",
			len(small), len(large))
	}
}

func TestCompress_IgnoresChunksAtOrAfterIndex(t *testing.T) {
	hist := makeHistory(5)
	out := Compress(hist, 2) // only chunks 0 and 1 are prior

	if strings.Contains(out, hist[4].Summary) {
		t.Error("chunks at or after the current index must not leak into the summary")
	}
	if !strings.Contains(out, hist[1].Summary) {
		t.Error("prior chunk narrative missing")
	}
}
