// Package history derives a bounded summary of previously analyzed chunks for
// inclusion in the next chunk's prompt. Compression is a pure function of the
// analysis history and the current chunk index; it keeps no state of its own,
// so a resumed run reproduces exactly the context a continuous run would see.
package history

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
)

// NoPriorContext is returned for the first chunk of a conversation.
const NoPriorContext = "This is the first chunk of the conversation. No previous analysis available."

const (
	// Regime boundaries, in chunks. Up to earlyLimit prior chunks the full
	// narratives still fit comfortably; up to middleLimit only the latest
	// narrative plus moving trends are worth restating; beyond that the
	// history is decayed hierarchically so prompt size stays bounded no
	// matter how long the conversation runs.
	earlyLimit  = 3
	middleLimit = 6

	// recentWindow is how many trailing chunks keep full narrative form in
	// the long regime; digestChars caps the one-line digest of the oldest
	// section.
	recentWindow = 3
	digestChars  = 200
)

// Compress returns the compressed summary of all chunks analyzed before
// currentIndex. Identical inputs always yield identical output.
func Compress(hist []analysis.ChunkAnalysis, currentIndex int) string {
	prior := make([]analysis.ChunkAnalysis, 0, len(hist))
	for _, ca := range hist {
		if ca.ChunkIndex < currentIndex {
			prior = append(prior, ca)
		}
	}

	if currentIndex <= 0 || len(prior) == 0 {
		return NoPriorContext
	}

	switch {
	case currentIndex < earlyLimit:
		return detailed(prior)
	case currentIndex < middleLimit:
		return moderate(prior)
	default:
		return hierarchical(prior)
	}
}

// detailed concatenates every prior narrative verbatim.
func detailed(prior []analysis.ChunkAnalysis) string {
	var sb strings.Builder
	sb.WriteString("PREVIOUS ANALYSIS:\n")
	for _, ca := range prior {
		fmt.Fprintf(&sb, "\n--- Chunk %d ---\n", ca.ChunkIndex+1)
		sb.WriteString(ca.Summary)
		sb.WriteString("\n")
	}
	return sb.String()
}

// moderate keeps only the latest cumulative narrative plus any dimension
// whose trend has moved off stable.
func moderate(prior []analysis.ChunkAnalysis) string {
	latest := prior[len(prior)-1]

	var sb strings.Builder
	sb.WriteString("PREVIOUS ANALYSIS SUMMARY:\n")
	fmt.Fprintf(&sb, "\nOverall assessment (through Chunk %d):\n", latest.ChunkIndex+1)
	sb.WriteString(latest.Summary)
	sb.WriteString("\n")
	writeTrends(&sb, latest)
	return sb.String()
}

// hierarchical partitions the history into early / middle / recent sections
// with increasing fidelity: a truncated digest, trend deltas, and the full
// recent narrative. Output size is bounded regardless of history length.
func hierarchical(prior []analysis.ChunkAnalysis) string {
	early := prior
	if len(early) > earlyLimit {
		early = prior[:earlyLimit]
	}
	recentStart := len(prior) - recentWindow
	if recentStart < len(early) {
		recentStart = len(early)
	}
	middle := prior[len(early):recentStart]
	recent := prior[recentStart:]

	var sb strings.Builder
	sb.WriteString("PREVIOUS ANALYSIS SUMMARY:\n")

	if len(early) > 0 {
		last := early[len(early)-1]
		fmt.Fprintf(&sb, "\nEarly conversation (Chunks 1-%d):\n", last.ChunkIndex+1)
		sb.WriteString("  " + truncate(last.Summary, digestChars) + "\n")
	}

	if len(middle) > 0 {
		last := middle[len(middle)-1]
		fmt.Fprintf(&sb, "\nMiddle conversation (Chunks %d-%d):\n",
			middle[0].ChunkIndex+1, last.ChunkIndex+1)
		writeTrends(&sb, last)
	}

	if len(recent) > 0 {
		last := recent[len(recent)-1]
		fmt.Fprintf(&sb, "\nRecent analysis (Chunks %d-%d):\n",
			recent[0].ChunkIndex+1, last.ChunkIndex+1)
		sb.WriteString(last.Summary)
		sb.WriteString("\n")
	}

	return sb.String()
}

// writeTrends emits one line per dimension whose trend is not stable.
func writeTrends(sb *strings.Builder, ca analysis.ChunkAnalysis) {
	for _, spk := range []struct {
		label string
		sa    analysis.SpeakerAnalysis
	}{
		{analysis.SpeakerYou, ca.You},
		{analysis.SpeakerThem, ca.Them},
	} {
		var lines []string
		for _, dim := range []struct {
			name string
			d    analysis.Dimension
		}{
			{"Toxicity", spk.sa.Toxicity},
			{"Sentiment", spk.sa.Sentiment},
			{"Sarcasm", spk.sa.Sarcasm},
		} {
			if dim.d.Trend != "" && dim.d.Trend != "stable" {
				lines = append(lines, fmt.Sprintf("  - %s: %s", dim.name, dim.d.Trend))
			}
		}
		if len(lines) > 0 {
			fmt.Fprintf(sb, "%s - key patterns:\n%s\n", spk.label, strings.Join(lines, "\n"))
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
