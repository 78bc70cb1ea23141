// Package chunker splits a message stream into token-budgeted, overlapping
// chunks for analysis. Chunking is deterministic: the same input and budgets
// always produce identical chunk boundaries, which keeps resumed runs aligned
// with their checkpoints.
package chunker

import (
	"github.com/MikeSquared-Agency/voight/internal/analysis"
)

const (
	// Rough token cost: ~4 characters per token plus a fixed overhead per
	// message for the timestamp/speaker framing added at prompt time.
	charsPerToken   = 4
	messageOverhead = 20
)

// Chunk is an ordered, non-empty slice of the message stream sized to the
// token budget. Chunks are created once and never mutated.
type Chunk struct {
	Index         int
	Messages      []analysis.Message
	TokenEstimate int
	HasSelf       bool
	HasOther      bool
}

// EstimateTokens approximates the prompt token cost of a single message.
func EstimateTokens(m analysis.Message) int {
	return (len(m.Text) + messageOverhead) / charsPerToken
}

// Window splits messages into chunks of at most tokenBudget estimated tokens,
// carrying roughly overlapBudget tokens of trailing messages into the next
// chunk to preserve cross-boundary context.
//
// The walk always makes forward progress: a single message whose estimate
// exceeds the budget is force-included alone rather than dropped, and the
// cursor advances by at least one message per chunk. Empty input yields nil.
func Window(msgs []analysis.Message, tokenBudget, overlapBudget int) []Chunk {
	if len(msgs) == 0 {
		return nil
	}

	var chunks []Chunk
	i := 0
	for i < len(msgs) {
		cur, tokens := fill(msgs, i, tokenBudget)

		chunks = append(chunks, buildChunk(cur, tokens, len(chunks)))

		if i+len(cur) >= len(msgs) {
			break // reached the end of the stream
		}

		advance := len(cur) - overlapMessages(cur, overlapBudget)
		if advance < 1 {
			advance = 1
		}
		i += advance
	}

	return chunks
}

// fill accumulates messages starting at i while the running token estimate
// stays within budget. The first message is always included so a single
// over-budget message cannot stall the walk.
func fill(msgs []analysis.Message, i, tokenBudget int) ([]analysis.Message, int) {
	var cur []analysis.Message
	tokens := 0
	for j := i; j < len(msgs); j++ {
		cost := EstimateTokens(msgs[j])
		if len(cur) > 0 && tokens+cost > tokenBudget {
			break
		}
		cur = append(cur, msgs[j])
		tokens += cost
	}
	return cur, tokens
}

// overlapMessages walks the chunk backwards, counting trailing messages until
// the overlap budget is reached or exceeded.
func overlapMessages(chunk []analysis.Message, overlapBudget int) int {
	tokens := 0
	count := 0
	for k := len(chunk) - 1; k >= 0; k-- {
		cost := EstimateTokens(chunk[k])
		if tokens+cost > overlapBudget {
			break
		}
		tokens += cost
		count++
	}
	// A chunk must never be all overlap, or the cursor would stand still.
	if count >= len(chunk) {
		count = len(chunk) - 1
	}
	return count
}

func buildChunk(msgs []analysis.Message, tokens, idx int) Chunk {
	c := Chunk{
		Index:         idx,
		Messages:      make([]analysis.Message, len(msgs)),
		TokenEstimate: tokens,
	}
	copy(c.Messages, msgs)

	for _, m := range msgs {
		if m.FromSelf {
			c.HasSelf = true
		} else {
			c.HasOther = true
		}
	}

	return c
}
