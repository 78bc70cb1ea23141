// Package events publishes run progress over NATS so downstream consumers
// can watch analyses land without polling checkpoint files. Publishing is
// optional: a nil *Publisher is valid and every method on it is a no-op.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectRunStarted    = "voight.run.started"
	SubjectChunkAnalyzed = "voight.chunk.analyzed"
	SubjectRunCompleted  = "voight.run.completed"
)

// RunStarted announces a new or resumed run.
type RunStarted struct {
	RunID          string `json:"run_id"`
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
	NextChunk      int    `json:"next_chunk"`
	TotalChunks    int    `json:"total_chunks"`
	Resumed        bool   `json:"resumed"`
}

// ChunkAnalyzed is emitted after each chunk is folded and checkpointed.
type ChunkAnalyzed struct {
	RunID          string `json:"run_id"`
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
	ChunkIndex     int    `json:"chunk_index"`
	State          string `json:"state"`
	Attempts       int    `json:"attempts"`
}

// RunCompleted carries the final tallies of a finished run.
type RunCompleted struct {
	RunID            string `json:"run_id"`
	ConversationID   string `json:"conversation_id"`
	Model            string `json:"model"`
	TotalChunks      int    `json:"total_chunks"`
	Retries          int    `json:"retries"`
	ChunksWithErrors int    `json:"chunks_with_errors"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewPublisher connects to NATS. Token may be empty for unauthenticated
// servers.
func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

func (p *Publisher) publish(subject string, data any) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Warn("marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("publish event", "subject", subject, "error", err)
	}
}

func (p *Publisher) RunStarted(ev RunStarted) {
	p.publish(SubjectRunStarted, ev)
}

func (p *Publisher) ChunkAnalyzed(ev ChunkAnalyzed) {
	p.publish(SubjectChunkAnalyzed, ev)
}

func (p *Publisher) RunCompleted(ev RunCompleted) {
	p.publish(SubjectRunCompleted, ev)
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}
