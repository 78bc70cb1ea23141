// Package source reads conversations and upstream classifier aggregates from
// Postgres. It is the read side only: analysis results live in checkpoint
// files, not the database.
package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/voight/internal/analysis"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Conversations lists the conversation ids that have at least one message,
// most recently active first.
func (s *Store) Conversations(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id
		FROM messages
		GROUP BY conversation_id
		ORDER BY max(sent_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return ids, nil
}

// Messages returns a conversation's messages in chronological order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]analysis.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sent_at, from_self, body
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []analysis.Message
	for rows.Next() {
		var m analysis.Message
		if err := rows.Scan(&m.Timestamp, &m.FromSelf, &m.Text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// SpeakerAggregates fetches the per-speaker rates the upstream classifiers
// computed for a conversation. Returns (nil, nil) when the scorer has not run
// for this conversation; the analysis proceeds without that context.
func (s *Store) SpeakerAggregates(ctx context.Context, conversationID string) (*analysis.AuxScores, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT speaker, primary_trait, toxicity_rate, toxic_messages,
		       sarcasm_rate, sarcastic_messages,
		       positive_rate, negative_rate, neutral_rate, analyzed_messages
		FROM speaker_aggregates
		WHERE conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query speaker aggregates: %w", err)
	}
	defer rows.Close()

	var (
		aux   analysis.AuxScores
		found int
	)
	for rows.Next() {
		var (
			speaker string
			agg     analysis.SpeakerAggregate
		)
		err := rows.Scan(&speaker, &agg.PrimaryTrait, &agg.ToxicityRate, &agg.ToxicMessages,
			&agg.SarcasmRate, &agg.SarcasticMessages,
			&agg.PositiveRate, &agg.NegativeRate, &agg.NeutralRate, &agg.AnalyzedMessages)
		if err != nil {
			return nil, fmt.Errorf("scan speaker aggregate: %w", err)
		}
		switch speaker {
		case "you":
			aux.You = agg
		case "them":
			aux.Them = agg
		default:
			return nil, fmt.Errorf("unknown speaker %q in aggregates", speaker)
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate speaker aggregates: %w", err)
	}
	if found == 0 {
		return nil, nil
	}
	return &aux, nil
}
