package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityGuard/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tx_journal (
	tx_hash     TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	chain_id    BIGINT NOT NULL,
	wallet      TEXT NOT NULL,
	target      TEXT NOT NULL,
	draft_id    TEXT,
	policy_id   TEXT,
	amount      NUMERIC,
	recorded_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tx_journal_recorded_at_idx ON tx_journal (recorded_at DESC);
`

// Store provides Postgres persistence for the settlement journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the journal table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Record inserts entries or advances the status of a known tx hash.
func (s *Store) Record(ctx context.Context, entries ...model.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		recordedAt, err := time.Parse(time.RFC3339, e.RecordedAt)
		if err != nil {
			recordedAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO tx_journal (
				tx_hash, kind, status, chain_id, wallet, target, draft_id, policy_id, amount, recorded_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (tx_hash)
			DO UPDATE SET
				status = EXCLUDED.status,
				draft_id = COALESCE(EXCLUDED.draft_id, tx_journal.draft_id),
				policy_id = COALESCE(EXCLUDED.policy_id, tx_journal.policy_id),
				recorded_at = EXCLUDED.recorded_at,
				updated_at = now()
		`,
			e.TxHash,
			string(e.Kind),
			string(e.Status),
			int64(e.ChainID),
			e.Wallet,
			e.Target,
			nullable(e.DraftID),
			nullable(e.PolicyID),
			nullable(e.Amount),
			recordedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT tx_hash, kind, status, chain_id, wallet, target,
			COALESCE(draft_id, ''), COALESCE(policy_id, ''), COALESCE(amount::text, ''), recorded_at
		FROM tx_journal
		ORDER BY recorded_at DESC, updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.JournalEntry
	for rows.Next() {
		var (
			e          model.JournalEntry
			kind       string
			status     string
			chainID    int64
			recordedAt time.Time
		)
		if err := rows.Scan(&e.TxHash, &kind, &status, &chainID, &e.Wallet, &e.Target,
			&e.DraftID, &e.PolicyID, &e.Amount, &recordedAt); err != nil {
			return nil, err
		}
		e.Kind = model.JournalKind(kind)
		e.Status = model.JournalStatus(status)
		e.ChainID = uint64(chainID)
		e.RecordedAt = recordedAt.UTC().Format(time.RFC3339)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
