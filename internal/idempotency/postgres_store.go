package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records in a PostgreSQL table so that several
// server replicas share outcomes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS atm_tx_records (
    key TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    amount NUMERIC NOT NULL,
    success BOOLEAN NOT NULL,
    tx_hash TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL,
    status_code INT NOT NULL,
    response BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Get(ctx context.Context, key string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
SELECT kind, amount::TEXT, success, tx_hash, message, status_code, response, created_at, expires_at
FROM atm_tx_records
WHERE key = $1
`, key)

	var rec Record
	err := row.Scan(&rec.Kind, &rec.Amount, &rec.Success, &rec.TxHash, &rec.Message,
		&rec.StatusCode, &rec.Response, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if rec.Expired(time.Now()) {
		go p.deleteKey(context.Background(), key)
		return nil, nil
	}
	return &rec, nil
}

func (p *PostgresStore) Save(ctx context.Context, key string, record Record) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO atm_tx_records (key, kind, amount, success, tx_hash, message, status_code, response, created_at, expires_at)
VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (key) DO UPDATE
SET kind = EXCLUDED.kind,
    amount = EXCLUDED.amount,
    success = EXCLUDED.success,
    tx_hash = EXCLUDED.tx_hash,
    message = EXCLUDED.message,
    status_code = EXCLUDED.status_code,
    response = EXCLUDED.response,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at
`, key, record.Kind, record.Amount, record.Success, record.TxHash, record.Message,
		record.StatusCode, record.Response, record.CreatedAt, record.ExpiresAt)
	return err
}

func (p *PostgresStore) deleteKey(ctx context.Context, key string) {
	_, _ = p.pool.Exec(ctx, `DELETE FROM atm_tx_records WHERE key = $1`, key)
}
