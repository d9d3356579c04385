package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalhub/vitals/internal/api"
)

// PostgresStore keeps records in Postgres. The date primary key plus
// ON CONFLICT DO NOTHING makes Append atomic first-write-wins.
//
// Schema:
//
//	CREATE TABLE vitals_records (
//	  date TEXT PRIMARY KEY,
//	  record JSONB NOT NULL,
//	  created_at TIMESTAMP DEFAULT NOW()
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed record store.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Append(ctx context.Context, rec api.UnifiedRecord) error {
	if err := validateRecord(&rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO vitals_records (date, record)
		VALUES ($1, $2)
		ON CONFLICT (date) DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query, rec.Date, data)
	if err != nil {
		return fmt.Errorf("postgres insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateDate
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]api.UnifiedRecord, error) {
	query := `SELECT record FROM vitals_records ORDER BY date ASC`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	defer rows.Close()

	var recs []api.UnifiedRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres scan failed: %w", err)
		}
		var rec api.UnifiedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows failed: %w", err)
	}
	return recs, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
