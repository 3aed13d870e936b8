package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maine/promo_offers_bot/internal/offer"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sent_offers (
	key          TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	keyword      TEXT NOT NULL DEFAULT '',
	last_price   DOUBLE PRECISION,
	delivered_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore хранит журнал в таблице Postgres. Альтернатива
// файловому стору для развёртываний без постоянного диска.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore подключается к базе и создаёт таблицу журнала,
// если её ещё нет.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create sent_offers table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close освобождает пул соединений.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Load читает все записи журнала.
func (s *PostgresStore) Load(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, name, keyword, last_price, delivered_at FROM sent_offers`)
	if err != nil {
		return nil, fmt.Errorf("query sent_offers: %w", err)
	}
	defer rows.Close()

	entries := make(map[offer.IdentityKey]offer.LedgerEntry)
	for rows.Next() {
		var e offer.LedgerEntry
		if err := rows.Scan(&e.Key, &e.Name, &e.Keyword, &e.LastPrice, &e.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan sent_offers row: %w", err)
		}
		entries[e.Key] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sent_offers rows: %w", err)
	}
	return entries, nil
}

// Save приводит таблицу к переданному снапшоту: апсертит все записи
// одним батчем и удаляет ключи, которых в снапшоте больше нет.
func (s *PostgresStore) Save(ctx context.Context, entries map[offer.IdentityKey]offer.LedgerEntry) error {
	keys := make([]string, 0, len(entries))
	b := &pgx.Batch{}
	for _, e := range entries {
		keys = append(keys, string(e.Key))
		b.Queue(`INSERT INTO sent_offers (key, name, keyword, last_price, delivered_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (key) DO UPDATE SET
				name = EXCLUDED.name,
				keyword = EXCLUDED.keyword,
				last_price = EXCLUDED.last_price,
				delivered_at = EXCLUDED.delivered_at`,
			e.Key, e.Name, e.Keyword, e.LastPrice, e.DeliveredAt)
	}

	br := s.pool.SendBatch(ctx, b)
	for range keys {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert sent_offers: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close sent_offers batch: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM sent_offers WHERE NOT (key = ANY($1::text[]))`, keys); err != nil {
		return fmt.Errorf("trim sent_offers: %w", err)
	}
	return nil
}
