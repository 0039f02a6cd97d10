// Package sqlite is the default local persistence backend: a key/value table
// for the profit ledger and an append-only table of completed flips.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS completed_flips (
	order_id      TEXT PRIMARY KEY,
	instrument_id TEXT NOT NULL,
	quantity      INTEGER NOT NULL,
	buy_price     REAL NOT NULL,
	sell_price    REAL NOT NULL,
	total_cost    REAL NOT NULL,
	profit        REAL NOT NULL,
	completed_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_completed_flips_completed_at ON completed_flips(completed_at);
`

// Store implements domain.KVStore and domain.FlipHistory on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the value stored under key, or domain.ErrNotFound.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", key, err)
	}
	return value, nil
}

// Save upserts value under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	const q = `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, key, data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("sqlite: save %s: %w", key, err)
	}
	return nil
}

// InsertFlip appends a completed flip. Re-inserting the same order id is a
// no-op.
func (s *Store) InsertFlip(ctx context.Context, f domain.CompletedFlip) error {
	const q = `
		INSERT OR IGNORE INTO completed_flips
			(order_id, instrument_id, quantity, buy_price, sell_price, total_cost, profit, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		f.OrderID, f.InstrumentID, f.Quantity, f.BuyPrice, f.SellPrice,
		f.TotalCost, f.Profit, f.CompletedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert flip %s: %w", f.OrderID, err)
	}
	return nil
}

// RecentFlips returns up to limit flips, newest first.
func (s *Store) RecentFlips(ctx context.Context, limit int) ([]domain.CompletedFlip, error) {
	const q = `
		SELECT order_id, instrument_id, quantity, buy_price, sell_price, total_cost, profit, completed_at
		FROM completed_flips
		ORDER BY completed_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent flips: %w", err)
	}
	defer rows.Close()

	var out []domain.CompletedFlip
	for rows.Next() {
		var f domain.CompletedFlip
		var completed int64
		if err := rows.Scan(&f.OrderID, &f.InstrumentID, &f.Quantity, &f.BuyPrice,
			&f.SellPrice, &f.TotalCost, &f.Profit, &completed); err != nil {
			return nil, fmt.Errorf("sqlite: scan flip: %w", err)
		}
		f.CompletedAt = time.UnixMilli(completed)
		out = append(out, f)
	}
	return out, rows.Err()
}

var (
	_ domain.KVStore     = (*Store)(nil)
	_ domain.FlipHistory = (*Store)(nil)
)
