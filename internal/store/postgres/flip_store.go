package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// FlipStore implements domain.FlipHistory on the completed_flips table.
type FlipStore struct {
	pool *pgxpool.Pool
}

// NewFlipStore creates a FlipStore backed by pool.
func NewFlipStore(pool *pgxpool.Pool) *FlipStore {
	return &FlipStore{pool: pool}
}

// InsertFlip appends a completed flip; a repeated order id is ignored.
func (s *FlipStore) InsertFlip(ctx context.Context, f domain.CompletedFlip) error {
	const query = `
		INSERT INTO completed_flips
			(order_id, instrument_id, quantity, buy_price, sell_price, total_cost, profit, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		f.OrderID, f.InstrumentID, f.Quantity, f.BuyPrice, f.SellPrice,
		f.TotalCost, f.Profit, f.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert flip %s: %w", f.OrderID, err)
	}
	return nil
}

// RecentFlips returns up to limit flips, newest first.
func (s *FlipStore) RecentFlips(ctx context.Context, limit int) ([]domain.CompletedFlip, error) {
	const query = `
		SELECT order_id, instrument_id, quantity, buy_price, sell_price, total_cost, profit, completed_at
		FROM completed_flips
		ORDER BY completed_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent flips: %w", err)
	}

	flips, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CompletedFlip, error) {
		var f domain.CompletedFlip
		err := row.Scan(&f.OrderID, &f.InstrumentID, &f.Quantity, &f.BuyPrice,
			&f.SellPrice, &f.TotalCost, &f.Profit, &f.CompletedAt)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan flips: %w", err)
	}
	return flips, nil
}

var _ domain.FlipHistory = (*FlipStore)(nil)
