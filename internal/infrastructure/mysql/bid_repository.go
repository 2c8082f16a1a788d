package mysql

import (
	"context"
	"database/sql"

	"auction-core/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) SaveBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, user_id, amount, sequence, placed_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.UserID, bid.Amount, bid.Sequence, bid.PlacedAt)
	return err
}

func (r *MySQLBidRepository) DeleteBid(ctx context.Context, bidID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bids WHERE id = ?`, bidID)
	return err
}

func (r *MySQLBidRepository) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, sequence, placed_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY sequence ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.UserID,
			&bid.Amount, &bid.Sequence, &bid.PlacedAt)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}

func (r *MySQLBidRepository) MaxSequence(ctx context.Context, auctionID string) (uint64, error) {
	query := `SELECT COALESCE(MAX(sequence), 0) FROM bids WHERE auction_id = ?`

	var seq uint64
	if err := r.db.QueryRowContext(ctx, query, auctionID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
