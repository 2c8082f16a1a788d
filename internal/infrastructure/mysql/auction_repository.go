package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auction-core/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, title, description, starting_price, current_price,
                              start_time, end_time, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.Title, auction.Description,
		auction.StartingPrice, auction.CurrentPrice,
		auction.StartTime, auction.EndTime,
		int(auction.Status), auction.CreatedAt, auction.UpdatedAt)
	return err
}

func (r *MySQLAuctionRepository) LoadAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `
        SELECT id, title, description, starting_price, current_price,
               start_time, end_time, status, created_at, updated_at
        FROM auctions WHERE id = ?
    `

	var auction domain.Auction
	var status int

	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&auction.ID, &auction.Title, &auction.Description,
		&auction.StartingPrice, &auction.CurrentPrice,
		&auction.StartTime, &auction.EndTime,
		&status, &auction.CreatedAt, &auction.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	return &auction, nil
}

func (r *MySQLAuctionRepository) ListOpenAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	query := `
        SELECT id, title, description, starting_price, current_price,
               start_time, end_time, status, created_at, updated_at
        FROM auctions WHERE status = ? AND end_time > ?
        ORDER BY end_time ASC
    `

	rows, err := r.db.QueryContext(ctx, query, int(domain.AuctionOpen), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		var auction domain.Auction
		var status int

		err := rows.Scan(&auction.ID, &auction.Title, &auction.Description,
			&auction.StartingPrice, &auction.CurrentPrice,
			&auction.StartTime, &auction.EndTime,
			&status, &auction.CreatedAt, &auction.UpdatedAt)
		if err != nil {
			return nil, err
		}

		auction.Status = domain.AuctionStatus(status)
		auctions = append(auctions, &auction)
	}

	return auctions, rows.Err()
}

func (r *MySQLAuctionRepository) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	query := `
        SELECT id, title, description, starting_price, current_price,
               start_time, end_time, status, created_at, updated_at
        FROM auctions
        ORDER BY end_time DESC
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		var auction domain.Auction
		var status int

		err := rows.Scan(&auction.ID, &auction.Title, &auction.Description,
			&auction.StartingPrice, &auction.CurrentPrice,
			&auction.StartTime, &auction.EndTime,
			&status, &auction.CreatedAt, &auction.UpdatedAt)
		if err != nil {
			return nil, err
		}

		auction.Status = domain.AuctionStatus(status)
		auctions = append(auctions, &auction)
	}

	return auctions, rows.Err()
}

func (r *MySQLAuctionRepository) ListExpiredOpen(ctx context.Context, before time.Time) ([]string, error) {
	query := `SELECT id FROM auctions WHERE status = ? AND end_time <= ?`

	rows, err := r.db.QueryContext(ctx, query, int(domain.AuctionOpen), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *MySQLAuctionRepository) UpdateAuctionPrice(ctx context.Context, auctionID string, price float64) error {
	query := `UPDATE auctions SET current_price = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, price, time.Now().UTC(), auctionID)
	return err
}

func (r *MySQLAuctionRepository) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	query := `UPDATE auctions SET status = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, int(status), time.Now().UTC(), auctionID)
	return err
}
