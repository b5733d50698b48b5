package community

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

const listingColumns = `id, user_id, title, price_cents, commission_rate, listing_fee_cents, status,
	delivery_status, buyer_email, seller_email, created_at, updated_at`

// Repository reads and updates user_product_listings.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the listing repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func wrap(op string, err error) error {
	if postgres.IsUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %w", op, common.ErrMarketNotProvisioned, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetListing returns the listing or nil.
func (r *Repository) GetListing(ctx context.Context, id string) (*Listing, error) {
	row := postgres.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+listingColumns+` FROM user_product_listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get listing", err)
	}
	return l, nil
}

// UpdateDelivery stores the delivery status and returns the updated listing, or nil if it does not exist.
func (r *Repository) UpdateDelivery(ctx context.Context, id, status string) (*Listing, error) {
	row := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE user_product_listings
		SET delivery_status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+listingColumns,
		id, status)
	l, err := scanListing(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("update listing delivery", err)
	}
	return l, nil
}

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.PriceCents, &l.CommissionRate, &l.ListingFeeCents,
		&l.Status, &l.DeliveryStatus, &l.BuyerEmail, &l.SellerEmail, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
