package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

const orderColumns = `id, user_id, customer_email, status, total_cents, mystery_box_id, mystery_ticket_units,
	coupon_id, coupon_discount_cents, paid_at, created_at, updated_at`

// Repository reads and updates orders.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the order repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func wrap(op string, err error) error {
	if postgres.IsUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %w", op, common.ErrMarketNotProvisioned, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ClaimPaid moves a pending order to paid. It returns nil when the order is
// missing or no longer pending, so only one caller ever claims it.
func (r *Repository) ClaimPaid(ctx context.Context, id string, at time.Time) (*Order, error) {
	row := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE orders
		SET status = 'paid', paid_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+orderColumns,
		id, at)
	o, err := scanOrder(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("claim order", err)
	}
	return o, nil
}

// GetOrder returns the order or nil.
func (r *Repository) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := postgres.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get order", err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.CustomerEmail, &o.Status, &o.TotalCents, &o.MysteryBoxID,
		&o.MysteryTicketUnits, &o.CouponID, &o.CouponDiscountCents, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
