package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

const couponColumns = `id, code, type, value, max_uses, used_count, active,
	user_id, created_by, expires_at, metadata, created_at, updated_at`

// Repository stores coupons and their redemptions in Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the coupon repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context) postgres.Querier {
	return postgres.Conn(ctx, r.db)
}

func wrap(op string, err error) error {
	if postgres.IsUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %w", op, common.ErrCouponsNotProvisioned, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetByCode returns the coupon with the exact code, or nil.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	c, err := scanCoupon(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get coupon by code", err)
	}
	return c, nil
}

// Insert stores c. It returns false when the code is already taken.
func (r *Repository) Insert(ctx context.Context, c *Coupon) (bool, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO coupons (id, code, type, value, max_uses, used_count, active,
			user_id, created_by, expires_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO NOTHING
		RETURNING created_at, updated_at
	`, c.ID, c.Code, c.Type, c.Value, c.MaxUses, c.UsedCount, c.Active,
		c.UserID, c.CreatedBy, c.ExpiresAt, c.Metadata)

	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		if postgres.IsNoRows(err) {
			return false, nil
		}
		return false, wrap("insert coupon", err)
	}
	return true, nil
}

// InsertRedemption records a use. It returns false when the order already used the coupon.
func (r *Repository) InsertRedemption(ctx context.Context, red *Redemption) (bool, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO coupon_redemptions (id, coupon_id, order_id, user_id, discount_cents)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (coupon_id, order_id) DO NOTHING
		RETURNING created_at
	`, red.ID, red.CouponID, red.OrderID, red.UserID, red.DiscountCents)

	if err := row.Scan(&red.CreatedAt); err != nil {
		if postgres.IsNoRows(err) {
			return false, nil
		}
		return false, wrap("insert coupon redemption", err)
	}
	return true, nil
}

// IncrementUse bumps used_count unless the coupon is already exhausted.
func (r *Repository) IncrementUse(ctx context.Context, couponID string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND used_count < max_uses
	`, couponID)
	if err != nil {
		return false, wrap("increment coupon use", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns the coupons owned by a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]*Coupon, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, wrap("list user coupons", err)
	}
	return collect(rows)
}

// ListByIDs returns the coupons with the given ids in no particular order.
func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]*Coupon, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, wrap("list coupons by id", err)
	}
	return collect(rows)
}

// DeactivateExpired switches off every active coupon that expired before now.
func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE coupons
		SET active = FALSE, updated_at = NOW()
		WHERE active AND expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return 0, wrap("deactivate expired coupons", err)
	}
	return tag.RowsAffected(), nil
}

func collect(rows pgx.Rows) ([]*Coupon, error) {
	defer rows.Close()
	var out []*Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, wrap("scan coupon", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("read coupons", err)
	}
	return out, nil
}

func scanCoupon(row pgx.Row) (*Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.MaxUses, &c.UsedCount, &c.Active,
		&c.UserID, &c.CreatedBy, &c.ExpiresAt, &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return &c, nil
}
