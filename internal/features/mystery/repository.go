package mystery

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

const boxColumns = `id, name, slug, description, image, images, ticket_price_cents, is_active, created_at, updated_at`

const prizeColumns = `id, box_id, label, prize_type, probability, stock, metadata, is_active, sort_order`

const ticketColumns = `id, user_id, box_id, order_id, quantity_total, quantity_used, status, created_at, updated_at`

const spinColumns = `id, user_id, box_id, ticket_id, order_id, prize_id, prize_label, coupon_id,
	wallet_transaction_id, status, metadata, created_at, redeemed_at`

// Repository runs the mystery box queries.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the mystery repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context) postgres.Querier {
	return postgres.Conn(ctx, r.db)
}

func wrap(op string, err error) error {
	if postgres.IsUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %w", op, common.ErrMysteryNotProvisioned, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetActiveBox returns the box if it exists and is active, otherwise nil.
func (r *Repository) GetActiveBox(ctx context.Context, boxID string) (*Box, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+boxColumns+` FROM mystery_boxes WHERE id = $1 AND is_active`, boxID)
	b, err := scanBox(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get mystery box", err)
	}
	return b, nil
}

// ListActiveBoxes returns active boxes, cheapest first.
func (r *Repository) ListActiveBoxes(ctx context.Context, limit int) ([]*Box, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+boxColumns+`
		FROM mystery_boxes
		WHERE is_active
		ORDER BY ticket_price_cents, name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrap("list mystery boxes", err)
	}
	defer rows.Close()

	var out []*Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, wrap("scan mystery box", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list mystery boxes", err)
	}
	return out, nil
}

// ListActivePrizes returns the active prizes of the boxes in draw order.
func (r *Repository) ListActivePrizes(ctx context.Context, boxIDs []string) ([]*Prize, error) {
	if len(boxIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+prizeColumns+`
		FROM mystery_prizes
		WHERE box_id = ANY($1) AND is_active
		ORDER BY box_id, sort_order, id
	`, boxIDs)
	if err != nil {
		return nil, wrap("list mystery prizes", err)
	}
	defer rows.Close()

	var out []*Prize
	for rows.Next() {
		var p Prize
		if err := rows.Scan(&p.ID, &p.BoxID, &p.Label, &p.PrizeType, &p.Probability, &p.Stock,
			&p.Metadata, &p.Active, &p.SortOrder); err != nil {
			return nil, wrap("scan mystery prize", err)
		}
		if p.Metadata == nil {
			p.Metadata = map[string]any{}
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list mystery prizes", err)
	}
	return out, nil
}

// ConsumeTicket spends one spin from the user's oldest ticket batch whose box
// costs ticketPriceCents. Tickets of equally priced boxes are interchangeable.
// It returns nil when the user has nothing left to spend.
func (r *Repository) ConsumeTicket(ctx context.Context, userID string, ticketPriceCents int64) (*Ticket, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE mystery_tickets t
		SET quantity_used = t.quantity_used + 1,
		    status        = CASE WHEN t.quantity_used + 1 >= t.quantity_total THEN $4 ELSE $3 END,
		    updated_at    = NOW()
		WHERE t.id = (
			SELECT c.id
			FROM mystery_tickets c
			JOIN mystery_boxes b ON b.id = c.box_id
			WHERE c.user_id = $1
			  AND c.status = $3
			  AND c.quantity_used < c.quantity_total
			  AND b.ticket_price_cents = $2
			ORDER BY c.created_at, c.id
			LIMIT 1
			FOR UPDATE OF c
		)
		AND t.quantity_used < t.quantity_total
		RETURNING `+ticketColumns,
		userID, ticketPriceCents, TicketActive, TicketUsed)

	t, err := scanTicket(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("consume mystery ticket", err)
	}
	return t, nil
}

// AvailableTickets sums the user's unspent spins per ticket price.
func (r *Repository) AvailableTickets(ctx context.Context, userID string) (map[int64]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.ticket_price_cents, SUM(t.quantity_total - t.quantity_used)
		FROM mystery_tickets t
		JOIN mystery_boxes b ON b.id = t.box_id
		WHERE t.user_id = $1 AND t.status = $2 AND t.quantity_used < t.quantity_total
		GROUP BY b.ticket_price_cents
	`, userID, TicketActive)
	if err != nil {
		return nil, wrap("count mystery tickets", err)
	}
	defer rows.Close()

	out := map[int64]int{}
	for rows.Next() {
		var price, available int64
		if err := rows.Scan(&price, &available); err != nil {
			return nil, wrap("scan mystery ticket count", err)
		}
		out[price] = int(available)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("count mystery tickets", err)
	}
	return out, nil
}

// DecrementStock takes one unit of a finite stock. False means it was already empty.
func (r *Repository) DecrementStock(ctx context.Context, prizeID string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE mystery_prizes
		SET stock = stock - 1, updated_at = NOW()
		WHERE id = $1 AND stock IS NOT NULL AND stock > 0
	`, prizeID)
	if err != nil {
		return false, wrap("decrement prize stock", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertSpin stores the spin record.
func (r *Repository) InsertSpin(ctx context.Context, s *Spin) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO mystery_spins (id, user_id, box_id, ticket_id, order_id, prize_id, prize_label,
			coupon_id, wallet_transaction_id, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, s.ID, s.UserID, s.BoxID, s.TicketID, s.OrderID, s.PrizeID, s.PrizeLabel,
		s.CouponID, s.WalletTransactionID, s.Status, s.Metadata).Scan(&s.CreatedAt)
	if err != nil {
		return wrap("insert mystery spin", err)
	}
	return nil
}

// ListSpins returns the user's spins, newest first.
func (r *Repository) ListSpins(ctx context.Context, userID string, limit int) ([]*Spin, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+spinColumns+`
		FROM mystery_spins
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, wrap("list mystery spins", err)
	}
	defer rows.Close()

	var out []*Spin
	for rows.Next() {
		s, err := scanSpin(rows)
		if err != nil {
			return nil, wrap("scan mystery spin", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list mystery spins", err)
	}
	return out, nil
}

// GetSpin returns a spin owned by the user, or nil.
func (r *Repository) GetSpin(ctx context.Context, userID, spinID string) (*Spin, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+spinColumns+` FROM mystery_spins WHERE id = $1 AND user_id = $2`, spinID, userID)
	s, err := scanSpin(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get mystery spin", err)
	}
	return s, nil
}

// MarkRedeemed stamps redeemed_at on a won physical prize that was not claimed yet.
// It returns nil when the spin does not qualify.
func (r *Repository) MarkRedeemed(ctx context.Context, userID, spinID string, at time.Time) (*Spin, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE mystery_spins
		SET redeemed_at = $3
		WHERE id = $1 AND user_id = $2
		  AND status = 'won'
		  AND redeemed_at IS NULL
		  AND metadata->>'prize_type' = 'physical'
		RETURNING `+spinColumns,
		spinID, userID, at)

	s, err := scanSpin(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("redeem mystery spin", err)
	}
	return s, nil
}

// InsertTicket stores a ticket batch. False means the order already granted tickets for the box.
func (r *Repository) InsertTicket(ctx context.Context, t *Ticket) (bool, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO mystery_tickets (id, user_id, box_id, order_id, quantity_total, quantity_used, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, box_id) WHERE order_id IS NOT NULL DO NOTHING
		RETURNING created_at, updated_at
	`, t.ID, t.UserID, t.BoxID, t.OrderID, t.QuantityTotal, t.QuantityUsed, t.Status)

	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		if postgres.IsNoRows(err) {
			return false, nil
		}
		return false, wrap("insert mystery ticket", err)
	}
	return true, nil
}

func scanBox(row pgx.Row) (*Box, error) {
	var b Box
	err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Description, &b.Image, &b.Images,
		&b.TicketPriceCents, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanTicket(row pgx.Row) (*Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.BoxID, &t.OrderID, &t.QuantityTotal, &t.QuantityUsed,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanSpin(row pgx.Row) (*Spin, error) {
	var s Spin
	err := row.Scan(&s.ID, &s.UserID, &s.BoxID, &s.TicketID, &s.OrderID, &s.PrizeID, &s.PrizeLabel,
		&s.CouponID, &s.WalletTransactionID, &s.Status, &s.Metadata, &s.CreatedAt, &s.RedeemedAt)
	if err != nil {
		return nil, err
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	return &s, nil
}
