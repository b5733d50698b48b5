// Package wallet: repository.go runs every query on wallet_accounts and wallet_transactions.
// Methods join the transaction carried by ctx, see postgres.Conn.
package wallet

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

const txColumns = `id, user_id, amount_cents, direction, status, kind, description,
	reference_type, reference_id, metadata, created_by, created_at`

const accountColumns = `user_id, balance_cents, pending_cents, total_earned_cents,
	total_withdrawn_cents, created_at, updated_at`

// Repository is the Postgres-backed ledger store.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the wallet repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context) postgres.Querier {
	return postgres.Conn(ctx, r.db)
}

// wrap adds the operation name and marks missing tables as a setup problem.
func wrap(op string, err error) error {
	if postgres.IsUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %w", op, common.ErrLedgerNotProvisioned, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FindByReference returns the entry recorded for the idempotency key, or nil.
func (r *Repository) FindByReference(ctx context.Context, kind Kind, refType, refID string) (*Transaction, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM wallet_transactions
		WHERE kind = $1 AND reference_type = $2 AND reference_id = $3
	`, kind, refType, refID)

	t, err := scanTransaction(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find wallet transaction by reference", err)
	}
	return t, nil
}

// EnsureAccount creates a zeroed account if the user has none.
func (r *Repository) EnsureAccount(ctx context.Context, userID string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO wallet_accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return wrap("ensure wallet account", err)
	}
	return nil
}

// InsertTransaction appends t. It returns false without error when the reference
// key is already taken, i.e. a concurrent writer recorded the same event first.
func (r *Repository) InsertTransaction(ctx context.Context, t *Transaction) (bool, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO wallet_transactions (
			id, user_id, amount_cents, direction, status, kind, description,
			reference_type, reference_id, metadata, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (kind, reference_type, reference_id)
			WHERE reference_type IS NOT NULL AND reference_id IS NOT NULL
			DO NOTHING
		RETURNING created_at
	`, t.ID, t.UserID, t.AmountCents, t.Direction, t.Status, t.Kind, t.Description,
		t.ReferenceType, t.ReferenceID, t.Metadata, t.CreatedBy)

	if err := row.Scan(&t.CreatedAt); err != nil {
		if postgres.IsNoRows(err) {
			return false, nil
		}
		return false, wrap("insert wallet transaction", err)
	}
	return true, nil
}

// ApplyDelta updates the aggregate in one guarded statement.
// If the balance would go negative no row matches and ErrInsufficientBalance is returned.
func (r *Repository) ApplyDelta(ctx context.Context, userID string, d Delta) (*Account, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE wallet_accounts
		SET balance_cents         = balance_cents + $2,
		    pending_cents         = pending_cents + $3,
		    total_earned_cents    = total_earned_cents + $4,
		    total_withdrawn_cents = total_withdrawn_cents + $5,
		    updated_at            = NOW()
		WHERE user_id = $1
		  AND balance_cents + $2 >= 0
		  AND pending_cents + $3 >= 0
		RETURNING `+accountColumns,
		userID, d.BalanceCents, d.PendingCents, d.TotalEarnedCents, d.TotalWithdrawnCents)

	a, err := scanAccount(row)
	if postgres.IsNoRows(err) {
		return nil, common.ErrInsufficientBalance
	}
	if err != nil {
		return nil, wrap("update wallet account", err)
	}
	return a, nil
}

// GetAccount returns the stored account or nil when the user never had one.
func (r *Repository) GetAccount(ctx context.Context, userID string) (*Account, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM wallet_accounts WHERE user_id = $1`, userID)
	a, err := scanAccount(row)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get wallet account", err)
	}
	return a, nil
}

// ListTransactions returns the newest limit entries of a user.
func (r *Repository) ListTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+txColumns+`
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, wrap("list wallet transactions", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, wrap("scan wallet transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list wallet transactions", err)
	}
	return out, nil
}

// ListEntries returns the balance-relevant part of a user's whole log.
func (r *Repository) ListEntries(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT direction, status, kind, amount_cents
		FROM wallet_transactions
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, wrap("list wallet entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Direction, &e.Status, &e.Kind, &e.AmountCents); err != nil {
			return nil, wrap("scan wallet entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list wallet entries", err)
	}
	return out, nil
}

// ListRecentAccounts returns the most recently touched accounts.
func (r *Repository) ListRecentAccounts(ctx context.Context, limit int) ([]*Account, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+accountColumns+`
		FROM wallet_accounts
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrap("list wallet accounts", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, wrap("scan wallet account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list wallet accounts", err)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.UserID, &a.BalanceCents, &a.PendingCents, &a.TotalEarnedCents,
		&a.TotalWithdrawnCents, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.AmountCents, &t.Direction, &t.Status, &t.Kind, &t.Description,
		&t.ReferenceType, &t.ReferenceID, &t.Metadata, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	return &t, nil
}
