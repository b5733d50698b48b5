package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository works with admin_login_attempts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LogAttempt records a login attempt.
func (r *Repository) LogAttempt(ctx context.Context, a *LoginAttempt) error {
	query := `INSERT INTO admin_login_attempts (remote_addr, email, success) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, a.RemoteAddr, a.Email, a.Success); err != nil {
		return fmt.Errorf("log admin attempt: %w", err)
	}
	return nil
}

// RecentFailures counts failed attempts from remoteAddr since the given time.
func (r *Repository) RecentFailures(ctx context.Context, remoteAddr string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE remote_addr = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, remoteAddr, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count admin attempts: %w", err)
	}
	return count, nil
}
