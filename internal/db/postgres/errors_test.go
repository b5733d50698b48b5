package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyErrors(t *testing.T) {
	missing := fmt.Errorf("select wallet: %w", &pgconn.PgError{Code: "42P01", Message: `relation "wallet_accounts" does not exist`})
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})

	assert.True(t, IsUndefinedTable(missing))
	assert.False(t, IsUndefinedTable(dup))
	assert.False(t, IsUndefinedTable(errors.New("boom")))
	assert.True(t, IsNoRows(fmt.Errorf("find: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(nil))
}
