package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// codeUndefinedTable is the SQLSTATE of a missing relation.
const codeUndefinedTable = "42P01"

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUndefinedTable reports a missing relation, i.e. the schema was never provisioned.
func IsUndefinedTable(err error) bool {
	return pgCode(err) == codeUndefinedTable
}

// IsNoRows reports an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
