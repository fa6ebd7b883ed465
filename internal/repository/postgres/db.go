package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

// validID reports whether id can name a row. Primary keys are UUID columns,
// and Postgres fails the whole statement on a malformed literal.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// requireRows returns notFound when the statement affected no rows.
func requireRows(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// haversineSQL returns a great-circle distance expression in meters between
// the columns latCol/lngCol and the placeholders $latArg/$lngArg.
func haversineSQL(latCol, lngCol string, latArg, lngArg int) string {
	return fmt.Sprintf(
		"6371000 * 2 * ASIN(SQRT(POWER(SIN(RADIANS(%[1]s - $%[3]d) / 2), 2) + COS(RADIANS($%[3]d)) * COS(RADIANS(%[1]s)) * POWER(SIN(RADIANS(%[2]s - $%[4]d) / 2), 2)))",
		latCol, lngCol, latArg, lngArg,
	)
}
