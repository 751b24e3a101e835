package storage

import (
	"context"

	"coffee_shop/internal/pkg/apperrors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// classify turns driver failures that a caller may retry into apperrors.ErrTransient.
// Everything else is returned unchanged and ends up as an internal failure.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.ErrTransient, "", err)
	}

	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		switch {
		case pgError.Code == pgerrcode.LockNotAvailable,
			pgError.Code == pgerrcode.QueryCanceled,
			pgError.Code == pgerrcode.TooManyConnections,
			pgerrcode.IsTransactionRollback(pgError.Code),
			pgerrcode.IsConnectionException(pgError.Code):
			return apperrors.Wrap(apperrors.ErrTransient, "", err)
		}
	}

	return err
}

// constraintViolation returns the violated constraint name when err is a PostgreSQL
// error with the given SQLSTATE code.
func constraintViolation(err error, code string) (string, bool) {
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) && pgError.Code == code {
		return pgError.ConstraintName, true
	}
	return "", false
}
