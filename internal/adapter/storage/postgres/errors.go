package postgres

import (
	"errors"

	"flowpay-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgCodeUniqueViolation  = "23505"
	pgCodeLockNotAvailable = "55P03"
)

// mapError translates PostgreSQL error codes the engine reacts to into
// domain sentinels; anything else passes through unchanged.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeUniqueViolation:
			return domain.ErrDuplicateKey
		case pgCodeLockNotAvailable:
			return domain.ErrLockNotAcquired
		}
	}
	return err
}
