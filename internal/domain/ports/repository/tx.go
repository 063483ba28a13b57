package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// Repository methods accept a `qx any` executor so the same method works both
// inside a transaction (tx-bound Exec/Query, SELECT ... FOR UPDATE) and against
// the pool when `nil` is passed. The concrete type of the handle is
// infra-defined (pgx.Tx for Postgres). Keep this interface small and stable.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error

	// LockUser serializes all mutations for one account within the given
	// transaction (pg_advisory_xact_lock in the Postgres implementation).
	LockUser(ctx context.Context, tx Tx, userID string) error
}
