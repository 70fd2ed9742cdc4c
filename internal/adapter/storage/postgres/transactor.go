package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor hands out pgx transactions to the services that move money.
// Every escrow transition runs its reads and writes on a single transaction
// so the ledger entry, the cached balances and the status change commit or
// roll back together.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a transaction on the pool. Callers are expected to defer a
// Rollback and Commit explicitly on success.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
