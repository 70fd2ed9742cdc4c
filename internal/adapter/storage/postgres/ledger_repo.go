package postgres

import (
	"context"
	"fmt"

	"payloom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. Entries are append-only:
// there are deliberately no UPDATE or DELETE statements in this file.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Record appends one ledger entry inside the caller's transaction.
func (r *LedgerRepo) Record(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries
		(id, entry_ref, order_id, entry_type, debit_account, credit_account, amount, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.EntryRef, e.OrderID, e.Type, e.DebitAccount, e.CreditAccount,
		e.Amount, e.Description, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", mapConflict(err))
	}
	return nil
}

// ListByOrder returns all entries for one order, oldest first.
func (r *LedgerRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT id, entry_ref, order_id, entry_type, debit_account, credit_account,
			amount, description, metadata, created_at
		FROM ledger_entries WHERE order_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.EntryRef, &e.OrderID, &e.Type, &e.DebitAccount, &e.CreditAccount,
			&e.Amount, &e.Description, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AccountBalance derives sum(credits) - sum(debits) for one account straight
// from the entries. The reconciliation report compares this against the
// cached platform_accounts balance.
func (r *LedgerRepo) AccountBalance(ctx context.Context, account domain.Account) (int64, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN credit_account = $1 THEN amount ELSE 0 END), 0) -
		COALESCE(SUM(CASE WHEN debit_account = $1 THEN amount ELSE 0 END), 0)
		FROM ledger_entries
		WHERE credit_account = $1 OR debit_account = $1`

	var balance int64
	if err := r.pool.QueryRow(ctx, query, account).Scan(&balance); err != nil {
		return 0, fmt.Errorf("derive account balance: %w", err)
	}
	return balance, nil
}
