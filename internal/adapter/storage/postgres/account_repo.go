package postgres

import (
	"context"
	"errors"
	"fmt"

	"payloom/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PlatformAccountRepo implements ports.PlatformAccountRepository.
type PlatformAccountRepo struct {
	pool Pool
}

// NewPlatformAccountRepo creates a new PlatformAccountRepo.
func NewPlatformAccountRepo(pool Pool) *PlatformAccountRepo {
	return &PlatformAccountRepo{pool: pool}
}

// Adjust applies balance = balance + delta atomically inside the caller's
// transaction. The account rows are seeded by migration; a missing row is a
// programming error surfaced as such.
func (r *PlatformAccountRepo) Adjust(ctx context.Context, tx pgx.Tx, account domain.Account, delta int64) error {
	query := `UPDATE platform_accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE account = $1`

	tag, err := tx.Exec(ctx, query, account, delta)
	if err != nil {
		return fmt.Errorf("adjust platform account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("platform account %s not seeded", account)
	}
	return nil
}

// Get fetches one cached account balance.
func (r *PlatformAccountRepo) Get(ctx context.Context, account domain.Account) (*domain.PlatformAccount, error) {
	query := `SELECT account, balance, updated_at FROM platform_accounts WHERE account = $1`

	a := &domain.PlatformAccount{}
	err := r.pool.QueryRow(ctx, query, account).Scan(&a.Account, &a.Balance, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get platform account: %w", err)
	}
	return a, nil
}

// List returns all cached account balances.
func (r *PlatformAccountRepo) List(ctx context.Context) ([]domain.PlatformAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account, balance, updated_at FROM platform_accounts ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("list platform accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.PlatformAccount
	for rows.Next() {
		var a domain.PlatformAccount
		if err := rows.Scan(&a.Account, &a.Balance, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan platform account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
