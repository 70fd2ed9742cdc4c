package postgres

import (
	"context"
	"errors"
	"fmt"

	"payloom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SellerWalletRepo implements ports.SellerWalletRepository.
type SellerWalletRepo struct {
	pool Pool
}

// NewSellerWalletRepo creates a new SellerWalletRepo.
func NewSellerWalletRepo(pool Pool) *SellerWalletRepo {
	return &SellerWalletRepo{pool: pool}
}

const sellerWalletColumns = `id, seller_id, currency, available_balance, pending_balance, total_earned, created_at, updated_at`

// GetBySellerID fetches a seller wallet without locking.
func (r *SellerWalletRepo) GetBySellerID(ctx context.Context, sellerID uuid.UUID) (*domain.SellerWallet, error) {
	query := `SELECT ` + sellerWalletColumns + ` FROM seller_wallets WHERE seller_id = $1`
	return r.scanWallet(r.pool.QueryRow(ctx, query, sellerID))
}

// GetBySellerIDForUpdate fetches a seller wallet with a row lock, so a
// withdrawal's balance check and debit are serialized.
func (r *SellerWalletRepo) GetBySellerIDForUpdate(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID) (*domain.SellerWallet, error) {
	query := `SELECT ` + sellerWalletColumns + ` FROM seller_wallets WHERE seller_id = $1 FOR UPDATE`
	return r.scanWallet(tx.QueryRow(ctx, query, sellerID))
}

// AdjustBySeller applies the three balance deltas in one upsert, creating the
// wallet row on the seller's first order.
func (r *SellerWalletRepo) AdjustBySeller(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, currency string, availableDelta, pendingDelta, earnedDelta int64) error {
	query := `INSERT INTO seller_wallets
		(id, seller_id, currency, available_balance, pending_balance, total_earned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (seller_id) DO UPDATE SET
			available_balance = seller_wallets.available_balance + EXCLUDED.available_balance,
			pending_balance   = seller_wallets.pending_balance + EXCLUDED.pending_balance,
			total_earned      = seller_wallets.total_earned + EXCLUDED.total_earned,
			updated_at        = NOW()`

	_, err := tx.Exec(ctx, query,
		uuid.New(), sellerID, currency, availableDelta, pendingDelta, earnedDelta)
	if err != nil {
		return fmt.Errorf("adjust seller wallet: %w", err)
	}
	return nil
}

func (r *SellerWalletRepo) scanWallet(row pgx.Row) (*domain.SellerWallet, error) {
	w := &domain.SellerWallet{}
	err := row.Scan(
		&w.ID, &w.SellerID, &w.Currency, &w.AvailableBalance,
		&w.PendingBalance, &w.TotalEarned, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan seller wallet: %w", err)
	}
	return w, nil
}
