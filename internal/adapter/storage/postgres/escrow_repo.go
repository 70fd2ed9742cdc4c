package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payloom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EscrowWalletRepo implements ports.EscrowWalletRepository.
type EscrowWalletRepo struct {
	pool Pool
}

// NewEscrowWalletRepo creates a new EscrowWalletRepo.
func NewEscrowWalletRepo(pool Pool) *EscrowWalletRepo {
	return &EscrowWalletRepo{pool: pool}
}

const walletColumns = `id, wallet_ref, order_id, gross_amount, platform_fee, net_amount,
	currency, status, auto_release_at, released_at, released_by, created_at`

// Create inserts a locked wallet. The unique order_id constraint rejects a
// concurrent second confirmation as ports.ErrConflict.
func (r *EscrowWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.EscrowWallet) error {
	query := `INSERT INTO escrow_wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.WalletRef, w.OrderID, w.GrossAmount, w.PlatformFee, w.NetAmount,
		w.Currency, w.Status, w.AutoReleaseAt, w.ReleasedAt, w.ReleasedBy, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert escrow wallet: %w", mapConflict(err))
	}
	return nil
}

// GetByID fetches a wallet by its UUID.
func (r *EscrowWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM escrow_wallets WHERE id = $1`
	return r.scanWallet(r.pool.QueryRow(ctx, query, id))
}

// GetByOrderID fetches a wallet by its order.
func (r *EscrowWalletRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EscrowWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM escrow_wallets WHERE order_id = $1`
	return r.scanWallet(r.pool.QueryRow(ctx, query, orderID))
}

// GetByRef fetches a wallet by its human-readable reference.
func (r *EscrowWalletRepo) GetByRef(ctx context.Context, walletRef string) (*domain.EscrowWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM escrow_wallets WHERE wallet_ref = $1`
	return r.scanWallet(r.pool.QueryRow(ctx, query, walletRef))
}

// MarkReleased transitions locked -> released. The WHERE status clause makes
// the transition exclusive: exactly one concurrent caller sees true.
func (r *EscrowWalletRepo) MarkReleased(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error) {
	return r.transition(ctx, tx, id, domain.EscrowStatusReleased, actor, at)
}

// MarkRefunded transitions locked -> refunded under the same exclusivity rule.
func (r *EscrowWalletRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error) {
	return r.transition(ctx, tx, id, domain.EscrowStatusRefunded, actor, at)
}

func (r *EscrowWalletRepo) transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, to domain.EscrowStatus, actor domain.ReleaseActor, at time.Time) (bool, error) {
	query := `UPDATE escrow_wallets
		SET status = $2, released_by = $3, released_at = $4
		WHERE id = $1 AND status = $5`

	tag, err := tx.Exec(ctx, query, id, to, actor, at, domain.EscrowStatusLocked)
	if err != nil {
		return false, fmt.Errorf("transition escrow wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpiredLocked returns locked wallets past their auto-release deadline,
// oldest deadline first.
func (r *EscrowWalletRepo) ListExpiredLocked(ctx context.Context, now time.Time, limit int) ([]domain.EscrowWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM escrow_wallets
		WHERE status = $1 AND auto_release_at <= $2
		ORDER BY auto_release_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.EscrowStatusLocked, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.EscrowWallet
	for rows.Next() {
		var w domain.EscrowWallet
		if err := rows.Scan(
			&w.ID, &w.WalletRef, &w.OrderID, &w.GrossAmount, &w.PlatformFee, &w.NetAmount,
			&w.Currency, &w.Status, &w.AutoReleaseAt, &w.ReleasedAt, &w.ReleasedBy, &w.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan expired wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (r *EscrowWalletRepo) scanWallet(row pgx.Row) (*domain.EscrowWallet, error) {
	w := &domain.EscrowWallet{}
	err := row.Scan(
		&w.ID, &w.WalletRef, &w.OrderID, &w.GrossAmount, &w.PlatformFee, &w.NetAmount,
		&w.Currency, &w.Status, &w.AutoReleaseAt, &w.ReleasedAt, &w.ReleasedBy, &w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan escrow wallet: %w", err)
	}
	return w, nil
}
