package postgres

import (
	"context"
	"errors"
	"fmt"

	"payloom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DepositRepo implements ports.DepositRepository.
type DepositRepo struct {
	pool Pool
}

// NewDepositRepo creates a new DepositRepo.
func NewDepositRepo(pool Pool) *DepositRepo {
	return &DepositRepo{pool: pool}
}

const depositColumns = `id, order_id, transaction_code, payer_phone, method, claimed_amount,
	status, created_at, reviewed_at, reviewed_by`

// Create inserts a deposit. The unique order_id constraint rejects a second
// submission for the same order as ports.ErrConflict.
func (r *DepositRepo) Create(ctx context.Context, d *domain.EscrowDeposit) error {
	query := `INSERT INTO escrow_deposits (` + depositColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.OrderID, d.TransactionCode, d.PayerPhone, d.Method, d.ClaimedAmount,
		d.Status, d.CreatedAt, d.ReviewedAt, d.ReviewedBy,
	)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", mapConflict(err))
	}
	return nil
}

// GetByID fetches a deposit by its UUID.
func (r *DepositRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowDeposit, error) {
	query := `SELECT ` + depositColumns + ` FROM escrow_deposits WHERE id = $1`
	return r.scanDeposit(r.pool.QueryRow(ctx, query, id))
}

// GetByOrderID fetches the deposit submitted for one order.
func (r *DepositRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EscrowDeposit, error) {
	query := `SELECT ` + depositColumns + ` FROM escrow_deposits WHERE order_id = $1`
	return r.scanDeposit(r.pool.QueryRow(ctx, query, orderID))
}

// FindByCode returns the earliest deposit carrying the given transaction
// code, regardless of order. Used for duplicate detection.
func (r *DepositRepo) FindByCode(ctx context.Context, code string) (*domain.EscrowDeposit, error) {
	query := `SELECT ` + depositColumns + ` FROM escrow_deposits
		WHERE transaction_code = $1 ORDER BY created_at ASC LIMIT 1`
	return r.scanDeposit(r.pool.QueryRow(ctx, query, code))
}

// SetStatus updates the deposit review state.
func (r *DepositRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.DepositStatus, reviewedBy *uuid.UUID) error {
	query := `UPDATE escrow_deposits
		SET status = $2, reviewed_by = $3,
		    reviewed_at = CASE WHEN $3::uuid IS NULL THEN reviewed_at ELSE NOW() END
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, status, reviewedBy)
	if err != nil {
		return fmt.Errorf("set deposit status: %w", err)
	}
	return nil
}

// RecordCheck appends one verification check result to the audit log.
func (r *DepositRepo) RecordCheck(ctx context.Context, c *domain.VerificationCheck) error {
	query := `INSERT INTO verification_checks (id, deposit_id, check_type, passed, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, c.ID, c.DepositID, c.Check, c.Passed, c.Detail, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verification check: %w", err)
	}
	return nil
}

// ListChecks returns the full verification log for one deposit.
func (r *DepositRepo) ListChecks(ctx context.Context, depositID uuid.UUID) ([]domain.VerificationCheck, error) {
	query := `SELECT id, deposit_id, check_type, passed, detail, created_at
		FROM verification_checks WHERE deposit_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, depositID)
	if err != nil {
		return nil, fmt.Errorf("list verification checks: %w", err)
	}
	defer rows.Close()

	var checks []domain.VerificationCheck
	for rows.Next() {
		var c domain.VerificationCheck
		if err := rows.Scan(&c.ID, &c.DepositID, &c.Check, &c.Passed, &c.Detail, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (r *DepositRepo) scanDeposit(row pgx.Row) (*domain.EscrowDeposit, error) {
	d := &domain.EscrowDeposit{}
	err := row.Scan(
		&d.ID, &d.OrderID, &d.TransactionCode, &d.PayerPhone, &d.Method, &d.ClaimedAmount,
		&d.Status, &d.CreatedAt, &d.ReviewedAt, &d.ReviewedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan deposit: %w", err)
	}
	return d, nil
}
