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

// DisputeRepo implements ports.DisputeRepository.
type DisputeRepo struct {
	pool Pool
}

// NewDisputeRepo creates a new DisputeRepo.
func NewDisputeRepo(pool Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

// Create inserts a dispute. The unique order_id constraint rejects a second
// dispute for the same order as ports.ErrConflict.
func (r *DisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	query := `INSERT INTO disputes (id, order_id, opened_by, reason, status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.OrderID, d.OpenedBy, d.Reason, d.Status, d.CreatedAt, d.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", mapConflict(err))
	}
	return nil
}

// GetOpenByOrder returns the open dispute for an order, or nil.
func (r *DisputeRepo) GetOpenByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT id, order_id, opened_by, reason, status, created_at, resolved_at
		FROM disputes WHERE order_id = $1 AND status = $2`

	d := &domain.Dispute{}
	err := r.pool.QueryRow(ctx, query, orderID, domain.DisputeOpen).Scan(
		&d.ID, &d.OrderID, &d.OpenedBy, &d.Reason, &d.Status, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open dispute: %w", err)
	}
	return d, nil
}

// Resolve closes a dispute inside the caller's transaction.
func (r *DisputeRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	query := `UPDATE disputes SET status = $2, resolved_at = $3 WHERE id = $1`

	_, err := tx.Exec(ctx, query, id, domain.DisputeResolved, at)
	if err != nil {
		return fmt.Errorf("resolve dispute: %w", err)
	}
	return nil
}
