package postgres

import (
	"context"
	"errors"
	"fmt"

	"payloom/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PaymentEventRepo implements ports.PaymentEventRepository. The unique
// provider_ref constraint is the webhook idempotency barrier.
type PaymentEventRepo struct {
	pool Pool
}

// NewPaymentEventRepo creates a new PaymentEventRepo.
func NewPaymentEventRepo(pool Pool) *PaymentEventRepo {
	return &PaymentEventRepo{pool: pool}
}

// Create inserts a normalized provider event inside the caller's transaction.
func (r *PaymentEventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.PaymentEvent) error {
	query := `INSERT INTO payment_events (id, order_id, provider, provider_ref, amount, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.OrderID, e.Provider, e.ProviderRef, e.Amount, e.Outcome, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", mapConflict(err))
	}
	return nil
}

// GetByProviderRef fetches an event by its provider reference.
func (r *PaymentEventRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentEvent, error) {
	query := `SELECT id, order_id, provider, provider_ref, amount, outcome, created_at
		FROM payment_events WHERE provider_ref = $1`

	e := &domain.PaymentEvent{}
	err := r.pool.QueryRow(ctx, query, providerRef).Scan(
		&e.ID, &e.OrderID, &e.Provider, &e.ProviderRef, &e.Amount, &e.Outcome, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment event: %w", err)
	}
	return e, nil
}
