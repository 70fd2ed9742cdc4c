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

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, seller_id, buyer_id, buyer_phone, buyer_name, item_description,
	gross_amount, currency, status, verification_status, escrow_status,
	platform_fee, seller_payout, paid_at, shipped_at, delivered_at,
	completed_at, refunded_at, created_at, updated_at`

// Create inserts a new order.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.pool.Exec(ctx, query,
		o.ID, o.SellerID, o.BuyerID, o.BuyerPhone, o.BuyerName, o.ItemDescription,
		o.GrossAmount, o.Currency, o.Status, o.VerificationStatus, o.EscrowStatus,
		o.PlatformFee, o.SellerPayout, o.PaidAt, o.ShippedAt, o.DeliveredAt,
		o.CompletedAt, o.RefundedAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapConflict(err))
	}
	return nil
}

// GetByID fetches an order by its UUID.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an order with a row lock inside the transaction.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.scanOrder(tx.QueryRow(ctx, query, id))
}

// MarkPaid sets status=paid, escrow_status=held and the computed fee split.
func (r *OrderRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, fee, payout int64, paidAt time.Time) error {
	query := `UPDATE orders
		SET status = $2, escrow_status = $3, platform_fee = $4, seller_payout = $5,
		    paid_at = $6, updated_at = NOW()
		WHERE id = $1`

	_, err := tx.Exec(ctx, query, id,
		domain.OrderStatusPaid, domain.OrderEscrowHeld, fee, payout, paidAt)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return nil
}

// MarkCompleted finalizes the order and backfills missing fulfillment
// timestamps so a completed order always has a coherent timeline.
func (r *OrderRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) error {
	query := `UPDATE orders
		SET status = $2, escrow_status = $3,
		    shipped_at = COALESCE(shipped_at, $4),
		    delivered_at = COALESCE(delivered_at, $4),
		    completed_at = $4, updated_at = NOW()
		WHERE id = $1`

	_, err := tx.Exec(ctx, query, id,
		domain.OrderStatusCompleted, domain.OrderEscrowReleased, completedAt)
	if err != nil {
		return fmt.Errorf("mark order completed: %w", err)
	}
	return nil
}

// MarkRefunded finalizes the order on the refund path.
func (r *OrderRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, refundedAt time.Time) error {
	query := `UPDATE orders
		SET status = $2, escrow_status = $3, refunded_at = $4, updated_at = NOW()
		WHERE id = $1`

	_, err := tx.Exec(ctx, query, id,
		domain.OrderStatusRefunded, domain.OrderEscrowRefunded, refundedAt)
	if err != nil {
		return fmt.Errorf("mark order refunded: %w", err)
	}
	return nil
}

// SetStatus updates only the order status.
func (r *OrderRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	return nil
}

// SetVerificationStatus updates the manual-review state on the order.
func (r *OrderRepo) SetVerificationStatus(ctx context.Context, id uuid.UUID, status domain.VerificationStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET verification_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set order verification status: %w", err)
	}
	return nil
}

// MarkShipped records the shipping timestamp.
func (r *OrderRepo) MarkShipped(ctx context.Context, id uuid.UUID, shippedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET shipped_at = $2, updated_at = NOW() WHERE id = $1`, id, shippedAt)
	if err != nil {
		return fmt.Errorf("mark order shipped: %w", err)
	}
	return nil
}

func (r *OrderRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.SellerID, &o.BuyerID, &o.BuyerPhone, &o.BuyerName, &o.ItemDescription,
		&o.GrossAmount, &o.Currency, &o.Status, &o.VerificationStatus, &o.EscrowStatus,
		&o.PlatformFee, &o.SellerPayout, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt,
		&o.CompletedAt, &o.RefundedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
