package service

import (
	"context"
	"fmt"
	"time"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/internal/metrics"

	"github.com/rs/zerolog"
)

const sweepBatchSize = 100

// AutoReleaseServiceImpl implements ports.AutoReleaseService: a periodic
// sweep that releases escrow wallets past their deadline, provided the
// underlying order is fulfilled.
type AutoReleaseServiceImpl struct {
	walletRepo ports.EscrowWalletRepository
	orderRepo  ports.OrderRepository
	escrow     ports.EscrowService
	log        zerolog.Logger
}

// NewAutoReleaseService creates a new AutoReleaseServiceImpl.
func NewAutoReleaseService(
	walletRepo ports.EscrowWalletRepository,
	orderRepo ports.OrderRepository,
	escrow ports.EscrowService,
	log zerolog.Logger,
) *AutoReleaseServiceImpl {
	return &AutoReleaseServiceImpl{
		walletRepo: walletRepo,
		orderRepo:  orderRepo,
		escrow:     escrow,
		log:        log,
	}
}

// Sweep finds locked wallets past their auto-release deadline and releases
// those whose order is fulfilled. Unfulfilled orders are left untouched for
// the next sweep. Each wallet is processed independently; a failure on one
// never aborts the rest. Returns the number of wallets released.
func (s *AutoReleaseServiceImpl) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.walletRepo.ListExpiredLocked(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired wallets: %w", err)
	}

	released := 0
	for i := range expired {
		wallet := &expired[i]
		if err := s.sweepOne(ctx, wallet); err != nil {
			s.log.Error().Err(err).
				Str("wallet_ref", wallet.WalletRef).
				Str("order_id", wallet.OrderID.String()).
				Msg("auto-release failed for wallet")
			continue
		}
		released++
	}

	metrics.AutoReleaseSweepReleased.Observe(float64(released))
	s.log.Info().
		Int("expired", len(expired)).
		Int("released", released).
		Msg("auto-release sweep finished")

	return released, nil
}

func (s *AutoReleaseServiceImpl) sweepOne(ctx context.Context, wallet *domain.EscrowWallet) error {
	order, err := s.orderRepo.GetByID(ctx, wallet.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order %s not found", wallet.OrderID)
	}
	if !order.IsFulfilled() {
		// Buyer never received anything we know of; keep holding.
		s.log.Debug().
			Str("wallet_ref", wallet.WalletRef).
			Msg("wallet past deadline but order unfulfilled, skipping")
		return nil
	}

	_, err = s.escrow.Release(ctx, ports.ResolveRequest{
		OrderID: wallet.OrderID,
		Actor:   domain.ActorAutoRelease,
	})
	return err
}

// Run invokes Sweep on a fixed interval until the context is cancelled.
// Intended to be started as a goroutine from main.
func (s *AutoReleaseServiceImpl) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("auto-release sweep failed")
			}
		}
	}
}
