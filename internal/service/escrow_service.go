package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payloom/config"
	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/internal/metrics"
	"payloom/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EscrowServiceImpl implements ports.EscrowService. Every operation wraps its
// wallet transition, order update, ledger entries, and account adjustments in
// a single database transaction: a mid-sequence crash can never leave an
// order marked paid without a wallet, or a wallet released without its
// ledger entries.
type EscrowServiceImpl struct {
	orderRepo    ports.OrderRepository
	walletRepo   ports.EscrowWalletRepository
	ledgerRepo   ports.LedgerRepository
	accountRepo  ports.PlatformAccountRepository
	sellerRepo   ports.SellerWalletRepository
	disputeRepo  ports.DisputeRepository
	transactor   ports.DBTransactor
	fees         *FeeCalculator
	notifier     ports.Notifier
	releaseAfter time.Duration
	log          zerolog.Logger
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	orderRepo ports.OrderRepository,
	walletRepo ports.EscrowWalletRepository,
	ledgerRepo ports.LedgerRepository,
	accountRepo ports.PlatformAccountRepository,
	sellerRepo ports.SellerWalletRepository,
	disputeRepo ports.DisputeRepository,
	transactor ports.DBTransactor,
	fees *FeeCalculator,
	notifier ports.Notifier,
	cfg config.EscrowConfig,
	log zerolog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		orderRepo:    orderRepo,
		walletRepo:   walletRepo,
		ledgerRepo:   ledgerRepo,
		accountRepo:  accountRepo,
		sellerRepo:   sellerRepo,
		disputeRepo:  disputeRepo,
		transactor:   transactor,
		fees:         fees,
		notifier:     notifier,
		releaseAfter: cfg.AutoReleaseWindow,
		log:          log,
	}
}

// Lock confirms payment for an order and locks the funds in escrow. Both the
// provider-webhook path and the admin approval of a manual deposit end here;
// it is the single lock-equivalent entry point.
func (s *EscrowServiceImpl) Lock(ctx context.Context, req ports.LockRequest) (*domain.EscrowWallet, error) {
	if req.OrderID == uuid.Nil {
		return nil, apperror.Validation("orderId is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, req.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound()
	}
	if req.GrossAmount > 0 && req.GrossAmount != order.GrossAmount {
		return nil, apperror.Validation(fmt.Sprintf(
			"amount %d does not match order gross amount %d", req.GrossAmount, order.GrossAmount))
	}

	fee := s.fees.Fee(order.GrossAmount)
	net := s.fees.Net(order.GrossAmount)
	now := time.Now().UTC()

	wallet := &domain.EscrowWallet{
		ID:            uuid.New(),
		WalletRef:     newWalletRef(order.ID, now),
		OrderID:       order.ID,
		GrossAmount:   order.GrossAmount,
		PlatformFee:   fee,
		NetAmount:     net,
		Currency:      order.Currency,
		Status:        domain.EscrowStatusLocked,
		AutoReleaseAt: now.Add(s.releaseAfter),
		CreatedAt:     now,
	}

	// The order_id uniqueness constraint is the authoritative "no existing
	// wallet" check; a racing second confirmation loses here.
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, apperror.ErrWalletAlreadyExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		EntryRef:      newEntryRef(now),
		OrderID:       order.ID,
		Type:          domain.LedgerEscrowLock,
		DebitAccount:  domain.AccountBuyer,
		CreditAccount: domain.AccountEscrowPool,
		Amount:        order.GrossAmount,
		Description:   fmt.Sprintf("Escrow lock for order %s", order.ID),
		Metadata:      map[string]string{"source": req.Source, "wallet_ref": wallet.WalletRef},
		CreatedAt:     now,
	}
	if err := s.ledgerRepo.Record(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record ledger entry: %w", err))
	}
	if err := s.accountRepo.Adjust(ctx, dbTx, domain.AccountEscrowPool, order.GrossAmount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("adjust escrow_pool: %w", err))
	}

	if err := s.sellerRepo.AdjustBySeller(ctx, dbTx, order.SellerID, order.Currency, 0, net, 0); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit seller pending balance: %w", err))
	}

	if err := s.orderRepo.MarkPaid(ctx, dbTx, order.ID, fee, net, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark order paid: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	metrics.EscrowLockedTotal.WithLabelValues(req.Source).Inc()
	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("wallet_ref", wallet.WalletRef).
		Int64("gross", order.GrossAmount).
		Int64("fee", fee).
		Int64("net", net).
		Str("source", req.Source).
		Msg("escrow locked")

	s.dispatchAsync(domain.Notification{
		UserID:  order.BuyerID,
		OrderID: &order.ID,
		Kind:    domain.NotifyPaymentReceived,
		Title:   "Payment received",
		Body:    fmt.Sprintf("Your payment of %d %s is held in escrow until delivery.", order.GrossAmount, order.Currency),
		Phone:   order.BuyerPhone,
	})
	s.dispatchAsync(domain.Notification{
		UserID:  order.SellerID,
		OrderID: &order.ID,
		Kind:    domain.NotifyPaymentReceived,
		Title:   "Order paid",
		Body:    fmt.Sprintf("Order %s is paid. Ship it to receive %d %s.", shortID(order.ID), net, order.Currency),
	})

	return wallet, nil
}

// Release transitions a locked wallet to released, pays out the seller's net
// and collects the platform fee. A second call on a resolved wallet gets a
// state-conflict error and causes no further money movement.
func (s *EscrowServiceImpl) Release(ctx context.Context, req ports.ResolveRequest) (*domain.EscrowWallet, error) {
	wallet, err := s.resolveWallet(ctx, req)
	if err != nil {
		return nil, err
	}

	// An open dispute forces the refund path.
	dispute, err := s.disputeRepo.GetOpenByOrder(ctx, wallet.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check dispute: %w", err))
	}
	if dispute != nil {
		return nil, apperror.ErrDisputeOpen()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	// Conditional update closes the race: only one caller observes the
	// locked -> released transition.
	ok, err := s.walletRepo.MarkReleased(ctx, dbTx, wallet.ID, req.Actor, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("release wallet: %w", err))
	}
	if !ok {
		return nil, s.conflictFor(ctx, wallet.ID)
	}

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, wallet.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound()
	}

	releaseEntry := &domain.LedgerEntry{
		ID:            uuid.New(),
		EntryRef:      newEntryRef(now),
		OrderID:       wallet.OrderID,
		Type:          domain.LedgerEscrowRelease,
		DebitAccount:  domain.AccountEscrowPool,
		CreditAccount: domain.AccountPayoutPending,
		Amount:        wallet.NetAmount,
		Description:   fmt.Sprintf("Escrow release for order %s by %s", wallet.OrderID, req.Actor),
		Metadata:      map[string]string{"wallet_ref": wallet.WalletRef, "actor": string(req.Actor)},
		CreatedAt:     now,
	}
	feeEntry := &domain.LedgerEntry{
		ID:            uuid.New(),
		EntryRef:      newEntryRef(now.Add(time.Microsecond)),
		OrderID:       wallet.OrderID,
		Type:          domain.LedgerFeeCollection,
		DebitAccount:  domain.AccountEscrowPool,
		CreditAccount: domain.AccountPlatformFees,
		Amount:        wallet.PlatformFee,
		Description:   fmt.Sprintf("Platform fee for order %s", wallet.OrderID),
		Metadata:      map[string]string{"wallet_ref": wallet.WalletRef},
		CreatedAt:     now,
	}
	for _, e := range []*domain.LedgerEntry{releaseEntry, feeEntry} {
		if err := s.ledgerRepo.Record(ctx, dbTx, e); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record ledger entry: %w", err))
		}
	}

	if err := s.accountRepo.Adjust(ctx, dbTx, domain.AccountEscrowPool, -wallet.GrossAmount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("adjust escrow_pool: %w", err))
	}
	if err := s.accountRepo.Adjust(ctx, dbTx, domain.AccountPlatformFees, wallet.PlatformFee); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("adjust platform_fees: %w", err))
	}
	if err := s.accountRepo.Adjust(ctx, dbTx, domain.AccountPayoutPending, wallet.NetAmount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("adjust payout_pending: %w", err))
	}

	if err := s.sellerRepo.AdjustBySeller(ctx, dbTx, order.SellerID, order.Currency,
		wallet.NetAmount, -wallet.NetAmount, wallet.NetAmount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit seller wallet: %w", err))
	}

	// Confirmation implies the whole fulfillment path completed.
	if err := s.orderRepo.MarkCompleted(ctx, dbTx, order.ID, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark order completed: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	released := *wallet
	released.Status = domain.EscrowStatusReleased
	released.ReleasedAt = &now
	actor := req.Actor
	released.ReleasedBy = &actor

	metrics.EscrowResolvedTotal.WithLabelValues("released", string(req.Actor)).Inc()
	s.log.Info().
		Str("wallet_ref", wallet.WalletRef).
		Str("order_id", wallet.OrderID.String()).
		Int64("net", wallet.NetAmount).
		Int64("fee", wallet.PlatformFee).
		Str("actor", string(req.Actor)).
		Msg("escrow released")

	s.dispatchAsync(domain.Notification{
		UserID:  order.SellerID,
		OrderID: &order.ID,
		Kind:    domain.NotifyEscrowReleased,
		Title:   "Funds released",
		Body:    fmt.Sprintf("%d %s from order %s is now available for withdrawal.", wallet.NetAmount, wallet.Currency, shortID(order.ID)),
	})

	return &released, nil
}

// Refund transitions a locked wallet to refunded and returns the full gross
// amount to the buyer. Idempotent against double-refund the same way as
// Release.
func (s *EscrowServiceImpl) Refund(ctx context.Context, req ports.ResolveRequest) (*domain.EscrowWallet, error) {
	wallet, err := s.resolveWallet(ctx, req)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	ok, err := s.walletRepo.MarkRefunded(ctx, dbTx, wallet.ID, req.Actor, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refund wallet: %w", err))
	}
	if !ok {
		return nil, s.conflictFor(ctx, wallet.ID)
	}

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, wallet.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound()
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		EntryRef:      newEntryRef(now),
		OrderID:       wallet.OrderID,
		Type:          domain.LedgerEscrowRefund,
		DebitAccount:  domain.AccountEscrowPool,
		CreditAccount: domain.AccountBuyer,
		Amount:        wallet.GrossAmount,
		Description:   fmt.Sprintf("Escrow refund for order %s: %s", wallet.OrderID, req.Reason),
		Metadata:      map[string]string{"wallet_ref": wallet.WalletRef, "actor": string(req.Actor), "reason": req.Reason},
		CreatedAt:     now,
	}
	if err := s.ledgerRepo.Record(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record ledger entry: %w", err))
	}
	if err := s.accountRepo.Adjust(ctx, dbTx, domain.AccountEscrowPool, -wallet.GrossAmount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("adjust escrow_pool: %w", err))
	}

	// The net amount was provisioned into the seller's pending balance at
	// lock time; take it back.
	if err := s.sellerRepo.AdjustBySeller(ctx, dbTx, order.SellerID, order.Currency, 0, -wallet.NetAmount, 0); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit seller pending balance: %w", err))
	}

	if err := s.orderRepo.MarkRefunded(ctx, dbTx, order.ID, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark order refunded: %w", err))
	}

	if dispute, derr := s.disputeRepo.GetOpenByOrder(ctx, wallet.OrderID); derr == nil && dispute != nil {
		if err := s.disputeRepo.Resolve(ctx, dbTx, dispute.ID, now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve dispute: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	refunded := *wallet
	refunded.Status = domain.EscrowStatusRefunded
	refunded.ReleasedAt = &now
	actor := req.Actor
	refunded.ReleasedBy = &actor

	metrics.EscrowResolvedTotal.WithLabelValues("refunded", string(req.Actor)).Inc()
	s.log.Info().
		Str("wallet_ref", wallet.WalletRef).
		Str("order_id", wallet.OrderID.String()).
		Int64("gross", wallet.GrossAmount).
		Str("actor", string(req.Actor)).
		Str("reason", req.Reason).
		Msg("escrow refunded")

	reason := req.Reason
	if reason == "" {
		reason = "refund issued"
	}
	s.dispatchAsync(domain.Notification{
		UserID:  order.BuyerID,
		OrderID: &order.ID,
		Kind:    domain.NotifyEscrowRefunded,
		Title:   "Refund issued",
		Body:    fmt.Sprintf("%d %s for order %s has been refunded: %s", wallet.GrossAmount, wallet.Currency, shortID(order.ID), reason),
		Phone:   order.BuyerPhone,
	})
	s.dispatchAsync(domain.Notification{
		UserID:  order.SellerID,
		OrderID: &order.ID,
		Kind:    domain.NotifyEscrowRefunded,
		Title:   "Order refunded",
		Body:    fmt.Sprintf("Order %s was refunded to the buyer: %s", shortID(order.ID), reason),
	})

	return &refunded, nil
}

// GetByOrder returns the wallet and its ledger trail for one order.
func (s *EscrowServiceImpl) GetByOrder(ctx context.Context, orderID uuid.UUID) (*ports.EscrowView, error) {
	wallet, err := s.walletRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	entries, err := s.ledgerRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return &ports.EscrowView{Wallet: wallet, Entries: entries}, nil
}

// resolveWallet finds the target wallet by order id or wallet ref.
func (s *EscrowServiceImpl) resolveWallet(ctx context.Context, req ports.ResolveRequest) (*domain.EscrowWallet, error) {
	var (
		wallet *domain.EscrowWallet
		err    error
	)
	switch {
	case req.OrderID != uuid.Nil:
		wallet, err = s.walletRepo.GetByOrderID(ctx, req.OrderID)
	case req.WalletRef != "":
		wallet, err = s.walletRepo.GetByRef(ctx, req.WalletRef)
	default:
		return nil, apperror.Validation("orderId or walletRef is required")
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// conflictFor reports the precise terminal state after a conditional update
// matched zero rows.
func (s *EscrowServiceImpl) conflictFor(ctx context.Context, walletID uuid.UUID) error {
	// Re-read to tell the caller who won the race.
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil || wallet == nil {
		return apperror.ErrNotLocked()
	}
	switch wallet.Status {
	case domain.EscrowStatusReleased:
		return apperror.ErrAlreadyReleased()
	case domain.EscrowStatusRefunded:
		return apperror.ErrAlreadyRefunded()
	default:
		return apperror.ErrNotLocked()
	}
}

// dispatchAsync fires a notification without blocking or failing the caller.
func (s *EscrowServiceImpl) dispatchAsync(n domain.Notification) {
	if s.notifier == nil {
		return
	}
	go func() {
		if err := s.notifier.Dispatch(context.Background(), n); err != nil {
			s.log.Warn().Err(err).Str("kind", string(n.Kind)).Msg("notification dispatch failed")
		}
	}()
}

// newWalletRef builds a human-readable unique wallet reference.
func newWalletRef(orderID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("ESW-%s-%d", shortID(orderID), t.UnixMilli())
}

// newEntryRef builds a unique ledger entry reference.
func newEntryRef(t time.Time) string {
	return fmt.Sprintf("LED-%d-%s", t.UnixNano(), shortID(uuid.New()))
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
