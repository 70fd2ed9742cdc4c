package service

import (
	"context"
	"fmt"
	"time"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl moves released funds from a seller wallet out to
// mobile money. The wallet debit and ledger entry commit first; the provider
// payout runs after commit and is never blind-retried on failure.
type WithdrawalServiceImpl struct {
	sellerRepo  ports.SellerWalletRepository
	ledgerRepo  ports.LedgerRepository
	accountRepo ports.PlatformAccountRepository
	transactor  ports.DBTransactor
	provider    ports.PaymentProvider
	notifier    ports.Notifier
	log         zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	sellerRepo ports.SellerWalletRepository,
	ledgerRepo ports.LedgerRepository,
	accountRepo ports.PlatformAccountRepository,
	transactor ports.DBTransactor,
	provider ports.PaymentProvider,
	notifier ports.Notifier,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		sellerRepo:  sellerRepo,
		ledgerRepo:  ledgerRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		provider:    provider,
		notifier:    notifier,
		log:         log,
	}
}

// Withdraw debits the seller's available balance and records the payout in
// the ledger, then triggers the mobile-money transfer. The ledger entry's
// reference doubles as the provider idempotency key.
func (s *WithdrawalServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin transaction: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.sellerRepo.GetBySellerIDForUpdate(ctx, dbTx, req.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get seller wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrSellerWalletNotFound()
	}
	if wallet.AvailableBalance < req.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		EntryRef:      newEntryRef(now),
		Type:          domain.LedgerWithdrawal,
		DebitAccount:  domain.AccountPayoutPending,
		CreditAccount: domain.AccountExternal,
		Amount:        req.Amount,
		Description:   fmt.Sprintf("Withdrawal by seller %s", req.SellerID),
		Metadata: map[string]string{
			"seller_id": req.SellerID.String(),
			"phone":     maskPhone(req.Phone),
		},
		CreatedAt: now,
	}
	if err := s.ledgerRepo.Record(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record withdrawal entry: %w", err))
	}

	if err := s.sellerRepo.AdjustBySeller(ctx, dbTx, req.SellerID, wallet.Currency, -req.Amount, 0, 0); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit seller wallet: %w", err))
	}
	if err := s.accountRepo.Adjust(ctx, dbTx, domain.AccountPayoutPending, -req.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("adjust payout_pending: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit transaction: %w", err))
	}

	s.log.Info().
		Str("seller_id", req.SellerID.String()).
		Str("entry_ref", entry.EntryRef).
		Int64("amount", req.Amount).
		Msg("withdrawal recorded")

	// The debit is committed; the transfer itself is a single attempt. A
	// failure here goes to the reconciliation queue via the ledger entry, not
	// to an automatic retry that could double-pay.
	providerRef, err := s.provider.SendPayout(ctx, ports.PayoutRequest{
		Reference: entry.EntryRef,
		Phone:     req.Phone,
		Amount:    req.Amount,
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("entry_ref", entry.EntryRef).
			Msg("provider payout failed, manual reconciliation required")
		return entry, apperror.ErrProviderUnavailable(err)
	}

	s.log.Info().
		Str("entry_ref", entry.EntryRef).
		Str("provider_ref", providerRef).
		Msg("payout sent to provider")

	if s.notifier != nil {
		go func() {
			n := domain.Notification{
				UserID: req.SellerID,
				Kind:   domain.NotifyPayoutSent,
				Title:  "Withdrawal sent",
				Body:   fmt.Sprintf("Your withdrawal of %d is on its way to %s.", req.Amount, maskPhone(req.Phone)),
				Phone:  req.Phone,
			}
			if err := s.notifier.Dispatch(context.Background(), n); err != nil {
				s.log.Warn().Err(err).Msg("withdrawal notification failed")
			}
		}()
	}

	return entry, nil
}
