package service

import (
	"context"
	"fmt"

	"payloom/internal/core/ports"
	"payloom/pkg/apperror"

	"github.com/rs/zerolog"
)

// ReconciliationServiceImpl verifies the cached platform account balances
// against balances derived from the ledger. Nonzero drift means a balance was
// adjusted without a matching entry, or vice versa.
type ReconciliationServiceImpl struct {
	accountRepo ports.PlatformAccountRepository
	ledgerRepo  ports.LedgerRepository
	log         zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	accountRepo ports.PlatformAccountRepository,
	ledgerRepo ports.LedgerRepository,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		log:         log,
	}
}

// Report compares every cached platform account balance against the
// ledger-derived balance and returns one row per account.
func (s *ReconciliationServiceImpl) Report(ctx context.Context) ([]ports.AccountReconciliation, error) {
	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list accounts: %w", err))
	}

	report := make([]ports.AccountReconciliation, 0, len(accounts))
	for _, acct := range accounts {
		ledgerBalance, err := s.ledgerRepo.AccountBalance(ctx, acct.Account)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("derive balance for %s: %w", acct.Account, err))
		}

		row := ports.AccountReconciliation{
			Account:       acct.Account,
			CachedBalance: acct.Balance,
			LedgerBalance: ledgerBalance,
			Drift:         acct.Balance - ledgerBalance,
		}
		if row.Drift != 0 {
			s.log.Warn().
				Str("account", string(acct.Account)).
				Int64("cached", row.CachedBalance).
				Int64("ledger", row.LedgerBalance).
				Int64("drift", row.Drift).
				Msg("platform account drifted from ledger")
		}
		report = append(report, row)
	}

	return report, nil
}
