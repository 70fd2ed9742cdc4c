package service

import (
	"context"
	"errors"
	"testing"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/internal/core/ports/mocks"
	"payloom/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type withdrawalTestDeps struct {
	svc      *WithdrawalServiceImpl
	sellers  *fakeSellerWalletRepo
	ledger   *fakeLedgerRepo
	accounts *fakeAccountRepo
	provider *mocks.MockPaymentProvider
	ctrl     *gomock.Controller
}

func setupWithdrawalService(t *testing.T) *withdrawalTestDeps {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := &withdrawalTestDeps{
		sellers:  newFakeSellerWalletRepo(),
		ledger:   &fakeLedgerRepo{},
		accounts: newFakeAccountRepo(),
		provider: mocks.NewMockPaymentProvider(ctrl),
		ctrl:     ctrl,
	}
	d.svc = NewWithdrawalService(
		d.sellers, d.ledger, d.accounts, &fakeTransactor{},
		d.provider, nil, zerolog.Nop(),
	)
	return d
}

func seedSeller(t *testing.T, d *withdrawalTestDeps, available int64) uuid.UUID {
	t.Helper()
	sellerID := uuid.New()
	require.NoError(t, d.sellers.AdjustBySeller(context.Background(), nil, sellerID, "KES", available, 0, available))
	require.NoError(t, d.accounts.Adjust(context.Background(), nil, domain.AccountPayoutPending, available))
	return sellerID
}

func TestWithdrawal_Success(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	sellerID := seedSeller(t, d, 9_500)

	d.provider.EXPECT().
		SendPayout(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.PayoutRequest) (string, error) {
			assert.Equal(t, int64(4_000), req.Amount)
			assert.Equal(t, "254700000001", req.Phone)
			assert.NotEmpty(t, req.Reference)
			return "B2C-REF-1", nil
		})

	entry, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		SellerID: sellerID, Amount: 4_000, Phone: "254700000001",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerWithdrawal, entry.Type)
	assert.Equal(t, domain.AccountPayoutPending, entry.DebitAccount)
	assert.Equal(t, domain.AccountExternal, entry.CreditAccount)
	assert.Equal(t, int64(4_000), entry.Amount)

	sw, _ := d.sellers.GetBySellerID(ctx, sellerID)
	assert.Equal(t, int64(5_500), sw.AvailableBalance)
	acct, _ := d.accounts.Get(ctx, domain.AccountPayoutPending)
	assert.Equal(t, int64(5_500), acct.Balance)
}

func TestWithdrawal_InsufficientFunds(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	sellerID := seedSeller(t, d, 1_000)

	_, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		SellerID: sellerID, Amount: 2_000, Phone: "254700000001",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAY_002", appErr.Code)

	// Nothing moved and the provider was never called.
	sw, _ := d.sellers.GetBySellerID(ctx, sellerID)
	assert.Equal(t, int64(1_000), sw.AvailableBalance)
	assert.Empty(t, d.ledger.entries)
}

func TestWithdrawal_InvalidAmount(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Withdraw(context.Background(), ports.WithdrawRequest{
		SellerID: uuid.New(), Amount: 0, Phone: "254700000001",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAY_001", appErr.Code)
}

func TestWithdrawal_UnknownSeller(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Withdraw(context.Background(), ports.WithdrawRequest{
		SellerID: uuid.New(), Amount: 1_000, Phone: "254700000001",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAY_003", appErr.Code)
}

// A provider failure after commit keeps the debit in place for manual
// reconciliation; it must not silently re-credit or retry the transfer.
func TestWithdrawal_ProviderFailureKeepsDebit(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	sellerID := seedSeller(t, d, 9_500)

	d.provider.EXPECT().
		SendPayout(ctx, gomock.Any()).
		Return("", errors.New("gateway timeout")).
		Times(1)

	entry, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		SellerID: sellerID, Amount: 4_000, Phone: "254700000001",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAY_004", appErr.Code)
	require.NotNil(t, entry)

	sw, _ := d.sellers.GetBySellerID(ctx, sellerID)
	assert.Equal(t, int64(5_500), sw.AvailableBalance)
	require.Len(t, d.ledger.entries, 1)
	assert.Equal(t, entry.EntryRef, d.ledger.entries[0].EntryRef)
}
