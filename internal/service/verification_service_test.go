package service

import (
	"context"
	"testing"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verificationTestDeps struct {
	svc      *VerificationServiceImpl
	escrow   *EscrowServiceImpl
	orders   *fakeOrderRepo
	wallets  *fakeWalletRepo
	deposits *fakeDepositRepo
	events   *fakeEventRepo
	refCache *fakeRefCache
	adminID  uuid.UUID
}

func setupVerificationService(t *testing.T) *verificationTestDeps {
	t.Helper()
	e := setupEscrowService(t)

	d := &verificationTestDeps{
		escrow:   e.svc,
		orders:   e.orders,
		wallets:  e.wallets,
		deposits: newFakeDepositRepo(),
		events:   newFakeEventRepo(),
		refCache: newFakeRefCache(),
		adminID:  uuid.New(),
	}
	d.svc = NewVerificationService(
		d.orders, d.deposits, d.events, d.refCache, d.escrow,
		&fakeTransactor{}, nil, testEscrowConfig(), d.adminID, zerolog.Nop(),
	)
	return d
}

func completedEvent(orderID uuid.UUID, ref string, amount int64) domain.PaymentEvent {
	return domain.PaymentEvent{
		OrderID:     orderID,
		Provider:    "mpesa",
		ProviderRef: ref,
		Amount:      amount,
		Outcome:     domain.PaymentCompleted,
	}
}

func TestVerification_HandleWebhook_LocksEscrow(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	err := d.svc.HandleWebhook(ctx, completedEvent(order.ID, "QAB12CD34E", 10_000))
	require.NoError(t, err)

	w, err := d.wallets.GetByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, domain.EscrowStatusLocked, w.Status)

	// Event recorded and ref cached.
	ev, err := d.events.GetByProviderRef(ctx, "QAB12CD34E")
	require.NoError(t, err)
	require.NotNil(t, ev)
	seen, _ := d.refCache.Seen(ctx, "QAB12CD34E")
	assert.True(t, seen)
}

func TestVerification_HandleWebhook_DuplicateRefIsNoop(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	ev := completedEvent(order.ID, "QAB12CD34E", 10_000)
	require.NoError(t, d.svc.HandleWebhook(ctx, ev))
	require.NoError(t, d.svc.HandleWebhook(ctx, ev))
	require.NoError(t, d.svc.HandleWebhook(ctx, ev))

	// Exactly one wallet and one lock entry despite redelivery.
	w, _ := d.wallets.GetByOrderID(ctx, order.ID)
	require.NotNil(t, w)
	entries, _ := d.escrow.ledgerRepo.ListByOrder(ctx, order.ID)
	assert.Len(t, entries, 1)
}

func TestVerification_HandleWebhook_SameOrderDifferentRef(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	require.NoError(t, d.svc.HandleWebhook(ctx, completedEvent(order.ID, "REF00000001", 10_000)))
	// Second confirmation for the same order under a fresh provider ref is
	// benign: the wallet constraint wins, the event is still recorded.
	require.NoError(t, d.svc.HandleWebhook(ctx, completedEvent(order.ID, "REF00000002", 10_000)))

	entries, _ := d.escrow.ledgerRepo.ListByOrder(ctx, order.ID)
	assert.Len(t, entries, 1)
	ev, _ := d.events.GetByProviderRef(ctx, "REF00000002")
	assert.NotNil(t, ev)
}

func TestVerification_HandleWebhook_FailedOutcome(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	order.Status = domain.OrderStatusProcessing
	d.orders.put(order)

	ev := completedEvent(order.ID, "FAIL0000001", 10_000)
	ev.Outcome = domain.PaymentFailed
	require.NoError(t, d.svc.HandleWebhook(ctx, ev))

	// No money moved, order back to pending for another attempt.
	w, _ := d.wallets.GetByOrderID(ctx, order.ID)
	assert.Nil(t, w)
	stored, _ := d.orders.GetByID(ctx, order.ID)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestVerification_HandleWebhook_MissingRef(t *testing.T) {
	d := setupVerificationService(t)
	err := d.svc.HandleWebhook(context.Background(), domain.PaymentEvent{OrderID: uuid.New(), Provider: "mpesa"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_001", appErr.Code)
}

func TestVerification_SubmitDeposit_AllChecksPass(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	res, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID:         order.ID,
		TransactionCode: "qab12cd34e", // lowercased input normalizes
		PayerPhone:      "254700000001",
		Method:          "mpesa",
		ClaimedAmount:   10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DepositPendingApproval, res.Deposit.Status)
	assert.Equal(t, "QAB12CD34E", res.Deposit.TransactionCode)
	require.Len(t, res.Checks, 3)
	for _, c := range res.Checks {
		assert.True(t, c.Passed, string(c.Check))
	}

	stored, _ := d.orders.GetByID(ctx, order.ID)
	assert.Equal(t, domain.VerificationPendingApproval, stored.VerificationStatus)

	// No escrow lock on the manual path before approval.
	w, _ := d.wallets.GetByOrderID(ctx, order.ID)
	assert.Nil(t, w)
}

func TestVerification_SubmitDeposit_ToleranceBoundary(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()

	order := newTestOrder(10_000)
	d.orders.put(order)
	res, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "QAB12CD34E", ClaimedAmount: 10_001,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DepositPendingApproval, res.Deposit.Status)

	order2 := newTestOrder(10_000)
	d.orders.put(order2)
	res2, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order2.ID, TransactionCode: "QXY98ZW76V", ClaimedAmount: 10_002,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DepositFlagged, res2.Deposit.Status)
}

func TestVerification_SubmitDeposit_BadFormatStillRunsAllChecks(t *testing.T) {
	d := setupVerificationService(t)
	order := newTestOrder(10_000)
	d.orders.put(order)

	res, err := d.svc.SubmitDeposit(context.Background(), ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "short", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DepositFlagged, res.Deposit.Status)
	// All three results recorded even though the first check failed.
	require.Len(t, res.Checks, 3)
	assert.False(t, res.Checks[0].Passed)
	assert.True(t, res.Checks[1].Passed)
	assert.True(t, res.Checks[2].Passed)
}

func TestVerification_SubmitDeposit_DuplicateCodeFlags(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()

	first := newTestOrder(10_000)
	d.orders.put(first)
	_, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: first.ID, TransactionCode: "QAB12CD34E", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)

	second := newTestOrder(10_000)
	d.orders.put(second)
	res, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: second.ID, TransactionCode: "QAB12CD34E", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DepositFlagged, res.Deposit.Status)

	stored, _ := d.orders.GetByID(ctx, second.ID)
	assert.Equal(t, domain.VerificationFlagged, stored.VerificationStatus)
}

func TestVerification_SubmitDeposit_SecondDepositSameOrder(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	_, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "QAB12CD34E", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)

	_, err = d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "QXY98ZW76V", ClaimedAmount: 10_000,
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VER_005", appErr.Code)
}

func TestVerification_ApproveDeposit_LocksEscrow(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	res, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "QAB12CD34E", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)

	wallet, err := d.svc.ApproveDeposit(ctx, res.Deposit.ID, d.adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusLocked, wallet.Status)
	assert.Equal(t, int64(500), wallet.PlatformFee)

	dep, _ := d.deposits.GetByID(ctx, res.Deposit.ID)
	assert.Equal(t, domain.DepositApproved, dep.Status)
	require.NotNil(t, dep.ReviewedBy)
	assert.Equal(t, d.adminID, *dep.ReviewedBy)

	stored, _ := d.orders.GetByID(ctx, order.ID)
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)
	assert.Equal(t, domain.VerificationApproved, stored.VerificationStatus)
}

func TestVerification_ApproveDeposit_NotPending(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	res, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "bad", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)
	require.Equal(t, domain.DepositFlagged, res.Deposit.Status)

	_, err = d.svc.ApproveDeposit(ctx, res.Deposit.ID, d.adminID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VER_002", appErr.Code)
}

func TestVerification_RejectDeposit(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	order.Status = domain.OrderStatusProcessing
	d.orders.put(order)

	res, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "QAB12CD34E", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)

	err = d.svc.RejectDeposit(ctx, res.Deposit.ID, d.adminID, "no matching transaction")
	require.NoError(t, err)

	dep, _ := d.deposits.GetByID(ctx, res.Deposit.ID)
	assert.Equal(t, domain.DepositRejected, dep.Status)

	stored, _ := d.orders.GetByID(ctx, order.ID)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.Equal(t, domain.VerificationRejected, stored.VerificationStatus)

	// Rejecting twice conflicts.
	err = d.svc.RejectDeposit(ctx, res.Deposit.ID, d.adminID, "again")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VER_002", appErr.Code)
}

func TestVerification_RejectDeposit_NotFound(t *testing.T) {
	d := setupVerificationService(t)
	err := d.svc.RejectDeposit(context.Background(), uuid.New(), uuid.New(), "missing")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VER_001", appErr.Code)
}

// A deposit submitted moments before a webhook for the same order must not
// double-lock once the admin approves it.
func TestVerification_WebhookThenApprove(t *testing.T) {
	d := setupVerificationService(t)
	ctx := context.Background()
	order := newTestOrder(10_000)
	d.orders.put(order)

	res, err := d.svc.SubmitDeposit(ctx, ports.DepositRequest{
		OrderID: order.ID, TransactionCode: "QAB12CD34E", ClaimedAmount: 10_000,
	})
	require.NoError(t, err)

	require.NoError(t, d.svc.HandleWebhook(ctx, completedEvent(order.ID, "WEB00000001", 10_000)))

	_, err = d.svc.ApproveDeposit(ctx, res.Deposit.ID, d.adminID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ESC_003", appErr.Code)

	entries, _ := d.escrow.ledgerRepo.ListByOrder(ctx, order.ID)
	assert.Len(t, entries, 1)
}
