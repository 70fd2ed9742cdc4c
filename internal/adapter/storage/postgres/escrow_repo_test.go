package postgres

import (
	"context"
	"testing"
	"time"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(orderID uuid.UUID) *domain.EscrowWallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.EscrowWallet{
		ID:            uuid.New(),
		WalletRef:     "ESC-20260831-AB12CD",
		OrderID:       orderID,
		GrossAmount:   10_000,
		PlatformFee:   500,
		NetAmount:     9_500,
		Currency:      "KES",
		Status:        domain.EscrowStatusLocked,
		AutoReleaseAt: now.Add(168 * time.Hour),
		CreatedAt:     now,
	}
}

func walletTestColumns() []string {
	return []string{
		"id", "wallet_ref", "order_id", "gross_amount", "platform_fee", "net_amount",
		"currency", "status", "auto_release_at", "released_at", "released_by", "created_at",
	}
}

func walletRow(w *domain.EscrowWallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletTestColumns()).AddRow(
		w.ID, w.WalletRef, w.OrderID, w.GrossAmount, w.PlatformFee, w.NetAmount,
		w.Currency, w.Status, w.AutoReleaseAt, w.ReleasedAt, w.ReleasedBy, w.CreatedAt,
	)
}

func TestEscrowWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO escrow_wallets").
		WithArgs(w.ID, w.WalletRef, w.OrderID, w.GrossAmount, w.PlatformFee, w.NetAmount,
			w.Currency, w.Status, w.AutoReleaseAt, w.ReleasedAt, w.ReleasedBy, w.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowWalletRepo_Create_DuplicateOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO escrow_wallets").
		WithArgs(w.ID, w.WalletRef, w.OrderID, w.GrossAmount, w.PlatformFee, w.NetAmount,
			w.Currency, w.Status, w.AutoReleaseAt, w.ReleasedAt, w.ReleasedBy, w.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "escrow_wallets_order_id_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.ErrorIs(t, err, ports.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowWalletRepo_GetByOrderID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM escrow_wallets WHERE order_id").
		WithArgs(w.OrderID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByOrderID(context.Background(), w.OrderID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, w.NetAmount, result.NetAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowWalletRepo_GetByOrderID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowWalletRepo(mock)
	orderID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM escrow_wallets WHERE order_id").
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows(walletTestColumns()))

	result, err := repo.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowWalletRepo_MarkReleased(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowWalletRepo(mock)
	walletID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE escrow_wallets").
		WithArgs(walletID, domain.EscrowStatusReleased, domain.ActorBuyerConfirmation, now, domain.EscrowStatusLocked).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkReleased(context.Background(), tx, walletID, domain.ActorBuyerConfirmation, now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowWalletRepo_MarkReleased_AlreadyResolved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowWalletRepo(mock)
	walletID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE escrow_wallets").
		WithArgs(walletID, domain.EscrowStatusReleased, domain.ActorAdmin, now, domain.EscrowStatusLocked).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkReleased(context.Background(), tx, walletID, domain.ActorAdmin, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowWalletRepo_ListExpiredLocked(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowWalletRepo(mock)
	now := time.Now().UTC()
	first := newTestWallet(uuid.New())
	second := newTestWallet(uuid.New())

	rows := pgxmock.NewRows(walletTestColumns()).
		AddRow(first.ID, first.WalletRef, first.OrderID, first.GrossAmount, first.PlatformFee, first.NetAmount,
			first.Currency, first.Status, first.AutoReleaseAt, first.ReleasedAt, first.ReleasedBy, first.CreatedAt).
		AddRow(second.ID, second.WalletRef, second.OrderID, second.GrossAmount, second.PlatformFee, second.NetAmount,
			second.Currency, second.Status, second.AutoReleaseAt, second.ReleasedAt, second.ReleasedBy, second.CreatedAt)

	mock.ExpectQuery("SELECT .+ FROM escrow_wallets").
		WithArgs(domain.EscrowStatusLocked, now, 100).
		WillReturnRows(rows)

	wallets, err := repo.ListExpiredLocked(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, first.ID, wallets[0].ID)
	assert.Equal(t, second.ID, wallets[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
