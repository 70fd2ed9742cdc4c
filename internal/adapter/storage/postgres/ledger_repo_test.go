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

func newTestEntry(orderID uuid.UUID) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:            uuid.New(),
		EntryRef:      "LED-20260831-XY98ZW",
		OrderID:       orderID,
		Type:          domain.LedgerEscrowLock,
		DebitAccount:  domain.AccountBuyer,
		CreditAccount: domain.AccountEscrowPool,
		Amount:        10_000,
		Description:   "escrow lock",
		Metadata:      map[string]string{"wallet_ref": "ESC-20260831-AB12CD"},
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestLedgerRepo_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.EntryRef, e.OrderID, e.Type, e.DebitAccount, e.CreditAccount,
			e.Amount, e.Description, e.Metadata, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Record(context.Background(), tx, e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Record_DuplicateRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.EntryRef, e.OrderID, e.Type, e.DebitAccount, e.CreditAccount,
			e.Amount, e.Description, e.Metadata, e.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_entry_ref_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Record(context.Background(), tx, e)
	assert.ErrorIs(t, err, ports.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	orderID := uuid.New()
	e := newTestEntry(orderID)

	rows := pgxmock.NewRows([]string{
		"id", "entry_ref", "order_id", "entry_type", "debit_account", "credit_account",
		"amount", "description", "metadata", "created_at",
	}).AddRow(
		e.ID, e.EntryRef, e.OrderID, e.Type, e.DebitAccount, e.CreditAccount,
		e.Amount, e.Description, e.Metadata, e.CreatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE order_id").
		WithArgs(orderID).
		WillReturnRows(rows)

	entries, err := repo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e.EntryRef, entries[0].EntryRef)
	assert.Equal(t, domain.AccountEscrowPool, entries[0].CreditAccount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_AccountBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT").
		WithArgs(domain.AccountEscrowPool).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(42_000)))

	balance, err := repo.AccountBalance(context.Background(), domain.AccountEscrowPool)
	require.NoError(t, err)
	assert.Equal(t, int64(42_000), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}
