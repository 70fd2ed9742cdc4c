package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fastBackoffs(t *testing.T) {
	t.Helper()
	orig := smsRetryBackoffs
	smsRetryBackoffs = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { smsRetryBackoffs = orig })
}

func TestNotification_InAppOnly(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil, zerolog.Nop())

	userID := uuid.New()
	err := svc.Dispatch(context.Background(), domain.Notification{
		UserID: userID,
		Kind:   domain.NotifyEscrowReleased,
		Title:  "Funds released",
		Body:   "9500 KES is now available.",
	})
	require.NoError(t, err)

	rows, err := repo.ListByUser(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, uuid.Nil, rows[0].ID)
	assert.False(t, rows[0].CreatedAt.IsZero())
}

func TestNotification_SMSAlongsideInApp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := &fakeNotificationRepo{}
	sms := mocks.NewMockSMSSender(ctrl)
	svc := NewNotificationService(repo, sms, zerolog.Nop())

	sms.EXPECT().Send(gomock.Any(), "254700000001", "Your payment is held in escrow.").Return(nil)

	err := svc.Dispatch(context.Background(), domain.Notification{
		UserID: uuid.New(),
		Kind:   domain.NotifyPaymentReceived,
		Title:  "Payment received",
		Body:   "Your payment is held in escrow.",
		Phone:  "254700000001",
	})
	require.NoError(t, err)
	assert.Len(t, repo.rows, 1)
}

func TestNotification_SMSRetriesThenSucceeds(t *testing.T) {
	fastBackoffs(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := &fakeNotificationRepo{}
	sms := mocks.NewMockSMSSender(ctrl)
	svc := NewNotificationService(repo, sms, zerolog.Nop())

	gomock.InOrder(
		sms.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
		sms.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
		sms.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
	)

	err := svc.Dispatch(context.Background(), domain.Notification{
		UserID: uuid.New(),
		Kind:   domain.NotifyEscrowRefunded,
		Body:   "Refund issued.",
		Phone:  "254700000002",
	})
	require.NoError(t, err)
}

func TestNotification_SMSExhaustsRetries(t *testing.T) {
	fastBackoffs(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := &fakeNotificationRepo{}
	sms := mocks.NewMockSMSSender(ctrl)
	svc := NewNotificationService(repo, sms, zerolog.Nop())

	sms.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("unreachable")).
		Times(len(smsRetryBackoffs) + 1)

	err := svc.Dispatch(context.Background(), domain.Notification{
		UserID: uuid.New(),
		Kind:   domain.NotifyFraudAlert,
		Body:   "Duplicate code detected.",
		Phone:  "254700000003",
	})
	require.Error(t, err)

	// The in-app row landed regardless of the SMS outcome.
	assert.Len(t, repo.rows, 1)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***001", maskPhone("254700000001"))
	assert.Equal(t, "***", maskPhone("12"))
}
