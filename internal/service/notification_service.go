package service

import (
	"context"
	"fmt"
	"time"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// smsRetryBackoffs is the wait applied before each retry attempt.
var smsRetryBackoffs = []time.Duration{2 * time.Second, 10 * time.Second, 30 * time.Second}

// NotificationServiceImpl implements ports.Notifier. Every dispatch writes an
// in-app notification row; when the notification carries a phone number it
// also sends an SMS with a bounded retry schedule. Both channels are
// best-effort and independent.
type NotificationServiceImpl struct {
	repo ports.NotificationRepository
	sms  ports.SMSSender
	log  zerolog.Logger
}

// NewNotificationService creates a new NotificationServiceImpl. sms may be
// nil, in which case only in-app rows are written.
func NewNotificationService(
	repo ports.NotificationRepository,
	sms ports.SMSSender,
	log zerolog.Logger,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		repo: repo,
		sms:  sms,
		log:  log,
	}
}

// Dispatch records the in-app notification and, if a phone is set, sends the
// SMS. A failure on one channel does not prevent the other; the first error
// is returned for the caller's log.
func (s *NotificationServiceImpl) Dispatch(ctx context.Context, n domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var firstErr error

	if err := s.repo.Create(ctx, &n); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("in_app").Inc()
		s.log.Error().Err(err).
			Str("kind", string(n.Kind)).
			Str("user_id", n.UserID.String()).
			Msg("failed to store in-app notification")
		firstErr = fmt.Errorf("store notification: %w", err)
	}

	if n.Phone != "" && s.sms != nil {
		if err := s.sendSMSWithRetries(ctx, n.Phone, n.Body); err != nil {
			metrics.NotificationFailuresTotal.WithLabelValues("sms").Inc()
			s.log.Error().Err(err).
				Str("kind", string(n.Kind)).
				Str("phone", maskPhone(n.Phone)).
				Msg("sms delivery failed after retries")
			if firstErr == nil {
				firstErr = fmt.Errorf("send sms: %w", err)
			}
		}
	}

	return firstErr
}

func (s *NotificationServiceImpl) sendSMSWithRetries(ctx context.Context, phone, message string) error {
	var lastErr error
	for attempt := 0; attempt <= len(smsRetryBackoffs); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(smsRetryBackoffs[attempt-1]):
			}
		}
		if lastErr = s.sms.Send(ctx, phone, message); lastErr == nil {
			return nil
		}
		s.log.Warn().Err(lastErr).
			Int("attempt", attempt+1).
			Str("phone", maskPhone(phone)).
			Msg("sms send attempt failed")
	}
	return lastErr
}

// maskPhone hides all but the last three digits for log output.
func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return "***" + phone[len(phone)-3:]
}
