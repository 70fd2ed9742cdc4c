package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"payloom/config"
	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/internal/metrics"
	"payloom/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const providerRefTTL = 24 * time.Hour

// Transaction codes from the mobile-money rails are 8-12 alphanumerics.
var txCodePattern = regexp.MustCompile(`^[A-Z0-9]{8,12}$`)

// VerificationServiceImpl implements ports.VerificationService. It routes
// automated webhook confirmations and manual buyer-submitted proofs through
// fraud/format checks before handing off to the escrow core.
type VerificationServiceImpl struct {
	orderRepo   ports.OrderRepository
	depositRepo ports.DepositRepository
	eventRepo   ports.PaymentEventRepository
	refCache    ports.ProviderRefCache
	escrow      ports.EscrowService
	transactor  ports.DBTransactor
	notifier    ports.Notifier
	adminUserID uuid.UUID
	tolerance   int64
	log         zerolog.Logger
}

// NewVerificationService creates a new VerificationServiceImpl.
// adminUserID is the notification target for fraud alerts.
func NewVerificationService(
	orderRepo ports.OrderRepository,
	depositRepo ports.DepositRepository,
	eventRepo ports.PaymentEventRepository,
	refCache ports.ProviderRefCache,
	escrow ports.EscrowService,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	cfg config.EscrowConfig,
	adminUserID uuid.UUID,
	log zerolog.Logger,
) *VerificationServiceImpl {
	return &VerificationServiceImpl{
		orderRepo:   orderRepo,
		depositRepo: depositRepo,
		eventRepo:   eventRepo,
		refCache:    refCache,
		escrow:      escrow,
		transactor:  transactor,
		notifier:    notifier,
		adminUserID: adminUserID,
		tolerance:   cfg.AmountTolerance,
		log:         log,
	}
}

// HandleWebhook processes a normalized provider callback. Idempotent per
// provider reference: the first completed signal locks escrow, every
// duplicate is a no-op. Errors returned here are for internal logging only;
// the HTTP handler acknowledges the provider regardless.
func (s *VerificationServiceImpl) HandleWebhook(ctx context.Context, event domain.PaymentEvent) error {
	if event.ProviderRef == "" || event.OrderID == uuid.Nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.Provider, "invalid").Inc()
		return apperror.Validation("provider reference and order id are required")
	}

	// Fast path: Redis dedupe. A cache error degrades to the DB check.
	if s.refCache != nil {
		seen, err := s.refCache.Seen(ctx, event.ProviderRef)
		if err != nil {
			s.log.Warn().Err(err).Str("provider_ref", event.ProviderRef).
				Msg("provider ref cache check failed, falling through to DB")
		} else if seen {
			metrics.WebhookEventsTotal.WithLabelValues(event.Provider, "duplicate").Inc()
			return nil
		}
	}

	// Authoritative dedupe: existing event record for this provider ref.
	existing, err := s.eventRepo.GetByProviderRef(ctx, event.ProviderRef)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup payment event: %w", err))
	}
	if existing != nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.Provider, "duplicate").Inc()
		return nil
	}

	if event.Outcome == domain.PaymentFailed {
		if err := s.recordEvent(ctx, &event); err != nil {
			return err
		}
		if err := s.orderRepo.SetStatus(ctx, event.OrderID, domain.OrderStatusPending); err != nil {
			return apperror.InternalError(fmt.Errorf("reset order after failed payment: %w", err))
		}
		metrics.WebhookEventsTotal.WithLabelValues(event.Provider, "failed").Inc()
		s.log.Info().Str("order_id", event.OrderID.String()).Str("provider", event.Provider).
			Msg("provider reported failed payment")
		return nil
	}

	// Lock first: if the process dies before the event record lands, a
	// retried delivery hits the wallet uniqueness constraint and is benign.
	_, err = s.escrow.Lock(ctx, ports.LockRequest{
		OrderID:     event.OrderID,
		GrossAmount: event.Amount,
		Source:      event.Provider,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.IsConflict() {
			// Another delivery (different provider ref, same order) won.
			s.log.Info().Str("order_id", event.OrderID.String()).
				Str("provider_ref", event.ProviderRef).
				Msg("escrow already locked for order, webhook treated as duplicate")
		} else {
			metrics.WebhookEventsTotal.WithLabelValues(event.Provider, "error").Inc()
			return err
		}
	}

	if err := s.recordEvent(ctx, &event); err != nil {
		return err
	}

	if s.refCache != nil {
		if err := s.refCache.MarkSeen(ctx, event.ProviderRef, providerRefTTL); err != nil {
			s.log.Warn().Err(err).Str("provider_ref", event.ProviderRef).
				Msg("failed to cache provider ref")
		}
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Provider, "completed").Inc()
	return nil
}

// SubmitDeposit handles the manual proof-of-payment path. All three checks
// run and are recorded regardless of earlier failures, so the audit log is
// always complete. This path never locks escrow itself.
func (s *VerificationServiceImpl) SubmitDeposit(ctx context.Context, req ports.DepositRequest) (*ports.DepositResult, error) {
	if req.OrderID == uuid.Nil {
		return nil, apperror.Validation("orderId is required")
	}
	if req.ClaimedAmount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound()
	}

	code := strings.ToUpper(strings.TrimSpace(req.TransactionCode))
	now := time.Now().UTC()

	deposit := &domain.EscrowDeposit{
		ID:              uuid.New(),
		OrderID:         order.ID,
		TransactionCode: code,
		PayerPhone:      req.PayerPhone,
		Method:          req.Method,
		ClaimedAmount:   req.ClaimedAmount,
		Status:          domain.DepositSubmitted,
		CreatedAt:       now,
	}
	if err := s.depositRepo.Create(ctx, deposit); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, apperror.ErrDepositAlreadyExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create deposit: %w", err))
	}

	// All checks evaluate independently; each result is stored.
	formatOK := txCodePattern.MatchString(code)

	dupDetail := "code not seen before"
	duplicateOK := true
	if existing, derr := s.depositRepo.FindByCode(ctx, code); derr != nil {
		return nil, apperror.InternalError(fmt.Errorf("duplicate lookup: %w", derr))
	} else if existing != nil && existing.ID != deposit.ID && existing.OrderID != order.ID {
		duplicateOK = false
		dupDetail = fmt.Sprintf("code already attached to order %s", existing.OrderID)
	}

	diff := req.ClaimedAmount - order.GrossAmount
	if diff < 0 {
		diff = -diff
	}
	amountOK := diff <= s.tolerance

	checks := []domain.VerificationCheck{
		{ID: uuid.New(), DepositID: deposit.ID, Check: domain.CheckFormat, Passed: formatOK,
			Detail: fmt.Sprintf("code %q", code), CreatedAt: now},
		{ID: uuid.New(), DepositID: deposit.ID, Check: domain.CheckDuplicate, Passed: duplicateOK,
			Detail: dupDetail, CreatedAt: now},
		{ID: uuid.New(), DepositID: deposit.ID, Check: domain.CheckAmountMatch, Passed: amountOK,
			Detail: fmt.Sprintf("claimed %d vs expected %d", req.ClaimedAmount, order.GrossAmount), CreatedAt: now},
	}
	for i := range checks {
		if err := s.depositRepo.RecordCheck(ctx, &checks[i]); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record verification check: %w", err))
		}
	}

	if formatOK && duplicateOK && amountOK {
		deposit.Status = domain.DepositPendingApproval
		if err := s.depositRepo.SetStatus(ctx, deposit.ID, domain.DepositPendingApproval, nil); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("set deposit status: %w", err))
		}
		if err := s.orderRepo.SetVerificationStatus(ctx, order.ID, domain.VerificationPendingApproval); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("set order verification status: %w", err))
		}
	} else {
		deposit.Status = domain.DepositFlagged
		if err := s.depositRepo.SetStatus(ctx, deposit.ID, domain.DepositFlagged, nil); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("set deposit status: %w", err))
		}
		if err := s.orderRepo.SetVerificationStatus(ctx, order.ID, domain.VerificationFlagged); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("set order verification status: %w", err))
		}
		if !duplicateOK {
			metrics.FraudAlertsTotal.Inc()
			s.log.Warn().
				Str("order_id", order.ID.String()).
				Str("code", code).
				Msg("duplicate transaction code submitted, fraud alert raised")
			s.dispatchAsync(domain.Notification{
				UserID:  s.adminUserID,
				OrderID: &order.ID,
				Kind:    domain.NotifyFraudAlert,
				Title:   "Duplicate transaction code",
				Body:    fmt.Sprintf("Code %s submitted for order %s is already attached to another order.", code, order.ID),
			})
		}
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("deposit_id", deposit.ID.String()).
		Str("status", string(deposit.Status)).
		Msg("deposit submitted")

	return &ports.DepositResult{Deposit: deposit, Checks: checks}, nil
}

// ApproveDeposit is the admin confirm-payment action. It performs the same
// lock-equivalent sequence as the webhook path via EscrowService.Lock.
func (s *VerificationServiceImpl) ApproveDeposit(ctx context.Context, depositID, adminID uuid.UUID) (*domain.EscrowWallet, error) {
	deposit, err := s.depositRepo.GetByID(ctx, depositID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get deposit: %w", err))
	}
	if deposit == nil {
		return nil, apperror.ErrDepositNotFound()
	}
	if deposit.Status != domain.DepositPendingApproval {
		return nil, apperror.ErrDepositNotPending()
	}

	// Lock first; only a committed wallet marks the deposit approved.
	wallet, err := s.escrow.Lock(ctx, ports.LockRequest{
		OrderID: deposit.OrderID,
		Source:  "admin_approval",
	})
	if err != nil {
		return nil, err
	}

	if err := s.depositRepo.SetStatus(ctx, deposit.ID, domain.DepositApproved, &adminID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark deposit approved: %w", err))
	}
	if err := s.orderRepo.SetVerificationStatus(ctx, deposit.OrderID, domain.VerificationApproved); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set order verification status: %w", err))
	}

	s.log.Info().
		Str("deposit_id", deposit.ID.String()).
		Str("order_id", deposit.OrderID.String()).
		Str("admin_id", adminID.String()).
		Msg("deposit approved, escrow locked")

	return wallet, nil
}

// RejectDeposit returns the order to pending. No money has moved yet, so
// there is nothing to reverse.
func (s *VerificationServiceImpl) RejectDeposit(ctx context.Context, depositID, adminID uuid.UUID, reason string) error {
	deposit, err := s.depositRepo.GetByID(ctx, depositID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get deposit: %w", err))
	}
	if deposit == nil {
		return apperror.ErrDepositNotFound()
	}
	if deposit.Status != domain.DepositPendingApproval && deposit.Status != domain.DepositFlagged {
		return apperror.ErrDepositNotPending()
	}

	if err := s.depositRepo.SetStatus(ctx, deposit.ID, domain.DepositRejected, &adminID); err != nil {
		return apperror.InternalError(fmt.Errorf("mark deposit rejected: %w", err))
	}
	if err := s.orderRepo.SetVerificationStatus(ctx, deposit.OrderID, domain.VerificationRejected); err != nil {
		return apperror.InternalError(fmt.Errorf("set order verification status: %w", err))
	}
	if err := s.orderRepo.SetStatus(ctx, deposit.OrderID, domain.OrderStatusPending); err != nil {
		return apperror.InternalError(fmt.Errorf("reset order status: %w", err))
	}

	s.log.Info().
		Str("deposit_id", deposit.ID.String()).
		Str("order_id", deposit.OrderID.String()).
		Str("admin_id", adminID.String()).
		Str("reason", reason).
		Msg("deposit rejected")

	return nil
}

// recordEvent persists the normalized provider event in its own transaction.
func (s *VerificationServiceImpl) recordEvent(ctx context.Context, event *domain.PaymentEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			// A concurrent delivery recorded it first.
			return nil
		}
		return apperror.InternalError(fmt.Errorf("record payment event: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// dispatchAsync fires a notification without blocking or failing the caller.
func (s *VerificationServiceImpl) dispatchAsync(n domain.Notification) {
	if s.notifier == nil {
		return
	}
	go func() {
		if err := s.notifier.Dispatch(context.Background(), n); err != nil {
			s.log.Warn().Err(err).Str("kind", string(n.Kind)).Msg("notification dispatch failed")
		}
	}()
}
