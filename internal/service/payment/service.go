package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
	"github.com/shopspring/decimal"
)

type Config struct {
	Currency string
	// GatewayTimeout bounds every call to the external collaborator so
	// no request handler hangs on it.
	GatewayTimeout time.Duration
	// DemoMode treats a gateway failure as a completed payment instead
	// of surfacing ErrGatewayUnavailable. Never enable in production;
	// every fallback is logged as a warning.
	DemoMode bool
}

type Store interface {
	Get(ctx context.Context, id int64) (*domain.Booking, error)
	SetPaymentIntent(ctx context.Context, id int64, intentID string) error
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, id int64) error
}

// Service reconciles booking state against payment outcomes.
type Service struct {
	store   Store
	gateway Gateway
	logger  *slog.Logger
	cfg     Config
}

func New(store Store, gateway Gateway, logger *slog.Logger, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}

	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:   store,
		gateway: gateway,
		logger:  logger,
		cfg:     cfg,
	}
}

// amountMinorUnits converts a price to the smallest currency unit with
// exact decimal arithmetic; no floating point is involved.
func amountMinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// BeginPayment opens a payment intent for the booking's frozen total
// price and moves the payment sub-state to PROCESSING. Booking metadata
// is attached to the intent for traceability.
//
// On gateway failure the booking stays PENDING_PAYMENT with its seats
// reserved and ErrGatewayUnavailable is returned. In demo mode the
// booking is marked paid instead and the fallback is logged.
//
// Returns:
//   - *Intent: the open intent (ID and client secret).
//   - error: payment.ErrBookingNotFound / payment.ErrAlreadyPaid /
//     payment.ErrInvalidState / payment.ErrGatewayUnavailable.
func (s *Service) BeginPayment(ctx context.Context, bookingID int64) (*Intent, error) {
	const op = "service.payment.BeginPayment"

	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if b.PaymentStatus == domain.PaymentCompleted {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyPaid)
	}

	if b.Status != domain.BookingPendingPayment {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	// PROCESSING re-begins with a fresh intent; any other sub-state must
	// have a legal edge into PROCESSING.
	if b.PaymentStatus != domain.PaymentProcessing &&
		!b.PaymentStatus.CanTransition(domain.PaymentProcessing) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	req := IntentRequest{
		AmountMinorUnits: amountMinorUnits(b.TotalPrice),
		Currency:         s.cfg.Currency,
		Description:      "Match ticket booking " + b.Code,
		Metadata: map[string]string{
			"booking_id":   strconv.FormatInt(b.ID, 10),
			"booking_code": b.Code,
			"requester_id": strconv.FormatInt(b.RequesterID, 10),
			"event_id":     strconv.FormatInt(b.EventID, 10),
		},
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	intent, err := s.gateway.CreateIntent(gctx, req)
	if err != nil {
		if !s.cfg.DemoMode {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrGatewayUnavailable, err)
		}

		s.logger.Warn("gateway error in demo mode, marking booking as paid",
			"booking_code", b.Code,
			"error", err,
		)

		// The fallback still walks the lifecycle: intent recorded,
		// sub-state PROCESSING, then COMPLETED.
		demoID := "demo-" + b.Code
		if err := s.store.SetPaymentIntent(ctx, b.ID, demoID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if err := s.store.MarkPaid(ctx, b.ID, time.Now()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return &Intent{ID: demoID, Status: IntentSucceeded}, nil
	}

	if err := s.store.SetPaymentIntent(ctx, b.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("payment intent created",
		"intent_id", intent.ID,
		"booking_code", b.Code,
		"amount_minor", req.AmountMinorUnits,
		"currency", s.cfg.Currency,
	)

	return intent, nil
}

// ConfirmPayment settles the booking after the buyer completed the
// payment flow: payment sub-state COMPLETED, booking CONFIRMED, paidAt
// recorded on the first call only. Confirming an already-completed
// booking with the same reference is a no-op, not an error.
//
// Settlement is driven by the intent stored at BeginPayment: a booking
// with no stored intent cannot be confirmed, and the caller-supplied
// reference is only cross-checked against it. Both lifecycle axes must
// have a legal edge into the settled state, so a booking the sweep
// already cancelled, or whose payment never left PENDING, is rejected.
//
// Returns:
//   - error: payment.ErrBookingNotFound / payment.ErrIntentMismatch /
//     payment.ErrInvalidState / payment.ErrPaymentFailed /
//     payment.ErrGatewayUnavailable.
func (s *Service) ConfirmPayment(ctx context.Context, bookingID int64, intentID string) error {
	const op = "service.payment.ConfirmPayment"

	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if b.PaymentIntentID != "" && intentID != "" && b.PaymentIntentID != intentID {
		return fmt.Errorf("%s: %w", op, ErrIntentMismatch)
	}

	if b.PaymentStatus == domain.PaymentCompleted {
		return nil
	}

	if b.PaymentIntentID == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	if !b.PaymentStatus.CanTransition(domain.PaymentCompleted) {
		return fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	if !b.Status.CanTransition(domain.BookingConfirmed) {
		return fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	if !s.cfg.DemoMode {
		gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
		defer cancel()

		intent, err := s.gateway.RetrieveIntent(gctx, b.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrGatewayUnavailable, err)
		}

		if intent.Status != IntentSucceeded {
			if err := s.store.MarkPaymentFailed(ctx, b.ID); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			return fmt.Errorf("%s: %w: intent status %q", op, ErrPaymentFailed, intent.Status)
		}
	}

	if err := s.store.MarkPaid(ctx, b.ID, time.Now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("payment confirmed", "booking_code", b.Code)

	return nil
}

// HandlePaymentFailed records a payment failure reported by the buyer's
// client after the gateway rejected the attempt. The booking stays
// PENDING_PAYMENT with its seats held, so the payment can be retried
// until the expiry sweep reclaims it.
//
// Returns:
//   - error: payment.ErrBookingNotFound / payment.ErrIntentMismatch /
//     payment.ErrAlreadyPaid.
func (s *Service) HandlePaymentFailed(ctx context.Context, bookingID int64, intentID string) error {
	const op = "service.payment.HandlePaymentFailed"

	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if b.PaymentIntentID != "" && intentID != "" && b.PaymentIntentID != intentID {
		return fmt.Errorf("%s: %w", op, ErrIntentMismatch)
	}

	if b.PaymentStatus == domain.PaymentCompleted {
		return fmt.Errorf("%s: %w", op, ErrAlreadyPaid)
	}

	if !b.PaymentStatus.CanTransition(domain.PaymentFailed) {
		return fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	if err := s.store.MarkPaymentFailed(ctx, b.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Warn("payment attempt failed", "booking_code", b.Code)

	return nil
}

// CancelPayment voids the booking's open payment intent, if any.
// Used by the expiry sweep; failures are for the caller to log.
func (s *Service) CancelPayment(ctx context.Context, b *domain.Booking) error {
	const op = "service.payment.CancelPayment"

	if b.PaymentIntentID == "" {
		return nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	if err := s.gateway.CancelIntent(gctx, b.PaymentIntentID); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrGatewayUnavailable, err)
	}

	return nil
}
