package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
	redisrepo "github.com/matchtix/matchtix/internal/repository/redis"
	"github.com/shopspring/decimal"
)

type Config struct {
	// HoldTTL bounds how long a PENDING_PAYMENT booking keeps its seats
	// before the expiry sweep reclaims them.
	HoldTTL time.Duration
	// SweepBatch caps how many stale bookings one sweep pass processes.
	SweepBatch int
}

type CatalogStore interface {
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	GetSection(ctx context.Context, id int64) (*domain.TicketSection, error)
}

type BookingStore interface {
	Create(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id int64) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.BookingStatus) error
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Booking, error)
}

// Inventory is the seat-counter collaborator; *inventory.Service
// satisfies it.
type Inventory interface {
	Reserve(ctx context.Context, sectionID int64, count int) (*domain.Reservation, error)
	Release(ctx context.Context, sectionID int64, count int) error
}

// PaymentCanceller lets the expiry sweep void the payment intent of a
// reclaimed booking; *payment.Service satisfies it.
type PaymentCanceller interface {
	CancelPayment(ctx context.Context, b *domain.Booking) error
}

type Service struct {
	catalog   CatalogStore
	bookings  BookingStore
	inventory Inventory
	payments  PaymentCanceller
	cache     *redisrepo.Cache
	pubsub    *redisrepo.SectionsPubSub
	limiter   *redisrepo.SlidingWindowLimiter
	logger    *slog.Logger
	cfg       Config
}

func New(
	catalog CatalogStore,
	bookings BookingStore,
	inventory Inventory,
	payments PaymentCanceller,
	cache *redisrepo.Cache,
	pubsub *redisrepo.SectionsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 15 * time.Minute
	}

	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		catalog:   catalog,
		bookings:  bookings,
		inventory: inventory,
		payments:  payments,
		cache:     cache,
		pubsub:    pubsub,
		limiter:   limiter,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateBooking reserves seats and records the booking that claims them.
// The seat reservation commits first; if recording the booking then
// fails, the reservation is compensated by an immediate release so no
// seats stay stuck without a booking referencing them.
//
// The booking starts in PENDING_PAYMENT with the total price frozen at
// the section's price at this moment; later price edits never touch it.
//
// Parameters:
//   - ctx: request-scoped context.
//   - requesterID: identity of the buyer, passed explicitly by the caller.
//   - eventID, sectionID: the event and section being booked.
//   - tickets: number of seats requested.
//   - rlKey: rate-limit bucket key; empty disables limiting.
//
// Returns:
//   - *domain.Booking: the persisted booking.
//   - error: booking.ErrEventNotFound / booking.ErrSectionNotFound.
//   - error: booking.ErrNotBookable if the event is not open for sale.
//   - error: booking.ErrInvalidTicketCount if tickets <= 0.
//   - error: inventory.ErrSoldOut / *inventory.InsufficientSeatsError,
//     propagated verbatim from the seat inventory.
func (s *Service) CreateBooking(
	ctx context.Context,
	requesterID, eventID, sectionID int64,
	tickets int,
	rlKey string,
) (*domain.Booking, error) {
	const op = "service.booking.CreateBooking"

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w, retry in %s", op, ErrRateLimited, retry)
		}
	}

	event, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	section, err := s.catalog.GetSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrSectionNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if section.EventID != eventID {
		return nil, fmt.Errorf("%s: %w", op, ErrSectionNotFound)
	}

	if !event.Bookable(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotBookable)
	}

	if tickets <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTicketCount)
	}

	reservation, err := s.inventory.Reserve(ctx, sectionID, tickets)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b := &domain.Booking{
		Code:          domain.NewBookingCode(),
		RequesterID:   requesterID,
		EventID:       eventID,
		SectionID:     sectionID,
		Tickets:       tickets,
		TotalPrice:    section.PricePerTicket.Mul(decimal.NewFromInt(int64(tickets))),
		Status:        domain.BookingPendingPayment,
		PaymentStatus: domain.PaymentPending,
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		// Compensate the committed reservation; run it even when the
		// original context is already cancelled.
		rctx := context.WithoutCancel(ctx)
		if relErr := s.inventory.Release(rctx, sectionID, tickets); relErr != nil {
			s.logger.Error("failed to release seats after booking persist failure",
				"section_id", sectionID,
				"seats", tickets,
				"error", relErr,
			)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.afterSeatChange(ctx, eventID, sectionID)

	s.logger.Info("booking created",
		"booking_code", b.Code,
		"requester_id", requesterID,
		"event_id", eventID,
		"section_id", sectionID,
		"tickets", tickets,
		"reservation_id", reservation.ID,
	)

	return b, nil
}

// CancelBooking cancels a confirmed booking and returns its seats.
// The CONFIRMED -> CANCELLED edge is taken with a compare-and-set
// guard, so racing duplicate cancels release the seats exactly once.
//
// Returns:
//   - error: booking.ErrBookingNotFound if the booking is absent.
//   - error: booking.ErrForbidden if the requester does not own it.
//   - error: booking.ErrInvalidState if the booking is not CONFIRMED.
func (s *Service) CancelBooking(ctx context.Context, bookingID, requesterID int64) error {
	const op = "service.booking.CancelBooking"

	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if b.RequesterID != requesterID {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.transition(ctx, bookingID, domain.BookingConfirmed, domain.BookingCancelled); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%s: %w", op, ErrInvalidState)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.inventory.Release(ctx, b.SectionID, b.Tickets); err != nil {
		// The booking is cancelled but the seats did not come back;
		// surface it rather than pretend the cancellation is clean.
		s.logger.Error("failed to release seats on cancellation",
			"booking_code", b.Code,
			"section_id", b.SectionID,
			"seats", b.Tickets,
			"error", err,
		)

		return fmt.Errorf("%s: %w", op, err)
	}

	s.afterSeatChange(ctx, b.EventID, b.SectionID)

	s.logger.Info("booking cancelled", "booking_code", b.Code)

	return nil
}

// ExpireStale reclaims PENDING_PAYMENT bookings older than the hold
// TTL: each is cancelled, its seats released and its payment intent
// voided best-effort. Returns the number of bookings reclaimed.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	const op = "service.booking.ExpireStale"

	cutoff := time.Now().Add(-s.cfg.HoldTTL)

	stale, err := s.bookings.ListExpiredPending(ctx, cutoff, s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var reclaimed int
	for i := range stale {
		b := &stale[i]

		err := s.transition(ctx, b.ID, domain.BookingPendingPayment, domain.BookingCancelled)
		if err != nil {
			// Lost the race against a confirm or another sweep; skip.
			if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
				continue
			}

			return reclaimed, fmt.Errorf("%s: %w", op, err)
		}

		if err := s.inventory.Release(ctx, b.SectionID, b.Tickets); err != nil {
			s.logger.Error("failed to release seats for expired booking",
				"booking_code", b.Code,
				"error", err,
			)
		}

		if s.payments != nil {
			if err := s.payments.CancelPayment(ctx, b); err != nil {
				s.logger.Warn("failed to void payment intent for expired booking",
					"booking_code", b.Code,
					"error", err,
				)
			}
		}

		s.afterSeatChange(ctx, b.EventID, b.SectionID)
		reclaimed++
	}

	if reclaimed > 0 {
		s.logger.Info("expired bookings reclaimed", "count", reclaimed)
	}

	return reclaimed, nil
}

// transition takes a booking lifecycle edge: legality comes from the
// domain state machine, at-most-once execution from the store's
// compare-and-set guard.
func (s *Service) transition(ctx context.Context, id int64, from, to domain.BookingStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("transition booking %d: %w", id, domain.ErrInvalidStateTransition)
	}

	return s.bookings.UpdateStatus(ctx, id, from, to)
}

func (s *Service) afterSeatChange(ctx context.Context, eventID, sectionID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateSection(ctx, eventID, sectionID)
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishSectionChanged(ctx, eventID, sectionID)
	}
}
