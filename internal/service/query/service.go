package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
	redisrepo "github.com/matchtix/matchtix/internal/repository/redis"
)

type Config struct {
	EventSummaryTTL time.Duration
	SectionsTTL     time.Duration
	AvailabilityTTL time.Duration
}

type CatalogStore interface {
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	GetSection(ctx context.Context, id int64) (*domain.TicketSection, error)
	ListSections(ctx context.Context, eventID int64) ([]domain.TicketSection, error)
}

type BookingStore interface {
	GetByCode(ctx context.Context, code string) (*domain.Booking, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]domain.Booking, error)
}

type Service struct {
	catalog  CatalogStore
	bookings BookingStore
	cache    *redisrepo.Cache
	cfg      Config
}

func New(catalog CatalogStore, bookings BookingStore, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.SectionsTTL <= 0 {
		cfg.SectionsTTL = 15 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 5 * time.Second
	}

	return &Service{
		catalog:  catalog,
		bookings: bookings,
		cache:    cache,
		cfg:      cfg,
	}
}

// GetEvent retrieves an event by its ID through the read-through cache.
//
// Returns:
//   - *domain.Event: the retrieved event.
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	key := redisrepo.KeyEventSummary(id)

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.catalog.GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}

				return domain.Event{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

// ListEventSections lists the event's ticket sections with their
// current counters, cached with a short TTL.
//
// Returns:
//   - []domain.TicketSection: sections of the event.
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) ListEventSections(ctx context.Context, eventID int64) ([]domain.TicketSection, error) {
	const op = "service.query.ListEventSections"

	key := redisrepo.KeyEventSections(eventID)

	sections, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.SectionsTTL,
		func(ctx context.Context) ([]domain.TicketSection, error) {
			if _, err := s.catalog.GetEvent(ctx, eventID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrEventNotFound
				}

				return nil, err
			}

			return s.catalog.ListSections(ctx, eventID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sections, nil
}

// SectionAvailability returns the seats-left snapshot for one section.
//
// Returns:
//   - *domain.SectionAvailability: the availability counters.
//   - error: query.ErrSectionNotFound if the section is not found.
func (s *Service) SectionAvailability(ctx context.Context, sectionID int64) (*domain.SectionAvailability, error) {
	const op = "service.query.SectionAvailability"

	key := redisrepo.KeySectionAvailability(sectionID)

	availability, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.SectionAvailability, error) {
			sec, err := s.catalog.GetSection(ctx, sectionID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.SectionAvailability{}, ErrSectionNotFound
				}

				return domain.SectionAvailability{}, err
			}

			return domain.SectionAvailability{
				SectionID: sec.ID,
				Available: sec.AvailableSeats,
				Total:     sec.TotalSeats,
			}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &availability, nil
}

// GetBookingByCode retrieves a booking by its opaque code.
//
// Returns:
//   - *domain.Booking: the booking.
//   - error: query.ErrBookingNotFound if no booking carries the code.
func (s *Service) GetBookingByCode(ctx context.Context, code string) (*domain.Booking, error) {
	const op = "service.query.GetBookingByCode"

	b, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// ListBookings lists the requester's bookings, most recent first.
func (s *Service) ListBookings(ctx context.Context, requesterID int64) ([]domain.Booking, error) {
	const op = "service.query.ListBookings"

	bookings, err := s.bookings.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}
