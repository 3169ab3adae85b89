// Package admin implements the catalog management operations: creating
// events and ticket sections, and removing them when no bookings
// reference them.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
	postgresrepo "github.com/matchtix/matchtix/internal/repository/postgres"
	redisrepo "github.com/matchtix/matchtix/internal/repository/redis"
	"github.com/matchtix/matchtix/internal/uow"
)

type CatalogStore interface {
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	GetSection(ctx context.Context, id int64) (*domain.TicketSection, error)
}

type AdminStore interface {
	CreateEvent(ctx context.Context, e *domain.Event) (int64, error)
	CreateSection(ctx context.Context, s *domain.TicketSection) (int64, error)
	HasBookings(ctx context.Context, eventID int64) (bool, error)
	SectionHasBookings(ctx context.Context, sectionID int64) (bool, error)
	DeleteEvent(ctx context.Context, id int64) error
	DeleteSection(ctx context.Context, id int64) error
}

// Stores hands out repositories bound to the given transaction handle;
// a nil handle means the pool.
type Stores interface {
	Catalog(tx postgresrepo.DB) CatalogStore
	Admin(tx postgresrepo.DB) AdminStore
}

// TxRunner runs fn inside a transaction and fires the collected
// after-commit hooks on success; *uow.UoW satisfies it.
type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type pgStores struct {
	store *postgresrepo.Store
}

// NewStores adapts the postgres store to the Stores collaborator.
func NewStores(store *postgresrepo.Store) Stores {
	return pgStores{store: store}
}

func (s pgStores) Catalog(tx postgresrepo.DB) CatalogStore {
	if tx != nil {
		return s.store.Catalog().With(tx)
	}
	return s.store.Catalog()
}

func (s pgStores) Admin(tx postgresrepo.DB) AdminStore {
	if tx != nil {
		return s.store.Admin().With(tx)
	}
	return s.store.Admin()
}

type Service struct {
	stores Stores
	runner TxRunner
	cache  *redisrepo.Cache
	logger *slog.Logger
}

func New(stores Stores, runner TxRunner, cache *redisrepo.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		stores: stores,
		runner: runner,
		cache:  cache,
		logger: logger,
	}
}

// CreateEvent registers a new event in the catalog. The event starts in
// UPCOMING status unless the caller sets one explicitly.
//
// Returns:
//   - int64: the created event's ID.
//   - error: admin.ErrInvalidInput on missing title, venue or start time.
func (s *Service) CreateEvent(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "service.admin.CreateEvent"

	if e.Title == "" || e.Venue == "" || e.StartsAt.IsZero() {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	if e.Status == "" {
		e.Status = domain.EventUpcoming
	}

	id, err := s.stores.Admin(nil).CreateEvent(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("event created", "event_id", id, "title", e.Title)

	return id, nil
}

// CreateSection adds a ticket section to an existing event. Available
// seats start equal to total seats.
//
// Returns:
//   - int64: the created section's ID.
//   - error: admin.ErrEventNotFound / admin.ErrInvalidInput.
func (s *Service) CreateSection(ctx context.Context, sec *domain.TicketSection) (int64, error) {
	const op = "service.admin.CreateSection"

	if sec.Name == "" || sec.TotalSeats <= 0 || !sec.PricePerTicket.IsPositive() {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	var id int64

	err := s.runner.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if _, err := s.stores.Catalog(tx).GetEvent(ctx, sec.EventID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}

			return err
		}

		created, err := s.stores.Admin(tx).CreateSection(ctx, sec)
		if err != nil {
			return err
		}

		id = created

		after(func(ctx context.Context) {
			s.invalidateEvent(ctx, sec.EventID)
		})

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("section created",
		"section_id", id,
		"event_id", sec.EventID,
		"total_seats", sec.TotalSeats,
	)

	return id, nil
}

// DeleteEvent removes an event and its sections. Refused while any
// booking still references the event.
//
// Returns:
//   - error: admin.ErrEventNotFound / admin.ErrHasBookings.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteEvent"

	err := s.runner.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		repo := s.stores.Admin(tx)

		referenced, err := repo.HasBookings(ctx, id)
		if err != nil {
			return err
		}

		if referenced {
			return ErrHasBookings
		}

		if err := repo.DeleteEvent(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}

			if errors.Is(err, repository.ErrHasBookings) {
				return ErrHasBookings
			}

			return err
		}

		after(func(ctx context.Context) {
			s.invalidateEvent(ctx, id)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("event deleted", "event_id", id)

	return nil
}

// DeleteSection removes a ticket section. Refused while any booking
// still references the section.
//
// Returns:
//   - error: admin.ErrSectionNotFound / admin.ErrHasBookings.
func (s *Service) DeleteSection(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteSection"

	var eventID int64

	err := s.runner.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		sec, err := s.stores.Catalog(tx).GetSection(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSectionNotFound
			}

			return err
		}

		eventID = sec.EventID

		repo := s.stores.Admin(tx)

		referenced, err := repo.SectionHasBookings(ctx, id)
		if err != nil {
			return err
		}

		if referenced {
			return ErrHasBookings
		}

		if err := repo.DeleteSection(ctx, id); err != nil {
			if errors.Is(err, repository.ErrHasBookings) {
				return ErrHasBookings
			}

			return err
		}

		after(func(ctx context.Context) {
			s.invalidateSection(ctx, eventID, id)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("section deleted", "section_id", id, "event_id", eventID)

	return nil
}

func (s *Service) invalidateEvent(ctx context.Context, eventID int64) {
	if s.cache == nil {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.cache.InvalidateEvent(cctx, eventID); err != nil {
		s.logger.Warn("cache invalidation failed", "event_id", eventID, "error", err)
	}
}

func (s *Service) invalidateSection(ctx context.Context, eventID, sectionID int64) {
	if s.cache == nil {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.cache.InvalidateSection(cctx, eventID, sectionID); err != nil {
		s.logger.Warn("cache invalidation failed",
			"event_id", eventID,
			"section_id", sectionID,
			"error", err,
		)
	}
}
