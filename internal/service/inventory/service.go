package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
)

// CounterStore owns the persisted available-seat counter of a section.
// Reserve must be atomic with respect to concurrent reservations on the
// same section; the postgres implementation uses a conditional UPDATE.
type CounterStore interface {
	Reserve(ctx context.Context, sectionID int64, count int) (int, error)
	Release(ctx context.Context, sectionID int64, count int) error
}

// Service is the only place seat counters change.
type Service struct {
	store CounterStore
}

func New(store CounterStore) *Service {
	return &Service{store: store}
}

// Reserve atomically takes count seats from the section and returns a
// reservation token. The decrement is committed before Reserve returns.
//
// Returns:
//   - *domain.Reservation: the reservation token on success.
//   - error: inventory.ErrInvalidCount if count is not positive.
//   - error: inventory.ErrSectionNotFound if the section does not exist.
//   - error: inventory.ErrSoldOut if the section has no seats left.
//   - error: *inventory.InsufficientSeatsError (wrapping
//     ErrInsufficientSeats) if fewer than count seats remain.
func (s *Service) Reserve(ctx context.Context, sectionID int64, count int) (*domain.Reservation, error) {
	const op = "service.inventory.Reserve"

	if count <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCount)
	}

	remaining, err := s.store.Reserve(ctx, sectionID, count)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrSectionNotFound)
		case errors.Is(err, repository.ErrSoldOut):
			return nil, fmt.Errorf("%s: %w", op, ErrSoldOut)
		case errors.Is(err, repository.ErrInsufficientSeats):
			return nil, fmt.Errorf("%s: %w", op, &InsufficientSeatsError{
				SectionID: sectionID,
				Remaining: remaining,
			})
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.Reservation{
		ID:        uuid.New(),
		SectionID: sectionID,
		Seats:     count,
	}, nil
}

// Release returns count seats to the section. It is a compensating
// action: the store clamps the counter at the section's capacity, so a
// stray double release never pushes availability past total seats.
func (s *Service) Release(ctx context.Context, sectionID int64, count int) error {
	const op = "service.inventory.Release"

	if count <= 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidCount)
	}

	if err := s.store.Release(ctx, sectionID, count); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrSectionNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
