package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCount      = errors.New("seat count must be positive")
	ErrSectionNotFound   = errors.New("section not found")
	ErrSoldOut           = errors.New("section is sold out")
	ErrInsufficientSeats = errors.New("not enough seats available")
)

// InsufficientSeatsError carries the actual remaining count so callers
// can tell the buyer how many seats are left.
type InsufficientSeatsError struct {
	SectionID int64
	Remaining int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("only %d seats available in section %d", e.Remaining, e.SectionID)
}

func (e *InsufficientSeatsError) Unwrap() error {
	return ErrInsufficientSeats
}
