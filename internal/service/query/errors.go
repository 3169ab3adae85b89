package query

import (
	"errors"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrBookingNotFound = errors.New("booking not found")
)
