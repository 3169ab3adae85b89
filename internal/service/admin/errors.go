package admin

import (
	"errors"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrHasBookings     = errors.New("bookings reference this record")
	ErrInvalidInput    = errors.New("invalid input")
)
