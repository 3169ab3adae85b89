package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSoldOut           = errors.New("section sold out")
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrHasBookings       = errors.New("bookings still reference this record")
)
