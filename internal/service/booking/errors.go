package booking

import "errors"

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrSectionNotFound    = errors.New("section not found")
	ErrNotBookable        = errors.New("event is not open for booking")
	ErrInvalidTicketCount = errors.New("number of tickets must be greater than 0")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrForbidden          = errors.New("booking belongs to another requester")
	ErrInvalidState       = errors.New("operation not allowed in current booking state")
	ErrRateLimited        = errors.New("rate limited")
)
