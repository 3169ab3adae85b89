package payment

import "errors"

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrAlreadyPaid        = errors.New("booking is already paid")
	ErrInvalidState       = errors.New("booking is not awaiting payment")
	ErrIntentMismatch     = errors.New("payment reference does not match booking")
	ErrPaymentFailed      = errors.New("payment was not successful")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
