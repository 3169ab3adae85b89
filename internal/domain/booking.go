package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidStateTransition = errors.New("invalid state transition")

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingConfirmed      BookingStatus = "CONFIRMED"
	BookingCancelled      BookingStatus = "CANCELLED"
	BookingRefunded       BookingStatus = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// bookingTransitions lists the legal booking lifecycle edges.
// CANCELLED and REFUNDED are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingPayment: {BookingConfirmed, BookingCancelled},
	BookingConfirmed:      {BookingCancelled, BookingRefunded},
}

// paymentTransitions lists the legal payment sub-state edges.
// FAILED may re-enter PROCESSING on retry.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentFailed:     {PaymentProcessing},
	PaymentCompleted:  {PaymentRefunded},
}

func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionStatus moves the booking to the given status, rejecting
// edges not present in the lifecycle graph.
func (b *Booking) TransitionStatus(to BookingStatus) error {
	if !b.Status.CanTransition(to) {
		return fmt.Errorf("%w: booking %s -> %s", ErrInvalidStateTransition, b.Status, to)
	}

	b.Status = to

	return nil
}

// TransitionPayment moves the payment sub-state, rejecting edges not
// present in the lifecycle graph. The payment axis is tracked
// independently of the booking status.
func (b *Booking) TransitionPayment(to PaymentStatus) error {
	if !b.PaymentStatus.CanTransition(to) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidStateTransition, b.PaymentStatus, to)
	}

	b.PaymentStatus = to

	return nil
}
