package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "UPCOMING"
	EventLive      EventStatus = "LIVE"
	EventCompleted EventStatus = "COMPLETED"
	EventCancelled EventStatus = "CANCELLED"
)

type Event struct {
	ID        int64
	Title     string
	Venue     string
	StartsAt  time.Time
	Status    EventStatus
	CreatedAt time.Time
}

// Bookable reports whether tickets for the event may still be sold.
func (e *Event) Bookable(now time.Time) bool {
	return e.Status == EventUpcoming && e.StartsAt.After(now)
}

// TicketSection is a named, price-tagged block of seats within one event.
// AvailableSeats changes only through the inventory reserve/release path
// and always stays within [0, TotalSeats].
type TicketSection struct {
	ID             int64
	EventID        int64
	Name           string
	TotalSeats     int
	AvailableSeats int
	PricePerTicket decimal.Decimal
}

func (s *TicketSection) SoldOut() bool {
	return s.AvailableSeats <= 0
}

// SectionAvailability is the read-model snapshot of a section's seat
// counters served to presentation layers.
type SectionAvailability struct {
	SectionID int64
	Available int
	Total     int
}

// Reservation is the token returned by a successful seat reservation.
type Reservation struct {
	ID        uuid.UUID
	SectionID int64
	Seats     int
}

type Booking struct {
	ID              int64
	Code            string
	RequesterID     int64
	EventID         int64
	SectionID       int64
	Tickets         int
	TotalPrice      decimal.Decimal
	Status          BookingStatus
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	BookedAt        time.Time
	PaidAt          *time.Time
}

// NewBookingCode generates the opaque code shown to the buyer as proof
// of purchase. Codes are never reused.
func NewBookingCode() string {
	return strings.ToUpper(uuid.NewString())
}
