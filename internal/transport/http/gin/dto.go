package httpgin

import (
	"time"
)

type CreateBookingRequest struct {
	EventID   int64 `json:"event_id" binding:"required"`
	SectionID int64 `json:"section_id" binding:"required"`
	Tickets   int   `json:"tickets" binding:"required,gt=0"`
}

type ConfirmPaymentRequest struct {
	IntentID string `json:"intent_id"`
}

type CreateEventRequest struct {
	Title    string `json:"title" binding:"required"`
	Venue    string `json:"venue" binding:"required"`
	StartsAt string `json:"starts_at" binding:"required"`
	Status   string `json:"status"`
}

type CreateSectionRequest struct {
	Name           string `json:"name" binding:"required"`
	TotalSeats     int    `json:"total_seats" binding:"required,gt=0"`
	PricePerTicket string `json:"price_per_ticket" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BeginPaymentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
}

type CreateEventResponse struct {
	EventID int64 `json:"event_id"`
}

type CreateSectionResponse struct {
	SectionID int64 `json:"section_id"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
