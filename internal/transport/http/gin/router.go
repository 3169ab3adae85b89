package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matchtix/matchtix/internal/domain"
	redisrepo "github.com/matchtix/matchtix/internal/repository/redis"
	"github.com/matchtix/matchtix/internal/service"
	"github.com/matchtix/matchtix/internal/service/admin"
	"github.com/matchtix/matchtix/internal/service/booking"
	"github.com/matchtix/matchtix/internal/service/inventory"
	"github.com/matchtix/matchtix/internal/service/payment"
	"github.com/matchtix/matchtix/internal/service/query"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/sections", handleListEventSections(svcs))
	r.GET("/sections/:id/availability", handleSectionAvailability(svcs))

	r.POST("/bookings", handleCreateBooking(svcs, idem))
	r.GET("/bookings", handleListBookings(svcs))
	r.GET("/bookings/code/:code", handleGetBookingByCode(svcs))
	r.POST("/bookings/:id/cancel", handleCancelBooking(svcs))

	r.POST("/bookings/:id/payment", handleBeginPayment(svcs))
	r.POST("/bookings/:id/payment/confirm", handleConfirmPayment(svcs))
	r.POST("/bookings/:id/payment/failed", handlePaymentFailed(svcs))

	// Admin-API
	// TODO: add admin middleware
	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/events", handleCreateEvent(svcs))
		adminGroup.POST("/events/:id/sections", handleCreateSection(svcs))
		adminGroup.DELETE("/events/:id", handleDeleteEvent(svcs))
		adminGroup.DELETE("/sections/:id", handleDeleteSection(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  List event sections
// @Param    id  path  int  true  "Event ID"
// @Success  200  {array}  domain.TicketSection
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/sections [get]
func handleListEventSections(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		sections, err := svcs.Query.ListEventSections(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, sections, "public, max-age=15", true)
	}
}

// @Summary  Get section availability counters
// @Param    id  path  int  true  "Section ID"
// @Success  200  {object}  domain.SectionAvailability
// @Failure  404  {object}  ErrorResponse
// @Router   /sections/{id}/availability [get]
func handleSectionAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sectionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		availability, err := svcs.Query.SectionAvailability(c.Request.Context(), sectionID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 5s
		writeJSONWithCache(c, http.StatusOK, availability, "public, max-age=5", true)
	}
}

// @Summary  Create booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Booking
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "sold out / not enough seats / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID, ok := requesterID(c)
		if !ok {
			return
		}
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(reqID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		b, err := svcs.Booking.CreateBooking(
			c.Request.Context(),
			reqID,
			req.EventID,
			req.SectionID,
			req.Tickets,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if errors.Is(err, booking.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: err.Error()},
				)
				return
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" && idem != nil {
			payload, _ := json.Marshal(b)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(payload))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, b)
	}
}

// @Summary  List my bookings
// @Success  200 {array} domain.Booking
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID, ok := requesterID(c)
		if !ok {
			return
		}
		bookings, err := svcs.Query.ListBookings(c.Request.Context(), reqID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

// @Summary  Get booking by code
// @Param    code  path  string  true  "Booking code"
// @Success  200 {object} domain.Booking
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/code/{code} [get]
func handleGetBookingByCode(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		b, err := svcs.Query.GetBookingByCode(c.Request.Context(), code)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel confirmed booking
// @Param    id  path  int  true  "Booking ID"
// @Success  200 {object} map[string]string
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "not cancellable in current state"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID, ok := requesterID(c)
		if !ok {
			return
		}
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Booking.CancelBooking(c.Request.Context(), bookingID, reqID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}

// @Summary  Begin payment for booking
// @Param    id  path  int  true  "Booking ID"
// @Success  201 {object} BeginPaymentResponse
// @Failure  409 {object} ErrorResponse "already paid / not awaiting payment"
// @Failure  503 {object} ErrorResponse "gateway unavailable"
// @Router   /bookings/{id}/payment [post]
func handleBeginPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		intent, err := svcs.Payment.BeginPayment(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, BeginPaymentResponse{
			IntentID:     intent.ID,
			ClientSecret: intent.ClientSecret,
			Status:       intent.Status,
		})
	}
}

// @Summary  Confirm payment for booking
// @Param    id   path  int  true  "Booking ID"
// @Param    req  body  ConfirmPaymentRequest  false  "payload"
// @Success  200 {object} map[string]string
// @Failure  402 {object} ErrorResponse "payment not successful"
// @Failure  409 {object} ErrorResponse "intent mismatch"
// @Router   /bookings/{id}/payment/confirm [post]
func handleConfirmPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ConfirmPaymentRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		if err := svcs.Payment.ConfirmPayment(c.Request.Context(), bookingID, req.IntentID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
	}
}

// @Summary  Record failed payment attempt
// @Param    id   path  int  true  "Booking ID"
// @Param    req  body  ConfirmPaymentRequest  false  "payload"
// @Success  200 {object} map[string]string
// @Failure  409 {object} ErrorResponse "already paid / intent mismatch"
// @Router   /bookings/{id}/payment/failed [post]
func handlePaymentFailed(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ConfirmPaymentRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		if err := svcs.Payment.HandlePaymentFailed(c.Request.Context(), bookingID, req.IntentID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "failed"})
	}
}

// @Summary  Create event
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} CreateEventResponse
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		id, err := svcs.Admin.CreateEvent(c.Request.Context(), &domain.Event{
			Title:    req.Title,
			Venue:    req.Venue,
			StartsAt: starts,
			Status:   domain.EventStatus(req.Status),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateEventResponse{EventID: id})
	}
}

// @Summary  Create ticket section
// @Param    id  path  int  true  "Event ID"
// @Param    req body  CreateSectionRequest true "payload"
// @Success  201 {object} CreateSectionResponse
// @Router   /admin/events/{id}/sections [post]
func handleCreateSection(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateSectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		price, err := decimal.NewFromString(req.PricePerTicket)
		if err != nil {
			badRequest(c, "invalid price_per_ticket")
			return
		}
		id, err := svcs.Admin.CreateSection(c.Request.Context(), &domain.TicketSection{
			EventID:        eventID,
			Name:           req.Name,
			TotalSeats:     req.TotalSeats,
			PricePerTicket: price,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateSectionResponse{SectionID: id})
	}
}

// @Summary  Delete event
// @Param    id  path  int  true  "Event ID"
// @Success  204
// @Failure  409 {object} ErrorResponse "bookings exist"
// @Router   /admin/events/{id} [delete]
func handleDeleteEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteEvent(c.Request.Context(), eventID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Delete ticket section
// @Param    id  path  int  true  "Section ID"
// @Success  204
// @Failure  409 {object} ErrorResponse "bookings exist"
// @Router   /admin/sections/{id} [delete]
func handleDeleteSection(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sectionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteSection(c.Request.Context(), sectionID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var insufficient *inventory.InsufficientSeatsError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: insufficient.Error()})
		return
	}

	switch {
	// inventory service
	case errors.Is(err, inventory.ErrSoldOut):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "section is sold out"})
		return
	case errors.Is(err, inventory.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "section not found"})
		return
	case errors.Is(err, inventory.ErrInvalidCount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid seat count"})
		return
	// booking service
	case errors.Is(err, booking.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, booking.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "section not found"})
		return
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, booking.ErrNotBookable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event is not open for booking"})
		return
	case errors.Is(err, booking.ErrInvalidTicketCount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid ticket count"})
		return
	case errors.Is(err, booking.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "booking belongs to another requester"})
		return
	case errors.Is(err, booking.ErrInvalidState):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "operation not allowed in current state"})
		return
	// payment service
	case errors.Is(err, payment.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, payment.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is already paid"})
		return
	case errors.Is(err, payment.ErrInvalidState):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not awaiting payment"})
		return
	case errors.Is(err, payment.ErrIntentMismatch):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "payment reference does not match booking"})
		return
	case errors.Is(err, payment.ErrPaymentFailed):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "payment was not successful"})
		return
	case errors.Is(err, payment.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "payment gateway unavailable"})
		return
	// query service
	case errors.Is(err, query.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, query.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "section not found"})
		return
	case errors.Is(err, query.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	// admin service
	case errors.Is(err, admin.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, admin.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "section not found"})
		return
	case errors.Is(err, admin.ErrHasBookings):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "bookings reference this record"})
		return
	case errors.Is(err, admin.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid input"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
