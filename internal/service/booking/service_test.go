package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
	"github.com/matchtix/matchtix/internal/service/booking"
	"github.com/matchtix/matchtix/internal/service/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	events   map[int64]*domain.Event
	sections map[int64]*domain.TicketSection
}

func (f *fakeCatalog) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeCatalog) GetSection(_ context.Context, id int64) (*domain.TicketSection, error) {
	s, ok := f.sections[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type fakeBookingStore struct {
	mu        sync.Mutex
	nextID    int64
	bookings  map[int64]*domain.Booking
	createErr error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{nextID: 1, bookings: make(map[int64]*domain.Booking)}
}

func (f *fakeBookingStore) Create(_ context.Context, b *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}

	b.ID = f.nextID
	b.BookedAt = time.Now()
	f.nextID++

	cp := *b
	f.bookings[b.ID] = &cp

	return nil
}

func (f *fakeBookingStore) Get(_ context.Context, id int64) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, id int64, from, to domain.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}

	if b.Status != from {
		return repository.ErrConflict
	}

	b.Status = to

	return nil
}

func (f *fakeBookingStore) ListExpiredPending(_ context.Context, cutoff time.Time, limit int) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Booking
	for _, b := range f.bookings {
		if b.Status == domain.BookingPendingPayment && b.BookedAt.Before(cutoff) {
			out = append(out, *b)
		}
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

type fakeInventory struct {
	mu       sync.Mutex
	seats    map[int64]int
	reserves int
	releases int
}

func (f *fakeInventory) Reserve(_ context.Context, sectionID int64, count int) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seats[sectionID] < count {
		return nil, inventory.ErrSoldOut
	}

	f.seats[sectionID] -= count
	f.reserves++

	return &domain.Reservation{SectionID: sectionID, Seats: count}, nil
}

func (f *fakeInventory) Release(_ context.Context, sectionID int64, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seats[sectionID] += count
	f.releases++

	return nil
}

type fakePayments struct {
	cancelled []string
}

func (f *fakePayments) CancelPayment(_ context.Context, b *domain.Booking) error {
	f.cancelled = append(f.cancelled, b.Code)
	return nil
}

func fixtures() (*fakeCatalog, *fakeBookingStore, *fakeInventory) {
	catalog := &fakeCatalog{
		events: map[int64]*domain.Event{
			1: {
				ID:       1,
				Title:    "City Derby",
				Venue:    "National Stadium",
				StartsAt: time.Now().Add(48 * time.Hour),
				Status:   domain.EventUpcoming,
			},
			2: {
				ID:       2,
				Title:    "Finished Final",
				Venue:    "National Stadium",
				StartsAt: time.Now().Add(-2 * time.Hour),
				Status:   domain.EventCompleted,
			},
		},
		sections: map[int64]*domain.TicketSection{
			10: {
				ID:             10,
				EventID:        1,
				Name:           "East Stand",
				TotalSeats:     100,
				AvailableSeats: 100,
				PricePerTicket: decimal.RequireFromString("500.00"),
			},
			20: {
				ID:             20,
				EventID:        2,
				Name:           "West Stand",
				TotalSeats:     50,
				AvailableSeats: 50,
				PricePerTicket: decimal.RequireFromString("300.00"),
			},
		},
	}

	store := newFakeBookingStore()
	inv := &fakeInventory{seats: map[int64]int{10: 100, 20: 50}}

	return catalog, store, inv
}

func newService(catalog *fakeCatalog, store *fakeBookingStore, inv *fakeInventory, pay booking.PaymentCanceller, cfg booking.Config) *booking.Service {
	return booking.New(catalog, store, inv, pay, nil, nil, nil, nil, cfg)
}

func TestCreateBooking(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	b, err := svc.CreateBooking(context.Background(), 7, 1, 10, 3, "")
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.NotZero(t, b.ID)
	assert.NotEmpty(t, b.Code)
	assert.Equal(t, int64(7), b.RequesterID)
	assert.Equal(t, domain.BookingPendingPayment, b.Status)
	assert.Equal(t, domain.PaymentPending, b.PaymentStatus)
	assert.True(t, b.TotalPrice.Equal(decimal.RequireFromString("1500.00")), "price frozen at 3 x 500.00, got %s", b.TotalPrice)
	assert.Equal(t, 97, inv.seats[10])
}

func TestCreateBookingPriceFrozenAtCreation(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	b, err := svc.CreateBooking(context.Background(), 7, 1, 10, 2, "")
	require.NoError(t, err)

	// a later price edit must not touch the stored total
	catalog.sections[10].PricePerTicket = decimal.RequireFromString("900.00")

	stored, err := store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("1000.00")))
}

func TestCreateBookingEventNotFound(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	_, err := svc.CreateBooking(context.Background(), 7, 99, 10, 1, "")
	require.ErrorIs(t, err, booking.ErrEventNotFound)
}

func TestCreateBookingSectionNotFound(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	_, err := svc.CreateBooking(context.Background(), 7, 1, 99, 1, "")
	require.ErrorIs(t, err, booking.ErrSectionNotFound)
}

func TestCreateBookingSectionFromOtherEvent(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	_, err := svc.CreateBooking(context.Background(), 7, 1, 20, 1, "")
	require.ErrorIs(t, err, booking.ErrSectionNotFound)
}

func TestCreateBookingNotBookable(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	_, err := svc.CreateBooking(context.Background(), 7, 2, 20, 1, "")
	require.ErrorIs(t, err, booking.ErrNotBookable)
	assert.Equal(t, 50, inv.seats[20], "no seats consumed for unbookable event")
}

func TestCreateBookingInvalidTicketCount(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	for _, tickets := range []int{0, -2} {
		_, err := svc.CreateBooking(context.Background(), 7, 1, 10, tickets, "")
		require.ErrorIs(t, err, booking.ErrInvalidTicketCount)
	}

	assert.Equal(t, 0, inv.reserves)
}

func TestCreateBookingSoldOutPropagated(t *testing.T) {
	catalog, store, inv := fixtures()
	inv.seats[10] = 0
	svc := newService(catalog, store, inv, nil, booking.Config{})

	_, err := svc.CreateBooking(context.Background(), 7, 1, 10, 1, "")
	require.ErrorIs(t, err, inventory.ErrSoldOut)
}

func TestCreateBookingCompensatesReservationOnPersistFailure(t *testing.T) {
	catalog, store, inv := fixtures()
	store.createErr = errors.New("insert failed")
	svc := newService(catalog, store, inv, nil, booking.Config{})

	_, err := svc.CreateBooking(context.Background(), 7, 1, 10, 5, "")
	require.Error(t, err)

	assert.Equal(t, 1, inv.reserves)
	assert.Equal(t, 1, inv.releases, "failed persist must release the reserved seats")
	assert.Equal(t, 100, inv.seats[10])
}

func TestCancelBooking(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	b, err := svc.CreateBooking(context.Background(), 7, 1, 10, 4, "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(context.Background(), b.ID, domain.BookingPendingPayment, domain.BookingConfirmed))

	require.NoError(t, svc.CancelBooking(context.Background(), b.ID, 7))

	stored, err := store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, stored.Status)
	assert.Equal(t, 100, inv.seats[10])
}

func TestCancelBookingTwiceReleasesOnce(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	b, err := svc.CreateBooking(context.Background(), 7, 1, 10, 4, "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(context.Background(), b.ID, domain.BookingPendingPayment, domain.BookingConfirmed))

	require.NoError(t, svc.CancelBooking(context.Background(), b.ID, 7))

	err = svc.CancelBooking(context.Background(), b.ID, 7)
	require.ErrorIs(t, err, booking.ErrInvalidState)

	assert.Equal(t, 1, inv.releases, "seats must come back exactly once")
	assert.Equal(t, 100, inv.seats[10])
}

func TestCancelBookingForbidden(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	b, err := svc.CreateBooking(context.Background(), 7, 1, 10, 1, "")
	require.NoError(t, err)

	err = svc.CancelBooking(context.Background(), b.ID, 8)
	require.ErrorIs(t, err, booking.ErrForbidden)
}

func TestCancelBookingNotFound(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	err := svc.CancelBooking(context.Background(), 404, 7)
	require.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestCancelBookingPendingNotCancellable(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{})

	b, err := svc.CreateBooking(context.Background(), 7, 1, 10, 1, "")
	require.NoError(t, err)

	err = svc.CancelBooking(context.Background(), b.ID, 7)
	require.ErrorIs(t, err, booking.ErrInvalidState)
	assert.Equal(t, 0, inv.releases)
}

func TestExpireStale(t *testing.T) {
	catalog, store, inv := fixtures()
	pay := &fakePayments{}
	svc := newService(catalog, store, inv, pay, booking.Config{HoldTTL: 10 * time.Minute})

	stale, err := svc.CreateBooking(context.Background(), 7, 1, 10, 3, "")
	require.NoError(t, err)
	fresh, err := svc.CreateBooking(context.Background(), 8, 1, 10, 2, "")
	require.NoError(t, err)

	store.mu.Lock()
	store.bookings[stale.ID].BookedAt = time.Now().Add(-30 * time.Minute)
	store.bookings[stale.ID].PaymentIntentID = "pi_123"
	store.mu.Unlock()

	reclaimed, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	expired, err := store.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, expired.Status)

	kept, err := store.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPendingPayment, kept.Status)

	assert.Equal(t, 98, inv.seats[10], "only the stale booking's seats return")
	assert.Equal(t, []string{stale.Code}, pay.cancelled)
}

func TestExpireStaleSkipsConfirmed(t *testing.T) {
	catalog, store, inv := fixtures()
	svc := newService(catalog, store, inv, nil, booking.Config{HoldTTL: 10 * time.Minute})

	b, err := svc.CreateBooking(context.Background(), 7, 1, 10, 2, "")
	require.NoError(t, err)

	store.mu.Lock()
	store.bookings[b.ID].BookedAt = time.Now().Add(-30 * time.Minute)
	store.bookings[b.ID].Status = domain.BookingConfirmed
	store.mu.Unlock()

	reclaimed, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reclaimed)
	assert.Equal(t, 0, inv.releases)
}
