package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
	"github.com/matchtix/matchtix/internal/service/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	bookings      map[int64]*domain.Booking
	markPaidCalls int
}

func newFakeStore(bookings ...*domain.Booking) *fakeStore {
	m := make(map[int64]*domain.Booking, len(bookings))
	for _, b := range bookings {
		m[b.ID] = b
	}
	return &fakeStore{bookings: m}
}

func (f *fakeStore) Get(_ context.Context, id int64) (*domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) SetPaymentIntent(_ context.Context, id int64, intentID string) error {
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.PaymentIntentID = intentID
	b.PaymentStatus = domain.PaymentProcessing
	return nil
}

func (f *fakeStore) MarkPaid(_ context.Context, id int64, paidAt time.Time) error {
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.PaymentStatus == domain.PaymentCompleted {
		return nil
	}
	f.markPaidCalls++
	b.PaymentStatus = domain.PaymentCompleted
	b.Status = domain.BookingConfirmed
	if b.PaidAt == nil {
		b.PaidAt = &paidAt
	}
	return nil
}

func (f *fakeStore) MarkPaymentFailed(_ context.Context, id int64) error {
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.PaymentStatus == domain.PaymentCompleted {
		return nil
	}
	b.PaymentStatus = domain.PaymentFailed
	return nil
}

type fakeGateway struct {
	createErr      error
	retrieveErr    error
	retrieveStatus string
	created        []payment.IntentRequest
	retrieved      []string
	cancelled      []string
	sawDeadline    bool
}

func (f *fakeGateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	_, f.sawDeadline = ctx.Deadline()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &payment.Intent{ID: "pi_test_1", ClientSecret: "secret_1", Status: "requires_payment_method"}, nil
}

func (f *fakeGateway) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	_, f.sawDeadline = ctx.Deadline()
	f.retrieved = append(f.retrieved, id)
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	status := f.retrieveStatus
	if status == "" {
		status = payment.IntentSucceeded
	}
	return &payment.Intent{ID: id, Status: status}, nil
}

func (f *fakeGateway) CancelIntent(ctx context.Context, id string) error {
	_, f.sawDeadline = ctx.Deadline()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func pendingBooking() *domain.Booking {
	return &domain.Booking{
		ID:            1,
		Code:          "AB12CD34",
		RequesterID:   7,
		EventID:       1,
		SectionID:     10,
		Tickets:       3,
		TotalPrice:    decimal.RequireFromString("1500.00"),
		Status:        domain.BookingPendingPayment,
		PaymentStatus: domain.PaymentPending,
		BookedAt:      time.Now(),
	}
}

func TestBeginPayment(t *testing.T) {
	store := newFakeStore(pendingBooking())
	gw := &fakeGateway{}
	svc := payment.New(store, gw, nil, payment.Config{Currency: "inr"})

	intent, err := svc.BeginPayment(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, intent)

	assert.Equal(t, "pi_test_1", intent.ID)
	assert.Equal(t, "secret_1", intent.ClientSecret)

	require.Len(t, gw.created, 1)
	req := gw.created[0]
	assert.Equal(t, int64(150000), req.AmountMinorUnits, "1500.00 in paise")
	assert.Equal(t, "inr", req.Currency)
	assert.Equal(t, "1", req.Metadata["booking_id"])
	assert.Equal(t, "AB12CD34", req.Metadata["booking_code"])
	assert.True(t, gw.sawDeadline, "gateway call must carry a deadline")

	b, _ := store.Get(context.Background(), 1)
	assert.Equal(t, "pi_test_1", b.PaymentIntentID)
	assert.Equal(t, domain.PaymentProcessing, b.PaymentStatus)
}

func TestBeginPaymentBookingNotFound(t *testing.T) {
	svc := payment.New(newFakeStore(), &fakeGateway{}, nil, payment.Config{})

	_, err := svc.BeginPayment(context.Background(), 404)
	require.ErrorIs(t, err, payment.ErrBookingNotFound)
}

func TestBeginPaymentAlreadyPaid(t *testing.T) {
	b := pendingBooking()
	b.Status = domain.BookingConfirmed
	b.PaymentStatus = domain.PaymentCompleted
	svc := payment.New(newFakeStore(b), &fakeGateway{}, nil, payment.Config{})

	_, err := svc.BeginPayment(context.Background(), 1)
	require.ErrorIs(t, err, payment.ErrAlreadyPaid)
}

func TestBeginPaymentInvalidState(t *testing.T) {
	b := pendingBooking()
	b.Status = domain.BookingCancelled
	svc := payment.New(newFakeStore(b), &fakeGateway{}, nil, payment.Config{})

	_, err := svc.BeginPayment(context.Background(), 1)
	require.ErrorIs(t, err, payment.ErrInvalidState)
}

func TestBeginPaymentGatewayDown(t *testing.T) {
	store := newFakeStore(pendingBooking())
	gw := &fakeGateway{createErr: errors.New("connection refused")}
	svc := payment.New(store, gw, nil, payment.Config{})

	_, err := svc.BeginPayment(context.Background(), 1)
	require.ErrorIs(t, err, payment.ErrGatewayUnavailable)

	// the booking keeps its seats and stays payable
	b, _ := store.Get(context.Background(), 1)
	assert.Equal(t, domain.BookingPendingPayment, b.Status)
	assert.Equal(t, domain.PaymentPending, b.PaymentStatus)
	assert.Empty(t, b.PaymentIntentID)
}

func TestBeginPaymentDemoModeFallback(t *testing.T) {
	store := newFakeStore(pendingBooking())
	gw := &fakeGateway{createErr: errors.New("connection refused")}
	svc := payment.New(store, gw, nil, payment.Config{DemoMode: true})

	intent, err := svc.BeginPayment(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "demo-AB12CD34", intent.ID)
	assert.Equal(t, payment.IntentSucceeded, intent.Status)

	b, _ := store.Get(context.Background(), 1)
	assert.Equal(t, "demo-AB12CD34", b.PaymentIntentID)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	assert.Equal(t, domain.PaymentCompleted, b.PaymentStatus)
	require.NotNil(t, b.PaidAt)
}

func TestConfirmPayment(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentProcessing
	store := newFakeStore(b)
	gw := &fakeGateway{}
	svc := payment.New(store, gw, nil, payment.Config{})

	require.NoError(t, svc.ConfirmPayment(context.Background(), 1, "pi_test_1"))

	got, _ := store.Get(context.Background(), 1)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, domain.PaymentCompleted, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentProcessing
	store := newFakeStore(b)
	svc := payment.New(store, &fakeGateway{}, nil, payment.Config{})

	require.NoError(t, svc.ConfirmPayment(context.Background(), 1, "pi_test_1"))
	first, _ := store.Get(context.Background(), 1)
	paidAt := *first.PaidAt

	require.NoError(t, svc.ConfirmPayment(context.Background(), 1, "pi_test_1"))
	second, _ := store.Get(context.Background(), 1)

	assert.Equal(t, 1, store.markPaidCalls)
	assert.Equal(t, paidAt, *second.PaidAt, "paidAt must not move on repeat confirmation")
}

func TestConfirmPaymentIntentMismatch(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	svc := payment.New(newFakeStore(b), &fakeGateway{}, nil, payment.Config{})

	err := svc.ConfirmPayment(context.Background(), 1, "pi_other")
	require.ErrorIs(t, err, payment.ErrIntentMismatch)
}

func TestConfirmPaymentNotSucceeded(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentProcessing
	store := newFakeStore(b)
	gw := &fakeGateway{retrieveStatus: "requires_payment_method"}
	svc := payment.New(store, gw, nil, payment.Config{})

	err := svc.ConfirmPayment(context.Background(), 1, "pi_test_1")
	require.ErrorIs(t, err, payment.ErrPaymentFailed)

	got, _ := store.Get(context.Background(), 1)
	assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, domain.BookingPendingPayment, got.Status)
}

func TestConfirmPaymentGatewayDown(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentProcessing
	store := newFakeStore(b)
	gw := &fakeGateway{retrieveErr: errors.New("timeout")}
	svc := payment.New(store, gw, nil, payment.Config{})

	err := svc.ConfirmPayment(context.Background(), 1, "pi_test_1")
	require.ErrorIs(t, err, payment.ErrGatewayUnavailable)

	got, _ := store.Get(context.Background(), 1)
	assert.NotEqual(t, domain.PaymentCompleted, got.PaymentStatus)
}

func TestConfirmPaymentRequiresStoredIntent(t *testing.T) {
	// no BeginPayment ever ran for this booking; a succeeded intent
	// opened for some other booking must not settle it
	store := newFakeStore(pendingBooking())
	gw := &fakeGateway{retrieveStatus: payment.IntentSucceeded}
	svc := payment.New(store, gw, nil, payment.Config{})

	err := svc.ConfirmPayment(context.Background(), 1, "pi_someone_elses")
	require.ErrorIs(t, err, payment.ErrInvalidState)

	got, _ := store.Get(context.Background(), 1)
	assert.Equal(t, domain.BookingPendingPayment, got.Status)
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus)
	assert.Nil(t, got.PaidAt)
	assert.Empty(t, gw.retrieved, "gateway must not be consulted without a stored intent")
}

func TestConfirmPaymentUsesStoredIntentReference(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentProcessing
	store := newFakeStore(b)
	gw := &fakeGateway{}
	svc := payment.New(store, gw, nil, payment.Config{})

	require.NoError(t, svc.ConfirmPayment(context.Background(), 1, ""))
	assert.Equal(t, []string{"pi_test_1"}, gw.retrieved)
}

func TestConfirmPaymentCancelledBookingNotResurrected(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentProcessing
	b.Status = domain.BookingCancelled
	store := newFakeStore(b)
	svc := payment.New(store, &fakeGateway{}, nil, payment.Config{})

	err := svc.ConfirmPayment(context.Background(), 1, "pi_test_1")
	require.ErrorIs(t, err, payment.ErrInvalidState)

	got, _ := store.Get(context.Background(), 1)
	assert.Equal(t, domain.BookingCancelled, got.Status)
	assert.NotEqual(t, domain.PaymentCompleted, got.PaymentStatus)
}

func TestConfirmPaymentBookingNotFound(t *testing.T) {
	svc := payment.New(newFakeStore(), &fakeGateway{}, nil, payment.Config{})

	err := svc.ConfirmPayment(context.Background(), 404, "pi_test_1")
	require.ErrorIs(t, err, payment.ErrBookingNotFound)
}

func TestHandlePaymentFailed(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentProcessing
	store := newFakeStore(b)
	svc := payment.New(store, &fakeGateway{}, nil, payment.Config{})

	require.NoError(t, svc.HandlePaymentFailed(context.Background(), 1, "pi_test_1"))

	got, _ := store.Get(context.Background(), 1)
	assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, domain.BookingPendingPayment, got.Status, "booking stays payable after a failed attempt")
}

func TestHandlePaymentFailedAlreadyPaid(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	b.PaymentStatus = domain.PaymentCompleted
	b.Status = domain.BookingConfirmed
	svc := payment.New(newFakeStore(b), &fakeGateway{}, nil, payment.Config{})

	err := svc.HandlePaymentFailed(context.Background(), 1, "pi_test_1")
	require.ErrorIs(t, err, payment.ErrAlreadyPaid)
}

func TestHandlePaymentFailedBeforeProcessing(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	store := newFakeStore(b)
	svc := payment.New(store, &fakeGateway{}, nil, payment.Config{})

	err := svc.HandlePaymentFailed(context.Background(), 1, "pi_test_1")
	require.ErrorIs(t, err, payment.ErrInvalidState)

	got, _ := store.Get(context.Background(), 1)
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus)
}

func TestHandlePaymentFailedIntentMismatch(t *testing.T) {
	b := pendingBooking()
	b.PaymentIntentID = "pi_test_1"
	svc := payment.New(newFakeStore(b), &fakeGateway{}, nil, payment.Config{})

	err := svc.HandlePaymentFailed(context.Background(), 1, "pi_other")
	require.ErrorIs(t, err, payment.ErrIntentMismatch)
}

func TestCancelPayment(t *testing.T) {
	gw := &fakeGateway{}
	svc := payment.New(newFakeStore(), gw, nil, payment.Config{})

	b := pendingBooking()
	require.NoError(t, svc.CancelPayment(context.Background(), b), "no intent means nothing to void")
	assert.Empty(t, gw.cancelled)

	b.PaymentIntentID = "pi_test_1"
	require.NoError(t, svc.CancelPayment(context.Background(), b))
	assert.Equal(t, []string{"pi_test_1"}, gw.cancelled)
	assert.True(t, gw.sawDeadline)
}
