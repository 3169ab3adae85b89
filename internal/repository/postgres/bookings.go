package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingColumns = `id, code, requester_id, event_id, section_id, tickets,
	total_price, status, payment_status, COALESCE(payment_intent_id, ''), booked_at, paid_at`

// Create persists a new booking and sets its generated ID and creation
// timestamp on b.
//
// Returns:
//   - error: repository.ErrConflict if the booking code is already taken.
func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	db := r.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO bookings
       		(code, requester_id, event_id, section_id, tickets, total_price, status, payment_status)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
     	 RETURNING id, booked_at`,
		b.Code, b.RequesterID, b.EventID, b.SectionID, b.Tickets, b.TotalPrice,
		b.Status, b.PaymentStatus,
	).Scan(&b.ID, &b.BookedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a booking by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id int64) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	db := r.handle()

	var b domain.Booking
	err := db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
		id,
	).Scan(
		&b.ID, &b.Code, &b.RequesterID, &b.EventID, &b.SectionID, &b.Tickets,
		&b.TotalPrice, &b.Status, &b.PaymentStatus, &b.PaymentIntentID,
		&b.BookedAt, &b.PaidAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

// GetByCode retrieves a booking by its opaque booking code.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetByCode"

	db := r.handle()

	var b domain.Booking
	err := db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE code = $1`,
		code,
	).Scan(
		&b.ID, &b.Code, &b.RequesterID, &b.EventID, &b.SectionID, &b.Tickets,
		&b.TotalPrice, &b.Status, &b.PaymentStatus, &b.PaymentIntentID,
		&b.BookedAt, &b.PaidAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

// ListByRequester lists a requester's bookings, most recent first.
func (r *BookingRepo) ListByRequester(ctx context.Context, requesterID int64) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByRequester"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+`
     	 FROM bookings
     	 WHERE requester_id = $1
     	 ORDER BY booked_at DESC`,
		requesterID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.Code, &b.RequesterID, &b.EventID, &b.SectionID, &b.Tickets,
			&b.TotalPrice, &b.Status, &b.PaymentStatus, &b.PaymentIntentID,
			&b.BookedAt, &b.PaidAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// UpdateStatus moves a booking from one status to another with the old
// status as a compare-and-set guard, so a lifecycle edge is taken at
// most once even under racing callers.
//
// Returns:
//   - error: repository.ErrConflict if the booking is no longer in the
//     expected status.
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) UpdateStatus(
	ctx context.Context,
	id int64,
	from, to domain.BookingStatus,
) error {
	const op = "postgres.BookingRepo.UpdateStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}

		if !exists {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}

		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	return nil
}

// SetPaymentIntent stores the external payment reference and marks the
// payment sub-state PROCESSING.
func (r *BookingRepo) SetPaymentIntent(ctx context.Context, id int64, intentID string) error {
	const op = "postgres.BookingRepo.SetPaymentIntent"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings
        	SET payment_intent_id = $2, payment_status = $3
      	 WHERE id = $1`,
		id, intentID, domain.PaymentProcessing,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// MarkPaid completes the payment: payment status COMPLETED, booking
// status CONFIRMED, paid_at set on the first call and never overwritten.
// Calling it again for an already-completed booking is a no-op.
func (r *BookingRepo) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	const op = "postgres.BookingRepo.MarkPaid"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings
        	SET payment_status = $2,
            	status = $3,
            	paid_at = COALESCE(paid_at, $4)
      	 WHERE id = $1 AND payment_status <> $2`,
		id, domain.PaymentCompleted, domain.BookingConfirmed, paidAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}

		if !exists {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
	}

	return nil
}

// MarkPaymentFailed flags the payment sub-state FAILED; the booking
// itself stays where it is so the payment can be retried.
func (r *BookingRepo) MarkPaymentFailed(ctx context.Context, id int64) error {
	const op = "postgres.BookingRepo.MarkPaymentFailed"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings
        	SET payment_status = $2
      	 WHERE id = $1 AND payment_status <> $3`,
		id, domain.PaymentFailed, domain.PaymentCompleted,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// ListExpiredPending returns bookings still awaiting payment whose hold
// started before the cutoff. Used by the reservation-expiry sweep.
func (r *BookingRepo) ListExpiredPending(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListExpiredPending"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+`
     	 FROM bookings
     	 WHERE status = $1 AND booked_at < $2
     	 ORDER BY booked_at
     	 LIMIT $3`,
		domain.BookingPendingPayment, cutoff, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.Code, &b.RequesterID, &b.EventID, &b.SectionID, &b.Tickets,
			&b.TotalPrice, &b.Status, &b.PaymentStatus, &b.PaymentIntentID,
			&b.BookedAt, &b.PaidAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
