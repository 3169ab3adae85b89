package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matchtix/matchtix/internal/domain"
	"github.com/matchtix/matchtix/internal/repository"
)

type AdminRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AdminRepo) With(db DB) *AdminRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AdminRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AdminRepo) CreateEvent(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "postgres.AdminRepo.CreateEvent"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO events(title, venue, starts_at, status)
       	 VALUES ($1, $2, $3, $4)
     	 RETURNING id`,
		e.Title, e.Venue, e.StartsAt, e.Status,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *AdminRepo) CreateSection(ctx context.Context, s *domain.TicketSection) (int64, error) {
	const op = "postgres.AdminRepo.CreateSection"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO ticket_sections(event_id, name, total_seats, available_seats, price_per_ticket)
       	 VALUES ($1, $2, $3, $3, $4)
     	 RETURNING id`,
		s.EventID, s.Name, s.TotalSeats, s.PricePerTicket,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// HasBookings reports whether any booking references the event.
func (r *AdminRepo) HasBookings(ctx context.Context, eventID int64) (bool, error) {
	const op = "postgres.AdminRepo.HasBookings"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE event_id = $1)`,
		eventID,
	).Scan(&exists); err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

// SectionHasBookings reports whether any booking references the section.
func (r *AdminRepo) SectionHasBookings(ctx context.Context, sectionID int64) (bool, error) {
	const op = "postgres.AdminRepo.SectionHasBookings"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE section_id = $1)`,
		sectionID,
	).Scan(&exists); err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

func (r *AdminRepo) DeleteEvent(ctx context.Context, id int64) error {
	const op = "postgres.AdminRepo.DeleteEvent"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`DELETE FROM ticket_sections WHERE event_id = $1`, id,
	); err != nil {
		return wrapDBErr(op, err)
	}

	tag, err := db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *AdminRepo) DeleteSection(ctx context.Context, id int64) error {
	const op = "postgres.AdminRepo.DeleteSection"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM ticket_sections WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
