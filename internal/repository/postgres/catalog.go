package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matchtix/matchtix/internal/domain"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetEvent retrieves an event by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the event is not found.
func (r *CatalogRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.CatalogRepo.GetEvent"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT id, title, venue, starts_at, status, created_at
       	 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.Venue, &e.StartsAt, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &e, nil
}

// GetSection retrieves a ticket section by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the section is not found.
func (r *CatalogRepo) GetSection(ctx context.Context, id int64) (*domain.TicketSection, error) {
	const op = "postgres.CatalogRepo.GetSection"

	db := r.handle()

	var s domain.TicketSection
	err := db.QueryRow(ctx,
		`SELECT id, event_id, name, total_seats, available_seats, price_per_ticket
       	 FROM ticket_sections WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.EventID, &s.Name, &s.TotalSeats, &s.AvailableSeats, &s.PricePerTicket)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// ListSections lists the ticket sections of an event.
func (r *CatalogRepo) ListSections(ctx context.Context, eventID int64) ([]domain.TicketSection, error) {
	const op = "postgres.CatalogRepo.ListSections"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, name, total_seats, available_seats, price_per_ticket
     	 FROM ticket_sections
     	 WHERE event_id = $1
     	 ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.TicketSection
	for rows.Next() {
		var s domain.TicketSection
		if err := rows.Scan(
			&s.ID, &s.EventID, &s.Name, &s.TotalSeats, &s.AvailableSeats, &s.PricePerTicket,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
