package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matchtix/matchtix/internal/repository"
)

type InventoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Reserve decrements the section's available-seat counter by count.
// The guard lives in the UPDATE's WHERE clause, so the read and the
// write of the counter are a single atomic statement: two reservations
// racing for the last seat can never both succeed. The CTE reads the
// counter in the same statement, so a refused reservation reports the
// exact count the guard saw, not a later snapshot.
//
// Returns:
//   - int: seats remaining after the decrement.
//   - error: repository.ErrNotFound if the section does not exist.
//   - error: repository.ErrSoldOut if no seats are left.
//   - error: repository.ErrInsufficientSeats if fewer than count seats
//     are left; the returned int then carries the remaining count.
func (r *InventoryRepo) Reserve(ctx context.Context, sectionID int64, count int) (int, error) {
	const op = "postgres.InventoryRepo.Reserve"

	db := r.handle()

	var (
		before int
		after  *int
	)
	err := db.QueryRow(ctx,
		`WITH current AS (
	        SELECT available_seats FROM ticket_sections WHERE id = $1
	     ), updated AS (
	        UPDATE ticket_sections
	           SET available_seats = available_seats - $2
	         WHERE id = $1 AND available_seats >= $2
	        RETURNING available_seats
	     )
	     SELECT current.available_seats, updated.available_seats
	       FROM current LEFT JOIN updated ON TRUE`,
		sectionID, count,
	).Scan(&before, &after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}

		return 0, wrapDBErr(op, err)
	}

	if after != nil {
		return *after, nil
	}

	if before <= 0 {
		return 0, fmt.Errorf("%s:%w", op, repository.ErrSoldOut)
	}

	return before, fmt.Errorf("%s:%w", op, repository.ErrInsufficientSeats)
}

// Release adds count seats back to the section, clamped at total_seats
// so a double release can never push the counter past capacity.
func (r *InventoryRepo) Release(ctx context.Context, sectionID int64, count int) error {
	const op = "postgres.InventoryRepo.Release"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_sections
        	SET available_seats = LEAST(available_seats + $2, total_seats)
      	 WHERE id = $1`,
		sectionID, count,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
