package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/event-seat-reservation/internal/model"
)

// MySQL server error numbers surfaced by locking statements.  3572 is
// raised when FOR UPDATE NOWAIT cannot take the lock immediately; 1205
// is the ordinary lock wait timeout.  Both mean "a concurrent
// transaction holds the seat row right now" and map to ErrLockBusy.
const (
    mysqlErrNoWaitLock     = 3572
    mysqlErrLockWaitExceed = 1205
)

// SeatRepo provides read access to the seats table.  Seat rows are
// reference data owned by the seat-layout service; all this repository
// ever does is read them, with or without a row lock.  All timestamps
// are stored and compared in UTC.
type SeatRepo struct {
    db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *SeatRepo) DB() *sql.DB { return r.db }

// GetForUpdateNoWaitTx loads the seat row for (eventID, seatLabel) and
// takes an exclusive row lock without queuing.  The locked seat row is
// the critical section for every acquire on this seat key: holding it
// serializes the occupancy check and the PENDING insert that follows.
// When another transaction already holds the lock, the statement fails
// immediately and ErrLockBusy is returned instead of waiting, which
// bounds request latency under contention.  ErrSeatNotFound is
// returned when the designator does not exist for the event.
func (r *SeatRepo) GetForUpdateNoWaitTx(ctx context.Context, tx *sql.Tx, eventID uint64, seatLabel string) (*model.Seat, error) {
    const q = `SELECT id, event_id, seat_label, category, price_cents, capacity, created_at
               FROM seats
               WHERE event_id = ? AND seat_label = ?
               FOR UPDATE NOWAIT`
    var s model.Seat
    err := tx.QueryRowContext(ctx, q, eventID, seatLabel).Scan(
        &s.ID, &s.EventID, &s.SeatLabel, &s.Category, &s.PriceCents, &s.Capacity, &s.CreatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrSeatNotFound
        }
        var myErr *mysql.MySQLError
        if errors.As(err, &myErr) {
            if myErr.Number == mysqlErrNoWaitLock || myErr.Number == mysqlErrLockWaitExceed {
                return nil, ErrLockBusy
            }
        }
        return nil, err
    }
    return &s, nil
}

// ListByEvent returns every seat of an event ordered by label.  It is
// the base of the availability read path.  ErrEventNotFound is
// returned when the event has no seats at all, distinguishing "unknown
// event" from "event with nothing free".
func (r *SeatRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error) {
    const q = `SELECT id, event_id, seat_label, category, price_cents, capacity, created_at
               FROM seats
               WHERE event_id = ?
               ORDER BY seat_label`
    rows, err := r.db.QueryContext(ctx, q, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []model.Seat
    for rows.Next() {
        var s model.Seat
        if err := rows.Scan(&s.ID, &s.EventID, &s.SeatLabel, &s.Category, &s.PriceCents, &s.Capacity, &s.CreatedAt); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(seats) == 0 {
        return nil, ErrEventNotFound
    }
    return seats, nil
}

// CreateBulk inserts seat reference rows in one statement.  It exists
// for test fixtures and for seeding a layout snapshot; the production
// source of truth for seats is the layout service.  Passing an empty
// slice has no effect and returns nil.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
    if len(seats) == 0 {
        return nil
    }
    query := `INSERT INTO seats (event_id, seat_label, category, price_cents, capacity) VALUES `
    args := make([]interface{}, 0, len(seats)*5)
    for i, s := range seats {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?)"
        args = append(args, s.EventID, s.SeatLabel, s.Category, s.PriceCents, s.Capacity)
    }
    _, err := r.db.ExecContext(ctx, query, args...)
    return err
}
