package repository

import (
    "context"
    "crypto/rand"
    "database/sql"
    "encoding/hex"
    "errors"
    "time"

    "github.com/iliyamo/event-seat-reservation/internal/model"
)

// ReservationRepo provides data access to the reservations table, the
// durable ledger of seat claims.  Rows are inserted by a successful
// acquire and mutated only by confirm/cancel/reclaim; they are never
// deleted, forming the audit trail that links holds to downstream
// bookings.  All timestamp fields are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// randomToken generates a random hexadecimal string of n*2 characters.
// It populates the hold_token column; crypto/rand keeps tokens
// unguessable so a hold cannot be confirmed or cancelled by guessing.
func randomToken(n int) (string, error) {
    b := make([]byte, n)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}

// NewHoldToken returns a fresh 64-character hold token.
func NewHoldToken() (string, error) { return randomToken(32) }

// ActiveQuantityTx sums the quantities of every reservation currently
// consuming capacity on the seat: all BOOKED rows plus PENDING rows
// whose expiry is still in the future.  Expired PENDING rows count as
// free by predicate even when the sweep has not rewritten them yet.
// Callers must hold the seat row lock so the sum cannot move between
// this read and the insert that follows.
func (r *ReservationRepo) ActiveQuantityTx(ctx context.Context, tx *sql.Tx, seatID uint64) (int, error) {
    const q = `SELECT COALESCE(SUM(quantity), 0)
               FROM reservations
               WHERE seat_id = ?
                 AND (status = 'BOOKED'
                      OR (status = 'PENDING' AND expires_at > UTC_TIMESTAMP()))`
    var occupied int
    if err := tx.QueryRowContext(ctx, q, seatID).Scan(&occupied); err != nil {
        return 0, err
    }
    return occupied, nil
}

// CreateTx inserts a new PENDING reservation within the scope of an
// existing transaction and populates the generated ID and timestamps
// on the provided record.  The caller must commit or roll back the
// transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations (event_id, seat_id, user_id, quantity, status, hold_token, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        res.EventID, res.SeatID, res.UserID, res.Quantity, res.Status,
        res.HoldToken, res.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    // Query back the full row to populate timestamps and defaults.
    const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// GetForUpdateTx loads a reservation row by ID under a blocking
// exclusive lock.  By the time a reservation exists it uniquely
// identifies its seat, so no new acquirer can race for the same row
// and a short wait is acceptable; confirm and cancel both use this
// lock for their brief read-modify-write.  ErrReservationNotFound is
// returned when the ID is unknown.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Reservation, error) {
    const q = `SELECT r.id, r.event_id, r.seat_id, s.seat_label, r.user_id, r.quantity,
                      r.status, r.hold_token, r.booking_id, r.expires_at, r.created_at, r.updated_at
               FROM reservations r
               JOIN seats s ON s.id = r.seat_id
               WHERE r.id = ?
               FOR UPDATE`
    return scanReservation(tx.QueryRowContext(ctx, q, reservationID))
}

// GetByID loads a reservation without locking, for read-only callers.
func (r *ReservationRepo) GetByID(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    const q = `SELECT r.id, r.event_id, r.seat_id, s.seat_label, r.user_id, r.quantity,
                      r.status, r.hold_token, r.booking_id, r.expires_at, r.created_at, r.updated_at
               FROM reservations r
               JOIN seats s ON s.id = r.seat_id
               WHERE r.id = ?`
    return scanReservation(r.db.QueryRowContext(ctx, q, reservationID))
}

// rowScanner is satisfied by *sql.Row and lets scanReservation serve
// both locked and unlocked reads.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
    var res model.Reservation
    var bookingID sql.NullInt64
    err := row.Scan(
        &res.ID, &res.EventID, &res.SeatID, &res.SeatLabel, &res.UserID, &res.Quantity,
        &res.Status, &res.HoldToken, &bookingID, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrReservationNotFound
        }
        return nil, err
    }
    if bookingID.Valid {
        id := uint64(bookingID.Int64)
        res.BookingID = &id
    }
    return &res, nil
}

// SetStatusTx rewrites a reservation's status, optionally stamping the
// downstream booking ID, within the provided transaction.  Callers
// must have validated the transition under the row lock first; this
// method does not re-check it.
func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, reservationID uint64, status string, bookingID *uint64) error {
    if bookingID != nil {
        const q = `UPDATE reservations SET status = ?, booking_id = ? WHERE id = ?`
        _, err := tx.ExecContext(ctx, q, status, *bookingID, reservationID)
        return err
    }
    const q = `UPDATE reservations SET status = ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, status, reservationID)
    return err
}

// ReclaimExpired sweeps every PENDING reservation whose expiry has
// passed and rewrites it to EXPIRED, returning how many rows changed.
// eventID scopes the sweep to one event when non-zero.  The statement
// is a single UPDATE guarded by the status predicate, so it is safe to
// run concurrently with acquires and confirms: any row a concurrent
// confirm finalizes first no longer matches the WHERE clause.
func (r *ReservationRepo) ReclaimExpired(ctx context.Context, eventID uint64) (int64, error) {
    q := `UPDATE reservations
          SET status = 'EXPIRED'
          WHERE status = 'PENDING' AND expires_at < UTC_TIMESTAMP()`
    args := []interface{}{}
    if eventID != 0 {
        q += ` AND event_id = ?`
        args = append(args, eventID)
    }
    result, err := r.db.ExecContext(ctx, q, args...)
    if err != nil {
        return 0, err
    }
    return result.RowsAffected()
}

// AvailabilityByEvent assembles the seat map for an event: every seat
// with its derived status, remaining capacity and the earliest active
// hold expiry.  The active-reservation predicate is identical to the
// one ActiveQuantityTx uses, so a hold past its expiry reads as free
// here before the sweep touches it.
func (r *ReservationRepo) AvailabilityByEvent(ctx context.Context, seats []model.Seat) ([]model.SeatAvailability, error) {
    if len(seats) == 0 {
        return []model.SeatAvailability{}, nil
    }
    eventID := seats[0].EventID
    const q = `SELECT seat_id, status, quantity, expires_at
               FROM reservations
               WHERE event_id = ?
                 AND (status = 'BOOKED'
                      OR (status = 'PENDING' AND expires_at > UTC_TIMESTAMP()))`
    rows, err := r.db.QueryContext(ctx, q, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    active := make(map[uint64][]model.Reservation)
    for rows.Next() {
        var a model.Reservation
        if err := rows.Scan(&a.SeatID, &a.Status, &a.Quantity, &a.ExpiresAt); err != nil {
            return nil, err
        }
        active[a.SeatID] = append(active[a.SeatID], a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }

    now := time.Now().UTC()
    out := make([]model.SeatAvailability, 0, len(seats))
    for _, s := range seats {
        out = append(out, model.SummarizeSeat(s, active[s.ID], now))
    }
    return out, nil
}
