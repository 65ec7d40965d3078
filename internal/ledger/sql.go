// Package ledger implements the seat inventory ledger: the
// authoritative, race-free answer to "is this seat available right
// now" and the atomic state transitions that move a claim through
// PENDING, BOOKED, CANCELLED and EXPIRED.  Correctness comes from the
// storage layer, not from in-process synchronization, so multiple
// service instances behind a load balancer stay consistent.  Each
// operation is one transaction: begin, operate, commit on success and
// roll back on any error path.
package ledger

import (
    "context"
    "database/sql"
    "fmt"
    "log"
    "time"

    "github.com/iliyamo/event-seat-reservation/internal/model"
    "github.com/iliyamo/event-seat-reservation/internal/repository"
)

// SQL is the durable ledger over MySQL.  Acquires serialize on an
// exclusive, non-blocking lock of the seat row; confirms and cancels
// take a plain blocking lock on the reservation row for their brief
// read-modify-write.
type SQL struct {
    db    *sql.DB
    seats *repository.SeatRepo
    resv  *repository.ReservationRepo
}

// NewSQL constructs the MySQL-backed ledger.  All dependencies must be
// non-nil.
func NewSQL(db *sql.DB, seats *repository.SeatRepo, resv *repository.ReservationRepo) *SQL {
    if db == nil || seats == nil || resv == nil {
        panic("nil dependency passed to ledger.NewSQL")
    }
    return &SQL{db: db, seats: seats, resv: resv}
}

// TryAcquire atomically checks the seat's occupancy and, if quantity
// slots remain, inserts a new PENDING reservation expiring holdTTL
// from now.  The seat row lock (taken with NOWAIT) makes the
// check-and-insert a single atomic unit with respect to every other
// acquire on the same seat key: when two callers race for the last
// slot, exactly one gets a reservation and the other gets
// repository.ErrSeatUnavailable.  A refused lock surfaces
// repository.ErrLockBusy without waiting.
func (l *SQL) TryAcquire(ctx context.Context, eventID uint64, seatLabel string, userID uint64, quantity int, holdTTL time.Duration) (*model.Reservation, error) {
    if quantity < 1 {
        return nil, fmt.Errorf("quantity must be at least 1, got %d", quantity)
    }
    tx, err := l.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, fmt.Errorf("begin acquire tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    seat, err := l.seats.GetForUpdateNoWaitTx(ctx, tx, eventID, seatLabel)
    if err != nil {
        return nil, err
    }
    occupied, err := l.resv.ActiveQuantityTx(ctx, tx, seat.ID)
    if err != nil {
        return nil, fmt.Errorf("read occupancy: %w", err)
    }
    if occupied > seat.Capacity {
        // The active sum must never exceed capacity while we hold the
        // seat lock; seeing it means a previous writer bypassed the
        // protocol.
        log.Printf("INVARIANT ledger: seat %d (%s) occupancy %d exceeds capacity %d",
            seat.ID, seat.SeatLabel, occupied, seat.Capacity)
        return nil, repository.ErrInvariant
    }
    if occupied+quantity > seat.Capacity {
        return nil, repository.ErrSeatUnavailable
    }

    token, err := repository.NewHoldToken()
    if err != nil {
        return nil, fmt.Errorf("generate hold token: %w", err)
    }
    res := &model.Reservation{
        EventID:   eventID,
        SeatID:    seat.ID,
        SeatLabel: seat.SeatLabel,
        UserID:    userID,
        Quantity:  quantity,
        Status:    model.StatusPending,
        HoldToken: token,
        ExpiresAt: time.Now().UTC().Add(holdTTL).Truncate(time.Second),
    }
    if err := l.resv.CreateTx(ctx, tx, res); err != nil {
        return nil, fmt.Errorf("insert pending reservation: %w", err)
    }
    if err := tx.Commit(); err != nil {
        return nil, fmt.Errorf("commit acquire tx: %w", err)
    }
    committed = true
    return res, nil
}

// Confirm transitions a PENDING reservation to BOOKED and stamps the
// downstream booking ID.  A reservation found past its expiry is
// rewritten to EXPIRED instead, and that transition is committed
// before repository.ErrHoldExpired is returned so the seat is freed
// for other acquirers immediately.  Confirming a reservation that is
// no longer PENDING fails with repository.ErrAlreadyFinalized and
// leaves the stored state untouched.
func (l *SQL) Confirm(ctx context.Context, reservationID, bookingID uint64) (*model.Reservation, error) {
    tx, err := l.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, fmt.Errorf("begin confirm tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := l.resv.GetForUpdateTx(ctx, tx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.Status != model.StatusPending {
        return nil, repository.ErrAlreadyFinalized
    }
    now := time.Now().UTC()
    if !res.ExpiresAt.After(now) {
        if err := l.resv.SetStatusTx(ctx, tx, res.ID, model.StatusExpired, nil); err != nil {
            return nil, fmt.Errorf("expire reservation: %w", err)
        }
        if err := tx.Commit(); err != nil {
            return nil, fmt.Errorf("commit expiry: %w", err)
        }
        committed = true
        return nil, repository.ErrHoldExpired
    }
    if err := l.resv.SetStatusTx(ctx, tx, res.ID, model.StatusBooked, &bookingID); err != nil {
        return nil, fmt.Errorf("book reservation: %w", err)
    }
    if err := tx.Commit(); err != nil {
        return nil, fmt.Errorf("commit confirm tx: %w", err)
    }
    committed = true
    res.Status = model.StatusBooked
    res.BookingID = &bookingID
    return res, nil
}

// Cancel releases a PENDING reservation on behalf of its holder.  Only
// the original holder may cancel; anyone else gets
// repository.ErrForbidden.  Cancelling an already finalized
// reservation fails with repository.ErrAlreadyFinalized, and a hold
// found past its expiry is committed as EXPIRED with
// repository.ErrHoldExpired, mirroring Confirm.
func (l *SQL) Cancel(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
    tx, err := l.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, fmt.Errorf("begin cancel tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := l.resv.GetForUpdateTx(ctx, tx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.UserID != userID {
        return nil, repository.ErrForbidden
    }
    if res.Status != model.StatusPending {
        return nil, repository.ErrAlreadyFinalized
    }
    now := time.Now().UTC()
    status := model.StatusCancelled
    var outErr error
    if !res.ExpiresAt.After(now) {
        status = model.StatusExpired
        outErr = repository.ErrHoldExpired
    }
    if err := l.resv.SetStatusTx(ctx, tx, res.ID, status, nil); err != nil {
        return nil, fmt.Errorf("cancel reservation: %w", err)
    }
    if err := tx.Commit(); err != nil {
        return nil, fmt.Errorf("commit cancel tx: %w", err)
    }
    committed = true
    if outErr != nil {
        return nil, outErr
    }
    res.Status = status
    return res, nil
}

// GetReservation loads a reservation without locking, for status reads.
func (l *SQL) GetReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    return l.resv.GetByID(ctx, reservationID)
}

// ReclaimExpired sweeps timed-out PENDING reservations to EXPIRED and
// returns the number of rows reclaimed.  A zero eventID sweeps every
// event.  The occupancy predicates already treat expired holds as
// free, so this is bookkeeping that keeps the pending bucket honest in
// reporting rather than a correctness requirement.
func (l *SQL) ReclaimExpired(ctx context.Context, eventID uint64) (int64, error) {
    return l.resv.ReclaimExpired(ctx, eventID)
}

// ListAvailability returns the derived seat map for an event, applying
// the same expired-pending-is-available rule as TryAcquire.
func (l *SQL) ListAvailability(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error) {
    seats, err := l.seats.ListByEvent(ctx, eventID)
    if err != nil {
        return nil, err
    }
    return l.resv.AvailabilityByEvent(ctx, seats)
}
