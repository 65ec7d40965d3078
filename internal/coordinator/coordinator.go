// Package coordinator sits between the HTTP handlers and the seat ledger.
// It owns the retry policy for lock contention, the hold TTL handed to the
// ledger, and the broker notification that follows a successful confirm.
// It never makes seat-state decisions itself; those belong to the ledger.
package coordinator

import (
    "context"
    "errors"
    "log"
    "math/rand"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/event-seat-reservation/internal/model"
    "github.com/iliyamo/event-seat-reservation/internal/queue"
    "github.com/iliyamo/event-seat-reservation/internal/repository"
)

// ErrContended is returned when every acquire attempt found the seat row
// locked by another writer.  It means "try again shortly", not "seat taken";
// handlers must keep the two distinct.
var ErrContended = errors.New("seat busy, retry later")

// Ledger is the seat-state store the coordinator drives.  Both the MySQL
// and the in-memory implementations satisfy it.
type Ledger interface {
    TryAcquire(ctx context.Context, eventID uint64, seatLabel string, userID uint64, quantity int, holdTTL time.Duration) (*model.Reservation, error)
    Confirm(ctx context.Context, reservationID, bookingID uint64) (*model.Reservation, error)
    Cancel(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)
    GetReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error)
    ReclaimExpired(ctx context.Context, eventID uint64) (int64, error)
    ListAvailability(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error)
}

// BookedPublisher pushes a booked event to the broker.  A nil publisher
// disables eventing.
type BookedPublisher interface {
    PublishReservationBooked(ctx context.Context, event queue.ReservationBookedEvent) error
}

// Coordinator wires the ledger to the retry policy and the publisher.
type Coordinator struct {
    ledger    Ledger
    publisher BookedPublisher
    holdTTL   time.Duration
    attempts  int
    backoff   time.Duration

    // sleep is swapped in tests to keep the retry path fast.
    sleep func(time.Duration)
}

// New builds a Coordinator.  attempts and backoff bound the lock-contention
// retry loop; zero values fall back to 3 attempts and 50ms.
func New(l Ledger, pub BookedPublisher, holdTTL time.Duration, attempts int, backoff time.Duration) *Coordinator {
    if l == nil {
        panic("coordinator: nil ledger")
    }
    if attempts < 1 {
        attempts = 3
    }
    if backoff <= 0 {
        backoff = 50 * time.Millisecond
    }
    if holdTTL <= 0 {
        holdTTL = 10 * time.Minute
    }
    return &Coordinator{
        ledger:    l,
        publisher: pub,
        holdTTL:   holdTTL,
        attempts:  attempts,
        backoff:   backoff,
        sleep:     time.Sleep,
    }
}

// Reserve attempts to place a hold on the seat.  Lock contention
// (repository.ErrLockBusy) is retried up to the configured attempt count
// with doubling, jittered backoff; every other outcome, including a full
// seat, is returned to the caller on the first attempt.  When all attempts
// hit contention the result is ErrContended.
func (c *Coordinator) Reserve(ctx context.Context, eventID uint64, seatLabel string, userID uint64, quantity int) (*model.Reservation, error) {
    delay := c.backoff
    for attempt := 1; ; attempt++ {
        res, err := c.ledger.TryAcquire(ctx, eventID, seatLabel, userID, quantity, c.holdTTL)
        if !errors.Is(err, repository.ErrLockBusy) {
            return res, err
        }
        if attempt >= c.attempts {
            log.Printf("coordinator: seat %q event %d still locked after %d attempts", seatLabel, eventID, attempt)
            return nil, ErrContended
        }
        c.sleep(jitter(delay))
        delay *= 2
        if err := ctx.Err(); err != nil {
            return nil, err
        }
    }
}

// jitter spreads d by +/-50% so retrying writers do not collide in lockstep.
func jitter(d time.Duration) time.Duration {
    half := int64(d) / 2
    return time.Duration(half + rand.Int63n(int64(d)))
}

// Confirm finalizes a hold into a booking and, on success, publishes a
// reservation.booked event.  Publish failures are logged and swallowed;
// the booking already committed and must not be rolled back over a broker
// hiccup.
func (c *Coordinator) Confirm(ctx context.Context, reservationID, bookingID uint64) (*model.Reservation, error) {
    res, err := c.ledger.Confirm(ctx, reservationID, bookingID)
    if err != nil {
        return nil, err
    }
    if c.publisher != nil {
        ev := queue.ReservationBookedEvent{
            CorrelationID: uuid.NewString(),
            ReservationID: res.ID,
            BookingID:     bookingID,
            EventID:       res.EventID,
            SeatLabel:     res.SeatLabel,
            UserID:        res.UserID,
            Quantity:      res.Quantity,
            BookedAt:      res.UpdatedAt.UTC().Format(time.RFC3339),
        }
        if err := c.publisher.PublishReservationBooked(ctx, ev); err != nil {
            log.Printf("coordinator: publish reservation.booked for %d failed: %v", res.ID, err)
        }
    }
    return res, nil
}

// Cancel releases a hold on behalf of its holder.
func (c *Coordinator) Cancel(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
    return c.ledger.Cancel(ctx, reservationID, userID)
}

// Reservation returns the current state of a reservation, for clients
// polling their hold while payment is in flight.
func (c *Coordinator) Reservation(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    return c.ledger.GetReservation(ctx, reservationID)
}

// ReclaimExpired sweeps timed-out holds; a zero eventID covers all events.
func (c *Coordinator) ReclaimExpired(ctx context.Context, eventID uint64) (int64, error) {
    return c.ledger.ReclaimExpired(ctx, eventID)
}

// Availability returns the derived seat map for an event.
func (c *Coordinator) Availability(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error) {
    return c.ledger.ListAvailability(ctx, eventID)
}
