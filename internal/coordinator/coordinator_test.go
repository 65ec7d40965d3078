package coordinator

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-seat-reservation/internal/model"
    "github.com/iliyamo/event-seat-reservation/internal/queue"
    "github.com/iliyamo/event-seat-reservation/internal/repository"
)

// scriptedLedger returns the queued errors in order, then succeeds.
// It lets the retry path run without timing games or a real store.
type scriptedLedger struct {
    errs  []error
    calls int
    res   model.Reservation
}

func (s *scriptedLedger) TryAcquire(ctx context.Context, eventID uint64, seatLabel string, userID uint64, quantity int, holdTTL time.Duration) (*model.Reservation, error) {
    s.calls++
    if len(s.errs) > 0 {
        err := s.errs[0]
        s.errs = s.errs[1:]
        if err != nil {
            return nil, err
        }
    }
    cp := s.res
    return &cp, nil
}

func (s *scriptedLedger) Confirm(ctx context.Context, reservationID, bookingID uint64) (*model.Reservation, error) {
    cp := s.res
    cp.Status = model.StatusBooked
    cp.BookingID = &bookingID
    return &cp, nil
}

func (s *scriptedLedger) Cancel(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
    cp := s.res
    cp.Status = model.StatusCancelled
    return &cp, nil
}

func (s *scriptedLedger) GetReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    cp := s.res
    return &cp, nil
}

func (s *scriptedLedger) ReclaimExpired(ctx context.Context, eventID uint64) (int64, error) {
    return 3, nil
}

func (s *scriptedLedger) ListAvailability(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error) {
    return nil, nil
}

type capturingPublisher struct {
    events []queue.ReservationBookedEvent
    err    error
}

func (p *capturingPublisher) PublishReservationBooked(ctx context.Context, ev queue.ReservationBookedEvent) error {
    p.events = append(p.events, ev)
    return p.err
}

func newTestCoordinator(l Ledger, pub BookedPublisher) *Coordinator {
    c := New(l, pub, 10*time.Minute, 3, 50*time.Millisecond)
    c.sleep = func(time.Duration) {} // keep retries instant in tests
    return c
}

func TestReserveRetriesLockContention(t *testing.T) {
    l := &scriptedLedger{
        errs: []error{repository.ErrLockBusy, repository.ErrLockBusy},
        res:  model.Reservation{ID: 11, SeatLabel: "A1", Status: model.StatusPending},
    }
    c := newTestCoordinator(l, nil)

    res, err := c.Reserve(context.Background(), 1, "A1", 7, 1)
    require.NoError(t, err)
    assert.Equal(t, uint64(11), res.ID)
    assert.Equal(t, 3, l.calls, "two contended attempts plus the winning one")
}

func TestReserveContendedAfterAllAttempts(t *testing.T) {
    l := &scriptedLedger{
        errs: []error{repository.ErrLockBusy, repository.ErrLockBusy, repository.ErrLockBusy},
    }
    c := newTestCoordinator(l, nil)

    _, err := c.Reserve(context.Background(), 1, "A1", 7, 1)
    assert.ErrorIs(t, err, ErrContended)
    assert.Equal(t, 3, l.calls)
}

func TestReserveNeverRetriesBusinessConflicts(t *testing.T) {
    tests := []struct {
        name string
        err  error
    }{
        {"seat unavailable", repository.ErrSeatUnavailable},
        {"seat not found", repository.ErrSeatNotFound},
        {"invariant breach", repository.ErrInvariant},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            l := &scriptedLedger{errs: []error{tt.err}}
            c := newTestCoordinator(l, nil)

            _, err := c.Reserve(context.Background(), 1, "A1", 7, 1)
            assert.ErrorIs(t, err, tt.err)
            assert.Equal(t, 1, l.calls, "business conflicts must surface on the first attempt")
        })
    }
}

func TestReserveStopsOnCancelledContext(t *testing.T) {
    l := &scriptedLedger{
        errs: []error{repository.ErrLockBusy, repository.ErrLockBusy, repository.ErrLockBusy},
    }
    c := newTestCoordinator(l, nil)

    ctx, cancel := context.WithCancel(context.Background())
    cancel()

    _, err := c.Reserve(ctx, 1, "A1", 7, 1)
    assert.ErrorIs(t, err, context.Canceled)
    assert.Less(t, l.calls, 3)
}

func TestConfirmPublishesBookedEvent(t *testing.T) {
    l := &scriptedLedger{
        res: model.Reservation{ID: 11, EventID: 1, SeatLabel: "A1", UserID: 7, Quantity: 2},
    }
    pub := &capturingPublisher{}
    c := newTestCoordinator(l, pub)

    res, err := c.Confirm(context.Background(), 11, 900)
    require.NoError(t, err)
    assert.Equal(t, model.StatusBooked, res.Status)

    require.Len(t, pub.events, 1)
    ev := pub.events[0]
    assert.Equal(t, uint64(11), ev.ReservationID)
    assert.Equal(t, uint64(900), ev.BookingID)
    assert.Equal(t, "A1", ev.SeatLabel)
    assert.Equal(t, 2, ev.Quantity)
    assert.NotEmpty(t, ev.CorrelationID)
}

func TestConfirmSurvivesPublishFailure(t *testing.T) {
    l := &scriptedLedger{res: model.Reservation{ID: 11}}
    pub := &capturingPublisher{err: errors.New("broker down")}
    c := newTestCoordinator(l, pub)

    res, err := c.Confirm(context.Background(), 11, 900)
    require.NoError(t, err, "a committed booking must not fail over the broker")
    assert.Equal(t, model.StatusBooked, res.Status)
}

func TestJitterStaysWithinHalfWidth(t *testing.T) {
    d := 100 * time.Millisecond
    for i := 0; i < 1000; i++ {
        j := jitter(d)
        assert.GreaterOrEqual(t, j, 50*time.Millisecond)
        assert.LessOrEqual(t, j, 150*time.Millisecond)
    }
}
