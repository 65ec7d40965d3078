package ledger

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-seat-reservation/internal/model"
    "github.com/iliyamo/event-seat-reservation/internal/repository"
)

const testTTL = 10 * time.Minute

// newTestStore returns a Memory ledger with a controllable clock and one
// event (id 1) holding seat "A1" (capacity 1) and slot "GA" (capacity 8).
func newTestStore(t *testing.T) (*Memory, *time.Time) {
    t.Helper()
    base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
    now := base
    m := NewMemory()
    m.Now = func() time.Time { return now }
    m.AddSeat(model.Seat{EventID: 1, SeatLabel: "A1", Category: "stalls", PriceCents: 4500, Capacity: 1})
    m.AddSeat(model.Seat{EventID: 1, SeatLabel: "GA", Category: "floor", PriceCents: 2500, Capacity: 8})
    return m, &now
}

func TestTryAcquireMutualExclusion(t *testing.T) {
    m, _ := newTestStore(t)
    ctx := context.Background()

    const n = 32
    var wg sync.WaitGroup
    var mu sync.Mutex
    var wins, conflicts int

    for i := 0; i < n; i++ {
        wg.Add(1)
        go func(user uint64) {
            defer wg.Done()
            _, err := m.TryAcquire(ctx, 1, "A1", user, 1, testTTL)
            mu.Lock()
            defer mu.Unlock()
            switch err {
            case nil:
                wins++
            case repository.ErrSeatUnavailable:
                conflicts++
            default:
                t.Errorf("unexpected error: %v", err)
            }
        }(uint64(i + 1))
    }
    wg.Wait()

    assert.Equal(t, 1, wins, "exactly one acquire should win the seat")
    assert.Equal(t, n-1, conflicts)
}

func TestTryAcquireCapacityBound(t *testing.T) {
    m, _ := newTestStore(t)
    ctx := context.Background()

    const n = 32
    var wg sync.WaitGroup
    var mu sync.Mutex
    var wins int

    for i := 0; i < n; i++ {
        wg.Add(1)
        go func(user uint64) {
            defer wg.Done()
            if _, err := m.TryAcquire(ctx, 1, "GA", user, 1, testTTL); err == nil {
                mu.Lock()
                wins++
                mu.Unlock()
            }
        }(uint64(i + 1))
    }
    wg.Wait()

    assert.Equal(t, 8, wins, "admitted quantity must equal the slot capacity")

    items, err := m.ListAvailability(ctx, 1)
    require.NoError(t, err)
    for _, it := range items {
        if it.SeatLabel == "GA" {
            assert.Equal(t, 0, it.Remaining)
            assert.Equal(t, model.SeatPending, it.Status)
        }
    }
}

func TestTryAcquireQuantityOverCapacity(t *testing.T) {
    m, _ := newTestStore(t)
    _, err := m.TryAcquire(context.Background(), 1, "GA", 7, 9, testTTL)
    assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
}

func TestTryAcquireUnknownSeat(t *testing.T) {
    m, _ := newTestStore(t)
    _, err := m.TryAcquire(context.Background(), 1, "Z9", 7, 1, testTTL)
    assert.ErrorIs(t, err, repository.ErrSeatNotFound)
}

func TestExpiryFreesCapacityWithoutSweep(t *testing.T) {
    m, now := newTestStore(t)
    ctx := context.Background()

    first, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)

    // Inside the window the seat is taken.
    _, err = m.TryAcquire(ctx, 1, "A1", 8, 1, testTTL)
    assert.ErrorIs(t, err, repository.ErrSeatUnavailable)

    // Past the window a new holder gets in with no sweep having run.
    *now = now.Add(testTTL + time.Second)
    second, err := m.TryAcquire(ctx, 1, "A1", 8, 1, testTTL)
    require.NoError(t, err)
    assert.NotEqual(t, first.ID, second.ID)

    // The lapsed hold is only logically free; its stored status still
    // says PENDING until a sweep rewrites it.
    stale, err := m.GetReservation(ctx, first.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusPending, stale.Status)
}

func TestConfirmIsSingleShot(t *testing.T) {
    m, _ := newTestStore(t)
    ctx := context.Background()

    res, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)

    booked, err := m.Confirm(ctx, res.ID, 900)
    require.NoError(t, err)
    assert.Equal(t, model.StatusBooked, booked.Status)
    require.NotNil(t, booked.BookingID)
    assert.Equal(t, uint64(900), *booked.BookingID)

    // A second confirm with a different booking must not restamp.
    _, err = m.Confirm(ctx, res.ID, 901)
    assert.ErrorIs(t, err, repository.ErrAlreadyFinalized)

    stored, err := m.GetReservation(ctx, res.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusBooked, stored.Status)
    assert.Equal(t, uint64(900), *stored.BookingID)
}

func TestConfirmAfterExpiry(t *testing.T) {
    m, now := newTestStore(t)
    ctx := context.Background()

    res, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)

    *now = now.Add(testTTL + time.Minute)
    _, err = m.Confirm(ctx, res.ID, 900)
    assert.ErrorIs(t, err, repository.ErrHoldExpired)

    // The failed confirm leaves the row terminally EXPIRED.
    stored, err := m.GetReservation(ctx, res.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, stored.Status)
    assert.Nil(t, stored.BookingID)

    // And the seat is sellable again.
    _, err = m.TryAcquire(ctx, 1, "A1", 8, 1, testTTL)
    assert.NoError(t, err)
}

func TestCancelReleasesSeat(t *testing.T) {
    m, _ := newTestStore(t)
    ctx := context.Background()

    res, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)

    // Someone else's hold cannot be released.
    _, err = m.Cancel(ctx, res.ID, 8)
    assert.ErrorIs(t, err, repository.ErrForbidden)

    cancelled, err := m.Cancel(ctx, res.ID, 7)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, cancelled.Status)

    // Cancel is terminal too.
    _, err = m.Cancel(ctx, res.ID, 7)
    assert.ErrorIs(t, err, repository.ErrAlreadyFinalized)

    _, err = m.TryAcquire(ctx, 1, "A1", 8, 1, testTTL)
    assert.NoError(t, err)
}

func TestConfirmCancelledReservation(t *testing.T) {
    m, _ := newTestStore(t)
    ctx := context.Background()

    res, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)
    _, err = m.Cancel(ctx, res.ID, 7)
    require.NoError(t, err)

    _, err = m.Confirm(ctx, res.ID, 900)
    assert.ErrorIs(t, err, repository.ErrAlreadyFinalized)
}

func TestReclaimExpired(t *testing.T) {
    m, now := newTestStore(t)
    ctx := context.Background()

    lapsed, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)
    fresh, err := m.TryAcquire(ctx, 1, "GA", 8, 2, 2*testTTL)
    require.NoError(t, err)

    *now = now.Add(testTTL + time.Second)
    n, err := m.ReclaimExpired(ctx, 0)
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)

    got, err := m.GetReservation(ctx, lapsed.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, got.Status)

    got, err = m.GetReservation(ctx, fresh.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusPending, got.Status)

    // A second sweep finds nothing.
    n, err = m.ReclaimExpired(ctx, 0)
    require.NoError(t, err)
    assert.Zero(t, n)
}

func TestListAvailability(t *testing.T) {
    m, _ := newTestStore(t)
    ctx := context.Background()

    res, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)
    _, err = m.Confirm(ctx, res.ID, 900)
    require.NoError(t, err)
    _, err = m.TryAcquire(ctx, 1, "GA", 8, 3, testTTL)
    require.NoError(t, err)

    items, err := m.ListAvailability(ctx, 1)
    require.NoError(t, err)
    require.Len(t, items, 2)

    // Sorted by seat label.
    assert.Equal(t, "A1", items[0].SeatLabel)
    assert.Equal(t, model.SeatBooked, items[0].Status)
    assert.Equal(t, 0, items[0].Remaining)

    assert.Equal(t, "GA", items[1].SeatLabel)
    assert.Equal(t, model.SeatAvailable, items[1].Status)
    assert.Equal(t, 5, items[1].Remaining)

    _, err = m.ListAvailability(ctx, 99)
    assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

// Full happy path: hold, confirm, then verify the seat map and that the
// lapsed-competition rules held throughout.
func TestHoldConfirmLifecycle(t *testing.T) {
    m, now := newTestStore(t)
    ctx := context.Background()

    res, err := m.TryAcquire(ctx, 1, "A1", 7, 1, testTTL)
    require.NoError(t, err)
    assert.Equal(t, model.StatusPending, res.Status)
    assert.NotEmpty(t, res.HoldToken)
    assert.Equal(t, now.Add(testTTL), res.ExpiresAt)

    booked, err := m.Confirm(ctx, res.ID, 412)
    require.NoError(t, err)
    assert.Equal(t, model.StatusBooked, booked.Status)

    // Expiry no longer applies once booked.
    *now = now.Add(24 * time.Hour)
    _, err = m.TryAcquire(ctx, 1, "A1", 8, 1, testTTL)
    assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
}
