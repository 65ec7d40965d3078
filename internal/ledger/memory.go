package ledger

import (
    "context"
    "log"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/event-seat-reservation/internal/model"
    "github.com/iliyamo/event-seat-reservation/internal/repository"
)

type seatKey struct {
    eventID uint64
    label   string
}

type memSeat struct {
    seat model.Seat
    mu   sync.Mutex // per-seat lock serializing acquires, like the seat row lock
}

// Memory is an in-process ledger with the same contract and error
// vocabulary as the MySQL ledger.  It backs the test suite and the
// STORE=memory development mode, and doubles as the executable
// reference for the occupancy invariants.  Acquires serialize on a
// per-seat mutex (the blocking variant of the seat-key lock); all
// other state is guarded by one store mutex, which stands in for the
// reservation row locks.
type Memory struct {
    mu      sync.Mutex
    seats   map[seatKey]*memSeat
    resv    map[uint64]*model.Reservation
    bySeat  map[uint64][]uint64 // seat ID -> reservation IDs, in insert order
    nextSea uint64
    nextRes uint64

    // Now is the clock used for expiry decisions.  Tests may replace
    // it to move time without sleeping.
    Now func() time.Time
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
    return &Memory{
        seats:  make(map[seatKey]*memSeat),
        resv:   make(map[uint64]*model.Reservation),
        bySeat: make(map[uint64][]uint64),
        Now:    time.Now,
    }
}

func (m *Memory) now() time.Time { return m.Now().UTC() }

// AddSeat registers seat reference data and returns its assigned ID.
// It replaces the layout snapshot the MySQL ledger reads from the
// seats table.
func (m *Memory) AddSeat(seat model.Seat) uint64 {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.nextSea++
    seat.ID = m.nextSea
    if seat.Capacity < 1 {
        seat.Capacity = 1
    }
    m.seats[seatKey{seat.EventID, seat.SeatLabel}] = &memSeat{seat: seat}
    return seat.ID
}

// GetReservation returns a copy of the stored reservation, for status
// reads and for inspecting terminal state.
func (m *Memory) GetReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    r, ok := m.resv[reservationID]
    if !ok {
        return nil, repository.ErrReservationNotFound
    }
    cp := *r
    return &cp, nil
}

// TryAcquire checks occupancy and inserts a PENDING claim under the
// seat lock, so concurrent acquires on one seat key admit quantities
// summing to at most the seat's capacity: the losers get
// repository.ErrSeatUnavailable.
func (m *Memory) TryAcquire(ctx context.Context, eventID uint64, seatLabel string, userID uint64, quantity int, holdTTL time.Duration) (*model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    if quantity < 1 {
        quantity = 1
    }
    m.mu.Lock()
    ms := m.seats[seatKey{eventID, seatLabel}]
    m.mu.Unlock()
    if ms == nil {
        return nil, repository.ErrSeatNotFound
    }

    // Lock order is seat lock first, store lock second, everywhere.
    ms.mu.Lock()
    defer ms.mu.Unlock()
    m.mu.Lock()
    defer m.mu.Unlock()

    now := m.now()
    occupied := 0
    for _, id := range m.bySeat[ms.seat.ID] {
        if r := m.resv[id]; r.Active(now) {
            occupied += r.Quantity
        }
    }
    if occupied > ms.seat.Capacity {
        log.Printf("INVARIANT ledger: seat %d (%s) occupancy %d exceeds capacity %d",
            ms.seat.ID, ms.seat.SeatLabel, occupied, ms.seat.Capacity)
        return nil, repository.ErrInvariant
    }
    if occupied+quantity > ms.seat.Capacity {
        return nil, repository.ErrSeatUnavailable
    }

    token, err := repository.NewHoldToken()
    if err != nil {
        return nil, err
    }
    m.nextRes++
    res := &model.Reservation{
        ID:        m.nextRes,
        EventID:   eventID,
        SeatID:    ms.seat.ID,
        SeatLabel: ms.seat.SeatLabel,
        UserID:    userID,
        Quantity:  quantity,
        Status:    model.StatusPending,
        HoldToken: token,
        ExpiresAt: now.Add(holdTTL),
        CreatedAt: now,
        UpdatedAt: now,
    }
    m.resv[res.ID] = res
    m.bySeat[ms.seat.ID] = append(m.bySeat[ms.seat.ID], res.ID)
    cp := *res
    return &cp, nil
}

// Confirm mirrors the MySQL ledger: PENDING and unexpired becomes
// BOOKED with the booking stamped; expired becomes EXPIRED with
// repository.ErrHoldExpired; anything else is
// repository.ErrAlreadyFinalized with the stored state untouched.
func (m *Memory) Confirm(ctx context.Context, reservationID, bookingID uint64) (*model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    res, ok := m.resv[reservationID]
    if !ok {
        return nil, repository.ErrReservationNotFound
    }
    if res.Status != model.StatusPending {
        return nil, repository.ErrAlreadyFinalized
    }
    now := m.now()
    if !res.ExpiresAt.After(now) {
        res.Status = model.StatusExpired
        res.UpdatedAt = now
        return nil, repository.ErrHoldExpired
    }
    res.Status = model.StatusBooked
    res.BookingID = &bookingID
    res.UpdatedAt = now
    cp := *res
    return &cp, nil
}

// Cancel mirrors the MySQL ledger's holder and status checks.
func (m *Memory) Cancel(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    res, ok := m.resv[reservationID]
    if !ok {
        return nil, repository.ErrReservationNotFound
    }
    if res.UserID != userID {
        return nil, repository.ErrForbidden
    }
    if res.Status != model.StatusPending {
        return nil, repository.ErrAlreadyFinalized
    }
    now := m.now()
    if !res.ExpiresAt.After(now) {
        res.Status = model.StatusExpired
        res.UpdatedAt = now
        return nil, repository.ErrHoldExpired
    }
    res.Status = model.StatusCancelled
    res.UpdatedAt = now
    cp := *res
    return &cp, nil
}

// ReclaimExpired rewrites timed-out PENDING claims to EXPIRED and
// reports how many it touched.  A zero eventID sweeps every event.
func (m *Memory) ReclaimExpired(ctx context.Context, eventID uint64) (int64, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    now := m.now()
    var count int64
    for _, r := range m.resv {
        if eventID != 0 && r.EventID != eventID {
            continue
        }
        if r.Status == model.StatusPending && !r.ExpiresAt.After(now) {
            r.Status = model.StatusExpired
            r.UpdatedAt = now
            count++
        }
    }
    return count, nil
}

// ListAvailability derives the seat map for an event, ordered by seat
// label, applying the same expired-pending-is-available rule as
// TryAcquire.
func (m *Memory) ListAvailability(ctx context.Context, eventID uint64) ([]model.SeatAvailability, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    var seats []model.Seat
    for k, ms := range m.seats {
        if k.eventID == eventID {
            seats = append(seats, ms.seat)
        }
    }
    if len(seats) == 0 {
        return nil, repository.ErrEventNotFound
    }
    sort.Slice(seats, func(i, j int) bool { return seats[i].SeatLabel < seats[j].SeatLabel })

    now := m.now()
    out := make([]model.SeatAvailability, 0, len(seats))
    for _, s := range seats {
        var rs []model.Reservation
        for _, id := range m.bySeat[s.ID] {
            rs = append(rs, *m.resv[id])
        }
        out = append(out, model.SummarizeSeat(s, rs, now))
    }
    return out, nil
}
