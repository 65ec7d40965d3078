package model

import "time"

// Seat is one bookable unit of event capacity.  A seat is either a
// discrete physical seat (capacity 1) or a virtual general-admission
// slot such as a dance floor, where capacity is the number of
// simultaneous holders the slot admits.  Seat rows are reference data
// supplied by the seat-layout service; this service never creates or
// mutates them.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event the seat belongs to.
//  SeatLabel  – designator unique within the event (e.g. "A1", "GA").
//  Category   – pricing/display category name.
//  PriceCents – unit price in cents.
//  Capacity   – maximum simultaneous holders; 1 for ordinary seats.
//  CreatedAt  – when the row was created.
type Seat struct {
    ID         uint64    // seats.id
    EventID    uint64    // seats.event_id
    SeatLabel  string    // seats.seat_label
    Category   string    // seats.category
    PriceCents uint32    // seats.price_cents
    Capacity   int       // seats.capacity
    CreatedAt  time.Time // seats.created_at
}

// Derived seat states reported by the availability read path.  They are
// computed from the reservation ledger, never stored.
const (
    SeatAvailable = "AVAILABLE" // at least one capacity slot is open
    SeatPending   = "PENDING"   // fully held by unexpired pending reservations
    SeatBooked    = "BOOKED"    // fully consumed by confirmed bookings
)

// SeatAvailability is one row of the seat-map read path.  Remaining is
// the capacity still open after subtracting every active (booked or
// unexpired pending) reservation.  ExpiresAt carries the earliest
// active hold expiry when one exists, so clients can show a countdown.
type SeatAvailability struct {
    SeatLabel  string     `json:"seat_label"`
    Category   string     `json:"category"`
    PriceCents uint32     `json:"price_cents"`
    Capacity   int        `json:"capacity"`
    Remaining  int        `json:"remaining"`
    Status     string     `json:"status"`
    ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// SummarizeSeat folds a seat's reservations into one availability row
// as of the given instant.  Only reservations active at that instant
// consume capacity, so a PENDING hold past its expiry reads as free
// here even before the sweep rewrites its status.  Status derivation:
// a seat with remaining capacity is AVAILABLE; a full seat is BOOKED
// when confirmed bookings alone fill it, otherwise PENDING.  For
// non-available seats ExpiresAt reports the earliest active hold
// expiry, if any hold is pending.
func SummarizeSeat(s Seat, reservations []Reservation, now time.Time) SeatAvailability {
    av := SeatAvailability{
        SeatLabel:  s.SeatLabel,
        Category:   s.Category,
        PriceCents: s.PriceCents,
        Capacity:   s.Capacity,
    }
    booked, pending := 0, 0
    var earliest *time.Time
    for i := range reservations {
        r := &reservations[i]
        if !r.Active(now) {
            continue
        }
        if r.Status == StatusBooked {
            booked += r.Quantity
            continue
        }
        pending += r.Quantity
        exp := r.ExpiresAt
        if earliest == nil || exp.Before(*earliest) {
            earliest = &exp
        }
    }
    av.Remaining = s.Capacity - booked - pending
    if av.Remaining < 0 {
        av.Remaining = 0
    }
    switch {
    case av.Remaining > 0:
        av.Status = SeatAvailable
    case booked >= s.Capacity:
        av.Status = SeatBooked
    default:
        av.Status = SeatPending
    }
    if av.Status != SeatAvailable {
        av.ExpiresAt = earliest
    }
    return av
}
