package model

import "time"

// Reservation statuses.  Transitions are one-directional: a PENDING
// reservation may become BOOKED, CANCELLED or EXPIRED and nothing ever
// leaves those terminal states inside this service.  Rows are retained
// as an audit trail and never deleted.
const (
    StatusPending   = "PENDING"   // held, awaiting payment confirmation
    StatusBooked    = "BOOKED"    // payment confirmed; permanent
    StatusCancelled = "CANCELLED" // released by the holder before expiry
    StatusExpired   = "EXPIRED"   // expiry passed while still pending
)

// Reservation is a time-boxed claim on seat capacity.  While status is
// PENDING and ExpiresAt is in the future the claim consumes Quantity
// slots of the seat's capacity.  A PENDING row whose expiry has passed
// is logically free even before the sweep rewrites its status; every
// occupancy check applies that rule.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event the held seat belongs to.
//  SeatID     – seat being held.
//  SeatLabel  – seat designator, denormalised for responses and events.
//  UserID     – holder of the claim.
//  Quantity   – capacity slots consumed (1 for single-occupancy seats).
//  Status     – one of the Status* constants above.
//  HoldToken  – opaque token returned to the client for correlation.
//  BookingID  – downstream booking stamped at confirm time (nullable).
//  ExpiresAt  – hard expiry of the PENDING window.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last status change.
type Reservation struct {
    ID        uint64     // reservations.id
    EventID   uint64     // reservations.event_id
    SeatID    uint64     // reservations.seat_id
    SeatLabel string     // seats.seat_label (joined)
    UserID    uint64     // reservations.user_id
    Quantity  int        // reservations.quantity
    Status    string     // reservations.status
    HoldToken string     // reservations.hold_token
    BookingID *uint64    // reservations.booking_id (nullable)
    ExpiresAt time.Time  // reservations.expires_at
    CreatedAt time.Time  // reservations.created_at
    UpdatedAt time.Time  // reservations.updated_at
}

// Active reports whether the reservation currently consumes seat
// capacity at the given instant: BOOKED always does, PENDING only
// until its expiry.
func (r *Reservation) Active(now time.Time) bool {
    switch r.Status {
    case StatusBooked:
        return true
    case StatusPending:
        return r.ExpiresAt.After(now)
    }
    return false
}
