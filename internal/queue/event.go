// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationBookedEvent is published when a pending hold is confirmed into a
// booking.  It carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type ReservationBookedEvent struct {
    CorrelationID string `json:"correlation_id"`
    ReservationID uint64 `json:"reservation_id"`
    BookingID     uint64 `json:"booking_id"`
    EventID       uint64 `json:"event_id"`
    SeatLabel     string `json:"seat_label"`
    UserID        uint64 `json:"user_id"`
    Quantity      int    `json:"quantity"`
    BookedAt      string `json:"booked_at"`
}
