// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// ledger and handlers to distinguish between different failure
// scenarios without string matching. Business conflicts (seat taken,
// hold already finalized, hold expired) are ordinary outcomes of the
// reservation protocol and map to 4xx responses; ErrLockBusy is the
// only transient kind and is the sole error the coordinator retries.
package repository

import "errors"

// ErrEventNotFound is returned when no seat layout exists for the
// requested event. Handlers should translate this into HTTP 404.
var ErrEventNotFound = errors.New("event not found")

// ErrSeatNotFound is returned when the requested seat designator does
// not exist within the event's layout. Handlers should translate this
// into HTTP 404.
var ErrSeatNotFound = errors.New("seat not found")

// ErrReservationNotFound is returned when no reservation row exists
// for the given identifier. Handlers should translate this into
// HTTP 404.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrSeatUnavailable is returned when acquiring the requested quantity
// would push the seat past its capacity. This is a business conflict,
// not a transient failure: the caller lost the race or the seat is
// simply taken. Handlers should translate this into HTTP 409.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrLockBusy is returned when the seat row is locked by a concurrent
// transaction and the non-blocking lock attempt was refused. Unlike
// ErrSeatUnavailable this says nothing about the seat's occupancy; the
// same request may well succeed a moment later, so the coordinator
// retries it a bounded number of times before surfacing a retryable
// error to the client.
var ErrLockBusy = errors.New("seat row locked by concurrent transaction")

// ErrAlreadyFinalized is returned when confirm or cancel targets a
// reservation that is no longer PENDING. The stored terminal state is
// left untouched. Handlers should translate this into HTTP 400.
var ErrAlreadyFinalized = errors.New("reservation already finalized")

// ErrHoldExpired is returned when confirm or cancel finds the hold's
// expiry already passed. The row is transitioned to EXPIRED as a side
// effect so the seat is immediately free for others; the caller must
// start over with a fresh reservation. Handlers should translate this
// into HTTP 400.
var ErrHoldExpired = errors.New("reservation hold expired")

// ErrForbidden is returned when the caller attempts an operation on a
// reservation held by someone else. Handlers should translate this
// into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrInvariant is returned when the ledger detects a state that should
// be impossible, such as a seat whose active quantity already exceeds
// its capacity. It indicates a bug rather than a bad request; callers
// must log it loudly and surface an internal error, never swallow it.
var ErrInvariant = errors.New("seat occupancy invariant violated")
