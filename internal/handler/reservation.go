package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-seat-reservation/internal/coordinator"
    "github.com/iliyamo/event-seat-reservation/internal/repository"
)

// ReservationHandler exposes the reserve/confirm/cancel/availability
// endpoints on top of the coordinator.  Authentication and role checks
// are performed by middleware before these methods run; confirm is the
// exception, it is wired as an unauthenticated payment-webhook entry
// point.  The handler's only job is translating coordinator outcomes
// into the HTTP vocabulary; it never touches seat state itself.
type ReservationHandler struct {
    Coord *coordinator.Coordinator // orchestration layer over the ledger
}

// NewReservationHandler constructs a ReservationHandler.  The
// coordinator must be non-nil.
func NewReservationHandler(coord *coordinator.Coordinator) *ReservationHandler {
    if coord == nil {
        panic("nil coordinator passed to NewReservationHandler")
    }
    return &ReservationHandler{Coord: coord}
}

// Reserve handles POST /v1/events/:id/reserve.  The body names a seat
// label and an optional quantity (default 1).  On success it returns
// 201 Created with the hold token and its expiry.  A full seat is 409
// with reason "seat_unavailable"; a seat whose row stayed locked through
// every acquire attempt is 503 with reason "contended" and a Retry-After
// header, so clients can tell "pick another seat" from "same seat,
// try again".
func (h *ReservationHandler) Reserve(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || eventID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    var body struct {
        SeatLabel string `json:"seat_label"`
        Quantity  int    `json:"quantity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.SeatLabel == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_label is required"})
    }
    if body.Quantity < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
    }
    if body.Quantity == 0 {
        body.Quantity = 1
    }

    res, err := h.Coord.Reserve(c.Request().Context(), eventID, body.SeatLabel, userID, body.Quantity)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrSeatNotFound), errors.Is(err, repository.ErrEventNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
        case errors.Is(err, repository.ErrSeatUnavailable):
            return c.JSON(http.StatusConflict, echo.Map{"reason": "seat_unavailable"})
        case errors.Is(err, coordinator.ErrContended):
            c.Response().Header().Set("Retry-After", "1")
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"reason": "contended", "retry_after": 1})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "reservation_id": res.ID,
        "seat_label":     res.SeatLabel,
        "quantity":       res.Quantity,
        "status":         res.Status,
        "hold_token":     res.HoldToken,
        "expires_at":     res.ExpiresAt.UTC().Format(time.RFC3339),
    })
}

// Confirm handles POST /v1/reservations/:id/confirm.  It is the entry
// point for the payment webhook, so the body carries the booking id the
// payment side assigned.  A hold that already reached a terminal state
// yields 400 "already_finalized"; a hold whose window lapsed yields 400
// "hold_expired" (and the stored row is flipped to EXPIRED as a side
// effect of the lookup).
func (h *ReservationHandler) Confirm(c echo.Context) error {
    reservationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || reservationID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    var body struct {
        BookingID uint64 `json:"booking_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.BookingID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
    }

    res, err := h.Coord.Confirm(c.Request().Context(), reservationID, body.BookingID)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrReservationNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
        case errors.Is(err, repository.ErrAlreadyFinalized):
            return c.JSON(http.StatusBadRequest, echo.Map{"reason": "already_finalized"})
        case errors.Is(err, repository.ErrHoldExpired):
            return c.JSON(http.StatusBadRequest, echo.Map{"reason": "hold_expired"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "reservation_id": res.ID,
        "booking_id":     body.BookingID,
        "status":         res.Status,
    })
}

// Cancel handles POST /v1/reservations/:id/cancel.  Only the holder may
// release a hold; anyone else gets 403.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    reservationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || reservationID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }

    res, err := h.Coord.Cancel(c.Request().Context(), reservationID, userID)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrReservationNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
        case errors.Is(err, repository.ErrForbidden):
            return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
        case errors.Is(err, repository.ErrAlreadyFinalized):
            return c.JSON(http.StatusBadRequest, echo.Map{"reason": "already_finalized"})
        case errors.Is(err, repository.ErrHoldExpired):
            return c.JSON(http.StatusBadRequest, echo.Map{"reason": "hold_expired"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "reservation_id": res.ID,
        "status":         res.Status,
    })
}

// Get handles GET /v1/reservations/:id, the polling endpoint clients
// hit while their payment is in flight.  Only the holder may read a
// reservation.
func (h *ReservationHandler) Get(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    reservationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || reservationID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }

    res, err := h.Coord.Reservation(c.Request().Context(), reservationID)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if res.UserID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
    }
    body := echo.Map{
        "reservation_id": res.ID,
        "event_id":       res.EventID,
        "seat_label":     res.SeatLabel,
        "quantity":       res.Quantity,
        "status":         res.Status,
        "expires_at":     res.ExpiresAt.UTC().Format(time.RFC3339),
    }
    if res.BookingID != nil {
        body["booking_id"] = *res.BookingID
    }
    return c.JSON(http.StatusOK, body)
}

// Availability handles GET /v1/events/:id/availability.  The per-seat
// status is derived at read time, so an expired hold shows as available
// even before the reaper has swept it.
func (h *ReservationHandler) Availability(c echo.Context) error {
    eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || eventID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    items, err := h.Coord.Availability(c.Request().Context(), eventID)
    if err != nil {
        if errors.Is(err, repository.ErrEventNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Reclaim handles POST /v1/admin/reclaim, the manual counterpart of the
// periodic sweep.  An optional event_id in the body scopes the sweep.
func (h *ReservationHandler) Reclaim(c echo.Context) error {
    var body struct {
        EventID uint64 `json:"event_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    n, err := h.Coord.ReclaimExpired(c.Request().Context(), body.EventID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"reclaimed": n})
}
