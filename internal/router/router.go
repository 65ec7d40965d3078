package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/event-seat-reservation/internal/config"
    "github.com/iliyamo/event-seat-reservation/internal/handler"
    "github.com/iliyamo/event-seat-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, used
// by load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterReservations wires the reservation endpoints and their middleware.
//
// The reserve and cancel routes require a CUSTOMER JWT; reserve additionally
// sits behind the redis token bucket since it is the endpoint that takes row
// locks under load.  Confirm is deliberately unauthenticated: it is the
// payment webhook's entry point and the reservation id plus booking id are
// its credentials.  Availability is a public read behind the response cache.
// The manual reclaim sweep is restricted to OWNER operators.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, rdb *redis.Client) {
    rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    // Public reads and the webhook entry point.
    e.GET("/v1/events/:id/availability", h.Availability, cache)
    e.POST("/v1/reservations/:id/confirm", h.Confirm)

    // Customer actions under JWT.
    cust := e.Group("/v1")
    cust.Use(middleware.JWTAuth(jwtSecret))
    cust.Use(middleware.RequireRole("CUSTOMER", "OWNER"))
    cust.POST("/events/:id/reserve", h.Reserve, rl)
    cust.GET("/reservations/:id", h.Get)
    cust.POST("/reservations/:id/cancel", h.Cancel)

    // Operator maintenance.
    admin := e.Group("/v1/admin")
    admin.Use(middleware.JWTAuth(jwtSecret))
    admin.Use(middleware.RequireRole("OWNER"))
    admin.POST("/reclaim", h.Reclaim)
}
