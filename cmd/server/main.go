package main // Entry point package

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-seat-reservation/internal/config"
    "github.com/iliyamo/event-seat-reservation/internal/coordinator"
    "github.com/iliyamo/event-seat-reservation/internal/database"
    "github.com/iliyamo/event-seat-reservation/internal/handler"
    "github.com/iliyamo/event-seat-reservation/internal/ledger"
    "github.com/iliyamo/event-seat-reservation/internal/queue"
    "github.com/iliyamo/event-seat-reservation/internal/reaper"
    "github.com/iliyamo/event-seat-reservation/internal/repository"
    "github.com/iliyamo/event-seat-reservation/internal/router"
    queue_publisher "github.com/iliyamo/event-seat-reservation/internal/service"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    if err := godotenv.Load(); err != nil {
        log.Printf("no .env file loaded: %v", err)
    }
    cfg := config.Load()

    // Seat store.  MySQL is the production backend; the in-memory store
    // serves local development without a database.
    var store coordinator.Ledger
    switch cfg.Store {
    case "memory":
        log.Printf("using in-memory seat store (non-durable)")
        store = ledger.NewMemory()
    default:
        db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
        if err != nil {
            log.Fatalf("database connect failed: %v", err)
        }
        defer db.Close()
        store = ledger.NewSQL(db, repository.NewSeatRepo(db), repository.NewReservationRepo(db))
    }

    coord := coordinator.New(
        store,
        queue_publisher.New(),
        time.Duration(cfg.HoldTTLMin)*time.Minute,
        cfg.LockRetryAttempts,
        time.Duration(cfg.LockRetryBackoffMs)*time.Millisecond,
    )

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Background sweep of expired holds.
    go reaper.New(coord, time.Duration(cfg.ReclaimIntervalSec)*time.Second).Start(ctx)

    // Booked-event consumer; runs its own reconnect loop.
    go func() {
        if err := queue.StartBookedConsumer(); err != nil {
            log.Printf("booked consumer stopped: %v", err)
        }
    }()

    // Redis backs the rate limiter and the availability cache.  A nil
    // client disables both and the API still functions.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and response cache disabled")
    }

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterReservations(e, handler.NewReservationHandler(coord), cfg.JWTSecret, rdb)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s store=%s)", addr, cfg.Env, cfg.Store)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
