// Package reaper runs the periodic sweep that rewrites timed-out PENDING
// holds to EXPIRED.  The sweep is bookkeeping only; every read and acquire
// path already treats an expired hold as free, so a missed tick never
// blocks a sale.
package reaper

import (
    "context"
    "log"
    "time"
)

// Reclaimer is the slice of the coordinator the reaper needs.
type Reclaimer interface {
    ReclaimExpired(ctx context.Context, eventID uint64) (int64, error)
}

// Reaper periodically reclaims expired holds across all events.
type Reaper struct {
    rc       Reclaimer
    interval time.Duration
}

// New builds a Reaper.  A non-positive interval falls back to one minute.
func New(rc Reclaimer, interval time.Duration) *Reaper {
    if rc == nil {
        panic("reaper: nil reclaimer")
    }
    if interval <= 0 {
        interval = time.Minute
    }
    return &Reaper{rc: rc, interval: interval}
}

// Start blocks, sweeping on every tick until ctx is cancelled.  Callers run
// it in its own goroutine.  Sweep failures are logged and the loop keeps
// going; a broken database connection should not kill the process here when
// the request path will report it anyway.
func (r *Reaper) Start(ctx context.Context) {
    log.Printf("reaper: sweeping expired holds every %s", r.interval)
    t := time.NewTicker(r.interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            log.Printf("reaper: stopping: %v", ctx.Err())
            return
        case <-t.C:
            n, err := r.rc.ReclaimExpired(ctx, 0)
            if err != nil {
                log.Printf("reaper: sweep failed: %v", err)
                continue
            }
            if n > 0 {
                log.Printf("reaper: reclaimed %d expired holds", n)
            }
        }
    }
}
