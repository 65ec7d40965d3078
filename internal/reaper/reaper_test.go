package reaper

import (
    "context"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

type countingReclaimer struct {
    calls atomic.Int64
}

func (c *countingReclaimer) ReclaimExpired(ctx context.Context, eventID uint64) (int64, error) {
    c.calls.Add(1)
    return 2, nil
}

func TestReaperSweepsUntilCancelled(t *testing.T) {
    rc := &countingReclaimer{}
    r := New(rc, 5*time.Millisecond)

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        r.Start(ctx)
        close(done)
    }()

    assert.Eventually(t, func() bool { return rc.calls.Load() >= 2 }, time.Second, time.Millisecond)
    cancel()

    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("reaper did not stop on context cancel")
    }
}

func TestNewDefaultsInterval(t *testing.T) {
    r := New(&countingReclaimer{}, 0)
    assert.Equal(t, time.Minute, r.interval)
}
