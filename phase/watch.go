package phase

import (
	"context"
	"time"
)

// Watch polls pub every interval and calls fn with each snapshot that is
// newer than the last one seen. Snapshots published between polls are
// skipped. It returns when ctx is done.
func Watch(ctx context.Context, pub *Publisher, interval time.Duration, fn func(*Phase)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p := pub.Load()
			if p.Seq == last {
				continue
			}
			last = p.Seq
			fn(p)
		}
	}
}

// TransitionTracker remembers the last observed state so a consumer can
// detect transitions from polled snapshots
type TransitionTracker struct {
	last    State
	started bool
}

// Observe reports whether p's state differs from the previous call
func (t *TransitionTracker) Observe(p *Phase) (from State, changed bool) {
	from = t.last
	changed = t.started && p.State != t.last
	t.last = p.State
	t.started = true
	return from, changed
}
