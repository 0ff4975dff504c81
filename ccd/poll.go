package ccd

import (
	"context"
	"sync/atomic"
	"time"
)

// Poller waits for a hardware operation that offers no completion
// notification.  Each iteration sleeps Pause, asks Complete, then checks
// for abort and for the deadline, so an abort is seen at most one Pause
// (plus one Complete call) after it is requested.
type Poller struct {
	// Op names the operation in errors and log messages
	Op string

	// Pause is the sleep between status queries
	Pause time.Duration

	// Deadline is the wall clock time after which polling fails with Timeout.
	// The zero time disables the check.
	Deadline time.Time

	// Abort is checked every iteration alongside ctx
	Abort *atomic.Bool

	// Complete reports if the operation has finished.  An error ends polling
	// immediately without calling Cancel.
	Complete func() (bool, error)

	// Cancel is issued, best effort, on abort or timeout
	Cancel func() error

	// Log receives cancel failures
	Log *Logger
}

func (p *Poller) aborted(ctx context.Context) bool {
	if p.Abort != nil && p.Abort.Load() {
		return true
	}
	return ctx.Err() != nil
}

// cancel runs Cancel and logs, but otherwise discards, its failure
func (p *Poller) cancel(reason string) {
	if p.Cancel == nil {
		return
	}
	if err := p.Cancel(); err != nil {
		p.Log.Logf(LogExposure, "%s: cancel after %s failed: %v", p.Op, reason, err)
	}
}

// Run polls until Complete reports true, Complete fails, the poller is
// aborted (Abort set or ctx done) or the deadline passes
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := sleep(ctx, p.Pause); err != nil {
			// ctx ended during the pause; treated exactly like an abort
			p.cancel("abort")
			return Errorf(Aborted, p.Op, "aborted: %v", err)
		}
		done, err := p.Complete()
		if err != nil {
			return err
		}
		if p.aborted(ctx) {
			p.cancel("abort")
			return Errorf(Aborted, p.Op, "aborted")
		}
		if done {
			return nil
		}
		if !p.Deadline.IsZero() && time.Now().After(p.Deadline) {
			p.cancel("timeout")
			return Errorf(Timeout, p.Op, "timed out at %s", p.Deadline.Format(time.RFC3339Nano))
		}
	}
}

// WaitUntil blocks until start, sleeping a second at a time while more than
// a second remains and then the exact remainder.  Abort and ctx are checked
// before every sleep and after the last one.
func WaitUntil(ctx context.Context, start time.Time, abort *atomic.Bool) error {
	const op = "WaitStart"
	for {
		if (abort != nil && abort.Load()) || ctx.Err() != nil {
			return Errorf(Aborted, op, "aborted before start time %s", start.Format(time.RFC3339Nano))
		}
		remaining := time.Until(start)
		if remaining <= 0 {
			return nil
		}
		if remaining > time.Second {
			remaining = time.Second
		}
		if err := sleep(ctx, remaining); err != nil {
			return Errorf(Aborted, op, "aborted before start time: %v", err)
		}
	}
}

// sleep pauses for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
