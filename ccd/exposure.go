package ccd

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Phase is the step an exposure is in
type Phase int32

const (
	// PhaseNone is the phase before and after every exposure
	PhaseNone Phase = iota
	PhaseWaitStart
	PhaseClear
	PhaseExpose
	PhasePreReadout
	PhaseReadout
	PhasePostReadout
)

var phaseNames = [...]string{"NONE", "WAIT_START", "CLEAR", "EXPOSE", "PRE_READOUT", "READOUT", "POST_READOUT"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

const (
	// DefaultPause is the poll interval of a new Exposure
	DefaultPause = time.Millisecond

	// MinPause and MaxPause bound SetPause
	MinPause = time.Millisecond
	MaxPause = 999 * time.Millisecond

	// DefaultMargin is how long past its length an exposure may run before
	// it is cancelled with a Timeout
	DefaultMargin = 30 * time.Second
)

// Acquirer is the vendor specific half of an exposure.  Run drives it; it
// is never called concurrently.
type Acquirer interface {
	// Program sets the shutter mode and exposure length
	Program(openShutter bool, length time.Duration) error

	// Start begins the acquisition
	Start() error

	// Complete reports if the acquisition has finished and data is ready
	Complete() (bool, error)

	// Cancel stops an acquisition in progress
	Cancel() error

	// Readout transfers cols*rows pixels into buf
	Readout(buf []uint16, cols, rows int) error
}

// Exposure is the exposure state of one backend instance.  Run may only be
// called by one goroutine at a time; Abort and the getters may be called
// from any goroutine while Run blocks.
type Exposure struct {
	phase  atomic.Int32
	abort  atomic.Bool
	pause  atomic.Int64
	margin atomic.Int64

	mu     sync.Mutex
	start  time.Time
	length time.Duration

	log *Logger
}

// NewExposure returns an idle exposure with the default pause and margin
func NewExposure(log *Logger) *Exposure {
	e := &Exposure{log: log}
	e.pause.Store(int64(DefaultPause))
	e.margin.Store(int64(DefaultMargin))
	return e
}

// Phase returns the current phase
func (e *Exposure) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *Exposure) setPhase(p Phase) {
	e.phase.Store(int32(p))
}

// Abort asks a running exposure to stop.  It does not block.
func (e *Exposure) Abort() {
	e.log.Log(LogExposure, "exposure abort requested")
	e.abort.Store(true)
}

// StartTime is when the last acquisition was started
func (e *Exposure) StartTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.start
}

// Length is the last programmed exposure length
func (e *Exposure) Length() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.length
}

// Pause is the poll interval
func (e *Exposure) Pause() time.Duration {
	return time.Duration(e.pause.Load())
}

// SetPause sets the poll interval, which must lie in [MinPause, MaxPause]
func (e *Exposure) SetPause(d time.Duration) error {
	if d < MinPause || d > MaxPause {
		return Errorf(InvalidArgument, "SetLoopPauseLength", "pause %v outside [%v, %v]", d, MinPause, MaxPause)
	}
	e.pause.Store(int64(d))
	return nil
}

// Margin is the timeout margin past the exposure length
func (e *Exposure) Margin() time.Duration {
	return time.Duration(e.margin.Load())
}

// SetMargin sets the timeout margin
func (e *Exposure) SetMargin(d time.Duration) error {
	if d <= 0 {
		return Errorf(InvalidArgument, "SetTimeoutMargin", "margin %v must be positive", d)
	}
	e.margin.Store(int64(d))
	return nil
}

// Run performs one exposure: program, wait for start, acquire, poll to
// completion and read out into buf, which must hold at least cols*rows
// pixels.  A zero start begins immediately.  The phase is PhaseNone when
// Run returns, whatever the outcome.
func (e *Exposure) Run(ctx context.Context, acq Acquirer, openShutter bool, start time.Time, length time.Duration, buf []uint16, cols, rows int) error {
	const op = "Expose"
	if buf == nil {
		return Errorf(InvalidArgument, op, "buffer was nil")
	}
	if cols <= 0 || rows <= 0 {
		return Errorf(InvalidArgument, op, "dimensions not configured (%dx%d)", cols, rows)
	}
	if len(buf) < cols*rows {
		return Errorf(InvalidArgument, op, "buffer of %d pixels is too small for %dx%d", len(buf), cols, rows)
	}
	if length < 0 {
		return Errorf(InvalidArgument, op, "negative exposure length %v", length)
	}
	e.log.Logf(LogExposure, "expose(open_shutter=%t, start=%s, length=%v, %dx%d)", openShutter, start.Format(time.RFC3339Nano), length, cols, rows)
	// cleared before programming so an abort from here on is never lost
	e.abort.Store(false)
	if err := acq.Program(openShutter, length); err != nil {
		return err
	}
	e.mu.Lock()
	e.length = length
	e.mu.Unlock()
	defer e.setPhase(PhaseNone)
	if e.abort.Load() {
		return Errorf(Aborted, op, "aborted while programming the exposure")
	}

	if !start.IsZero() {
		e.setPhase(PhaseWaitStart)
		e.log.Logf(LogExposure, "waiting for start time %s", start.Format(time.RFC3339Nano))
		if err := WaitUntil(ctx, start, &e.abort); err != nil {
			return err
		}
	}

	e.setPhase(PhaseExpose)
	begun := time.Now()
	e.mu.Lock()
	e.start = begun
	e.mu.Unlock()
	if err := acq.Start(); err != nil {
		return err
	}

	p := Poller{
		Op:       op,
		Pause:    e.Pause(),
		Deadline: begun.Add(length + e.Margin()),
		Abort:    &e.abort,
		Complete: acq.Complete,
		Cancel:   acq.Cancel,
		Log:      e.log,
	}
	if err := p.Run(ctx); err != nil {
		e.log.Logf(LogExposure, "exposure failed: %v", err)
		return err
	}

	e.setPhase(PhaseReadout)
	if err := acq.Readout(buf[:cols*rows], cols, rows); err != nil {
		return err
	}
	e.log.Logf(LogExposure, "exposure complete after %v", time.Since(begun))
	return nil
}
