package ccd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LivTel/autoguider-sub002/temperature"
)

// MaxBufferPixels bounds AllocateBuffer
const MaxBufferPixels = 1 << 26

// Session is the client's handle on one camera.  It holds the active
// driver and the last-error state, and every call through it is logged and
// has its failure recorded.
//
// Except for AbortExposure, ExposurePhase and the error accessors, a
// Session's methods must not be called concurrently; the caller serializes
// them.
type Session struct {
	mu     sync.RWMutex
	driver Driver

	log     *Logger
	errs    ErrorState
	metrics *Metrics
}

// NewSession returns a session with no driver.  log and m may be nil.
func NewSession(log *Logger, m *Metrics) *Session {
	return &Session{log: log, metrics: m}
}

// Logger returns the session's logger
func (s *Session) Logger() *Logger {
	return s.log
}

// Errors returns the session's last-error state
func (s *Session) Errors() *ErrorState {
	return &s.errs
}

// Register makes d the active driver.  A nil d fails with InvalidArgument
// and leaves the active driver as it was.
func (s *Session) Register(d Driver) error {
	if d == nil {
		return s.fail("Register", Errorf(InvalidArgument, "Register", "driver was nil"))
	}
	s.mu.Lock()
	s.driver = d
	s.mu.Unlock()
	s.log.Log(LogGeneral, "driver registered")
	return nil
}

// Close forgets the active driver.  It does not shut the camera down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return s.fail("Close", Errorf(UnsupportedOperation, "Close", "no driver registered"))
	}
	s.driver = nil
	return nil
}

// Driver returns the active driver, or nil
func (s *Session) Driver() Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver
}

func (s *Session) active(op string) (Driver, error) {
	d := s.Driver()
	if d == nil {
		return nil, s.fail(op, Errorf(UnsupportedOperation, op, "no driver registered"))
	}
	return d, nil
}

// fail records err as the last error and returns it.  A bare
// ErrNotImplemented gains the operation name.
func (s *Session) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == ErrNotImplemented {
		err = &Error{Kind: UnsupportedOperation, Op: op, Msg: "not implemented by the registered driver"}
	}
	s.errs.Set(err)
	s.metrics.observeFailure(op, err)
	s.log.Logf(LogGeneral, "%s failed: %v", op, err)
	return err
}

func (s *Session) call(op string, level Level, fn func(Driver) error) error {
	d, err := s.active(op)
	if err != nil {
		return err
	}
	s.log.Logf(level, "%s started", op)
	if err = fn(d); err != nil {
		return s.fail(op, err)
	}
	s.log.Logf(level, "%s finished", op)
	return nil
}

// SetupStartup opens the camera
func (s *Session) SetupStartup(ctx context.Context) error {
	return s.call("SetupStartup", LogSetup, func(d Driver) error { return d.SetupStartup(ctx) })
}

// SetupDimensions selects binning and the image area.  When useWindow is
// false, w is ignored and the full ncols x nrows field is read.
func (s *Session) SetupDimensions(ncols, nrows, hbin, vbin int, useWindow bool, w Window) error {
	return s.call("SetupDimensions", LogSetup, func(d Driver) error {
		return d.SetupDimensions(ncols, nrows, hbin, vbin, useWindow, w)
	})
}

// SetupAbort interrupts a setup in progress
func (s *Session) SetupAbort() error {
	return s.call("SetupAbort", LogSetup, func(d Driver) error { return d.SetupAbort() })
}

// SetupShutdown closes the camera
func (s *Session) SetupShutdown() error {
	return s.call("SetupShutdown", LogSetup, func(d Driver) error { return d.SetupShutdown() })
}

// Columns is the binned readout width
func (s *Session) Columns() (int, error) {
	var n int
	err := s.call("GetColumns", LogSetup, func(d Driver) (err error) {
		n, err = d.Columns()
		return err
	})
	return n, err
}

// Rows is the binned readout height
func (s *Session) Rows() (int, error) {
	var n int
	err := s.call("GetRows", LogSetup, func(d Driver) (err error) {
		n, err = d.Rows()
		return err
	})
	return n, err
}

// AllocateBuffer returns a buffer sized for the current dimensions
func (s *Session) AllocateBuffer() ([]uint16, error) {
	cols, err := s.Columns()
	if err != nil {
		return nil, err
	}
	rows, err := s.Rows()
	if err != nil {
		return nil, err
	}
	n := cols * rows
	if n <= 0 || n > MaxBufferPixels {
		return nil, s.fail("AllocateBuffer", Errorf(AllocationFailed, "AllocateBuffer", "cannot allocate %dx%d pixels", cols, rows))
	}
	return make([]uint16, n), nil
}

// Expose takes an exposure of length into buf, starting at start or
// immediately if start is zero.  It blocks until the readout completes,
// the exposure is aborted or it times out.
func (s *Session) Expose(ctx context.Context, openShutter bool, start time.Time, length time.Duration, buf []uint16) error {
	typ := "dark"
	if openShutter {
		typ = "expose"
	}
	began := time.Now()
	err := s.call("Expose", LogExposure, func(d Driver) error {
		return d.Expose(ctx, openShutter, start, length, buf)
	})
	s.metrics.observeExposure(typ, began, err)
	return err
}

// Bias reads out a zero length, closed shutter frame into buf
func (s *Session) Bias(ctx context.Context, buf []uint16) error {
	began := time.Now()
	err := s.call("Bias", LogExposure, func(d Driver) error { return d.Bias(ctx, buf) })
	s.metrics.observeExposure("bias", began, err)
	return err
}

// AbortExposure stops a running exposure.  It is safe to call while
// Expose or Bias is blocked in another goroutine.
func (s *Session) AbortExposure() error {
	return s.call("AbortExposure", LogExposure, func(d Driver) error { return d.AbortExposure() })
}

// ExposureStartTime is when the last acquisition started
func (s *Session) ExposureStartTime() (time.Time, error) {
	var t time.Time
	err := s.call("GetExposureStartTime", LogExposure, func(d Driver) (err error) {
		t, err = d.ExposureStartTime()
		return err
	})
	return t, err
}

// ExposurePhase reports the driver's exposure phase, if it exposes one
func (s *Session) ExposurePhase() (Phase, error) {
	var p Phase
	err := s.call("GetExposurePhase", LogExposure, func(d Driver) error {
		pr, ok := d.(PhaseReporter)
		if !ok {
			return ErrNotImplemented
		}
		p = pr.ExposurePhase()
		return nil
	})
	return p, err
}

// Capabilities returns what the active driver declares, or zero
func (s *Session) Capabilities() Capability {
	if cr, ok := s.Driver().(CapabilityReporter); ok {
		return cr.Capabilities()
	}
	return 0
}

// SetLoopPauseLength sets the completion poll interval
func (s *Session) SetLoopPauseLength(d time.Duration) error {
	return s.call("SetLoopPauseLength", LogExposure, func(dr Driver) error { return dr.SetLoopPauseLength(d) })
}

// Temperature reads the sensor temperature and cooling status
func (s *Session) Temperature() (temperature.Celsius, TemperatureStatus, error) {
	var (
		t  temperature.Celsius
		st TemperatureStatus
	)
	err := s.call("TemperatureGet", LogTemperature, func(d Driver) (err error) {
		t, st, err = d.Temperature()
		return err
	})
	if err == nil {
		s.metrics.observeTemperature(float64(t), st)
	}
	return t, st, err
}

// SetTemperature sets the target temperature
func (s *Session) SetTemperature(t temperature.Celsius) error {
	return s.call("TemperatureSet", LogTemperature, func(d Driver) error { return d.SetTemperature(t) })
}

// CoolerOn turns the cooler on
func (s *Session) CoolerOn() error {
	return s.call("CoolerOn", LogTemperature, func(d Driver) error { return d.CoolerOn() })
}

// CoolerOff turns the cooler off
func (s *Session) CoolerOff() error {
	return s.call("CoolerOff", LogTemperature, func(d Driver) error { return d.CoolerOff() })
}

// IsUnsupported reports if err came from an operation the driver lacks
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrNotImplemented)
}
