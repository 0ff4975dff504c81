/*Package ccd is a hardware abstraction layer for autoguider cameras.

A backend (andor, fli) implements Driver.  The upstream client holds a
Session, registers one Driver with it and then calls only the Session, which
records failures in an ErrorState and logs through a Logger.  Backends share
the exposure state machine (Exposure), the completion poller (Poller), the
windowing translator (Geometry) and the temperature taxonomy
(TemperatureStatus) defined here.

*/
package ccd

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LivTel/autoguider-sub002/temperature"
)

// Driver is the set of operations a camera backend offers.  A backend
// which cannot perform an operation returns ErrNotImplemented; embedding
// Unimplemented provides that for every method.
type Driver interface {
	// SetupStartup opens the camera and reads its geometry
	SetupStartup(ctx context.Context) error

	// SetupDimensions selects binning and the image area
	SetupDimensions(ncols, nrows, hbin, vbin int, useWindow bool, w Window) error

	// SetupAbort interrupts a setup in progress
	SetupAbort() error

	// Columns is the binned readout width of the last successful SetupDimensions
	Columns() (int, error)

	// Rows is the binned readout height of the last successful SetupDimensions
	Rows() (int, error)

	// SetupShutdown closes the camera
	SetupShutdown() error

	// Expose takes an image into buf.  A zero start begins immediately.
	Expose(ctx context.Context, openShutter bool, start time.Time, length time.Duration, buf []uint16) error

	// Bias reads out a zero length exposure with the shutter closed
	Bias(ctx context.Context, buf []uint16) error

	// AbortExposure stops a running Expose or Bias.  It must not block.
	AbortExposure() error

	// ExposureStartTime is when the last acquisition started
	ExposureStartTime() (time.Time, error)

	// SetLoopPauseLength sets the completion poll interval
	SetLoopPauseLength(time.Duration) error

	// Temperature reads the sensor temperature and cooling status
	Temperature() (temperature.Celsius, TemperatureStatus, error)

	// SetTemperature sets the target temperature
	SetTemperature(temperature.Celsius) error

	// CoolerOn turns the cooler on
	CoolerOn() error

	// CoolerOff turns the cooler off
	CoolerOff() error
}

// PhaseReporter is implemented by drivers which expose their exposure phase
type PhaseReporter interface {
	ExposurePhase() Phase
}

// Capability flags backend behaviour a caller may need to know about
type Capability uint

const (
	// CapCoolerImplicit means cooling follows the target temperature and
	// CoolerOn and CoolerOff succeed without touching the hardware
	CapCoolerImplicit Capability = 1 << iota

	// CapTemperatureStatus means the hardware reports a discrete cooling
	// status rather than one inferred from the target
	CapTemperatureStatus

	// CapRowReadout means the readout is transferred row by row
	CapRowReadout
)

// Has reports if every bit of o is set in c
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

func (c Capability) String() string {
	var parts []string
	for _, n := range []struct {
		bit  Capability
		name string
	}{
		{CapCoolerImplicit, "cooler-implicit"},
		{CapTemperatureStatus, "temperature-status"},
		{CapRowReadout, "row-readout"},
	} {
		if c.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CapabilityReporter is implemented by drivers which declare capabilities
type CapabilityReporter interface {
	Capabilities() Capability
}

// Unimplemented returns ErrNotImplemented from every Driver method.
// Embed it in a backend and override what the backend supports.
type Unimplemented struct{}

func (Unimplemented) SetupStartup(context.Context) error { return ErrNotImplemented }
func (Unimplemented) SetupDimensions(int, int, int, int, bool, Window) error {
	return ErrNotImplemented
}
func (Unimplemented) SetupAbort() error                    { return ErrNotImplemented }
func (Unimplemented) Columns() (int, error)                { return 0, ErrNotImplemented }
func (Unimplemented) Rows() (int, error)                   { return 0, ErrNotImplemented }
func (Unimplemented) SetupShutdown() error                 { return ErrNotImplemented }
func (Unimplemented) AbortExposure() error                 { return ErrNotImplemented }
func (Unimplemented) Bias(context.Context, []uint16) error { return ErrNotImplemented }
func (Unimplemented) Expose(context.Context, bool, time.Time, time.Duration, []uint16) error {
	return ErrNotImplemented
}
func (Unimplemented) ExposureStartTime() (time.Time, error)    { return time.Time{}, ErrNotImplemented }
func (Unimplemented) SetLoopPauseLength(time.Duration) error   { return ErrNotImplemented }
func (Unimplemented) SetTemperature(temperature.Celsius) error { return ErrNotImplemented }
func (Unimplemented) CoolerOn() error                          { return ErrNotImplemented }
func (Unimplemented) CoolerOff() error                         { return ErrNotImplemented }
func (Unimplemented) Temperature() (temperature.Celsius, TemperatureStatus, error) {
	return 0, StatusUnknown, ErrNotImplemented
}

// Config is the key lookup a backend reads its settings through
type Config interface {
	String(key string) (string, error)
	Int(key string) (int, error)
	Float(key string) (float64, error)
	Bool(key string) (bool, error)
}

// KeyDriverName selects the backend a Catalog opens
const KeyDriverName = "ccd.driver.name"

// Factory builds a driver from configuration
type Factory func(cfg Config, log *Logger) (Driver, error)

// Catalog maps backend names to factories.  The zero value is ready to use.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Add makes a backend available under name, replacing any previous one
func (c *Catalog) Add(name string, f Factory) error {
	if name == "" || f == nil {
		return Errorf(InvalidArgument, "Catalog.Add", "backend %q has no factory", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.factories == nil {
		c.factories = make(map[string]Factory)
	}
	c.factories[name] = f
	return nil
}

// Names lists the available backends in order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for k := range c.factories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Open builds the named backend
func (c *Catalog) Open(name string, cfg Config, log *Logger) (Driver, error) {
	c.mu.RLock()
	f, ok := c.factories[name]
	c.mu.RUnlock()
	if !ok {
		return nil, Errorf(InvalidArgument, "Catalog.Open", "no backend named %q (have %v)", name, c.Names())
	}
	log.Logf(LogGeneral, "opening backend %s", name)
	return f(cfg, log)
}
