package ccd

import (
	"context"
	"sync"
	"time"

	"github.com/LivTel/autoguider-sub002/temperature"
)

// fakeDriver is a minimal backend: an Exposure over a fakeAcquirer and a
// sensor that warms by Step every read
type fakeDriver struct {
	Unimplemented

	mu      sync.Mutex
	calls   []string
	exp     *Exposure
	acq     *fakeAcquirer
	cols    int
	rows    int
	temp    temperature.Celsius
	target  temperature.Celsius
	step    temperature.Celsius
	readErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{exp: NewExposure(nil), acq: &fakeAcquirer{}, temp: -40}
}

func (d *fakeDriver) record(name string) {
	d.mu.Lock()
	d.calls = append(d.calls, name)
	d.mu.Unlock()
}

func (d *fakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDriver) Exposure() *Exposure { return d.exp }

func (d *fakeDriver) SetupStartup(context.Context) error {
	d.record("SetupStartup")
	return nil
}

func (d *fakeDriver) SetupDimensions(ncols, nrows, hbin, vbin int, useWindow bool, w Window) error {
	d.record("SetupDimensions")
	d.cols, d.rows = ncols/hbin, nrows/vbin
	return nil
}

func (d *fakeDriver) SetupShutdown() error {
	d.record("SetupShutdown")
	return nil
}

func (d *fakeDriver) Columns() (int, error) { return d.cols, nil }
func (d *fakeDriver) Rows() (int, error)    { return d.rows, nil }

func (d *fakeDriver) Expose(ctx context.Context, open bool, start time.Time, length time.Duration, buf []uint16) error {
	d.record("Expose")
	return d.exp.Run(ctx, d.acq, open, start, length, buf, d.cols, d.rows)
}

func (d *fakeDriver) Bias(ctx context.Context, buf []uint16) error {
	d.record("Bias")
	return d.exp.Run(ctx, d.acq, false, time.Time{}, 0, buf, d.cols, d.rows)
}

func (d *fakeDriver) AbortExposure() error {
	d.exp.Abort()
	return nil
}

func (d *fakeDriver) ExposurePhase() Phase { return d.exp.Phase() }

func (d *fakeDriver) SetLoopPauseLength(p time.Duration) error {
	d.record("SetLoopPauseLength")
	return d.exp.SetPause(p)
}

func (d *fakeDriver) Temperature() (temperature.Celsius, TemperatureStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		err := d.readErr
		d.readErr = nil
		return 0, StatusUnknown, err
	}
	d.temp += d.step
	return d.temp, StatusFromSetpoint(d.temp, d.target), nil
}

func (d *fakeDriver) SetTemperature(t temperature.Celsius) error {
	d.record("SetTemperature")
	d.mu.Lock()
	d.target = t
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) CoolerOn() error {
	d.record("CoolerOn")
	return nil
}

func (d *fakeDriver) CoolerOff() error {
	d.record("CoolerOff")
	return nil
}

// mapConfig is a Config over a plain map
type mapConfig map[string]interface{}

func (m mapConfig) get(key string) (interface{}, error) {
	v, ok := m[key]
	if !ok {
		return nil, Errorf(InvalidArgument, "config", "%s not set", key)
	}
	return v, nil
}

func (m mapConfig) String(key string) (string, error) {
	v, err := m.get(key)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m mapConfig) Int(key string) (int, error) {
	v, err := m.get(key)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (m mapConfig) Float(key string) (float64, error) {
	v, err := m.get(key)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (m mapConfig) Bool(key string) (bool, error) {
	v, err := m.get(key)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func defaultConfig() mapConfig {
	return mapConfig{
		KeyTargetTemperature: -20.0,
		KeyCoolerOn:          true,
		KeyCoolerOff:         true,
		KeyRampToAmbient:     false,
		KeyLoopPauseLength:   1,
		KeyTimeoutMargin:     100,
	}
}
