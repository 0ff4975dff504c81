/*Package fli is the Finger Lakes Instrumentation backend of the ccd layer

The camera is reached through the SDK interface; fli/libfli implements it
with cgo against libfli and Simulator implements it in process.

FLI image areas have an exclusive lower right corner, and the visible area
is offset from the array origin by the bias strips, so a window is shifted
by the visible origin and its upper bounds moved one past the last pixel.
The camera reports no discrete cooling state; the status is inferred from
the distance to the last target.
*/
package fli

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/temperature"
	"github.com/astrogo/fitsio"
)

// KeyDeviceName is the configuration key of the device path
const KeyDeviceName = "ccd.fli.setup.device_name"

// Device is an open libfli handle
type Device int64

// libfli constants
const (
	DomainUSB    = 0x02
	DeviceCamera = 0x100

	FrameTypeNormal = 0
	FrameTypeDark   = 1

	CameraStatusUnknown           uint32 = 0xffffffff
	CameraStatusMask              uint32 = 0x00000003
	CameraStatusIdle              uint32 = 0x00
	CameraStatusWaitingForTrigger uint32 = 0x01
	CameraStatusExposing          uint32 = 0x02
	CameraStatusReadingCCD        uint32 = 0x03
	CameraDataReady               uint32 = 0x80000000
)

// SDK is the part of libfli the backend calls.  Codes are zero on success
// and a negated errno on failure.
type SDK interface {
	Open(name string, domain int) (Device, int64)
	Close(dev Device) int64
	GetArrayArea(dev Device) (ulx, uly, lrx, lry int, code int64)
	GetVisibleArea(dev Device) (ulx, uly, lrx, lry int, code int64)
	SetHBin(dev Device, bin int) int64
	SetVBin(dev Device, bin int) int64
	SetImageArea(dev Device, ulx, uly, lrx, lry int) int64
	SetFrameType(dev Device, typ int) int64
	SetExposureTime(dev Device, ms int64) int64
	ExposeFrame(dev Device) int64
	GetDeviceStatus(dev Device) (uint32, int64)
	CancelExposure(dev Device) int64
	GrabRow(dev Device, row []uint16) int64
	GetTemperature(dev Device) (float64, int64)
	SetTemperature(dev Device, t float64) int64
	GetCoolerPower(dev Device) (float64, int64)
}

// check translates a libfli return code into a ccd error
func check(op string, code int64) error {
	if code == 0 {
		return nil
	}
	return ccd.HardwareError(op, int(code), "%s failed %s", op, syscall.Errno(-code).Error())
}

// Camera is an FLI camera implementing ccd.Driver
type Camera struct {
	sdk SDK
	cfg ccd.Config
	log *ccd.Logger
	exp *ccd.Exposure

	mu        sync.RWMutex
	dev       Device
	name      string
	open      bool
	geom      ccd.Geometry
	target    temperature.Celsius
	hasTarget bool
}

var (
	_ ccd.Driver             = (*Camera)(nil)
	_ ccd.PhaseReporter      = (*Camera)(nil)
	_ ccd.CapabilityReporter = (*Camera)(nil)
)

// New returns an unopened camera
func New(sdk SDK, cfg ccd.Config, log *ccd.Logger) *Camera {
	return &Camera{sdk: sdk, cfg: cfg, log: log, exp: ccd.NewExposure(log)}
}

// Factory adapts New to a ccd.Catalog entry
func Factory(sdk SDK) ccd.Factory {
	return func(cfg ccd.Config, log *ccd.Logger) (ccd.Driver, error) {
		return New(sdk, cfg, log), nil
	}
}

// Exposure exposes the camera's exposure state
func (c *Camera) Exposure() *ccd.Exposure {
	return c.exp
}

func (c *Camera) state() (Device, bool, ccd.Geometry) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dev, c.open, c.geom
}

// SetupStartup opens the configured device and reads its array and visible
// areas
func (c *Camera) SetupStartup(ctx context.Context) error {
	const op = "FLI_Setup_Startup"
	name, err := c.cfg.String(KeyDeviceName)
	if err != nil {
		return ccd.Errorf(ccd.InvalidArgument, op, "get %s: %v", KeyDeviceName, err)
	}
	if dev, open, _ := c.state(); open {
		c.log.Log(ccd.LogSetup, "device already open, closing it first")
		c.closeQuietly(dev)
		c.mu.Lock()
		c.open = false
		c.geom = ccd.Geometry{}
		c.mu.Unlock()
	}
	c.log.Logf(ccd.LogSetup, "FLIOpen(%s)", name)
	dev, code := c.sdk.Open(name, DomainUSB|DeviceCamera)
	if err := check("FLIOpen", code); err != nil {
		return err
	}
	var det, vis ccd.Area
	det.Left, det.Top, det.Right, det.Bottom, code = c.sdk.GetArrayArea(dev)
	if err := check("FLIGetArrayArea", code); err != nil {
		c.closeQuietly(dev)
		return err
	}
	vis.Left, vis.Top, vis.Right, vis.Bottom, code = c.sdk.GetVisibleArea(dev)
	if err := check("FLIGetVisibleArea", code); err != nil {
		c.closeQuietly(dev)
		return err
	}
	c.log.Logf(ccd.LogSetup, "array area %+v, visible area %+v", det, vis)
	c.mu.Lock()
	c.dev, c.name, c.open = dev, name, true
	c.geom = ccd.NewGeometry(det, vis, true)
	c.mu.Unlock()
	return nil
}

// closeQuietly closes dev and logs, but otherwise discards, a failure
func (c *Camera) closeQuietly(dev Device) {
	if err := check("FLIClose", c.sdk.Close(dev)); err != nil {
		c.log.Logf(ccd.LogSetup, "closing device failed: %v", err)
	}
}

// SetupDimensions programs binning and the image area.  The new geometry
// is kept only if every call succeeds.
func (c *Camera) SetupDimensions(ncols, nrows, hbin, vbin int, useWindow bool, w ccd.Window) error {
	dev, open, cur := c.state()
	if !open {
		return ccd.Errorf(ccd.InvalidArgument, "FLI_Setup_Dimensions", "camera not started")
	}
	g, err := cur.Configure(ncols, nrows, hbin, vbin, useWindow, w)
	if err != nil {
		return err
	}
	if err := check("FLISetHBin", c.sdk.SetHBin(dev, hbin)); err != nil {
		return err
	}
	if err := check("FLISetVBin", c.sdk.SetVBin(dev, vbin)); err != nil {
		return err
	}
	// libfli takes the lower right corner in binned pixels from the upper left
	ulx, uly := g.Image.Left, g.Image.Top
	lrx, lry := ulx+g.Columns(), uly+g.Rows()
	c.log.Logf(ccd.LogSetup, "FLISetImageArea(ulx=%d,uly=%d,lrx=%d,lry=%d)", ulx, uly, lrx, lry)
	if err := check("FLISetImageArea", c.sdk.SetImageArea(dev, ulx, uly, lrx, lry)); err != nil {
		return err
	}
	c.mu.Lock()
	c.geom = g
	c.mu.Unlock()
	return nil
}

// SetupAbort does nothing
func (c *Camera) SetupAbort() error {
	return nil
}

// Columns is the binned width of the image area
func (c *Camera) Columns() (int, error) {
	_, _, g := c.state()
	return g.Columns(), nil
}

// Rows is the binned height of the image area
func (c *Camera) Rows() (int, error) {
	_, _, g := c.state()
	return g.Rows(), nil
}

// SetupShutdown closes the device
func (c *Camera) SetupShutdown() error {
	dev, open, _ := c.state()
	if !open {
		return nil
	}
	if err := check("FLIClose", c.sdk.Close(dev)); err != nil {
		return err
	}
	c.mu.Lock()
	c.open = false
	c.geom = ccd.Geometry{}
	c.mu.Unlock()
	return nil
}

// Expose takes an exposure into buf
func (c *Camera) Expose(ctx context.Context, openShutter bool, start time.Time, length time.Duration, buf []uint16) error {
	dev, open, g := c.state()
	if !open {
		return ccd.Errorf(ccd.InvalidArgument, "FLI_Exposure_Expose", "camera not started")
	}
	return c.exp.Run(ctx, acquisition{sdk: c.sdk, dev: dev}, openShutter, start, length, buf, g.Columns(), g.Rows())
}

// Bias reads out a dark, zero length frame
func (c *Camera) Bias(ctx context.Context, buf []uint16) error {
	return c.Expose(ctx, false, time.Time{}, 0, buf)
}

// AbortExposure flags the running exposure to stop
func (c *Camera) AbortExposure() error {
	c.exp.Abort()
	return nil
}

// ExposureStartTime is when FLIExposeFrame was last issued
func (c *Camera) ExposureStartTime() (time.Time, error) {
	return c.exp.StartTime(), nil
}

// ExposurePhase is the current exposure phase
func (c *Camera) ExposurePhase() ccd.Phase {
	return c.exp.Phase()
}

// SetLoopPauseLength sets the device status poll interval
func (c *Camera) SetLoopPauseLength(d time.Duration) error {
	return c.exp.SetPause(d)
}

// Capabilities declares implicit cooling and row by row readout
func (c *Camera) Capabilities() ccd.Capability {
	return ccd.CapCoolerImplicit | ccd.CapRowReadout
}

// Temperature reads the sensor.  The status is StatusUnknown until a
// target has been set, then inferred with ccd.StatusFromSetpoint.
func (c *Camera) Temperature() (temperature.Celsius, ccd.TemperatureStatus, error) {
	c.mu.RLock()
	dev, target, has := c.dev, c.target, c.hasTarget
	c.mu.RUnlock()
	t, code := c.sdk.GetTemperature(dev)
	if err := check("FLIGetTemperature", code); err != nil {
		return 0, ccd.StatusUnknown, err
	}
	cur := temperature.Celsius(t)
	st := ccd.StatusUnknown
	if has {
		st = ccd.StatusFromSetpoint(cur, target)
	}
	c.log.Logf(ccd.LogTemperature, "FLIGetTemperature returned %.2f C, status %s", t, st)
	return cur, st, nil
}

// SetTemperature sets the target.  Cooling starts with it.
func (c *Camera) SetTemperature(t temperature.Celsius) error {
	c.mu.RLock()
	dev := c.dev
	c.mu.RUnlock()
	if err := check("FLISetTemperature", c.sdk.SetTemperature(dev, float64(t))); err != nil {
		return err
	}
	c.mu.Lock()
	c.target, c.hasTarget = t, true
	c.mu.Unlock()
	return nil
}

// CoolerOn does nothing; setting the temperature turns the cooler on
func (c *Camera) CoolerOn() error {
	return nil
}

// CoolerOff does nothing; FLI heads have no separate cooler switch
func (c *Camera) CoolerOff() error {
	return nil
}

// CoolerPower is the TEC drive in percent
func (c *Camera) CoolerPower() (float64, error) {
	c.mu.RLock()
	dev := c.dev
	c.mu.RUnlock()
	p, code := c.sdk.GetCoolerPower(dev)
	return p, check("FLIGetCoolerPower", code)
}

// CollectHeaderMetadata produces FITS cards describing the camera and the
// last exposure
func (c *Camera) CollectHeaderMetadata() []fitsio.Card {
	c.mu.RLock()
	g, name := c.geom, c.name
	c.mu.RUnlock()
	return []fitsio.Card{
		{Name: "INSTRUME", Value: "FLI", Comment: "camera backend"},
		{Name: "CCDDEV", Value: name, Comment: "libfli device"},
		{Name: "EXPTIME", Value: c.exp.Length().Seconds(), Comment: "exposure time in seconds"},
		{Name: "CCDXBIN", Value: g.HBin, Comment: "horizontal binning"},
		{Name: "CCDYBIN", Value: g.VBin, Comment: "vertical binning"},
		{Name: "CCDXIMSI", Value: g.Columns(), Comment: "binned columns"},
		{Name: "CCDYIMSI", Value: g.Rows(), Comment: "binned rows"},
	}
}

// acquisition is the libfli half of the exposure state machine
type acquisition struct {
	sdk SDK
	dev Device
}

func (a acquisition) Program(openShutter bool, length time.Duration) error {
	typ := FrameTypeDark
	if openShutter {
		typ = FrameTypeNormal
	}
	if err := check("FLISetFrameType", a.sdk.SetFrameType(a.dev, typ)); err != nil {
		return err
	}
	return check("FLISetExposureTime", a.sdk.SetExposureTime(a.dev, length.Milliseconds()))
}

func (a acquisition) Start() error {
	return check("FLIExposeFrame", a.sdk.ExposeFrame(a.dev))
}

// Complete is true once the data ready bit is set.  An unknown status keeps
// polling; the deadline bounds it.
func (a acquisition) Complete() (bool, error) {
	status, code := a.sdk.GetDeviceStatus(a.dev)
	if err := check("FLIGetDeviceStatus", code); err != nil {
		return false, err
	}
	if status == CameraStatusUnknown {
		return false, nil
	}
	return status&CameraDataReady != 0, nil
}

func (a acquisition) Cancel() error {
	return check("FLICancelExposure", a.sdk.CancelExposure(a.dev))
}

// Readout grabs one binned row at a time
func (a acquisition) Readout(buf []uint16, cols, rows int) error {
	for y := 0; y < rows; y++ {
		if err := check("FLIGrabRow", a.sdk.GrabRow(a.dev, buf[y*cols:(y+1)*cols])); err != nil {
			return err
		}
	}
	return nil
}
