/*Package andor is the Andor backend of the ccd layer

It drives an Andor SDK2 camera through the SDK interface, which
andor/sdk2 implements with cgo against libandor and Simulator implements in
process.  A session is:

 cam := andor.New(sdk2.Library{}, cfg, log)
 cam.SetupStartup(ctx)          // GetAvailableCameras ... SetFrameTransferMode
 cam.SetupDimensions(...)       // SetImage
 cam.Expose(ctx, true, time.Time{}, 2*time.Second, buf)
 cam.SetupShutdown()            // ShutDown

Andor image bounds are 1-based and inclusive, so the visible area is
(1,1)-(width,height) and client windows are shifted by one.
*/
package andor

import (
	"context"
	"sync"
	"time"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/mathx"
	"github.com/LivTel/autoguider-sub002/temperature"
	"github.com/astrogo/fitsio"
)

// Configuration keys read at startup
const (
	KeySelectedCamera  = "ccd.andor.setup.selected_camera"
	KeyConfigDirectory = "ccd.andor.setup.config_directory"
)

// DefaultSettleTime is how long startup waits after Initialize before
// talking to the head
const DefaultSettleTime = 2 * time.Second

// SDK is the part of the Andor SDK2 the backend calls.  Each method
// returns the SDK's return code, DRV_SUCCESS (20002) on success.
type SDK interface {
	GetAvailableCameras() (int, uint)
	GetCameraHandle(index int) (int, uint)
	SetCurrentCamera(handle int) uint
	Initialize(dir string) uint
	SetReadMode(mode int) uint
	SetAcquisitionMode(mode int) uint
	GetDetector() (int, int, uint)
	SetShutter(typ, mode, closingMs, openingMs int) uint
	SetFrameTransferMode(mode int) uint
	SetExposureTime(seconds float32) uint
	StartAcquisition() uint
	GetStatus() (int, uint)
	AbortAcquisition() uint
	GetAcquiredData16(buf []uint16) uint
	SetImage(hbin, vbin, hstart, hend, vstart, vend int) uint
	GetTemperatureF() (float32, uint)
	SetTemperature(t int) uint
	CoolerON() uint
	CoolerOFF() uint
	ShutDown() uint
}

// Camera is an Andor camera implementing ccd.Driver
type Camera struct {
	sdk SDK
	cfg ccd.Config
	log *ccd.Logger
	exp *ccd.Exposure

	// SettleTime is the pause after Initialize
	SettleTime time.Duration

	mu     sync.RWMutex
	geom   ccd.Geometry
	handle int
	open   bool
}

var (
	_ ccd.Driver             = (*Camera)(nil)
	_ ccd.PhaseReporter      = (*Camera)(nil)
	_ ccd.CapabilityReporter = (*Camera)(nil)
)

// New returns an unopened camera
func New(sdk SDK, cfg ccd.Config, log *ccd.Logger) *Camera {
	return &Camera{
		sdk:        sdk,
		cfg:        cfg,
		log:        log,
		exp:        ccd.NewExposure(log),
		SettleTime: DefaultSettleTime,
	}
}

// Factory adapts New to a ccd.Catalog entry
func Factory(sdk SDK) ccd.Factory {
	return func(cfg ccd.Config, log *ccd.Logger) (ccd.Driver, error) {
		return New(sdk, cfg, log), nil
	}
}

// Exposure exposes the camera's exposure state, mostly for tuning the
// timeout margin
func (c *Camera) Exposure() *ccd.Exposure {
	return c.exp
}

func (c *Camera) geometry() ccd.Geometry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.geom
}

// SetupStartup opens the configured camera and reads the detector size
func (c *Camera) SetupStartup(ctx context.Context) error {
	const op = "Andor_Setup_Startup"
	selected, err := c.cfg.Int(KeySelectedCamera)
	if err != nil {
		return ccd.Errorf(ccd.InvalidArgument, op, "get %s: %v", KeySelectedCamera, err)
	}
	dir, err := c.cfg.String(KeyConfigDirectory)
	if err != nil {
		return ccd.Errorf(ccd.InvalidArgument, op, "get %s: %v", KeyConfigDirectory, err)
	}
	c.mu.RLock()
	open := c.open
	c.mu.RUnlock()
	if open {
		c.log.Log(ccd.LogSetup, "camera already initialised, shutting it down first")
		if err := check("ShutDown", c.sdk.ShutDown()); err != nil {
			c.log.Logf(ccd.LogSetup, "shutting down before restart failed: %v", err)
		}
		c.mu.Lock()
		c.open = false
		c.geom = ccd.Geometry{}
		c.mu.Unlock()
	}
	n, code := c.sdk.GetAvailableCameras()
	if err := check("GetAvailableCameras", code); err != nil {
		return err
	}
	c.log.Logf(ccd.LogSetup, "%d cameras found, using %d", n, selected)
	if selected < 0 || selected >= n {
		return ccd.Errorf(ccd.InvalidArgument, op, "selected camera %d out of range 0..%d", selected, n-1)
	}
	handle, code := c.sdk.GetCameraHandle(selected)
	if err := check("GetCameraHandle", code); err != nil {
		return err
	}
	if err := check("SetCurrentCamera", c.sdk.SetCurrentCamera(handle)); err != nil {
		return err
	}
	c.log.Logf(ccd.LogSetup, "Initialize(%s)", dir)
	if err := check("Initialize", c.sdk.Initialize(dir)); err != nil {
		return err
	}
	if c.SettleTime > 0 {
		t := time.NewTimer(c.SettleTime)
		select {
		case <-ctx.Done():
			t.Stop()
			return ccd.Errorf(ccd.Aborted, op, "startup interrupted: %v", ctx.Err())
		case <-t.C:
		}
	}
	if err := check("SetReadMode", c.sdk.SetReadMode(readModeImage)); err != nil {
		return err
	}
	if err := check("SetAcquisitionMode", c.sdk.SetAcquisitionMode(acquisitionModeScan)); err != nil {
		return err
	}
	width, height, code := c.sdk.GetDetector()
	if err := check("GetDetector", code); err != nil {
		return err
	}
	c.log.Logf(ccd.LogSetup, "detector is %d x %d", width, height)
	if err := check("SetShutter", c.sdk.SetShutter(shutterTTLHigh, shutterModeOpen, 0, 0)); err != nil {
		return err
	}
	if err := check("SetFrameTransferMode", c.sdk.SetFrameTransferMode(frameTransferEnabled)); err != nil {
		return err
	}
	full := ccd.Area{Left: 1, Top: 1, Right: width, Bottom: height}
	c.mu.Lock()
	c.geom = ccd.NewGeometry(full, full, false)
	c.handle = handle
	c.open = true
	c.mu.Unlock()
	return nil
}

// SetupDimensions programs binning and the image area with SetImage.  The
// new geometry is kept only if SetImage succeeds.
func (c *Camera) SetupDimensions(ncols, nrows, hbin, vbin int, useWindow bool, w ccd.Window) error {
	c.mu.RLock()
	open, cur := c.open, c.geom
	c.mu.RUnlock()
	if !open {
		return ccd.Errorf(ccd.InvalidArgument, "Andor_Setup_Dimensions", "camera not started")
	}
	g, err := cur.Configure(ncols, nrows, hbin, vbin, useWindow, w)
	if err != nil {
		return err
	}
	img := g.Image
	c.log.Logf(ccd.LogSetup, "SetImage(hbin=%d,vbin=%d,hstart=%d,hend=%d,vstart=%d,vend=%d)",
		hbin, vbin, img.Left, img.Right, img.Top, img.Bottom)
	if err := check("SetImage", c.sdk.SetImage(hbin, vbin, img.Left, img.Right, img.Top, img.Bottom)); err != nil {
		return err
	}
	c.mu.Lock()
	c.geom = g
	c.mu.Unlock()
	return nil
}

// SetupAbort does nothing; no Andor setup step can be interrupted
func (c *Camera) SetupAbort() error {
	return nil
}

// Columns is the binned width of the image area
func (c *Camera) Columns() (int, error) {
	return c.geometry().Columns(), nil
}

// Rows is the binned height of the image area
func (c *Camera) Rows() (int, error) {
	return c.geometry().Rows(), nil
}

// SetupShutdown shuts the SDK down.  The sensor should be above -20C first.
func (c *Camera) SetupShutdown() error {
	if err := check("ShutDown", c.sdk.ShutDown()); err != nil {
		return err
	}
	c.mu.Lock()
	c.geom = ccd.Geometry{}
	c.open = false
	c.mu.Unlock()
	return nil
}

// Expose takes an exposure into buf
func (c *Camera) Expose(ctx context.Context, openShutter bool, start time.Time, length time.Duration, buf []uint16) error {
	g := c.geometry()
	return c.exp.Run(ctx, acquisition{c.sdk}, openShutter, start, length, buf, g.Columns(), g.Rows())
}

// Bias reads out a closed shutter, zero length frame
func (c *Camera) Bias(ctx context.Context, buf []uint16) error {
	return c.Expose(ctx, false, time.Time{}, 0, buf)
}

// AbortExposure flags the running exposure to stop
func (c *Camera) AbortExposure() error {
	c.exp.Abort()
	return nil
}

// ExposureStartTime is when StartAcquisition was last issued
func (c *Camera) ExposureStartTime() (time.Time, error) {
	return c.exp.StartTime(), nil
}

// ExposurePhase is the current exposure phase
func (c *Camera) ExposurePhase() ccd.Phase {
	return c.exp.Phase()
}

// SetLoopPauseLength sets the GetStatus poll interval
func (c *Camera) SetLoopPauseLength(d time.Duration) error {
	return c.exp.SetPause(d)
}

// Capabilities declares the discrete temperature status of SDK2 heads
func (c *Camera) Capabilities() ccd.Capability {
	return ccd.CapTemperatureStatus
}

// Temperature reads the sensor and maps the thermal return code of
// GetTemperatureF.  The reading is refused while acquiring.
func (c *Camera) Temperature() (temperature.Celsius, ccd.TemperatureStatus, error) {
	const op = "Andor_Temperature_Get"
	t, code := c.sdk.GetTemperatureF()
	var st ccd.TemperatureStatus
	switch DRVError(code) {
	case DRVTempOff:
		st = ccd.StatusOff
	case DRVTempStabilized:
		st = ccd.StatusOK
	case DRVTempNotReached, DRVTempNotStabilized, DRVTempDrift:
		st = ccd.StatusRamping
	case DRVAcquiring:
		return 0, ccd.StatusUnknown, ccd.HardwareError(op, int(code), "GetTemperatureF unavailable during acquisition %s", DRVError(code).String())
	default:
		return 0, ccd.StatusUnknown, ccd.HardwareError(op, int(code), "GetTemperatureF failed %s", DRVError(code).String())
	}
	c.log.Logf(ccd.LogTemperature, "temperature %.2f C status %s", t, st)
	return temperature.Celsius(t), st, nil
}

// SetTemperature sets the target, rounded to the nearest degree
func (c *Camera) SetTemperature(t temperature.Celsius) error {
	target := int(mathx.Round(float64(t), 1))
	c.log.Logf(ccd.LogTemperature, "SetTemperature(%d)", target)
	return check("SetTemperature", c.sdk.SetTemperature(target))
}

// CoolerOn turns the TEC on
func (c *Camera) CoolerOn() error {
	return check("CoolerON", c.sdk.CoolerON())
}

// CoolerOff turns the TEC off; the head warms towards ambient
func (c *Camera) CoolerOff() error {
	return check("CoolerOFF", c.sdk.CoolerOFF())
}

// CollectHeaderMetadata produces FITS cards describing the camera and the
// last exposure
func (c *Camera) CollectHeaderMetadata() []fitsio.Card {
	c.mu.RLock()
	g, handle := c.geom, c.handle
	c.mu.RUnlock()
	return []fitsio.Card{
		{Name: "INSTRUME", Value: "Andor", Comment: "camera backend"},
		{Name: "CAMHNDL", Value: handle, Comment: "SDK2 camera handle"},
		{Name: "EXPTIME", Value: c.exp.Length().Seconds(), Comment: "exposure time in seconds"},
		{Name: "CCDXBIN", Value: g.HBin, Comment: "horizontal binning"},
		{Name: "CCDYBIN", Value: g.VBin, Comment: "vertical binning"},
		{Name: "CCDXFULL", Value: g.Detector.Right, Comment: "detector columns"},
		{Name: "CCDYFULL", Value: g.Detector.Bottom, Comment: "detector rows"},
	}
}

// acquisition is the SDK2 half of the exposure state machine
type acquisition struct {
	sdk SDK
}

func (a acquisition) Program(openShutter bool, length time.Duration) error {
	mode := shutterModeClose
	if openShutter {
		mode = shutterModeOpen
	}
	if err := check("SetShutter", a.sdk.SetShutter(shutterTTLHigh, mode, 0, 0)); err != nil {
		return err
	}
	return check("SetExposureTime", a.sdk.SetExposureTime(float32(length.Seconds())))
}

func (a acquisition) Start() error {
	return check("StartAcquisition", a.sdk.StartAcquisition())
}

// Complete is true once GetStatus reports anything but DRV_ACQUIRING
func (a acquisition) Complete() (bool, error) {
	status, code := a.sdk.GetStatus()
	if err := check("GetStatus", code); err != nil {
		return false, err
	}
	return DRVError(status) != DRVAcquiring, nil
}

func (a acquisition) Cancel() error {
	return check("AbortAcquisition", a.sdk.AbortAcquisition())
}

func (a acquisition) Readout(buf []uint16, cols, rows int) error {
	return check("GetAcquiredData16", a.sdk.GetAcquiredData16(buf[:cols*rows]))
}
