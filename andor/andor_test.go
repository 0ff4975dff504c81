package andor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCamera(t *testing.T, sim *Simulator, values map[string]interface{}) *Camera {
	t.Helper()
	c := New(sim, config.New(values), nil)
	c.SettleTime = 0
	return c
}

func startedCamera(t *testing.T, sim *Simulator) *Camera {
	t.Helper()
	c := newTestCamera(t, sim, nil)
	require.NoError(t, c.SetupStartup(context.Background()))
	return c
}

func TestStartupSequence(t *testing.T) {
	sim := NewSimulator()
	startedCamera(t, sim)
	assert.Equal(t, []string{
		"GetAvailableCameras",
		"GetCameraHandle",
		"SetCurrentCamera",
		"Initialize",
		"SetReadMode",
		"SetAcquisitionMode",
		"GetDetector",
		"SetShutter",
		"SetFrameTransferMode",
	}, sim.Calls)
}

func TestStartupSelectedCameraOutOfRange(t *testing.T) {
	sim := NewSimulator()
	c := newTestCamera(t, sim, map[string]interface{}{KeySelectedCamera: 1})
	err := c.SetupStartup(context.Background())
	require.Error(t, err)
	assert.Equal(t, ccd.InvalidArgument, ccd.KindOf(err))
	assert.Zero(t, sim.Called("Initialize"))
}

func TestStartupMissingConfig(t *testing.T) {
	sim := NewSimulator()
	c := New(sim, config.New(nil), nil)
	cfg := config.New(nil)
	require.NoError(t, cfg.Set(KeySelectedCamera, "not a number"))
	c.cfg = cfg
	err := c.SetupStartup(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ccd.ErrInvalidArgument))
	assert.Empty(t, sim.Calls)
}

func TestStartupInitializeFails(t *testing.T) {
	sim := NewSimulator()
	sim.Fail = map[string]uint{"Initialize": 20992}
	c := newTestCamera(t, sim, nil)
	err := c.SetupStartup(context.Background())
	require.Error(t, err)
	assert.Equal(t, ccd.HardwareCommandFailed, ccd.KindOf(err))
	assert.Equal(t, 20992, ccd.CodeOf(err))
	assert.Contains(t, err.Error(), "DRV_NOT_AVAILABLE")
}

func TestStartupSettleHonoursContext(t *testing.T) {
	sim := NewSimulator()
	c := New(sim, config.New(nil), nil)
	c.SettleTime = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.SetupStartup(ctx)
	assert.True(t, errors.Is(err, ccd.ErrAborted))
}

func TestSetupDimensionsWindow(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	w := ccd.Window{XStart: 100, YStart: 200, XEnd: 149, YEnd: 249}
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, w))

	hbin, vbin, hs, he, vs, ve := sim.Image()
	assert.Equal(t, []int{1, 1, 101, 150, 201, 250}, []int{hbin, vbin, hs, he, vs, ve})
	cols, _ := c.Columns()
	rows, _ := c.Rows()
	assert.Equal(t, 50, cols)
	assert.Equal(t, 50, rows)
}

func TestSetupDimensionsBinnedFullFrame(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 2, 4, false, ccd.Window{}))
	hbin, vbin, hs, he, vs, ve := sim.Image()
	assert.Equal(t, []int{2, 4, 1, 1024, 1, 1024}, []int{hbin, vbin, hs, he, vs, ve})
	cols, _ := c.Columns()
	rows, _ := c.Rows()
	assert.Equal(t, 512, cols)
	assert.Equal(t, 256, rows)
}

func TestSetupDimensionsKeepsGeometryOnFailure(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, false, ccd.Window{}))

	sim.Fail = map[string]uint{"SetImage": 20066}
	err := c.SetupDimensions(1024, 1024, 2, 2, false, ccd.Window{})
	require.Error(t, err)
	cols, _ := c.Columns()
	assert.Equal(t, 1024, cols)

	err = c.SetupDimensions(1024, 1024, 0, 1, false, ccd.Window{})
	assert.True(t, errors.Is(err, ccd.ErrInvalidArgument))
}

func TestSetupDimensionsBeforeStartup(t *testing.T) {
	c := newTestCamera(t, NewSimulator(), nil)
	err := c.SetupDimensions(1024, 1024, 1, 1, false, ccd.Window{})
	assert.True(t, errors.Is(err, ccd.ErrInvalidArgument))
}

func TestExposeReadsOut(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XStart: 0, YStart: 0, XEnd: 9, YEnd: 9}))
	buf := make([]uint16, 100)
	require.NoError(t, c.Expose(context.Background(), true, time.Time{}, 10*time.Millisecond, buf))

	assert.Equal(t, uint16(99), buf[99])
	assert.Equal(t, shutterModeOpen, sim.ShutterMode())
	assert.Equal(t, ccd.PhaseNone, c.ExposurePhase())
	start, err := c.ExposureStartTime()
	require.NoError(t, err)
	assert.False(t, start.IsZero())
}

func TestBiasClosesShutter(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 3, YEnd: 3}))
	require.NoError(t, c.Bias(context.Background(), make([]uint16, 16)))
	assert.Equal(t, shutterModeClose, sim.ShutterMode())
}

func TestExposeAbort(t *testing.T) {
	sim := NewSimulator()
	sim.Hang = true
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 3, YEnd: 3}))
	require.NoError(t, c.SetLoopPauseLength(5*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		done <- c.Expose(context.Background(), true, time.Time{}, time.Second, make([]uint16, 16))
	}()
	require.Eventually(t, func() bool { return c.ExposurePhase() == ccd.PhaseExpose }, time.Second, time.Millisecond)
	require.NoError(t, c.AbortExposure())

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ccd.ErrAborted))
	case <-time.After(time.Second):
		t.Fatal("abort was not observed")
	}
	assert.Equal(t, 1, sim.Called("AbortAcquisition"))
	assert.Zero(t, sim.Called("GetAcquiredData16"))
	assert.Equal(t, ccd.PhaseNone, c.ExposurePhase())
}

func TestExposeTimeout(t *testing.T) {
	sim := NewSimulator()
	sim.Hang = true
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 3, YEnd: 3}))
	require.NoError(t, c.Exposure().SetMargin(50*time.Millisecond))

	begun := time.Now()
	err := c.Expose(context.Background(), true, time.Time{}, 20*time.Millisecond, make([]uint16, 16))
	assert.True(t, errors.Is(err, ccd.ErrTimeout))
	assert.GreaterOrEqual(t, time.Since(begun), 70*time.Millisecond)
	assert.Equal(t, 1, sim.Called("AbortAcquisition"))
}

func TestExposeCancelFailureKeepsTimeout(t *testing.T) {
	sim := NewSimulator()
	sim.Hang = true
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 3, YEnd: 3}))
	require.NoError(t, c.Exposure().SetMargin(10*time.Millisecond))
	sim.Fail = map[string]uint{"AbortAcquisition": 20073}

	err := c.Expose(context.Background(), true, time.Time{}, 0, make([]uint16, 16))
	assert.True(t, errors.Is(err, ccd.ErrTimeout))
}

func TestExposeUnconfigured(t *testing.T) {
	c := startedCamera(t, NewSimulator())
	err := c.Expose(context.Background(), true, time.Time{}, 0, make([]uint16, 16))
	assert.True(t, errors.Is(err, ccd.ErrInvalidArgument))
}

func TestTemperatureStatusMapping(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)

	_, st, err := c.Temperature()
	require.NoError(t, err)
	assert.Equal(t, ccd.StatusOff, st)

	require.NoError(t, c.SetTemperature(-5))
	require.NoError(t, c.CoolerOn())
	temps := []float32{}
	for i := 0; i < 10; i++ {
		tc, st, err := c.Temperature()
		require.NoError(t, err)
		temps = append(temps, float32(tc))
		if st == ccd.StatusOK {
			break
		}
		assert.Equal(t, ccd.StatusRamping, st)
	}
	assert.Equal(t, float32(-5), temps[len(temps)-1])
}

func TestTemperatureDuringAcquisition(t *testing.T) {
	sim := NewSimulator()
	sim.Hang = true
	c := startedCamera(t, sim)
	require.Equal(t, uint(DRVSuccess), sim.StartAcquisition())
	_, st, err := c.Temperature()
	require.Error(t, err)
	assert.Equal(t, ccd.StatusUnknown, st)
	assert.Equal(t, int(DRVAcquiring), ccd.CodeOf(err))
}

func TestSetTemperatureRounds(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetTemperature(-40.6))
	require.NoError(t, c.CoolerOn())
	sim.Step = 100
	tc, _, err := c.Temperature()
	require.NoError(t, err)
	assert.Equal(t, -41.0, float64(tc))
}

func TestShutdown(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupShutdown())
	assert.Equal(t, 1, sim.Called("ShutDown"))
	err := c.SetupDimensions(1024, 1024, 1, 1, false, ccd.Window{})
	assert.Error(t, err)
}

func TestStartupTwiceShutsDownFirst(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	n := len(sim.Calls)
	require.NoError(t, c.SetupStartup(context.Background()))
	assert.Equal(t, []string{"ShutDown", "GetAvailableCameras"}, sim.Calls[n:n+2])
	assert.Equal(t, 2, sim.Called("Initialize"))
	assert.Equal(t, 1, sim.Called("ShutDown"))
}

func TestSessionWiring(t *testing.T) {
	var cat ccd.Catalog
	sim := NewSimulator()
	require.NoError(t, cat.Add("andor", Factory(sim)))
	d, err := cat.Open("andor", config.New(nil), nil)
	require.NoError(t, err)
	d.(*Camera).SettleTime = 0

	s := ccd.NewSession(nil, nil)
	require.NoError(t, s.Register(d))
	require.NoError(t, ccd.Startup(context.Background(), s, config.New(nil)))
	assert.Equal(t, 1, sim.Called("CoolerON"))
	assert.True(t, s.Capabilities().Has(ccd.CapTemperatureStatus))

	require.NoError(t, s.SetupDimensions(1024, 1024, 1, 1, false, ccd.Window{}))
	buf, err := s.AllocateBuffer()
	require.NoError(t, err)
	assert.Len(t, buf, 1024*1024)
}

func TestDRVErrorString(t *testing.T) {
	assert.Equal(t, "DRV_ACQUIRING", DRVAcquiring.String())
	assert.Equal(t, "20072 - DRV_ACQUIRING", DRVAcquiring.Error())
	assert.NoError(t, check("Op", uint(DRVSuccess)))
}
