package fli

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

func startedCamera(t *testing.T, sim *Simulator) *Camera {
	t.Helper()
	c := New(sim, config.New(nil), nil)
	require.NoError(t, c.SetupStartup(context.Background()))
	return c
}

func TestStartupReadsAreas(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	_, _, g := c.state()
	assert.True(t, g.Exclusive)
	assert.Equal(t, ccd.Area{Left: 0, Top: 0, Right: 1040, Bottom: 1032}, g.Detector)
	assert.Equal(t, 1024, g.VisibleColumns())
	assert.Equal(t, 1024, g.VisibleRows())
	assert.Equal(t, []string{"FLIOpen", "FLIGetArrayArea", "FLIGetVisibleArea"}, sim.Calls)
}

func TestStartupClosesOnFailure(t *testing.T) {
	sim := NewSimulator()
	sim.Fail = map[string]int64{"FLIGetVisibleArea": -19}
	c := New(sim, config.New(nil), nil)
	err := c.SetupStartup(context.Background())
	require.Error(t, err)
	assert.Equal(t, -19, ccd.CodeOf(err))
	assert.Contains(t, err.Error(), "no such device")
	assert.Equal(t, 1, sim.Called("FLIClose"))
}

func TestWindowIsShiftedAndExclusive(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	w := ccd.Window{XStart: 0, YStart: 0, XEnd: 49, YEnd: 49}
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, w))
	assert.Equal(t, [4]int{8, 4, 58, 54}, sim.ImageArea())
	cols, _ := c.Columns()
	rows, _ := c.Rows()
	assert.Equal(t, 50, cols)
	assert.Equal(t, 50, rows)

	_, _, g := c.state()
	assert.Equal(t, w, g.Window())
}

func TestBinnedFullFrame(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 2, 2, false, ccd.Window{}))
	assert.Equal(t, [4]int{8, 4, 520, 516}, sim.ImageArea())
	cols, _ := c.Columns()
	rows, _ := c.Rows()
	area := sim.ImageArea()
	assert.Equal(t, 512, cols)
	assert.Equal(t, cols, area[2]-area[0])
	assert.Equal(t, rows, area[3]-area[1])
}

func TestBinnedWindow(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	w := ccd.Window{XStart: 10, YStart: 20, XEnd: 109, YEnd: 59}
	require.NoError(t, c.SetupDimensions(1024, 1024, 2, 4, true, w))
	assert.Equal(t, [4]int{18, 24, 68, 34}, sim.ImageArea())

	buf := make([]uint16, 50*10)
	require.NoError(t, c.Expose(context.Background(), true, time.Time{}, time.Millisecond, buf))
	assert.Equal(t, 10, sim.Called("FLIGrabRow"))
}

func TestStartupTwiceClosesFirstHandle(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupStartup(context.Background()))
	assert.Equal(t, 2, sim.Called("FLIOpen"))
	assert.Equal(t, 1, sim.Called("FLIClose"))
}

func TestStartupLogsCloseFailure(t *testing.T) {
	sim := NewSimulator()
	sim.Fail = map[string]int64{"FLIGetArrayArea": -19, "FLIClose": -5}
	var msgs []string
	lg := ccd.NewLogger(func(_ ccd.Level, msg string) { msgs = append(msgs, msg) }, nil)
	c := New(sim, config.New(nil), lg)
	err := c.SetupStartup(context.Background())
	assert.Equal(t, -19, ccd.CodeOf(err))
	assert.Equal(t, 1, sim.Called("FLIClose"))
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "closing device failed")
}

func TestWindowOutsideVisible(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	err := c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 1024, YEnd: 10})
	assert.True(t, errors.Is(err, ccd.ErrInvalidArgument))
	assert.Zero(t, sim.Called("FLISetHBin"))
}

func TestExposeGrabsEveryRow(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 7, YEnd: 3}))
	buf := make([]uint16, 32)
	require.NoError(t, c.Expose(context.Background(), true, time.Time{}, 5*time.Millisecond, buf))
	assert.Equal(t, 4, sim.Called("FLIGrabRow"))
	assert.Equal(t, uint16(0), buf[7])
	assert.Equal(t, uint16(3), buf[31])
	assert.Equal(t, FrameTypeNormal, sim.FrameType())
}

func TestDarkFrameType(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 1, YEnd: 1}))
	require.NoError(t, c.Bias(context.Background(), make([]uint16, 4)))
	assert.Equal(t, FrameTypeDark, sim.FrameType())
}

func TestUnknownStatusIsBoundedByTimeout(t *testing.T) {
	sim := NewSimulator()
	sim.Unknown = true
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 1, YEnd: 1}))
	require.NoError(t, c.Exposure().SetMargin(30*time.Millisecond))

	err := c.Expose(context.Background(), true, time.Time{}, 10*time.Millisecond, make([]uint16, 4))
	assert.True(t, errors.Is(err, ccd.ErrTimeout))
	assert.Equal(t, 1, sim.Called("FLICancelExposure"))
	assert.Zero(t, sim.Called("FLIGrabRow"))
}

func TestContextCancelAborts(t *testing.T) {
	sim := NewSimulator()
	sim.Unknown = true
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupDimensions(1024, 1024, 1, 1, true, ccd.Window{XEnd: 1, YEnd: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Expose(ctx, true, time.Time{}, time.Minute, make([]uint16, 4))
	assert.True(t, errors.Is(err, ccd.ErrAborted))
	assert.Equal(t, 1, sim.Called("FLICancelExposure"))
}

func TestTemperatureHeuristic(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)

	_, st, err := c.Temperature()
	require.NoError(t, err)
	assert.Equal(t, ccd.StatusUnknown, st, "no target yet")

	require.NoError(t, c.SetTemperature(-10))
	_, st, err = c.Temperature()
	require.NoError(t, err)
	assert.Equal(t, ccd.StatusRamping, st)

	sim.Step = 100
	tc, st, err := c.Temperature()
	require.NoError(t, err)
	assert.Equal(t, -10.0, float64(tc))
	assert.Equal(t, ccd.StatusOK, st)
}

func TestCoolerIsImplicit(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	assert.True(t, c.Capabilities().Has(ccd.CapCoolerImplicit))
	assert.NoError(t, c.CoolerOn())
	assert.NoError(t, c.CoolerOff())
	assert.Equal(t, 3, len(sim.Calls))
}

func TestCoolerPower(t *testing.T) {
	sim := NewSimulator()
	sim.Step = 100
	c := startedCamera(t, sim)
	require.NoError(t, c.SetTemperature(-20))
	_, _, err := c.Temperature()
	require.NoError(t, err)
	p, err := c.CoolerPower()
	require.NoError(t, err)
	assert.Equal(t, 80.0, p)
}

func TestShutdownCloses(t *testing.T) {
	sim := NewSimulator()
	c := startedCamera(t, sim)
	require.NoError(t, c.SetupShutdown())
	assert.Equal(t, 1, sim.Called("FLIClose"))
	err := c.Expose(context.Background(), true, time.Time{}, 0, make([]uint16, 4))
	assert.True(t, errors.Is(err, ccd.ErrInvalidArgument))
}
