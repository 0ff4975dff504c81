package ccd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	var c Catalog
	assert.Empty(t, c.Names())
	f := func(cfg Config, log *Logger) (Driver, error) { return newFakeDriver(), nil }
	require.NoError(t, c.Add("fli", f))
	require.NoError(t, c.Add("andor", f))
	assert.Equal(t, []string{"andor", "fli"}, c.Names())
	assert.Error(t, c.Add("", f))
	assert.Error(t, c.Add("sbig", nil))

	d, err := c.Open("fli", mapConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &fakeDriver{}, d)
	_, err = c.Open("sbig", mapConfig{}, nil)
	assert.Equal(t, InvalidArgument, KindOf(err))
}

func TestCapability(t *testing.T) {
	c := CapCoolerImplicit | CapRowReadout
	assert.True(t, c.Has(CapRowReadout))
	assert.False(t, c.Has(CapTemperatureStatus))
	assert.Equal(t, "cooler-implicit|row-readout", c.String())
	assert.Equal(t, "none", Capability(0).String())
}

func TestTemperatureStatus(t *testing.T) {
	assert.Equal(t, StatusOK, StatusFromSetpoint(-19.5, -20))
	assert.Equal(t, StatusRamping, StatusFromSetpoint(-10, -20))
	assert.Equal(t, "RAMPING", StatusRamping.String())
	assert.Equal(t, "UNKNOWN", TemperatureStatus(42).String())
}
