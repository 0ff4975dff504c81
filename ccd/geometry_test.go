package ccd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureInclusiveWindow(t *testing.T) {
	g := NewGeometry(Area{1, 1, 1024, 1024}, Area{1, 1, 1024, 1024}, false)
	out, err := g.Configure(1024, 1024, 1, 1, true, Window{XStart: 100, YStart: 200, XEnd: 149, YEnd: 249})
	require.NoError(t, err)
	assert.Equal(t, Area{101, 201, 150, 250}, out.Image)
	assert.Equal(t, 50, out.Columns())
	assert.Equal(t, 50, out.Rows())
	assert.Equal(t, 2500, out.Pixels())
	assert.Equal(t, 5000, out.BufferLength())
	assert.Equal(t, Window{100, 200, 149, 249}, out.Window())
	assert.False(t, g.Configured(), "the receiver is left alone")
}

func TestConfigureExclusiveWindow(t *testing.T) {
	g := NewGeometry(Area{0, 0, 1040, 1032}, Area{8, 4, 1032, 1028}, true)
	assert.Equal(t, 1024, g.VisibleColumns())
	out, err := g.Configure(1024, 1024, 1, 1, true, Window{0, 0, 49, 49})
	require.NoError(t, err)
	assert.Equal(t, Area{8, 4, 58, 54}, out.Image)
	assert.Equal(t, 50, out.Columns())
	assert.Equal(t, Window{0, 0, 49, 49}, out.Window())
}

func TestConfigureFullFrameBinned(t *testing.T) {
	g := NewGeometry(Area{1, 1, 1024, 1024}, Area{1, 1, 1024, 1024}, false)
	out, err := g.Configure(1024, 1024, 2, 4, false, Window{XStart: 7, XEnd: 3})
	require.NoError(t, err, "the window is ignored without useWindow")
	assert.Equal(t, 512, out.Columns())
	assert.Equal(t, 256, out.Rows())
}

func TestConfigureFullFrameFromOrigin(t *testing.T) {
	cases := []struct {
		name      string
		exclusive bool
		image     Area
	}{
		{"inclusive", false, Area{8, 8, 107, 107}},
		{"exclusive", true, Area{8, 8, 108, 108}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGeometry(Area{0, 0, 200, 200}, Area{8, 8, 200, 200}, tc.exclusive)
			out, err := g.Configure(100, 100, 2, 2, false, Window{})
			require.NoError(t, err)
			assert.Equal(t, tc.image, out.Image)
			assert.Equal(t, 50, out.Columns())
			assert.Equal(t, 50, out.Rows())
			assert.Equal(t, 2500, out.Pixels())
		})
	}
}

func TestConfigureRejects(t *testing.T) {
	g := NewGeometry(Area{1, 1, 1024, 1024}, Area{1, 1, 1024, 1024}, false)
	cases := map[string]func() (Geometry, error){
		"zero size": func() (Geometry, error) { return g.Configure(0, 10, 1, 1, false, Window{}) },
		"zero bin":  func() (Geometry, error) { return g.Configure(10, 10, 0, 1, false, Window{}) },
		"inverted":  func() (Geometry, error) { return g.Configure(10, 10, 1, 1, true, Window{5, 5, 4, 9}) },
		"negative":  func() (Geometry, error) { return g.Configure(10, 10, 1, 1, true, Window{-1, 0, 4, 9}) },
		"too wide":  func() (Geometry, error) { return g.Configure(10, 10, 1, 1, true, Window{0, 0, 1024, 9}) },
		"too tall":  func() (Geometry, error) { return g.Configure(2048, 2048, 1, 1, false, Window{}) },
	}
	for name, fn := range cases {
		_, err := fn()
		assert.Equal(t, InvalidArgument, KindOf(err), name)
	}
	_, err := g.Configure(10, 10, 4, 1, true, Window{0, 0, 1, 1})
	assert.Error(t, err)
}

func TestUnconfiguredGeometryIsEmpty(t *testing.T) {
	var g Geometry
	assert.Zero(t, g.Columns())
	assert.Zero(t, g.Rows())
	assert.Zero(t, g.Pixels())
}
