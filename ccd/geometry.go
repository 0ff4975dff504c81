package ccd

import "fmt"

// BytesPerPixel is the size of one readout pixel
const BytesPerPixel = 2

// Window is a client side region of interest.  Both bounds are inclusive,
// zero-origin and relative to the visible field, so the same window selects
// the same pixels on units with different bias strips.
type Window struct {
	XStart int `json:"x_start"`
	YStart int `json:"y_start"`
	XEnd   int `json:"x_end"`
	YEnd   int `json:"y_end"`
}

// Width is the unbinned width of the window
func (w Window) Width() int {
	return w.XEnd - w.XStart + 1
}

// Height is the unbinned height of the window
func (w Window) Height() int {
	return w.YEnd - w.YStart + 1
}

func (w Window) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", w.XStart, w.YStart, w.XEnd, w.YEnd)
}

// Area is a rectangle in a backend's native pixel coordinates.  Whether
// Right and Bottom are part of the area is decided by the Geometry that
// holds it.
type Area struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Geometry is the windowing state of one backend: the fixed detector and
// visible extents, plus the binning and image area of the last successful
// Configure.  It is a value; Configure returns a new Geometry and leaves
// the receiver untouched, so a backend commits it only once the hardware
// has accepted it.
type Geometry struct {
	// Detector is the full frame, including bias strips
	Detector Area

	// Visible is the light sensitive part of Detector
	Visible Area

	// Exclusive is true when the backend's upper bounds are one past the
	// last pixel
	Exclusive bool

	// HBin and VBin are the binning factors
	HBin, VBin int

	// Image is the active area in native coordinates
	Image Area

	configured bool
}

// NewGeometry returns the geometry of a freshly opened backend
func NewGeometry(detector, visible Area, exclusive bool) Geometry {
	return Geometry{Detector: detector, Visible: visible, Exclusive: exclusive}
}

func (g Geometry) span(lower, upper int) int {
	if g.Exclusive {
		return upper - lower
	}
	return upper - lower + 1
}

// upper converts an inclusive native bound into the backend's convention
func (g Geometry) upper(inclusive int) int {
	if g.Exclusive {
		return inclusive + 1
	}
	return inclusive
}

// VisibleColumns is the unbinned width of the visible area
func (g Geometry) VisibleColumns() int {
	return g.span(g.Visible.Left, g.Visible.Right)
}

// VisibleRows is the unbinned height of the visible area
func (g Geometry) VisibleRows() int {
	return g.span(g.Visible.Top, g.Visible.Bottom)
}

// Configure computes the geometry selected by a dimensions call.  Without a
// window, the image is ncols x nrows unbinned pixels from the visible
// origin.  With one, the window is shifted by the visible origin and, for
// exclusive backends, its upper bounds are moved one past the last pixel.
func (g Geometry) Configure(ncols, nrows, hbin, vbin int, useWindow bool, w Window) (Geometry, error) {
	const op = "SetupDimensions"
	if ncols <= 0 || nrows <= 0 {
		return g, Errorf(InvalidArgument, op, "illegal size ncols=%d nrows=%d", ncols, nrows)
	}
	if hbin < 1 || vbin < 1 {
		return g, Errorf(InvalidArgument, op, "illegal binning hbin=%d vbin=%d", hbin, vbin)
	}
	if !useWindow {
		w = Window{XStart: 0, YStart: 0, XEnd: ncols - 1, YEnd: nrows - 1}
	}
	if w.XStart < 0 || w.YStart < 0 || w.XEnd < w.XStart || w.YEnd < w.YStart {
		return g, Errorf(InvalidArgument, op, "illegal window %s", w)
	}
	if vc := g.VisibleColumns(); vc > 0 && w.XEnd >= vc {
		return g, Errorf(InvalidArgument, op, "window %s exceeds the %d visible columns", w, vc)
	}
	if vr := g.VisibleRows(); vr > 0 && w.YEnd >= vr {
		return g, Errorf(InvalidArgument, op, "window %s exceeds the %d visible rows", w, vr)
	}
	if w.Width() < hbin || w.Height() < vbin {
		return g, Errorf(InvalidArgument, op, "window %s smaller than binning %dx%d", w, hbin, vbin)
	}
	out := g
	out.HBin, out.VBin = hbin, vbin
	out.Image = Area{
		Left:   g.Visible.Left + w.XStart,
		Top:    g.Visible.Top + w.YStart,
		Right:  g.upper(g.Visible.Left + w.XEnd),
		Bottom: g.upper(g.Visible.Top + w.YEnd),
	}
	out.configured = true
	return out, nil
}

// Configured is true once Configure has succeeded
func (g Geometry) Configured() bool {
	return g.configured
}

// Columns is the binned width of the image
func (g Geometry) Columns() int {
	if !g.configured {
		return 0
	}
	return g.span(g.Image.Left, g.Image.Right) / g.HBin
}

// Rows is the binned height of the image
func (g Geometry) Rows() int {
	if !g.configured {
		return 0
	}
	return g.span(g.Image.Top, g.Image.Bottom) / g.VBin
}

// Pixels is the number of pixels a readout produces
func (g Geometry) Pixels() int {
	return g.Columns() * g.Rows()
}

// BufferLength is the readout size in bytes
func (g Geometry) BufferLength() int {
	return g.Pixels() * BytesPerPixel
}

// Window translates the image area back into a client window
func (g Geometry) Window() Window {
	lastX, lastY := g.Image.Right, g.Image.Bottom
	if g.Exclusive {
		lastX--
		lastY--
	}
	return Window{
		XStart: g.Image.Left - g.Visible.Left,
		YStart: g.Image.Top - g.Visible.Top,
		XEnd:   lastX - g.Visible.Left,
		YEnd:   lastY - g.Visible.Top,
	}
}
