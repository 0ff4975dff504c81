// Package camera provides an HTTP interface to an autoguider camera session
package camera

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"net/http"
	"time"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/generichttp"
	"github.com/LivTel/autoguider-sub002/generichttp/thermal"
	"github.com/LivTel/autoguider-sub002/imgrec"
	"github.com/LivTel/autoguider-sub002/server"
	"github.com/LivTel/autoguider-sub002/server/middleware/locker"
	"github.com/LivTel/autoguider-sub002/telemetry"
	"github.com/LivTel/autoguider-sub002/util"
	"github.com/astrogo/fitsio"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MetadataMaker can produce an array of FITS cards
type MetadataMaker interface {
	// CollectHeaderMetadata produces an array of FITS cards
	CollectHeaderMetadata() []fitsio.Card
}

// Dimensions is the body of POST /dimensions
type Dimensions struct {
	NCols  int         `json:"ncols"`
	NRows  int         `json:"nrows"`
	HBin   int         `json:"hbin"`
	VBin   int         `json:"vbin"`
	Window *ccd.Window `json:"window,omitempty"`
}

// Size is the reply of GET /dimensions
type Size struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// ExposureRequest is the body of POST /expose.  ExposureTime is in seconds
// and may also be given as the query parameter exposureTime, in any
// time.ParseDuration format; a bare number is seconds.
type ExposureRequest struct {
	ExposureTime float64   `json:"exposure_time"`
	OpenShutter  bool      `json:"open_shutter"`
	StartTime    time.Time `json:"start_time,omitempty"`
}

// HTTPCamera wraps a session in an HTTP interface
type HTTPCamera struct {
	s    *ccd.Session
	rec  *imgrec.Recorder
	lock *locker.Locker
	pub  telemetry.Publisher

	// RouteTable maps methods and paths to http handlers
	RouteTable server.RouteTable
}

// NewHTTPCamera returns the routes of s.  rec and pub may be nil.
func NewHTTPCamera(s *ccd.Session, rec *imgrec.Recorder, pub telemetry.Publisher) *HTTPCamera {
	if pub == nil {
		pub = telemetry.Discard{}
	}
	c := &HTTPCamera{
		s:          s,
		rec:        rec,
		pub:        pub,
		lock:       locker.New("abort", "exposure/", "last-error", "metrics", "temperature"),
		RouteTable: server.RouteTable{},
	}
	rt := c.RouteTable
	rt[server.MethodPath{Method: http.MethodGet, Path: "/dimensions"}] = c.GetDimensions
	rt[server.MethodPath{Method: http.MethodPost, Path: "/dimensions"}] = c.SetDimensions
	rt[server.MethodPath{Method: http.MethodGet, Path: "/columns"}] = generichttp.GetInt(s.Columns)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/rows"}] = generichttp.GetInt(s.Rows)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/expose"}] = c.Expose
	rt[server.MethodPath{Method: http.MethodPost, Path: "/bias"}] = c.Bias
	rt[server.MethodPath{Method: http.MethodPost, Path: "/abort"}] = generichttp.Call(s.AbortExposure)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/exposure/phase"}] = generichttp.GetString(func() (string, error) {
		p, err := s.ExposurePhase()
		return p.String(), err
	})
	rt[server.MethodPath{Method: http.MethodGet, Path: "/exposure/start-time"}] = generichttp.GetString(func() (string, error) {
		t, err := s.ExposureStartTime()
		return t.Format(time.RFC3339Nano), err
	})
	rt[server.MethodPath{Method: http.MethodPost, Path: "/exposure/pause-length"}] = generichttp.SetInt(func(ms int) error {
		return s.SetLoopPauseLength(time.Duration(ms) * time.Millisecond)
	})
	rt[server.MethodPath{Method: http.MethodGet, Path: "/last-error"}] = generichttp.GetString(func() (string, error) {
		return s.Errors().Report(), nil
	})
	thermal.HTTPController(s, rt)
	locker.Inject(c, c.lock)
	if rec != nil {
		imgrec.NewHTTPWrapper(rec).Inject(c)
	}
	return c
}

// RT satisfies server.HTTPer
func (c *HTTPCamera) RT() server.RouteTable {
	return c.RouteTable
}

// Locker is the lock held while exposing.  Mount its Check middleware
// ahead of the routes.
func (c *HTTPCamera) Locker() *locker.Locker {
	return c.lock
}

// GetDimensions replies with the binned readout size
func (c *HTTPCamera) GetDimensions(w http.ResponseWriter, r *http.Request) {
	cols, err := c.s.Columns()
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	rows, err := c.s.Rows()
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	server.EncodeAndRespond(w, Size{Columns: cols, Rows: rows})
}

// SetDimensions programs binning and an optional window
func (c *HTTPCamera) SetDimensions(w http.ResponseWriter, r *http.Request) {
	d := Dimensions{HBin: 1, VBin: 1}
	if !generichttp.Decode(w, r, &d) {
		return
	}
	var win ccd.Window
	if d.Window != nil {
		win = *d.Window
	}
	if err := c.s.SetupDimensions(d.NCols, d.NRows, d.HBin, d.VBin, d.Window != nil, win); err != nil {
		generichttp.Fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Expose takes an exposure and replies with the frame.
//
// the format may be specified with the fmt query parameter: fits (the
// default), png or jpg.  Frames are recorded, as FITS, when the recorder is
// enabled.
func (c *HTTPCamera) Expose(w http.ResponseWriter, r *http.Request) {
	req := ExposureRequest{OpenShutter: true}
	q := r.URL.Query()
	if texp := q.Get("exposureTime"); texp != "" {
		d, err := util.ParseDuration(texp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.ExposureTime = d.Seconds()
		if q.Get("dark") == "true" {
			req.OpenShutter = false
		}
	} else if !generichttp.Decode(w, r, &req) {
		return
	}
	if req.ExposureTime < 0 {
		http.Error(w, "exposure_time must not be negative", http.StatusBadRequest)
		return
	}
	length := time.Duration(req.ExposureTime * float64(time.Second))
	typ := "dark"
	if req.OpenShutter {
		typ = "expose"
	}
	c.take(w, r, typ, length, func(ctx context.Context, buf []uint16) error {
		return c.s.Expose(ctx, req.OpenShutter, req.StartTime, length, buf)
	})
}

// Bias reads out a bias frame and replies with it
func (c *HTTPCamera) Bias(w http.ResponseWriter, r *http.Request) {
	c.take(w, r, "bias", 0, c.s.Bias)
}

func (c *HTTPCamera) take(w http.ResponseWriter, r *http.Request, typ string, length time.Duration, acquire func(context.Context, []uint16) error) {
	if !c.lock.TryLock() {
		w.WriteHeader(http.StatusLocked)
		return
	}
	defer c.lock.Unlock()

	buf, err := c.s.AllocateBuffer()
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	cols, _ := c.s.Columns()
	rows, _ := c.s.Rows()
	id := uuid.New()
	ev := telemetry.ExposureEvent{ID: id.String(), Type: typ, Length: length.Seconds(), Columns: cols, Rows: rows}

	err = acquire(r.Context(), buf)
	ev.Start, _ = c.s.ExposureStartTime()
	ev.Outcome = telemetry.Outcome(err)
	if err != nil {
		ev.Error = err.Error()
		c.publish(ev)
		generichttp.Fail(w, err)
		return
	}

	cards := imgrec.FrameCards(id, buf, ev.Start)
	cards = append(cards, fitsio.Card{Name: "OBSTYPE", Value: typ, Comment: "frame type"})
	if mm, ok := c.s.Driver().(MetadataMaker); ok {
		cards = append(cards, mm.CollectHeaderMetadata()...)
	}
	ev.CRC = fmt.Sprintf("%08x", imgrec.Checksum(buf))
	c.publish(ev)

	if c.rec != nil && c.rec.Enabled() && c.rec.Root() != "" {
		fn, err := c.rec.Record(buf, cols, rows, cards)
		if err != nil {
			log.WithError(err).Error("recording frame")
		} else {
			log.WithField("file", fn).Info("frame recorded")
		}
	}

	hdr := w.Header()
	hdr.Set("ETag", `"`+ev.CRC+`"`)
	hdr.Set("X-Exposure-Id", ev.ID)
	switch f := r.URL.Query().Get("fmt"); f {
	case "", "fits":
		hdr.Set("Content-Type", "image/fits")
		hdr.Set("Content-Disposition", "attachment; filename="+ev.ID+".fits")
		err = imgrec.WriteFits(w, buf, cols, rows, cards)
	case "png":
		hdr.Set("Content-Type", "image/png")
		err = png.Encode(w, Stretch8(buf, cols, rows))
	case "jpg":
		hdr.Set("Content-Type", "image/jpeg")
		err = jpeg.Encode(w, Stretch8(buf, cols, rows), nil)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q, use fits, png or jpg", f), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.WithError(err).Error("writing frame")
	}
}

func (c *HTTPCamera) publish(ev telemetry.ExposureEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.pub.PublishExposure(ctx, ev); err != nil {
		log.WithError(err).Warn("publishing exposure event")
	}
}
