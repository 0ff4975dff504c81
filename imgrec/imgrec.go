// Package imgrec contains an image recorder used to automatically save frames to disk.
package imgrec

import (
	"fmt"
	"go/types"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LivTel/autoguider-sub002/generichttp"
	"github.com/LivTel/autoguider-sub002/server"
	"github.com/astrogo/fitsio"
)

// Recorder records frames with incrementing filenames in yyyy-mm-dd
// subfolders.  It is safe for concurrent use.
type Recorder struct {
	// seq serializes whole records, mu guards the fields
	seq sync.Mutex
	mu  sync.Mutex

	// counter is the number of the file being written
	counter int

	root    string
	prefix  string
	enabled bool

	// last is the path of the last complete record
	last string

	// now is the clock used for folder names
	now func() time.Time
}

// New returns a recorder writing under root
func New(root, prefix string, enabled bool) *Recorder {
	return &Recorder{root: root, prefix: prefix, enabled: enabled, now: time.Now}
}

// folder is the dated subfolder for today
func (r *Recorder) folder() string {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	y, m, d := now().Date()
	return filepath.Join(r.root, fmt.Sprintf("%04d-%02d-%02d", y, m, d))
}

func (r *Recorder) filename() string {
	return filepath.Join(r.folder(), fmt.Sprintf("%s%06d.fits", r.prefix, r.counter))
}

// Write implements io.Writer, appending p to the current file
func (r *Recorder) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	fldr, fn := r.folder(), r.filename()
	r.mu.Unlock()
	if err = os.MkdirAll(fldr, 0777); err != nil {
		return 0, err
	}
	fid, err := os.OpenFile(fn, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return 0, err
	}
	defer fid.Close()
	return fid.Write(p)
}

// Incr moves the counter past the highest numbered file of the folder.  If
// the folder cannot be read, the counter is not changed.
func (r *Recorder) Incr() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fldr := r.folder()
	if err := os.MkdirAll(fldr, 0777); err != nil {
		return
	}
	entries, err := os.ReadDir(fldr)
	if err != nil {
		return
	}
	count := 0
	for _, e := range entries {
		fn := e.Name()
		if e.IsDir() || !strings.HasSuffix(fn, ".fits") || !strings.HasPrefix(fn, r.prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(fn, r.prefix), ".fits"))
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	r.counter = count + 1
}

// Record writes one frame to the next file and returns its path
func (r *Recorder) Record(buf []uint16, cols, rows int, metadata []fitsio.Card) (string, error) {
	r.seq.Lock()
	defer r.seq.Unlock()
	r.Incr()
	r.mu.Lock()
	fn := r.filename()
	r.mu.Unlock()
	if err := WriteFits(r, buf, cols, rows, metadata); err != nil {
		return "", err
	}
	r.mu.Lock()
	r.last = fn
	r.mu.Unlock()
	return fn, nil
}

// Root is the folder the dated subfolders are made in
func (r *Recorder) Root() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// SetRoot changes the root folder, creating it
func (r *Recorder) SetRoot(root string) error {
	if err := os.MkdirAll(root, 0777); err != nil {
		return err
	}
	r.mu.Lock()
	r.root = root
	r.mu.Unlock()
	return nil
}

// Prefix is the filename prefix
func (r *Recorder) Prefix() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefix
}

// SetPrefix changes the filename prefix and restarts the count
func (r *Recorder) SetPrefix(p string) error {
	r.mu.Lock()
	r.prefix = p
	r.counter = 0
	r.mu.Unlock()
	return nil
}

// Enabled is a flag unused by the recorder itself that lets consumers
// switch recording off
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled sets the flag returned by Enabled
func (r *Recorder) SetEnabled(b bool) error {
	r.mu.Lock()
	r.enabled = b
	r.mu.Unlock()
	return nil
}

// Last is the path of the last recorded frame, or ""
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// HTTPWrapper is an HTTP wrapper around an image recorder that allows the folder and prefix to be changed on the fly
//
// it does not implement server.HTTPer, offering an Inject method allowing it to be injected
// into another HTTPer
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

// GetLast serves the last recorded frame
func (h HTTPWrapper) GetLast(w http.ResponseWriter, r *http.Request) {
	last := h.Recorder.Last()
	if last == "" {
		http.Error(w, "no frame has been recorded", http.StatusNotFound)
		return
	}
	server.ReplyWithFile(w, r, filepath.Base(last), filepath.Dir(last))
}

// GetRoot sends the recorder's root folder back as JSON
func (h HTTPWrapper) GetRoot(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.String, String: h.Recorder.Root()}
	hp.EncodeAndRespond(w, r)
}

// Inject adds GET and POST routes for /autowrite/root, /autowrite/prefix
// and /autowrite/enabled, and GET /autowrite/last, to the HTTPer
func (h HTTPWrapper) Inject(other server.HTTPer) {
	rt := other.RT()
	rec := h.Recorder
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = generichttp.SetString(rec.SetRoot)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = h.GetRoot
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = generichttp.SetString(rec.SetPrefix)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = generichttp.GetString(func() (string, error) {
		return rec.Prefix(), nil
	})
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}] = generichttp.SetBool(rec.SetEnabled)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/enabled"}] = generichttp.GetBool(func() (bool, error) {
		return rec.Enabled(), nil
	})
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/last"}] = h.GetLast
}
