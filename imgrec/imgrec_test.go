package imgrec

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LivTel/autoguider-sub002/server"
	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []uint16 {
	buf := make([]uint16, n)
	for i := range buf {
		buf[i] = uint16(i * 100)
	}
	return buf
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
}

func TestChecksumChangesWithData(t *testing.T) {
	a := ramp(16)
	b := ramp(16)
	assert.Equal(t, Checksum(a), Checksum(b))
	b[3]++
	assert.NotEqual(t, Checksum(a), Checksum(b))
}

func TestChecksumKnownValue(t *testing.T) {
	// the pixels spell "12345678" big endian
	buf := []uint16{0x3132, 0x3334, 0x3536, 0x3738}
	assert.Equal(t, uint32(0x9ae0daaf), Checksum(buf))
}

func TestWriteFitsHeader(t *testing.T) {
	var out bytes.Buffer
	id := uuid.New()
	buf := ramp(12)
	cards := append(FrameCards(id, buf, fixedClock()), fitsio.Card{Name: "INSTRUME", Value: "test"})
	require.NoError(t, WriteFits(&out, buf, 4, 3, cards))

	f, err := fitsio.Open(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	img, ok := f.HDU(0).(fitsio.Image)
	require.True(t, ok)
	hdr := img.Header()
	assert.Equal(t, []int{4, 3}, hdr.Axes())
	assert.Equal(t, 16, hdr.Bitpix())
	assert.Equal(t, id.String(), hdr.Get("EXPID").Value)
	assert.Equal(t, "test", hdr.Get("INSTRUME").Value)
	assert.NotNil(t, hdr.Get("DATACRC"))
	assert.NotNil(t, hdr.Get("BZERO"))
}

func TestWriteFitsRejectsShortBuffer(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, WriteFits(&out, ramp(11), 4, 3, nil))
	assert.Error(t, WriteFits(&out, ramp(12), 0, 3, nil))
}

func TestSave(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "frame.fits")
	require.NoError(t, Save(fn, ramp(4), 2, 2))
	st, err := os.Stat(fn)
	require.NoError(t, err)
	// FITS files are a whole number of 2880 byte blocks
	assert.Zero(t, st.Size()%2880)
}

func TestRecorderNumbersFiles(t *testing.T) {
	root := t.TempDir()
	r := New(root, "ag", true)
	r.now = fixedClock

	fn1, err := r.Record(ramp(4), 2, 2, nil)
	require.NoError(t, err)
	fn2, err := r.Record(ramp(4), 2, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "2026-03-14", "ag000001.fits"), fn1)
	assert.Equal(t, filepath.Join(root, "2026-03-14", "ag000002.fits"), fn2)
	assert.Equal(t, fn2, r.Last())
}

func TestRecorderSkipsForeignFiles(t *testing.T) {
	root := t.TempDir()
	r := New(root, "ag", true)
	r.now = fixedClock
	dir := filepath.Join(root, "2026-03-14")
	require.NoError(t, os.MkdirAll(dir, 0777))
	for _, fn := range []string{"ag000041.fits", "agnotes.fits", "other000099.fits", "ag000050.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fn), nil, 0666))
	}
	fn, err := r.Record(ramp(4), 2, 2, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fn, "ag000042.fits"))
}

type routes server.RouteTable

func (r routes) RT() server.RouteTable { return server.RouteTable(r) }

func TestHTTPWrapper(t *testing.T) {
	root := t.TempDir()
	rec := New(root, "ag", false)
	rec.now = fixedClock
	rt := routes{}
	NewHTTPWrapper(rec).Inject(rt)
	mux := chi.NewRouter()
	server.RouteTable(rt).Bind(mux)

	req := httptest.NewRequest(http.MethodPost, "/autowrite/enabled", strings.NewReader(`{"bool":true}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, rec.Enabled())

	req = httptest.NewRequest(http.MethodGet, "/autowrite/prefix", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var s server.StrT
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	assert.Equal(t, "ag", s.Str)

	req = httptest.NewRequest(http.MethodGet, "/autowrite/last", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := rec.Record(ramp(4), 2, 2, nil)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/autowrite/last", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "SIMPLE"))
}
