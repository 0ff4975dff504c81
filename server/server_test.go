package server

import (
	"encoding/json"
	"go/types"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanPayload(t *testing.T) {
	cases := []struct {
		hp   HumanPayload
		body string
	}{
		{HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
		{HumanPayload{T: types.Int, Int: 7}, `{"int":7}`},
		{HumanPayload{T: types.Float64, Float: -40.5}, `{"f64":-40.5}`},
		{HumanPayload{T: types.String, String: "OK"}, `{"str":"OK"}`},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		c.hp.EncodeAndRespond(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.JSONEq(t, c.body, w.Body.String())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}
	w := httptest.NewRecorder()
	HumanPayload{T: types.Complex128}.EncodeAndRespond(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouteTableBind(t *testing.T) {
	rt := RouteTable{
		{Method: http.MethodGet, Path: "/rows"}:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
		{Method: http.MethodPost, Path: "/abort"}: func(w http.ResponseWriter, r *http.Request) {},
	}
	assert.Equal(t, []string{"GET /rows", "POST /abort"}, rt.Endpoints())

	r := chi.NewRouter()
	rt.Bind(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rows", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	var eps []string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&eps))
	assert.Equal(t, rt.Endpoints(), eps)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/abort", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestReplyWithFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.fits"), []byte("SIMPLE"), 0666))
	w := httptest.NewRecorder()
	ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/", nil), "a.fits", dir)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SIMPLE", w.Body.String())

	w = httptest.NewRecorder()
	ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/", nil), "b.fits", dir)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubMuxSanitize(t *testing.T) {
	assert.Equal(t, "/", SubMuxSanitize(""))
	assert.Equal(t, "/", SubMuxSanitize("/"))
	assert.Equal(t, "/ccd", SubMuxSanitize("ccd/"))
	assert.Equal(t, "/ag/ccd", SubMuxSanitize("/ag/ccd/"))
}
