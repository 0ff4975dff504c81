// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
)

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}

// HumanPayload is a struct containing the basic types a handler may reply
// with.  T selects which field is sent.
type HumanPayload struct {
	Bool   bool
	Int    int
	Float  float64
	String string
	T      types.BasicKind
}

// EncodeAndRespond writes the payload as one of BoolT, IntT, FloatT or StrT
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Bool:
		v = BoolT{Bool: hp.Bool}
	case types.Int:
		v = IntT{Int: hp.Int}
	case types.Float64:
		v = FloatT{F64: hp.Float}
	case types.String:
		v = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unsupported payload kind %v", hp.T), http.StatusInternalServerError)
		return
	}
	EncodeAndRespond(w, v)
}

// EncodeAndRespond writes v as JSON with a 200
func EncodeAndRespond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Error(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// ReplyWithFile replies to the client request by serving the given file name
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fn string, fldr string) {
	filePath, err := filepath.Abs(filepath.Join(fldr, fn))
	if err != nil {
		fstr := fmt.Sprintf("unable to compute abspath of file %s %s %s", fldr, fn, err)
		log.Error(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		fstr := fmt.Sprintf("source file missing %s", filePath)
		log.Error(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fstr := fmt.Sprintf("error retrieving source file stats %s", err)
		log.Error(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, filepath.Base(filePath), stat.ModTime(), f)
}

// MethodPath is an HTTP method and a route
type MethodPath struct {
	Method string
	Path   string
}

func (mp MethodPath) String() string {
	return mp.Method + " " + mp.Path
}

// RouteTable maps method and path pairs to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the routes of a RouteTable in order
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k.String())
	}
	sort.Strings(routes)
	return routes
}

// Bind binds every route to r, plus GET /endpoints listing them
func (rt RouteTable) Bind(r chi.Router) {
	for mp, fn := range rt {
		r.MethodFunc(mp.Method, mp.Path, fn)
	}
	r.Get("/endpoints", func(w http.ResponseWriter, req *http.Request) {
		EncodeAndRespond(w, rt.Endpoints())
	})
}

// HTTPer is anything which exposes a RouteTable
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize makes str a chi mount point: a leading slash and no
// trailing one, "/" alone for the root
func SubMuxSanitize(str string) string {
	str = strings.Trim(str, "/")
	return "/" + str
}
