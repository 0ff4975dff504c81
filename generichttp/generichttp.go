// Package generichttp adapts getter and setter functions to HTTP handlers
// speaking the server package's single field JSON payloads, and maps ccd
// error kinds to HTTP status codes
package generichttp

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/server"
)

// StatusOf is the HTTP status reporting err
func StatusOf(err error) int {
	switch ccd.KindOf(err) {
	case ccd.KindNone:
		return http.StatusOK
	case ccd.InvalidArgument:
		return http.StatusBadRequest
	case ccd.UnsupportedOperation:
		return http.StatusNotImplemented
	case ccd.Aborted:
		return http.StatusConflict
	case ccd.Timeout:
		return http.StatusGatewayTimeout
	case ccd.HardwareCommandFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Fail replies with err and the status StatusOf picks for it
func Fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusOf(err))
}

// Decode reads the JSON body of r into v, replying 400 on failure
func Decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, r *http.Request, err error, hp server.HumanPayload) {
	if err != nil {
		Fail(w, err)
		return
	}
	hp.EncodeAndRespond(w, r)
}

func accept(w http.ResponseWriter, err error) {
	if err != nil {
		Fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetFloat replies {"f64": value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		respond(w, r, err, server.HumanPayload{T: types.Float64, Float: f})
	}
}

// SetFloat parses {"f64": value} and calls fcn with it
func SetFloat(fcn func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := server.FloatT{}
		if Decode(w, r, &f) {
			accept(w, fcn(f.F64))
		}
	}
}

// GetInt replies {"int": value}
func GetInt(fcn func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i, err := fcn()
		respond(w, r, err, server.HumanPayload{T: types.Int, Int: i})
	}
}

// SetInt parses {"int": value} and calls fcn with it
func SetInt(fcn func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := server.IntT{}
		if Decode(w, r, &i) {
			accept(w, fcn(i.Int))
		}
	}
}

// GetString replies {"str": value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		respond(w, r, err, server.HumanPayload{T: types.String, String: s})
	}
}

// SetString parses {"str": value} and calls fcn with it
func SetString(fcn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := server.StrT{}
		if Decode(w, r, &s) {
			accept(w, fcn(s.Str))
		}
	}
}

// GetBool replies {"bool": value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		respond(w, r, err, server.HumanPayload{T: types.Bool, Bool: b})
	}
}

// SetBool parses {"bool": value} and calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := server.BoolT{}
		if Decode(w, r, &b) {
			accept(w, fcn(b.Bool))
		}
	}
}

// Call runs fcn, replying 200 or the error
func Call(fcn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accept(w, fcn())
	}
}
