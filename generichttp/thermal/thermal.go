// Package thermal exposes an HTTP interface to a camera's cooling system
package thermal

import (
	"net/http"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/generichttp"
	"github.com/LivTel/autoguider-sub002/server"
	"github.com/LivTel/autoguider-sub002/temperature"
)

// Controller is a camera's cooling system; *ccd.Session satisfies it
type Controller interface {
	// Temperature reads the sensor in Celsius and the cooling status
	Temperature() (temperature.Celsius, ccd.TemperatureStatus, error)

	// SetTemperature sets the target in Celsius
	SetTemperature(temperature.Celsius) error

	CoolerOn() error
	CoolerOff() error
}

// Reading is the reply of GET /temperature
type Reading struct {
	Temperature float64 `json:"temperature"`
	Kelvin      float64 `json:"kelvin"`
	Status      string  `json:"status"`
}

// GetTemperature returns an HTTP handler func that returns the temperature
// and status over HTTP
func GetTemperature(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, st, err := c.Temperature()
		if err != nil {
			generichttp.Fail(w, err)
			return
		}
		server.EncodeAndRespond(w, Reading{
			Temperature: float64(t),
			Kelvin:      float64(temperature.C2K(t)),
			Status:      st.String(),
		})
	}
}

// SetTemperatureSetpoint returns an HTTP handler func that sets the target
// from {"f64": celsius}
func SetTemperatureSetpoint(c Controller) http.HandlerFunc {
	return generichttp.SetFloat(func(f float64) error {
		return c.SetTemperature(temperature.Celsius(f))
	})
}

// SetCooler returns an HTTP handler func that turns the cooler on or off
// from {"bool": on}
func SetCooler(c Controller) http.HandlerFunc {
	return generichttp.SetBool(func(on bool) error {
		if on {
			return c.CoolerOn()
		}
		return c.CoolerOff()
	})
}

// HTTPController binds routes to control temperature to the table
func HTTPController(c Controller, table server.RouteTable) {
	table[server.MethodPath{Method: http.MethodGet, Path: "/temperature"}] = GetTemperature(c)
	table[server.MethodPath{Method: http.MethodPost, Path: "/temperature-setpoint"}] = SetTemperatureSetpoint(c)
	table[server.MethodPath{Method: http.MethodPost, Path: "/cooler"}] = SetCooler(c)
}
