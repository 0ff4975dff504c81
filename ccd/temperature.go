package ccd

import (
	"math"

	"github.com/LivTel/autoguider-sub002/temperature"
)

// TemperatureStatus is the cross backend state of the cooling system
type TemperatureStatus int

const (
	// StatusUnknown means the backend cannot tell
	StatusUnknown TemperatureStatus = iota

	// StatusOff means the cooler is off
	StatusOff

	// StatusRamping means the sensor is moving towards the target
	StatusRamping

	// StatusOK means the sensor is at the target
	StatusOK
)

func (s TemperatureStatus) String() string {
	switch s {
	case StatusOff:
		return "OFF"
	case StatusRamping:
		return "RAMPING"
	case StatusOK:
		return "OK"
	default:
		return "UNKNOWN"
	}
}

// SetpointTolerance is how far from the target, in Celsius, a sensor may be
// and still be considered at temperature by StatusFromSetpoint
const SetpointTolerance = 1.0

// StatusFromSetpoint is the status of a backend which reports no discrete
// cooling state: ramping if current is more than SetpointTolerance away
// from target, else ok
func StatusFromSetpoint(current, target temperature.Celsius) TemperatureStatus {
	if math.Abs(float64(current-target)) > SetpointTolerance {
		return StatusRamping
	}
	return StatusOK
}
