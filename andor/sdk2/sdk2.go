//go:build andor

/*Package sdk2 binds the Andor SDK, v2, for the andor backend

Library mirrors the C API one to one, returning the raw DRV_ return codes;
interpretation is left to package andor.  Only the calls an autoguider needs
are bound.  We do not support multiple processes sharing one camera.
*/
package sdk2

/*
#cgo CFLAGS: -I/usr/local
#cgo LDFLAGS: -L/usr/local/lib -landor
#include <stdlib.h>
#include <atmcdLXd.h>
*/
import "C"
import (
	"unsafe"

	"github.com/LivTel/autoguider-sub002/andor"
)

// Library is the process-wide libandor.  It holds no state; the SDK keeps
// the current camera itself.
type Library struct{}

var _ andor.SDK = Library{}

// GetAvailableCameras returns the number of cameras attached
func (Library) GetAvailableCameras() (int, uint) {
	var n C.at_32
	errCode := uint(C.GetAvailableCameras(&n))
	return int(n), errCode
}

// GetCameraHandle converts a camera index to a handle
func (Library) GetCameraHandle(index int) (int, uint) {
	var h C.at_32
	errCode := uint(C.GetCameraHandle(C.at_32(index), &h))
	return int(h), errCode
}

// SetCurrentCamera selects the camera later calls address
func (Library) SetCurrentCamera(handle int) uint {
	return uint(C.SetCurrentCamera(C.at_32(handle)))
}

// Initialize loads the SDK with the detector configuration in dir
func (Library) Initialize(dir string) uint {
	cstr := C.CString(dir)
	defer C.free(unsafe.Pointer(cstr))
	return uint(C.Initialize(cstr))
}

func (Library) SetReadMode(mode int) uint {
	return uint(C.SetReadMode(C.int(mode)))
}

func (Library) SetAcquisitionMode(mode int) uint {
	return uint(C.SetAcquisitionMode(C.int(mode)))
}

// GetDetector returns the detector size in pixels
func (Library) GetDetector() (int, int, uint) {
	var x, y C.int
	errCode := uint(C.GetDetector(&x, &y))
	return int(x), int(y), errCode
}

// SetShutter wraps the SDK exactly; times are in milliseconds
func (Library) SetShutter(typ, mode, closingMs, openingMs int) uint {
	return uint(C.SetShutter(C.int(typ), C.int(mode), C.int(closingMs), C.int(openingMs)))
}

func (Library) SetFrameTransferMode(mode int) uint {
	return uint(C.SetFrameTransferMode(C.int(mode)))
}

// SetExposureTime sets the exposure time in seconds
func (Library) SetExposureTime(seconds float32) uint {
	return uint(C.SetExposureTime(C.float(seconds)))
}

func (Library) StartAcquisition() uint {
	return uint(C.StartAcquisition())
}

// GetStatus returns the acquisition status, itself a DRV_ code
func (Library) GetStatus() (int, uint) {
	var stat C.int
	errCode := uint(C.GetStatus(&stat))
	return int(stat), errCode
}

func (Library) AbortAcquisition() uint {
	return uint(C.AbortAcquisition())
}

// GetAcquiredData16 copies the last image into buf
func (Library) GetAcquiredData16(buf []uint16) uint {
	if len(buf) == 0 {
		return uint(C.DRV_P2INVALID)
	}
	ptr := (*C.WORD)(unsafe.Pointer(&buf[0]))
	return uint(C.GetAcquiredData16(ptr, C.at_u32(len(buf))))
}

// SetImage wraps the SDK exactly and controls AoI and binning
func (Library) SetImage(hbin, vbin, hstart, hend, vstart, vend int) uint {
	return uint(C.SetImage(C.int(hbin), C.int(vbin), C.int(hstart), C.int(hend), C.int(vstart), C.int(vend)))
}

// GetTemperatureF reads the sensor.  The return code carries the thermal
// status (DRV_TEMP_*) rather than plain success.
func (Library) GetTemperatureF() (float32, uint) {
	var t C.float
	errCode := uint(C.GetTemperatureF(&t))
	return float32(t), errCode
}

func (Library) SetTemperature(t int) uint {
	return uint(C.SetTemperature(C.int(t)))
}

func (Library) CoolerON() uint {
	return uint(C.CoolerON())
}

func (Library) CoolerOFF() uint {
	return uint(C.CoolerOFF())
}

// ShutDown releases the camera.  The head should be above -20C first.
func (Library) ShutDown() uint {
	return uint(C.ShutDown())
}
