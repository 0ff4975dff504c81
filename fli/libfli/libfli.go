//go:build fli

/*Package libfli binds libfli, the Finger Lakes Instrumentation camera
library, for the fli backend.  Calls return libfli's codes untouched.
*/
package libfli

/*
#cgo LDFLAGS: -L/usr/local/lib -lfli -lm
#include <stdlib.h>
#include <libfli.h>
*/
import "C"
import (
	"unsafe"

	"github.com/LivTel/autoguider-sub002/fli"
)

// Library is the process-wide libfli
type Library struct{}

var _ fli.SDK = Library{}

// Open opens the named device, eg /dev/fliusb0
func (Library) Open(name string, domain int) (fli.Device, int64) {
	var dev C.flidev_t
	cstr := C.CString(name)
	defer C.free(unsafe.Pointer(cstr))
	code := int64(C.FLIOpen(&dev, cstr, C.flidomain_t(domain)))
	return fli.Device(dev), code
}

func (Library) Close(dev fli.Device) int64 {
	return int64(C.FLIClose(C.flidev_t(dev)))
}

func (Library) GetArrayArea(dev fli.Device) (int, int, int, int, int64) {
	var ulx, uly, lrx, lry C.long
	code := int64(C.FLIGetArrayArea(C.flidev_t(dev), &ulx, &uly, &lrx, &lry))
	return int(ulx), int(uly), int(lrx), int(lry), code
}

func (Library) GetVisibleArea(dev fli.Device) (int, int, int, int, int64) {
	var ulx, uly, lrx, lry C.long
	code := int64(C.FLIGetVisibleArea(C.flidev_t(dev), &ulx, &uly, &lrx, &lry))
	return int(ulx), int(uly), int(lrx), int(lry), code
}

func (Library) SetHBin(dev fli.Device, bin int) int64 {
	return int64(C.FLISetHBin(C.flidev_t(dev), C.long(bin)))
}

func (Library) SetVBin(dev fli.Device, bin int) int64 {
	return int64(C.FLISetVBin(C.flidev_t(dev), C.long(bin)))
}

// SetImageArea takes the lower right corner exclusive
func (Library) SetImageArea(dev fli.Device, ulx, uly, lrx, lry int) int64 {
	return int64(C.FLISetImageArea(C.flidev_t(dev), C.long(ulx), C.long(uly), C.long(lrx), C.long(lry)))
}

func (Library) SetFrameType(dev fli.Device, typ int) int64 {
	return int64(C.FLISetFrameType(C.flidev_t(dev), C.fliframe_t(typ)))
}

// SetExposureTime is in milliseconds
func (Library) SetExposureTime(dev fli.Device, ms int64) int64 {
	return int64(C.FLISetExposureTime(C.flidev_t(dev), C.long(ms)))
}

func (Library) ExposeFrame(dev fli.Device) int64 {
	return int64(C.FLIExposeFrame(C.flidev_t(dev)))
}

func (Library) GetDeviceStatus(dev fli.Device) (uint32, int64) {
	var status C.long
	code := int64(C.FLIGetDeviceStatus(C.flidev_t(dev), &status))
	return uint32(status), code
}

func (Library) CancelExposure(dev fli.Device) int64 {
	return int64(C.FLICancelExposure(C.flidev_t(dev)))
}

// GrabRow reads the next len(row) pixels of the image
func (Library) GrabRow(dev fli.Device, row []uint16) int64 {
	if len(row) == 0 {
		return 0
	}
	return int64(C.FLIGrabRow(C.flidev_t(dev), unsafe.Pointer(&row[0]), C.size_t(len(row))))
}

func (Library) GetTemperature(dev fli.Device) (float64, int64) {
	var t C.double
	code := int64(C.FLIGetTemperature(C.flidev_t(dev), &t))
	return float64(t), code
}

func (Library) SetTemperature(dev fli.Device, t float64) int64 {
	return int64(C.FLISetTemperature(C.flidev_t(dev), C.double(t)))
}

// GetCoolerPower is in percent
func (Library) GetCoolerPower(dev fli.Device) (float64, int64) {
	var p C.double
	code := int64(C.FLIGetCoolerPower(C.flidev_t(dev), &p))
	return float64(p), code
}
