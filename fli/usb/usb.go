// Package usb finds FLI cameras on the USB bus
package usb

import (
	"fmt"

	"github.com/google/gousb"
)

// VendorID is Finger Lakes Instrumentation's USB vendor id
const VendorID gousb.ID = 0x0f18

// Device describes one attached FLI unit
type Device struct {
	Bus     int
	Address int
	Product gousb.ID
	Speed   gousb.Speed
}

func (d Device) String() string {
	return fmt.Sprintf("bus %03d device %03d: FLI product %s (%s)", d.Bus, d.Address, d.Product, d.Speed)
}

// List enumerates the FLI devices attached.  It opens none of them.
func List() ([]Device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	var found []Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == VendorID {
			found = append(found, Device{Bus: desc.Bus, Address: desc.Address, Product: desc.Product, Speed: desc.Speed})
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	return found, err
}
