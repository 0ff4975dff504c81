package fli

import (
	"sync"
	"syscall"
	"time"
)

// Simulator is an in-process libfli stand in
type Simulator struct {
	mu sync.Mutex

	// Array and Visible are the areas reported at open, lower right exclusive
	Array, Visible [4]int

	// Unknown keeps the device status at CameraStatusUnknown
	Unknown bool

	// Step is how far the sensor moves towards the target per GetTemperature
	Step float64

	// Fail makes the named call return the given code
	Fail map[string]int64

	Calls []string

	open      bool
	frameType int
	exposure  time.Duration
	ends      time.Time
	exposing  bool
	area      [4]int
	hbin      int
	vbin      int
	row       int
	temp      float64
	target    float64
}

// NewSimulator returns a simulated MicroLine with a 1024x1024 visible area
// behind 8 columns of bias strip
func NewSimulator() *Simulator {
	return &Simulator{
		Array:   [4]int{0, 0, 1040, 1032},
		Visible: [4]int{8, 4, 1032, 1028},
		Step:    5,
		temp:    20,
		target:  20,
	}
}

func (s *Simulator) call(name string) (int64, bool) {
	s.Calls = append(s.Calls, name)
	if code, ok := s.Fail[name]; ok {
		return code, true
	}
	return 0, false
}

// Called reports how many times the named call was made
func (s *Simulator) Called(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// ImageArea returns the last FLISetImageArea arguments, lower right in
// binned pixels
func (s *Simulator) ImageArea() [4]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.area
}

// FrameType returns the last frame type set
func (s *Simulator) FrameType() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameType
}

func (s *Simulator) Open(name string, domain int) (Device, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code, failed := s.call("FLIOpen"); failed {
		return 0, code
	}
	if domain != DomainUSB|DeviceCamera {
		return 0, -int64(syscall.EINVAL)
	}
	s.open = true
	return 1, 0
}

func (s *Simulator) Close(dev Device) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLIClose")
	if !failed {
		s.open = false
	}
	return code
}

func (s *Simulator) GetArrayArea(dev Device) (int, int, int, int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("FLIGetArrayArea")
	a := s.Array
	return a[0], a[1], a[2], a[3], code
}

func (s *Simulator) GetVisibleArea(dev Device) (int, int, int, int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("FLIGetVisibleArea")
	v := s.Visible
	return v[0], v[1], v[2], v[3], code
}

func (s *Simulator) SetHBin(dev Device, bin int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLISetHBin")
	if !failed {
		s.hbin = bin
	}
	return code
}

func (s *Simulator) SetVBin(dev Device, bin int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLISetVBin")
	if !failed {
		s.vbin = bin
	}
	return code
}

func (s *Simulator) SetImageArea(dev Device, ulx, uly, lrx, lry int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLISetImageArea")
	if failed {
		return code
	}
	// the lower right corner counts binned pixels from the upper left
	hbin, vbin := s.hbin, s.vbin
	if hbin < 1 {
		hbin = 1
	}
	if vbin < 1 {
		vbin = 1
	}
	if ulx < s.Array[0] || uly < s.Array[1] || lrx <= ulx || lry <= uly ||
		ulx+(lrx-ulx)*hbin > s.Array[2] || uly+(lry-uly)*vbin > s.Array[3] {
		return -int64(syscall.EINVAL)
	}
	s.area = [4]int{ulx, uly, lrx, lry}
	return 0
}

func (s *Simulator) SetFrameType(dev Device, typ int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLISetFrameType")
	if !failed {
		s.frameType = typ
	}
	return code
}

func (s *Simulator) SetExposureTime(dev Device, ms int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLISetExposureTime")
	if !failed {
		s.exposure = time.Duration(ms) * time.Millisecond
	}
	return code
}

func (s *Simulator) ExposeFrame(dev Device) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLIExposeFrame")
	if !failed {
		s.exposing = true
		s.ends = time.Now().Add(s.exposure)
		s.row = 0
	}
	return code
}

func (s *Simulator) GetDeviceStatus(dev Device) (uint32, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("FLIGetDeviceStatus")
	switch {
	case s.Unknown:
		return CameraStatusUnknown, code
	case s.exposing && time.Now().Before(s.ends):
		return CameraStatusExposing, code
	case s.exposing:
		return CameraStatusReadingCCD | CameraDataReady, code
	}
	return CameraStatusIdle, code
}

func (s *Simulator) CancelExposure(dev Device) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLICancelExposure")
	if !failed {
		s.exposing = false
	}
	return code
}

// GrabRow fills row with the row number in every pixel
func (s *Simulator) GrabRow(dev Device, row []uint16) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code, failed := s.call("FLIGrabRow"); failed {
		return code
	}
	for i := range row {
		row[i] = uint16(s.row)
	}
	s.row++
	s.exposing = false
	return 0
}

// GetTemperature moves the sensor one Step towards the target
func (s *Simulator) GetTemperature(dev Device) (float64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code, failed := s.call("FLIGetTemperature"); failed {
		return 0, code
	}
	switch d := s.target - s.temp; {
	case d > s.Step:
		s.temp += s.Step
	case d < -s.Step:
		s.temp -= s.Step
	default:
		s.temp = s.target
	}
	return s.temp, 0
}

func (s *Simulator) SetTemperature(dev Device, t float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("FLISetTemperature")
	if !failed {
		s.target = t
	}
	return code
}

// GetCoolerPower is proportional to the distance below 20C
func (s *Simulator) GetCoolerPower(dev Device) (float64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("FLIGetCoolerPower")
	p := (20 - s.temp) * 2
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p, code
}
