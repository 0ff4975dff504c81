package andor

import (
	"sync"
	"time"
)

// Simulator is an in-process SDK2 stand in.  It keeps enough state to run
// the full startup, exposure and temperature sequences without hardware,
// and records every call it receives.
//
// Fail makes the named call return the given code instead of DRV_SUCCESS.
type Simulator struct {
	mu sync.Mutex

	Cameras       int
	Width, Height int

	// Hang keeps GetStatus reporting DRV_ACQUIRING forever
	Hang bool

	// Ambient is where the sensor drifts with the cooler off
	Ambient float32

	// Step is how far the sensor moves towards its goal per GetTemperatureF
	Step float32

	Fail map[string]uint

	Calls []string

	initialized bool
	acquiring   bool
	acqEnds     time.Time
	exposure    float32
	shutterMode int
	image       [6]int
	temp        float32
	target      float32
	cooler      bool
}

// NewSimulator returns a simulator of one 1024x1024 camera at 20C
func NewSimulator() *Simulator {
	return &Simulator{Cameras: 1, Width: 1024, Height: 1024, Ambient: 20, Step: 5, temp: 20}
}

func (s *Simulator) call(name string) (uint, bool) {
	s.Calls = append(s.Calls, name)
	if code, ok := s.Fail[name]; ok {
		return code, true
	}
	return uint(DRVSuccess), false
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

// Image returns the last SetImage arguments
func (s *Simulator) Image() (hbin, vbin, hstart, hend, vstart, vend int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.image
	return i[0], i[1], i[2], i[3], i[4], i[5]
}

// ShutterMode returns the mode of the last SetShutter
func (s *Simulator) ShutterMode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutterMode
}

func (s *Simulator) GetAvailableCameras() (int, uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("GetAvailableCameras")
	return s.Cameras, code
}

func (s *Simulator) GetCameraHandle(index int) (int, uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("GetCameraHandle")
	return 100 + index, code
}

func (s *Simulator) SetCurrentCamera(handle int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("SetCurrentCamera")
	return code
}

func (s *Simulator) Initialize(dir string) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("Initialize")
	if !failed {
		s.initialized = true
	}
	return code
}

func (s *Simulator) SetReadMode(mode int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("SetReadMode")
	return code
}

func (s *Simulator) SetAcquisitionMode(mode int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("SetAcquisitionMode")
	return code
}

func (s *Simulator) GetDetector() (int, int, uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("GetDetector")
	return s.Width, s.Height, code
}

func (s *Simulator) SetShutter(typ, mode, closingMs, openingMs int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("SetShutter")
	if !failed {
		s.shutterMode = mode
	}
	return code
}

func (s *Simulator) SetFrameTransferMode(mode int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("SetFrameTransferMode")
	return code
}

func (s *Simulator) SetExposureTime(seconds float32) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("SetExposureTime")
	if !failed {
		s.exposure = seconds
	}
	return code
}

func (s *Simulator) StartAcquisition() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("StartAcquisition")
	if !failed {
		s.acquiring = true
		s.acqEnds = time.Now().Add(time.Duration(float64(s.exposure) * float64(time.Second)))
	}
	return code
}

func (s *Simulator) GetStatus() (int, uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("GetStatus")
	if s.acquiring && (s.Hang || time.Now().Before(s.acqEnds)) {
		return int(DRVAcquiring), code
	}
	s.acquiring = false
	return int(DRVIdle), code
}

func (s *Simulator) AbortAcquisition() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("AbortAcquisition")
	if !failed {
		s.acquiring = false
	}
	return code
}

// GetAcquiredData16 fills buf with a ramp so readouts can be checked
func (s *Simulator) GetAcquiredData16(buf []uint16) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("GetAcquiredData16")
	if failed {
		return code
	}
	for i := range buf {
		buf[i] = uint16(i)
	}
	return code
}

func (s *Simulator) SetImage(hbin, vbin, hstart, hend, vstart, vend int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("SetImage")
	if !failed {
		s.image = [6]int{hbin, vbin, hstart, hend, vstart, vend}
	}
	return code
}

// GetTemperatureF moves the sensor one Step towards its goal and reports
// the thermal status code the way a real head does
func (s *Simulator) GetTemperatureF() (float32, uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code, failed := s.call("GetTemperatureF"); failed {
		return s.temp, code
	}
	if !s.initialized {
		return s.temp, uint(DRVNotInitialized)
	}
	if s.acquiring {
		return s.temp, uint(DRVAcquiring)
	}
	goal := s.Ambient
	if s.cooler {
		goal = s.target
	}
	switch d := goal - s.temp; {
	case d > s.Step:
		s.temp += s.Step
	case d < -s.Step:
		s.temp -= s.Step
	default:
		s.temp = goal
	}
	if !s.cooler {
		return s.temp, uint(DRVTempOff)
	}
	if s.temp != s.target {
		return s.temp, uint(DRVTempNotReached)
	}
	return s.temp, uint(DRVTempStabilized)
}

func (s *Simulator) SetTemperature(t int) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("SetTemperature")
	if !failed {
		s.target = float32(t)
	}
	return code
}

func (s *Simulator) CoolerON() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("CoolerON")
	if !failed {
		s.cooler = true
	}
	return code
}

func (s *Simulator) CoolerOFF() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, failed := s.call("CoolerOFF")
	if !failed {
		s.cooler = false
	}
	return code
}

func (s *Simulator) ShutDown() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, _ := s.call("ShutDown")
	s.initialized = false
	return code
}
