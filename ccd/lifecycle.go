package ccd

import (
	"context"
	"time"

	"github.com/LivTel/autoguider-sub002/temperature"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Configuration keys read by Startup and Shutdown
const (
	KeyTargetTemperature = "ccd.temperature.target"
	KeyCoolerOn          = "ccd.temperature.cooler.on"
	KeyCoolerOff         = "ccd.temperature.cooler.off"
	KeyRampToAmbient     = "ccd.temperature.ramp_to_ambient"
	KeyLoopPauseLength   = "ccd.exposure.loop.pause.length"
	KeyTimeoutMargin     = "ccd.exposure.timeout.margin"
)

// ExposureOwner is a driver built on Exposure
type ExposureOwner interface {
	Exposure() *Exposure
}

// AmbientTemperature is where Shutdown stops waiting for the sensor to warm
const AmbientTemperature temperature.Celsius = 0

// RampInterval paces temperature reads while ramping to ambient
var RampInterval = time.Second

// Startup brings up the registered driver: it opens the camera, sets the
// target temperature, turns the cooler on if configured to and sets the
// exposure poll interval (milliseconds).  If the driver is an ExposureOwner
// and the configuration has a timeout margin (milliseconds), it is applied.
func Startup(ctx context.Context, s *Session, cfg Config) error {
	if err := s.SetupStartup(ctx); err != nil {
		return err
	}
	target, err := cfg.Float(KeyTargetTemperature)
	if err != nil {
		return s.fail("Startup", errors.Wrap(err, "get target temperature"))
	}
	s.log.Logf(LogTemperature, "setting target temperature to %.2f C", target)
	if err = s.SetTemperature(temperature.Celsius(target)); err != nil {
		return err
	}
	on, err := cfg.Bool(KeyCoolerOn)
	if err != nil {
		return s.fail("Startup", errors.Wrap(err, "get cooler configuration"))
	}
	if on {
		if s.Capabilities().Has(CapCoolerImplicit) {
			s.log.Log(LogTemperature, "cooling follows the target temperature on this backend")
		}
		if err = s.CoolerOn(); err != nil {
			return err
		}
	} else {
		s.log.Log(LogTemperature, "not turning cooler on")
	}
	ms, err := cfg.Int(KeyLoopPauseLength)
	if err != nil {
		return s.fail("Startup", errors.Wrap(err, "get exposure loop pause length"))
	}
	if err = s.SetLoopPauseLength(time.Duration(ms) * time.Millisecond); err != nil {
		return err
	}
	if eo, ok := s.Driver().(ExposureOwner); ok {
		if ms, err = cfg.Int(KeyTimeoutMargin); err == nil {
			s.log.Logf(LogExposure, "exposure timeout margin %d ms", ms)
			if err = eo.Exposure().SetMargin(time.Duration(ms) * time.Millisecond); err != nil {
				return s.fail("Startup", err)
			}
		}
	}
	return nil
}

// Shutdown turns the cooler off if configured to, optionally waits for the
// sensor to warm to AmbientTemperature and closes the camera.  Temperature
// read failures while warming are logged and do not stop the wait; only
// ctx ends it early.
func Shutdown(ctx context.Context, s *Session, cfg Config) error {
	off, err := cfg.Bool(KeyCoolerOff)
	if err != nil {
		return s.fail("Shutdown", errors.Wrap(err, "get cooler configuration"))
	}
	if off {
		s.log.Log(LogTemperature, "turning cooler off")
		if err = s.CoolerOff(); err != nil {
			return err
		}
	} else {
		s.log.Log(LogTemperature, "not turning cooler off")
	}
	ramp, err := cfg.Bool(KeyRampToAmbient)
	if err != nil {
		return s.fail("Shutdown", errors.Wrap(err, "get ambient ramping configuration"))
	}
	if ramp {
		if err = rampToAmbient(ctx, s); err != nil {
			return s.fail("Shutdown", err)
		}
	} else {
		s.log.Log(LogTemperature, "not ramping to ambient")
	}
	return s.SetupShutdown()
}

func rampToAmbient(ctx context.Context, s *Session) error {
	lim := rate.NewLimiter(rate.Every(RampInterval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return Errorf(Aborted, "Shutdown", "ramp to ambient interrupted: %v", err)
		}
		t, st, err := s.Temperature()
		if err != nil {
			s.log.Logf(LogTemperature, "failed to read temperature whilst ramping to ambient: %v", err)
			continue
		}
		s.log.Logf(LogTemperature, "ramping to ambient: %.2f C, status %s", t, st)
		if t >= AmbientTemperature {
			return nil
		}
	}
}
