package telemetry

import (
	"context"
	"time"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/temperature"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Thermometer is what the scheduler samples; *ccd.Session satisfies it
type Thermometer interface {
	Temperature() (temperature.Celsius, ccd.TemperatureStatus, error)
}

// Scheduler samples a Thermometer on a cron schedule and publishes the
// readings
type Scheduler struct {
	cron  *cron.Cron
	therm Thermometer
	pub   Publisher

	// Timeout bounds one publish
	Timeout time.Duration
}

// NewScheduler returns a stopped scheduler sampling therm at spec, which
// is any robfig/cron spec, eg "@every 30s"
func NewScheduler(spec string, therm Thermometer, pub Publisher) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), therm: therm, pub: pub, Timeout: 5 * time.Second}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, errors.Wrapf(err, "schedule %q", spec)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if err := s.Sample(ctx); err != nil {
		log.WithError(err).Warn("publishing temperature")
	}
}

// Sample reads the temperature once and publishes it.  A failed read is
// published with its error rather than returned.
func (s *Scheduler) Sample(ctx context.Context) error {
	t, st, err := s.therm.Temperature()
	smp := TemperatureSample{Time: time.Now().UTC(), Temperature: t, Status: st.String()}
	if err != nil {
		smp.Error = err.Error()
	}
	return s.pub.PublishTemperature(ctx, smp)
}

// Start runs the schedule in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sample to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
