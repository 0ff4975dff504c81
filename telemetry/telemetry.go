// Package telemetry publishes camera temperature samples and exposure
// events, over MQTT or to any other Publisher
package telemetry

import (
	"context"
	"time"

	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/temperature"
)

// TemperatureSample is one temperature reading
type TemperatureSample struct {
	Time        time.Time           `json:"time"`
	Temperature temperature.Celsius `json:"temperature"`
	Status      string              `json:"status"`
	Error       string              `json:"error,omitempty"`
}

// ExposureEvent describes a finished exposure
type ExposureEvent struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Start   time.Time `json:"start"`
	Length  float64   `json:"length"`
	Columns int       `json:"columns"`
	Rows    int       `json:"rows"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	CRC     string    `json:"crc,omitempty"`
}

// Publisher sends telemetry somewhere
type Publisher interface {
	PublishTemperature(ctx context.Context, s TemperatureSample) error
	PublishExposure(ctx context.Context, e ExposureEvent) error
}

// Outcome names the result of an exposure by its error kind
func Outcome(err error) string {
	switch ccd.KindOf(err) {
	case ccd.KindNone:
		return "ok"
	case ccd.Aborted:
		return "aborted"
	case ccd.Timeout:
		return "timeout"
	default:
		return "failed"
	}
}

// Discard is a Publisher which drops everything
type Discard struct{}

func (Discard) PublishTemperature(context.Context, TemperatureSample) error { return nil }
func (Discard) PublishExposure(context.Context, ExposureEvent) error        { return nil }
