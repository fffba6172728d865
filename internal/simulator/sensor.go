package simulator

import (
	"context"
	"math/rand"

	"github.com/nerrad567/luxbridge/internal/infrastructure/config"
)

// Sensor produces one reading per call.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

// FakeSensor returns base ± variation with a uniform spread.
type FakeSensor struct {
	base      float64
	variation float64
	min       float64
	clamp     bool
	random    func() float64
}

// NewFakeSensor creates a sensor centred on base.
// variation 100 around base 500 yields values in [400, 600).
func NewFakeSensor(base, variation float64) *FakeSensor {
	return &FakeSensor{base: base, variation: variation, random: rand.Float64}
}

// NewLightSensor is a FakeSensor that never reports negative lux.
func NewLightSensor(base, variation float64) *FakeSensor {
	s := NewFakeSensor(base, variation)
	s.clamp = true
	return s
}

// newSensors builds the three simulated sensors from config.
func newSensors(cfg config.SimulatorConfig) (temp, humi, light Sensor) {
	return NewFakeSensor(cfg.Temperature.Base, cfg.Temperature.Variation),
		NewFakeSensor(cfg.Humidity.Base, cfg.Humidity.Variation),
		NewLightSensor(cfg.Light.Base, cfg.Light.Variation)
}

// Read implements Sensor.
func (s *FakeSensor) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	v := s.base + (s.random()-0.5)*2*s.variation
	if s.clamp && v < s.min {
		v = s.min
	}
	return v, nil
}
