package scenario

import "math"

// Sine produces periodic temperature oscillation with a per-sensor
// phase shift. Humidity oscillates in antiphase at twice the amplitude.
type Sine struct {
	base
	period    int
	amplitude float64
	iteration int
}

// NewSine creates a Sine scenario. The period is measured in GetValue
// iterations, not wall time.
func NewSine(p Params) *Sine {
	return &Sine{
		base:      newBase(p),
		period:    intOr(p.Period, 60),
		amplitude: floatOr(p.Amplitude, 5.0),
	}
}

// GetValue implements Scenario.
func (s *Sine) GetValue(sensorID int, limits Limits) SensorValue {
	bias := float64(sensorID-1) * 0.3

	phase := float64(sensorID-1) * (2 * math.Pi / 10)
	wave := math.Sin(2*math.Pi*float64(s.iteration)/float64(s.period) + phase)

	temp := s.p.TempBase + bias + s.amplitude*wave
	temp += s.uniform(-s.p.TempVariation*0.3, s.p.TempVariation*0.3)

	hum := s.p.HumBase - (s.amplitude*2)*wave
	hum += s.uniform(-s.p.HumVariation*0.5, s.p.HumVariation*0.5)

	s.iteration++

	return s.classified(temp, hum, limits)
}
