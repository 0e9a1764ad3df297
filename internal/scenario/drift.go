package scenario

// Drift models a slow monotonic temperature change (heating up or
// cooling down). The accumulated offset is shared across sensors;
// humidity moves in the opposite direction at half the rate.
type Drift struct {
	base
	rate   float64
	offset float64
}

// NewDriftUp creates a scenario whose temperature rises by the drift
// rate on every call.
func NewDriftUp(p Params) *Drift {
	return &Drift{base: newBase(p), rate: floatOr(p.DriftRate, 0.1)}
}

// NewDriftDown creates a scenario whose temperature falls by the drift
// rate on every call.
func NewDriftDown(p Params) *Drift {
	return &Drift{base: newBase(p), rate: -floatOr(p.DriftRate, 0.1)}
}

// GetValue implements Scenario.
func (s *Drift) GetValue(sensorID int, limits Limits) SensorValue {
	bias := float64(sensorID-1) * 0.3

	s.offset += s.rate

	temp := s.p.TempBase + bias + s.offset
	temp += s.uniform(-s.p.TempVariation*0.5, s.p.TempVariation*0.5)

	// Humidity is anti-correlated: it drops while temperature rises.
	hum := s.p.HumBase - s.offset*0.5
	hum += s.uniform(-s.p.HumVariation, s.p.HumVariation)

	return s.classified(temp, hum, limits)
}
