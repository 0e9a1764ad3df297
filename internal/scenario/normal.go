package scenario

// Normal produces stable readings: per-sensor bias plus uniform noise,
// classified against the caller's limits. It is also the fallback for
// unrecognized scenario names.
type Normal struct {
	base
}

// NewNormal creates a Normal scenario.
func NewNormal(p Params) *Normal {
	return &Normal{base: newBase(p)}
}

// GetValue implements Scenario.
func (s *Normal) GetValue(sensorID int, limits Limits) SensorValue {
	temp, hum := s.steadySample(sensorID)
	return s.classified(temp, hum, limits)
}
