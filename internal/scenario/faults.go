package scenario

// Offline models total communication loss: every sensor reports offline
// with a timeout fault on every call.
type Offline struct {
	base
}

// NewOffline creates an Offline scenario.
func NewOffline(p Params) *Offline {
	return &Offline{base: newBase(p)}
}

// GetValue implements Scenario.
func (s *Offline) GetValue(sensorID int, limits Limits) SensorValue {
	return offlineValue(FaultTimeout)
}

// Intermittent models flaky communication: each call fails with the
// configured probability, otherwise the sensor behaves like Normal.
type Intermittent struct {
	base
	failureRate float64
}

// NewIntermittent creates an Intermittent scenario.
func NewIntermittent(p Params) *Intermittent {
	return &Intermittent{base: newBase(p), failureRate: floatOr(p.FailureRate, 0.2)}
}

// GetValue implements Scenario.
func (s *Intermittent) GetValue(sensorID int, limits Limits) SensorValue {
	if s.chance(s.failureRate) {
		return offlineValue(FaultTimeout)
	}
	temp, hum := s.steadySample(sensorID)
	return s.classified(temp, hum, limits)
}

// Timeout models a sensor with slow responses: calls time out with the
// configured probability; answered polls carry plausible values but the
// status is reported as normal regardless of limits, because the slow
// link does not reflect classification.
type Timeout struct {
	base
	timeoutRate float64
}

// NewTimeout creates a Timeout scenario.
func NewTimeout(p Params) *Timeout {
	return &Timeout{base: newBase(p), timeoutRate: floatOr(p.TimeoutRate, 0.3)}
}

// GetValue implements Scenario.
func (s *Timeout) GetValue(sensorID int, limits Limits) SensorValue {
	if s.chance(s.timeoutRate) {
		return offlineValue(FaultTimeout)
	}
	temp, hum := s.steadySample(sensorID)
	return s.forcedNormal(temp, hum)
}

// CRCError models frequent checksum failures. Same forced-normal
// behavior as Timeout on the answered path.
type CRCError struct {
	base
	errorRate float64
}

// NewCRCError creates a CRCError scenario.
func NewCRCError(p Params) *CRCError {
	return &CRCError{base: newBase(p), errorRate: floatOr(p.CRCErrorRate, 0.15)}
}

// GetValue implements Scenario.
func (s *CRCError) GetValue(sensorID int, limits Limits) SensorValue {
	if s.chance(s.errorRate) {
		return offlineValue(FaultCRCError)
	}
	temp, hum := s.steadySample(sensorID)
	return s.forcedNormal(temp, hum)
}

// PartialOffline takes a subset of the network down. The random subset
// is drawn once at construction over sensor ids 1..10 and unioned with
// the configured offline list; membership never changes afterwards.
type PartialOffline struct {
	base
	offline map[int]bool
}

// NewPartialOffline creates a PartialOffline scenario.
func NewPartialOffline(p Params) *PartialOffline {
	s := &PartialOffline{base: newBase(p), offline: make(map[int]bool)}
	prob := floatOr(p.OfflineProbability, 0.3)
	for id := 1; id <= 10; id++ {
		if s.chance(prob) {
			s.offline[id] = true
		}
	}
	for _, id := range p.OfflineSensors {
		s.offline[id] = true
	}
	return s
}

// GetValue implements Scenario.
func (s *PartialOffline) GetValue(sensorID int, limits Limits) SensorValue {
	if s.offline[sensorID] {
		return offlineValue(FaultTimeout)
	}
	temp, hum := s.steadySample(sensorID)
	return s.classified(temp, hum, limits)
}

// OfflineSet exposes the sensors taken down at construction. Used by
// tests to assert the set is fixed.
func (s *PartialOffline) OfflineSet() []int {
	ids := make([]int, 0, len(s.offline))
	for id := range s.offline {
		ids = append(ids, id)
	}
	return ids
}
