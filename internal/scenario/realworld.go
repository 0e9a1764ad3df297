package scenario

import "math"

// DailyCycle follows the wall clock through a day/night temperature
// sinusoid peaking around 14:00. Humidity moves inversely.
type DailyCycle struct {
	base
	dayTemp   float64
	nightTemp float64
}

// NewDailyCycle creates a DailyCycle scenario.
func NewDailyCycle(p Params) *DailyCycle {
	return &DailyCycle{
		base:      newBase(p),
		dayTemp:   floatOr(p.DayTemp, 25.0),
		nightTemp: floatOr(p.NightTemp, 18.0),
	}
}

// GetValue implements Scenario.
func (s *DailyCycle) GetValue(sensorID int, limits Limits) SensorValue {
	now := s.now()
	hour := float64(now.Hour()) + float64(now.Minute())/60.0

	dailyFactor := math.Sin((hour - 8) * math.Pi / 12)

	amplitude := (s.dayTemp - s.nightTemp) / 2
	center := (s.dayTemp + s.nightTemp) / 2

	bias := float64(sensorID-1) * 0.2
	temp := center + amplitude*dailyFactor + bias
	temp += s.uniform(-1, 1)

	hum := s.p.HumBase - 10*dailyFactor
	hum += s.uniform(-s.p.HumVariation, s.p.HumVariation)

	return s.classified(temp, hum, limits)
}

// HVACControl emulates a hysteresis thermostat: cooling kicks in above
// setpoint+hysteresis and stops below setpoint-hysteresis. The ambient
// temperature is scenario state shared by all sensors.
type HVACControl struct {
	base
	setpoint    float64
	hysteresis  float64
	on          bool
	currentTemp float64
}

// NewHVACControl creates an HVACControl scenario.
func NewHVACControl(p Params) *HVACControl {
	setpoint := floatOr(p.Setpoint, 22.0)
	return &HVACControl{
		base:        newBase(p),
		setpoint:    setpoint,
		hysteresis:  floatOr(p.Hysteresis, 1.0),
		currentTemp: setpoint,
	}
}

// GetValue implements Scenario.
func (s *HVACControl) GetValue(sensorID int, limits Limits) SensorValue {
	if s.currentTemp > s.setpoint+s.hysteresis {
		s.on = true
	} else if s.currentTemp < s.setpoint-s.hysteresis {
		s.on = false
	}

	if s.on {
		s.currentTemp -= s.uniform(0.1, 0.3)
	} else {
		s.currentTemp += s.uniform(0.05, 0.15)
	}

	bias := float64(sensorID-1) * 0.1
	temp := s.currentTemp + bias + s.uniform(-0.3, 0.3)

	hum := s.p.HumBase - 2
	if s.on {
		hum = s.p.HumBase + 5
	}
	hum += s.uniform(-s.p.HumVariation*0.5, s.p.HumVariation*0.5)

	return s.classified(temp, hum, limits)
}

// Running reports whether the simulated cooling is currently on.
func (s *HVACControl) Running() bool { return s.on }

// DoorOpen models a door that randomly opens for 5-15 ticks. While
// open, the room temperature is pulled 30% toward the outside value and
// humidity swings widely.
type DoorOpen struct {
	base
	openProbability float64
	outsideTemp     float64
	open            bool
	timer           int
}

// NewDoorOpen creates a DoorOpen scenario.
func NewDoorOpen(p Params) *DoorOpen {
	return &DoorOpen{
		base:            newBase(p),
		openProbability: floatOr(p.OpenProbability, 0.1),
		outsideTemp:     floatOr(p.OutsideTemp, 35.0),
	}
}

// GetValue implements Scenario.
func (s *DoorOpen) GetValue(sensorID int, limits Limits) SensorValue {
	if !s.open && s.chance(s.openProbability) {
		s.open = true
		s.timer = 5 + s.rng.Intn(11)
	}

	if s.open {
		s.timer--
		if s.timer <= 0 {
			s.open = false
		}
	}

	bias := float64(sensorID-1) * 0.3

	var temp, hum float64
	if s.open {
		temp = s.p.TempBase + (s.outsideTemp-s.p.TempBase)*0.3
		temp += s.uniform(-2, 2)
		hum = s.p.HumBase + s.uniform(-10, 10)
	} else {
		temp = s.p.TempBase + bias + s.uniform(-s.p.TempVariation, s.p.TempVariation)
		hum = s.p.HumBase + s.uniform(-s.p.HumVariation, s.p.HumVariation)
	}

	return s.classified(temp, hum, limits)
}

// PowerOutage models a supply failure lasting 10-30 ticks during which
// every sensor reports offline with a no-power fault. Outside an outage
// the status is reported normal regardless of limits.
type PowerOutage struct {
	base
	outageProbability float64
	off               bool
	timer             int
}

// NewPowerOutage creates a PowerOutage scenario.
func NewPowerOutage(p Params) *PowerOutage {
	return &PowerOutage{base: newBase(p), outageProbability: floatOr(p.OutageProbability, 0.05)}
}

// GetValue implements Scenario.
func (s *PowerOutage) GetValue(sensorID int, limits Limits) SensorValue {
	if !s.off && s.chance(s.outageProbability) {
		s.off = true
		s.timer = 10 + s.rng.Intn(21)
	}

	if s.off {
		s.timer--
		if s.timer <= 0 {
			s.off = false
		}
		return offlineValue(FaultNoPower)
	}

	temp, hum := s.steadySample(sensorID)
	return s.forcedNormal(temp, hum)
}

// SensorFailure models sensors breaking permanently. Each call rolls a
// per-sensor Bernoulli trial; once a sensor enters the failed set it
// never recovers, alternating between not answering and returning
// out-of-range garbage flagged as invalid data.
type SensorFailure struct {
	base
	failureRate float64
	failed      map[int]bool
}

// NewSensorFailure creates a SensorFailure scenario.
func NewSensorFailure(p Params) *SensorFailure {
	return &SensorFailure{
		base:        newBase(p),
		failureRate: floatOr(p.FailureRate, 0.01),
		failed:      make(map[int]bool),
	}
}

// GetValue implements Scenario.
func (s *SensorFailure) GetValue(sensorID int, limits Limits) SensorValue {
	if !s.failed[sensorID] && s.chance(s.failureRate) {
		s.failed[sensorID] = true
	}

	if s.failed[sensorID] {
		if s.chance(0.5) {
			return offlineValue(FaultSensorFailure)
		}
		return SensorValue{
			Temperature:    round1(s.uniform(-40, 85)),
			Humidity:       round1(s.uniform(0, 100)),
			TempStatus:     StatusAlarm,
			HumStatus:      StatusAlarm,
			CombinedStatus: StatusAlarm,
			Fault:          FaultInvalidData,
		}
	}

	temp, hum := s.steadySample(sensorID)
	return s.classified(temp, hum, limits)
}

// FailSensor forces a sensor into the failed set. Test hook.
func (s *SensorFailure) FailSensor(sensorID int) { s.failed[sensorID] = true }
