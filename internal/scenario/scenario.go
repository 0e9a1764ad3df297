package scenario

import (
	"math"
	"math/rand"
	"time"
)

// Scenario produces one simulated reading per sensor per tick.
//
// GetValue must not block or sleep; temporal behavior (drift, cycles,
// fault onset and recovery) is carried in the scenario's private state.
// A scenario instance assumes a single caller: one driver goroutine
// evaluates all sensors serially within a tick.
type Scenario interface {
	GetValue(sensorID int, limits Limits) SensorValue
}

// Params is the construction-parameter bundle shared by all scenarios.
// Variant-specific knobs use pointers so that an absent value falls
// back to the variant's own default while an explicit zero is honored.
type Params struct {
	TempBase      float64
	TempVariation float64
	TempMin       float64
	TempMax       float64
	HumBase       float64
	HumVariation  float64
	HumMin        float64
	HumMax        float64

	// OfflineSensors lists sensor ids forced offline by configuration.
	// Only the partial-offline scenario consults it.
	OfflineSensors []int

	// Clock is used by wall-clock-dependent scenarios. Defaults to
	// time.Now; tests pin it.
	Clock func() time.Time

	// Rand is the noise source. Defaults to a time-seeded generator.
	Rand *rand.Rand

	DriftRate          *float64 // drift_up / drift_down, default 0.1
	Period             *int     // sine, in iterations, default 60
	Amplitude          *float64 // sine, default 5.0
	FailureRate        *float64 // intermittent 0.2, sensor_failure 0.01
	TimeoutRate        *float64 // timeout, default 0.3
	CRCErrorRate       *float64 // crc_error, default 0.15
	OfflineProbability *float64 // partial_offline, default 0.3
	DayTemp            *float64 // daily_cycle, default 25.0
	NightTemp          *float64 // daily_cycle, default 18.0
	Setpoint           *float64 // hvac_control, default 22.0
	Hysteresis         *float64 // hvac_control, default 1.0
	OpenProbability    *float64 // door_open, default 0.1
	OutsideTemp        *float64 // door_open, default 35.0
	OutageProbability  *float64 // power_outage, default 0.05
}

// DefaultParams returns the baseline parameter bundle: a sensor network
// sitting at 22.0 degrees C / 45.0 %RH with modest noise and the full
// physical measurement range.
func DefaultParams() Params {
	return Params{
		TempBase:      22.0,
		TempVariation: 2.0,
		TempMin:       -40.0,
		TempMax:       85.0,
		HumBase:       45.0,
		HumVariation:  5.0,
		HumMin:        0.0,
		HumMax:        100.0,
	}
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

// Float is a convenience for building Params literals.
func Float(v float64) *float64 { return &v }

// Int is a convenience for building Params literals.
func Int(v int) *int { return &v }

// base carries the normalized parameter bundle plus the noise and time
// sources shared by all concrete scenarios.
type base struct {
	p   Params
	rng *rand.Rand
	now func() time.Time
}

func newBase(p Params) base {
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return base{p: p, rng: rng, now: now}
}

// uniform draws from [lo, hi).
func (b *base) uniform(lo, hi float64) float64 {
	return lo + b.rng.Float64()*(hi-lo)
}

// chance reports a Bernoulli trial with probability p.
func (b *base) chance(p float64) bool {
	return b.rng.Float64() < p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round1 rounds to one decimal place. Classification always happens on
// the rounded value.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// classified clamps, rounds and classifies a raw temperature/humidity
// pair against the supplied limits.
func (b *base) classified(temp, hum float64, limits Limits) SensorValue {
	temp = round1(clamp(temp, b.p.TempMin, b.p.TempMax))
	hum = round1(clamp(hum, b.p.HumMin, b.p.HumMax))

	tempStatus := Classify(temp, limits.TempMin, limits.TempMax, limits.TempWarningDelta, limits.TempAlarmDelta)
	humStatus := Classify(hum, limits.HumMin, limits.HumMax, limits.HumWarningDelta, limits.HumAlarmDelta)

	return SensorValue{
		Temperature:    temp,
		Humidity:       hum,
		TempStatus:     tempStatus,
		HumStatus:      humStatus,
		CombinedStatus: Combine(tempStatus, humStatus),
	}
}

// forcedNormal clamps and rounds but reports normal status regardless
// of limits. Used by the variants that model a link which degrades
// responsiveness without reflecting classification.
func (b *base) forcedNormal(temp, hum float64) SensorValue {
	return SensorValue{
		Temperature:    round1(clamp(temp, b.p.TempMin, b.p.TempMax)),
		Humidity:       round1(clamp(hum, b.p.HumMin, b.p.HumMax)),
		TempStatus:     StatusNormal,
		HumStatus:      StatusNormal,
		CombinedStatus: StatusNormal,
	}
}

// steadySample is the shared normal-like generation path: per-sensor
// bias of (id-1)*0.3 on temperature plus full-range uniform noise on
// both quantities.
func (b *base) steadySample(sensorID int) (temp, hum float64) {
	bias := float64(sensorID-1) * 0.3
	temp = b.p.TempBase + bias + b.uniform(-b.p.TempVariation, b.p.TempVariation)
	hum = b.p.HumBase + b.uniform(-b.p.HumVariation, b.p.HumVariation)
	return temp, hum
}

// offlineValue is the fixed reading for a sensor that does not answer.
func offlineValue(fault FaultCode) SensorValue {
	return SensorValue{
		Temperature:    0.0,
		Humidity:       0.0,
		TempStatus:     StatusOffline,
		HumStatus:      StatusOffline,
		CombinedStatus: StatusOffline,
		Fault:          fault,
	}
}
