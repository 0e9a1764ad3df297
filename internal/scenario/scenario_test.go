package scenario

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietParams removes the noise terms so the deterministic parts of a
// scenario can be asserted exactly.
func quietParams() Params {
	p := DefaultParams()
	p.TempVariation = 0
	p.HumVariation = 0
	p.Rand = rand.New(rand.NewSource(1))
	return p
}

func TestNormalDeterministic(t *testing.T) {
	s := NewNormal(quietParams())
	v := s.GetValue(1, DefaultLimits())

	assert.Equal(t, 22.0, v.Temperature)
	assert.Equal(t, 45.0, v.Humidity)
	assert.Equal(t, StatusNormal, v.CombinedStatus)
	assert.Equal(t, FaultNone, v.Fault)
}

func TestNormalSensorBias(t *testing.T) {
	s := NewNormal(quietParams())
	v1 := s.GetValue(1, DefaultLimits())
	v5 := s.GetValue(5, DefaultLimits())

	assert.InDelta(t, 1.2, v5.Temperature-v1.Temperature, 1e-9)
	assert.Equal(t, v1.Humidity, v5.Humidity)
}

func TestValuesClampedAndRounded(t *testing.T) {
	reg := NewRegistry()
	p := DefaultParams()
	p.Rand = rand.New(rand.NewSource(42))
	limits := DefaultLimits()

	for _, info := range reg.List() {
		s := reg.New(info.Name, p)
		for i := 0; i < 1000; i++ {
			v := s.GetValue(1+i%10, limits)
			require.GreaterOrEqual(t, v.Temperature, p.TempMin, "%s temperature", info.Name)
			require.LessOrEqual(t, v.Temperature, p.TempMax, "%s temperature", info.Name)
			require.GreaterOrEqual(t, v.Humidity, p.HumMin, "%s humidity", info.Name)
			require.LessOrEqual(t, v.Humidity, p.HumMax, "%s humidity", info.Name)

			require.InDelta(t, v.Temperature, math.Round(v.Temperature*10)/10, 1e-9,
				"%s temperature not rounded to one decimal", info.Name)
			require.InDelta(t, v.Humidity, math.Round(v.Humidity*10)/10, 1e-9,
				"%s humidity not rounded to one decimal", info.Name)
		}
	}
}

func TestClassificationUsesRoundedValue(t *testing.T) {
	// 40.04 rounds to 40.0, which sits exactly on the bound and must
	// classify as normal even though the raw value exceeds it.
	p := quietParams()
	p.TempBase = 40.04
	s := NewNormal(p)
	v := s.GetValue(1, DefaultLimits())

	assert.Equal(t, 40.0, v.Temperature)
	assert.Equal(t, StatusNormal, v.TempStatus)

	p.TempBase = 40.05
	s = NewNormal(p)
	v = s.GetValue(1, DefaultLimits())
	assert.Equal(t, 40.1, v.Temperature)
	assert.Equal(t, StatusWarning, v.TempStatus)
}

func TestDriftMonotonic(t *testing.T) {
	up := NewDriftUp(quietParams())
	var prev float64 = -math.MaxFloat64
	for i := 0; i < 50; i++ {
		v := up.GetValue(1, DefaultLimits())
		require.Greater(t, v.Temperature, prev)
		prev = v.Temperature
	}
	// 50 ticks at the default 0.1 rate: 22.0 -> 27.0.
	assert.InDelta(t, 27.0, prev, 1e-9)

	down := NewDriftDown(quietParams())
	prev = math.MaxFloat64
	for i := 0; i < 50; i++ {
		v := down.GetValue(1, DefaultLimits())
		require.Less(t, v.Temperature, prev)
		prev = v.Temperature
	}
	assert.InDelta(t, 17.0, prev, 1e-9)
}

func TestDriftHumidityAntiCorrelated(t *testing.T) {
	s := NewDriftUp(quietParams())
	var last SensorValue
	for i := 0; i < 20; i++ {
		last = s.GetValue(1, DefaultLimits())
	}
	// Offset 2.0 after 20 ticks; humidity falls at half the rate.
	assert.InDelta(t, 44.0, last.Humidity, 1e-9)
}

func TestSinePeriodAndPhase(t *testing.T) {
	p := quietParams()
	p.Period = Int(4)
	p.Amplitude = Float(5)
	s := NewSine(p)

	// Iterations 0..3 for sensor 1: sin(0), sin(pi/2), sin(pi), sin(3pi/2).
	want := []float64{22.0, 27.0, 22.0, 17.0}
	for i, w := range want {
		v := s.GetValue(1, DefaultLimits())
		assert.InDelta(t, w, v.Temperature, 1e-9, "iteration %d", i)
	}
}

func TestSineHumidityAntiphase(t *testing.T) {
	p := quietParams()
	p.Period = Int(4)
	p.Amplitude = Float(5)
	s := NewSine(p)

	s.GetValue(1, DefaultLimits())
	v := s.GetValue(1, DefaultLimits()) // wave = 1
	assert.InDelta(t, 27.0, v.Temperature, 1e-9)
	assert.InDelta(t, 35.0, v.Humidity, 1e-9)
}

func TestOfflineAlwaysOffline(t *testing.T) {
	s := NewOffline(DefaultParams())
	for id := 1; id <= 10; id++ {
		v := s.GetValue(id, DefaultLimits())
		assert.Equal(t, StatusOffline, v.CombinedStatus)
		assert.Equal(t, FaultTimeout, v.Fault)
		assert.Equal(t, 0.0, v.Temperature)
		assert.Equal(t, 0.0, v.Humidity)
	}
}

func TestIntermittentMixesFailures(t *testing.T) {
	p := quietParams()
	p.FailureRate = Float(0.5)
	s := NewIntermittent(p)

	var offline, online int
	for i := 0; i < 500; i++ {
		v := s.GetValue(1, DefaultLimits())
		if v.CombinedStatus == StatusOffline {
			offline++
			assert.Equal(t, FaultTimeout, v.Fault)
		} else {
			online++
			assert.Equal(t, StatusNormal, v.CombinedStatus)
		}
	}
	assert.Greater(t, offline, 100)
	assert.Greater(t, online, 100)
}

func TestForcedNormalScenarios(t *testing.T) {
	// Timeout and CRC error report normal status on answered polls even
	// when the generated value is far outside the limits.
	limits := DefaultLimits()
	limits.TempMax = 5 // base 22 is far above

	p := quietParams()
	p.TimeoutRate = Float(0)
	p.CRCErrorRate = Float(0)
	p.OutageProbability = Float(0)

	for name, s := range map[string]Scenario{
		"timeout":      NewTimeout(p),
		"crc_error":    NewCRCError(p),
		"power_outage": NewPowerOutage(p),
	} {
		v := s.GetValue(1, limits)
		assert.Equal(t, StatusNormal, v.CombinedStatus, name)
		assert.Equal(t, StatusNormal, v.TempStatus, name)
	}
}

func TestCRCErrorFaultCode(t *testing.T) {
	p := quietParams()
	p.CRCErrorRate = Float(1)
	s := NewCRCError(p)
	v := s.GetValue(1, DefaultLimits())
	assert.Equal(t, StatusOffline, v.CombinedStatus)
	assert.Equal(t, FaultCRCError, v.Fault)
}

func TestPartialOfflineFixedSet(t *testing.T) {
	p := quietParams()
	p.OfflineProbability = Float(0)
	p.OfflineSensors = []int{2, 7}
	s := NewPartialOffline(p)

	assert.ElementsMatch(t, []int{2, 7}, s.OfflineSet())

	for i := 0; i < 100; i++ {
		for id := 1; id <= 10; id++ {
			v := s.GetValue(id, DefaultLimits())
			if id == 2 || id == 7 {
				assert.Equal(t, StatusOffline, v.CombinedStatus, "sensor %d", id)
				assert.Equal(t, FaultTimeout, v.Fault)
			} else {
				assert.NotEqual(t, StatusOffline, v.CombinedStatus, "sensor %d", id)
			}
		}
	}
}

func TestDailyCyclePeaksAfternoon(t *testing.T) {
	at := func(hour int) func() time.Time {
		return func() time.Time {
			return time.Date(2026, 8, 27, hour, 0, 0, 0, time.UTC)
		}
	}

	value := func(hour int) float64 {
		p := quietParams()
		p.Clock = at(hour)
		s := NewDailyCycle(p)
		// The +-1 degree noise term survives zero variation, so average
		// it out.
		var sum float64
		for i := 0; i < 2000; i++ {
			sum += s.GetValue(1, DefaultLimits()).Temperature
		}
		return sum / 2000
	}

	// Defaults day 25 / night 18: center 21.5, amplitude 3.5, peak at
	// 14:00 and trough at 02:00.
	assert.InDelta(t, 25.0, value(14), 0.2)
	assert.InDelta(t, 18.0, value(2), 0.2)
	assert.InDelta(t, 21.5, value(8), 0.2)
}

func TestHVACHoldsNearSetpoint(t *testing.T) {
	p := quietParams()
	p.Rand = rand.New(rand.NewSource(7))
	s := NewHVACControl(p)

	for i := 0; i < 2000; i++ {
		v := s.GetValue(1, DefaultLimits())
		// Setpoint 22, hysteresis 1, step at most 0.3 past the switch
		// point, jitter 0.3.
		require.InDelta(t, 22.0, v.Temperature, 2.0, "iteration %d", i)
		require.Equal(t, StatusNormal, v.CombinedStatus)
	}
}

func TestDoorOpenRecovers(t *testing.T) {
	p := quietParams()
	p.Rand = rand.New(rand.NewSource(3))
	p.OpenProbability = Float(1)
	s := NewDoorOpen(p)

	// First call opens the door for 5..15 ticks; closed-state readings
	// sit at the base, open-state readings are pulled toward outside.
	v := s.GetValue(1, DefaultLimits())
	assert.InDelta(t, 22.0+(35.0-22.0)*0.3, v.Temperature, 2.1)

	// With probability 1 the door reopens right after closing, so apart
	// from the single boundary tick where the timer expires, readings
	// stay in the open regime.
	var open int
	for i := 0; i < 50; i++ {
		v = s.GetValue(1, DefaultLimits())
		if v.Temperature > 23.0 {
			open++
		} else {
			// Boundary tick: closed-state reading at the quiet base.
			assert.Equal(t, 22.0, v.Temperature)
		}
	}
	assert.Greater(t, open, 35)
}

func TestDoorStaysClosedAtZeroProbability(t *testing.T) {
	p := quietParams()
	p.OpenProbability = Float(0)
	s := NewDoorOpen(p)
	for i := 0; i < 100; i++ {
		v := s.GetValue(1, DefaultLimits())
		assert.Equal(t, 22.0, v.Temperature)
	}
}

func TestPowerOutageTimedRecovery(t *testing.T) {
	p := quietParams()
	p.Rand = rand.New(rand.NewSource(11))
	p.OutageProbability = Float(1)
	s := NewPowerOutage(p)

	v := s.GetValue(1, DefaultLimits())
	require.Equal(t, StatusOffline, v.CombinedStatus)
	require.Equal(t, FaultNoPower, v.Fault)

	// The outage lasts 10..30 ticks, then (probability 1) restarts on
	// the next call. Count consecutive offline readings.
	run := 1
	for i := 0; i < 30; i++ {
		v = s.GetValue(1, DefaultLimits())
		if v.CombinedStatus != StatusOffline {
			break
		}
		run++
	}
	assert.GreaterOrEqual(t, run, 10)
	assert.LessOrEqual(t, run, 30)
}

func TestSensorFailureIrreversible(t *testing.T) {
	p := quietParams()
	p.FailureRate = Float(0)
	s := NewSensorFailure(p)

	healthy := s.GetValue(1, DefaultLimits())
	assert.Equal(t, StatusNormal, healthy.CombinedStatus)

	s.FailSensor(1)
	for i := 0; i < 200; i++ {
		v := s.GetValue(1, DefaultLimits())
		switch v.Fault {
		case FaultSensorFailure:
			assert.Equal(t, StatusOffline, v.CombinedStatus)
		case FaultInvalidData:
			assert.Equal(t, StatusAlarm, v.CombinedStatus)
			assert.GreaterOrEqual(t, v.Temperature, -40.0)
			assert.LessOrEqual(t, v.Temperature, 85.0)
		default:
			t.Fatalf("failed sensor produced healthy reading on iteration %d: %+v", i, v)
		}
	}

	// Other sensors are unaffected.
	v2 := s.GetValue(2, DefaultLimits())
	assert.Equal(t, StatusNormal, v2.CombinedStatus)
}
