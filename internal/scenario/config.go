package scenario

import "encoding/json"

// ValuesSpec configures the base generation parameters for one physical
// quantity.
type ValuesSpec struct {
	Base      *float64 `json:"base,omitempty"`
	Variation *float64 `json:"variation,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// ErrorsSpec configures fault-injection probabilities. Each rate only
// matters to the scenario that reads it.
type ErrorsSpec struct {
	FailureRate        *float64 `json:"failure_rate,omitempty"`
	TimeoutRate        *float64 `json:"timeout_rate,omitempty"`
	CRCErrorRate       *float64 `json:"crc_error_rate,omitempty"`
	OfflineProbability *float64 `json:"offline_probability,omitempty"`
	OfflineSensors     []int    `json:"offline_sensors,omitempty"`
}

// CycleSpec configures the time-driven scenarios.
type CycleSpec struct {
	DriftRate         *float64 `json:"drift_rate,omitempty"`
	Period            *int     `json:"period,omitempty"`
	Amplitude         *float64 `json:"amplitude,omitempty"`
	DayTemp           *float64 `json:"day_temp,omitempty"`
	NightTemp         *float64 `json:"night_temp,omitempty"`
	Setpoint          *float64 `json:"setpoint,omitempty"`
	Hysteresis        *float64 `json:"hysteresis,omitempty"`
	OpenProbability   *float64 `json:"open_probability,omitempty"`
	OutsideTemp       *float64 `json:"outside_temp,omitempty"`
	OutageProbability *float64 `json:"outage_probability,omitempty"`
}

// Config is the JSON document controlling scenario construction: base
// values, classification limits and fault-injection knobs. Every field
// is optional; absent fields keep their defaults.
type Config struct {
	Scenario    string     `json:"scenario,omitempty"`
	Temperature ValuesSpec `json:"temperature"`
	Humidity    ValuesSpec `json:"humidity"`
	Limits      LimitSpec  `json:"limits"`
	Errors      ErrorsSpec `json:"errors"`
	Cycle       CycleSpec  `json:"cycle"`
}

// Merge applies a partial JSON document over a copy of c and returns
// the result. Keys absent from the patch keep their current values.
func (c Config) Merge(patch []byte) (Config, error) {
	merged := c
	if err := json.Unmarshal(patch, &merged); err != nil {
		return c, err
	}
	return merged, nil
}

// Params resolves the config into a scenario parameter bundle.
func (c Config) Params() Params {
	p := DefaultParams()
	apply := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&p.TempBase, c.Temperature.Base)
	apply(&p.TempVariation, c.Temperature.Variation)
	apply(&p.TempMin, c.Temperature.Min)
	apply(&p.TempMax, c.Temperature.Max)
	apply(&p.HumBase, c.Humidity.Base)
	apply(&p.HumVariation, c.Humidity.Variation)
	apply(&p.HumMin, c.Humidity.Min)
	apply(&p.HumMax, c.Humidity.Max)

	p.OfflineSensors = append([]int(nil), c.Errors.OfflineSensors...)
	p.FailureRate = c.Errors.FailureRate
	p.TimeoutRate = c.Errors.TimeoutRate
	p.CRCErrorRate = c.Errors.CRCErrorRate
	p.OfflineProbability = c.Errors.OfflineProbability

	p.DriftRate = c.Cycle.DriftRate
	p.Period = c.Cycle.Period
	p.Amplitude = c.Cycle.Amplitude
	p.DayTemp = c.Cycle.DayTemp
	p.NightTemp = c.Cycle.NightTemp
	p.Setpoint = c.Cycle.Setpoint
	p.Hysteresis = c.Cycle.Hysteresis
	p.OpenProbability = c.Cycle.OpenProbability
	p.OutsideTemp = c.Cycle.OutsideTemp
	p.OutageProbability = c.Cycle.OutageProbability

	return p
}
