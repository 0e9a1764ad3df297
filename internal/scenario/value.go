// Package scenario implements the value-generation engine for the mock
// sensor network: a set of named, stateful algorithms that produce
// time-varying temperature/humidity readings with configurable fault
// injection and status classification.
package scenario

// Status describes the severity or availability of a reading.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusWarning Status = "warning"
	StatusAlarm   Status = "alarm"
	StatusOffline Status = "offline"
)

// FaultCode distinguishes why a sensor is unavailable (or returning
// garbage) from the offline state itself.
type FaultCode string

const (
	FaultNone          FaultCode = ""
	FaultTimeout       FaultCode = "timeout"
	FaultCRCError      FaultCode = "crc_error"
	FaultNoPower       FaultCode = "no_power"
	FaultSensorFailure FaultCode = "sensor_failure"
	FaultInvalidData   FaultCode = "invalid_data"
)

// SensorValue is the result of one scenario evaluation for one sensor.
// It is constructed fresh on every tick and never mutated afterwards.
type SensorValue struct {
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	TempStatus     Status    `json:"temp_status"`
	HumStatus      Status    `json:"hum_status"`
	CombinedStatus Status    `json:"combined_status"`
	Fault          FaultCode `json:"fault,omitempty"`
}

// Limits is the operating-range configuration a reading is classified
// against. Limits are supplied by the caller on every GetValue call;
// scenarios never own them.
type Limits struct {
	TempMin          float64
	TempMax          float64
	TempWarningDelta float64
	TempAlarmDelta   float64
	HumMin           float64
	HumMax           float64
	HumWarningDelta  float64
	HumAlarmDelta    float64
}

// DefaultLimits returns the documented default operating band.
func DefaultLimits() Limits {
	return Limits{
		TempMin:          -10,
		TempMax:          40,
		TempWarningDelta: 3,
		TempAlarmDelta:   5,
		HumMin:           20,
		HumMax:           80,
		HumWarningDelta:  5,
		HumAlarmDelta:    10,
	}
}

// LimitSpec is the JSON shape of a limit section in emulator
// configuration. Absent fields fall back to DefaultLimits rather than
// producing an error.
type LimitSpec struct {
	Temperature BandSpec `json:"temperature"`
	Humidity    BandSpec `json:"humidity"`
}

// BandSpec configures one physical quantity's operating band. Pointer
// fields distinguish "absent" from an explicit zero.
type BandSpec struct {
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	WarningDelta *float64 `json:"warning_delta,omitempty"`
	AlarmDelta   *float64 `json:"alarm_delta,omitempty"`
}

// Limits fills absent fields from DefaultLimits.
func (s LimitSpec) Limits() Limits {
	l := DefaultLimits()
	apply := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&l.TempMin, s.Temperature.Min)
	apply(&l.TempMax, s.Temperature.Max)
	apply(&l.TempWarningDelta, s.Temperature.WarningDelta)
	apply(&l.TempAlarmDelta, s.Temperature.AlarmDelta)
	apply(&l.HumMin, s.Humidity.Min)
	apply(&l.HumMax, s.Humidity.Max)
	apply(&l.HumWarningDelta, s.Humidity.WarningDelta)
	apply(&l.HumAlarmDelta, s.Humidity.AlarmDelta)
	return l
}
