package scenario

// Classify maps a measured value against an operating band.
//
// The middle branch is a flattened OR on purpose: any out-of-band value
// that does not reach the alarm threshold is at least a warning, even
// when the warning delta is zero or the deltas are out of order.
func Classify(value, min, max, warningDelta, alarmDelta float64) Status {
	switch {
	case value < min-alarmDelta || value > max+alarmDelta:
		return StatusAlarm
	case value < min-warningDelta || value > max+warningDelta || value < min || value > max:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// Combine derives the combined status of a reading from its per-metric
// statuses. Offline is never produced here; scenarios that model
// communication loss set it directly.
func Combine(tempStatus, humStatus Status) Status {
	if tempStatus == StatusAlarm || humStatus == StatusAlarm {
		return StatusAlarm
	}
	if tempStatus == StatusWarning || humStatus == StatusWarning {
		return StatusWarning
	}
	return StatusNormal
}
