package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHasAllScenarios(t *testing.T) {
	reg := NewRegistry()
	names := []string{
		"normal", "drift_up", "drift_down", "sine",
		"offline", "intermittent", "timeout", "crc_error", "partial_offline",
		"daily_cycle", "hvac_control", "door_open", "power_outage", "sensor_failure",
	}
	for _, name := range names {
		assert.True(t, reg.Has(name), name)
	}

	infos := reg.List()
	require.Len(t, infos, len(names))
	for _, info := range infos {
		assert.NotEmpty(t, info.Description, info.Name)
	}
}

func TestRegistryUnknownNameFallsBack(t *testing.T) {
	reg := NewRegistry()
	s := reg.New("no_such_scenario", quietParams())
	require.NotNil(t, s)

	// The fallback behaves like normal: stable in-band readings.
	v := s.GetValue(1, DefaultLimits())
	assert.Equal(t, 22.0, v.Temperature)
	assert.Equal(t, StatusNormal, v.CombinedStatus)
	assert.False(t, reg.Has("no_such_scenario"))
}

func TestConfigMergeKeepsAbsentKeys(t *testing.T) {
	base := Config{Scenario: "sine"}
	base.Temperature.Base = Float(25)
	base.Errors.OfflineSensors = []int{3}

	merged, err := base.Merge([]byte(`{"humidity": {"base": 60}, "errors": {"timeout_rate": 0.5}}`))
	require.NoError(t, err)

	assert.Equal(t, "sine", merged.Scenario)
	assert.Equal(t, 25.0, *merged.Temperature.Base)
	assert.Equal(t, 60.0, *merged.Humidity.Base)
	assert.Equal(t, 0.5, *merged.Errors.TimeoutRate)
	assert.Equal(t, []int{3}, merged.Errors.OfflineSensors)

	// The receiver is not modified.
	assert.Nil(t, base.Humidity.Base)
}

func TestConfigMergeRejectsBadJSON(t *testing.T) {
	base := Config{Scenario: "normal"}
	_, err := base.Merge([]byte(`{"scenario":`))
	assert.Error(t, err)
}

func TestConfigParams(t *testing.T) {
	var c Config
	p := c.Params()
	assert.Equal(t, DefaultParams(), p)

	c.Temperature.Base = Float(30)
	c.Temperature.Variation = Float(0)
	c.Errors.FailureRate = Float(0.9)
	c.Cycle.Period = Int(10)
	p = c.Params()

	assert.Equal(t, 30.0, p.TempBase)
	assert.Equal(t, 0.0, p.TempVariation)
	assert.Equal(t, 0.9, *p.FailureRate)
	assert.Equal(t, 10, *p.Period)
	assert.Equal(t, 45.0, p.HumBase)
}
