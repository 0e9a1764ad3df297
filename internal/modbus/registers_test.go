package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldmock/internal/scenario"
)

func TestEncodeDecodeValue(t *testing.T) {
	cases := []struct {
		value float64
		raw   uint16
	}{
		{22.0, 220},
		{45.0, 450},
		{0.0, 0},
		{-0.1, 0xFFFF},
		{-5.5, 0xFFFF - 54},
		{-40.0, 0xFE70},
		{85.0, 850},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.raw, EncodeValue(tc.value), "encode %v", tc.value)
		assert.Equal(t, tc.value, DecodeValue(tc.raw), "decode %#04x", tc.raw)
	}
}

func TestRegisterAddresses(t *testing.T) {
	assert.Equal(t, uint16(30000), TempValueAddr(1))
	assert.Equal(t, uint16(30001), HumValueAddr(1))
	assert.Equal(t, uint16(30006), TempValueAddr(4))
	assert.Equal(t, uint16(40000), TempStatusAddr(1))
	assert.Equal(t, uint16(40019), HumStatusAddr(10))
}

func TestNewRegisterMapInitialValues(t *testing.T) {
	m := NewRegisterMap(3)
	for id := 1; id <= 3; id++ {
		v, ok := m.Get(TempValueAddr(id))
		require.True(t, ok)
		assert.Equal(t, uint16(220), v)
		v, _ = m.Get(HumValueAddr(id))
		assert.Equal(t, uint16(450), v)
		v, _ = m.Get(TempStatusAddr(id))
		assert.Equal(t, uint16(0), v)
		v, _ = m.Get(HumStatusAddr(id))
		assert.Equal(t, uint16(0), v)
	}
	_, ok := m.Get(TempValueAddr(4))
	assert.False(t, ok)
}

func TestWriteSensorStatusFlags(t *testing.T) {
	m := NewRegisterMap(1)

	m.WriteSensor(1, scenario.SensorValue{
		Temperature: 23.5, Humidity: 50.0,
		TempStatus: scenario.StatusNormal, HumStatus: scenario.StatusNormal,
		CombinedStatus: scenario.StatusNormal,
	})
	v, _ := m.Get(TempValueAddr(1))
	assert.Equal(t, uint16(235), v)
	v, _ = m.Get(TempStatusAddr(1))
	assert.Equal(t, uint16(0), v)

	m.WriteSensor(1, scenario.SensorValue{
		Temperature: 42.0, Humidity: 50.0,
		TempStatus: scenario.StatusWarning, HumStatus: scenario.StatusNormal,
		CombinedStatus: scenario.StatusWarning,
	})
	v, _ = m.Get(TempStatusAddr(1))
	assert.Equal(t, uint16(1), v)
	v, _ = m.Get(HumStatusAddr(1))
	assert.Equal(t, uint16(0), v)

	// Offline raises both flags regardless of the per-metric statuses.
	m.WriteSensor(1, scenario.SensorValue{
		TempStatus: scenario.StatusOffline, HumStatus: scenario.StatusOffline,
		CombinedStatus: scenario.StatusOffline, Fault: scenario.FaultTimeout,
	})
	v, _ = m.Get(TempValueAddr(1))
	assert.Equal(t, uint16(0), v)
	v, _ = m.Get(TempStatusAddr(1))
	assert.Equal(t, uint16(1), v)
	v, _ = m.Get(HumStatusAddr(1))
	assert.Equal(t, uint16(1), v)
}

func TestWriteSensorNegativeTemperature(t *testing.T) {
	m := NewRegisterMap(1)
	m.WriteSensor(1, scenario.SensorValue{
		Temperature: -12.3, Humidity: 30.0,
		TempStatus: scenario.StatusWarning, HumStatus: scenario.StatusNormal,
		CombinedStatus: scenario.StatusWarning,
	})
	raw, _ := m.Get(TempValueAddr(1))
	assert.Greater(t, raw, uint16(32767))
	assert.Equal(t, -12.3, DecodeValue(raw))
}

func TestReadBlock(t *testing.T) {
	m := NewRegisterMap(2)
	values, ok := m.ReadBlock(ValueBase, 4)
	require.True(t, ok)
	assert.Equal(t, []uint16{220, 450, 220, 450}, values)

	// Span crossing into nonexistent registers fails as a whole.
	_, ok = m.ReadBlock(ValueBase, 5)
	assert.False(t, ok)
	_, ok = m.ReadBlock(12345, 1)
	assert.False(t, ok)
}

func TestMarkOffline(t *testing.T) {
	m := NewRegisterMap(1)
	m.MarkOffline(1)
	v, _ := m.Get(TempValueAddr(1))
	assert.Equal(t, uint16(0), v)
	v, _ = m.Get(TempStatusAddr(1))
	assert.Equal(t, uint16(1), v)
	v, _ = m.Get(HumStatusAddr(1))
	assert.Equal(t, uint16(1), v)
}
