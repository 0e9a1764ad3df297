package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldmock/internal/scenario"
)

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.SensorCount = 3
	cfg.Generation.Temperature.Variation = scenario.Float(0)
	cfg.Generation.Humidity.Variation = scenario.Float(0)
	return cfg
}

func newTestEmulator(t *testing.T, cfg Config) *Emulator {
	t.Helper()
	return NewEmulator(cfg, scenario.NewRegistry(), zap.NewNop().Sugar())
}

func TestEmulatorTickWritesRegisters(t *testing.T) {
	e := newTestEmulator(t, quietConfig())
	e.tick()

	// Quiet normal scenario: sensor 1 at 22.0/45.0, sensor 3 biased by
	// 0.6 degrees.
	v, ok := e.registers.Get(TempValueAddr(1))
	require.True(t, ok)
	assert.Equal(t, uint16(220), v)
	v, _ = e.registers.Get(HumValueAddr(1))
	assert.Equal(t, uint16(450), v)
	v, _ = e.registers.Get(TempValueAddr(3))
	assert.Equal(t, uint16(226), v)
	v, _ = e.registers.Get(TempStatusAddr(1))
	assert.Equal(t, uint16(0), v)
}

func TestEmulatorConfiguredOfflineSensors(t *testing.T) {
	cfg := quietConfig()
	cfg.Generation.Errors.OfflineSensors = []int{2}
	e := newTestEmulator(t, cfg)
	e.tick()

	v, _ := e.registers.Get(TempValueAddr(2))
	assert.Equal(t, uint16(0), v)
	v, _ = e.registers.Get(TempStatusAddr(2))
	assert.Equal(t, uint16(1), v)
	v, _ = e.registers.Get(HumStatusAddr(2))
	assert.Equal(t, uint16(1), v)

	// Neighbors still follow the scenario.
	v, _ = e.registers.Get(TempValueAddr(1))
	assert.Equal(t, uint16(220), v)
}

func TestEmulatorSetScenario(t *testing.T) {
	e := newTestEmulator(t, quietConfig())

	require.NoError(t, e.SetScenario("offline"))
	assert.Equal(t, "offline", e.Status().Scenario)
	e.tick()
	v, _ := e.registers.Get(TempStatusAddr(1))
	assert.Equal(t, uint16(1), v)

	err := e.SetScenario("definitely_not_a_scenario")
	assert.Error(t, err)
	assert.Equal(t, "offline", e.Status().Scenario)
}

func TestEmulatorUpdateConfig(t *testing.T) {
	e := newTestEmulator(t, quietConfig())
	e.tick()

	merged, err := e.UpdateConfig([]byte(`{"sensor_count": 5, "generation": {"scenario": "offline"}}`))
	require.NoError(t, err)
	assert.Equal(t, 5, merged.SensorCount)
	assert.Equal(t, "offline", merged.Generation.Scenario)
	// Untouched keys survive the merge.
	assert.Equal(t, 5020, merged.Port)
	assert.Equal(t, 0.0, *merged.Generation.Temperature.Variation)

	// Registers were reinitialized for the new sensor count.
	_, ok := e.registers.Get(TempValueAddr(5))
	assert.True(t, ok)
	assert.Equal(t, uint64(0), e.Status().Ticks)

	_, err = e.UpdateConfig([]byte(`{"sensor_count":`))
	assert.Error(t, err)
}

func TestEmulatorRegistersView(t *testing.T) {
	e := newTestEmulator(t, quietConfig())
	views := e.Registers()
	require.Len(t, views, 12)

	assert.Equal(t, uint16(30000), views[0].Addr)
	assert.Equal(t, 22.0, views[0].Decoded)
	last := views[len(views)-1]
	assert.Equal(t, uint16(40005), last.Addr)
	assert.Equal(t, 0.0, last.Decoded)

	// Manual write is visible in the next view.
	e.WriteRegister(TempValueAddr(1), EncodeValue(-7.5))
	views = e.Registers()
	assert.Equal(t, -7.5, views[0].Decoded)
}

func TestHandlerServesAndLogs(t *testing.T) {
	e := newTestEmulator(t, quietConfig())
	h := &handler{
		unitID:    16,
		registers: e.registers,
		reqLog:    e.reqLog,
		logger:    zap.NewNop().Sugar(),
	}

	values, err := h.read(FuncReadInputRegisters, ValueBase, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{220, 450}, values)

	entries := e.reqLog.Last(0)
	require.Len(t, entries, 2)
	assert.Equal(t, DirTX, entries[0].Direction)
	assert.Equal(t, DirRX, entries[1].Direction)
	assert.Equal(t, uint8(16), entries[0].Parsed.SlaveID)
	assert.GreaterOrEqual(t, entries[1].ResponseTimeMS, 5.0)
	assert.LessOrEqual(t, entries[1].ResponseTimeMS, 30.0)

	_, err = h.read(FuncReadInputRegisters, 12345, 1)
	assert.Error(t, err)
	entries = e.reqLog.Last(1)
	assert.Equal(t, "illegal data address", entries[0].Error)

	e.ClearLog()
	assert.Equal(t, 0, e.reqLog.Len())
}
