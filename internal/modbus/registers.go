// Package modbus implements the register-protocol emulator: a
// mutex-guarded 16-bit register map populated by a scenario-driven
// generator and served over Modbus TCP, with a ring-buffered request
// log mimicking a serial line trace.
package modbus

import (
	"math"
	"sync"

	"fieldmock/internal/scenario"
)

// Register layout. Values live in the input-register block, status
// flags in the holding-register block. Per sensor id n the temperature
// register sits at base+(n-1)*2 and humidity right after it.
const (
	ValueBase  uint16 = 30000
	StatusBase uint16 = 40000
)

// TempValueAddr returns the temperature value register for a sensor.
func TempValueAddr(sensorID int) uint16 { return ValueBase + uint16(sensorID-1)*2 }

// HumValueAddr returns the humidity value register for a sensor.
func HumValueAddr(sensorID int) uint16 { return ValueBase + uint16(sensorID-1)*2 + 1 }

// TempStatusAddr returns the temperature status register for a sensor.
func TempStatusAddr(sensorID int) uint16 { return StatusBase + uint16(sensorID-1)*2 }

// HumStatusAddr returns the humidity status register for a sensor.
func HumStatusAddr(sensorID int) uint16 { return StatusBase + uint16(sensorID-1)*2 + 1 }

// EncodeValue converts an engineering-unit reading to the wire format:
// x10 fixed point in a 16-bit register, two's complement for negative
// temperatures.
func EncodeValue(v float64) uint16 {
	return uint16(int16(math.Round(v * 10)))
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(raw uint16) float64 {
	return float64(int16(raw)) / 10
}

// RegisterMap is the shared 16-bit register space. All access goes
// through the lock; the generator writes, the protocol server and the
// REST layer read.
type RegisterMap struct {
	mu   sync.RWMutex
	regs map[uint16]uint16
}

// NewRegisterMap initializes registers for sensorCount sensors: 22.0
// degrees / 45.0 %RH with both status flags clear.
func NewRegisterMap(sensorCount int) *RegisterMap {
	m := &RegisterMap{regs: make(map[uint16]uint16, sensorCount*4)}
	for id := 1; id <= sensorCount; id++ {
		m.regs[TempValueAddr(id)] = 220
		m.regs[HumValueAddr(id)] = 450
		m.regs[TempStatusAddr(id)] = 0
		m.regs[HumStatusAddr(id)] = 0
	}
	return m
}

// Get reads a single register.
func (m *RegisterMap) Get(addr uint16) (uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.regs[addr]
	return v, ok
}

// Set writes a single register. Used by the manual-write API.
func (m *RegisterMap) Set(addr, value uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
}

// ReadBlock reads quantity consecutive registers starting at addr. It
// fails if any register in the span does not exist, matching the
// protocol's illegal-data-address semantics.
func (m *RegisterMap) ReadBlock(addr uint16, quantity uint16) ([]uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint16, quantity)
	for i := uint16(0); i < quantity; i++ {
		v, ok := m.regs[addr+i]
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// WriteSensor stores one scenario result: encoded values plus 0/1
// status flags. Any non-normal per-metric status raises the flag; a
// combined offline raises both.
func (m *RegisterMap) WriteSensor(sensorID int, v scenario.SensorValue) {
	tempFlag := uint16(0)
	humFlag := uint16(0)
	if v.TempStatus != scenario.StatusNormal {
		tempFlag = 1
	}
	if v.HumStatus != scenario.StatusNormal {
		humFlag = 1
	}
	if v.CombinedStatus == scenario.StatusOffline {
		tempFlag, humFlag = 1, 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[TempValueAddr(sensorID)] = EncodeValue(v.Temperature)
	m.regs[HumValueAddr(sensorID)] = EncodeValue(v.Humidity)
	m.regs[TempStatusAddr(sensorID)] = tempFlag
	m.regs[HumStatusAddr(sensorID)] = humFlag
}

// MarkOffline writes the configured-offline pattern for a sensor:
// zeroed values with both status flags raised.
func (m *RegisterMap) MarkOffline(sensorID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[TempValueAddr(sensorID)] = 0
	m.regs[HumValueAddr(sensorID)] = 0
	m.regs[TempStatusAddr(sensorID)] = 1
	m.regs[HumStatusAddr(sensorID)] = 1
}

// Snapshot returns a copy of the whole register space keyed by address.
func (m *RegisterMap) Snapshot() map[uint16]uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint16]uint16, len(m.regs))
	for k, v := range m.regs {
		out[k] = v
	}
	return out
}
