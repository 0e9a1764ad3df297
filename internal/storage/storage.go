// Package storage persists harness settings across restarts: the
// selected scenario and the accumulated config override per emulator.
// Generated data is deliberately not persisted; only the operator's
// choices survive a restart.
package storage

import "errors"

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("key not found")

// Emulator names used as storage keys.
const (
	EmulatorModbus  = "modbus"
	EmulatorCurrent = "current"
	EmulatorArchive = "archive"
)

// Settings is the interface for harness settings persistence
type Settings interface {
	// SaveScenario stores the selected scenario for an emulator
	SaveScenario(emulator, scenario string) error

	// Scenario returns the stored scenario for an emulator
	// Returns ErrNotFound if none was saved
	Scenario(emulator string) (string, error)

	// SaveOverride stores the accumulated config override (raw JSON)
	// for an emulator
	SaveOverride(emulator string, patch []byte) error

	// Override returns the stored config override for an emulator
	// Returns ErrNotFound if none was saved
	Override(emulator string) ([]byte, error)

	// DeleteOverride removes the stored override for an emulator
	DeleteOverride(emulator string) error

	// Close closes the storage
	Close() error
}
