package storage

import (
	"path/filepath"
	"testing"
)

func newTestSettings(t *testing.T) *BoltSettings {
	t.Helper()
	s, err := NewBoltSettings(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScenarioRoundTrip(t *testing.T) {
	s := newTestSettings(t)

	if _, err := s.Scenario(EmulatorModbus); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SaveScenario(EmulatorModbus, "drift_up"); err != nil {
		t.Fatalf("save scenario: %v", err)
	}
	got, err := s.Scenario(EmulatorModbus)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if got != "drift_up" {
		t.Errorf("expected drift_up, got %q", got)
	}

	// Emulators are independent keys.
	if _, err := s.Scenario(EmulatorCurrent); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for current, got %v", err)
	}

	// Overwrite wins.
	if err := s.SaveScenario(EmulatorModbus, "sine"); err != nil {
		t.Fatalf("save scenario: %v", err)
	}
	got, _ = s.Scenario(EmulatorModbus)
	if got != "sine" {
		t.Errorf("expected sine, got %q", got)
	}
}

func TestOverrideRoundTrip(t *testing.T) {
	s := newTestSettings(t)

	if _, err := s.Override(EmulatorCurrent); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	patch := []byte(`{"sensor_count": 5}`)
	if err := s.SaveOverride(EmulatorCurrent, patch); err != nil {
		t.Fatalf("save override: %v", err)
	}
	got, err := s.Override(EmulatorCurrent)
	if err != nil {
		t.Fatalf("load override: %v", err)
	}
	if string(got) != string(patch) {
		t.Errorf("expected %s, got %s", patch, got)
	}

	if err := s.DeleteOverride(EmulatorCurrent); err != nil {
		t.Fatalf("delete override: %v", err)
	}
	if _, err := s.Override(EmulatorCurrent); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSettingsPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.db")

	s, err := NewBoltSettings(path)
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	if err := s.SaveScenario(EmulatorArchive, "daily_cycle"); err != nil {
		t.Fatalf("save scenario: %v", err)
	}
	s.Close()

	s2, err := NewBoltSettings(path)
	if err != nil {
		t.Fatalf("reopen settings: %v", err)
	}
	defer s2.Close()
	got, err := s2.Scenario(EmulatorArchive)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if got != "daily_cycle" {
		t.Errorf("expected daily_cycle, got %q", got)
	}
}
