package events

import (
	"fmt"
	"testing"
)

func TestStoreRingBuffer(t *testing.T) {
	s := NewStore(3)
	for i := 1; i <= 5; i++ {
		s.Add(EventScenarioChange, "modbus", "dev", true, fmt.Sprintf("change %d", i))
	}

	if s.Count() != 3 {
		t.Fatalf("expected 3 events, got %d", s.Count())
	}
	if s.LastID() != 5 {
		t.Errorf("expected last id 5, got %d", s.LastID())
	}

	all := s.GetAll()
	// Newest first, oldest two dropped.
	if all[0].Details != "change 5" || all[2].Details != "change 3" {
		t.Errorf("unexpected order: %v, %v", all[0].Details, all[2].Details)
	}
}

func TestStoreGetLast(t *testing.T) {
	s := NewStore(10)
	s.Add(EventEmulatorStart, "modbus", "dev", true, "")
	s.Add(EventEmulatorStop, "modbus", "dev", true, "")

	last := s.GetLast(1)
	if len(last) != 1 {
		t.Fatalf("expected 1 event, got %d", len(last))
	}
	if last[0].Type != EventEmulatorStop {
		t.Errorf("expected newest event first, got %s", last[0].Type)
	}

	// Asking for more than stored returns what exists.
	if got := s.GetLast(100); len(got) != 2 {
		t.Errorf("expected 2 events, got %d", len(got))
	}
}

func TestStoreGetSince(t *testing.T) {
	s := NewStore(10)
	s.Add(EventLogin, "10.0.0.1", "admin", true, "")
	s.Add(EventConfigUpdate, "current", "admin", true, "")
	s.Add(EventLogClear, "modbus", "admin", true, "")

	since := s.GetSince(1)
	if len(since) != 2 {
		t.Fatalf("expected 2 events after id 1, got %d", len(since))
	}
	if since[0].Type != EventLogClear {
		t.Errorf("expected newest first, got %s", since[0].Type)
	}

	if got := s.GetSince(3); len(got) != 0 {
		t.Errorf("expected no events after id 3, got %d", len(got))
	}
}
