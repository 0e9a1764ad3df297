package archive

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ErrEventNotFound is returned when acknowledging a nonexistent event.
var ErrEventNotFound = errors.New("event not found")

// Event priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Event is one journal entry.
type Event struct {
	ID             int        `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	SensorID       int        `json:"sensor_id"`
	EventType      string     `json:"event_type"`
	Priority       string     `json:"priority"`
	Value          *float64   `json:"value,omitempty"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// EventFilter narrows an event query. Nil fields match everything.
type EventFilter struct {
	From         *time.Time
	To           *time.Time
	SensorID     *int
	EventType    string
	Priority     string
	Acknowledged *bool
	Limit        int
	Offset       int
}

// eventKind couples a generated event type with its value range.
type eventKind struct {
	name     string
	priority string
	lo, hi   float64
	hasValue bool
}

var eventKinds = []eventKind{
	{"temp_high_warning", PriorityMedium, 35, 45, true},
	{"temp_high_alarm", PriorityHigh, 35, 45, true},
	{"temp_low_warning", PriorityMedium, -15, -5, true},
	{"temp_low_alarm", PriorityHigh, -15, -5, true},
	{"hum_high_warning", PriorityMedium, 75, 95, true},
	{"hum_high_alarm", PriorityHigh, 75, 95, true},
	{"hum_low_warning", PriorityMedium, 5, 20, true},
	{"hum_low_alarm", PriorityHigh, 5, 20, true},
	{"sensor_offline", PriorityLow, 0, 0, false},
	{"sensor_online", PriorityLow, 0, 0, false},
}

// EventStore holds the journal, ascending by timestamp.
type EventStore struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

// GenerateEvents synthesizes a journal across the history window:
// roughly frequency events per sensor per hour, with about 70% already
// acknowledged by an operator 5-60 minutes after they fired.
func GenerateEvents(cfg Config, now time.Time, rng *rand.Rand) *EventStore {
	s := &EventStore{nextID: 1}
	hours := cfg.HistoryDays * 24
	start := now.Add(-time.Duration(cfg.HistoryDays) * 24 * time.Hour)

	for id := 1; id <= cfg.SensorCount; id++ {
		for h := 0; h < hours; h++ {
			if rng.Float64() >= cfg.EventFrequency {
				continue
			}
			kind := eventKinds[rng.Intn(len(eventKinds))]
			ts := start.Add(time.Duration(h) * time.Hour).
				Add(time.Duration(rng.Intn(3600)) * time.Second)

			e := Event{
				ID:        s.nextID,
				Timestamp: ts,
				SensorID:  id,
				EventType: kind.name,
				Priority:  kind.priority,
				Message:   fmt.Sprintf("sensor %d: %s", id, kind.name),
			}
			s.nextID++
			if kind.hasValue {
				v := round1(kind.lo + rng.Float64()*(kind.hi-kind.lo))
				e.Value = &v
			}
			if rng.Float64() < 0.7 {
				ackAt := ts.Add(time.Duration(5+rng.Intn(56)) * time.Minute)
				if ackAt.Before(now) {
					e.Acknowledged = true
					e.AcknowledgedBy = "operator"
					e.AcknowledgedAt = &ackAt
				}
			}
			s.events = append(s.events, e)
		}
	}

	sort.Slice(s.events, func(i, j int) bool {
		return s.events[i].Timestamp.Before(s.events[j].Timestamp)
	})
	return s
}

// Add appends a manually injected event, assigning it an id.
func (s *EventStore) Add(e Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.events = append(s.events, e)
	return e
}

// Query returns matching events newest-first with limit/offset
// pagination, plus the total match count before pagination.
func (s *EventStore) Query(f EventFilter) ([]Event, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && e.Timestamp.After(*f.To) {
			continue
		}
		if f.SensorID != nil && e.SensorID != *f.SensorID {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.Priority != "" && e.Priority != f.Priority {
			continue
		}
		if f.Acknowledged != nil && e.Acknowledged != *f.Acknowledged {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= total {
			return nil, total
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total
}

// Acknowledge marks an event as handled by user.
func (s *EventStore) Acknowledge(id int, user string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID != id {
			continue
		}
		now := time.Now()
		s.events[i].Acknowledged = true
		s.events[i].AcknowledgedBy = user
		s.events[i].AcknowledgedAt = &now
		return s.events[i], nil
	}
	return Event{}, fmt.Errorf("%w: %d", ErrEventNotFound, id)
}

// Len reports the journal size.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
