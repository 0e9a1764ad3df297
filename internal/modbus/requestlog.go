package modbus

import (
	"sync"
	"time"
)

// Direction tags a log entry as request or response.
type Direction string

const (
	DirTX Direction = "TX"
	DirRX Direction = "RX"
)

// ParsedFrame is the human-readable decode attached to a raw frame.
type ParsedFrame struct {
	SlaveID     uint8    `json:"slave_id"`
	Function    uint8    `json:"function"`
	StartAddr   uint16   `json:"start_addr,omitempty"`
	Quantity    uint16   `json:"quantity,omitempty"`
	ByteCount   int      `json:"byte_count,omitempty"`
	Values      []uint16 `json:"values,omitempty"`
	Description string   `json:"description"`
}

// LogEntry is one captured frame on the simulated bus.
type LogEntry struct {
	Timestamp      time.Time   `json:"timestamp"`
	Direction      Direction   `json:"direction"`
	RawHex         string      `json:"raw_hex"`
	Parsed         ParsedFrame `json:"parsed"`
	ResponseTimeMS float64     `json:"response_time_ms,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// LogStats summarizes the captured traffic.
type LogStats struct {
	Total         int     `json:"total"`
	TXCount       int     `json:"tx_count"`
	RXCount       int     `json:"rx_count"`
	ErrorCount    int     `json:"error_count"`
	AvgResponseMS float64 `json:"avg_response_ms"`
	MinResponseMS float64 `json:"min_response_ms"`
	MaxResponseMS float64 `json:"max_response_ms"`
}

// RequestLog is a fixed-capacity ring of bus frames. Oldest entries are
// dropped once the capacity is reached.
type RequestLog struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
}

// NewRequestLog creates a log holding at most max entries.
func NewRequestLog(max int) *RequestLog {
	if max <= 0 {
		max = 1000
	}
	return &RequestLog{max: max}
}

// Append adds an entry, evicting the oldest when full.
func (l *RequestLog) Append(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Last returns up to n newest entries in chronological order. n <= 0
// returns everything.
func (l *RequestLog) Last(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]LogEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Clear drops all entries.
func (l *RequestLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Len reports the number of retained entries.
func (l *RequestLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stats computes traffic statistics over the retained entries.
func (l *RequestLog) Stats() LogStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s LogStats
	s.Total = len(l.entries)
	var sum float64
	var timed int
	for _, e := range l.entries {
		switch e.Direction {
		case DirTX:
			s.TXCount++
		case DirRX:
			s.RXCount++
		}
		if e.Error != "" {
			s.ErrorCount++
		}
		if e.ResponseTimeMS > 0 {
			sum += e.ResponseTimeMS
			timed++
			if s.MinResponseMS == 0 || e.ResponseTimeMS < s.MinResponseMS {
				s.MinResponseMS = e.ResponseTimeMS
			}
			if e.ResponseTimeMS > s.MaxResponseMS {
				s.MaxResponseMS = e.ResponseTimeMS
			}
		}
	}
	if timed > 0 {
		s.AvgResponseMS = sum / float64(timed)
	}
	return s
}
