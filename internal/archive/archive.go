package archive

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Query resolutions.
const (
	ResolutionMinute = "minute"
	ResolutionHour   = "hour"
	ResolutionDay    = "day"
)

// GapsConfig controls simulated collector downtime in the generated
// history.
type GapsConfig struct {
	Probability    float64 `json:"probability"`
	MaxDurationMin int     `json:"max_duration_min"`
}

// Config controls history and event generation.
type Config struct {
	SensorCount        int        `json:"sensor_count"`
	HistoryDays        int        `json:"history_days"`
	DataResolutionMS   int        `json:"data_resolution_ms"`
	TempBase           float64    `json:"temp_base"`
	TempDailyAmplitude float64    `json:"temp_daily_amplitude"`
	TempNoise          float64    `json:"temp_noise"`
	HumBase            float64    `json:"hum_base"`
	HumDailyAmplitude  float64    `json:"hum_daily_amplitude"`
	HumNoise           float64    `json:"hum_noise"`
	EventFrequency     float64    `json:"event_frequency"`
	Gaps               GapsConfig `json:"gaps"`
}

// DefaultConfig returns the archive defaults: a month of minute-grained
// data for ten sensors.
func DefaultConfig() Config {
	return Config{
		SensorCount:        10,
		HistoryDays:        30,
		DataResolutionMS:   60000,
		TempBase:           22.0,
		TempDailyAmplitude: 3.0,
		TempNoise:          0.5,
		HumBase:            45.0,
		HumDailyAmplitude:  10.0,
		HumNoise:           2.0,
		EventFrequency:     0.1,
		Gaps:               GapsConfig{Probability: 0.001, MaxDurationMin: 30},
	}
}

// Merge applies a partial JSON document over a copy of c.
func (c Config) Merge(patch []byte) (Config, error) {
	merged := c
	if err := json.Unmarshal(patch, &merged); err != nil {
		return c, err
	}
	return merged, nil
}

// QueryResult is the payload of a history query. Points is set for
// minute resolution, Buckets for hour/day.
type QueryResult struct {
	SensorID   int         `json:"sensor_id"`
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	Resolution string      `json:"resolution"`
	Points     []DataPoint `json:"points,omitempty"`
	Buckets    []Bucket    `json:"buckets,omitempty"`
	Count      int         `json:"count"`
}

// CleanupResult reports a (simulated) retention run.
type CleanupResult struct {
	DaysToKeep int  `json:"days_to_keep"`
	Deleted    int  `json:"deleted"`
	Simulated  bool `json:"simulated"`
}

// StatusInfo is the archive status report.
type StatusInfo struct {
	Running     bool      `json:"running"`
	SensorCount int       `json:"sensor_count"`
	HistoryDays int       `json:"history_days"`
	Points      int       `json:"points"`
	Events      int       `json:"events"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Archive is the historical-data emulator: generated history plus an
// event journal behind query, export and acknowledgement operations.
type Archive struct {
	logger *zap.SugaredLogger
	clock  func() time.Time

	mu          sync.Mutex
	cfg         Config
	history     *History
	events      *EventStore
	rng         *rand.Rand
	running     bool
	generatedAt time.Time
}

// New builds the archive and generates its initial dataset.
func New(cfg Config, logger *zap.SugaredLogger) *Archive {
	a := &Archive{
		logger: logger,
		clock:  time.Now,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	a.regenerateLocked()
	return a
}

func (a *Archive) regenerateLocked() {
	now := a.clock()
	a.history = GenerateHistory(a.cfg, now, a.rng)
	a.events = GenerateEvents(a.cfg, now, a.rng)
	a.generatedAt = now

	var points int
	for _, id := range a.history.Sensors() {
		series, _ := a.history.Query(id, now.Add(-time.Duration(a.cfg.HistoryDays)*24*time.Hour), now)
		points += len(series)
	}
	a.logger.Infow("archive generated",
		"sensors", a.cfg.SensorCount, "days", a.cfg.HistoryDays,
		"points", points, "events", a.events.Len())
}

// Start marks the archive API as serving.
func (a *Archive) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = true
}

// Stop marks the archive API as stopped.
func (a *Archive) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
}

// Running reports whether the archive is serving.
func (a *Archive) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Status reports archive state.
func (a *Archive) Status() StatusInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	var points int
	now := a.clock()
	for _, id := range a.history.Sensors() {
		series, _ := a.history.Query(id, now.Add(-time.Duration(a.cfg.HistoryDays)*24*time.Hour), now)
		points += len(series)
	}
	return StatusInfo{
		Running:     a.running,
		SensorCount: a.cfg.SensorCount,
		HistoryDays: a.cfg.HistoryDays,
		Points:      points,
		Events:      a.events.Len(),
		GeneratedAt: a.generatedAt,
	}
}

// ParseTimeRange resolves the from/to query strings, falling back to
// the last 24 hours when either is missing or unparsable.
func (a *Archive) ParseTimeRange(fromStr, toStr string) (time.Time, time.Time) {
	now := a.clock()
	from := parseTime(fromStr, now.Add(-24*time.Hour))
	to := parseTime(toStr, now)
	return from, to
}

func parseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

// Query fetches a sensor's history at the given resolution.
func (a *Archive) Query(sensorID int, fromStr, toStr, resolution string) (QueryResult, error) {
	from, to := a.ParseTimeRange(fromStr, toStr)

	a.mu.Lock()
	history := a.history
	a.mu.Unlock()

	points, err := history.Query(sensorID, from, to)
	if err != nil {
		return QueryResult{}, err
	}

	res := QueryResult{SensorID: sensorID, From: from, To: to, Resolution: resolution}
	switch resolution {
	case ResolutionHour, ResolutionDay:
		res.Buckets = AggregateBuckets(points, resolution)
		res.Count = len(res.Buckets)
	default:
		res.Resolution = ResolutionMinute
		res.Points = points
		res.Count = len(points)
	}
	return res, nil
}

// ExportCSV renders a sensor's raw history as CSV with the canonical
// column set.
func (a *Archive) ExportCSV(sensorID int, fromStr, toStr string) ([]byte, error) {
	from, to := a.ParseTimeRange(fromStr, toStr)

	a.mu.Lock()
	history := a.history
	a.mu.Unlock()

	points, err := history.Query(sensorID, from, to)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "temperature", "humidity", "status"}); err != nil {
		return nil, err
	}
	for _, p := range points {
		rec := []string{
			p.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(p.Temperature, 'f', 1, 64),
			strconv.FormatFloat(p.Humidity, 'f', 1, 64),
			p.Status,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Events queries the journal.
func (a *Archive) Events(f EventFilter) ([]Event, int) {
	a.mu.Lock()
	events := a.events
	a.mu.Unlock()
	return events.Query(f)
}

// Acknowledge marks an event as handled.
func (a *Archive) Acknowledge(id int, user string) (Event, error) {
	a.mu.Lock()
	events := a.events
	a.mu.Unlock()
	return events.Acknowledge(id, user)
}

// AddEvent injects a manual event into the journal.
func (a *Archive) AddEvent(e Event) Event {
	a.mu.Lock()
	events := a.events
	a.mu.Unlock()
	return events.Add(e)
}

// Cleanup simulates a retention run. The emulator never deletes.
func (a *Archive) Cleanup(daysToKeep int) CleanupResult {
	a.logger.Infow("archive cleanup simulated", "days_to_keep", daysToKeep)
	return CleanupResult{DaysToKeep: daysToKeep, Deleted: 0, Simulated: true}
}

// Regenerate rebuilds the history and the event journal from scratch.
func (a *Archive) Regenerate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.regenerateLocked()
}

// Config returns a copy of the active configuration.
func (a *Archive) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// UpdateConfig merges a partial JSON document and regenerates the
// dataset against the new parameters.
func (a *Archive) UpdateConfig(patch []byte) (Config, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	merged, err := a.cfg.Merge(patch)
	if err != nil {
		return Config{}, fmt.Errorf("merge archive config: %w", err)
	}
	a.cfg = merged
	a.regenerateLocked()
	return merged, nil
}
