package current

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"fieldmock/internal/modbus"
	"fieldmock/internal/scenario"
)

// Version stamped into the _mock marker of every document.
const Version = "1.0"

// Config controls the poller-output generator.
type Config struct {
	IntervalMS    int             `json:"interval_ms"`
	SensorCount   int             `json:"sensor_count"`
	NamePrefix    string          `json:"name_prefix"`
	ComPort       string          `json:"com_port"`
	Baudrate      int             `json:"baudrate"`
	SlaveID       int             `json:"slave_id"`
	StartAddr     int             `json:"start_addr"`
	TraceEnabled  bool            `json:"trace_enabled"`
	LogMaxEntries int             `json:"log_max_entries"`
	Generation    scenario.Config `json:"generation"`
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		IntervalMS:    1000,
		SensorCount:   10,
		NamePrefix:    "STORAGE UNIT",
		ComPort:       "MOCK",
		Baudrate:      9600,
		SlaveID:       16,
		StartAddr:     1,
		TraceEnabled:  true,
		LogMaxEntries: 1000,
		Generation:    scenario.Config{Scenario: "normal"},
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

// Override pins a sensor's readings to fixed values with a small 0.1
// jitter, replacing whatever the scenario produces.
type Override struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// Sink receives every generated document. The WebSocket hub and the
// MQTT publisher implement it.
type Sink interface {
	PublishDocument(doc Document)
}

// StatusInfo is the generator status report.
type StatusInfo struct {
	Running     bool       `json:"running"`
	Scenario    string     `json:"scenario"`
	SensorCount int        `json:"sensor_count"`
	IntervalMS  int        `json:"interval_ms"`
	OutputFile  string     `json:"output_file"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	PollStats   PollStats  `json:"poll_stats"`
}

// Generator produces poller documents on a timer and fans them out to
// the output file and the registered sinks.
type Generator struct {
	registry *scenario.Registry
	dataDir  string
	logger   *zap.SugaredLogger
	rng      *rand.Rand

	mu        sync.Mutex
	cfg       Config
	scen      scenario.Scenario
	limits    scenario.Limits
	offline   map[int]bool
	overrides map[int]Override
	trace     *modbus.RequestLog
	stats     PollStats
	sinks     []Sink
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
	startedAt time.Time
}

// NewGenerator builds a stopped generator writing into dataDir.
func NewGenerator(cfg Config, registry *scenario.Registry, dataDir string, logger *zap.SugaredLogger) *Generator {
	g := &Generator{
		registry: registry,
		dataDir:  dataDir,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	g.apply(cfg)
	return g
}

func (g *Generator) apply(cfg Config) {
	g.cfg = cfg
	g.scen = g.registry.New(cfg.Generation.Scenario, cfg.Generation.Params())
	g.limits = cfg.Generation.Limits.Limits()
	g.offline = make(map[int]bool)
	for _, id := range cfg.Generation.Errors.OfflineSensors {
		g.offline[id] = true
	}
	g.overrides = make(map[int]Override)
	g.trace = modbus.NewRequestLog(cfg.LogMaxEntries)
	g.stats = PollStats{}
}

// AddSink registers a document consumer.
func (g *Generator) AddSink(s Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks = append(g.sinks, s)
}

// Start launches the generation loop.
func (g *Generator) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	g.running = true
	g.startedAt = time.Now()

	interval := time.Duration(g.cfg.IntervalMS) * time.Millisecond
	go g.run(ctx, interval)

	g.logger.Infow("current generator started",
		"scenario", g.cfg.Generation.Scenario,
		"sensors", g.cfg.SensorCount, "interval_ms", g.cfg.IntervalMS)
	return nil
}

// Stop halts the loop. Safe to call when stopped.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.cancel()
	done := g.done
	g.mu.Unlock()
	<-done
	g.logger.Info("current generator stopped")
}

func (g *Generator) run(ctx context.Context, interval time.Duration) {
	defer close(g.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.generateAndWrite()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.generateAndWrite()
		}
	}
}

// Running reports whether the loop is active.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Generate builds one document, updates poll statistics and the bus
// trace, and returns it. It does not touch the filesystem.
func (g *Generator) Generate() Document {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generateLocked(true)
}

// Preview builds a document without affecting statistics or the trace.
func (g *Generator) Preview() Document {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generateLocked(false)
}

func (g *Generator) generateLocked(commit bool) Document {
	now := time.Now()
	ts := now.Format(time.RFC3339)

	doc := Document{
		Timestamp:    ts,
		PollPeriodMS: g.cfg.IntervalMS,
		ComPort:      g.cfg.ComPort,
		Baudrate:     g.cfg.Baudrate,
		Sensors:      make([]SensorRecord, 0, g.cfg.SensorCount),
		Mock: MockInfo{
			Generator: "fieldmock",
			Scenario:  g.cfg.Generation.Scenario,
			Version:   Version,
		},
	}

	for id := 1; id <= g.cfg.SensorCount; id++ {
		rec := g.sensorRecord(id, ts)
		doc.Sensors = append(doc.Sensors, rec)

		if commit {
			g.stats.Total++
			if rec.CombinedStatus == scenario.StatusOffline {
				g.stats.Failed++
				g.stats.LastError = fmt.Sprintf("sensor %d: %s", id, rec.Temperature.Status)
			} else {
				g.stats.Successful++
			}
			if g.cfg.TraceEnabled {
				g.traceSensor(now, id, rec)
			}
		}
	}

	doc.PollStats = g.stats
	return doc
}

func (g *Generator) sensorRecord(id int, ts string) SensorRecord {
	rec := SensorRecord{
		ID:             id,
		Name:           fmt.Sprintf("%s %d", g.cfg.NamePrefix, id),
		ModbusSlaveID:  g.cfg.SlaveID,
		ModbusAddrTemp: g.cfg.StartAddr + (id-1)*2,
		ModbusAddrHum:  g.cfg.StartAddr + (id-1)*2 + 1,
	}

	if g.offline[id] {
		rec.Temperature = offlineQuantity(ts)
		rec.Humidity = offlineQuantity(ts)
		rec.CombinedStatus = scenario.StatusOffline
		return rec
	}

	v := g.scen.GetValue(id, g.limits)
	if ov, ok := g.overrides[id]; ok {
		v = g.applyOverride(v, ov)
	}

	if v.CombinedStatus == scenario.StatusOffline {
		rec.Temperature = offlineQuantity(ts)
		rec.Humidity = offlineQuantity(ts)
		rec.Temperature.Status = string(v.Fault)
		rec.Humidity.Status = string(v.Fault)
		rec.CombinedStatus = scenario.StatusOffline
		return rec
	}

	rec.Temperature = onlineQuantity(v.Temperature, v.TempStatus, ts)
	rec.Humidity = onlineQuantity(v.Humidity, v.HumStatus, ts)
	rec.CombinedStatus = v.CombinedStatus
	return rec
}

// applyOverride replaces the scenario reading with the pinned value
// plus a 0.1 jitter, then reclassifies.
func (g *Generator) applyOverride(v scenario.SensorValue, ov Override) scenario.SensorValue {
	if ov.Temperature != nil {
		v.Temperature = round1(*ov.Temperature + g.jitter(0.1))
		v.TempStatus = scenario.Classify(v.Temperature,
			g.limits.TempMin, g.limits.TempMax, g.limits.TempWarningDelta, g.limits.TempAlarmDelta)
	}
	if ov.Humidity != nil {
		v.Humidity = round1(*ov.Humidity + g.jitter(0.1))
		v.HumStatus = scenario.Classify(v.Humidity,
			g.limits.HumMin, g.limits.HumMax, g.limits.HumWarningDelta, g.limits.HumAlarmDelta)
	}
	v.CombinedStatus = scenario.Combine(v.TempStatus, v.HumStatus)
	v.Fault = scenario.FaultNone
	return v
}

func (g *Generator) jitter(amp float64) float64 {
	return -amp + g.rng.Float64()*2*amp
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func offlineQuantity(ts string) QuantityRecord {
	return QuantityRecord{
		Value:        nil,
		Raw:          nil,
		Status:       string(scenario.StatusOffline),
		ModbusStatus: 1,
		Timestamp:    ts,
	}
}

func onlineQuantity(value float64, status scenario.Status, ts string) QuantityRecord {
	raw := int(int16(math.Round(value * 10)))
	ms := 0
	if status != scenario.StatusNormal {
		ms = 1
	}
	return QuantityRecord{
		Value:        &value,
		Raw:          &raw,
		Status:       string(status),
		ModbusStatus: ms,
		Timestamp:    ts,
	}
}

// traceSensor appends the synthesized bus exchange for one sensor: a
// value read followed by a status read, or a timed-out request pair for
// sensors that did not answer.
func (g *Generator) traceSensor(now time.Time, id int, rec SensorRecord) {
	slave := uint8(g.cfg.SlaveID)
	valueAddr := uint16(rec.ModbusAddrTemp)
	statusAddr := uint16(rec.ModbusAddrTemp) + 100

	txValue := modbus.ReadRequestFrame(slave, modbus.FuncReadInputRegisters, valueAddr, 2)
	g.trace.Append(modbus.LogEntry{
		Timestamp: now,
		Direction: modbus.DirTX,
		RawHex:    modbus.FrameHex(txValue),
		Parsed: modbus.ParsedFrame{
			SlaveID:     slave,
			Function:    modbus.FuncReadInputRegisters,
			StartAddr:   valueAddr,
			Quantity:    2,
			Description: fmt.Sprintf("read values sensor %d", id),
		},
	})

	if rec.CombinedStatus == scenario.StatusOffline {
		g.trace.Append(modbus.LogEntry{
			Timestamp:      now,
			Direction:      modbus.DirRX,
			RawHex:         "",
			Parsed:         modbus.ParsedFrame{SlaveID: slave, Description: "no response"},
			ResponseTimeMS: 1000,
			Error:          "timeout",
		})
		return
	}

	values := []uint16{quantityRaw(rec.Temperature), quantityRaw(rec.Humidity)}
	latency := 5 + g.rng.Float64()*25
	rxValue := modbus.ReadResponseFrame(slave, modbus.FuncReadInputRegisters, values)
	g.trace.Append(modbus.LogEntry{
		Timestamp: now,
		Direction: modbus.DirRX,
		RawHex:    modbus.FrameHex(rxValue),
		Parsed: modbus.ParsedFrame{
			SlaveID:     slave,
			Function:    modbus.FuncReadInputRegisters,
			ByteCount:   4,
			Values:      values,
			Description: fmt.Sprintf("values sensor %d", id),
		},
		ResponseTimeMS: latency,
	})

	statuses := []uint16{uint16(rec.Temperature.ModbusStatus), uint16(rec.Humidity.ModbusStatus)}
	txStatus := modbus.ReadRequestFrame(slave, modbus.FuncReadHoldingRegisters, statusAddr, 2)
	g.trace.Append(modbus.LogEntry{
		Timestamp: now,
		Direction: modbus.DirTX,
		RawHex:    modbus.FrameHex(txStatus),
		Parsed: modbus.ParsedFrame{
			SlaveID:     slave,
			Function:    modbus.FuncReadHoldingRegisters,
			StartAddr:   statusAddr,
			Quantity:    2,
			Description: fmt.Sprintf("read status sensor %d", id),
		},
	})
	rxStatus := modbus.ReadResponseFrame(slave, modbus.FuncReadHoldingRegisters, statuses)
	g.trace.Append(modbus.LogEntry{
		Timestamp: now,
		Direction: modbus.DirRX,
		RawHex:    modbus.FrameHex(rxStatus),
		Parsed: modbus.ParsedFrame{
			SlaveID:     slave,
			Function:    modbus.FuncReadHoldingRegisters,
			ByteCount:   4,
			Values:      statuses,
			Description: fmt.Sprintf("status sensor %d", id),
		},
		ResponseTimeMS: 5 + g.rng.Float64()*25,
	})
}

func quantityRaw(q QuantityRecord) uint16 {
	if q.Raw == nil {
		return 0
	}
	return uint16(int16(*q.Raw))
}

// generateAndWrite is one timer tick: build the document, write the
// output files, fan out to sinks.
func (g *Generator) generateAndWrite() {
	doc := g.Generate()
	if err := g.WriteFiles(doc); err != nil {
		g.logger.Errorw("write poller output", "error", err)
	}

	g.mu.Lock()
	sinks := append([]Sink(nil), g.sinks...)
	g.mu.Unlock()
	for _, s := range sinks {
		s.PublishDocument(doc)
	}
}

// WriteFiles persists the document to current.json and, when tracing is
// enabled, the synthesized exchanges to modbus_log.json.
func (g *Generator) WriteFiles(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.dataDir, "current.json"), data, 0o644); err != nil {
		return fmt.Errorf("write current.json: %w", err)
	}

	g.mu.Lock()
	traceEnabled := g.cfg.TraceEnabled
	var entries []modbus.LogEntry
	if traceEnabled {
		entries = g.trace.Last(0)
	}
	g.mu.Unlock()
	if !traceEnabled {
		return nil
	}

	data, err = json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.dataDir, "modbus_log.json"), data, 0o644); err != nil {
		return fmt.Errorf("write modbus_log.json: %w", err)
	}
	return nil
}

// Status reports the generator state.
func (g *Generator) Status() StatusInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	info := StatusInfo{
		Running:     g.running,
		Scenario:    g.cfg.Generation.Scenario,
		SensorCount: g.cfg.SensorCount,
		IntervalMS:  g.cfg.IntervalMS,
		OutputFile:  filepath.Join(g.dataDir, "current.json"),
		PollStats:   g.stats,
	}
	if g.running {
		t := g.startedAt
		info.StartedAt = &t
	}
	return info
}

// SetScenario swaps the active scenario, resetting its state.
func (g *Generator) SetScenario(name string) error {
	if !g.registry.Has(name) {
		return fmt.Errorf("unknown scenario %q", name)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Generation.Scenario = name
	g.scen = g.registry.New(name, g.cfg.Generation.Params())
	g.logger.Infow("current scenario changed", "scenario", name)
	return nil
}

// SetSensor installs a per-sensor override. Passing an override with
// both fields nil removes it.
func (g *Generator) SetSensor(id int, ov Override) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id < 1 || id > g.cfg.SensorCount {
		return fmt.Errorf("sensor id %d out of range 1..%d", id, g.cfg.SensorCount)
	}
	if ov.Temperature == nil && ov.Humidity == nil {
		delete(g.overrides, id)
		return nil
	}
	g.overrides[id] = ov
	return nil
}

// Config returns a copy of the active configuration.
func (g *Generator) Config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// UpdateConfig merges a partial JSON document and reinitializes the
// generator, restarting it if it was running. Overrides are dropped.
func (g *Generator) UpdateConfig(patch []byte) (Config, error) {
	g.mu.Lock()
	merged, err := g.cfg.Merge(patch)
	if err != nil {
		g.mu.Unlock()
		return Config{}, fmt.Errorf("merge current config: %w", err)
	}
	wasRunning := g.running
	g.mu.Unlock()

	if wasRunning {
		g.Stop()
	}
	g.mu.Lock()
	g.apply(merged)
	g.mu.Unlock()
	if wasRunning {
		if err := g.Start(); err != nil {
			return merged, err
		}
	}
	return merged, nil
}

// TraceLog returns up to limit newest trace entries plus statistics.
func (g *Generator) TraceLog(limit int) ([]modbus.LogEntry, modbus.LogStats) {
	g.mu.Lock()
	trace := g.trace
	g.mu.Unlock()
	return trace.Last(limit), trace.Stats()
}
