package modbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"fieldmock/internal/scenario"
)

// Config controls the register-protocol emulator.
type Config struct {
	Port          int             `json:"port"`
	UnitID        int             `json:"unit_id"`
	SensorCount   int             `json:"sensor_count"`
	IntervalMS    int             `json:"interval_ms"`
	LogMaxEntries int             `json:"log_max_entries"`
	Generation    scenario.Config `json:"generation"`
}

// DefaultConfig returns the emulator defaults.
func DefaultConfig() Config {
	return Config{
		Port:          5020,
		UnitID:        16,
		SensorCount:   10,
		IntervalMS:    1000,
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

// RegisterView is one register in the REST snapshot.
type RegisterView struct {
	Addr    uint16  `json:"addr"`
	Value   uint16  `json:"value"`
	Decoded float64 `json:"decoded"`
}

// StatusInfo is the emulator status report.
type StatusInfo struct {
	Running     bool       `json:"running"`
	Scenario    string     `json:"scenario"`
	Port        int        `json:"port"`
	UnitID      int        `json:"unit_id"`
	SensorCount int        `json:"sensor_count"`
	IntervalMS  int        `json:"interval_ms"`
	Ticks       uint64     `json:"ticks"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Log         LogStats   `json:"log"`
}

// Emulator owns the register map, the scenario, the ticking generator
// and the protocol server.
type Emulator struct {
	registry *scenario.Registry
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	cfg       Config
	registers *RegisterMap
	reqLog    *RequestLog
	scen      scenario.Scenario
	limits    scenario.Limits
	offline   map[int]bool
	server    *Server
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
	startedAt time.Time
	ticks     uint64
}

// NewEmulator builds a stopped emulator from the given config.
func NewEmulator(cfg Config, registry *scenario.Registry, logger *zap.SugaredLogger) *Emulator {
	e := &Emulator{registry: registry, logger: logger}
	e.apply(cfg)
	return e
}

// apply rebuilds every config-derived component. Caller holds the lock
// (or owns e exclusively during construction).
func (e *Emulator) apply(cfg Config) {
	e.cfg = cfg
	e.registers = NewRegisterMap(cfg.SensorCount)
	e.reqLog = NewRequestLog(cfg.LogMaxEntries)
	e.scen = e.registry.New(cfg.Generation.Scenario, cfg.Generation.Params())
	e.limits = cfg.Generation.Limits.Limits()
	e.offline = make(map[int]bool)
	for _, id := range cfg.Generation.Errors.OfflineSensors {
		e.offline[id] = true
	}
	e.server = NewServer(ServerSettings{
		Port:   cfg.Port,
		UnitID: uint8(cfg.UnitID),
	}, e.registers, e.reqLog, e.logger)
	e.ticks = 0
}

// Start brings up the protocol server and the generation loop.
func (e *Emulator) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if err := e.server.Start(); err != nil {
		return fmt.Errorf("start modbus server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	e.startedAt = time.Now()

	interval := time.Duration(e.cfg.IntervalMS) * time.Millisecond
	go e.run(ctx, interval)

	e.logger.Infow("modbus emulator started",
		"port", e.cfg.Port, "unit_id", e.cfg.UnitID,
		"scenario", e.cfg.Generation.Scenario, "sensors", e.cfg.SensorCount)
	return nil
}

// Stop shuts down the loop and the server. Safe to call when stopped.
func (e *Emulator) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	done := e.done
	server := e.server
	e.mu.Unlock()

	<-done
	if err := server.Stop(); err != nil {
		e.logger.Warnw("modbus server stop", "error", err)
	}
	e.logger.Info("modbus emulator stopped")
}

func (e *Emulator) run(ctx context.Context, interval time.Duration) {
	defer close(e.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick evaluates the scenario for every sensor and writes the results
// into the register map. Configured-offline sensors bypass the scenario.
func (e *Emulator) tick() {
	e.mu.Lock()
	scen := e.scen
	limits := e.limits
	count := e.cfg.SensorCount
	offline := e.offline
	registers := e.registers
	e.ticks++
	e.mu.Unlock()

	for id := 1; id <= count; id++ {
		if offline[id] {
			registers.MarkOffline(id)
			continue
		}
		registers.WriteSensor(id, scen.GetValue(id, limits))
	}
}

// Running reports whether the generation loop is active.
func (e *Emulator) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status reports the emulator state for the REST layer.
func (e *Emulator) Status() StatusInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	info := StatusInfo{
		Running:     e.running,
		Scenario:    e.cfg.Generation.Scenario,
		Port:        e.cfg.Port,
		UnitID:      e.cfg.UnitID,
		SensorCount: e.cfg.SensorCount,
		IntervalMS:  e.cfg.IntervalMS,
		Ticks:       e.ticks,
		Log:         e.reqLog.Stats(),
	}
	if e.running {
		t := e.startedAt
		info.StartedAt = &t
	}
	return info
}

// Registers returns the register space sorted by address.
func (e *Emulator) Registers() []RegisterView {
	e.mu.Lock()
	registers := e.registers
	e.mu.Unlock()

	snap := registers.Snapshot()
	out := make([]RegisterView, 0, len(snap))
	for addr, value := range snap {
		decoded := float64(value)
		if addr < StatusBase {
			decoded = DecodeValue(value)
		}
		out = append(out, RegisterView{Addr: addr, Value: value, Decoded: decoded})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// WriteRegister sets a register by hand, bypassing the generator.
func (e *Emulator) WriteRegister(addr, value uint16) {
	e.mu.Lock()
	registers := e.registers
	e.mu.Unlock()
	registers.Set(addr, value)
}

// SetScenario swaps the active scenario. Scenario state is rebuilt from
// scratch; an unknown name is rejected.
func (e *Emulator) SetScenario(name string) error {
	if !e.registry.Has(name) {
		return fmt.Errorf("unknown scenario %q", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Generation.Scenario = name
	e.scen = e.registry.New(name, e.cfg.Generation.Params())
	e.logger.Infow("modbus scenario changed", "scenario", name)
	return nil
}

// Config returns a copy of the active configuration.
func (e *Emulator) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig merges a partial JSON document into the configuration
// and reinitializes the emulator, restarting it if it was running.
func (e *Emulator) UpdateConfig(patch []byte) (Config, error) {
	e.mu.Lock()
	merged, err := e.cfg.Merge(patch)
	if err != nil {
		e.mu.Unlock()
		return Config{}, fmt.Errorf("merge modbus config: %w", err)
	}
	wasRunning := e.running
	e.mu.Unlock()

	if wasRunning {
		e.Stop()
	}

	e.mu.Lock()
	e.apply(merged)
	e.mu.Unlock()

	if wasRunning {
		if err := e.Start(); err != nil {
			return merged, err
		}
	}
	return merged, nil
}

// Log returns up to limit newest request-log entries.
func (e *Emulator) Log(limit int) []LogEntry {
	e.mu.Lock()
	reqLog := e.reqLog
	e.mu.Unlock()
	return reqLog.Last(limit)
}

// ClearLog drops the request log.
func (e *Emulator) ClearLog() {
	e.mu.Lock()
	reqLog := e.reqLog
	e.mu.Unlock()
	reqLog.Clear()
}
