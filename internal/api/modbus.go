package api

import (
	"encoding/json"
	"net/http"

	"fieldmock/internal/events"
	"fieldmock/internal/modbus"
	"fieldmock/internal/storage"
)

// ModbusHandler exposes the register-protocol emulator.
type ModbusHandler struct {
	em         *modbus.Emulator
	eventStore *events.Store
	settings   storage.Settings
}

// NewModbusHandler creates the register emulator handler.
func NewModbusHandler(em *modbus.Emulator, eventStore *events.Store, settings storage.Settings) *ModbusHandler {
	return &ModbusHandler{em: em, eventStore: eventStore, settings: settings}
}

// Status handles GET /api/modbus/status
func (h *ModbusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.em.Status())
}

// Start handles POST /api/modbus/start
func (h *ModbusHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.em.Start(); err != nil {
		h.eventStore.Add(events.EventEmulatorStart, storage.EmulatorModbus, requestUser(r), false, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.eventStore.Add(events.EventEmulatorStart, storage.EmulatorModbus, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Stop handles POST /api/modbus/stop
func (h *ModbusHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.em.Stop()
	h.eventStore.Add(events.EventEmulatorStop, storage.EmulatorModbus, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Registers handles GET /api/modbus/registers
func (h *ModbusHandler) Registers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"registers": h.em.Registers(),
	})
}

// WriteRegisterRequest is the body of POST /api/modbus/registers
type WriteRegisterRequest struct {
	Addr  uint16 `json:"addr"`
	Value uint16 `json:"value"`
}

// WriteRegister handles POST /api/modbus/registers
// Manual register poke; the next generator tick overwrites it.
func (h *ModbusHandler) WriteRegister(w http.ResponseWriter, r *http.Request) {
	var req WriteRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.em.WriteRegister(req.Addr, req.Value)
	h.eventStore.Add(events.EventRegisterWrite, storage.EmulatorModbus, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Config handles GET /api/modbus/config
func (h *ModbusHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.em.Config())
}

// UpdateConfig handles POST /api/modbus/config
func (h *ModbusHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	patch, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := h.em.UpdateConfig(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	persistConfig(h.settings, storage.EmulatorModbus, cfg)
	h.eventStore.Add(events.EventConfigUpdate, storage.EmulatorModbus, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, cfg)
}

// SetScenario handles POST /api/modbus/set_scenario
func (h *ModbusHandler) SetScenario(w http.ResponseWriter, r *http.Request) {
	var req SetScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.em.SetScenario(req.Scenario); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.settings.SaveScenario(storage.EmulatorModbus, req.Scenario)
	h.eventStore.Add(events.EventScenarioChange, storage.EmulatorModbus, requestUser(r), true, req.Scenario)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"scenario": req.Scenario,
	})
}

// Log handles GET /api/modbus/log?limit=
func (h *ModbusHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	entries := h.em.Log(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"stats":   h.em.Status().Log,
	})
}

// ClearLog handles POST /api/modbus/log/clear
func (h *ModbusHandler) ClearLog(w http.ResponseWriter, r *http.Request) {
	h.em.ClearLog()
	h.eventStore.Add(events.EventLogClear, storage.EmulatorModbus, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
