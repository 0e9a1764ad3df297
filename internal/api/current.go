package api

import (
	"encoding/json"
	"net/http"

	"fieldmock/internal/current"
	"fieldmock/internal/events"
	"fieldmock/internal/storage"
)

// CurrentHandler exposes the poller-output generator.
type CurrentHandler struct {
	gen        *current.Generator
	eventStore *events.Store
	settings   storage.Settings
}

// NewCurrentHandler creates the poller generator handler.
func NewCurrentHandler(gen *current.Generator, eventStore *events.Store, settings storage.Settings) *CurrentHandler {
	return &CurrentHandler{gen: gen, eventStore: eventStore, settings: settings}
}

// Status handles GET /api/current/status
func (h *CurrentHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gen.Status())
}

// Start handles POST /api/current/start
func (h *CurrentHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.gen.Start(); err != nil {
		h.eventStore.Add(events.EventEmulatorStart, storage.EmulatorCurrent, requestUser(r), false, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.eventStore.Add(events.EventEmulatorStart, storage.EmulatorCurrent, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Stop handles POST /api/current/stop
func (h *CurrentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.gen.Stop()
	h.eventStore.Add(events.EventEmulatorStop, storage.EmulatorCurrent, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Generate handles POST /api/current/generate
// Produces one document immediately, writes the output files, and
// returns the document.
func (h *CurrentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	doc := h.gen.Generate()
	if err := h.gen.WriteFiles(doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Preview handles GET /api/current/preview
// Returns a document without committing stats or writing files.
func (h *CurrentHandler) Preview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gen.Preview())
}

// Config handles GET /api/current/config
func (h *CurrentHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gen.Config())
}

// UpdateConfig handles POST /api/current/config
func (h *CurrentHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	patch, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := h.gen.UpdateConfig(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	persistConfig(h.settings, storage.EmulatorCurrent, cfg)
	h.eventStore.Add(events.EventConfigUpdate, storage.EmulatorCurrent, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, cfg)
}

// SetScenario handles POST /api/current/set_scenario
func (h *CurrentHandler) SetScenario(w http.ResponseWriter, r *http.Request) {
	var req SetScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.gen.SetScenario(req.Scenario); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.settings.SaveScenario(storage.EmulatorCurrent, req.Scenario)
	h.eventStore.Add(events.EventScenarioChange, storage.EmulatorCurrent, requestUser(r), true, req.Scenario)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"scenario": req.Scenario,
	})
}

// SetSensorRequest is the body of POST /api/current/set_sensor
type SetSensorRequest struct {
	SensorID    int      `json:"sensor_id"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// SetSensor handles POST /api/current/set_sensor
// Pins a sensor to fixed values; both fields absent clears the pin.
func (h *CurrentHandler) SetSensor(w http.ResponseWriter, r *http.Request) {
	var req SetSensorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ov := current.Override{Temperature: req.Temperature, Humidity: req.Humidity}
	if err := h.gen.SetSensor(req.SensorID, ov); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.eventStore.Add(events.EventSensorOverride, storage.EmulatorCurrent, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ModbusLog handles GET /api/current/modbus_log?limit=
func (h *CurrentHandler) ModbusLog(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	entries, stats := h.gen.TraceLog(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"stats":   stats,
	})
}
