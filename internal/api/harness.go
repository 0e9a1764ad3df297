package api

import (
	"encoding/json"
	"net/http"

	"fieldmock/internal/archive"
	"fieldmock/internal/auth"
	"fieldmock/internal/current"
	"fieldmock/internal/events"
	"fieldmock/internal/modbus"
	"fieldmock/internal/scenario"
	"fieldmock/internal/storage"
)

// HarnessHandler serves the combined endpoints that span all three
// emulators.
type HarnessHandler struct {
	registry   *scenario.Registry
	modbusEm   *modbus.Emulator
	currentGen *current.Generator
	archiveEm  *archive.Archive
	eventStore *events.Store
	settings   storage.Settings
}

// NewHarnessHandler creates the combined-control handler.
func NewHarnessHandler(registry *scenario.Registry, modbusEm *modbus.Emulator, currentGen *current.Generator, archiveEm *archive.Archive, eventStore *events.Store, settings storage.Settings) *HarnessHandler {
	return &HarnessHandler{
		registry:   registry,
		modbusEm:   modbusEm,
		currentGen: currentGen,
		archiveEm:  archiveEm,
		eventStore: eventStore,
		settings:   settings,
	}
}

// Status handles GET /api/status
func (h *HarnessHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modbus":  h.modbusEm.Status(),
		"current": h.currentGen.Status(),
		"archive": h.archiveEm.Status(),
	})
}

// StartAll handles POST /api/start_all
func (h *HarnessHandler) StartAll(w http.ResponseWriter, r *http.Request) {
	errs := map[string]string{}
	if err := h.modbusEm.Start(); err != nil {
		errs[storage.EmulatorModbus] = err.Error()
	}
	if err := h.currentGen.Start(); err != nil {
		errs[storage.EmulatorCurrent] = err.Error()
	}
	h.archiveEm.Start()

	h.eventStore.Add(events.EventEmulatorStart, "all", requestUser(r), len(errs) == 0, "")
	if len(errs) > 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "errors": errs})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StopAll handles POST /api/stop_all
func (h *HarnessHandler) StopAll(w http.ResponseWriter, r *http.Request) {
	h.modbusEm.Stop()
	h.currentGen.Stop()
	h.archiveEm.Stop()

	h.eventStore.Add(events.EventEmulatorStop, "all", requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Scenarios handles GET /api/scenarios
func (h *HarnessHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": h.registry.List(),
	})
}

// SetScenarioRequest is the body of scenario-switch endpoints.
type SetScenarioRequest struct {
	Scenario string `json:"scenario"`
}

// SetScenarioAll handles POST /api/set_scenario_all
// Switches the register emulator and the poller generator together; the
// archive keeps its own generation parameters.
func (h *HarnessHandler) SetScenarioAll(w http.ResponseWriter, r *http.Request) {
	var req SetScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.registry.Has(req.Scenario) {
		writeError(w, http.StatusBadRequest, "unknown scenario: "+req.Scenario)
		return
	}

	if err := h.modbusEm.SetScenario(req.Scenario); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.currentGen.SetScenario(req.Scenario); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.settings.SaveScenario(storage.EmulatorModbus, req.Scenario)
	h.settings.SaveScenario(storage.EmulatorCurrent, req.Scenario)
	h.eventStore.Add(events.EventScenarioChange, "all", requestUser(r), true, req.Scenario)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"scenario": req.Scenario,
	})
}

// Config handles GET /api/config
func (h *HarnessHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modbus":  h.modbusEm.Config(),
		"current": h.currentGen.Config(),
		"archive": h.archiveEm.Config(),
	})
}

// configPatch carries per-section partial updates for POST /api/config.
type configPatch struct {
	Modbus  json.RawMessage `json:"modbus,omitempty"`
	Current json.RawMessage `json:"current,omitempty"`
	Archive json.RawMessage `json:"archive,omitempty"`
}

// UpdateConfig handles POST /api/config
func (h *HarnessHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := map[string]interface{}{}
	if patch.Modbus != nil {
		cfg, err := h.modbusEm.UpdateConfig(patch.Modbus)
		if err != nil {
			writeError(w, http.StatusBadRequest, "modbus: "+err.Error())
			return
		}
		persistConfig(h.settings, storage.EmulatorModbus, cfg)
		result["modbus"] = cfg
	}
	if patch.Current != nil {
		cfg, err := h.currentGen.UpdateConfig(patch.Current)
		if err != nil {
			writeError(w, http.StatusBadRequest, "current: "+err.Error())
			return
		}
		persistConfig(h.settings, storage.EmulatorCurrent, cfg)
		result["current"] = cfg
	}
	if patch.Archive != nil {
		cfg, err := h.archiveEm.UpdateConfig(patch.Archive)
		if err != nil {
			writeError(w, http.StatusBadRequest, "archive: "+err.Error())
			return
		}
		persistConfig(h.settings, storage.EmulatorArchive, cfg)
		result["archive"] = cfg
	}

	h.eventStore.Add(events.EventConfigUpdate, "all", requestUser(r), true, "")
	writeJSON(w, http.StatusOK, result)
}

// persistConfig stores the full effective config as the emulator's
// override so it is reapplied on the next startup.
func persistConfig(settings storage.Settings, emulator string, cfg interface{}) {
	if data, err := json.Marshal(cfg); err == nil {
		settings.SaveOverride(emulator, data)
	}
}

// requestUser returns the username from the request context, or "dev"
// when running without authentication.
func requestUser(r *http.Request) string {
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		return user.Username
	}
	return "dev"
}
