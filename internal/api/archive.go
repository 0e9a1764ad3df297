package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldmock/internal/archive"
	"fieldmock/internal/events"
	"fieldmock/internal/storage"
)

// ArchiveHandler exposes the historical data and event archive.
type ArchiveHandler struct {
	arch       *archive.Archive
	eventStore *events.Store
	settings   storage.Settings
}

// NewArchiveHandler creates the archive handler.
func NewArchiveHandler(arch *archive.Archive, eventStore *events.Store, settings storage.Settings) *ArchiveHandler {
	return &ArchiveHandler{arch: arch, eventStore: eventStore, settings: settings}
}

// Status handles GET /api/archive/status
func (h *ArchiveHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.arch.Status())
}

// Start handles POST /api/archive/start
func (h *ArchiveHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.arch.Start()
	h.eventStore.Add(events.EventEmulatorStart, storage.EmulatorArchive, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Stop handles POST /api/archive/stop
func (h *ArchiveHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.arch.Stop()
	h.eventStore.Add(events.EventEmulatorStop, storage.EmulatorArchive, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Query handles GET /api/archive/query?sensor_id&from&to&resolution
func (h *ArchiveHandler) Query(w http.ResponseWriter, r *http.Request) {
	sensorID, err := strconv.Atoi(r.URL.Query().Get("sensor_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "sensor_id is required")
		return
	}

	q := r.URL.Query()
	res, err := h.arch.Query(sensorID, q.Get("from"), q.Get("to"), q.Get("resolution"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Events handles GET /api/archive/events with filter query parameters.
func (h *ArchiveHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := archive.EventFilter{
		EventType: q.Get("event_type"),
		Priority:  q.Get("priority"),
		Limit:     parseLimit(r, 100),
	}

	if v := q.Get("sensor_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid sensor_id")
			return
		}
		f.SensorID = &id
	}
	if v := q.Get("acknowledged"); v != "" {
		acked := v == "true" || v == "1"
		f.Acknowledged = &acked
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Offset = n
		}
	}
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to := h.arch.ParseTimeRange(q.Get("from"), q.Get("to"))
		f.From, f.To = &from, &to
	}

	list, total := h.arch.Events(f)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": list,
		"total":  total,
	})
}

// AcknowledgeRequest is the body of the acknowledge endpoint.
type AcknowledgeRequest struct {
	User string `json:"user"`
}

// Acknowledge handles POST /api/archive/events/{id}/acknowledge
func (h *ArchiveHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req AcknowledgeRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.User == "" {
		req.User = requestUser(r)
	}

	event, err := h.arch.Acknowledge(id, req.User)
	if err != nil {
		if errors.Is(err, archive.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.eventStore.Add(events.EventEventAcknowledge, storage.EmulatorArchive, req.User, true, strconv.Itoa(id))
	writeJSON(w, http.StatusOK, event)
}

// Export handles GET /api/archive/export?sensor_id&from&to&format=json|csv
func (h *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sensorID, err := strconv.Atoi(q.Get("sensor_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "sensor_id is required")
		return
	}

	if q.Get("format") == "csv" {
		data, err := h.arch.ExportCSV(sensorID, q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=sensor_%d.csv", sensorID))
		w.Write(data)
		return
	}

	res, err := h.arch.Query(sensorID, q.Get("from"), q.Get("to"), archive.ResolutionMinute)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Config handles GET /api/archive/config
func (h *ArchiveHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.arch.Config())
}

// UpdateConfig handles POST /api/archive/config
func (h *ArchiveHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	patch, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := h.arch.UpdateConfig(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	persistConfig(h.settings, storage.EmulatorArchive, cfg)
	h.eventStore.Add(events.EventConfigUpdate, storage.EmulatorArchive, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, cfg)
}

// Regenerate handles POST /api/archive/regenerate
func (h *ArchiveHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.arch.Regenerate()
	h.eventStore.Add(events.EventArchiveRebuild, storage.EmulatorArchive, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// CleanupRequest is the body of POST /api/archive/cleanup
type CleanupRequest struct {
	DaysToKeep int `json:"days_to_keep"`
}

// Cleanup handles POST /api/archive/cleanup
func (h *ArchiveHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DaysToKeep <= 0 {
		writeError(w, http.StatusBadRequest, "days_to_keep must be positive")
		return
	}
	result := h.arch.Cleanup(req.DaysToKeep)
	h.eventStore.Add(events.EventArchiveCleanup, storage.EmulatorArchive, requestUser(r), true, "")
	writeJSON(w, http.StatusOK, result)
}
