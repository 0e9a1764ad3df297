package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldmock/internal/archive"
	"fieldmock/internal/config"
	"fieldmock/internal/current"
	"fieldmock/internal/events"
	"fieldmock/internal/modbus"
	"fieldmock/internal/scenario"
	"fieldmock/internal/storage"
)

type testHarness struct {
	server   *Server
	settings *storage.BoltSettings
	events   *events.Store
}

func newTestHarness(t *testing.T, noAuth bool) *testHarness {
	t.Helper()
	dir := t.TempDir()

	envLines := []string{config.EnvUsername + "=admin", config.EnvPassword + "=secret"}
	if !noAuth {
		envLines = append(envLines, config.EnvNoAuth+"=false")
	}
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(strings.Join(envLines, "\n")+"\n"), 0600))
	cfg, err := config.Load(envPath)
	require.NoError(t, err)

	logger := zap.NewNop().Sugar()
	registry := scenario.NewRegistry()

	modbusCfg := modbus.DefaultConfig()
	modbusCfg.SensorCount = 3
	modbusEm := modbus.NewEmulator(modbusCfg, registry, logger)

	currentCfg := current.DefaultConfig()
	currentCfg.SensorCount = 3
	currentGen := current.NewGenerator(currentCfg, registry, dir, logger)

	archiveCfg := archive.DefaultConfig()
	archiveCfg.SensorCount = 2
	archiveCfg.HistoryDays = 1
	archiveCfg.DataResolutionMS = 600000
	archiveEm := archive.New(archiveCfg, logger)

	eventStore := events.NewStore(100)
	settings, err := storage.NewBoltSettings(filepath.Join(dir, "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { settings.Close() })

	hub := NewLiveHub(logger)
	currentGen.AddSink(hub)

	srv := NewServer(cfg, registry, modbusEm, currentGen, archiveEm, eventStore, settings, hub, logger)
	return &testHarness{server: srv, settings: settings, events: eventStore}
}

func (h *testHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	decodeBody(t, rec, &body)
	assert.Contains(t, body, "modbus")
	assert.Contains(t, body, "current")
	assert.Contains(t, body, "archive")
}

func TestScenariosEndpoint(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Scenarios []scenario.Info `json:"scenarios"`
	}
	decodeBody(t, rec, &body)
	assert.Len(t, body.Scenarios, 14)
	for _, info := range body.Scenarios {
		assert.NotEmpty(t, info.Description, info.Name)
	}
}

func TestSetScenarioAll(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodPost, "/api/set_scenario_all", SetScenarioRequest{Scenario: "sine"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Persisted for both emulators.
	got, err := h.settings.Scenario(storage.EmulatorModbus)
	require.NoError(t, err)
	assert.Equal(t, "sine", got)
	got, err = h.settings.Scenario(storage.EmulatorCurrent)
	require.NoError(t, err)
	assert.Equal(t, "sine", got)

	rec = h.do(t, http.MethodPost, "/api/set_scenario_all", SetScenarioRequest{Scenario: "no_such"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody map[string]string
	decodeBody(t, rec, &errBody)
	assert.Contains(t, errBody["error"], "no_such")
}

func TestModbusConfigEndpoints(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodGet, "/api/modbus/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg modbus.Config
	decodeBody(t, rec, &cfg)
	assert.Equal(t, 3, cfg.SensorCount)

	rec = h.do(t, http.MethodPost, "/api/modbus/config", map[string]int{"sensor_count": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &cfg)
	assert.Equal(t, 5, cfg.SensorCount)
	assert.Equal(t, 5020, cfg.Port, "absent fields keep their values")

	// Full effective config is persisted as the override.
	data, err := h.settings.Override(storage.EmulatorModbus)
	require.NoError(t, err)
	var saved modbus.Config
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 5, saved.SensorCount)
}

func TestModbusRegistersAndLog(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodGet, "/api/modbus/registers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Registers []modbus.RegisterView `json:"registers"`
	}
	decodeBody(t, rec, &body)
	assert.Len(t, body.Registers, 12) // 3 sensors x 4 registers

	rec = h.do(t, http.MethodPost, "/api/modbus/registers", WriteRegisterRequest{Addr: 30000, Value: 305})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/modbus/log?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/modbus/log/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCurrentPreviewAndGenerate(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodGet, "/api/current/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc current.Document
	decodeBody(t, rec, &doc)
	assert.Len(t, doc.Sensors, 3)
	assert.Equal(t, "fieldmock", doc.Mock.Generator)

	rec = h.do(t, http.MethodPost, "/api/current/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &doc)
	assert.Equal(t, 3, doc.PollStats.Total)
}

func TestCurrentSetSensor(t *testing.T) {
	h := newTestHarness(t, true)

	temp := 55.0
	rec := h.do(t, http.MethodPost, "/api/current/set_sensor", SetSensorRequest{SensorID: 1, Temperature: &temp})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/current/set_sensor", SetSensorRequest{SensorID: 99, Temperature: &temp})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveQueryAndExport(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodGet, "/api/archive/query?sensor_id=1&resolution=hour", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res archive.QueryResult
	decodeBody(t, rec, &res)
	assert.Equal(t, "hour", res.Resolution)
	assert.NotZero(t, res.Count)

	rec = h.do(t, http.MethodGet, "/api/archive/query?sensor_id=99", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/archive/query", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/archive/export?sensor_id=1&format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=sensor_1.csv", rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "timestamp,temperature,humidity,status"))
}

func TestArchiveAcknowledge(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodGet, "/api/archive/events?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Events []archive.Event `json:"events"`
		Total  int             `json:"total"`
	}
	decodeBody(t, rec, &listing)
	require.NotEmpty(t, listing.Events)

	id := listing.Events[0].ID
	rec = h.do(t, http.MethodPost, "/api/archive/events/"+strconv.Itoa(id)+"/acknowledge", AcknowledgeRequest{User: "tester"})
	require.Equal(t, http.StatusOK, rec.Code)
	var event archive.Event
	decodeBody(t, rec, &event)
	assert.True(t, event.Acknowledged)
	assert.Equal(t, "tester", event.AcknowledgedBy)

	rec = h.do(t, http.MethodPost, "/api/archive/events/999999/acknowledge", AcknowledgeRequest{User: "tester"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveCleanup(t *testing.T) {
	h := newTestHarness(t, true)

	rec := h.do(t, http.MethodPost, "/api/archive/cleanup", CleanupRequest{DaysToKeep: 7})
	require.Equal(t, http.StatusOK, rec.Code)
	var res archive.CleanupResult
	decodeBody(t, rec, &res)
	assert.True(t, res.Simulated)
	assert.Zero(t, res.Deleted)

	rec = h.do(t, http.MethodPost, "/api/archive/cleanup", CleanupRequest{DaysToKeep: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditEvents(t *testing.T) {
	h := newTestHarness(t, true)

	h.do(t, http.MethodPost, "/api/current/set_scenario", SetScenarioRequest{Scenario: "offline"})

	rec := h.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Events []events.Event `json:"events"`
		LastID int64          `json:"lastId"`
	}
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body.Events)
	// Newest first.
	last := body.Events[0]
	assert.Equal(t, events.EventScenarioChange, last.Type)
	assert.Equal(t, "dev", last.Username)
}

func TestAuthRequired(t *testing.T) {
	h := newTestHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "admin", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login LoginResponse
	decodeBody(t, rec, &login)
	require.True(t, login.Success)
	require.NotEmpty(t, login.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	authed := httptest.NewRecorder()
	h.server.Router().ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)
}
