package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fieldmock/internal/archive"
	"fieldmock/internal/auth"
	"fieldmock/internal/config"
	"fieldmock/internal/current"
	"fieldmock/internal/events"
	"fieldmock/internal/modbus"
	"fieldmock/internal/scenario"
	"fieldmock/internal/storage"
)

// Server represents the API server
type Server struct {
	router       *chi.Mux
	registry     *scenario.Registry
	modbusEm     *modbus.Emulator
	currentGen   *current.Generator
	archiveEm    *archive.Archive
	credAuth     *auth.CredentialsAuth
	jwtManager   *auth.JWTManager
	authMw       *auth.Middleware
	wsTokenStore *auth.WSTokenStore
	eventStore   *events.Store
	settings     storage.Settings
	hub          *LiveHub
	config       *config.Config
	logger       *zap.SugaredLogger
}

// NewServer creates new API server wiring the three emulators behind
// one router. The hub must already be registered as a sink on the
// poller generator.
func NewServer(cfg *config.Config, registry *scenario.Registry, modbusEm *modbus.Emulator, currentGen *current.Generator, archiveEm *archive.Archive, eventStore *events.Store, settings storage.Settings, hub *LiveHub, logger *zap.SugaredLogger) *Server {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret(), cfg.JWTExpiration())

	s := &Server{
		router:       chi.NewRouter(),
		registry:     registry,
		modbusEm:     modbusEm,
		currentGen:   currentGen,
		archiveEm:    archiveEm,
		credAuth:     auth.NewCredentialsAuth(cfg.Username(), cfg.Password()),
		jwtManager:   jwtManager,
		authMw:       auth.NewMiddleware(jwtManager, false),
		wsTokenStore: auth.NewWSTokenStore(),
		eventStore:   eventStore,
		settings:     settings,
		hub:          hub,
		config:       cfg,
		logger:       logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Create handlers
	authHandler := NewAuthHandler(s.credAuth, s.jwtManager, s.wsTokenStore, s.eventStore)
	harnessHandler := NewHarnessHandler(s.registry, s.modbusEm, s.currentGen, s.archiveEm, s.eventStore, s.settings)
	modbusHandler := NewModbusHandler(s.modbusEm, s.eventStore, s.settings)
	currentHandler := NewCurrentHandler(s.currentGen, s.eventStore, s.settings)
	archiveHandler := NewArchiveHandler(s.archiveEm, s.eventStore, s.settings)
	eventsHandler := NewEventsHandler(s.eventStore)
	liveHandler := NewLiveHandler(s.hub, s.wsTokenStore, s.config.NoAuth(), s.logger)

	// Public routes
	r.Post("/api/auth/login", authHandler.Login)

	// WebSocket stream authenticates itself via one-time ws_token
	r.Get("/api/live", liveHandler.Connect)

	// Protected API routes
	r.Group(func(r chi.Router) {
		// Apply auth middleware only if NoAuth is false
		if !s.config.NoAuth() {
			r.Use(s.authMw.RequireAuth)
		} else {
			// In no-auth mode, inject a fake dev user
			r.Use(s.fakeAuthMiddleware)
		}

		// Auth
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/auth/ws-token", authHandler.WSToken)

		// Harness-wide control
		r.Get("/api/status", harnessHandler.Status)
		r.Post("/api/start_all", harnessHandler.StartAll)
		r.Post("/api/stop_all", harnessHandler.StopAll)
		r.Get("/api/scenarios", harnessHandler.Scenarios)
		r.Post("/api/set_scenario_all", harnessHandler.SetScenarioAll)
		r.Get("/api/config", harnessHandler.Config)
		r.Post("/api/config", harnessHandler.UpdateConfig)

		// Audit log
		r.Get("/api/events", eventsHandler.List)

		// Register-protocol emulator
		r.Get("/api/modbus/status", modbusHandler.Status)
		r.Post("/api/modbus/start", modbusHandler.Start)
		r.Post("/api/modbus/stop", modbusHandler.Stop)
		r.Get("/api/modbus/registers", modbusHandler.Registers)
		r.Post("/api/modbus/registers", modbusHandler.WriteRegister)
		r.Get("/api/modbus/config", modbusHandler.Config)
		r.Post("/api/modbus/config", modbusHandler.UpdateConfig)
		r.Post("/api/modbus/set_scenario", modbusHandler.SetScenario)
		r.Get("/api/modbus/log", modbusHandler.Log)
		r.Post("/api/modbus/log/clear", modbusHandler.ClearLog)

		// Poller-output generator
		r.Get("/api/current/status", currentHandler.Status)
		r.Post("/api/current/start", currentHandler.Start)
		r.Post("/api/current/stop", currentHandler.Stop)
		r.Post("/api/current/generate", currentHandler.Generate)
		r.Get("/api/current/preview", currentHandler.Preview)
		r.Get("/api/current/config", currentHandler.Config)
		r.Post("/api/current/config", currentHandler.UpdateConfig)
		r.Post("/api/current/set_scenario", currentHandler.SetScenario)
		r.Post("/api/current/set_sensor", currentHandler.SetSensor)
		r.Get("/api/current/modbus_log", currentHandler.ModbusLog)

		// Archive emulator
		r.Get("/api/archive/status", archiveHandler.Status)
		r.Post("/api/archive/start", archiveHandler.Start)
		r.Post("/api/archive/stop", archiveHandler.Stop)
		r.Get("/api/archive/query", archiveHandler.Query)
		r.Get("/api/archive/events", archiveHandler.Events)
		r.Post("/api/archive/events/{id}/acknowledge", archiveHandler.Acknowledge)
		r.Get("/api/archive/export", archiveHandler.Export)
		r.Get("/api/archive/config", archiveHandler.Config)
		r.Post("/api/archive/config", archiveHandler.UpdateConfig)
		r.Post("/api/archive/regenerate", archiveHandler.Regenerate)
		r.Post("/api/archive/cleanup", archiveHandler.Cleanup)
	})
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// fakeAuthMiddleware injects a fake dev user for no-auth mode
func (s *Server) fakeAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fakeUser := &auth.User{
			Username: "dev",
		}
		ctx := auth.SetUserContext(r.Context(), fakeUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
