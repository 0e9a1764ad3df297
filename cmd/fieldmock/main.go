package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fieldmock/internal/api"
	"fieldmock/internal/archive"
	"fieldmock/internal/config"
	"fieldmock/internal/current"
	"fieldmock/internal/events"
	"fieldmock/internal/logging"
	"fieldmock/internal/modbus"
	"fieldmock/internal/mqtt"
	"fieldmock/internal/scenario"
	"fieldmock/internal/storage"
)

func main() {
	// Command line flags
	envPath := flag.String("env", ".env", "Path to .env configuration file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	noAuth := flag.Bool("no-auth", false, "Disable authentication")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		if err := cfg.SetAddr(*addr); err != nil {
			log.Fatalf("Invalid address: %v", err)
		}
	}
	if *noAuth {
		cfg.SetNoAuth(true)
	}

	logger, err := logging.New(cfg.LogLevel(), "console")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		logger.Fatalw("failed to create data dir", "dir", cfg.DataDir(), "error", err)
	}

	settings, err := storage.NewBoltSettings(cfg.DBPath())
	if err != nil {
		logger.Fatalw("failed to open settings store", "path", cfg.DBPath(), "error", err)
	}
	defer settings.Close()

	registry := scenario.NewRegistry()
	eventStore := events.NewStore(100)

	modbusCfg := modbus.DefaultConfig()
	modbusCfg.Port = cfg.ModbusPort()
	modbusEm := modbus.NewEmulator(modbusCfg, registry, logger)

	currentGen := current.NewGenerator(current.DefaultConfig(), registry, cfg.DataDir(), logger)
	archiveEm := archive.New(archive.DefaultConfig(), logger)

	applySavedSettings(settings, modbusEm, currentGen, archiveEm, logger)

	hub := api.NewLiveHub(logger)
	currentGen.AddSink(hub)

	// Optional MQTT fan-out
	var mqttClient *mqtt.Client
	if cfg.MQTTBroker() != "" {
		mqttClient, err = mqtt.New(mqtt.Config{
			Broker:   cfg.MQTTBroker(),
			ClientID: cfg.MQTTClientID(),
			Username: cfg.MQTTUsername(),
			Password: cfg.MQTTPassword(),
			Prefix:   cfg.MQTTPrefix(),
			UseTLS:   cfg.MQTTUseTLS(),
		}, logger)
		if err != nil {
			logger.Fatalw("failed to create mqtt client", "error", err)
		}
		if err := mqttClient.Connect(); err != nil {
			logger.Warnw("mqtt connect failed, continuing without broker", "error", err)
		} else {
			publisher := mqtt.NewPublisher(mqttClient, logger)
			publisher.PublishAvailability(true)
			currentGen.AddSink(publisher)
			defer func() {
				publisher.PublishAvailability(false)
				mqttClient.Disconnect()
			}()
		}
	}

	// Start all emulators
	if err := modbusEm.Start(); err != nil {
		logger.Errorw("register emulator failed to start", "error", err)
	}
	if err := currentGen.Start(); err != nil {
		logger.Errorw("poller generator failed to start", "error", err)
	}
	archiveEm.Start()
	defer func() {
		modbusEm.Stop()
		currentGen.Stop()
		archiveEm.Stop()
	}()

	server := api.NewServer(cfg, registry, modbusEm, currentGen, archiveEm, eventStore, settings, hub, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		fmt.Printf("fieldmock listening on %s (modbus on :%d)\n", cfg.Addr(), cfg.ModbusPort())
		if cfg.NoAuth() {
			fmt.Println("WARNING: Authentication is DISABLED!")
		}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http shutdown", "error", err)
	}
}

// applySavedSettings replays the operator's persisted choices: config
// overrides first, then scenario selections on top.
func applySavedSettings(settings storage.Settings, modbusEm *modbus.Emulator, currentGen *current.Generator, archiveEm *archive.Archive, logger *zap.SugaredLogger) {
	type target struct {
		name         string
		updateConfig func([]byte) error
		setScenario  func(string) error
	}

	targets := []target{
		{
			name: storage.EmulatorModbus,
			updateConfig: func(patch []byte) error {
				_, err := modbusEm.UpdateConfig(patch)
				return err
			},
			setScenario: modbusEm.SetScenario,
		},
		{
			name: storage.EmulatorCurrent,
			updateConfig: func(patch []byte) error {
				_, err := currentGen.UpdateConfig(patch)
				return err
			},
			setScenario: currentGen.SetScenario,
		},
		{
			name: storage.EmulatorArchive,
			updateConfig: func(patch []byte) error {
				_, err := archiveEm.UpdateConfig(patch)
				return err
			},
			setScenario: nil, // archive has no live scenario
		},
	}

	for _, tg := range targets {
		if patch, err := settings.Override(tg.name); err == nil {
			if err := tg.updateConfig(patch); err != nil {
				logger.Warnw("failed to apply saved config", "emulator", tg.name, "error", err)
			}
		}
		if tg.setScenario == nil {
			continue
		}
		if name, err := settings.Scenario(tg.name); err == nil {
			if err := tg.setScenario(name); err != nil {
				logger.Warnw("failed to apply saved scenario", "emulator", tg.name, "error", err)
			}
		}
	}
}
