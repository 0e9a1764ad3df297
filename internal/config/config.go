package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment variable names
const (
	EnvAddr          = "FIELDMOCK_ADDR"
	EnvDataDir       = "FIELDMOCK_DATA_DIR"
	EnvDBPath        = "FIELDMOCK_DB_PATH"
	EnvModbusPort    = "FIELDMOCK_MODBUS_PORT"
	EnvJWTSecret     = "FIELDMOCK_JWT_SECRET"
	EnvJWTExpiration = "FIELDMOCK_JWT_EXPIRATION"
	EnvNoAuth        = "FIELDMOCK_NO_AUTH"
	EnvUsername      = "FIELDMOCK_USERNAME"
	EnvPassword      = "FIELDMOCK_PASSWORD"
	EnvLogLevel      = "FIELDMOCK_LOG_LEVEL"
	// MQTT settings
	EnvMQTTBroker   = "FIELDMOCK_MQTT_BROKER"
	EnvMQTTClientID = "FIELDMOCK_MQTT_CLIENT_ID"
	EnvMQTTUsername = "FIELDMOCK_MQTT_USERNAME"
	EnvMQTTPassword = "FIELDMOCK_MQTT_PASSWORD"
	EnvMQTTPrefix   = "FIELDMOCK_MQTT_PREFIX"
	EnvMQTTUseTLS   = "FIELDMOCK_MQTT_USE_TLS"
)

// Default values
const (
	DefaultAddr          = ":8000"
	DefaultDataDir       = "./data"
	DefaultDBPath        = "./fieldmock.db"
	DefaultModbusPort    = 5020
	DefaultJWTExpiration = 24 * time.Hour
	DefaultNoAuth        = true
	DefaultUsername      = "admin"
	DefaultPassword      = "admin"
	DefaultLogLevel      = "info"
	// MQTT defaults
	DefaultMQTTBroker   = ""
	DefaultMQTTClientID = "fieldmock"
	DefaultMQTTPrefix   = "fieldmock"
	DefaultMQTTUseTLS   = false
)

// Config holds all process configuration.
// All access should be through getter methods for thread safety.
type Config struct {
	mu       sync.RWMutex
	filePath string
	dirty    bool // tracks if config was modified

	// Server settings
	addr       string
	dataDir    string
	dbPath     string
	modbusPort int
	logLevel   string

	// Security settings
	jwtSecret     string
	jwtExpiration time.Duration
	noAuth        bool
	username      string
	password      string

	// MQTT settings
	mqttBroker   string
	mqttClientID string
	mqttUsername string
	mqttPassword string
	mqttPrefix   string
	mqttUseTLS   bool
}

// Load loads configuration from .env file or creates it with defaults.
// This is the main entry point for configuration initialization.
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		filePath: filePath,
	}

	// Set defaults first
	cfg.setDefaults()

	// Try to load existing file
	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		// File doesn't exist - will be created with defaults
		cfg.dirty = true
	}

	// Generate JWT secret if empty
	if cfg.jwtSecret == "" {
		secret, err := generateSecureSecret(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.jwtSecret = secret
		cfg.dirty = true
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Save if config was modified (new file or generated secret)
	if cfg.dirty {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	return cfg, nil
}

// setDefaults initializes all fields with default values.
func (c *Config) setDefaults() {
	c.addr = DefaultAddr
	c.dataDir = DefaultDataDir
	c.dbPath = DefaultDBPath
	c.modbusPort = DefaultModbusPort
	c.logLevel = DefaultLogLevel
	c.jwtSecret = ""
	c.jwtExpiration = DefaultJWTExpiration
	c.noAuth = DefaultNoAuth
	c.username = DefaultUsername
	c.password = DefaultPassword
	// MQTT defaults
	c.mqttBroker = DefaultMQTTBroker
	c.mqttClientID = DefaultMQTTClientID
	c.mqttUsername = ""
	c.mqttPassword = ""
	c.mqttPrefix = DefaultMQTTPrefix
	c.mqttUseTLS = DefaultMQTTUseTLS
}

// loadFromFile reads configuration from .env file.
func (c *Config) loadFromFile() error {
	file, err := os.Open(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	values, err := ParseEnvFile(file)
	if err != nil {
		return err
	}

	c.applyValues(values)
	return nil
}

// applyValues applies parsed key-value pairs to config.
func (c *Config) applyValues(values map[string]string) {
	if v, ok := values[EnvAddr]; ok && v != "" {
		c.addr = v
	}

	if v, ok := values[EnvDataDir]; ok && v != "" {
		c.dataDir = v
	}

	if v, ok := values[EnvDBPath]; ok && v != "" {
		c.dbPath = v
	}

	if v, ok := values[EnvModbusPort]; ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.modbusPort = port
		}
	}

	if v, ok := values[EnvLogLevel]; ok && v != "" {
		c.logLevel = v
	}

	if v, ok := values[EnvJWTSecret]; ok && v != "" {
		c.jwtSecret = v
	}

	if v, ok := values[EnvJWTExpiration]; ok && v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			c.jwtExpiration = time.Duration(seconds) * time.Second
		}
	}

	if v, ok := values[EnvNoAuth]; ok {
		c.noAuth = parseBool(v)
	}

	if v, ok := values[EnvUsername]; ok && v != "" {
		c.username = v
	}

	if v, ok := values[EnvPassword]; ok && v != "" {
		c.password = v
	}

	// MQTT settings
	if v, ok := values[EnvMQTTBroker]; ok {
		c.mqttBroker = v
	}
	if v, ok := values[EnvMQTTClientID]; ok && v != "" {
		c.mqttClientID = v
	}
	if v, ok := values[EnvMQTTUsername]; ok {
		c.mqttUsername = v
	}
	if v, ok := values[EnvMQTTPassword]; ok {
		c.mqttPassword = v
	}
	if v, ok := values[EnvMQTTPrefix]; ok && v != "" {
		c.mqttPrefix = v
	}
	if v, ok := values[EnvMQTTUseTLS]; ok {
		c.mqttUseTLS = parseBool(v)
	}
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	// Validate server address
	if c.addr == "" {
		return errors.New("server address cannot be empty")
	}

	// Check if address format is valid
	host, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		// Try with default host
		if _, err := strconv.Atoi(strings.TrimPrefix(c.addr, ":")); err != nil {
			return fmt.Errorf("invalid server address format: %s", c.addr)
		}
	} else {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 1 || portNum > 65535 {
			return fmt.Errorf("invalid port number: %s", port)
		}
		_ = host // host can be empty (bind to all interfaces)
	}

	if c.modbusPort < 1 || c.modbusPort > 65535 {
		return fmt.Errorf("invalid modbus port: %d", c.modbusPort)
	}

	if c.dataDir == "" {
		return errors.New("data directory cannot be empty")
	}

	// Validate JWT expiration
	if c.jwtExpiration < time.Minute {
		return errors.New("JWT expiration must be at least 1 minute")
	}
	if c.jwtExpiration > 365*24*time.Hour {
		return errors.New("JWT expiration cannot exceed 1 year")
	}

	if !c.noAuth && (c.username == "" || c.password == "") {
		return errors.New("credentials required when auth is enabled")
	}

	return nil
}

// Save writes current configuration to .env file.
func (c *Config) Save() error {
	c.mu.RLock()
	values := c.toMap()
	filePath := c.filePath
	c.mu.RUnlock()

	if err := WriteEnvFile(filePath, values); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	return nil
}

// toMap converts config to key-value map for saving.
func (c *Config) toMap() map[string]string {
	return map[string]string{
		EnvAddr:          c.addr,
		EnvDataDir:       c.dataDir,
		EnvDBPath:        c.dbPath,
		EnvModbusPort:    strconv.Itoa(c.modbusPort),
		EnvLogLevel:      c.logLevel,
		EnvJWTSecret:     c.jwtSecret,
		EnvJWTExpiration: strconv.Itoa(int(c.jwtExpiration.Seconds())),
		EnvNoAuth:        strconv.FormatBool(c.noAuth),
		EnvUsername:      c.username,
		EnvPassword:      c.password,
		// MQTT settings
		EnvMQTTBroker:   c.mqttBroker,
		EnvMQTTClientID: c.mqttClientID,
		EnvMQTTUsername: c.mqttUsername,
		EnvMQTTPassword: c.mqttPassword,
		EnvMQTTPrefix:   c.mqttPrefix,
		EnvMQTTUseTLS:   strconv.FormatBool(c.mqttUseTLS),
	}
}

// Getters (thread-safe)

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// DataDir returns the directory poller output files are written to.
func (c *Config) DataDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataDir
}

// DBPath returns the settings database path.
func (c *Config) DBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dbPath
}

// ModbusPort returns the Modbus TCP listener port.
func (c *Config) ModbusPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modbusPort
}

// LogLevel returns the logging level name.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logLevel
}

// JWTSecret returns the JWT secret key.
func (c *Config) JWTSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtSecret
}

// JWTExpiration returns the JWT token expiration duration.
func (c *Config) JWTExpiration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtExpiration
}

// NoAuth returns whether authentication is disabled.
func (c *Config) NoAuth() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noAuth
}

// Username returns the configured operator username.
func (c *Config) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Password returns the configured operator password.
func (c *Config) Password() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.password
}

// FilePath returns the path to the .env file.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// MQTT Getters

// MQTTBroker returns the MQTT broker address.
func (c *Config) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttBroker
}

// MQTTClientID returns the MQTT client ID.
func (c *Config) MQTTClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttClientID
}

// MQTTUsername returns the MQTT username.
func (c *Config) MQTTUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUsername
}

// MQTTPassword returns the MQTT password.
func (c *Config) MQTTPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPassword
}

// MQTTPrefix returns the MQTT topic prefix.
func (c *Config) MQTTPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPrefix
}

// MQTTUseTLS returns whether TLS is enabled for MQTT.
func (c *Config) MQTTUseTLS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUseTLS
}

// Setters (thread-safe, auto-save)

// SetAddr sets the server address and saves to file.
func (c *Config) SetAddr(addr string) error {
	c.mu.Lock()
	c.addr = addr
	c.dirty = true
	c.mu.Unlock()

	if err := c.validate(); err != nil {
		return err
	}
	return c.Save()
}

// SetNoAuth sets the no-auth flag and saves to file.
func (c *Config) SetNoAuth(noAuth bool) error {
	c.mu.Lock()
	c.noAuth = noAuth
	c.dirty = true
	c.mu.Unlock()

	if err := c.validate(); err != nil {
		return err
	}
	return c.Save()
}

// Helper functions

// generateSecureSecret generates a cryptographically secure random hex string.
func generateSecureSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no (case-insensitive)
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// Reload reloads configuration from file.
// Useful for hot-reloading configuration.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Save current JWT secret in case file doesn't have one
	currentSecret := c.jwtSecret

	// Reset to defaults
	c.setDefaults()

	// Load from file
	if err := c.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	// Restore JWT secret if not in file
	if c.jwtSecret == "" {
		c.jwtSecret = currentSecret
	}

	return c.validate()
}

// String returns a string representation of the config (without secrets).
func (c *Config) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	secretDisplay := "[not set]"
	if c.jwtSecret != "" {
		secretDisplay = "[set]"
	}

	return fmt.Sprintf(
		"Config{Addr: %q, DataDir: %q, ModbusPort: %d, JWTSecret: %s, NoAuth: %v}",
		c.addr, c.dataDir, c.modbusPort, secretDisplay, c.noAuth,
	)
}
