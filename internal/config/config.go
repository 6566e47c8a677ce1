// Package config handles loading, validation and persistence of the
// eolink workbench configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 8078
	DefaultMQTTPort   = 1883
)

// Capture directions. They select which Session decode path imported
// packets go through.
const (
	DirectionClient = "client" // packets sent by a client, carrying a sequence
	DirectionServer = "server" // packets sent by a server
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Codec           CodecConfig     `json:"codec"`
	ApplicationData ApplicationData `json:"application_data"`
}

// CodecConfig holds the defaults applied to new capture sessions and to
// one-off codec calls from the CLI and API.
type CodecConfig struct {
	SendMultiple       int    `json:"send_multiple"`
	RecvMultiple       int    `json:"recv_multiple"`
	SequenceStart      int    `json:"sequence_start"`
	StringSanitization bool   `json:"string_sanitization"`
	Direction          string `json:"capture_direction"`
	StrictSequence     bool   `json:"strict_sequence"`
}

// ApplicationData contains workbench application configuration.
type ApplicationData struct {
	API      APIConfig      `json:"api"`
	Capture  CaptureConfig  `json:"capture"`
	Timers   TimerConfig    `json:"timers"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

// APIConfig holds the inspector REST API settings.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// CaptureConfig holds the capture store settings.
type CaptureConfig struct {
	DatabasePath         string `json:"database_path"`
	RetentionDays        int    `json:"retention_days"`
	CleanupTime          string `json:"cleanup_time"`
	MaxPacketsPerSession int    `json:"max_packets_per_session"`
}

// TimerConfig holds background task intervals.
type TimerConfig struct {
	StatsInterval     int `json:"stats_interval_sec"`
	HeartbeatInterval int `json:"heartbeat_interval_sec"`
	DiskCheckInterval int `json:"disk_check_interval_sec"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	APIToken       string   `json:"api_token"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `json:"level"`
	Directory   string `json:"directory"`
	MaxBackups  int    `json:"max_backups"`
	Console     bool   `json:"console"`
	JSONConsole bool   `json:"json_console"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Codec: CodecConfig{
			SendMultiple:       0,
			RecvMultiple:       0,
			SequenceStart:      0,
			StringSanitization: true,
			Direction:          DirectionClient,
			StrictSequence:     false,
		},
		ApplicationData: ApplicationData{
			API: APIConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    DefaultAPIPort,
			},
			Capture: CaptureConfig{
				DatabasePath:         filepath.Join("data", "captures.db"),
				RetentionDays:        14,
				CleanupTime:          "04:00",
				MaxPacketsPerSession: 100000,
			},
			Timers: TimerConfig{
				StatsInterval:     60,
				HeartbeatInterval: 60,
				DiskCheckInterval: 3600,
			},
			MQTT: MQTTConfig{
				Enabled:     false,
				BrokerURL:   "localhost",
				Port:        DefaultMQTTPort,
				TopicPrefix: "eolink",
			},
			Security: SecurityConfig{
				AllowedOrigins: []string{"http://localhost:3000"},
				RateLimitRPS:   50,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 7,
				Console:    true,
			},
		},
	}
}

// Load reads configuration from configDir, writing a default file when
// none exists yet. The second return value reports whether the file was
// created by this call.
func Load(configDir string) (*Config, bool, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	raw, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, false, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Defaults first so fields missing from older files keep their values.
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, false, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}
	return cfg, false, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetCodec returns a copy of the codec defaults.
func (c *Config) GetCodec() CodecConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Codec
}

// SetCodec replaces the codec defaults.
func (c *Config) SetCodec(codec CodecConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Codec = codec
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(app ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = app
}

// UpdateCodecField sets one codec field by its JSON key.
func (c *Config) UpdateCodecField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateField(&c.Codec, key, value)
}

// UpdateAppField sets one top-level application field by its JSON key.
func (c *Config) UpdateAppField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateField(&c.ApplicationData, key, value)
}

// updateField round-trips target through a JSON object so any field can
// be addressed by its tag. Unknown keys are rejected.
func updateField(target interface{}, key string, value interface{}) error {
	current, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(current, &m); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("unknown config field %q", key)
	}
	m[key] = value

	updated, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}
	if err := json.Unmarshal(updated, target); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}
