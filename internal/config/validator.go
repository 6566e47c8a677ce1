package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the whole configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	validateCodec(&cfg.Codec, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateCodec(codec *CodecConfig, result *ValidationResult) {
	validateMultiple(codec.SendMultiple, "codec.send_multiple", result)
	validateMultiple(codec.RecvMultiple, "codec.recv_multiple", result)

	if codec.SequenceStart < 0 || codec.SequenceStart >= data.ShortMax {
		result.AddError("codec.sequence_start",
			fmt.Sprintf("sequence start %d does not fit a short", codec.SequenceStart))
	} else if codec.SequenceStart > data.CharMax-10 {
		result.AddWarning("codec.sequence_start",
			fmt.Sprintf("sequence start %d is above what a server would generate (%d)", codec.SequenceStart, data.CharMax-10))
	}

	switch codec.Direction {
	case DirectionClient, DirectionServer:
	default:
		result.AddError("codec.capture_direction",
			fmt.Sprintf("unknown direction %q (want %q or %q)", codec.Direction, DirectionClient, DirectionServer))
	}
}

func validateMultiple(m int, field string, result *ValidationResult) {
	if m < 0 || m >= data.CharMax {
		result.AddError(field, fmt.Sprintf("swap multiple %d must be in 0..%d", m, data.CharMax-1))
		return
	}
	if m != 0 && (m < encrypt.MinSwapMultiple || m > encrypt.MaxSwapMultiple) {
		result.AddWarning(field,
			fmt.Sprintf("swap multiple %d is outside the range servers hand out (%d-%d)",
				m, encrypt.MinSwapMultiple, encrypt.MaxSwapMultiple))
	}
}

func validateApplicationData(app *ApplicationData, result *ValidationResult) {
	if app.API.Enabled {
		validatePort(app.API.Port, "application_data.api.port", result)
		if app.API.Host != "" && app.API.Host != "localhost" && net.ParseIP(app.API.Host) == nil {
			result.AddError("application_data.api.host", fmt.Sprintf("invalid listen address %q", app.API.Host))
		}
	}

	if strings.TrimSpace(app.Capture.DatabasePath) == "" {
		result.AddError("application_data.capture.database_path", "capture database path is required")
	}
	if app.Capture.RetentionDays < 0 {
		result.AddError("application_data.capture.retention_days", "retention days cannot be negative")
	} else if app.Capture.RetentionDays == 0 {
		result.AddWarning("application_data.capture.retention_days", "captures are kept forever")
	}
	if _, err := time.Parse("15:04", app.Capture.CleanupTime); err != nil {
		result.AddError("application_data.capture.cleanup_time",
			fmt.Sprintf("cleanup time %q is not HH:MM", app.Capture.CleanupTime))
	}
	if app.Capture.MaxPacketsPerSession < 1 {
		result.AddError("application_data.capture.max_packets_per_session", "must allow at least 1 packet")
	}

	validateTimers(&app.Timers, result)

	if app.MQTT.Enabled {
		if strings.TrimSpace(app.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if app.MQTT.Port < 1 || app.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
		if strings.TrimSpace(app.MQTT.TopicPrefix) == "" {
			result.AddWarning("application_data.mqtt.topic_prefix", "empty topic prefix, topics will start with '/'")
		}
	}

	if app.Security.TLSEnabled {
		if strings.TrimSpace(app.Security.TLSCertFile) == "" {
			result.AddError("application_data.security.tls_cert_file",
				"TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(app.Security.TLSKeyFile) == "" {
			result.AddError("application_data.security.tls_key_file",
				"TLS key file is required when TLS is enabled")
		}
	}

	if app.Security.RateLimitRPS < 1 {
		result.AddWarning("application_data.security.rate_limit_rps",
			"rate limit is disabled (0 RPS)")
	}
	if app.API.Enabled && app.Security.APIToken == "" && app.API.Host != "127.0.0.1" && app.API.Host != "localhost" {
		result.AddWarning("application_data.security.api_token",
			"API listens beyond loopback without a token")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.StatsInterval < 5 {
		result.AddWarning("timers.stats_interval_sec", "stats interval less than 5s adds needless database load")
	}
	if timers.HeartbeatInterval < 10 {
		result.AddWarning("timers.heartbeat_interval_sec",
			"heartbeat interval less than 10s may cause excessive traffic")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
