// Package util holds the small shared pieces of the eolink workbench:
// logging setup, host information, hex helpers and TLS material.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds configuration for the logging system.
type LogConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
	JSON       bool   `json:"json_console"`
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Directory:  "logs",
		MaxBackups: 7,
		Console:    true,
	}
}

// InitLogger points the global zerolog logger at a daily log file and,
// optionally, the console.
func InitLogger(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", cfg.Directory, err)
	}

	logFilePath := filepath.Join(cfg.Directory, fmt.Sprintf("eolink_%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	// File output stays JSON so captures can be correlated by tooling.
	writers := []io.Writer{logFile}
	if cfg.Console {
		if cfg.JSON {
			writers = append(writers, os.Stdout)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
		}
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "eolink").
		Caller().
		Logger()

	log.Info().
		Str("level", level.String()).
		Str("log_file", logFilePath).
		Msg("logger initialized")

	go pruneLogs(cfg.Directory, cfg.MaxBackups)
	return nil
}

// pruneLogs keeps the newest maxBackups daily log files. File names embed
// the date, so name order is age order.
func pruneLogs(directory string, maxBackups int) {
	if maxBackups <= 0 {
		return
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		return
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "eolink_") && filepath.Ext(name) == ".log" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for i := 0; i < len(names)-maxBackups; i++ {
		path := filepath.Join(directory, names[i])
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("failed to remove old log file")
			continue
		}
		log.Debug().Str("file", path).Msg("removed old log file")
	}
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
