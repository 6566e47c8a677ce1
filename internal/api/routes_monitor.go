package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/util"
)

// handleStats returns capture store totals and the workbench's own
// resource usage.
func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()
	store := s.bench.Store()

	stats, err := store.Stats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{
		"captures": stats,
	}

	if size, err := store.Database().SizeBytes(ctx); err == nil {
		resp["database_bytes"] = size
	} else {
		log.Debug().Err(err).Msg("database size unavailable")
	}

	if proc, err := util.GetProcessStats(); err == nil {
		resp["process"] = proc
	} else {
		log.Debug().Err(err).Msg("process stats unavailable")
	}

	c.JSON(http.StatusOK, resp)
}

// handleGetLogEntries returns recent log entries.
func (s *Server) handleGetLogEntries(c *gin.Context) {
	countStr := c.DefaultQuery("count", "100")
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		count = 100
	}
	if count > 1000 {
		count = 1000
	}

	logDir := s.cfg.GetApplicationData().Logging.Directory
	entries, err := readRecentLogEntries(logDir, count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// logEntry is a parsed log entry for the API response.
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// readRecentLogEntries reads and parses the most recent log entries from log files.
// Zerolog writes JSON lines to the log file.
func readRecentLogEntries(logDir string, count int) ([]logEntry, error) {
	dirEntries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, err
	}

	if len(dirEntries) == 0 {
		return []logEntry{}, nil
	}

	// Find the most recent log file
	var latestFile string
	for i := len(dirEntries) - 1; i >= 0; i-- {
		if !dirEntries[i].IsDir() && filepath.Ext(dirEntries[i].Name()) == ".log" {
			latestFile = filepath.Join(logDir, dirEntries[i].Name())
			break
		}
	}

	if latestFile == "" {
		return []logEntry{}, nil
	}

	// Read file content
	data, err := os.ReadFile(latestFile)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")

	// Take last N lines
	start := len(lines) - count
	if start < 0 {
		start = 0
	}

	// Known zerolog internal fields to exclude from "fields"
	knownKeys := map[string]bool{
		"level": true, "time": true, "message": true,
		"caller": true, "app": true,
	}

	result := make([]logEntry, 0, count)
	for _, line := range lines[start:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Parse the JSON line
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			// not JSON, keep the raw line
			result = append(result, logEntry{Message: line})
			continue
		}

		entry := logEntry{
			Level:   stringFromMap(raw, "level"),
			Message: stringFromMap(raw, "message"),
		}

		// Parse timestamp (zerolog uses "time" field)
		if t, ok := raw["time"]; ok {
			entry.Timestamp = fmt.Sprintf("%v", t)
		}

		// Collect remaining fields
		extra := make(map[string]interface{})
		for k, v := range raw {
			if !knownKeys[k] {
				extra[k] = v
			}
		}
		if len(extra) > 0 {
			entry.Fields = extra
		}

		result = append(result, entry)
	}

	return result, nil
}

// stringFromMap extracts a string value from a map, returning "" if missing.
func stringFromMap(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
