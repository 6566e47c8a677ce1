// Package events defines the event bus and the events the workbench
// components exchange.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Packet path
	EventPacketDecoded    EventType = "packet_decoded"
	EventPacketEncoded    EventType = "packet_encoded"
	EventSequenceMismatch EventType = "sequence_mismatch"
	EventMalformedPacket  EventType = "malformed_packet"

	// Capture store
	EventCaptureCreated EventType = "capture_created"
	EventCaptureDeleted EventType = "capture_deleted"
	EventCapturesPruned EventType = "captures_pruned"

	// System
	EventStats         EventType = "stats"
	EventHeartbeat     EventType = "heartbeat"
	EventDiskWarning   EventType = "disk_warning"
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Verdict is the outcome of decoding one captured packet.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictSequenceMismatch
	VerdictMalformed
	VerdictInit
)

var verdictStrings = map[Verdict]string{
	VerdictOK:               "ok",
	VerdictSequenceMismatch: "sequence_mismatch",
	VerdictMalformed:        "malformed",
	VerdictInit:             "init",
}

// String returns the string representation of Verdict.
func (v Verdict) String() string {
	if s, ok := verdictStrings[v]; ok {
		return s
	}
	return "unknown"
}

// MarshalJSON serializes Verdict as a JSON string (e.g. "ok").
func (v Verdict) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}

// ParseVerdict is the inverse of Verdict.String.
func ParseVerdict(s string) (Verdict, bool) {
	for v, str := range verdictStrings {
		if str == s {
			return v, true
		}
	}
	return VerdictOK, false
}

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Time    time.Time
	Payload interface{}
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, source string, payload interface{}) Event {
	return Event{Type: t, Source: source, Time: time.Now(), Payload: payload}
}

// PacketPayload describes one packet that went through a session.
type PacketPayload struct {
	SessionID int64   `json:"session_id"`
	PacketID  int64   `json:"packet_id"`
	Direction string  `json:"direction"`
	Family    byte    `json:"family"`
	Action    byte    `json:"action"`
	Sequence  int     `json:"sequence"`
	Length    int     `json:"length"`
	Verdict   Verdict `json:"verdict"`
}

// MismatchPayload accompanies EventSequenceMismatch.
type MismatchPayload struct {
	SessionID int64 `json:"session_id"`
	PacketID  int64 `json:"packet_id"`
	Expected  int   `json:"expected"`
	Received  int   `json:"received"`
}

// MalformedPayload accompanies EventMalformedPacket.
type MalformedPayload struct {
	SessionID int64  `json:"session_id"`
	PacketID  int64  `json:"packet_id"`
	Error     string `json:"error"`
	Length    int    `json:"length"`
}

// CapturePayload accompanies capture lifecycle events.
type CapturePayload struct {
	SessionID int64  `json:"session_id"`
	Name      string `json:"name"`
}

// PrunedPayload accompanies EventCapturesPruned.
type PrunedPayload struct {
	Sessions int64     `json:"sessions"`
	Before   time.Time `json:"before"`
}

// StatsPayload is the periodic workbench summary.
type StatsPayload struct {
	Sessions   int64   `json:"sessions"`
	Packets    int64   `json:"packets"`
	Mismatches int64   `json:"mismatches"`
	Malformed  int64   `json:"malformed"`
	DatabaseMB float64 `json:"database_mb"`
	RSSMB      uint64  `json:"rss_mb"`
	Goroutines int     `json:"goroutines"`
	DiskFreeMB uint64  `json:"disk_free_mb"`
	UptimeSecs int64   `json:"uptime_seconds"`
}

// HeartbeatPayload accompanies EventHeartbeat.
type HeartbeatPayload struct {
	UptimeSecs int64 `json:"uptime_seconds"`
	Goroutines int   `json:"goroutines"`
}

// DiskWarningPayload reports a filesystem running out of room for
// captures.
type DiskWarningPayload struct {
	Path        string  `json:"path"`
	FreeMB      uint64  `json:"free_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string      `json:"section"`
	Key     string      `json:"key"`
	Value   interface{} `json:"value"`
}
