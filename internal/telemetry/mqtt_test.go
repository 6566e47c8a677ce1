package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/util"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	sent      []message
	notify    chan struct{}
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	f.sent = append(f.sent, message{topic: topic, payload: payload.([]byte)})
	f.mu.Unlock()
	if f.notify != nil {
		f.notify <- struct{}{}
	}
	return doneToken{}
}

func newTestHandler(prefix string, pub *fakePublisher) *MQTTHandler {
	h := newHandler(config.MQTTConfig{TopicPrefix: prefix}, events.NewEventBus(), util.HostInfo{Hostname: "bench"})
	h.pub = pub
	return h
}

func TestTopicFor(t *testing.T) {
	tests := []struct {
		event events.EventType
		want  string
	}{
		{events.EventSequenceMismatch, TopicDesync},
		{events.EventMalformedPacket, TopicMalformed},
		{events.EventCaptureCreated, TopicCaptures},
		{events.EventCapturesPruned, TopicCaptures},
		{events.EventStats, TopicStats},
		{events.EventShutdown, TopicStatus},
	}
	for _, tt := range tests {
		if got := topicFor(tt.event); got != tt.want {
			t.Errorf("topicFor(%s) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestTopicPrefix(t *testing.T) {
	if got := newTestHandler("eolink", nil).Topic(TopicDesync); got != "eolink/desync" {
		t.Errorf("Topic() = %q", got)
	}
	if got := newTestHandler("", nil).Topic(TopicDesync); got != "desync" {
		t.Errorf("Topic() without prefix = %q", got)
	}
}

func TestEventPublished(t *testing.T) {
	pub := &fakePublisher{connected: true, notify: make(chan struct{}, 1)}
	h := newTestHandler("lab", pub)
	h.subscribeEvents()
	defer h.eventBus.Stop()

	h.eventBus.Emit(context.Background(), events.NewEvent(events.EventSequenceMismatch, "inspect",
		events.MismatchPayload{SessionID: 3, PacketID: 9, Expected: 42, Received: 41}))

	select {
	case <-pub.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.sent) != 1 || pub.sent[0].topic != "lab/desync" {
		t.Fatalf("sent = %+v", pub.sent)
	}

	var msg struct {
		Hostname   string `json:"hostname"`
		AppVersion string `json:"app_version"`
		Timestamp  string `json:"timestamp"`
		Payload    struct {
			Event   string                 `json:"event"`
			Source  string                 `json:"source"`
			Payload events.MismatchPayload `json:"payload"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(pub.sent[0].payload, &msg); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if msg.Hostname != "bench" || msg.AppVersion != util.Version || msg.Timestamp == "" {
		t.Errorf("metadata = %+v", msg)
	}
	if msg.Payload.Event != "sequence_mismatch" || msg.Payload.Source != "inspect" || msg.Payload.Payload.Expected != 42 {
		t.Errorf("payload = %+v", msg.Payload)
	}
}

func TestPublishSkippedWhileDisconnected(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler("lab", pub)
	h.PublishShutdown()
	if len(pub.sent) != 0 {
		t.Errorf("published %d messages while disconnected", len(pub.sent))
	}
}

func TestNewMQTTHandlerDisabled(t *testing.T) {
	if _, err := NewMQTTHandler(config.DefaultConfig(), events.NewEventBus()); err == nil {
		t.Error("NewMQTTHandler succeeded with MQTT disabled")
	}
}
