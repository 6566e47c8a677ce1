// Package telemetry publishes codec events to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/util"
)

// Topic suffixes, appended to the configured prefix.
const (
	TopicStatus    = "status"
	TopicDesync    = "desync"
	TopicMalformed = "malformed"
	TopicCaptures  = "captures"
	TopicStats     = "stats"
)

// publisher is the part of mqtt.Client the handler uses.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTHandler publishes workbench events to MQTT.
type MQTTHandler struct {
	mu sync.Mutex

	mqttCfg  config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client
	pub      publisher

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus) (*MQTTHandler, error) {
	mqttCfg := cfg.GetApplicationData().MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	hostInfo := util.GetHostInfo()
	handler := newHandler(mqttCfg, eventBus, hostInfo)

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("eolink-%s", hostInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		tlsConfig, err := buildTLSConfig(mqttCfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)
	handler.pub = handler.client
	return handler, nil
}

func newHandler(mqttCfg config.MQTTConfig, eventBus *events.EventBus, hostInfo util.HostInfo) *MQTTHandler {
	return &MQTTHandler{
		mqttCfg:  mqttCfg,
		eventBus: eventBus,
		metadata: map[string]interface{}{
			"hostname":    hostInfo.Hostname,
			"os":          hostInfo.OS,
			"cpu_model":   hostInfo.CPUModel,
			"cpu_threads": hostInfo.CPUThreads,
			"memory_mb":   hostInfo.TotalMemoryMB,
			"app_version": util.Version,
		},
	}
}

func buildTLSConfig(mqttCfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if mqttCfg.CAFile != "" {
		pem, err := os.ReadFile(mqttCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", mqttCfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	// mTLS: load client certificate
	if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// Start connects to the MQTT broker, publishes events until ctx is
// cancelled and then disconnects.
func (h *MQTTHandler) Start(ctx context.Context) error {
	log.Info().
		Str("broker", h.mqttCfg.BrokerURL).
		Int("port", h.mqttCfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()
	h.publish(TopicStatus, map[string]interface{}{"event": "online"})

	<-ctx.Done()

	h.unsubscribeEvents()
	h.PublishShutdown()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

var subscriptions = map[events.EventType]string{
	events.EventSequenceMismatch: "mqtt.desync",
	events.EventMalformedPacket:  "mqtt.malformed",
	events.EventCaptureCreated:   "mqtt.captureCreated",
	events.EventCaptureDeleted:   "mqtt.captureDeleted",
	events.EventCapturesPruned:   "mqtt.capturesPruned",
	events.EventStats:            "mqtt.stats",
	events.EventHeartbeat:        "mqtt.heartbeat",
	events.EventDiskWarning:      "mqtt.diskWarning",
}

func (h *MQTTHandler) subscribeEvents() {
	for t, name := range subscriptions {
		h.eventBus.Subscribe(t, name, h.onEvent)
	}
}

func (h *MQTTHandler) unsubscribeEvents() {
	for t, name := range subscriptions {
		h.eventBus.Unsubscribe(t, name)
	}
}

// topicFor maps an event type to its topic suffix.
func topicFor(t events.EventType) string {
	switch t {
	case events.EventSequenceMismatch:
		return TopicDesync
	case events.EventMalformedPacket:
		return TopicMalformed
	case events.EventCaptureCreated, events.EventCaptureDeleted, events.EventCapturesPruned:
		return TopicCaptures
	case events.EventStats:
		return TopicStats
	default:
		return TopicStatus
	}
}

// Topic returns the full topic for a suffix.
func (h *MQTTHandler) Topic(suffix string) string {
	if h.mqttCfg.TopicPrefix == "" {
		return suffix
	}
	return h.mqttCfg.TopicPrefix + "/" + suffix
}

func (h *MQTTHandler) onEvent(ctx context.Context, event events.Event) error {
	h.publish(topicFor(event.Type), map[string]interface{}{
		"event":   string(event.Type),
		"source":  event.Source,
		"payload": event.Payload,
	})
	return nil
}

// publish sends a JSON message to prefix/suffix.
func (h *MQTTHandler) publish(suffix string, payload interface{}) {
	h.mu.Lock()
	pub := h.pub
	h.mu.Unlock()
	if pub == nil || !pub.IsConnected() {
		return
	}

	topic := h.Topic(suffix)
	data, err := json.Marshal(h.buildMessage(payload))
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := pub.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

// PublishShutdown announces that the workbench is going offline.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(TopicStatus, map[string]interface{}{"event": "shutdown"})
}
