package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"greenwave/config"
	"greenwave/geo"
	"greenwave/models"
	"greenwave/overlay"
)

// TelemetryService receives crew GPS fixes and device pings over MQTT and publishes overlay frames
type TelemetryService struct {
	client    mqtt.Client
	config    *config.Config
	logger    *zap.Logger
	positions chan models.PositionFix
	pings     chan models.DevicePing
}

// NewTelemetryService connects to the broker. Subscriptions are renewed on every reconnect.
func NewTelemetryService(cfg *config.Config, logger *zap.Logger) (*TelemetryService, error) {
	ts := &TelemetryService{
		config:    cfg,
		logger:    logger,
		positions: make(chan models.PositionFix, 256),
		pings:     make(chan models.DevicePing, 256),
	}

	broker := cfg.MQTTBroker
	if !strings.Contains(broker, "://") {
		broker = fmt.Sprintf("tcp://%s", broker)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", broker))
		ts.subscribe(client)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	ts.client = mqtt.NewClient(opts)
	if token := ts.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return ts, nil
}

func (ts *TelemetryService) subscribe(client mqtt.Client) {
	subscriptions := map[string]mqtt.MessageHandler{
		ts.config.MQTTPositionTopic: ts.handlePosition,
		ts.config.MQTTDeviceTopic:   ts.handlePing,
	}
	for topic, handler := range subscriptions {
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			ts.logger.Error("Failed to subscribe", zap.String("topic", topic), zap.Error(token.Error()))
			continue
		}
		ts.logger.Info("Subscribed to MQTT topic", zap.String("topic", topic))
	}
}

// Positions delivers parsed GPS fixes
func (ts *TelemetryService) Positions() <-chan models.PositionFix {
	return ts.positions
}

// Pings delivers parsed device pings
func (ts *TelemetryService) Pings() <-chan models.DevicePing {
	return ts.pings
}

func (ts *TelemetryService) handlePosition(_ mqtt.Client, msg mqtt.Message) {
	fix, err := ParsePositionMessage(ts.config.MQTTPositionTopic, msg.Topic(), msg.Payload(), time.Now())
	if err != nil {
		ts.logger.Warn("Invalid position message", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	// paho handlers must not block; a full buffer drops the fix
	select {
	case ts.positions <- fix:
	default:
		ts.logger.Warn("Position buffer full, dropping fix", zap.String("ambulance_id", fix.AmbulanceID))
	}
}

func (ts *TelemetryService) handlePing(_ mqtt.Client, msg mqtt.Message) {
	ping, err := ParsePingMessage(ts.config.MQTTDeviceTopic, msg.Topic(), msg.Payload(), time.Now())
	if err != nil {
		ts.logger.Warn("Invalid device ping", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	select {
	case ts.pings <- ping:
	default:
		ts.logger.Warn("Ping buffer full, dropping ping", zap.String("device_id", ping.DeviceID))
	}
}

// PublishFrame publishes a frame as a retained message so late subscribers get the current overlay
func (ts *TelemetryService) PublishFrame(frame overlay.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	token := ts.client.Publish(ts.config.MQTTOverlayTopic, 1, true, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timeout publishing frame %d", frame.Generation)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish frame %d: %w", frame.Generation, err)
	}

	ts.logger.Debug("Published overlay frame",
		zap.Uint64("generation", frame.Generation),
		zap.Int("bytes", len(data)))
	return nil
}

// Close disconnects from the broker
func (ts *TelemetryService) Close() {
	ts.logger.Info("Disconnecting from MQTT broker")
	ts.client.Disconnect(250)
}

// topicWildcard returns the topic level matched by the single "+" of pattern
func topicWildcard(pattern, topic string) (string, error) {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	if len(p) != len(t) {
		return "", fmt.Errorf("topic %q does not match %q", topic, pattern)
	}

	var value string
	for i := range p {
		switch {
		case p[i] == "+":
			value = t[i]
		case p[i] != t[i]:
			return "", fmt.Errorf("topic %q does not match %q", topic, pattern)
		}
	}
	if value == "" {
		return "", fmt.Errorf("topic %q has no id level", topic)
	}
	return value, nil
}

// parseTimestamp accepts milliseconds since epoch or RFC3339; anything else yields fallback
func parseTimestamp(v interface{}, fallback time.Time) time.Time {
	switch ts := v.(type) {
	case float64:
		if ts > 0 {
			return time.UnixMilli(int64(ts))
		}
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	}
	return fallback
}

type positionPayload struct {
	Lat       *float64    `json:"lat"`
	Lng       *float64    `json:"lng"`
	SpeedKmh  float64     `json:"speed_kmh"`
	Heading   float64     `json:"heading"`
	Timestamp interface{} `json:"timestamp"`
}

// ParsePositionMessage decodes a GPS fix published on a topic matching pattern
func ParsePositionMessage(pattern, topic string, payload []byte, now time.Time) (models.PositionFix, error) {
	id, err := topicWildcard(pattern, topic)
	if err != nil {
		return models.PositionFix{}, err
	}

	var p positionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.PositionFix{}, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	if p.Lat == nil || p.Lng == nil {
		return models.PositionFix{}, fmt.Errorf("position for %s is missing lat/lng", id)
	}
	if *p.Lat < -90 || *p.Lat > 90 || *p.Lng < -180 || *p.Lng > 180 {
		return models.PositionFix{}, fmt.Errorf("position for %s is out of range: %f,%f", id, *p.Lat, *p.Lng)
	}

	return models.PositionFix{
		AmbulanceID: id,
		Position:    geo.Point{Latitude: *p.Lat, Longitude: *p.Lng},
		SpeedKmh:    p.SpeedKmh,
		Heading:     p.Heading,
		Timestamp:   parseTimestamp(p.Timestamp, now),
	}, nil
}

type pingPayload struct {
	Timestamp interface{} `json:"timestamp"`
	Firmware  string      `json:"firmware"`
}

// ParsePingMessage decodes a device ping. An empty payload is a valid ping.
func ParsePingMessage(pattern, topic string, payload []byte, now time.Time) (models.DevicePing, error) {
	id, err := topicWildcard(pattern, topic)
	if err != nil {
		return models.DevicePing{}, err
	}

	var p pingPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return models.DevicePing{}, fmt.Errorf("failed to unmarshal ping: %w", err)
		}
	}

	return models.DevicePing{
		DeviceID:  id,
		Firmware:  p.Firmware,
		Timestamp: parseTimestamp(p.Timestamp, now),
	}, nil
}
