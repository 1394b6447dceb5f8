package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"greenwave/routing"
)

type Config struct {
	FirebaseDbUrl              string
	FirebaseServiceAccountJSON string
	FirebasePollInterval       time.Duration

	// MQTT carries crew GPS fixes and device pings in, overlay frames out
	MQTTBroker        string
	MQTTUsername      string
	MQTTPassword      string
	MQTTClientID      string
	MQTTPositionTopic string
	MQTTDeviceTopic   string
	MQTTOverlayTopic  string

	RabbitMQURL             string
	RabbitMQExchange        string
	RabbitMQCommandQueue    string
	RabbitMQEventRoutingKey string

	DatabaseURL string

	// Roadside controller gateway; overrides are only written to the database when empty
	SignalControllerURL string

	HTTPPort    string
	CORSOrigins string

	// Route heuristics
	OnRouteThresholdKm float64
	ETAMinutesPerKm    float64
	CurveOffsetDeg     float64

	PositionBatchSize    int
	PositionBatchTimeout time.Duration

	DeviceWarningAfter time.Duration
	DeviceOfflineAfter time.Duration

	Timezone string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		FirebaseDbUrl:              getEnv("FIREBASE_DB_URL", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebasePollInterval:       getEnvDuration("FIREBASE_POLL_INTERVAL", 2*time.Second),

		MQTTBroker:        getEnv("MQTT_BROKER", ""),
		MQTTUsername:      getEnv("MQTT_USERNAME", ""),
		MQTTPassword:      getEnv("MQTT_PASSWORD", ""),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "greenwave-dispatch"),
		MQTTPositionTopic: getEnv("MQTT_POSITION_TOPIC", "greenwave/ambulances/+/position"),
		MQTTDeviceTopic:   getEnv("MQTT_DEVICE_TOPIC", "greenwave/iot/+/ping"),
		MQTTOverlayTopic:  getEnv("MQTT_OVERLAY_TOPIC", "greenwave/overlay"),

		RabbitMQURL:             getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:        getEnv("RABBITMQ_EXCHANGE", "greenwave"),
		RabbitMQCommandQueue:    getEnv("RABBITMQ_COMMAND_QUEUE", "dispatch_commands"),
		RabbitMQEventRoutingKey: getEnv("RABBITMQ_EVENT_ROUTING_KEY", "route_events"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SignalControllerURL: getEnv("SIGNAL_CONTROLLER_URL", ""),

		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		OnRouteThresholdKm: getEnvFloat("ON_ROUTE_THRESHOLD_KM", routing.DefaultOptions().OnRouteThresholdKm),
		ETAMinutesPerKm:    getEnvFloat("ETA_MINUTES_PER_KM", routing.DefaultMinutesPerKm),
		CurveOffsetDeg:     getEnvFloat("ROUTE_CURVE_OFFSET_DEG", routing.DefaultCurveOffsetDeg),

		PositionBatchSize:    getEnvInt("POSITION_BATCH_SIZE", 50),
		PositionBatchTimeout: getEnvDuration("POSITION_BATCH_TIMEOUT", 2*time.Second),

		DeviceWarningAfter: getEnvDuration("DEVICE_WARNING_AFTER", 30*time.Second),
		DeviceOfflineAfter: getEnvDuration("DEVICE_OFFLINE_AFTER", 2*time.Minute),

		Timezone: getEnv("TIMEZONE", "Asia/Kolkata"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that would otherwise fail at runtime
func (c *Config) Validate() error {
	if c.FirebaseDbUrl == "" {
		return fmt.Errorf("FIREBASE_DB_URL is required")
	}
	if c.FirebasePollInterval <= 0 {
		return fmt.Errorf("FIREBASE_POLL_INTERVAL must be positive")
	}
	if c.OnRouteThresholdKm <= 0 || c.ETAMinutesPerKm <= 0 {
		return fmt.Errorf("route heuristics must be positive")
	}
	if c.PositionBatchSize <= 0 || c.PositionBatchTimeout <= 0 {
		return fmt.Errorf("position batching settings must be positive")
	}
	if c.DeviceWarningAfter <= 0 || c.DeviceOfflineAfter <= c.DeviceWarningAfter {
		return fmt.Errorf("DEVICE_OFFLINE_AFTER must exceed DEVICE_WARNING_AFTER")
	}
	return nil
}

// RoutingOptions returns the route heuristics as configured
func (c *Config) RoutingOptions() routing.Options {
	return routing.Options{
		OnRouteThresholdKm: c.OnRouteThresholdKm,
		MinutesPerKm:       c.ETAMinutesPerKm,
		CurveOffsetDeg:     c.CurveOffsetDeg,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
