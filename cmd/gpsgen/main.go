package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"greenwave/geo"
)

var (
	rps        = flag.Int("rps", 1, "Fixes per second for each ambulance")
	ambulances = flag.String("ambulances", "AMB-101,AMB-102,AMB-105", "Comma separated ambulance ids")
	devices    = flag.String("devices", "IOT-001,IOT-002,IOT-004", "Comma separated device ids to ping")
	centerLat  = flag.Float64("lat", 28.6139, "Latitude the simulated units start around")
	centerLng  = flag.Float64("lng", 77.2090, "Longitude the simulated units start around")
	mqttBroker = flag.String("broker", "localhost:1883", "MQTT broker address (host:port)")
	mqttUser   = flag.String("user", "", "MQTT username")
	mqttPass   = flag.String("pass", "", "MQTT password")
)

const (
	positionTopic = "greenwave/ambulances/%s/position"
	pingTopic     = "greenwave/iot/%s/ping"
	kmPerDegree   = 111.0
)

type positionMessage struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	SpeedKmh  float64 `json:"speed_kmh"`
	Heading   float64 `json:"heading"`
	Timestamp int64   `json:"timestamp"`
}

// simulatedUnit drives one ambulance on a random walk with slowly changing heading
type simulatedUnit struct {
	id       string
	position geo.Point
	heading  float64
	speedKmh float64
}

func newSimulatedUnit(id string, center geo.Point) *simulatedUnit {
	return &simulatedUnit{
		id: id,
		position: geo.Point{
			Latitude:  center.Latitude + (rand.Float64()-0.5)*0.02,
			Longitude: center.Longitude + (rand.Float64()-0.5)*0.02,
		},
		heading:  rand.Float64() * 360,
		speedKmh: 30 + rand.Float64()*30,
	}
}

// Step advances the unit by dt and returns the new fix
func (u *simulatedUnit) Step(dt time.Duration, now time.Time) positionMessage {
	u.heading = math.Mod(u.heading+(rand.Float64()-0.5)*20+360, 360)
	u.speedKmh = math.Max(10, math.Min(80, u.speedKmh+(rand.Float64()-0.5)*6))

	km := u.speedKmh * dt.Hours()
	rad := u.heading * math.Pi / 180
	u.position.Latitude += km * math.Cos(rad) / kmPerDegree
	u.position.Longitude += km * math.Sin(rad) / (kmPerDegree * math.Cos(u.position.Latitude*math.Pi/180))

	return positionMessage{
		Lat:       math.Round(u.position.Latitude*1e6) / 1e6,
		Lng:       math.Round(u.position.Longitude*1e6) / 1e6,
		SpeedKmh:  math.Round(u.speedKmh*10) / 10,
		Heading:   math.Round(u.heading),
		Timestamp: now.UnixMilli(),
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *rps < 1 {
		logger.Fatal("rps must be at least 1")
	}

	center := geo.Point{Latitude: *centerLat, Longitude: *centerLng}
	var units []*simulatedUnit
	for _, id := range splitIDs(*ambulances) {
		units = append(units, newSimulatedUnit(id, center))
	}
	deviceIDs := splitIDs(*devices)

	logger.Info("GPS generator started",
		zap.Int("ambulances", len(units)),
		zap.Int("devices", len(deviceIDs)),
		zap.Int("rps", *rps),
		zap.String("mqtt_broker", *mqttBroker))

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", *mqttBroker))
	opts.SetClientID(fmt.Sprintf("greenwave-gpsgen-%d", os.Getpid()))
	opts.SetUsername(*mqttUser)
	opts.SetPassword(*mqttPass)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", *mqttBroker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(token.Error()))
	}
	defer client.Disconnect(250)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping generator")
		cancel()
	}()

	interval := time.Second / time.Duration(*rps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	pingTicker := time.NewTicker(10 * time.Second)
	defer pingTicker.Stop()

	published := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Generator stopped",
				zap.Int("total_fixes", published),
				zap.Duration("uptime", time.Since(startTime)))
			return

		case now := <-ticker.C:
			for _, u := range units {
				payload, err := json.Marshal(u.Step(interval, now))
				if err != nil {
					logger.Error("Failed to marshal fix", zap.Error(err))
					continue
				}
				token := client.Publish(fmt.Sprintf(positionTopic, u.id), 0, false, payload)
				if token.Wait() && token.Error() != nil {
					logger.Error("Failed to publish fix", zap.String("ambulance_id", u.id), zap.Error(token.Error()))
					continue
				}
				published++
			}
			if published > 0 && published%100 == 0 {
				logger.Info("Fixes published", zap.Int("count", published))
			}

		case now := <-pingTicker.C:
			for _, id := range deviceIDs {
				payload, _ := json.Marshal(map[string]int64{"timestamp": now.UnixMilli()})
				if token := client.Publish(fmt.Sprintf(pingTopic, id), 0, false, payload); token.Wait() && token.Error() != nil {
					logger.Error("Failed to publish ping", zap.String("device_id", id), zap.Error(token.Error()))
				}
			}
		}
	}
}
