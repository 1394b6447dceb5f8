package main

import (
	"context"
	"flag"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"greenwave/config"
	"greenwave/log"
)

var force = flag.Bool("force", false, "Overwrite collections that already exist")

type record = map[string]interface{}

// demoData returns the Delhi demo dataset keyed by collection path
func demoData(now time.Time) map[string]interface{} {
	ms := now.UnixMilli()
	return map[string]interface{}{
		"zones": map[string]record{
			"Zone-A": {"name": "Zone A - Downtown", "color": "#6366f1", "active": true, "lat": 28.6139, "lng": 77.2090, "radius": 2000},
			"Zone-B": {"name": "Zone B - North District", "color": "#f59e0b", "active": true, "lat": 28.6280, "lng": 77.2180, "radius": 1800},
			"Zone-C": {"name": "Zone C - South Corridor", "color": "#22c55e", "active": false, "lat": 28.6000, "lng": 77.2000, "radius": 2200},
		},
		"ambulances": map[string]record{
			"AMB-101": {"name": "AMB-101", "lat": 28.6145, "lng": 77.2075, "status": "idle", "zone": "Zone-A", "lastUpdate": ms},
			"AMB-102": {"name": "AMB-102", "lat": 28.6210, "lng": 77.2155, "status": "en-route", "destination": "AIIMS Hospital", "zone": "Zone-A", "lastUpdate": ms},
			"AMB-103": {"name": "AMB-103", "lat": 28.6280, "lng": 77.2190, "status": "on-scene", "zone": "Zone-B", "lastUpdate": ms},
			"AMB-104": {"name": "AMB-104", "lat": 28.6050, "lng": 77.1980, "status": "idle", "zone": "Zone-C", "lastUpdate": ms},
			"AMB-105": {"name": "AMB-105", "lat": 28.6175, "lng": 77.2110, "status": "en-route", "destination": "City General", "zone": "Zone-B", "lastUpdate": ms},
		},
		"trafficSignals": map[string]record{
			"SIG-01": {"name": "Connaught Place Jn", "lat": 28.6138, "lng": 77.2090, "state": "green", "zone": "Zone-A"},
			"SIG-02": {"name": "Rajiv Chowk", "lat": 28.6155, "lng": 77.2115, "state": "red", "zone": "Zone-A"},
			"SIG-03": {"name": "ITO Junction", "lat": 28.6200, "lng": 77.2170, "state": "green", "zone": "Zone-B"},
			"SIG-04": {"name": "Mandi House", "lat": 28.6185, "lng": 77.2135, "state": "red", "zone": "Zone-A"},
			"SIG-05": {"name": "AIIMS Flyover", "lat": 28.5685, "lng": 77.2100, "state": "green", "zone": "Zone-C"},
			"SIG-06": {"name": "Ring Road Gate 5", "lat": 28.6090, "lng": 77.2040, "state": "red", "zone": "Zone-C"},
		},
		"hospitals": map[string]record{
			"HSP-01": {"name": "AIIMS Hospital", "lat": 28.5672, "lng": 77.2100, "beds": 120, "er": true, "phone": "+91-11-26588500", "zone": "Zone-C"},
			"HSP-02": {"name": "Safdarjung Hospital", "lat": 28.5684, "lng": 77.2076, "beds": 85, "er": true, "phone": "+91-11-26707419", "zone": "Zone-C"},
			"HSP-03": {"name": "Ram Manohar Lohia", "lat": 28.6250, "lng": 77.2050, "beds": 60, "er": false, "phone": "+91-11-23404446", "zone": "Zone-A"},
			"HSP-04": {"name": "City General Hospital", "lat": 28.6300, "lng": 77.2200, "beds": 45, "er": true, "phone": "+91-11-23456789", "zone": "Zone-B"},
		},
		"iot": map[string]record{
			"IOT-001": {"name": "Signal Controller #1", "type": "signal_controller", "status": "online", "lat": 28.6138, "lng": 77.2090, "zone": "Zone-A", "lastPing": ms, "firmware": "v2.4.1"},
			"IOT-002": {"name": "Traffic Sensor N1", "type": "sensor", "status": "online", "lat": 28.6200, "lng": 77.2170, "zone": "Zone-B", "lastPing": ms, "firmware": "v1.8.0"},
			"IOT-003": {"name": "Junction Camera A", "type": "camera", "status": "warning", "lat": 28.6155, "lng": 77.2115, "zone": "Zone-A", "lastPing": ms - 120000, "firmware": "v3.1.2"},
			"IOT-004": {"name": "Gateway Hub South", "type": "gateway", "status": "online", "lat": 28.6050, "lng": 77.1980, "zone": "Zone-C", "lastPing": ms, "firmware": "v4.0.0"},
			"IOT-005": {"name": "Signal Controller #2", "type": "signal_controller", "status": "offline", "lat": 28.6090, "lng": 77.2040, "zone": "Zone-C", "lastPing": ms - 600000, "firmware": "v2.3.5"},
		},
		"incidents": map[string]record{
			"INC-001": {
				"title": "Multi-vehicle accident on Ring Road", "description": "Reported 3-car pileup near Gate 5. Ambulance dispatched.",
				"zone": "Zone-C", "severity": "high", "status": "resolved", "createdAt": ms - 3600000, "closedAt": ms - 1800000,
				"ambulanceId": "AMB-104", "hospitalId": "HSP-01",
			},
		},
		"stats": record{"totalActivations": 0, "avgResponseTime": 0, "completedResponses": 0},
	}
}

// seedOrder writes reference collections before the entities that point at them
var seedOrder = []string{"zones", "hospitals", "trafficSignals", "iot", "ambulances", "incidents", "stats"}

func main() {
	flag.Parse()

	logger := log.GetInstance()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var opts []option.ClientOption
	if cfg.FirebaseServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON)))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.FirebaseDbUrl}, opts...)
	if err != nil {
		logger.Fatal("Error initializing Firebase app", zap.Error(err))
	}
	client, err := app.Database(ctx)
	if err != nil {
		logger.Fatal("Error getting database client", zap.Error(err))
	}

	data := demoData(time.Now())
	for _, path := range seedOrder {
		if err := seed(ctx, client, path, data[path]); err != nil {
			logger.Error("Failed to seed collection", zap.String("path", path), zap.Error(err))
			continue
		}
	}
	logger.Info("Seeding finished", zap.Bool("force", *force))
}

func seed(ctx context.Context, client *db.Client, path string, value interface{}) error {
	logger := log.GetInstance()
	ref := client.NewRef(path)

	if !*force {
		var existing interface{}
		if err := ref.Get(ctx, &existing); err != nil {
			return err
		}
		if existing != nil {
			logger.Info("Collection exists, skipping", zap.String("path", path))
			return nil
		}
	}

	if err := ref.Set(ctx, value); err != nil {
		return err
	}
	logger.Info("Collection seeded", zap.String("path", path))
	return nil
}
