package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"greenwave/config"
	"greenwave/models"
)

// Realtime database paths
const (
	pathEmergency  = "signal/emergency"
	pathAmbulances = "ambulances"
	pathSignals    = "trafficSignals"
	pathHospitals  = "hospitals"
	pathZones      = "zones"
	pathDevices    = "iot"
	pathStats      = "stats"
	pathLogs       = "logs"
	pathIncidents  = "incidents"
	pathComms      = "comms"
)

var snapshotPaths = []string{pathEmergency, pathAmbulances, pathHospitals, pathSignals, pathZones, pathDevices}

type FirebaseService struct {
	client  *db.Client
	config  *config.Config
	logger  *zap.Logger
	decoder recordDecoder
}

func NewFirebaseService(cfg *config.Config, logger *zap.Logger) (*FirebaseService, error) {
	ctx := context.Background()

	conf := &firebase.Config{
		DatabaseURL: cfg.FirebaseDbUrl,
	}

	var opts []option.ClientOption
	if cfg.FirebaseServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON)))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	fs := &FirebaseService{
		client:  client,
		config:  cfg,
		logger:  logger,
		decoder: recordDecoder{logger: logger},
	}

	if err := fs.testConnection(ctx); err != nil {
		logger.Error("Firebase connection test failed", zap.Error(err))
		return nil, fmt.Errorf("firebase connection test failed: %w", err)
	}

	return fs, nil
}

// testConnection tests Firebase connection with retry logic
func (fs *FirebaseService) testConnection(ctx context.Context) error {
	maxRetries := 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		fs.logger.Info("Testing Firebase connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		var emergency interface{}
		err := fs.client.NewRef(pathEmergency).Get(ctx, &emergency)
		if err == nil {
			fs.logger.Info("Firebase connection successful")
			return nil
		}

		fs.logger.Warn("Firebase connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("failed to connect to Firebase after %d attempts", maxRetries)
}

// SubscribeToSnapshots polls the entity collections and delivers the ones that changed.
// The first delivery carries every collection.
func (fs *FirebaseService) SubscribeToSnapshots(ctx context.Context, callback func(models.SnapshotUpdate)) error {
	go func() {
		defer fs.logger.Info("Firebase polling stopped")

		ticker := time.NewTicker(fs.config.FirebasePollInterval)
		defer ticker.Stop()

		tracker := newChangeTracker(fs.decoder)
		fs.logger.Info("Starting Firebase snapshot polling", zap.Duration("interval", fs.config.FirebasePollInterval))

		poll := func() {
			raw := make(map[string]interface{}, len(snapshotPaths))
			for _, path := range snapshotPaths {
				var data interface{}
				if err := fs.client.NewRef(path).Get(ctx, &data); err != nil {
					fs.logger.Error("Error reading snapshot path", zap.String("path", path), zap.Error(err))
					return
				}
				raw[path] = data
			}

			update := tracker.update(raw)
			if update.Empty() {
				return
			}
			fs.logger.Debug("Snapshot changed",
				zap.Bool("ambulances", update.Ambulances != nil),
				zap.Bool("hospitals", update.Hospitals != nil),
				zap.Bool("signals", update.Signals != nil),
				zap.Bool("zones", update.Zones != nil),
				zap.Bool("devices", update.Devices != nil),
			)
			callback(update)
		}

		poll()
		for {
			select {
			case <-ctx.Done():
				fs.logger.Info("Firebase polling received shutdown signal")
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	return nil
}

// changeTracker remembers a fingerprint per path so unchanged collections are not re-delivered
type changeTracker struct {
	decoder      recordDecoder
	fingerprints map[string]string
}

func newChangeTracker(decoder recordDecoder) *changeTracker {
	return &changeTracker{decoder: decoder, fingerprints: make(map[string]string)}
}

func (t *changeTracker) changed(path string, data interface{}) bool {
	// encoding/json sorts map keys, so equal trees produce equal bytes
	b, err := json.Marshal(data)
	if err != nil {
		return true
	}
	fp := string(b)
	if prev, ok := t.fingerprints[path]; ok && prev == fp {
		return false
	}
	t.fingerprints[path] = fp
	return true
}

func (t *changeTracker) update(raw map[string]interface{}) models.SnapshotUpdate {
	var u models.SnapshotUpdate
	for _, path := range snapshotPaths {
		data := raw[path]
		if !t.changed(path, data) {
			continue
		}
		if path == pathEmergency {
			emergency, _ := data.(bool)
			u.Emergency = &emergency
			continue
		}

		records, _ := data.(map[string]interface{})
		switch path {
		case pathAmbulances:
			u.Ambulances = t.decoder.ambulances(records)
		case pathHospitals:
			u.Hospitals = t.decoder.hospitals(records)
		case pathSignals:
			u.Signals = t.decoder.signals(records)
		case pathZones:
			u.Zones = t.decoder.zones(records)
		case pathDevices:
			u.Devices = t.decoder.devices(records)
		}
	}
	return u
}

// SetEmergency writes the global emergency flag
func (fs *FirebaseService) SetEmergency(ctx context.Context, active bool) error {
	if err := fs.client.NewRef(pathEmergency).Set(ctx, active); err != nil {
		return fmt.Errorf("error setting emergency flag: %w", err)
	}
	return nil
}

// SetSignalStates writes several signal states in one multi-path update
func (fs *FirebaseService) SetSignalStates(ctx context.Context, states map[string]models.SignalState) error {
	if len(states) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(states))
	for id, state := range states {
		updates[fmt.Sprintf("%s/%s/state", pathSignals, id)] = string(state)
	}
	if err := fs.client.NewRef("/").Update(ctx, updates); err != nil {
		return fmt.Errorf("error updating signal states: %w", err)
	}
	return nil
}

// UpdateAmbulanceDispatch sets a unit's status and destination; an empty destination removes it
func (fs *FirebaseService) UpdateAmbulanceDispatch(ctx context.Context, ambulanceID string, status models.AmbulanceStatus, destination string) error {
	var dest interface{}
	if destination != "" {
		dest = destination
	}
	err := fs.client.NewRef(pathAmbulances+"/"+ambulanceID).Update(ctx, map[string]interface{}{
		"status":      string(status),
		"destination": dest,
		"lastUpdate":  time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("error updating ambulance %s: %w", ambulanceID, err)
	}
	return nil
}

// UpdateAmbulanceStatus sets a unit's status and leaves its destination alone
func (fs *FirebaseService) UpdateAmbulanceStatus(ctx context.Context, ambulanceID string, status models.AmbulanceStatus) error {
	err := fs.client.NewRef(pathAmbulances+"/"+ambulanceID).Update(ctx, map[string]interface{}{
		"status":     string(status),
		"lastUpdate": time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("error updating status of ambulance %s: %w", ambulanceID, err)
	}
	return nil
}

// SetZoneActive writes a zone's active flag
func (fs *FirebaseService) SetZoneActive(ctx context.Context, zoneID string, active bool) error {
	if err := fs.client.NewRef(pathZones+"/"+zoneID+"/active").Set(ctx, active); err != nil {
		return fmt.Errorf("error updating zone %s: %w", zoneID, err)
	}
	return nil
}

// SavePatient attaches a patient record to an ambulance
func (fs *FirebaseService) SavePatient(ctx context.Context, ambulanceID string, patient models.Patient) error {
	err := fs.client.NewRef(pathAmbulances+"/"+ambulanceID).Update(ctx, map[string]interface{}{
		"patient": map[string]interface{}{
			"name":      patient.Name,
			"age":       patient.Age,
			"condition": patient.Condition,
			"bloodType": patient.BloodType,
			"notes":     patient.Notes,
		},
	})
	if err != nil {
		return fmt.Errorf("error saving patient for ambulance %s: %w", ambulanceID, err)
	}
	return nil
}

// CreateIncident pushes a new incident and returns its generated key
func (fs *FirebaseService) CreateIncident(ctx context.Context, incident models.Incident) (string, error) {
	record := map[string]interface{}{
		"title":     incident.Title,
		"severity":  string(incident.Severity),
		"status":    string(incident.Status),
		"createdAt": incident.CreatedAt.UnixMilli(),
	}
	for key, value := range map[string]string{
		"description": incident.Description,
		"zone":        incident.Zone,
		"ambulanceId": incident.AmbulanceID,
		"hospitalId":  incident.HospitalID,
	} {
		if value != "" {
			record[key] = value
		}
	}

	ref, err := fs.client.NewRef(pathIncidents).Push(ctx, record)
	if err != nil {
		return "", fmt.Errorf("error creating incident: %w", err)
	}
	return ref.Key, nil
}

// UpdateIncidentStatus sets an incident's status. A non-nil closedAt is written with it.
func (fs *FirebaseService) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus, closedAt *time.Time) error {
	ref := fs.client.NewRef(pathIncidents + "/" + id)

	var existing map[string]interface{}
	if err := ref.Get(ctx, &existing); err != nil {
		return fmt.Errorf("error reading incident %s: %w", id, err)
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrUnknownIncident, id)
	}

	update := map[string]interface{}{"status": string(status)}
	if closedAt != nil {
		update["closedAt"] = closedAt.UnixMilli()
	}
	if err := ref.Update(ctx, update); err != nil {
		return fmt.Errorf("error updating incident %s: %w", id, err)
	}
	return nil
}

// ListIncidents reads every incident
func (fs *FirebaseService) ListIncidents(ctx context.Context) ([]models.Incident, error) {
	var raw map[string]interface{}
	if err := fs.client.NewRef(pathIncidents).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("error reading incidents: %w", err)
	}
	return fs.decoder.incidents(raw), nil
}

// PushMessage appends a message to a unit's comms channel
func (fs *FirebaseService) PushMessage(ctx context.Context, unit string, msg models.Message) error {
	_, err := fs.client.NewRef(pathComms+"/"+unit).Push(ctx, map[string]interface{}{
		"from": msg.From,
		"text": msg.Text,
		"ts":   msg.Time.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("error sending message to %s: %w", unit, err)
	}
	return nil
}

// ListMessages reads a unit's comms channel
func (fs *FirebaseService) ListMessages(ctx context.Context, unit string) ([]models.Message, error) {
	var raw map[string]interface{}
	if err := fs.client.NewRef(pathComms+"/"+unit).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("error reading messages for %s: %w", unit, err)
	}
	return fs.decoder.messages(raw), nil
}

// WritePositions stores the latest fix per ambulance in one multi-path update
func (fs *FirebaseService) WritePositions(ctx context.Context, fixes []models.PositionFix) error {
	if len(fixes) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(fixes)*3)
	for _, fix := range fixes {
		base := pathAmbulances + "/" + fix.AmbulanceID
		updates[base+"/lat"] = fix.Position.Latitude
		updates[base+"/lng"] = fix.Position.Longitude
		updates[base+"/lastUpdate"] = fix.Timestamp.UnixMilli()
	}
	if err := fs.client.NewRef("/").Update(ctx, updates); err != nil {
		return fmt.Errorf("error writing %d positions: %w", len(fixes), err)
	}
	return nil
}

// WriteDeviceStatus stores derived IoT statuses and their last ping times
func (fs *FirebaseService) WriteDeviceStatus(ctx context.Context, devices []DeviceHealth) error {
	if len(devices) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(devices)*3)
	for _, d := range devices {
		base := pathDevices + "/" + d.DeviceID
		updates[base+"/status"] = string(d.Status)
		updates[base+"/lastPing"] = d.LastPing.UnixMilli()
		if d.Firmware != "" {
			updates[base+"/firmware"] = d.Firmware
		}
	}
	if err := fs.client.NewRef("/").Update(ctx, updates); err != nil {
		return fmt.Errorf("error writing device status: %w", err)
	}
	return nil
}

// RecordActivation increments the activation counter atomically
func (fs *FirebaseService) RecordActivation(ctx context.Context) error {
	ref := fs.client.NewRef(pathStats + "/totalActivations")
	err := ref.Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var current float64
		if err := tn.Unmarshal(&current); err != nil {
			return nil, err
		}
		return current + 1, nil
	})
	if err != nil {
		return fmt.Errorf("error incrementing activations: %w", err)
	}
	return nil
}

type responseStats struct {
	AvgResponseTime    float64 `json:"avgResponseTime"`
	CompletedResponses float64 `json:"completedResponses"`
}

// RecordResponse folds one completed response duration into the running average
func (fs *FirebaseService) RecordResponse(ctx context.Context, elapsed time.Duration) error {
	ref := fs.client.NewRef(pathStats)
	err := ref.Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var current map[string]interface{}
		if err := tn.Unmarshal(&current); err != nil {
			return nil, err
		}
		if current == nil {
			current = make(map[string]interface{})
		}
		avg, _ := numberField(current, "avgResponseTime")
		n, _ := numberField(current, "completedResponses")
		next := foldAverage(responseStats{AvgResponseTime: avg, CompletedResponses: n}, elapsed)
		current["avgResponseTime"] = next.AvgResponseTime
		current["completedResponses"] = next.CompletedResponses
		return current, nil
	})
	if err != nil {
		return fmt.Errorf("error recording response time: %w", err)
	}
	return nil
}

// foldAverage adds one sample, in seconds, to a running mean
func foldAverage(s responseStats, elapsed time.Duration) responseStats {
	n := s.CompletedResponses + 1
	return responseStats{
		AvgResponseTime:    s.AvgResponseTime + (elapsed.Seconds()-s.AvgResponseTime)/n,
		CompletedResponses: n,
	}
}

// PushLog appends an activity entry under logs
func (fs *FirebaseService) PushLog(ctx context.Context, entry models.LogEntry) error {
	_, err := fs.client.NewRef(pathLogs).Push(ctx, map[string]interface{}{
		"time":    entry.Time.UTC().Format(time.RFC3339Nano),
		"message": entry.Message,
		"type":    string(entry.Type),
	})
	if err != nil {
		return fmt.Errorf("error pushing log entry: %w", err)
	}
	return nil
}

// Close closes the Firebase connection
func (fs *FirebaseService) Close() error {
	fs.logger.Info("Closing Firebase service")
	// Firebase client doesn't require explicit closing but we log it
	return nil
}
