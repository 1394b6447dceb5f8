package services

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"greenwave/geo"
	"greenwave/models"
)

const (
	defaultZoneColor = "#6366f1"
	defaultFirmware  = "1.0"
)

// recordDecoder turns raw RTDB maps into entities. Records without usable coordinates are dropped.
type recordDecoder struct {
	logger *zap.Logger
}

// sortedRecords yields the object records of a collection ordered by key
func sortedRecords(raw map[string]interface{}, fn func(key string, rec map[string]interface{})) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if rec, ok := raw[k].(map[string]interface{}); ok {
			fn(k, rec)
		}
	}
}

func stringField(rec map[string]interface{}, key, def string) string {
	if v, ok := rec[key].(string); ok && v != "" {
		return v
	}
	return def
}

func numberField(rec map[string]interface{}, key string) (float64, bool) {
	switch v := rec[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func boolField(rec map[string]interface{}, key string) bool {
	v, _ := rec[key].(bool)
	return v
}

// millisField reads a milliseconds-since-epoch timestamp; zero time when absent
func millisField(rec map[string]interface{}, key string) time.Time {
	if ms, ok := numberField(rec, key); ok && ms > 0 {
		return time.UnixMilli(int64(ms))
	}
	return time.Time{}
}

func positionField(rec map[string]interface{}) (geo.Point, bool) {
	lat, latOk := numberField(rec, "lat")
	lng, lngOk := numberField(rec, "lng")
	if !latOk || !lngOk {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: lat, Longitude: lng}, true
}

func (d recordDecoder) dropped(collection, key string) {
	d.logger.Warn("Dropping record without coordinates",
		zap.String("collection", collection),
		zap.String("record_id", key),
	)
}

func (d recordDecoder) ambulances(raw map[string]interface{}) []models.Ambulance {
	out := make([]models.Ambulance, 0, len(raw))
	sortedRecords(raw, func(key string, rec map[string]interface{}) {
		pos, ok := positionField(rec)
		if !ok {
			d.dropped(pathAmbulances, key)
			return
		}
		status := models.AmbulanceStatus(stringField(rec, "status", string(models.AmbulanceIdle)))
		if !status.Valid() {
			status = models.AmbulanceIdle
		}
		out = append(out, models.Ambulance{
			ID:          key,
			Name:        stringField(rec, "name", key),
			Position:    pos,
			Status:      status,
			Destination: stringField(rec, "destination", ""),
			Zone:        stringField(rec, "zone", ""),
			LastUpdate:  millisField(rec, "lastUpdate"),
		})
	})
	return out
}

func (d recordDecoder) hospitals(raw map[string]interface{}) []models.Hospital {
	out := make([]models.Hospital, 0, len(raw))
	sortedRecords(raw, func(key string, rec map[string]interface{}) {
		pos, ok := positionField(rec)
		if !ok {
			d.dropped(pathHospitals, key)
			return
		}
		beds, _ := numberField(rec, "beds")
		if beds < 0 {
			beds = 0
		}
		out = append(out, models.Hospital{
			ID:       key,
			Name:     stringField(rec, "name", key),
			Position: pos,
			Beds:     int(beds),
			ER:       boolField(rec, "er"),
			Phone:    stringField(rec, "phone", ""),
			Zone:     stringField(rec, "zone", ""),
		})
	})
	return out
}

func (d recordDecoder) signals(raw map[string]interface{}) []models.TrafficSignal {
	out := make([]models.TrafficSignal, 0, len(raw))
	sortedRecords(raw, func(key string, rec map[string]interface{}) {
		pos, ok := positionField(rec)
		if !ok {
			d.dropped(pathSignals, key)
			return
		}
		state := models.SignalState(stringField(rec, "state", string(models.SignalRed)))
		if !state.Valid() {
			state = models.SignalRed
		}
		out = append(out, models.TrafficSignal{
			ID:       key,
			Name:     stringField(rec, "name", key),
			Position: pos,
			State:    state,
			Zone:     stringField(rec, "zone", ""),
		})
	})
	return out
}

func (d recordDecoder) zones(raw map[string]interface{}) []models.Zone {
	out := make([]models.Zone, 0, len(raw))
	sortedRecords(raw, func(key string, rec map[string]interface{}) {
		z := models.Zone{
			ID:     key,
			Name:   stringField(rec, "name", key),
			Color:  stringField(rec, "color", defaultZoneColor),
			Active: boolField(rec, "active"),
		}
		pos, hasPos := positionField(rec)
		radius, hasRadius := numberField(rec, "radius")
		if hasPos && hasRadius && radius > 0 {
			z.Center = &pos
			z.Radius = radius
		}
		out = append(out, z)
	})
	return out
}

func (d recordDecoder) devices(raw map[string]interface{}) []models.IoTDevice {
	out := make([]models.IoTDevice, 0, len(raw))
	sortedRecords(raw, func(key string, rec map[string]interface{}) {
		pos, ok := positionField(rec)
		if !ok {
			d.dropped(pathDevices, key)
			return
		}
		typ := models.DeviceType(stringField(rec, "type", string(models.DeviceSensor)))
		if !typ.Valid() {
			typ = models.DeviceSensor
		}
		status := models.DeviceStatus(stringField(rec, "status", string(models.DeviceOffline)))
		if !status.Valid() {
			status = models.DeviceOffline
		}
		out = append(out, models.IoTDevice{
			ID:       key,
			Name:     stringField(rec, "name", key),
			Type:     typ,
			Status:   status,
			Position: pos,
			Zone:     stringField(rec, "zone", ""),
			LastPing: millisField(rec, "lastPing"),
			Firmware: stringField(rec, "firmware", defaultFirmware),
		})
	})
	return out
}

// incidents decodes the incident collection, newest first
func (d recordDecoder) incidents(raw map[string]interface{}) []models.Incident {
	out := make([]models.Incident, 0, len(raw))
	sortedRecords(raw, func(key string, rec map[string]interface{}) {
		severity := models.IncidentSeverity(stringField(rec, "severity", string(models.SeverityMedium)))
		if !severity.Valid() {
			severity = models.SeverityMedium
		}
		status := models.IncidentStatus(stringField(rec, "status", string(models.IncidentOpen)))
		if !status.Valid() {
			status = models.IncidentOpen
		}
		inc := models.Incident{
			ID:          key,
			Title:       stringField(rec, "title", key),
			Description: stringField(rec, "description", ""),
			Zone:        stringField(rec, "zone", ""),
			Severity:    severity,
			Status:      status,
			AmbulanceID: stringField(rec, "ambulanceId", ""),
			HospitalID:  stringField(rec, "hospitalId", ""),
			CreatedAt:   millisField(rec, "createdAt"),
		}
		if closed := millisField(rec, "closedAt"); !closed.IsZero() {
			inc.ClosedAt = &closed
		}
		out = append(out, inc)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// messages decodes a comms channel, oldest first. Empty messages are skipped.
func (d recordDecoder) messages(raw map[string]interface{}) []models.Message {
	out := make([]models.Message, 0, len(raw))
	sortedRecords(raw, func(key string, rec map[string]interface{}) {
		text := stringField(rec, "text", "")
		if text == "" {
			return
		}
		out = append(out, models.Message{
			From: stringField(rec, "from", ""),
			Text: text,
			Time: millisField(rec, "ts"),
		})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
