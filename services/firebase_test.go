package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greenwave/geo"
	"greenwave/models"
)

func TestDecodeAmbulances(t *testing.T) {
	d := recordDecoder{logger: zap.NewNop()}

	got := d.ambulances(map[string]interface{}{
		"AMB-102": map[string]interface{}{"lat": 28.5, "lng": 77.3, "status": "teleporting"},
		"AMB-101": map[string]interface{}{
			"name": "Alpha", "lat": 28.6, "lng": 77.2, "status": "en-route",
			"destination": "City General", "lastUpdate": float64(1700000000000),
		},
		"AMB-103": map[string]interface{}{"name": "No fix", "lat": 28.6},
		"junk":    "not a record",
	})

	require.Len(t, got, 2, "records without coordinates are dropped")
	assert.Equal(t, "AMB-101", got[0].ID, "ordered by key")
	assert.Equal(t, "Alpha", got[0].Name)
	assert.Equal(t, models.AmbulanceEnRoute, got[0].Status)
	assert.Equal(t, "City General", got[0].Destination)
	assert.Equal(t, time.UnixMilli(1700000000000), got[0].LastUpdate)

	assert.Equal(t, "AMB-102", got[1].Name, "name defaults to the key")
	assert.Equal(t, models.AmbulanceIdle, got[1].Status)
	assert.True(t, got[1].LastUpdate.IsZero())
}

func TestDecodeHospitalsAndSignals(t *testing.T) {
	d := recordDecoder{logger: zap.NewNop()}

	hospitals := d.hospitals(map[string]interface{}{
		"HSP-01": map[string]interface{}{"name": "City General", "lat": 28.62, "lng": 77.22, "beds": float64(12), "er": true},
		"HSP-02": map[string]interface{}{"lat": 28.65, "lng": 77.23, "beds": float64(-3)},
	})
	require.Len(t, hospitals, 2)
	assert.True(t, hospitals[0].Eligible())
	assert.Equal(t, 0, hospitals[1].Beds)
	assert.False(t, hospitals[1].ER)

	signals := d.signals(map[string]interface{}{
		"SIG-01": map[string]interface{}{"lat": 28.6, "lng": 77.2, "state": "green"},
		"SIG-02": map[string]interface{}{"lat": 28.6, "lng": 77.2, "state": "blinking"},
	})
	require.Len(t, signals, 2)
	assert.Equal(t, models.SignalGreen, signals[0].State)
	assert.Equal(t, models.SignalRed, signals[1].State)
}

func TestDecodeZonesAndDevices(t *testing.T) {
	d := recordDecoder{logger: zap.NewNop()}

	zones := d.zones(map[string]interface{}{
		"north": map[string]interface{}{"name": "North", "lat": 28.65, "lng": 77.2, "radius": float64(3000), "active": true},
		"south": map[string]interface{}{"lat": 28.5, "lng": 77.2},
	})
	require.Len(t, zones, 2, "zones are kept without coordinates")
	assert.True(t, zones[0].HasFootprint())
	assert.Equal(t, &geo.Point{Latitude: 28.65, Longitude: 77.2}, zones[0].Center)
	assert.False(t, zones[1].HasFootprint())
	assert.Equal(t, defaultZoneColor, zones[1].Color)

	devices := d.devices(map[string]interface{}{
		"IOT-01": map[string]interface{}{"lat": 28.6, "lng": 77.2, "type": "camera", "status": "warning", "firmware": "2.1"},
		"IOT-02": map[string]interface{}{"lat": 28.6, "lng": 77.2, "type": "toaster"},
	})
	require.Len(t, devices, 2)
	assert.Equal(t, models.DeviceCamera, devices[0].Type)
	assert.Equal(t, models.DeviceWarning, devices[0].Status)
	assert.Equal(t, "2.1", devices[0].Firmware)
	assert.Equal(t, models.DeviceSensor, devices[1].Type)
	assert.Equal(t, models.DeviceOffline, devices[1].Status)
	assert.Equal(t, defaultFirmware, devices[1].Firmware)
}

func TestDecodeIncidentsAndMessages(t *testing.T) {
	d := recordDecoder{logger: zap.NewNop()}

	incidents := d.incidents(map[string]interface{}{
		"INC-001": map[string]interface{}{
			"title": "Multi-vehicle accident", "severity": "high", "status": "resolved",
			"createdAt": float64(1700000000000), "closedAt": float64(1700001800000), "ambulanceId": "AMB-104",
		},
		"INC-002": map[string]interface{}{"severity": "extreme", "status": "lost", "createdAt": float64(1700003600000)},
	})
	require.Len(t, incidents, 2)
	assert.Equal(t, "INC-002", incidents[0].ID, "newest first")
	assert.Equal(t, "INC-002", incidents[0].Title, "title defaults to the key")
	assert.Equal(t, models.SeverityMedium, incidents[0].Severity)
	assert.Equal(t, models.IncidentOpen, incidents[0].Status)
	assert.Nil(t, incidents[0].ClosedAt)
	require.NotNil(t, incidents[1].ClosedAt)
	assert.Equal(t, time.UnixMilli(1700001800000), *incidents[1].ClosedAt)
	assert.Equal(t, "AMB-104", incidents[1].AmbulanceID)

	messages := d.messages(map[string]interface{}{
		"-b": map[string]interface{}{"from": "CONTROL", "text": "Copy", "ts": float64(2000)},
		"-a": map[string]interface{}{"from": "AMB-101", "text": "En route", "ts": float64(1000)},
		"-c": map[string]interface{}{"from": "AMB-101", "ts": float64(3000)},
	})
	require.Len(t, messages, 2, "messages without text are skipped")
	assert.Equal(t, "En route", messages[0].Text)
	assert.Equal(t, "CONTROL", messages[1].From)
}

func TestChangeTrackerDeliversOnlyChanges(t *testing.T) {
	tracker := newChangeTracker(recordDecoder{logger: zap.NewNop()})

	raw := map[string]interface{}{
		pathEmergency:  true,
		pathAmbulances: map[string]interface{}{"AMB-101": map[string]interface{}{"lat": 28.6, "lng": 77.2}},
		pathHospitals:  nil,
	}

	first := tracker.update(raw)
	require.NotNil(t, first.Emergency)
	assert.True(t, *first.Emergency)
	assert.Len(t, first.Ambulances, 1)
	assert.NotNil(t, first.Hospitals, "a missing collection is delivered as empty")
	assert.Empty(t, first.Hospitals)

	assert.True(t, tracker.update(raw).Empty(), "nothing changed")

	raw[pathAmbulances] = map[string]interface{}{"AMB-101": map[string]interface{}{"lat": 28.7, "lng": 77.2}}
	next := tracker.update(raw)
	assert.Nil(t, next.Emergency)
	assert.Nil(t, next.Hospitals)
	require.Len(t, next.Ambulances, 1)
	assert.Equal(t, 28.7, next.Ambulances[0].Position.Latitude)
}

func TestFoldAverage(t *testing.T) {
	s := foldAverage(responseStats{}, 60*time.Second)
	assert.Equal(t, responseStats{AvgResponseTime: 60, CompletedResponses: 1}, s)

	s = foldAverage(s, 120*time.Second)
	assert.InDelta(t, 90, s.AvgResponseTime, 1e-9)
	assert.Equal(t, float64(2), s.CompletedResponses)
}
