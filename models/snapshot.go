package models

import (
	"time"

	"greenwave/geo"
)

// Snapshot is the complete current view of every entity collection.
// Collections are ordered by record key.
type Snapshot struct {
	Ambulances []Ambulance     `json:"ambulances"`
	Hospitals  []Hospital      `json:"hospitals"`
	Signals    []TrafficSignal `json:"signals"`
	Zones      []Zone          `json:"zones"`
	Devices    []IoTDevice     `json:"devices"`
	Emergency  bool            `json:"emergency"`
}

// SnapshotUpdate carries the collections that changed since the previous delivery.
// A nil field means "unchanged"; a non-nil empty slice means the collection is now empty.
type SnapshotUpdate struct {
	Ambulances []Ambulance
	Hospitals  []Hospital
	Signals    []TrafficSignal
	Zones      []Zone
	Devices    []IoTDevice
	Emergency  *bool
}

// Empty reports whether the update carries no collection
func (u SnapshotUpdate) Empty() bool {
	return u.Ambulances == nil && u.Hospitals == nil && u.Signals == nil &&
		u.Zones == nil && u.Devices == nil && u.Emergency == nil
}

// Apply returns s with every collection present in u replaced wholesale
func (s Snapshot) Apply(u SnapshotUpdate) Snapshot {
	if u.Ambulances != nil {
		s.Ambulances = u.Ambulances
	}
	if u.Hospitals != nil {
		s.Hospitals = u.Hospitals
	}
	if u.Signals != nil {
		s.Signals = u.Signals
	}
	if u.Zones != nil {
		s.Zones = u.Zones
	}
	if u.Devices != nil {
		s.Devices = u.Devices
	}
	if u.Emergency != nil {
		s.Emergency = *u.Emergency
	}
	return s
}

// FindAmbulance returns the ambulance with the given id
func (s Snapshot) FindAmbulance(id string) (Ambulance, bool) {
	for _, a := range s.Ambulances {
		if a.ID == id {
			return a, true
		}
	}
	return Ambulance{}, false
}

// FindHospital returns the hospital with the given id
func (s Snapshot) FindHospital(id string) (Hospital, bool) {
	for _, h := range s.Hospitals {
		if h.ID == id {
			return h, true
		}
	}
	return Hospital{}, false
}

// PositionFix is a GPS fix reported by an ambulance crew device
type PositionFix struct {
	AmbulanceID string    `json:"ambulance_id"`
	Position    geo.Point `json:"position"`
	SpeedKmh    float64   `json:"speed_kmh"`
	Heading     float64   `json:"heading"`
	Timestamp   time.Time `json:"timestamp"`
}

// DevicePing is a liveness message from a roadside device
type DevicePing struct {
	DeviceID  string    `json:"device_id"`
	Firmware  string    `json:"firmware,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LogType classifies activity log entries
type LogType string

const (
	LogNormal    LogType = "normal"
	LogEmergency LogType = "emergency"
	LogWarning   LogType = "warning"
)

// LogEntry is an activity line written to the shared log path
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Type    LogType   `json:"type"`
}
