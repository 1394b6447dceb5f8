package models

import (
	"time"

	"greenwave/geo"
)

// AmbulanceStatus represents the operational status of an ambulance unit
type AmbulanceStatus string

const (
	AmbulanceIdle    AmbulanceStatus = "idle"
	AmbulanceEnRoute AmbulanceStatus = "en-route"
	AmbulanceOnScene AmbulanceStatus = "on-scene"
)

// Valid reports whether s is a known status
func (s AmbulanceStatus) Valid() bool {
	switch s {
	case AmbulanceIdle, AmbulanceEnRoute, AmbulanceOnScene:
		return true
	}
	return false
}

// SignalState represents the light state of a traffic signal
type SignalState string

const (
	SignalRed       SignalState = "red"
	SignalGreen     SignalState = "green"
	SignalEmergency SignalState = "emergency"
)

// Valid reports whether s is a known state
func (s SignalState) Valid() bool {
	switch s {
	case SignalRed, SignalGreen, SignalEmergency:
		return true
	}
	return false
}

// DeviceStatus represents the connectivity status of an IoT device
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceWarning DeviceStatus = "warning"
)

// Valid reports whether s is a known status
func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceOnline, DeviceOffline, DeviceWarning:
		return true
	}
	return false
}

// DeviceType represents the kind of roadside IoT device
type DeviceType string

const (
	DeviceSignalController DeviceType = "signal_controller"
	DeviceSensor           DeviceType = "sensor"
	DeviceCamera           DeviceType = "camera"
	DeviceGateway          DeviceType = "gateway"
)

// Valid reports whether t is a known device type
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceSignalController, DeviceSensor, DeviceCamera, DeviceGateway:
		return true
	}
	return false
}

// Ambulance represents an ambulance unit as last seen in the realtime database
type Ambulance struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Position    geo.Point       `json:"position"`
	Status      AmbulanceStatus `json:"status"`
	Destination string          `json:"destination,omitempty"`
	Zone        string          `json:"zone,omitempty"`
	LastUpdate  time.Time       `json:"last_update"`
}

// Hospital represents a receiving hospital
type Hospital struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Position geo.Point `json:"position"`
	Beds     int       `json:"beds"`
	ER       bool      `json:"er"`
	Phone    string    `json:"phone"`
	Zone     string    `json:"zone,omitempty"`
}

// Eligible reports whether the hospital can take an emergency: ER available and at least one bed
func (h Hospital) Eligible() bool {
	return h.ER && h.Beds > 0
}

// TrafficSignal represents a signalized junction
type TrafficSignal struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Position geo.Point   `json:"position"`
	State    SignalState `json:"state"`
	Zone     string      `json:"zone,omitempty"`
}

// Zone is a named grouping of entities, optionally with a circular footprint
type Zone struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Color  string     `json:"color"`
	Active bool       `json:"active"`
	Center *geo.Point `json:"center,omitempty"`
	Radius float64    `json:"radius_m,omitempty"`
}

// HasFootprint reports whether the zone can be drawn as a circle
func (z Zone) HasFootprint() bool {
	return z.Center != nil && z.Radius > 0
}

// IoTDevice represents a roadside device reporting to the platform
type IoTDevice struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     DeviceType   `json:"type"`
	Status   DeviceStatus `json:"status"`
	Position geo.Point    `json:"position"`
	Zone     string       `json:"zone,omitempty"`
	LastPing time.Time    `json:"last_ping"`
	Firmware string       `json:"firmware"`
}
