package models

import (
	"time"

	"greenwave/geo"
)

// EmergencyRoute ties an ambulance to a destination hospital for one emergency episode.
// Positions are captured when the route is created and are not refreshed from later snapshots.
type EmergencyRoute struct {
	EpisodeID         string       `json:"episode_id"`
	AmbulanceID       string       `json:"ambulance_id"`
	AmbulancePosition geo.Point    `json:"ambulance_position"`
	HospitalID        string       `json:"hospital_id"`
	HospitalPosition  geo.Point    `json:"hospital_position"`
	HospitalName      string       `json:"hospital_name"`
	Waypoints         []geo.Point  `json:"waypoints,omitempty"`
	Trigger           RouteTrigger `json:"trigger"`
	CreatedAt         time.Time    `json:"created_at"`
}

// RouteTrigger records what created a route
type RouteTrigger string

const (
	TriggerEmergency RouteTrigger = "emergency"
	TriggerDispatch  RouteTrigger = "dispatch"
)

// RouteEndReason records why a route was cleared
type RouteEndReason string

const (
	EndCancelled RouteEndReason = "cancelled"
	EndCompleted RouteEndReason = "completed"
	EndReplaced  RouteEndReason = "replaced"
)

// Episode is the persisted history record of one route lifetime
type Episode struct {
	ID           string         `json:"id"`
	AmbulanceID  string         `json:"ambulance_id"`
	HospitalID   string         `json:"hospital_id"`
	HospitalName string         `json:"hospital_name"`
	DistanceKm   float64        `json:"distance_km"`
	ETAMinutes   int            `json:"eta_minutes"`
	Trigger      RouteTrigger   `json:"trigger"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	EndReason    RouteEndReason `json:"end_reason,omitempty"`
}

// RouteEventType identifies route lifecycle events on the command bus
type RouteEventType string

const (
	RouteCreated RouteEventType = "route_created"
	RouteCleared RouteEventType = "route_cleared"
)

// RouteEvent is published whenever a route is created or cleared
type RouteEvent struct {
	Event          RouteEventType `json:"event"`
	EpisodeID      string         `json:"episode_id"`
	AmbulanceID    string         `json:"ambulance_id"`
	HospitalID     string         `json:"hospital_id"`
	HospitalName   string         `json:"hospital_name"`
	DistanceKm     float64        `json:"distance_km"`
	ETAMinutes     int            `json:"eta_min"`
	OnRouteSignals []string       `json:"on_route_signals,omitempty"`
	Reason         RouteEndReason `json:"reason,omitempty"`
	At             time.Time      `json:"at"`
}
