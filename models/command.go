package models

import (
	"encoding/json"
	"fmt"

	"greenwave/geo"
)

// CommandType identifies a dispatch command
type CommandType string

const (
	CmdRequestEmergency CommandType = "request_emergency"
	CmdCancelEmergency  CommandType = "cancel_emergency"
	CmdStartDispatch    CommandType = "start_dispatch"
	CmdCompleteDispatch CommandType = "complete_dispatch"
	CmdTrack            CommandType = "track"
	CmdZoneFilter       CommandType = "zone_filter"
	CmdUserLocation     CommandType = "user_location"
	CmdAmbulanceStatus  CommandType = "ambulance_status"
	CmdZoneActive       CommandType = "zone_active"
)

// Command is an operator or crew action delivered over the command bus or HTTP.
// EncodedPolyline carries waypoints as a Google encoded polyline; Waypoints wins when both are set.
type Command struct {
	Type            CommandType     `json:"type"`
	AmbulanceID     string          `json:"ambulance_id,omitempty"`
	HospitalID      string          `json:"hospital_id,omitempty"`
	Zone            string          `json:"zone,omitempty"`
	Lat             *float64        `json:"lat,omitempty"`
	Lng             *float64        `json:"lng,omitempty"`
	Waypoints       [][2]float64    `json:"waypoints,omitempty"`
	EncodedPolyline string          `json:"encoded_polyline,omitempty"`
	Status          AmbulanceStatus `json:"status,omitempty"`
	Active          *bool           `json:"active,omitempty"`
}

// WaypointPoints converts the [lat,lng] pairs, or the encoded polyline, to points
func (c Command) WaypointPoints() []geo.Point {
	if len(c.Waypoints) == 0 {
		if c.EncodedPolyline == "" {
			return nil
		}
		points, err := geo.DecodePolyline(c.EncodedPolyline)
		if err != nil {
			return nil
		}
		return points
	}
	points := make([]geo.Point, len(c.Waypoints))
	for i, w := range c.Waypoints {
		points[i] = geo.Point{Latitude: w[0], Longitude: w[1]}
	}
	return points
}

// Position returns the command coordinates when both are present
func (c Command) Position() (geo.Point, bool) {
	if c.Lat == nil || c.Lng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *c.Lat, Longitude: *c.Lng}, true
}

// ParseCommand decodes and validates a JSON command body
func ParseCommand(body []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Validate checks the type and the fields it requires
func (c Command) Validate() error {
	if c.EncodedPolyline != "" && len(c.Waypoints) == 0 {
		if _, err := geo.DecodePolyline(c.EncodedPolyline); err != nil {
			return fmt.Errorf("invalid command %s: %w", c.Type, err)
		}
	}

	switch c.Type {
	case CmdRequestEmergency, CmdCancelEmergency, CmdCompleteDispatch, CmdTrack, CmdZoneFilter:
	case CmdAmbulanceStatus:
		if c.AmbulanceID == "" || !c.Status.Valid() {
			return fmt.Errorf("invalid command %s: ambulance_id and a status of idle, en-route or on-scene are required", c.Type)
		}
	case CmdZoneActive:
		if c.Zone == "" || c.Active == nil {
			return fmt.Errorf("invalid command %s: zone and active are required", c.Type)
		}
	case CmdStartDispatch:
		if c.AmbulanceID == "" || c.HospitalID == "" {
			return fmt.Errorf("invalid command %s: ambulance_id and hospital_id are required", c.Type)
		}
	case CmdUserLocation:
		if (c.Lat == nil) != (c.Lng == nil) {
			return fmt.Errorf("invalid command %s: lat and lng must be set together", c.Type)
		}
	default:
		return fmt.Errorf("invalid command: unknown type %q", c.Type)
	}
	return nil
}
