package routing

import (
	"math"
	"time"

	"greenwave/geo"
	"greenwave/models"
)

// Defaults for the straight-line route heuristics
const (
	DefaultMinutesPerKm   = 3.0   // urban speed approximation, not traffic-aware
	DefaultCurveOffsetDeg = 0.003 // nudge applied to the synthetic midpoint so the line renders as a curve
)

// Options tunes the route model heuristics
type Options struct {
	OnRouteThresholdKm float64
	MinutesPerKm       float64
	CurveOffsetDeg     float64
}

// DefaultOptions returns the documented heuristics
func DefaultOptions() Options {
	return Options{
		OnRouteThresholdKm: geo.DefaultNearThresholdKm,
		MinutesPerKm:       DefaultMinutesPerKm,
		CurveOffsetDeg:     DefaultCurveOffsetDeg,
	}
}

// WithDefaults fills every zero field from DefaultOptions
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.OnRouteThresholdKm <= 0 {
		o.OnRouteThresholdKm = def.OnRouteThresholdKm
	}
	if o.MinutesPerKm <= 0 {
		o.MinutesPerKm = def.MinutesPerKm
	}
	if o.CurveOffsetDeg == 0 {
		o.CurveOffsetDeg = def.CurveOffsetDeg
	}
	return o
}

// Model is the derived geometry of an active route
type Model struct {
	Polyline       []geo.Point `json:"polyline"`
	Encoded        string      `json:"encoded_polyline"`
	DistanceKm     float64     `json:"distance_km"`
	ETAMinutes     int         `json:"eta_minutes"`
	OnRouteSignals []string    `json:"on_route_signals"`
	LabelPosition  geo.Point   `json:"label_position"`
}

// IsOnRoute reports whether the signal id was classified on-route
func (m Model) IsOnRoute(signalID string) bool {
	for _, id := range m.OnRouteSignals {
		if id == signalID {
			return true
		}
	}
	return false
}

// SelectDestination picks the hospital an ambulance at origin should head to.
//
// Only eligible hospitals (ER available, beds > 0) are considered and the nearest wins, first in input
// order on ties. When none is eligible the first hospital of the input is returned as a degraded
// fallback; nil is returned only for an empty input.
func SelectDestination(origin geo.Point, hospitals []models.Hospital) *models.Hospital {
	var nearest *models.Hospital
	minDist := math.Inf(1)

	for i := range hospitals {
		h := &hospitals[i]
		if !h.Eligible() {
			continue
		}
		if d := geo.DistanceKm(origin, h.Position); d < minDist {
			minDist = d
			nearest = h
		}
	}

	if nearest == nil && len(hospitals) > 0 {
		return &hospitals[0]
	}
	return nearest
}

// PickAmbulance chooses the unit an operator activation should route: the selected unit when it is
// present, otherwise the first en-route unit, otherwise the first unit.
func PickAmbulance(ambulances []models.Ambulance, selectedID string) *models.Ambulance {
	if selectedID != "" {
		for i := range ambulances {
			if ambulances[i].ID == selectedID {
				return &ambulances[i]
			}
		}
		return nil
	}

	for i := range ambulances {
		if ambulances[i].Status == models.AmbulanceEnRoute {
			return &ambulances[i]
		}
	}
	if len(ambulances) > 0 {
		return &ambulances[0]
	}
	return nil
}

// NewEmergencyRoute captures the ambulance and hospital as they are now
func NewEmergencyRoute(amb models.Ambulance, hosp models.Hospital, waypoints []geo.Point, trigger models.RouteTrigger) models.EmergencyRoute {
	return models.EmergencyRoute{
		AmbulanceID:       amb.ID,
		AmbulancePosition: amb.Position,
		HospitalID:        hosp.ID,
		HospitalPosition:  hosp.Position,
		HospitalName:      hosp.Name,
		Waypoints:         waypoints,
		Trigger:           trigger,
		CreatedAt:         time.Now(),
	}
}

// Polyline returns the line to draw for a route: the waypoints verbatim when present, otherwise
// ambulance, offset midpoint and hospital.
func Polyline(route models.EmergencyRoute, curveOffsetDeg float64) []geo.Point {
	if len(route.Waypoints) > 0 {
		return route.Waypoints
	}

	mid := geo.Midpoint(route.AmbulancePosition, route.HospitalPosition)
	return []geo.Point{
		route.AmbulancePosition,
		{Latitude: mid.Latitude + curveOffsetDeg, Longitude: mid.Longitude - curveOffsetDeg},
		route.HospitalPosition,
	}
}

// ETAMinutes converts a straight-line distance to whole minutes, never less than one
func ETAMinutes(distanceKm, minutesPerKm float64) int {
	return int(math.Round(math.Max(1, distanceKm*minutesPerKm)))
}

// BuildRoute derives the polyline, distance, ETA and on-route signals of a route.
// Distance is ambulance to hospital in a straight line, regardless of any waypoint detour.
func BuildRoute(route models.EmergencyRoute, signals []models.TrafficSignal, opts Options) Model {
	line := Polyline(route, opts.CurveOffsetDeg)
	dist := geo.DistanceKm(route.AmbulancePosition, route.HospitalPosition)

	onRoute := make([]string, 0)
	for _, sig := range signals {
		if geo.IsNearPolyline(sig.Position, line, opts.OnRouteThresholdKm) {
			onRoute = append(onRoute, sig.ID)
		}
	}

	return Model{
		Polyline:       line,
		Encoded:        geo.EncodePolyline(line),
		DistanceKm:     dist,
		ETAMinutes:     ETAMinutes(dist, opts.MinutesPerKm),
		OnRouteSignals: onRoute,
		LabelPosition:  line[len(line)/2],
	}
}
