package overlay

import (
	"time"

	"greenwave/geo"
	"greenwave/routing"
)

// Element kinds
const (
	KindUser          = "user"
	KindAmbulance     = "ambulance"
	KindHospital      = "hospital"
	KindSignal        = "signal"
	KindDevice        = "iot"
	KindZone          = "zone"
	KindUserAccuracy  = "user_accuracy"
	KindSignalGlow    = "signal_glow"
	KindFocusOuter    = "focus_outer"
	KindFocusInner    = "focus_inner"
	KindRouteBackdrop = "route_background"
	KindRouteDashed   = "route_dashed"
	KindRouteGlow     = "route_glow"
)

// Camera modes
const (
	CameraFitBounds = "fit_bounds"
	CameraFlyTo     = "fly_to"
)

// Palette
const (
	ColorRed       = "#ef4444"
	ColorAmber     = "#f59e0b"
	ColorGreen     = "#22c55e"
	ColorBlue      = "#3b82f6"
	ColorDeepBlue  = "#2563eb"
	ColorIndigo    = "#6366f1"
	ColorLavender  = "#818cf8"
	ColorGray      = "#6b7280"
	ColorWhite     = "#ffffff"
	ColorRouteGlow = "#ff6b6b"
)

// Marker is an icon anchored at a position. Size is in pixels.
type Marker struct {
	Kind        string         `json:"kind"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Position    geo.Point      `json:"position"`
	Color       string         `json:"color"`
	Stroke      string         `json:"stroke"`
	Weight      int            `json:"weight"`
	Size        int            `json:"size"`
	Glow        bool           `json:"glow,omitempty"`
	ZIndex      int            `json:"z_index,omitempty"`
	Highlighted bool           `json:"highlighted,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Circle is a geographic circle with a radius in meters
type Circle struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name,omitempty"`
	Center      geo.Point `json:"center"`
	RadiusM     float64   `json:"radius_m"`
	Color       string    `json:"color"`
	FillColor   string    `json:"fill_color"`
	FillOpacity float64   `json:"fill_opacity"`
	Weight      int       `json:"weight"`
	DashArray   string    `json:"dash_array,omitempty"`
	Active      bool      `json:"active,omitempty"`
}

// Ring is a screen-space circle with a radius in pixels
type Ring struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	Position    geo.Point `json:"position"`
	RadiusPx    int       `json:"radius_px"`
	Color       string    `json:"color"`
	FillColor   string    `json:"fill_color"`
	FillOpacity float64   `json:"fill_opacity"`
	Weight      int       `json:"weight"`
	DashArray   string    `json:"dash_array,omitempty"`
}

// Polyline is a styled line through points
type Polyline struct {
	Kind      string      `json:"kind"`
	Points    []geo.Point `json:"points"`
	Color     string      `json:"color"`
	Weight    int         `json:"weight"`
	Opacity   float64     `json:"opacity"`
	DashArray string      `json:"dash_array,omitempty"`
}

// Label annotates the active route
type Label struct {
	Position    geo.Point `json:"position"`
	DistanceKm  float64   `json:"distance_km"`
	ETAMinutes  int       `json:"eta_minutes"`
	Destination string    `json:"destination"`
	Lines       []string  `json:"lines"`
}

// Camera is the single viewport intent of a frame
type Camera struct {
	Mode     string      `json:"mode"`
	Bounds   *geo.Bounds `json:"bounds,omitempty"`
	Center   *geo.Point  `json:"center,omitempty"`
	Zoom     int         `json:"zoom,omitempty"`
	Duration float64     `json:"duration_s"`
}

// Frame is one complete redraw of the overlay. Every element of the previous frame is discarded.
type Frame struct {
	Generation uint64         `json:"generation"`
	RenderedAt time.Time      `json:"rendered_at"`
	Emergency  bool           `json:"emergency"`
	ZoneFilter string         `json:"zone_filter,omitempty"`
	Markers    []Marker       `json:"markers"`
	Circles    []Circle       `json:"circles"`
	Rings      []Ring         `json:"rings"`
	Polylines  []Polyline     `json:"polylines"`
	Label      *Label         `json:"label,omitempty"`
	Camera     *Camera        `json:"camera,omitempty"`
	Route      *routing.Model `json:"route,omitempty"`
}

// MarkersOf returns the markers of one kind in draw order
func (f Frame) MarkersOf(kind string) []Marker {
	var out []Marker
	for _, m := range f.Markers {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Marker finds a marker by kind and id
func (f Frame) Marker(kind, id string) (Marker, bool) {
	for _, m := range f.Markers {
		if m.Kind == kind && m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// RingsOf returns the rings of one kind in draw order
func (f Frame) RingsOf(kind string) []Ring {
	var out []Ring
	for _, r := range f.Rings {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
