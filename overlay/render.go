package overlay

import (
	"fmt"

	"greenwave/geo"
	"greenwave/models"
	"greenwave/routing"
)

const (
	routeBoundsPad  = 0.3
	focusZoom       = 15
	focusDuration   = 0.8
	userZoom        = 14
	userDuration    = 1.2
	routeFitSeconds = 1.0
)

// Input is everything a frame is drawn from
type Input struct {
	Snapshot         models.Snapshot
	Route            *models.EmergencyRoute
	FocusAmbulanceID string
	ZoneFilter       string
	UserPosition     *geo.Point
	Options          routing.Options
}

// Render draws a complete frame from in. It never reads previous frames.
func Render(in Input) Frame {
	opts := in.Options.WithDefaults()

	frame := Frame{
		Emergency:  in.Snapshot.Emergency,
		ZoneFilter: in.ZoneFilter,
		Markers:    make([]Marker, 0),
		Circles:    make([]Circle, 0),
		Rings:      make([]Ring, 0),
		Polylines:  make([]Polyline, 0),
	}

	var model *routing.Model
	if in.Route != nil {
		m := routing.BuildRoute(*in.Route, in.Snapshot.Signals, opts)
		model = &m
		frame.Route = model
	}

	inZone := func(zone string) bool {
		return in.ZoneFilter == "" || zone == in.ZoneFilter
	}
	isRouteAmbulance := func(id string) bool { return in.Route != nil && in.Route.AmbulanceID == id }
	isDestination := func(id string) bool { return in.Route != nil && in.Route.HospitalID == id }

	if in.UserPosition != nil {
		drawUser(&frame, *in.UserPosition)
	}

	for _, z := range in.Snapshot.Zones {
		if z.HasFootprint() {
			frame.Circles = append(frame.Circles, zoneCircle(z))
		}
	}

	for _, a := range in.Snapshot.Ambulances {
		// the route's own units survive the zone filter
		if !inZone(a.Zone) && !isRouteAmbulance(a.ID) {
			continue
		}
		frame.Markers = append(frame.Markers, ambulanceMarker(a, isRouteAmbulance(a.ID)))
	}

	for _, h := range in.Snapshot.Hospitals {
		if !inZone(h.Zone) && !isDestination(h.ID) {
			continue
		}
		frame.Markers = append(frame.Markers, hospitalMarker(h, isDestination(h.ID)))
	}

	for _, s := range in.Snapshot.Signals {
		if !inZone(s.Zone) {
			continue
		}
		onRoute := model != nil && model.IsOnRoute(s.ID)
		frame.Markers = append(frame.Markers, signalMarker(s, onRoute))
		if onRoute {
			frame.Rings = append(frame.Rings, Ring{
				Kind:        KindSignalGlow,
				ID:          s.ID,
				Position:    s.Position,
				RadiusPx:    20,
				Color:       ColorAmber,
				FillColor:   ColorAmber,
				FillOpacity: 0.15,
				Weight:      1,
			})
		}
	}

	for _, d := range in.Snapshot.Devices {
		if !inZone(d.Zone) {
			continue
		}
		frame.Markers = append(frame.Markers, deviceMarker(d))
	}

	var focused *models.Ambulance
	if in.FocusAmbulanceID != "" {
		if a, ok := in.Snapshot.FindAmbulance(in.FocusAmbulanceID); ok {
			focused = &a
			drawFocus(&frame, a)
		}
	}

	if model != nil {
		drawRoute(&frame, *in.Route, *model)
	}

	switch {
	case model != nil:
		if b, ok := geo.BoundsOf(model.Polyline); ok {
			padded := b.Pad(routeBoundsPad)
			frame.Camera = &Camera{Mode: CameraFitBounds, Bounds: &padded, Duration: routeFitSeconds}
		}
	case focused != nil:
		center := focused.Position
		frame.Camera = &Camera{Mode: CameraFlyTo, Center: &center, Zoom: focusZoom, Duration: focusDuration}
	case in.UserPosition != nil:
		center := *in.UserPosition
		frame.Camera = &Camera{Mode: CameraFlyTo, Center: &center, Zoom: userZoom, Duration: userDuration}
	}

	return frame
}

func drawUser(frame *Frame, pos geo.Point) {
	frame.Markers = append(frame.Markers, Marker{
		Kind:     KindUser,
		ID:       KindUser,
		Name:     "Your Location",
		Position: pos,
		Color:    ColorIndigo,
		Stroke:   ColorWhite,
		Weight:   4,
		Size:     20,
	})
	frame.Circles = append(frame.Circles, Circle{
		Kind:        KindUserAccuracy,
		Center:      pos,
		RadiusM:     200,
		Color:       ColorIndigo,
		FillColor:   ColorIndigo,
		FillOpacity: 0.08,
		Weight:      1,
	})
}

func zoneCircle(z models.Zone) Circle {
	c := Circle{
		Kind:        KindZone,
		ID:          z.ID,
		Name:        z.Name,
		Center:      *z.Center,
		RadiusM:     z.Radius,
		Color:       z.Color,
		FillColor:   z.Color,
		FillOpacity: 0.04,
		Weight:      2,
		DashArray:   "8 4",
		Active:      z.Active,
	}
	if z.Active {
		c.FillOpacity = 0.12
		c.DashArray = ""
	}
	return c
}

// AmbulanceColor maps a unit status to its marker color
func AmbulanceColor(status models.AmbulanceStatus) string {
	switch status {
	case models.AmbulanceEnRoute:
		return ColorRed
	case models.AmbulanceOnScene:
		return ColorAmber
	default:
		return ColorGreen
	}
}

func ambulanceMarker(a models.Ambulance, onRoute bool) Marker {
	m := Marker{
		Kind:     KindAmbulance,
		ID:       a.ID,
		Name:     a.Name,
		Position: a.Position,
		Color:    AmbulanceColor(a.Status),
		Stroke:   ColorWhite,
		Weight:   3,
		Size:     38,
		Properties: map[string]any{
			"status": string(a.Status),
		},
	}
	if a.Destination != "" {
		m.Properties["destination"] = a.Destination
	}
	if a.Zone != "" {
		m.Properties["zone"] = a.Zone
	}
	if onRoute {
		m.Size = 48
		m.Glow = true
		m.ZIndex = 1000
		m.Highlighted = true
	}
	return m
}

func hospitalMarker(h models.Hospital, destination bool) Marker {
	m := Marker{
		Kind:     KindHospital,
		ID:       h.ID,
		Name:     h.Name,
		Position: h.Position,
		Color:    ColorBlue,
		Stroke:   ColorWhite,
		Weight:   3,
		Size:     34,
		Properties: map[string]any{
			"beds":  h.Beds,
			"er":    h.ER,
			"phone": h.Phone,
		},
	}
	if destination {
		m.Color = ColorDeepBlue
		m.Size = 44
		m.Glow = true
		m.ZIndex = 900
		m.Highlighted = true
		m.Properties["destination"] = true
	}
	return m
}

// SignalColor maps a signal state to its marker color
func SignalColor(state models.SignalState) string {
	if state == models.SignalGreen {
		return ColorGreen
	}
	return ColorRed
}

func signalMarker(s models.TrafficSignal, onRoute bool) Marker {
	m := Marker{
		Kind:     KindSignal,
		ID:       s.ID,
		Name:     s.Name,
		Position: s.Position,
		Color:    SignalColor(s.State),
		Stroke:   ColorWhite,
		Weight:   2,
		Size:     8,
		Properties: map[string]any{
			"state":    string(s.State),
			"on_route": onRoute,
		},
	}
	if onRoute {
		m.Color = ColorAmber
		m.Stroke = ColorAmber
		m.Weight = 3
		m.Size = 14
		m.Highlighted = true
	}
	return m
}

// DeviceColor maps an IoT status to its marker color
func DeviceColor(status models.DeviceStatus) string {
	switch status {
	case models.DeviceOnline:
		return ColorGreen
	case models.DeviceWarning:
		return ColorAmber
	default:
		return ColorGray
	}
}

func deviceMarker(d models.IoTDevice) Marker {
	return Marker{
		Kind:     KindDevice,
		ID:       d.ID,
		Name:     d.Name,
		Position: d.Position,
		Color:    DeviceColor(d.Status),
		Stroke:   ColorWhite,
		Weight:   2,
		Size:     26,
		Properties: map[string]any{
			"type":     string(d.Type),
			"status":   string(d.Status),
			"firmware": d.Firmware,
		},
	}
}

func drawFocus(frame *Frame, a models.Ambulance) {
	frame.Rings = append(frame.Rings,
		Ring{
			Kind:        KindFocusOuter,
			ID:          a.ID,
			Position:    a.Position,
			RadiusPx:    28,
			Color:       ColorIndigo,
			FillColor:   ColorIndigo,
			FillOpacity: 0.12,
			Weight:      2,
			DashArray:   "6 4",
		},
		Ring{
			Kind:        KindFocusInner,
			ID:          a.ID,
			Position:    a.Position,
			RadiusPx:    18,
			Color:       ColorLavender,
			FillColor:   ColorIndigo,
			FillOpacity: 0.06,
			Weight:      3,
		},
	)
}

func drawRoute(frame *Frame, route models.EmergencyRoute, model routing.Model) {
	frame.Polylines = append(frame.Polylines,
		Polyline{Kind: KindRouteBackdrop, Points: model.Polyline, Color: ColorRed, Weight: 8, Opacity: 0.25},
		Polyline{Kind: KindRouteDashed, Points: model.Polyline, Color: ColorRed, Weight: 4, Opacity: 0.9, DashArray: "12 8"},
		Polyline{Kind: KindRouteGlow, Points: model.Polyline, Color: ColorRouteGlow, Weight: 12, Opacity: 0.1},
	)
	frame.Label = &Label{
		Position:    model.LabelPosition,
		DistanceKm:  model.DistanceKm,
		ETAMinutes:  model.ETAMinutes,
		Destination: route.HospitalName,
		Lines: []string{
			fmt.Sprintf("%.1f km", model.DistanceKm),
			fmt.Sprintf("~%d min ETA", model.ETAMinutes),
			fmt.Sprintf("→ %s", route.HospitalName),
		},
	}
}
