package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/twpayne/go-kml"

	"greenwave/geo"
)

// FeatureCollection is a GeoJSON document carrying the frame metadata as foreign members
type FeatureCollection struct {
	Type       string    `json:"type"`
	Generation uint64    `json:"generation"`
	Emergency  bool      `json:"emergency"`
	Camera     *Camera   `json:"camera,omitempty"`
	Features   []Feature `json:"features"`
}

// Feature is a GeoJSON feature
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON Point or LineString in [lng, lat] order
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

func pointGeometry(p geo.Point) Geometry {
	return Geometry{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}}
}

func lineGeometry(points []geo.Point) Geometry {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Longitude, p.Latitude}
	}
	return Geometry{Type: "LineString", Coordinates: coords}
}

// GeoJSON converts a frame to a feature collection. Circles and rings become points with their
// radius in the properties.
func GeoJSON(f Frame) FeatureCollection {
	fc := FeatureCollection{
		Type:       "FeatureCollection",
		Generation: f.Generation,
		Emergency:  f.Emergency,
		Camera:     f.Camera,
		Features:   make([]Feature, 0, len(f.Markers)+len(f.Circles)+len(f.Rings)+len(f.Polylines)+1),
	}

	for _, c := range f.Circles {
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: pointGeometry(c.Center),
			Properties: map[string]any{
				"kind":         c.Kind,
				"id":           c.ID,
				"name":         c.Name,
				"radius_m":     c.RadiusM,
				"color":        c.Color,
				"fill_opacity": c.FillOpacity,
				"dash_array":   c.DashArray,
			},
		})
	}

	for _, m := range f.Markers {
		props := map[string]any{
			"kind":        m.Kind,
			"id":          m.ID,
			"name":        m.Name,
			"color":       m.Color,
			"size":        m.Size,
			"highlighted": m.Highlighted,
		}
		for k, v := range m.Properties {
			props[k] = v
		}
		fc.Features = append(fc.Features, Feature{Type: "Feature", Geometry: pointGeometry(m.Position), Properties: props})
	}

	for _, r := range f.Rings {
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: pointGeometry(r.Position),
			Properties: map[string]any{
				"kind":      r.Kind,
				"id":        r.ID,
				"radius_px": r.RadiusPx,
				"color":     r.Color,
			},
		})
	}

	for _, p := range f.Polylines {
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: lineGeometry(p.Points),
			Properties: map[string]any{
				"kind":       p.Kind,
				"color":      p.Color,
				"weight":     p.Weight,
				"opacity":    p.Opacity,
				"dash_array": p.DashArray,
			},
		})
	}

	if f.Label != nil {
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: pointGeometry(f.Label.Position),
			Properties: map[string]any{
				"kind":        "route_label",
				"distance_km": f.Label.DistanceKm,
				"eta_minutes": f.Label.ETAMinutes,
				"destination": f.Label.Destination,
				"text":        strings.Join(f.Label.Lines, "\n"),
			},
		})
	}

	return fc
}

// EncodeGeoJSON renders a frame as a GeoJSON FeatureCollection
func EncodeGeoJSON(f Frame) ([]byte, error) {
	data, err := json.Marshal(GeoJSON(f))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geojson: %w", err)
	}
	return data, nil
}

// EncodeKML renders a frame as a KML document with one folder per layer
func EncodeKML(f Frame) ([]byte, error) {
	styles := newStyleSet()

	var markers []kml.Element
	for _, m := range f.Markers {
		markers = append(markers, kml.Placemark(
			kml.Name(m.Name),
			kml.Description(fmt.Sprintf("%s %s", m.Kind, m.ID)),
			kml.StyleURL(styles.url(m.Color, 1)),
			kml.Point(kml.Coordinates(coordinate(m.Position))),
		))
	}

	var zones []kml.Element
	for _, c := range f.Circles {
		name := c.Name
		if name == "" {
			name = c.Kind
		}
		zones = append(zones, kml.Placemark(
			kml.Name(name),
			kml.Description(fmt.Sprintf("radius %.0f m", c.RadiusM)),
			kml.StyleURL(styles.url(c.Color, 1)),
			kml.Point(kml.Coordinates(coordinate(c.Center))),
		))
	}

	var route []kml.Element
	for _, p := range f.Polylines {
		coords := make([]kml.Coordinate, len(p.Points))
		for i, pt := range p.Points {
			coords[i] = coordinate(pt)
		}
		route = append(route, kml.Placemark(
			kml.Name(p.Kind),
			kml.StyleURL(styles.url(p.Color, p.Opacity)),
			kml.LineString(kml.Tessellate(true), kml.Coordinates(coords...)),
		))
	}
	if f.Label != nil {
		route = append(route, kml.Placemark(
			kml.Name(strings.Join(f.Label.Lines, " ")),
			kml.Point(kml.Coordinates(coordinate(f.Label.Position))),
		))
	}

	children := styles.elements()
	children = append(children,
		kml.Name(fmt.Sprintf("overlay %d", f.Generation)),
		kml.Folder(append([]kml.Element{kml.Name("zones")}, zones...)...),
		kml.Folder(append([]kml.Element{kml.Name("markers")}, markers...)...),
		kml.Folder(append([]kml.Element{kml.Name("route")}, route...)...),
	)

	var buf bytes.Buffer
	if err := kml.KML(kml.Document(children...)).WriteIndent(&buf, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to write kml: %w", err)
	}
	return buf.Bytes(), nil
}

func coordinate(p geo.Point) kml.Coordinate {
	return kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
}

// styleSet collects one shared style per color and opacity in first-use order
type styleSet struct {
	order []string
	byID  map[string]*kml.SharedElement
}

func newStyleSet() *styleSet {
	return &styleSet{byID: make(map[string]*kml.SharedElement)}
}

func (s *styleSet) url(hex string, opacity float64) string {
	c := parseHexColor(hex, opacity)
	id := fmt.Sprintf("s%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
	if _, ok := s.byID[id]; !ok {
		s.byID[id] = kml.SharedStyle(id,
			kml.IconStyle(kml.Color(c)),
			kml.LineStyle(kml.Color(c), kml.Width(4)),
		)
		s.order = append(s.order, id)
	}
	return "#" + id
}

func (s *styleSet) elements() []kml.Element {
	out := make([]kml.Element, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// parseHexColor parses #rrggbb; anything else maps to white
func parseHexColor(hex string, opacity float64) color.RGBA {
	c := color.RGBA{R: 0xff, G: 0xff, B: 0xff}
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	c.A = uint8(opacity * 255)

	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return c
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return c
	}
	c.R = uint8(v >> 16)
	c.G = uint8(v >> 8)
	c.B = uint8(v)
	return c
}
