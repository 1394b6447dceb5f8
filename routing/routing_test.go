package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenwave/geo"
	"greenwave/models"
)

// hospitalAtKm places a hospital due east of the origin at roughly km kilometers
func hospitalAtKm(id string, km float64, er bool, beds int) models.Hospital {
	return models.Hospital{
		ID:       id,
		Name:     id,
		Position: geo.Point{Latitude: 0, Longitude: km / 111.195},
		ER:       er,
		Beds:     beds,
	}
}

func TestSelectDestination(t *testing.T) {
	origin := geo.Point{}

	t.Run("nearest eligible wins", func(t *testing.T) {
		hospitals := []models.Hospital{
			hospitalAtKm("far", 10, true, 20),
			hospitalAtKm("near", 1, true, 20),
			hospitalAtKm("mid", 5, true, 20),
		}
		got := SelectDestination(origin, hospitals)
		require.NotNil(t, got)
		assert.Equal(t, "near", got.ID)
	})

	t.Run("ineligible hospitals are skipped even when closer", func(t *testing.T) {
		hospitals := []models.Hospital{
			hospitalAtKm("closest-no-er", 0.5, false, 20),
			hospitalAtKm("close-no-beds", 0.7, true, 0),
			hospitalAtKm("eligible", 8, true, 3),
		}
		got := SelectDestination(origin, hospitals)
		require.NotNil(t, got)
		assert.Equal(t, "eligible", got.ID)
	})

	t.Run("falls back to first input hospital when none is eligible", func(t *testing.T) {
		hospitals := []models.Hospital{
			hospitalAtKm("first", 9, false, 10),
			hospitalAtKm("nearest", 1, false, 10),
		}
		got := SelectDestination(origin, hospitals)
		require.NotNil(t, got)
		assert.Equal(t, "first", got.ID)
	})

	t.Run("ties go to the first in input order", func(t *testing.T) {
		hospitals := []models.Hospital{
			hospitalAtKm("a", 2, true, 1),
			hospitalAtKm("b", 2, true, 1),
		}
		assert.Equal(t, "a", SelectDestination(origin, hospitals).ID)
	})

	t.Run("empty input yields nil", func(t *testing.T) {
		assert.Nil(t, SelectDestination(origin, nil))
		assert.Nil(t, SelectDestination(origin, []models.Hospital{}))
	})

	t.Run("returns an element of the input slice", func(t *testing.T) {
		hospitals := []models.Hospital{hospitalAtKm("only", 1, true, 1)}
		assert.Same(t, &hospitals[0], SelectDestination(origin, hospitals))
	})
}

func TestPickAmbulance(t *testing.T) {
	fleet := []models.Ambulance{
		{ID: "AMB-101", Status: models.AmbulanceIdle},
		{ID: "AMB-102", Status: models.AmbulanceEnRoute},
		{ID: "AMB-103", Status: models.AmbulanceEnRoute},
	}

	assert.Equal(t, "AMB-103", PickAmbulance(fleet, "AMB-103").ID)
	assert.Equal(t, "AMB-102", PickAmbulance(fleet, "").ID)
	assert.Nil(t, PickAmbulance(fleet, "AMB-999"))
	assert.Equal(t, "AMB-101", PickAmbulance(fleet[:1], "").ID)
	assert.Nil(t, PickAmbulance(nil, ""))
}

func TestBuildRoute(t *testing.T) {
	amb := models.Ambulance{ID: "AMB-101", Position: geo.Point{Latitude: 0, Longitude: 0}}
	hosp := models.Hospital{ID: "HSP-01", Name: "City General", Position: geo.Point{Latitude: 0, Longitude: 0.1}}

	t.Run("synthesized three point polyline", func(t *testing.T) {
		route := NewEmergencyRoute(amb, hosp, nil, models.TriggerEmergency)
		model := BuildRoute(route, nil, DefaultOptions())

		require.Len(t, model.Polyline, 3)
		assert.Equal(t, amb.Position, model.Polyline[0])
		assert.Equal(t, hosp.Position, model.Polyline[2])
		assert.InDelta(t, 0.003, model.Polyline[1].Latitude, 1e-12)
		assert.InDelta(t, 0.047, model.Polyline[1].Longitude, 1e-12)
		assert.Equal(t, model.Polyline[1], model.LabelPosition)
		assert.NotEmpty(t, model.Encoded)
		assert.Empty(t, model.OnRouteSignals)
	})

	t.Run("distance and eta", func(t *testing.T) {
		model := BuildRoute(NewEmergencyRoute(amb, hosp, nil, models.TriggerEmergency), nil, DefaultOptions())
		assert.InDelta(t, 11.12, model.DistanceKm, 0.01)
		assert.Equal(t, 33, model.ETAMinutes)
	})

	t.Run("waypoints are used verbatim but distance stays straight-line", func(t *testing.T) {
		waypoints := []geo.Point{
			{Latitude: 0, Longitude: 0},
			{Latitude: 0.05, Longitude: 0.02},
			{Latitude: 0.05, Longitude: 0.08},
			{Latitude: 0, Longitude: 0.1},
		}
		model := BuildRoute(NewEmergencyRoute(amb, hosp, waypoints, models.TriggerDispatch), nil, DefaultOptions())

		assert.Equal(t, waypoints, model.Polyline)
		assert.Equal(t, waypoints[2], model.LabelPosition)
		assert.InDelta(t, 11.12, model.DistanceKm, 0.01)
	})

	t.Run("on-route signals", func(t *testing.T) {
		route := NewEmergencyRoute(amb, hosp, nil, models.TriggerEmergency)
		line := Polyline(route, DefaultCurveOffsetDeg)
		signals := []models.TrafficSignal{
			{ID: "at-midpoint", Position: line[1]},
			{ID: "far-away", Position: geo.Point{Latitude: 0.45, Longitude: 0}},
			{ID: "at-hospital", Position: hosp.Position},
		}

		model := BuildRoute(route, signals, DefaultOptions())
		assert.Equal(t, []string{"at-midpoint", "at-hospital"}, model.OnRouteSignals)
		assert.True(t, model.IsOnRoute("at-midpoint"))
		assert.False(t, model.IsOnRoute("far-away"))
	})
}

func TestETAMinutes(t *testing.T) {
	assert.Equal(t, 1, ETAMinutes(0, DefaultMinutesPerKm))
	assert.Equal(t, 1, ETAMinutes(0.1, DefaultMinutesPerKm))
	assert.Equal(t, 2, ETAMinutes(0.5, DefaultMinutesPerKm))
	assert.Equal(t, 15, ETAMinutes(5, DefaultMinutesPerKm))
}

func TestOptionsWithDefaults(t *testing.T) {
	def := DefaultOptions()

	assert.Equal(t, def, Options{}.WithDefaults())

	partial := Options{OnRouteThresholdKm: 0.8}.WithDefaults()
	assert.Equal(t, 0.8, partial.OnRouteThresholdKm)
	assert.Equal(t, def.MinutesPerKm, partial.MinutesPerKm)
	assert.Equal(t, def.CurveOffsetDeg, partial.CurveOffsetDeg)

	custom := Options{OnRouteThresholdKm: 1, MinutesPerKm: 2, CurveOffsetDeg: -0.001}
	assert.Equal(t, custom, custom.WithDefaults())
}
