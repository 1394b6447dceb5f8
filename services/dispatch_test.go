package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greenwave/geo"
	"greenwave/models"
	"greenwave/overlay"
	"greenwave/routing"
	"greenwave/storage"
)

type fakeStore struct {
	mu          sync.Mutex
	emergency   []bool
	signals     []map[string]models.SignalState
	dispatches  []string
	statuses    []string
	zones       []string
	activations int
	responses   []time.Duration
	logs        []models.LogEntry
	failSignals bool
}

func (f *fakeStore) SetEmergency(_ context.Context, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emergency = append(f.emergency, active)
	return nil
}

func (f *fakeStore) SetSignalStates(_ context.Context, states map[string]models.SignalState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSignals {
		return errors.New("write refused")
	}
	f.signals = append(f.signals, states)
	return nil
}

func (f *fakeStore) UpdateAmbulanceDispatch(_ context.Context, id string, status models.AmbulanceStatus, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, id+":"+string(status)+":"+destination)
	return nil
}

func (f *fakeStore) UpdateAmbulanceStatus(_ context.Context, id string, status models.AmbulanceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, id+":"+string(status))
	return nil
}

func (f *fakeStore) SetZoneActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones = append(f.zones, fmt.Sprintf("%s:%t", id, active))
	return nil
}

func (f *fakeStore) RecordActivation(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations++
	return nil
}

func (f *fakeStore) RecordResponse(_ context.Context, elapsed time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, elapsed)
	return nil
}

func (f *fakeStore) PushLog(_ context.Context, entry models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
	return nil
}

// gatedStore holds the first signal write until release is closed
type gatedStore struct {
	*fakeStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(inner *fakeStore) *gatedStore {
	return &gatedStore{fakeStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) SetSignalStates(ctx context.Context, states map[string]models.SignalState) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeStore.SetSignalStates(ctx, states)
}

type fakePublisher struct {
	events []models.RouteEvent
}

func (p *fakePublisher) PublishRouteEvent(_ context.Context, event models.RouteEvent) error {
	p.events = append(p.events, event)
	return nil
}

func dispatchFixture() models.Snapshot {
	return models.Snapshot{
		Ambulances: []models.Ambulance{
			{ID: "AMB-101", Name: "Alpha", Position: geo.NewPoint(28.6139, 77.2090), Status: models.AmbulanceIdle},
			{ID: "AMB-102", Name: "Bravo", Position: geo.NewPoint(28.5355, 77.3910), Status: models.AmbulanceEnRoute},
		},
		Hospitals: []models.Hospital{
			{ID: "HSP-01", Name: "City General", Position: geo.NewPoint(28.6200, 77.2200), Beds: 12, ER: true},
			{ID: "HSP-02", Name: "North Care", Position: geo.NewPoint(28.6500, 77.2300), Beds: 4, ER: true},
			{ID: "HSP-03", Name: "East Clinic", Position: geo.NewPoint(28.5400, 77.3900), Beds: 0, ER: true},
		},
		Signals: []models.TrafficSignal{
			{ID: "SIG-01", Name: "Connaught", Position: geo.NewPoint(28.6170, 77.2150), State: models.SignalGreen},
			{ID: "SIG-02", Name: "Far East", Position: geo.NewPoint(28.6000, 77.5000), State: models.SignalRed},
		},
		Zones: []models.Zone{
			{ID: "Zone-A", Name: "Central", Color: "#6366f1", Center: &geo.Point{Latitude: 28.61, Longitude: 77.21}, Radius: 1500},
		},
	}
}

type dispatchHarness struct {
	d      *DispatchService
	store  *fakeStore
	events *fakePublisher
	repo   *storage.MockRepository
	clock  time.Time
}

func newDispatchHarness(t *testing.T) *dispatchHarness {
	t.Helper()
	h := &dispatchHarness{
		store:  &fakeStore{},
		events: &fakePublisher{},
		repo:   storage.NewMockRepository(),
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	h.d = NewDispatchService(routing.DefaultOptions(), h.store, h.events, h.repo, zap.NewNop())
	h.d.now = func() time.Time { return h.clock }
	ids := 0
	h.d.newID = func() string {
		ids++
		return []string{"ep-1", "ep-2", "ep-3", "ep-4"}[ids-1]
	}

	snap := dispatchFixture()
	emergency := false
	h.d.ApplySnapshot(models.SnapshotUpdate{
		Ambulances: snap.Ambulances,
		Hospitals:  snap.Hospitals,
		Signals:    snap.Signals,
		Zones:      snap.Zones,
		Emergency:  &emergency,
	})
	return h
}

func signalState(snap models.Snapshot, id string) models.SignalState {
	for _, s := range snap.Signals {
		if s.ID == id {
			return s.State
		}
	}
	return ""
}

func TestRequestEmergencyRoutesAndOverridesSignals(t *testing.T) {
	h := newDispatchHarness(t)

	view, err := h.d.RequestEmergency(context.Background(), "AMB-101", nil)
	require.NoError(t, err)

	assert.Equal(t, "ep-1", view.Route.EpisodeID)
	assert.Equal(t, "HSP-01", view.Route.HospitalID, "nearest eligible hospital")
	assert.Equal(t, models.TriggerEmergency, view.Route.Trigger)
	assert.Equal(t, []string{"SIG-01"}, view.Model.OnRouteSignals)
	assert.Len(t, view.Model.Polyline, 3)

	snap := h.d.Snapshot()
	assert.True(t, snap.Emergency)
	assert.Equal(t, models.SignalEmergency, signalState(snap, "SIG-01"))
	assert.Equal(t, models.SignalRed, signalState(snap, "SIG-02"), "off-route signals keep their state")

	assert.Equal(t, []bool{true}, h.store.emergency)
	require.Len(t, h.store.signals, 1)
	assert.Equal(t, map[string]models.SignalState{"SIG-01": models.SignalEmergency}, h.store.signals[0])
	assert.Equal(t, 1, h.store.activations)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, models.RouteCreated, h.events.events[0].Event)
	assert.Equal(t, "ep-1", h.events.events[0].EpisodeID)

	episodes, err := h.d.Episodes(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Nil(t, episodes[0].EndedAt)

	route, ok := h.d.ActiveRoute()
	require.True(t, ok)
	assert.Equal(t, "AMB-101", route.Route.AmbulanceID)

	frame := h.d.Surface().Draw()
	require.NotNil(t, frame.Route)
	assert.Len(t, frame.Polylines, 3)
}

func TestRequestEmergencyPicksEnRouteUnit(t *testing.T) {
	h := newDispatchHarness(t)

	view, err := h.d.RequestEmergency(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "AMB-102", view.Route.AmbulanceID)
	assert.NotEqual(t, "HSP-03", view.Route.HospitalID, "a hospital without beds is never chosen")
}

func TestRequestEmergencyRejections(t *testing.T) {
	h := newDispatchHarness(t)

	_, err := h.d.RequestEmergency(context.Background(), "AMB-999", nil)
	assert.ErrorIs(t, err, ErrUnknownAmbulance)

	h.d.ApplySnapshot(models.SnapshotUpdate{Hospitals: []models.Hospital{}})
	_, err = h.d.RequestEmergency(context.Background(), "AMB-101", nil)
	assert.ErrorIs(t, err, ErrNoHospitals)

	h.d.ApplySnapshot(models.SnapshotUpdate{Ambulances: []models.Ambulance{}})
	_, err = h.d.RequestEmergency(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoAmbulances)

	_, ok := h.d.ActiveRoute()
	assert.False(t, ok)
	assert.Empty(t, h.store.emergency)
}

func TestRequestEmergencyFallsBackToFirstHospital(t *testing.T) {
	h := newDispatchHarness(t)
	h.d.ApplySnapshot(models.SnapshotUpdate{Hospitals: []models.Hospital{
		{ID: "HSP-09", Name: "Full", Position: geo.NewPoint(28.7, 77.3), Beds: 0, ER: true},
		{ID: "HSP-10", Name: "No ER", Position: geo.NewPoint(28.62, 77.22), Beds: 20},
	}})

	view, err := h.d.RequestEmergency(context.Background(), "AMB-101", nil)
	require.NoError(t, err)
	assert.Equal(t, "HSP-09", view.Route.HospitalID)
}

func TestCancelEmergencyRestoresSignals(t *testing.T) {
	h := newDispatchHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.d.CancelEmergency(ctx), ErrNoActiveRoute)

	_, err := h.d.RequestEmergency(ctx, "AMB-101", nil)
	require.NoError(t, err)

	h.clock = h.clock.Add(4 * time.Minute)
	require.NoError(t, h.d.CancelEmergency(ctx))

	snap := h.d.Snapshot()
	assert.False(t, snap.Emergency)
	assert.Equal(t, models.SignalGreen, signalState(snap, "SIG-01"), "restored to the pre-override state")
	assert.Equal(t, []bool{true, false}, h.store.emergency)
	require.Len(t, h.store.signals, 2)
	assert.Equal(t, map[string]models.SignalState{"SIG-01": models.SignalGreen}, h.store.signals[1])
	assert.Empty(t, h.store.responses, "a cancelled route records no response time")

	_, ok := h.d.ActiveRoute()
	assert.False(t, ok)

	require.Len(t, h.events.events, 2)
	assert.Equal(t, models.RouteCleared, h.events.events[1].Event)
	assert.Equal(t, models.EndCancelled, h.events.events[1].Reason)

	episodes, err := h.d.Episodes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.NotNil(t, episodes[0].EndedAt)
	assert.Equal(t, models.EndCancelled, episodes[0].EndReason)

	frame := h.d.Surface().Draw()
	assert.Nil(t, frame.Route)
	assert.Empty(t, frame.Polylines)
	assert.Nil(t, frame.Label)
}

func TestCancelEmergencyClearsExternalFlag(t *testing.T) {
	h := newDispatchHarness(t)
	active := true
	h.d.ApplySnapshot(models.SnapshotUpdate{Emergency: &active})

	require.NoError(t, h.d.CancelEmergency(context.Background()))
	assert.False(t, h.d.Snapshot().Emergency)
	assert.Equal(t, []bool{false}, h.store.emergency)
	assert.Empty(t, h.events.events)
}

func TestReplacingRouteEndsPreviousEpisode(t *testing.T) {
	h := newDispatchHarness(t)
	ctx := context.Background()

	_, err := h.d.RequestEmergency(ctx, "AMB-101", nil)
	require.NoError(t, err)
	h.clock = h.clock.Add(time.Minute)
	view, err := h.d.RequestEmergency(ctx, "AMB-102", nil)
	require.NoError(t, err)
	assert.Equal(t, "ep-2", view.Route.EpisodeID)

	episodes, err := h.d.Episodes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "ep-1", episodes[1].ID)
	assert.Equal(t, models.EndReplaced, episodes[1].EndReason)
	assert.Nil(t, episodes[0].EndedAt)

	assert.Equal(t, models.SignalGreen, signalState(h.d.Snapshot(), "SIG-01"), "signals off the new route are restored")
	assert.True(t, h.d.Snapshot().Emergency)
}

func TestDispatchLifecycle(t *testing.T) {
	h := newDispatchHarness(t)
	ctx := context.Background()

	_, err := h.d.StartDispatch(ctx, "AMB-101", "HSP-404", nil)
	assert.ErrorIs(t, err, ErrUnknownHospital)
	_, err = h.d.StartDispatch(ctx, "AMB-404", "HSP-02", nil)
	assert.ErrorIs(t, err, ErrUnknownAmbulance)
	assert.ErrorIs(t, h.d.CompleteDispatch(ctx), ErrNoActiveRoute)

	waypoints := []geo.Point{geo.NewPoint(28.6139, 77.2090), geo.NewPoint(28.63, 77.22), geo.NewPoint(28.65, 77.23)}
	view, err := h.d.StartDispatch(ctx, "AMB-101", "HSP-02", waypoints)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerDispatch, view.Route.Trigger)
	assert.Equal(t, waypoints, view.Model.Polyline)

	snap := h.d.Snapshot()
	assert.False(t, snap.Emergency, "dispatch does not raise the emergency flag")
	amb, _ := snap.FindAmbulance("AMB-101")
	assert.Equal(t, models.AmbulanceEnRoute, amb.Status)
	assert.Equal(t, "North Care", amb.Destination)
	assert.Empty(t, h.store.signals)

	h.clock = h.clock.Add(9 * time.Minute)
	require.NoError(t, h.d.CompleteDispatch(ctx))

	amb, _ = h.d.Snapshot().FindAmbulance("AMB-101")
	assert.Equal(t, models.AmbulanceIdle, amb.Status)
	assert.Empty(t, amb.Destination)
	assert.Equal(t, []time.Duration{9 * time.Minute}, h.store.responses)
	assert.Equal(t, []string{"AMB-101:en-route:North Care", "AMB-101:idle:"}, h.store.dispatches)
	assert.Empty(t, h.store.emergency)
}

func TestFailedWritesKeepLocalState(t *testing.T) {
	h := newDispatchHarness(t)
	h.store.failSignals = true

	_, err := h.d.RequestEmergency(context.Background(), "AMB-101", nil)
	require.NoError(t, err)
	assert.Equal(t, models.SignalEmergency, signalState(h.d.Snapshot(), "SIG-01"))
	assert.Equal(t, 1, h.store.activations, "other writes still run")
}

func TestApplyPositionFix(t *testing.T) {
	h := newDispatchHarness(t)
	before := h.d.Snapshot()

	moved := geo.NewPoint(28.62, 77.21)
	assert.True(t, h.d.ApplyPositionFix(models.PositionFix{AmbulanceID: "AMB-102", Position: moved, Timestamp: h.clock}))
	assert.False(t, h.d.ApplyPositionFix(models.PositionFix{AmbulanceID: "AMB-999", Position: moved}))

	amb, _ := h.d.Snapshot().FindAmbulance("AMB-102")
	assert.Equal(t, moved, amb.Position)
	assert.Equal(t, h.clock, amb.LastUpdate)

	old, _ := before.FindAmbulance("AMB-102")
	assert.Equal(t, geo.NewPoint(28.5355, 77.3910), old.Position, "earlier snapshots are not mutated")
}

func TestRoutePositionsAreCapturedAtCreation(t *testing.T) {
	h := newDispatchHarness(t)

	view, err := h.d.RequestEmergency(context.Background(), "AMB-101", nil)
	require.NoError(t, err)
	h.d.ApplyPositionFix(models.PositionFix{AmbulanceID: "AMB-101", Position: geo.NewPoint(28.7, 77.3)})

	route, ok := h.d.ActiveRoute()
	require.True(t, ok)
	assert.Equal(t, view.Route.AmbulancePosition, route.Route.AmbulancePosition)
}

func TestViewCommands(t *testing.T) {
	h := newDispatchHarness(t)
	ctx := context.Background()

	require.NoError(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdTrack, AmbulanceID: "AMB-102"}))
	assert.Equal(t, "AMB-102", h.d.RenderInput().FocusAmbulanceID)
	assert.ErrorIs(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdTrack, AmbulanceID: "AMB-999"}), ErrUnknownAmbulance)
	require.NoError(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdTrack}))
	assert.Empty(t, h.d.RenderInput().FocusAmbulanceID)

	require.NoError(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdZoneFilter, Zone: "north"}))
	assert.Equal(t, "north", h.d.RenderInput().ZoneFilter)

	lat, lng := 28.61, 77.2
	require.NoError(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdUserLocation, Lat: &lat, Lng: &lng}))
	require.NotNil(t, h.d.RenderInput().UserPosition)
	assert.Equal(t, geo.NewPoint(lat, lng), *h.d.RenderInput().UserPosition)
	require.NoError(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdUserLocation}))
	assert.Nil(t, h.d.RenderInput().UserPosition)

	err := h.d.HandleCommand(ctx, models.Command{Type: "reboot"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.True(t, IsRejected(err))
}

func TestNearestHospital(t *testing.T) {
	h := newDispatchHarness(t)

	hosp, err := h.d.NearestHospital(geo.NewPoint(28.66, 77.23))
	require.NoError(t, err)
	assert.Equal(t, "HSP-02", hosp.ID)

	h.d.ApplySnapshot(models.SnapshotUpdate{Hospitals: []models.Hospital{}})
	_, err = h.d.NearestHospital(geo.NewPoint(28.66, 77.23))
	assert.ErrorIs(t, err, ErrNoHospitals)
}

func TestRestoreState(t *testing.T) {
	assert.Equal(t, models.SignalGreen, restoreState(models.SignalGreen))
	assert.Equal(t, models.SignalRed, restoreState(models.SignalEmergency))
	assert.Equal(t, models.SignalRed, restoreState(""))
}

type recordingActuator struct {
	applied []map[string]models.SignalState
}

func (a *recordingActuator) ApplySignalStates(_ context.Context, states map[string]models.SignalState) error {
	a.applied = append(a.applied, states)
	return nil
}

func TestSignalActuatorFollowsOverrides(t *testing.T) {
	h := newDispatchHarness(t)
	actuator := &recordingActuator{}
	h.d.SetSignalActuator(actuator)
	ctx := context.Background()

	_, err := h.d.RequestEmergency(ctx, "AMB-101", nil)
	require.NoError(t, err)
	require.NoError(t, h.d.CancelEmergency(ctx))

	require.Len(t, actuator.applied, 2)
	assert.Equal(t, models.SignalEmergency, actuator.applied[0]["SIG-01"])
	assert.Equal(t, models.SignalGreen, actuator.applied[1]["SIG-01"])
}

func TestConcurrentCommandsWriteInLockOrder(t *testing.T) {
	h := newDispatchHarness(t)
	gate := newGatedStore(h.store)
	h.d.store = gate
	ctx := context.Background()

	requested := make(chan error, 1)
	go func() {
		_, err := h.d.RequestEmergency(ctx, "AMB-101", nil)
		requested <- err
	}()
	<-gate.entered

	cancelled := make(chan error, 1)
	go func() { cancelled <- h.d.CancelEmergency(ctx) }()
	require.Eventually(t, func() bool {
		_, active := h.d.ActiveRoute()
		return !active
	}, time.Second, time.Millisecond, "cancel applies in memory while the override write is held")

	close(gate.release)
	require.NoError(t, <-requested)
	require.NoError(t, <-cancelled)

	assert.Equal(t, models.SignalGreen, signalState(h.d.Snapshot(), "SIG-01"))

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	require.Len(t, h.store.signals, 2)
	assert.Equal(t, models.SignalEmergency, h.store.signals[0]["SIG-01"])
	assert.Equal(t, models.SignalGreen, h.store.signals[1]["SIG-01"], "the restore lands after the override")
	assert.Equal(t, []bool{true, false}, h.store.emergency)
}

func TestSnapshotKeepsNewerLocalPositions(t *testing.T) {
	h := newDispatchHarness(t)
	flushed := h.clock

	local := geo.NewPoint(28.62, 77.21)
	require.True(t, h.d.ApplyPositionFix(models.PositionFix{AmbulanceID: "AMB-101", Position: local, Timestamp: flushed.Add(10 * time.Second)}))

	stale := dispatchFixture().Ambulances
	stale[0].LastUpdate = flushed
	stale[0].Status = models.AmbulanceOnScene
	stale[1].Position = geo.NewPoint(28.54, 77.40)
	stale[1].LastUpdate = flushed
	h.d.ApplySnapshot(models.SnapshotUpdate{Ambulances: stale})

	amb, _ := h.d.Snapshot().FindAmbulance("AMB-101")
	assert.Equal(t, local, amb.Position, "a newer local fix survives an older poll")
	assert.Equal(t, flushed.Add(10*time.Second), amb.LastUpdate)
	assert.Equal(t, models.AmbulanceOnScene, amb.Status, "other fields come from the poll")

	other, _ := h.d.Snapshot().FindAmbulance("AMB-102")
	assert.Equal(t, geo.NewPoint(28.54, 77.40), other.Position)
	assert.Equal(t, geo.NewPoint(28.6139, 77.2090), stale[0].Position, "the update is not mutated")

	fresh := dispatchFixture().Ambulances
	fresh[0].Position = geo.NewPoint(28.63, 77.22)
	fresh[0].LastUpdate = flushed.Add(time.Minute)
	h.d.ApplySnapshot(models.SnapshotUpdate{Ambulances: fresh})

	amb, _ = h.d.Snapshot().FindAmbulance("AMB-101")
	assert.Equal(t, geo.NewPoint(28.63, 77.22), amb.Position, "a newer stored fix wins")
}

func TestSetAmbulanceStatus(t *testing.T) {
	h := newDispatchHarness(t)
	ctx := context.Background()

	require.NoError(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdAmbulanceStatus, AmbulanceID: "AMB-101", Status: models.AmbulanceOnScene}))

	amb, _ := h.d.Snapshot().FindAmbulance("AMB-101")
	assert.Equal(t, models.AmbulanceOnScene, amb.Status)
	assert.Equal(t, []string{"AMB-101:on-scene"}, h.store.statuses)
	require.Len(t, h.store.logs, 1)
	assert.Equal(t, models.LogNormal, h.store.logs[0].Type)

	require.NoError(t, h.d.SetAmbulanceStatus(ctx, "AMB-101", models.AmbulanceEnRoute))
	assert.Equal(t, models.LogEmergency, h.store.logs[1].Type)

	assert.ErrorIs(t, h.d.SetAmbulanceStatus(ctx, "AMB-999", models.AmbulanceIdle), ErrUnknownAmbulance)
	assert.ErrorIs(t, h.d.SetAmbulanceStatus(ctx, "AMB-101", "parked"), ErrInvalidCommand)
	assert.Len(t, h.store.statuses, 2)
}

func TestSetZoneActive(t *testing.T) {
	h := newDispatchHarness(t)
	ctx := context.Background()

	zoneCircle := func() overlay.Circle {
		for _, c := range h.d.Surface().Draw().Circles {
			if c.ID == "Zone-A" {
				return c
			}
		}
		t.Fatal("zone circle not drawn")
		return overlay.Circle{}
	}
	assert.NotEmpty(t, zoneCircle().DashArray, "inactive zones are dashed")

	active := true
	require.NoError(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdZoneActive, Zone: "Zone-A", Active: &active}))
	assert.True(t, h.d.Snapshot().Zones[0].Active)
	assert.Empty(t, zoneCircle().DashArray)
	assert.Equal(t, []string{"Zone-A:true"}, h.store.zones)

	assert.ErrorIs(t, h.d.SetZoneActive(ctx, "Zone-Z", true), ErrUnknownZone)
	assert.ErrorIs(t, h.d.HandleCommand(ctx, models.Command{Type: models.CmdZoneActive, Zone: "Zone-A"}), ErrInvalidCommand)
}
