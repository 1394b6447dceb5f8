package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"greenwave/geo"
	"greenwave/models"
	"greenwave/overlay"
	"greenwave/routing"
	"greenwave/storage"
)

// RealtimeStore is the part of the realtime database the dispatcher writes to
type RealtimeStore interface {
	SetEmergency(ctx context.Context, active bool) error
	SetSignalStates(ctx context.Context, states map[string]models.SignalState) error
	UpdateAmbulanceDispatch(ctx context.Context, ambulanceID string, status models.AmbulanceStatus, destination string) error
	UpdateAmbulanceStatus(ctx context.Context, ambulanceID string, status models.AmbulanceStatus) error
	SetZoneActive(ctx context.Context, zoneID string, active bool) error
	RecordActivation(ctx context.Context) error
	RecordResponse(ctx context.Context, elapsed time.Duration) error
	PushLog(ctx context.Context, entry models.LogEntry) error
}

// RouteEventPublisher announces route lifecycle events
type RouteEventPublisher interface {
	PublishRouteEvent(ctx context.Context, event models.RouteEvent) error
}

// RouteView is an active route together with its derived geometry
type RouteView struct {
	Route models.EmergencyRoute `json:"route"`
	Model routing.Model         `json:"model"`
}

// effect is a best-effort write performed after the state lock is released
type effect struct {
	name string
	run  func(ctx context.Context) error
}

// effectBatch is the effects of one command, queued in the order the state lock was taken
type effectBatch struct {
	ctx context.Context
	fx  []effect
}

// DispatchService owns the current snapshot and the active route. Every state change schedules a
// redraw of the overlay surface.
type DispatchService struct {
	store    RealtimeStore
	events   RouteEventPublisher
	actuator SignalActuator
	episodes storage.EpisodeRepository
	logger   *zap.Logger
	opts     routing.Options
	surface  *overlay.Surface
	now      func() time.Time
	newID    func() string

	mu         sync.RWMutex
	snapshot   models.Snapshot
	route      *models.EmergencyRoute
	episode    *models.Episode
	focusID    string
	zoneFilter string
	user       *geo.Point
	overrides  map[string]models.SignalState

	queueMu sync.Mutex
	queue   []effectBatch
	runMu   sync.Mutex
}

// NewDispatchService creates the dispatcher. events may be nil when no bus is configured.
func NewDispatchService(opts routing.Options, store RealtimeStore, events RouteEventPublisher, episodes storage.EpisodeRepository, logger *zap.Logger) *DispatchService {
	if episodes == nil {
		episodes = storage.NewMockRepository()
	}
	d := &DispatchService{
		store:     store,
		events:    events,
		episodes:  episodes,
		logger:    logger,
		opts:      opts.WithDefaults(),
		now:       time.Now,
		newID:     uuid.NewString,
		overrides: make(map[string]models.SignalState),
	}
	d.surface = overlay.NewSurface(d.RenderInput, logger)
	return d
}

// Surface returns the overlay surface fed by this dispatcher
func (d *DispatchService) Surface() *overlay.Surface {
	return d.surface
}

// SetSignalActuator forwards signal overrides to physical controllers. Call before serving commands.
func (d *DispatchService) SetSignalActuator(a SignalActuator) {
	d.actuator = a
}

// RenderInput returns the state the next frame is drawn from
func (d *DispatchService) RenderInput() overlay.Input {
	d.mu.RLock()
	defer d.mu.RUnlock()

	in := overlay.Input{
		Snapshot:         d.snapshot,
		FocusAmbulanceID: d.focusID,
		ZoneFilter:       d.zoneFilter,
		Options:          d.opts,
	}
	if d.route != nil {
		route := *d.route
		in.Route = &route
	}
	if d.user != nil {
		user := *d.user
		in.UserPosition = &user
	}
	return in
}

// Frame returns the latest overlay frame, drawing one if nothing was drawn yet
func (d *DispatchService) Frame() overlay.Frame {
	if d.surface.Generation() == 0 {
		return d.surface.Draw()
	}
	return d.surface.Frame()
}

// Snapshot returns the current snapshot
func (d *DispatchService) Snapshot() models.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot
}

// ApplySnapshot replaces the collections carried by update. An ambulance keeps its local position when
// the local fix is newer than the stored one, since fixes reach the database in batches.
func (d *DispatchService) ApplySnapshot(update models.SnapshotUpdate) {
	d.mu.Lock()
	if update.Ambulances != nil {
		update.Ambulances = keepNewerPositions(d.snapshot.Ambulances, update.Ambulances)
	}
	d.snapshot = d.snapshot.Apply(update)
	d.mu.Unlock()

	d.surface.Invalidate()
}

// ApplyPositionFix moves a known ambulance. Fixes for unknown units are ignored.
func (d *DispatchService) ApplyPositionFix(fix models.PositionFix) bool {
	d.mu.Lock()
	idx := -1
	for i, a := range d.snapshot.Ambulances {
		if a.ID == fix.AmbulanceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		d.logger.Debug("Position fix for unknown ambulance", zap.String("ambulance_id", fix.AmbulanceID))
		return false
	}

	ambulances := append([]models.Ambulance(nil), d.snapshot.Ambulances...)
	ambulances[idx].Position = fix.Position
	ambulances[idx].LastUpdate = fix.Timestamp
	d.snapshot.Ambulances = ambulances
	d.mu.Unlock()

	d.surface.Invalidate()
	return true
}

// RequestEmergency routes an ambulance to the nearest eligible hospital and turns the signals on its
// route to emergency. An empty ambulanceID picks the first en-route unit, then the first unit.
func (d *DispatchService) RequestEmergency(ctx context.Context, ambulanceID string, waypoints []geo.Point) (RouteView, error) {
	d.mu.Lock()

	amb := routing.PickAmbulance(d.snapshot.Ambulances, ambulanceID)
	if amb == nil {
		d.mu.Unlock()
		if ambulanceID == "" {
			return RouteView{}, ErrNoAmbulances
		}
		return RouteView{}, fmt.Errorf("%w: %s", ErrUnknownAmbulance, ambulanceID)
	}
	hosp := routing.SelectDestination(amb.Position, d.snapshot.Hospitals)
	if hosp == nil {
		d.mu.Unlock()
		return RouteView{}, ErrNoHospitals
	}

	var fx []effect
	fx = d.endRouteLocked(models.EndReplaced, fx)

	view, fx := d.startRouteLocked(routing.NewEmergencyRoute(*amb, *hosp, waypoints, models.TriggerEmergency), fx)

	states := make(map[string]models.SignalState, len(view.Model.OnRouteSignals))
	for _, id := range view.Model.OnRouteSignals {
		if _, saved := d.overrides[id]; !saved {
			d.overrides[id] = restoreState(d.signalState(id))
		}
		states[id] = models.SignalEmergency
	}
	d.snapshot.Signals = withSignalStates(d.snapshot.Signals, states)
	d.snapshot.Emergency = true

	fx = append(fx,
		effect{"set emergency", func(ctx context.Context) error { return d.store.SetEmergency(ctx, true) }},
		effect{"record activation", d.store.RecordActivation},
	)
	fx = append(fx, d.signalEffects("override", states)...)
	d.enqueueLocked(ctx, fx)
	d.mu.Unlock()

	d.logger.Info("Emergency route created",
		zap.String("episode_id", view.Route.EpisodeID),
		zap.String("ambulance_id", view.Route.AmbulanceID),
		zap.String("hospital_id", view.Route.HospitalID),
		zap.Float64("distance_km", view.Model.DistanceKm),
		zap.Int("eta_minutes", view.Model.ETAMinutes),
		zap.Strings("on_route_signals", view.Model.OnRouteSignals))

	d.flushEffects()
	d.surface.Invalidate()
	return view, nil
}

// CancelEmergency clears the active route and the emergency flag and restores overridden signals
func (d *DispatchService) CancelEmergency(ctx context.Context) error {
	d.mu.Lock()
	if d.route == nil && !d.snapshot.Emergency {
		d.mu.Unlock()
		return ErrNoActiveRoute
	}

	fx := d.endRouteLocked(models.EndCancelled, nil)
	if d.snapshot.Emergency {
		d.snapshot.Emergency = false
		fx = append(fx, effect{"clear emergency", func(ctx context.Context) error { return d.store.SetEmergency(ctx, false) }})
	}
	d.enqueueLocked(ctx, fx)
	d.mu.Unlock()

	d.logger.Info("Emergency cancelled")
	d.flushEffects()
	d.surface.Invalidate()
	return nil
}

// StartDispatch routes an ambulance to an operator-chosen hospital and marks it en-route
func (d *DispatchService) StartDispatch(ctx context.Context, ambulanceID, hospitalID string, waypoints []geo.Point) (RouteView, error) {
	d.mu.Lock()

	amb, ok := d.snapshot.FindAmbulance(ambulanceID)
	if !ok {
		d.mu.Unlock()
		return RouteView{}, fmt.Errorf("%w: %s", ErrUnknownAmbulance, ambulanceID)
	}
	hosp, ok := d.snapshot.FindHospital(hospitalID)
	if !ok {
		d.mu.Unlock()
		return RouteView{}, fmt.Errorf("%w: %s", ErrUnknownHospital, hospitalID)
	}

	fx := d.endRouteLocked(models.EndReplaced, nil)
	view, fx := d.startRouteLocked(routing.NewEmergencyRoute(amb, hosp, waypoints, models.TriggerDispatch), fx)

	d.snapshot.Ambulances = withAmbulanceDispatch(d.snapshot.Ambulances, amb.ID, models.AmbulanceEnRoute, hosp.Name)
	fx = append(fx, effect{"mark en-route", func(ctx context.Context) error {
		return d.store.UpdateAmbulanceDispatch(ctx, amb.ID, models.AmbulanceEnRoute, hosp.Name)
	}})
	d.enqueueLocked(ctx, fx)
	d.mu.Unlock()

	d.logger.Info("Dispatch started",
		zap.String("episode_id", view.Route.EpisodeID),
		zap.String("ambulance_id", amb.ID),
		zap.String("hospital_id", hosp.ID))

	d.flushEffects()
	d.surface.Invalidate()
	return view, nil
}

// CompleteDispatch ends the active route on arrival, frees the ambulance and records the response time
func (d *DispatchService) CompleteDispatch(ctx context.Context) error {
	d.mu.Lock()
	if d.route == nil {
		d.mu.Unlock()
		return ErrNoActiveRoute
	}

	ambulanceID := d.route.AmbulanceID
	elapsed := d.now().Sub(d.episode.StartedAt)

	fx := d.endRouteLocked(models.EndCompleted, nil)
	d.snapshot.Ambulances = withAmbulanceDispatch(d.snapshot.Ambulances, ambulanceID, models.AmbulanceIdle, "")
	fx = append(fx,
		effect{"mark idle", func(ctx context.Context) error {
			return d.store.UpdateAmbulanceDispatch(ctx, ambulanceID, models.AmbulanceIdle, "")
		}},
		effect{"record response", func(ctx context.Context) error { return d.store.RecordResponse(ctx, elapsed) }},
	)
	d.enqueueLocked(ctx, fx)
	d.mu.Unlock()

	d.logger.Info("Dispatch completed",
		zap.String("ambulance_id", ambulanceID),
		zap.Duration("elapsed", elapsed))

	d.flushEffects()
	d.surface.Invalidate()
	return nil
}

// SetAmbulanceStatus records a crew or operator status change such as arriving on scene
func (d *DispatchService) SetAmbulanceStatus(ctx context.Context, ambulanceID string, status models.AmbulanceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: ambulance status %q", ErrInvalidCommand, status)
	}

	d.mu.Lock()
	amb, ok := d.snapshot.FindAmbulance(ambulanceID)
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAmbulance, ambulanceID)
	}
	d.snapshot.Ambulances = withAmbulanceStatus(d.snapshot.Ambulances, amb.ID, status)

	entry := models.LogEntry{
		Time:    d.now(),
		Message: fmt.Sprintf("%s status %s", amb.ID, status),
		Type:    models.LogNormal,
	}
	if status == models.AmbulanceEnRoute {
		entry.Type = models.LogEmergency
	}
	d.enqueueLocked(ctx, []effect{
		{"update status", func(ctx context.Context) error { return d.store.UpdateAmbulanceStatus(ctx, amb.ID, status) }},
		{"log status", func(ctx context.Context) error { return d.store.PushLog(ctx, entry) }},
	})
	d.mu.Unlock()

	d.logger.Info("Ambulance status changed",
		zap.String("ambulance_id", amb.ID),
		zap.String("from", string(amb.Status)),
		zap.String("to", string(status)))

	d.flushEffects()
	d.surface.Invalidate()
	return nil
}

// SetZoneActive activates or deactivates a zone. Active zones are drawn with a solid outline.
func (d *DispatchService) SetZoneActive(ctx context.Context, zoneID string, active bool) error {
	d.mu.Lock()
	idx := -1
	for i, z := range d.snapshot.Zones {
		if z.ID == zoneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownZone, zoneID)
	}

	zones := append([]models.Zone(nil), d.snapshot.Zones...)
	zones[idx].Active = active
	d.snapshot.Zones = zones

	entry := models.LogEntry{Time: d.now(), Message: fmt.Sprintf("Zone %s deactivated", zoneID), Type: models.LogNormal}
	if active {
		entry.Message = fmt.Sprintf("Zone %s activated", zoneID)
		entry.Type = models.LogEmergency
	}
	d.enqueueLocked(ctx, []effect{
		{"update zone", func(ctx context.Context) error { return d.store.SetZoneActive(ctx, zoneID, active) }},
		{"log zone", func(ctx context.Context) error { return d.store.PushLog(ctx, entry) }},
	})
	d.mu.Unlock()

	d.logger.Info("Zone toggled", zap.String("zone_id", zoneID), zap.Bool("active", active))

	d.flushEffects()
	d.surface.Invalidate()
	return nil
}

// HasAmbulance reports whether the unit is in the current snapshot
func (d *DispatchService) HasAmbulance(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.snapshot.FindAmbulance(id)
	return ok
}

// Track focuses the map on an ambulance; an empty id clears the focus
func (d *DispatchService) Track(ambulanceID string) error {
	d.mu.Lock()
	if ambulanceID != "" {
		if _, ok := d.snapshot.FindAmbulance(ambulanceID); !ok {
			d.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownAmbulance, ambulanceID)
		}
	}
	d.focusID = ambulanceID
	d.mu.Unlock()

	d.surface.Invalidate()
	return nil
}

// SetZoneFilter limits drawn entities to one zone; an empty zone clears the filter
func (d *DispatchService) SetZoneFilter(zone string) {
	d.mu.Lock()
	d.zoneFilter = zone
	d.mu.Unlock()

	d.surface.Invalidate()
}

// SetUserLocation sets or, with nil, clears the operator position
func (d *DispatchService) SetUserLocation(pos *geo.Point) {
	d.mu.Lock()
	if pos == nil {
		d.user = nil
	} else {
		p := *pos
		d.user = &p
	}
	d.mu.Unlock()

	d.surface.Invalidate()
}

// HandleCommand applies a bus or HTTP command
func (d *DispatchService) HandleCommand(ctx context.Context, cmd models.Command) error {
	switch cmd.Type {
	case models.CmdRequestEmergency:
		_, err := d.RequestEmergency(ctx, cmd.AmbulanceID, cmd.WaypointPoints())
		return err
	case models.CmdCancelEmergency:
		return d.CancelEmergency(ctx)
	case models.CmdStartDispatch:
		_, err := d.StartDispatch(ctx, cmd.AmbulanceID, cmd.HospitalID, cmd.WaypointPoints())
		return err
	case models.CmdCompleteDispatch:
		return d.CompleteDispatch(ctx)
	case models.CmdTrack:
		return d.Track(cmd.AmbulanceID)
	case models.CmdZoneFilter:
		d.SetZoneFilter(cmd.Zone)
		return nil
	case models.CmdUserLocation:
		if pos, ok := cmd.Position(); ok {
			d.SetUserLocation(&pos)
		} else {
			d.SetUserLocation(nil)
		}
		return nil
	case models.CmdAmbulanceStatus:
		return d.SetAmbulanceStatus(ctx, cmd.AmbulanceID, cmd.Status)
	case models.CmdZoneActive:
		if cmd.Active == nil {
			return fmt.Errorf("%w: zone_active without active", ErrInvalidCommand)
		}
		return d.SetZoneActive(ctx, cmd.Zone, *cmd.Active)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

// ActiveRoute returns the active route with geometry derived from the current signals
func (d *DispatchService) ActiveRoute() (RouteView, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.route == nil {
		return RouteView{}, false
	}
	return RouteView{Route: *d.route, Model: routing.BuildRoute(*d.route, d.snapshot.Signals, d.opts)}, true
}

// NearestHospital selects the destination for a position using the current hospitals
func (d *DispatchService) NearestHospital(pos geo.Point) (models.Hospital, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h := routing.SelectDestination(pos, d.snapshot.Hospitals)
	if h == nil {
		return models.Hospital{}, ErrNoHospitals
	}
	return *h, nil
}

// Episodes lists recent route episodes
func (d *DispatchService) Episodes(ctx context.Context, limit int) ([]models.Episode, error) {
	return d.episodes.List(ctx, limit)
}

// startRouteLocked installs route as the active route. d.mu must be held.
func (d *DispatchService) startRouteLocked(route models.EmergencyRoute, fx []effect) (RouteView, []effect) {
	route.EpisodeID = d.newID()
	route.CreatedAt = d.now()
	model := routing.BuildRoute(route, d.snapshot.Signals, d.opts)

	episode := models.Episode{
		ID:           route.EpisodeID,
		AmbulanceID:  route.AmbulanceID,
		HospitalID:   route.HospitalID,
		HospitalName: route.HospitalName,
		DistanceKm:   model.DistanceKm,
		ETAMinutes:   model.ETAMinutes,
		Trigger:      route.Trigger,
		StartedAt:    route.CreatedAt,
	}
	d.route = &route
	d.episode = &episode

	event := models.RouteEvent{
		Event:          models.RouteCreated,
		EpisodeID:      episode.ID,
		AmbulanceID:    route.AmbulanceID,
		HospitalID:     route.HospitalID,
		HospitalName:   route.HospitalName,
		DistanceKm:     model.DistanceKm,
		ETAMinutes:     model.ETAMinutes,
		OnRouteSignals: model.OnRouteSignals,
		At:             route.CreatedAt,
	}
	entry := models.LogEntry{
		Time:    route.CreatedAt,
		Message: fmt.Sprintf("%s routed to %s (%.1f km, ~%d min)", route.AmbulanceID, route.HospitalName, model.DistanceKm, model.ETAMinutes),
		Type:    models.LogEmergency,
	}
	if route.Trigger == models.TriggerDispatch {
		entry.Type = models.LogNormal
	}

	fx = append(fx,
		effect{"save episode", func(ctx context.Context) error { return d.episodes.Create(ctx, episode) }},
		effect{"publish route_created", func(ctx context.Context) error { return d.publish(ctx, event) }},
		effect{"log route", func(ctx context.Context) error { return d.store.PushLog(ctx, entry) }},
	)
	return RouteView{Route: route, Model: model}, fx
}

// endRouteLocked clears the active route, if any, and restores overridden signals. d.mu must be held.
func (d *DispatchService) endRouteLocked(reason models.RouteEndReason, fx []effect) []effect {
	if len(d.overrides) > 0 {
		restore := d.overrides
		d.overrides = make(map[string]models.SignalState)
		d.snapshot.Signals = withSignalStates(d.snapshot.Signals, restore)
		fx = append(fx, d.signalEffects("restore", restore)...)
	}

	if d.route == nil {
		return fx
	}

	route := *d.route
	episode := *d.episode
	now := d.now()
	d.route = nil
	d.episode = nil

	if route.Trigger == models.TriggerEmergency && d.snapshot.Emergency {
		d.snapshot.Emergency = false
		fx = append(fx, effect{"clear emergency", func(ctx context.Context) error { return d.store.SetEmergency(ctx, false) }})
	}

	event := models.RouteEvent{
		Event:        models.RouteCleared,
		EpisodeID:    episode.ID,
		AmbulanceID:  route.AmbulanceID,
		HospitalID:   route.HospitalID,
		HospitalName: route.HospitalName,
		DistanceKm:   episode.DistanceKm,
		ETAMinutes:   episode.ETAMinutes,
		Reason:       reason,
		At:           now,
	}
	entry := models.LogEntry{
		Time:    now,
		Message: fmt.Sprintf("Route %s for %s %s", episode.ID, route.AmbulanceID, reason),
		Type:    models.LogNormal,
	}

	return append(fx,
		effect{"end episode", func(ctx context.Context) error { return d.episodes.End(ctx, episode.ID, now, reason) }},
		effect{"publish route_cleared", func(ctx context.Context) error { return d.publish(ctx, event) }},
		effect{"log route end", func(ctx context.Context) error { return d.store.PushLog(ctx, entry) }},
	)
}

// signalEffects writes states to the database and, when configured, to the controllers
func (d *DispatchService) signalEffects(action string, states map[string]models.SignalState) []effect {
	fx := []effect{{action + " signals", func(ctx context.Context) error { return d.store.SetSignalStates(ctx, states) }}}
	if d.actuator != nil {
		fx = append(fx, effect{action + " controllers", func(ctx context.Context) error { return d.actuator.ApplySignalStates(ctx, states) }})
	}
	return fx
}

func (d *DispatchService) publish(ctx context.Context, event models.RouteEvent) error {
	if d.events == nil {
		return nil
	}
	return d.events.PublishRouteEvent(ctx, event)
}

// enqueueLocked queues the effects of one command. d.mu must be held so that queue order matches the
// order in which commands changed state.
func (d *DispatchService) enqueueLocked(ctx context.Context, fx []effect) {
	if len(fx) == 0 {
		return
	}
	d.queueMu.Lock()
	d.queue = append(d.queue, effectBatch{ctx: ctx, fx: fx})
	d.queueMu.Unlock()
}

// flushEffects runs queued batches one at a time in queue order. It returns once every batch queued
// before the call has run, whichever caller ran it.
func (d *DispatchService) flushEffects() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	for {
		d.queueMu.Lock()
		if len(d.queue) == 0 {
			d.queueMu.Unlock()
			return
		}
		batch := d.queue[0]
		d.queue = d.queue[1:]
		d.queueMu.Unlock()

		d.runEffects(batch.ctx, batch.fx)
	}
}

// runEffects performs writes in order. Failures are logged and never roll back in-memory state.
func (d *DispatchService) runEffects(ctx context.Context, fx []effect) {
	for _, e := range fx {
		if err := e.run(ctx); err != nil {
			d.logger.Warn("Dispatch side effect failed", zap.String("effect", e.name), zap.Error(err))
		}
	}
}

func (d *DispatchService) signalState(id string) models.SignalState {
	for _, s := range d.snapshot.Signals {
		if s.ID == id {
			return s.State
		}
	}
	return models.SignalRed
}

// restoreState is the state a signal returns to after an override
func restoreState(prev models.SignalState) models.SignalState {
	if prev == models.SignalEmergency || !prev.Valid() {
		return models.SignalRed
	}
	return prev
}

// withSignalStates returns a copy of signals with the given states applied
func withSignalStates(signals []models.TrafficSignal, states map[string]models.SignalState) []models.TrafficSignal {
	if len(states) == 0 {
		return signals
	}
	out := append([]models.TrafficSignal(nil), signals...)
	for i := range out {
		if state, ok := states[out[i].ID]; ok {
			out[i].State = state
		}
	}
	return out
}

// keepNewerPositions returns incoming with the position of every unit whose local fix is newer restored
func keepNewerPositions(local, incoming []models.Ambulance) []models.Ambulance {
	if len(local) == 0 {
		return incoming
	}
	latest := make(map[string]models.Ambulance, len(local))
	for _, a := range local {
		latest[a.ID] = a
	}

	out := append([]models.Ambulance(nil), incoming...)
	for i := range out {
		if prev, ok := latest[out[i].ID]; ok && prev.LastUpdate.After(out[i].LastUpdate) {
			out[i].Position = prev.Position
			out[i].LastUpdate = prev.LastUpdate
		}
	}
	return out
}

// withAmbulanceStatus returns a copy of ambulances with one unit's status replaced
func withAmbulanceStatus(ambulances []models.Ambulance, id string, status models.AmbulanceStatus) []models.Ambulance {
	out := append([]models.Ambulance(nil), ambulances...)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = status
		}
	}
	return out
}

// withAmbulanceDispatch returns a copy of ambulances with one unit's status and destination replaced
func withAmbulanceDispatch(ambulances []models.Ambulance, id string, status models.AmbulanceStatus, destination string) []models.Ambulance {
	out := append([]models.Ambulance(nil), ambulances...)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = status
			out[i].Destination = destination
		}
	}
	return out
}
