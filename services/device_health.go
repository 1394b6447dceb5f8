package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenwave/config"
	"greenwave/models"
)

// DeviceHealth is the liveness view of one roadside device
type DeviceHealth struct {
	DeviceID string              `json:"device_id"`
	Status   models.DeviceStatus `json:"status"`
	LastPing time.Time           `json:"last_ping"`
	Firmware string              `json:"firmware,omitempty"`
}

// DeviceStatusStore persists derived device statuses
type DeviceStatusStore interface {
	WriteDeviceStatus(ctx context.Context, devices []DeviceHealth) error
}

// DeriveDeviceStatus maps the age of the last ping to a status. A device that never pinged is offline.
func DeriveDeviceStatus(lastPing, now time.Time, warningAfter, offlineAfter time.Duration) models.DeviceStatus {
	if lastPing.IsZero() {
		return models.DeviceOffline
	}
	age := now.Sub(lastPing)
	switch {
	case age < warningAfter:
		return models.DeviceOnline
	case age < offlineAfter:
		return models.DeviceWarning
	default:
		return models.DeviceOffline
	}
}

// DeviceHealthService tracks pings from IoT devices and writes status transitions
type DeviceHealthService struct {
	store        DeviceStatusStore
	logger       *zap.Logger
	warningAfter time.Duration
	offlineAfter time.Duration
	checkEvery   time.Duration
	now          func() time.Time
	devices      map[string]*DeviceHealth
	mu           sync.RWMutex
}

// NewDeviceHealthService creates a new device health monitor
func NewDeviceHealthService(cfg *config.Config, store DeviceStatusStore, logger *zap.Logger) *DeviceHealthService {
	return &DeviceHealthService{
		store:        store,
		logger:       logger,
		warningAfter: cfg.DeviceWarningAfter,
		offlineAfter: cfg.DeviceOfflineAfter,
		checkEvery:   10 * time.Second,
		now:          time.Now,
		devices:      make(map[string]*DeviceHealth),
	}
}

// Start processes pings and periodically ages out silent devices
func (h *DeviceHealthService) Start(ctx context.Context, pings <-chan models.DevicePing) {
	h.logger.Info("Starting device health service",
		zap.Duration("warning_after", h.warningAfter),
		zap.Duration("offline_after", h.offlineAfter))

	go h.runTimeoutChecker(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Device health service stopped")
			return
		case ping, ok := <-pings:
			if !ok {
				h.logger.Info("Device ping channel closed")
				return
			}
			if changed := h.RecordPing(ping); changed != nil {
				h.persist(ctx, []DeviceHealth{*changed})
			}
		}
	}
}

// Track registers devices known from the database. Local ping times newer than the stored ones win.
func (h *DeviceHealthService) Track(devices []models.IoTDevice) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, d := range devices {
		existing, ok := h.devices[d.ID]
		if !ok {
			h.devices[d.ID] = &DeviceHealth{
				DeviceID: d.ID,
				Status:   d.Status,
				LastPing: d.LastPing,
				Firmware: d.Firmware,
			}
			continue
		}
		if d.LastPing.After(existing.LastPing) {
			existing.LastPing = d.LastPing
		}
		existing.Status = d.Status
	}
}

// RecordPing marks a device alive. It returns the new health when the status changed.
func (h *DeviceHealthService) RecordPing(ping models.DevicePing) *DeviceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	at := ping.Timestamp
	if at.IsZero() {
		at = h.now()
	}

	device, exists := h.devices[ping.DeviceID]
	if !exists {
		device = &DeviceHealth{DeviceID: ping.DeviceID, Status: models.DeviceOffline}
		h.devices[ping.DeviceID] = device
		h.logger.Info("New device registered for health monitoring", zap.String("device_id", ping.DeviceID))
	}

	if at.After(device.LastPing) {
		device.LastPing = at
	}
	if ping.Firmware != "" {
		device.Firmware = ping.Firmware
	}

	status := DeriveDeviceStatus(device.LastPing, h.now(), h.warningAfter, h.offlineAfter)
	h.logger.Debug("Device ping received",
		zap.String("device_id", ping.DeviceID),
		zap.Time("at", at),
		zap.String("status", string(status)))

	if status == device.Status {
		return nil
	}
	if device.Status == models.DeviceOffline {
		h.logger.Info("Device back online", zap.String("device_id", ping.DeviceID))
	}
	device.Status = status
	snapshot := *device
	return &snapshot
}

func (h *DeviceHealthService) runTimeoutChecker(ctx context.Context) {
	ticker := time.NewTicker(h.checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if changed := h.checkTimeouts(); len(changed) > 0 {
				h.persist(ctx, changed)
			}
		}
	}
}

// checkTimeouts re-derives every status and returns the devices whose status changed, ordered by id
func (h *DeviceHealthService) checkTimeouts() []DeviceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	var changed []DeviceHealth
	for deviceID, device := range h.devices {
		status := DeriveDeviceStatus(device.LastPing, now, h.warningAfter, h.offlineAfter)
		if status == device.Status {
			continue
		}
		h.logger.Warn("Device status changed",
			zap.String("device_id", deviceID),
			zap.String("from", string(device.Status)),
			zap.String("to", string(status)),
			zap.Time("last_ping", device.LastPing))
		device.Status = status
		changed = append(changed, *device)
	}

	sort.Slice(changed, func(i, j int) bool { return changed[i].DeviceID < changed[j].DeviceID })
	return changed
}

func (h *DeviceHealthService) persist(ctx context.Context, devices []DeviceHealth) {
	if h.store == nil {
		return
	}
	if err := h.store.WriteDeviceStatus(ctx, devices); err != nil {
		h.logger.Error("Failed to write device status",
			zap.Int("devices", len(devices)),
			zap.Error(err))
	}
}

// GetDeviceHealth returns the current health of a device
func (h *DeviceHealthService) GetDeviceHealth(deviceID string) (DeviceHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	device, exists := h.devices[deviceID]
	if !exists {
		return DeviceHealth{}, false
	}
	return *device, true
}
