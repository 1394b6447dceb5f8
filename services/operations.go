package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"greenwave/models"
)

// OperationsStore persists incidents, crew messages and patient records
type OperationsStore interface {
	CreateIncident(ctx context.Context, incident models.Incident) (string, error)
	UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus, closedAt *time.Time) error
	ListIncidents(ctx context.Context) ([]models.Incident, error)
	PushMessage(ctx context.Context, unit string, msg models.Message) error
	ListMessages(ctx context.Context, unit string) ([]models.Message, error)
	SavePatient(ctx context.Context, ambulanceID string, patient models.Patient) error
	PushLog(ctx context.Context, entry models.LogEntry) error
}

// Fleet answers whether an ambulance unit exists
type Fleet interface {
	HasAmbulance(id string) bool
}

// OperationsService handles the operator and crew records that do not affect routing
type OperationsService struct {
	store  OperationsStore
	fleet  Fleet
	logger *zap.Logger
	now    func() time.Time
}

func NewOperationsService(store OperationsStore, fleet Fleet, logger *zap.Logger) *OperationsService {
	return &OperationsService{
		store:  store,
		fleet:  fleet,
		logger: logger,
		now:    time.Now,
	}
}

// CreateIncident files a new open incident. Severity defaults to medium.
func (o *OperationsService) CreateIncident(ctx context.Context, incident models.Incident) (models.Incident, error) {
	incident.Title = strings.TrimSpace(incident.Title)
	if incident.Title == "" {
		return models.Incident{}, fmt.Errorf("%w: incident title is required", ErrInvalidCommand)
	}
	if incident.Severity == "" {
		incident.Severity = models.SeverityMedium
	}
	if !incident.Severity.Valid() {
		return models.Incident{}, fmt.Errorf("%w: incident severity %q", ErrInvalidCommand, incident.Severity)
	}
	if incident.AmbulanceID != "" && !o.fleet.HasAmbulance(incident.AmbulanceID) {
		return models.Incident{}, fmt.Errorf("%w: %s", ErrUnknownAmbulance, incident.AmbulanceID)
	}

	incident.Status = models.IncidentOpen
	incident.CreatedAt = o.now()
	incident.ClosedAt = nil

	id, err := o.store.CreateIncident(ctx, incident)
	if err != nil {
		return models.Incident{}, err
	}
	incident.ID = id

	o.logger.Info("Incident created",
		zap.String("incident_id", id),
		zap.String("severity", string(incident.Severity)),
		zap.String("zone", incident.Zone))
	o.log(ctx, models.LogEntry{Time: incident.CreatedAt, Message: "Incident: " + incident.Title, Type: models.LogWarning})
	return incident, nil
}

// UpdateIncidentStatus moves an incident along; resolving it stamps the close time
func (o *OperationsService) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: incident status %q", ErrInvalidCommand, status)
	}

	var closedAt *time.Time
	now := o.now()
	if status == models.IncidentResolved {
		closedAt = &now
	}
	if err := o.store.UpdateIncidentStatus(ctx, id, status, closedAt); err != nil {
		return err
	}

	o.logger.Info("Incident status changed", zap.String("incident_id", id), zap.String("status", string(status)))
	o.log(ctx, models.LogEntry{Time: now, Message: fmt.Sprintf("Incident %s %s", id, status), Type: models.LogNormal})
	return nil
}

// Incidents lists incidents, newest first
func (o *OperationsService) Incidents(ctx context.Context) ([]models.Incident, error) {
	return o.store.ListIncidents(ctx)
}

// SendMessage posts to a unit's comms channel. from defaults to the unit itself.
func (o *OperationsService) SendMessage(ctx context.Context, unit, from, text string) (models.Message, error) {
	if !o.fleet.HasAmbulance(unit) {
		return models.Message{}, fmt.Errorf("%w: %s", ErrUnknownAmbulance, unit)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: message text is required", ErrInvalidCommand)
	}
	if from == "" {
		from = unit
	}

	msg := models.Message{From: from, Text: text, Time: o.now()}
	if err := o.store.PushMessage(ctx, unit, msg); err != nil {
		return models.Message{}, err
	}

	o.logger.Debug("Message sent", zap.String("unit", unit), zap.String("from", from))
	o.log(ctx, models.LogEntry{Time: msg.Time, Message: "Message sent to " + unit, Type: models.LogNormal})
	return msg, nil
}

// Messages lists a unit's comms channel, oldest first
func (o *OperationsService) Messages(ctx context.Context, unit string) ([]models.Message, error) {
	if !o.fleet.HasAmbulance(unit) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAmbulance, unit)
	}
	return o.store.ListMessages(ctx, unit)
}

// SavePatient stores the patient record of a unit
func (o *OperationsService) SavePatient(ctx context.Context, ambulanceID string, patient models.Patient) error {
	if !o.fleet.HasAmbulance(ambulanceID) {
		return fmt.Errorf("%w: %s", ErrUnknownAmbulance, ambulanceID)
	}
	patient.Name = strings.TrimSpace(patient.Name)
	if patient.Name == "" {
		return fmt.Errorf("%w: patient name is required", ErrInvalidCommand)
	}
	if err := o.store.SavePatient(ctx, ambulanceID, patient); err != nil {
		return err
	}

	o.logger.Info("Patient info saved", zap.String("ambulance_id", ambulanceID))
	o.log(ctx, models.LogEntry{Time: o.now(), Message: "Patient info saved: " + patient.Name, Type: models.LogNormal})
	return nil
}

func (o *OperationsService) log(ctx context.Context, entry models.LogEntry) {
	if err := o.store.PushLog(ctx, entry); err != nil {
		o.logger.Warn("Failed to push log entry", zap.Error(err))
	}
}
