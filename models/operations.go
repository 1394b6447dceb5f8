package models

import "time"

// IncidentSeverity ranks an incident report
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// Valid reports whether s is a known severity
func (s IncidentSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IncidentStatus tracks an incident from report to resolution
type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "open"
	IncidentInProgress IncidentStatus = "in-progress"
	IncidentResolved   IncidentStatus = "resolved"
)

// Valid reports whether s is a known status
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentOpen, IncidentInProgress, IncidentResolved:
		return true
	}
	return false
}

// Incident is an operator-filed report. ClosedAt is set when the incident is resolved.
type Incident struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Zone        string           `json:"zone,omitempty"`
	Severity    IncidentSeverity `json:"severity"`
	Status      IncidentStatus   `json:"status"`
	AmbulanceID string           `json:"ambulance_id,omitempty"`
	HospitalID  string           `json:"hospital_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ClosedAt    *time.Time       `json:"closed_at,omitempty"`
}

// Message is one line on a unit's comms channel
type Message struct {
	From string    `json:"from"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Patient is the patient record a crew attaches to its unit
type Patient struct {
	Name      string `json:"name"`
	Age       string `json:"age,omitempty"`
	Condition string `json:"condition,omitempty"`
	BloodType string `json:"blood_type,omitempty"`
	Notes     string `json:"notes,omitempty"`
}
