package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind - тип сообщения для консолей
type EventKind string

const (
	EventNewIncident       EventKind = "new_incident"
	EventStatusChange      EventKind = "status_change"
	EventCommanderAssigned EventKind = "commander_assigned"
)

// Event - зафиксированное изменение инцидента. Несёт полный снимок, а не дифф.
type Event struct {
	Kind       EventKind `json:"kind"`
	IncidentID uuid.UUID `json:"incident_id"`
	Version    int64     `json:"version"`
	Incident   *Incident `json:"incident"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent строит событие по снимку инцидента
func NewEvent(kind EventKind, incident *Incident) Event {
	return Event{
		Kind:       kind,
		IncidentID: incident.ID,
		Version:    incident.Version,
		Incident:   incident.Clone(),
		OccurredAt: incident.UpdatedAt,
	}
}

// SubscriptionFilter - какие события нужны подписчику
type SubscriptionFilter struct {
	Role        Role      `json:"role"`
	CommanderID string    `json:"commander_id,omitempty"`
	IncidentID  uuid.UUID `json:"incident_id,omitempty"`
}

// Matches применяет правила фильтрации по ролям
func (f SubscriptionFilter) Matches(e Event) bool {
	switch f.Role {
	case RoleDispatcher:
		return true
	case RoleCommander:
		return e.Incident != nil && f.CommanderID != "" && e.Incident.CommanderID() == f.CommanderID
	case RolePublic:
		return f.IncidentID != uuid.Nil && e.IncidentID == f.IncidentID
	}
	return false
}
