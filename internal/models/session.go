package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage - реплика в истории сессии обращения
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	IncidentID *uuid.UUID `json:"incident_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// CommanderStatus - состояние командира в реестре
type CommanderStatus struct {
	ID              string      `json:"id"`
	Zone            string      `json:"zone,omitempty"`
	Specialization  string      `json:"specialization,omitempty"`
	Available       bool        `json:"available"`
	ActiveIncidents []uuid.UUID `json:"active_incidents"`
}
