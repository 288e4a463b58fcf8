package models

import (
	"time"

	"github.com/google/uuid"
)

// Role - роль отправителя или подписчика
type Role string

const (
	RolePublic     Role = "public"
	RoleDispatcher Role = "dispatcher"
	RoleCommander  Role = "commander"
	RoleSystem     Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RolePublic, RoleDispatcher, RoleCommander:
		return true
	}
	return false
}

// Coordinates - пара координат из клиента
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Submission - сырое обращение в том виде, в каком его прислал клиент
type Submission struct {
	SessionID   string
	Text        string
	Audio       []byte
	AudioMIME   string
	Transcript  string
	ImageRef    string
	ImageTag    string
	Coordinates *Coordinates
	Role        Role
	Channel     string
}

// ReportEnvelope - нормализованное обращение, вход конвейера анализа
type ReportEnvelope struct {
	SubmissionID uuid.UUID    `json:"submission_id"`
	SessionID    string       `json:"session_id"`
	Text         string       `json:"text"`
	Transcript   string       `json:"transcript,omitempty"`
	ImageRef     string       `json:"image_ref,omitempty"`
	ImageTag     string       `json:"image_tag,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Role         Role         `json:"role"`
	Channel      string       `json:"channel,omitempty"`
	Context      []string     `json:"context,omitempty"`
	SubmittedAt  time.Time    `json:"submitted_at"`
}

// CombinedText склеивает текст и расшифровку для стадий, работающих с текстом
func (e *ReportEnvelope) CombinedText() string {
	switch {
	case e.Text != "" && e.Transcript != "":
		return e.Text + "\n" + e.Transcript
	case e.Text != "":
		return e.Text
	default:
		return e.Transcript
	}
}

func (e *ReportEnvelope) HasImage() bool {
	return e.ImageRef != "" || e.ImageTag != ""
}

// SubmissionResult - итог успешной подачи обращения
type SubmissionResult struct {
	SubmissionID uuid.UUID
	SessionID    string
	Incident     *Incident
	Analysis     *AnalysisResult
}
