package models

import (
	"time"

	"github.com/google/uuid"
)

// Decision - решение диспетчера
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ApprovalOverrides - правки диспетчера при одобрении, пустые поля не меняют анализ
type ApprovalOverrides struct {
	Priority Priority
	Assets   []Asset
	Notes    string
}

// ApprovalRecord - запись аудита решения диспетчера. Только добавляется.
type ApprovalRecord struct {
	ID                int64     `json:"id"`
	IncidentID        uuid.UUID `json:"incident_id"`
	Decision          Decision  `json:"decision"`
	Actor             Actor     `json:"actor"`
	OriginalPriority  Priority  `json:"original_priority"`
	RevisedPriority   Priority  `json:"revised_priority,omitempty"`
	OriginalAssets    []Asset   `json:"original_assets"`
	RevisedAssets     []Asset   `json:"revised_assets,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	AssignedCommander string    `json:"assigned_commander,omitempty"`
	DecidedAt         time.Time `json:"decided_at"`
}

// SafetyRejection представляет запись об отклонённом фильтром безопасности обращении
type SafetyRejection struct {
	ID           int64     `json:"id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	SessionID    string    `json:"session_id"`
	Stage        string    `json:"stage"`
	Rule         string    `json:"rule"`
	RejectedAt   time.Time `json:"rejected_at"`
}
