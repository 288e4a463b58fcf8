package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
)

// SubmitReportRequest DTO для подачи обращения
// @Description Обращение о происшествии: текст, аудио, изображение и координаты
type SubmitReportRequest struct {
	SessionID  string   `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Text       string   `json:"text,omitempty" validate:"max=8000"`
	Audio      []byte   `json:"audio,omitempty"`
	AudioMIME  string   `json:"audio_mime,omitempty" validate:"required_with=Audio"`
	Transcript string   `json:"transcript,omitempty" validate:"max=8000"`
	ImageRef   string   `json:"image_ref,omitempty" validate:"max=1024"`
	ImageTag   string   `json:"image_tag,omitempty" validate:"max=64"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Channel    string   `json:"channel,omitempty" validate:"omitempty,oneof=web sms voice app"`
}

// SubmitReportResponse DTO ответа на обращение
// @Description Созданный инцидент и результат анализа
type SubmitReportResponse struct {
	SubmissionID uuid.UUID              `json:"submission_id"`
	SessionID    string                 `json:"session_id"`
	Incident     *IncidentResponse      `json:"incident"`
	Analysis     *models.AnalysisResult `json:"analysis"`
}

// AssetDTO - рекомендованный ресурс
type AssetDTO struct {
	Type     string `json:"type" validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=100"`
}

// LocationDTO - координаты инцидента
type LocationDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// TransitionDTO - запись журнала переходов
type TransitionDTO struct {
	Version   int64     `json:"version"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Reason    string    `json:"reason,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description Снимок инцидента с журналом переходов
type IncidentResponse struct {
	ID                uuid.UUID             `json:"id"`
	Status            string                `json:"status"`
	Priority          string                `json:"priority"`
	IncidentType      string                `json:"incident_type"`
	Location          *LocationDTO          `json:"location,omitempty"`
	Description       string                `json:"description"`
	RecommendedAssets []AssetDTO            `json:"recommended_assets"`
	Analysis          models.AnalysisResult `json:"analysis"`
	AssignedCommander string                `json:"assigned_commander,omitempty"`
	Version           int64                 `json:"version"`
	History           []TransitionDTO       `json:"history"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	DispatchedAt      *time.Time            `json:"dispatched_at,omitempty"`
	ResolvedAt        *time.Time            `json:"resolved_at,omitempty"`
}

// ApproveRequest DTO одобрения инцидента диспетчером
// @Description Одобрение с необязательной правкой приоритета и ресурсов
type ApproveRequest struct {
	Version  int64      `json:"version" validate:"required,gt=0"`
	Priority string     `json:"priority,omitempty" validate:"omitempty,oneof=P1 P2 P3 P4"`
	Assets   []AssetDTO `json:"assets,omitempty" validate:"omitempty,dive"`
	Notes    string     `json:"notes,omitempty" validate:"max=2000"`
}

// RejectRequest DTO отклонения инцидента
// @Description Отклонение с обязательной причиной
type RejectRequest struct {
	Version int64  `json:"version" validate:"required,gt=0"`
	Reason  string `json:"reason" validate:"required,max=500"`
	Notes   string `json:"notes,omitempty" validate:"max=2000"`
}

// StatusUpdateRequest DTO смены статуса командиром
// @Description Переход инцидента в полевой статус
type StatusUpdateRequest struct {
	Version int64  `json:"version" validate:"required,gt=0"`
	Status  string `json:"status" validate:"required,oneof=in_progress reinforcement escalated resolved"`
	Notes   string `json:"notes,omitempty" validate:"max=2000"`
}

// ErrorResponse DTO ошибки
// @Description Ошибка с машинно-читаемым кодом
type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code,omitempty"`
	Kind           string `json:"kind,omitempty"`
	Stage          string `json:"stage,omitempty"`
	Rule           string `json:"rule,omitempty"`
	CurrentVersion int64  `json:"current_version,omitempty"`
	Retryable      bool   `json:"retryable,omitempty"`
}
