package models

import (
	"time"

	"github.com/google/uuid"
)

// Status - состояние инцидента в жизненном цикле диспетчеризации
type Status string

const (
	StatusPendingDispatch Status = "pending_dispatch"
	StatusDispatched      Status = "dispatched"
	StatusRejected        Status = "rejected"
	StatusInProgress      Status = "in_progress"
	StatusReinforcement   Status = "reinforcement"
	StatusEscalated       Status = "escalated"
	StatusResolved        Status = "resolved"
)

// IsTerminal сообщает, что из статуса нет исходящих переходов
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusResolved
}

// IsActive - инцидент находится в работе у командира
func (s Status) IsActive() bool {
	switch s {
	case StatusDispatched, StatusInProgress, StatusReinforcement, StatusEscalated:
		return true
	}
	return false
}

// Priority - приоритет реагирования, P1 самый высокий
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// Rank возвращает числовой ранг (1 - критический), 0 для неизвестного значения
func (p Priority) Rank() int {
	switch p {
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	case PriorityP4:
		return 4
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Higher возвращает более срочный из двух приоритетов
func Higher(a, b Priority) Priority {
	if !b.Valid() {
		return a
	}
	if !a.Valid() || b.Rank() < a.Rank() {
		return b
	}
	return a
}

// IncidentType - категория происшествия
type IncidentType string

const (
	TypeFire           IncidentType = "Fire"
	TypeMedical        IncidentType = "Medical"
	TypeAccident       IncidentType = "Accident"
	TypeFlood          IncidentType = "Flood"
	TypeCrime          IncidentType = "Crime"
	TypeHazMat         IncidentType = "HazMat"
	TypeLandslide      IncidentType = "Landslide"
	TypeEarthquake     IncidentType = "Earthquake"
	TypeInfrastructure IncidentType = "Infrastructure"
	TypeOther          IncidentType = "Other"
)

// breadth - чем меньше число, тем шире и консервативнее категория.
// При равенстве оценок классификации выбирается категория с меньшим значением.
var breadth = map[IncidentType]int{
	TypeHazMat:         1,
	TypeFire:           2,
	TypeEarthquake:     3,
	TypeFlood:          4,
	TypeLandslide:      5,
	TypeInfrastructure: 6,
	TypeMedical:        7,
	TypeAccident:       8,
	TypeCrime:          9,
	TypeOther:          10,
}

func (t IncidentType) Valid() bool {
	_, ok := breadth[t]
	return ok
}

// MoreConservative сообщает, что t шире/консервативнее other
func (t IncidentType) MoreConservative(other IncidentType) bool {
	bt, ok := breadth[t]
	if !ok {
		return false
	}
	bo, ok := breadth[other]
	if !ok {
		return true
	}
	return bt < bo
}

// Location - координаты и необязательный адрес
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Asset - рекомендованный ресурс реагирования
type Asset struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// Actor - участник, инициирующий переход
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor используется для переходов, созданных самим конвейером
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// TransitionEntry - неизменяемая запись журнала переходов
type TransitionEntry struct {
	Version   int64     `json:"version"`
	From      Status    `json:"from,omitempty"`
	To        Status    `json:"to"`
	Actor     Actor     `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Incident - долговременный агрегат происшествия
type Incident struct {
	ID                uuid.UUID         `json:"id"`
	SubmissionID      uuid.UUID         `json:"submission_id"`
	SessionID         string            `json:"session_id,omitempty"`
	Status            Status            `json:"status"`
	Priority          Priority          `json:"priority"`
	Type              IncidentType      `json:"incident_type"`
	Location          *Location         `json:"location,omitempty"`
	Description       string            `json:"description"`
	Assets            []Asset           `json:"recommended_assets"`
	Analysis          AnalysisResult    `json:"analysis"`
	AssignedCommander *string           `json:"assigned_commander,omitempty"`
	Version           int64             `json:"version"`
	Transitions       []TransitionEntry `json:"transitions"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	DispatchedAt      *time.Time        `json:"dispatched_at,omitempty"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
}

// Clone возвращает глубокую копию, чтобы снимки не разделяли срезы и указатели
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	c := *i
	if i.Location != nil {
		loc := *i.Location
		c.Location = &loc
	}
	if i.AssignedCommander != nil {
		cmd := *i.AssignedCommander
		c.AssignedCommander = &cmd
	}
	if i.DispatchedAt != nil {
		t := *i.DispatchedAt
		c.DispatchedAt = &t
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		c.ResolvedAt = &t
	}
	c.Assets = append([]Asset(nil), i.Assets...)
	c.Transitions = append([]TransitionEntry(nil), i.Transitions...)
	c.Analysis = i.Analysis.Clone()
	return &c
}

// CurrentStatus - проекция последней записи журнала
func (i *Incident) CurrentStatus() Status {
	if len(i.Transitions) == 0 {
		return i.Status
	}
	return i.Transitions[len(i.Transitions)-1].To
}

// CommanderID возвращает назначенного командира или пустую строку
func (i *Incident) CommanderID() string {
	if i.AssignedCommander == nil {
		return ""
	}
	return *i.AssignedCommander
}

// QueueFilter - фильтр очереди диспетчера
type QueueFilter struct {
	Priority Priority     `json:"priority,omitempty"`
	Type     IncidentType `json:"incident_type,omitempty"`
	Limit    int          `json:"limit,omitempty"`
}
