package service

//go:generate mockgen -source=incident.go -destination=mocks/incident.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	// Commit атомарно сохраняет новое состояние, запись журнала и (если есть) запись аудита.
	// Если версия в бд не равна expectedVersion, возвращает ErrVersionConflict.
	Commit(ctx context.Context, incident *models.Incident, expectedVersion int64, entry models.TransitionEntry, approval *models.ApprovalRecord) error
	ListQueue(ctx context.Context, filter models.QueueFilter) ([]*models.Incident, error)
	ListActive(ctx context.Context, commanderID string) ([]*models.Incident, error)
	ListResolved(ctx context.Context, commanderID string, limit int) ([]*models.Incident, error)
	ListApprovals(ctx context.Context, incidentID uuid.UUID) ([]*models.ApprovalRecord, error)
	SaveSafetyRejection(ctx context.Context, rejection *models.SafetyRejection) error
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// Assigner - внешняя политика назначения командира
type Assigner interface {
	Assign(ctx context.Context, incident *models.Incident) (string, error)
	Release(ctx context.Context, commanderID string, incidentID uuid.UUID)
	Snapshot() []models.CommanderStatus
}

// EventPublisher получает каждое зафиксированное изменение
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// IncidentService определяет контракт чтения инцидентов и переходов командира
type IncidentService interface {
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	QueryQueue(ctx context.Context, filter models.QueueFilter) ([]*models.Incident, error)
	QueryActive(ctx context.Context, commanderID string) ([]*models.Incident, error)
	QueryResolved(ctx context.Context, commanderID string, limit int) ([]*models.Incident, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64, status models.Status, actor models.Actor, notes string) (*models.Incident, error)
	ApprovalHistory(ctx context.Context, id uuid.UUID) ([]*models.ApprovalRecord, error)
}

// IncidentStore - единственный владелец инцидентов.
// Все изменения проходят через Transition: проверка, фиксация, затем рассылка.
type IncidentStore struct {
	repo      IncidentRepository
	assigner  Assigner
	publisher EventPublisher
	locks     *lockTable
	logger    *logrus.Logger
	now       func() time.Time
}

func NewIncidentStore(repo IncidentRepository, assigner Assigner, publisher EventPublisher, logger *logrus.Logger) *IncidentStore {
	return &IncidentStore{
		repo:      repo,
		assigner:  assigner,
		publisher: publisher,
		locks:     newLockTable(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create заводит инцидент в pending_dispatch по завершенному анализу
func (s *IncidentStore) Create(ctx context.Context, env *models.ReportEnvelope, analysis *models.AnalysisResult) (*models.Incident, error) {
	now := s.now()
	incident := &models.Incident{
		ID:           uuid.New(),
		SubmissionID: env.SubmissionID,
		SessionID:    env.SessionID,
		Status:       models.StatusPendingDispatch,
		Priority:     analysis.Priority,
		Type:         analysis.Type,
		Description:  env.CombinedText(),
		Assets:       append([]models.Asset{}, analysis.Assets...),
		Analysis:     analysis.Clone(),
		Version:      1,
		Transitions: []models.TransitionEntry{{
			Version:   1,
			To:        models.StatusPendingDispatch,
			Actor:     models.SystemActor,
			Reason:    "analysis completed",
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if analysis.Location != nil {
		loc := *analysis.Location
		incident.Location = &loc
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":       "incident",
		"method":        "Create",
		"incident_id":   incident.ID,
		"submission_id": env.SubmissionID,
	})
	log.Info("Attempting to create a new incident")

	unlock := s.locks.Lock(incident.ID)
	defer unlock()

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}

	s.publish(ctx, log, models.NewEvent(models.EventNewIncident, incident))
	log.WithField("priority", incident.Priority).Info("Incident created successfully")
	return incident.Clone(), nil
}

// GetIncident получает инцидент по ID
func (s *IncidentStore) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Debug("Fetching incident by ID")

	cached, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident cache")
	} else if cached != nil {
		return cached, nil
	}

	// чтение и заполнение кеша под блокировкой инцидента: переход не может
	// инвалидировать кеш между ними и оставить в нем старый снимок
	unlock := s.locks.Lock(id)
	defer unlock()

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrIncidentNotFound) {
			log.WithError(err).Error("Failed to get incident in repository")
		}
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}
	return incident, nil
}

// QueryQueue - очередь диспетчера: pending_dispatch, P1 первыми, затем новые
func (s *IncidentStore) QueryQueue(ctx context.Context, filter models.QueueFilter) ([]*models.Incident, error) {
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, models.ErrInvalidPriority
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 50
	}
	incidents, err := s.repo.ListQueue(ctx, filter)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"service": "incident", "method": "QueryQueue"}).WithError(err).Error("Failed to list queue")
		return nil, fmt.Errorf("service: could not list queue: %w", err)
	}
	return incidents, nil
}

// QueryActive - активные инциденты, для пустого commanderID по всем командирам
func (s *IncidentStore) QueryActive(ctx context.Context, commanderID string) ([]*models.Incident, error) {
	incidents, err := s.repo.ListActive(ctx, commanderID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":      "incident",
			"method":       "QueryActive",
			"commander_id": commanderID,
		}).WithError(err).Error("Failed to list active incidents")
		return nil, fmt.Errorf("service: could not list active incidents: %w", err)
	}
	return incidents, nil
}

// QueryResolved - история закрытых инцидентов
func (s *IncidentStore) QueryResolved(ctx context.Context, commanderID string, limit int) ([]*models.Incident, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	incidents, err := s.repo.ListResolved(ctx, commanderID, limit)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":      "incident",
			"method":       "QueryResolved",
			"commander_id": commanderID,
		}).WithError(err).Error("Failed to list resolved incidents")
		return nil, fmt.Errorf("service: could not list resolved incidents: %w", err)
	}
	return incidents, nil
}

// ApprovalHistory возвращает журнал решений диспетчера по инциденту
func (s *IncidentStore) ApprovalHistory(ctx context.Context, id uuid.UUID) ([]*models.ApprovalRecord, error) {
	records, err := s.repo.ListApprovals(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not list approvals: %w", err)
	}
	return records, nil
}

// UpdateStatus - переходы командира. dispatched и rejected доступны только через ApprovalGate.
func (s *IncidentStore) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64, status models.Status, actor models.Actor, notes string) (*models.Incident, error) {
	action, ok := commanderActions[status]
	if !ok {
		return nil, fmt.Errorf("service: status %q cannot be set directly: %w", status, models.ErrInvalidTransition)
	}
	return s.Transition(ctx, id, Command{
		Action:          action,
		ExpectedVersion: expectedVersion,
		Actor:           actor,
		Notes:           notes,
	})
}

// RecordSafetyRejection сохраняет факт отказа фильтра безопасности
func (s *IncidentStore) RecordSafetyRejection(ctx context.Context, rejection *models.SafetyRejection) error {
	if rejection.RejectedAt.IsZero() {
		rejection.RejectedAt = s.now()
	}
	if err := s.repo.SaveSafetyRejection(ctx, rejection); err != nil {
		return fmt.Errorf("service: could not record safety rejection: %w", err)
	}
	return nil
}

func (s *IncidentStore) publish(ctx context.Context, log *logrus.Entry, event models.Event) {
	if s.publisher == nil {
		return
	}
	// фиксация уже состоялась, сбой рассылки не откатывает переход
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).WithField("kind", event.Kind).Warn("Failed to publish incident event")
	}
}
