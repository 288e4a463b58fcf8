// Package memory - in-memory реализация хранилища инцидентов для локального запуска и тестов.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
)

type IncidentRepository struct {
	mu         sync.RWMutex
	incidents  map[uuid.UUID]*models.Incident
	approvals  map[uuid.UUID][]*models.ApprovalRecord
	rejections []*models.SafetyRejection
	nextID     int64
}

func NewIncidentRepository() *IncidentRepository {
	return &IncidentRepository{
		incidents: make(map[uuid.UUID]*models.Incident),
		approvals: make(map[uuid.UUID][]*models.ApprovalRecord),
	}
}

func (r *IncidentRepository) Create(_ context.Context, incident *models.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.incidents[incident.ID]; ok {
		return models.ErrIncidentExists
	}
	r.incidents[incident.ID] = incident.Clone()
	return nil
}

func (r *IncidentRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	incident, ok := r.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident with id %s: %w", id, models.ErrIncidentNotFound)
	}
	return incident.Clone(), nil
}

// Commit применяет изменение целиком или не применяет вовсе
func (r *IncidentRepository) Commit(_ context.Context, incident *models.Incident, expectedVersion int64, _ models.TransitionEntry, approval *models.ApprovalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.incidents[incident.ID]
	if !ok {
		return fmt.Errorf("incident with id %s: %w", incident.ID, models.ErrIncidentNotFound)
	}
	if stored.Version != expectedVersion {
		return models.ErrVersionConflict
	}
	r.incidents[incident.ID] = incident.Clone()
	if approval != nil {
		r.nextID++
		rec := *approval
		rec.ID = r.nextID
		r.approvals[incident.ID] = append(r.approvals[incident.ID], &rec)
	}
	return nil
}

func (r *IncidentRepository) ListQueue(_ context.Context, filter models.QueueFilter) ([]*models.Incident, error) {
	out := r.filter(func(i *models.Incident) bool {
		if i.Status != models.StatusPendingDispatch {
			return false
		}
		if filter.Priority != "" && i.Priority != filter.Priority {
			return false
		}
		return filter.Type == "" || i.Type == filter.Type
	})
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Priority.Rank() != out[b].Priority.Rank() {
			return out[a].Priority.Rank() < out[b].Priority.Rank()
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *IncidentRepository) ListActive(_ context.Context, commanderID string) ([]*models.Incident, error) {
	out := r.filter(func(i *models.Incident) bool {
		return i.Status.IsActive() && (commanderID == "" || i.CommanderID() == commanderID)
	})
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Priority.Rank() != out[b].Priority.Rank() {
			return out[a].Priority.Rank() < out[b].Priority.Rank()
		}
		return timeOf(out[a].DispatchedAt).After(timeOf(out[b].DispatchedAt))
	})
	return out, nil
}

func (r *IncidentRepository) ListResolved(_ context.Context, commanderID string, limit int) ([]*models.Incident, error) {
	out := r.filter(func(i *models.Incident) bool {
		return i.Status == models.StatusResolved && (commanderID == "" || i.CommanderID() == commanderID)
	})
	sort.SliceStable(out, func(a, b int) bool {
		return timeOf(out[a].ResolvedAt).After(timeOf(out[b].ResolvedAt))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *IncidentRepository) ListApprovals(_ context.Context, incidentID uuid.UUID) ([]*models.ApprovalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ApprovalRecord, 0, len(r.approvals[incidentID]))
	for _, rec := range r.approvals[incidentID] {
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

func (r *IncidentRepository) SaveSafetyRejection(_ context.Context, rejection *models.SafetyRejection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rejection.ID = r.nextID
	c := *rejection
	r.rejections = append(r.rejections, &c)
	return nil
}

// SafetyRejections возвращает сохраненные отказы фильтра
func (r *IncidentRepository) SafetyRejections() []models.SafetyRejection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SafetyRejection, 0, len(r.rejections))
	for _, rej := range r.rejections {
		out = append(out, *rej)
	}
	return out
}

// FindBySubmission ищет инцидент по идентификатору обращения
func (r *IncidentRepository) FindBySubmission(submissionID uuid.UUID) (*models.Incident, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, i := range r.incidents {
		if i.SubmissionID == submissionID {
			return i.Clone(), true
		}
	}
	return nil, false
}

// Кеш не нужен: чтение из памяти и так дешевое
func (r *IncidentRepository) GetIncidentFromCache(context.Context, uuid.UUID) (*models.Incident, error) {
	return nil, nil
}

func (r *IncidentRepository) SetIncidentCache(context.Context, *models.Incident) error {
	return nil
}

func (r *IncidentRepository) InvalidateIncidentCache(context.Context, uuid.UUID) error {
	return nil
}

func (r *IncidentRepository) filter(keep func(*models.Incident) bool) []*models.Incident {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Incident, 0)
	for _, i := range r.incidents {
		if keep(i) {
			out = append(out, i.Clone())
		}
	}
	return out
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
