package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// Action - ребро конечного автомата инцидента
type Action string

const (
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionStart     Action = "start"
	ActionReinforce Action = "reinforce"
	ActionEscalate  Action = "escalate"
	ActionResolve   Action = "resolve"
)

type transitionRule struct {
	from []models.Status
	to   models.Status
	role models.Role
}

var transitions = map[Action]transitionRule{
	ActionApprove: {
		from: []models.Status{models.StatusPendingDispatch},
		to:   models.StatusDispatched,
		role: models.RoleDispatcher,
	},
	ActionReject: {
		from: []models.Status{models.StatusPendingDispatch},
		to:   models.StatusRejected,
		role: models.RoleDispatcher,
	},
	ActionStart: {
		from: []models.Status{models.StatusDispatched},
		to:   models.StatusInProgress,
		role: models.RoleCommander,
	},
	ActionReinforce: {
		from: []models.Status{models.StatusDispatched, models.StatusInProgress},
		to:   models.StatusReinforcement,
		role: models.RoleCommander,
	},
	ActionEscalate: {
		from: []models.Status{models.StatusDispatched, models.StatusInProgress, models.StatusReinforcement},
		to:   models.StatusEscalated,
		role: models.RoleCommander,
	},
	ActionResolve: {
		from: []models.Status{models.StatusDispatched, models.StatusInProgress, models.StatusReinforcement, models.StatusEscalated},
		to:   models.StatusResolved,
		role: models.RoleCommander,
	},
}

var commanderActions = map[models.Status]Action{
	models.StatusInProgress:    ActionStart,
	models.StatusReinforcement: ActionReinforce,
	models.StatusEscalated:     ActionEscalate,
	models.StatusResolved:      ActionResolve,
}

// Command - намерение перехода, которое проверяет и фиксирует IncidentStore
type Command struct {
	Action          Action
	ExpectedVersion int64
	Actor           models.Actor
	Reason          string
	Notes           string
	// Priority и Assets - правки диспетчера при approve
	Priority models.Priority
	Assets   []models.Asset
	// Audit строит запись аудита, которая пишется в той же транзакции
	Audit func(before, after *models.Incident) *models.ApprovalRecord
}

// Transition проверяет и атомарно фиксирует переход, затем рассылает событие.
// Переходы одного инцидента выполняются строго по очереди.
func (s *IncidentStore) Transition(ctx context.Context, id uuid.UUID, cmd Command) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":          "incident",
		"method":           "Transition",
		"incident_id":      id,
		"action":           cmd.Action,
		"expected_version": cmd.ExpectedVersion,
		"actor":            cmd.Actor.ID,
	})

	rule, ok := transitions[cmd.Action]
	if !ok {
		return nil, fmt.Errorf("service: unknown action %q: %w", cmd.Action, models.ErrInvalidTransition)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not load incident: %w", err)
	}
	if current.Version != cmd.ExpectedVersion {
		log.WithField("current_version", current.Version).Info("Rejected stale transition")
		return nil, fmt.Errorf("service: %w", &models.VersionConflictError{Expected: cmd.ExpectedVersion, Current: current.Version})
	}

	from := current.CurrentStatus()
	if !slices.Contains(rule.from, from) {
		log.WithField("status", from).Info("Rejected invalid transition")
		return nil, fmt.Errorf("service: cannot %s incident in status %s: %w", cmd.Action, from, models.ErrInvalidTransition)
	}
	if err := checkActor(rule, cmd.Actor, current); err != nil {
		return nil, err
	}
	if cmd.Action == ActionReject && strings.TrimSpace(cmd.Reason) == "" {
		return nil, models.ErrReasonRequired
	}
	if cmd.Priority != "" && !cmd.Priority.Valid() {
		return nil, fmt.Errorf("service: %w %q", models.ErrInvalidPriority, cmd.Priority)
	}

	now := s.now()
	next := current.Clone()
	var assigned string

	switch cmd.Action {
	case ActionApprove:
		if cmd.Priority != "" {
			next.Priority = cmd.Priority
		}
		if cmd.Assets != nil {
			next.Assets = append([]models.Asset{}, cmd.Assets...)
		}
		// командир назначается до смены статуса
		assigned, err = s.assigner.Assign(ctx, next)
		if err != nil {
			log.WithError(err).Warn("Commander assignment failed")
			return nil, fmt.Errorf("service: could not assign commander: %w", err)
		}
		next.AssignedCommander = &assigned
		next.DispatchedAt = &now
	case ActionEscalate:
		next.Priority = models.PriorityP1
	case ActionResolve:
		next.ResolvedAt = &now
	}

	entry := models.TransitionEntry{
		Version:   current.Version + 1,
		From:      from,
		To:        rule.to,
		Actor:     cmd.Actor,
		Reason:    cmd.Reason,
		Notes:     cmd.Notes,
		Timestamp: now,
	}
	next.Status = rule.to
	next.Version = entry.Version
	next.UpdatedAt = now
	next.Transitions = append(next.Transitions, entry)

	var approval *models.ApprovalRecord
	if cmd.Audit != nil {
		approval = cmd.Audit(current, next)
	}

	if err := s.repo.Commit(ctx, next, cmd.ExpectedVersion, entry, approval); err != nil {
		if assigned != "" {
			s.assigner.Release(ctx, assigned, id)
		}
		if errors.Is(err, models.ErrVersionConflict) {
			// версию изменил другой экземпляр сервиса
			latest := cmd.ExpectedVersion
			if fresh, getErr := s.repo.GetByID(ctx, id); getErr == nil {
				latest = fresh.Version
			}
			log.WithField("current_version", latest).Info("Commit lost the version race")
			return nil, fmt.Errorf("service: %w", &models.VersionConflictError{Expected: cmd.ExpectedVersion, Current: latest})
		}
		log.WithError(err).Error("Failed to commit transition")
		return nil, fmt.Errorf("service: could not commit transition: %w", err)
	}

	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}
	if cmd.Action == ActionResolve && current.CommanderID() != "" {
		s.assigner.Release(ctx, current.CommanderID(), id)
	}

	s.publish(ctx, log, models.NewEvent(models.EventStatusChange, next))
	if assigned != "" {
		s.publish(ctx, log, models.NewEvent(models.EventCommanderAssigned, next))
	}

	log.WithFields(logrus.Fields{
		"from":    from,
		"to":      rule.to,
		"version": next.Version,
	}).Info("Transition committed")
	return next, nil
}

func checkActor(rule transitionRule, actor models.Actor, incident *models.Incident) error {
	if actor.Role != rule.role {
		return fmt.Errorf("service: role %q cannot move incident to %s: %w", actor.Role, rule.to, models.ErrActorNotPermitted)
	}
	if rule.role == models.RoleCommander {
		if incident.CommanderID() == "" {
			return fmt.Errorf("service: incident has no assigned commander: %w", models.ErrInvalidTransition)
		}
		if actor.ID != incident.CommanderID() {
			return fmt.Errorf("service: commander %q is not assigned to this incident: %w", actor.ID, models.ErrActorNotPermitted)
		}
	}
	return nil
}
