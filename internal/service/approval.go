package service

//go:generate mockgen -source=approval.go -destination=mocks/approval.go -package=mocks

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// ApprovalService - единственная точка выхода инцидента из pending_dispatch
type ApprovalService interface {
	Approve(ctx context.Context, id uuid.UUID, expectedVersion int64, actor models.Actor, req models.ApprovalOverrides) (*models.Incident, error)
	Reject(ctx context.Context, id uuid.UUID, expectedVersion int64, actor models.Actor, reason, notes string) (*models.Incident, error)
	Commanders(ctx context.Context) []models.CommanderStatus
}

type approvalGate struct {
	store    *IncidentStore
	assigner Assigner
	logger   *logrus.Logger
}

func NewApprovalGate(store *IncidentStore, assigner Assigner, logger *logrus.Logger) ApprovalService {
	return &approvalGate{
		store:    store,
		assigner: assigner,
		logger:   logger,
	}
}

// Approve переводит инцидент в dispatched и пишет запись аудита в той же транзакции
func (g *approvalGate) Approve(ctx context.Context, id uuid.UUID, expectedVersion int64, actor models.Actor, req models.ApprovalOverrides) (*models.Incident, error) {
	log := g.logger.WithFields(logrus.Fields{
		"service":     "approval",
		"method":      "Approve",
		"incident_id": id,
		"actor":       actor.ID,
	})
	log.Info("Attempting to approve incident")

	incident, err := g.store.Transition(ctx, id, Command{
		Action:          ActionApprove,
		ExpectedVersion: expectedVersion,
		Actor:           actor,
		Notes:           req.Notes,
		Priority:        req.Priority,
		Assets:          req.Assets,
		Audit:           auditRecord(models.DecisionApproved, actor, "", req.Notes),
	})
	if err != nil {
		log.WithError(err).Warn("Approval failed")
		return nil, fmt.Errorf("service: could not approve incident: %w", err)
	}

	log.WithFields(logrus.Fields{
		"priority":  incident.Priority,
		"commander": incident.CommanderID(),
	}).Info("Incident approved")
	return incident, nil
}

// Reject отклоняет инцидент с обязательной причиной
func (g *approvalGate) Reject(ctx context.Context, id uuid.UUID, expectedVersion int64, actor models.Actor, reason, notes string) (*models.Incident, error) {
	log := g.logger.WithFields(logrus.Fields{
		"service":     "approval",
		"method":      "Reject",
		"incident_id": id,
		"actor":       actor.ID,
	})
	log.Info("Attempting to reject incident")

	reason = strings.TrimSpace(reason)
	incident, err := g.store.Transition(ctx, id, Command{
		Action:          ActionReject,
		ExpectedVersion: expectedVersion,
		Actor:           actor,
		Reason:          reason,
		Notes:           notes,
		Audit:           auditRecord(models.DecisionRejected, actor, reason, notes),
	})
	if err != nil {
		log.WithError(err).Warn("Rejection failed")
		return nil, fmt.Errorf("service: could not reject incident: %w", err)
	}

	log.Info("Incident rejected")
	return incident, nil
}

// Commanders возвращает состояние реестра командиров
func (g *approvalGate) Commanders(_ context.Context) []models.CommanderStatus {
	return g.assigner.Snapshot()
}

func auditRecord(decision models.Decision, actor models.Actor, reason, notes string) func(before, after *models.Incident) *models.ApprovalRecord {
	return func(before, after *models.Incident) *models.ApprovalRecord {
		record := &models.ApprovalRecord{
			IncidentID:        before.ID,
			Decision:          decision,
			Actor:             actor,
			OriginalPriority:  before.Priority,
			OriginalAssets:    append([]models.Asset{}, before.Assets...),
			Reason:            reason,
			Notes:             notes,
			AssignedCommander: after.CommanderID(),
			DecidedAt:         after.UpdatedAt,
		}
		if decision == models.DecisionApproved {
			record.RevisedPriority = after.Priority
			record.RevisedAssets = append([]models.Asset{}, after.Assets...)
		}
		return record
	}
}
