package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/service"
)

const incidentColumns = `
	id,
	submission_id,
	session_id,
	status,
	priority,
	incident_type,
	location,
	description,
	assets,
	analysis,
	assigned_commander,
	version,
	created_at,
	updated_at,
	dispatched_at,
	resolved_at`

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client, cacheTTL time.Duration) service.IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

// Create создает запись об инциденте вместе с начальной записью журнала
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO incidents (
			id, submission_id, session_id, status, priority, incident_type, location, description,
			assets, analysis, assigned_commander, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
	`
	_, err = tx.Exec(ctx, query,
		incident.ID,
		incident.SubmissionID,
		incident.SessionID,
		incident.Status,
		incident.Priority,
		incident.Type,
		incident.Location,
		incident.Description,
		incident.Assets,
		incident.Analysis,
		incident.AssignedCommander,
		incident.Version,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create incident: %w", models.ErrIncidentExists)
		}
		return fmt.Errorf("failed to create incident: %w", err)
	}

	for _, entry := range incident.Transitions {
		if err := insertTransition(ctx, tx, incident.ID, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit incident creation: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID вместе с журналом переходов
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, models.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}

	transitions, err := r.listTransitions(ctx, id)
	if err != nil {
		return nil, err
	}
	incident.Transitions = transitions
	return incident, nil
}

// Commit обновляет инцидент с проверкой версии, добавляет запись журнала и аудита в одной транзакции
func (r *IncidentRepository) Commit(ctx context.Context, incident *models.Incident, expectedVersion int64, entry models.TransitionEntry, approval *models.ApprovalRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE incidents SET
			status = $1,
			priority = $2,
			assets = $3,
			assigned_commander = $4,
			version = version + 1,
			updated_at = $5,
			dispatched_at = $6,
			resolved_at = $7
		WHERE id = $8 AND version = $9;
	`
	cmdTag, err := tx.Exec(ctx, query,
		incident.Status,
		incident.Priority,
		incident.Assets,
		incident.AssignedCommander,
		incident.UpdatedAt,
		incident.DispatchedAt,
		incident.ResolvedAt,
		incident.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	// Ни одной строки: инцидента нет или версия уже ушла вперед
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1);`, incident.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check incident existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("incident with id %s: %w", incident.ID, models.ErrIncidentNotFound)
		}
		return models.ErrVersionConflict
	}

	if err := insertTransition(ctx, tx, incident.ID, entry); err != nil {
		return err
	}
	if approval != nil {
		if err := insertApproval(ctx, tx, approval); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

// ListQueue возвращает ожидающие решения инциденты: P1 первыми, затем самые новые
func (r *IncidentRepository) ListQueue(ctx context.Context, filter models.QueueFilter) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE status = 'pending_dispatch'
			AND ($1 = '' OR priority = $1)
			AND ($2 = '' OR incident_type = $2)
		ORDER BY priority ASC, created_at DESC
		LIMIT $3;
	`
	return r.listIncidents(ctx, query, string(filter.Priority), string(filter.Type), filter.Limit)
}

// ListActive возвращает инциденты в работе, по командиру или все
func (r *IncidentRepository) ListActive(ctx context.Context, commanderID string) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE status IN ('dispatched', 'in_progress', 'reinforcement', 'escalated')
			AND ($1 = '' OR assigned_commander = $1)
		ORDER BY priority ASC, dispatched_at DESC;
	`
	return r.listIncidents(ctx, query, commanderID)
}

// ListResolved возвращает закрытые инциденты, последние первыми
func (r *IncidentRepository) ListResolved(ctx context.Context, commanderID string, limit int) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE status = 'resolved'
			AND ($1 = '' OR assigned_commander = $1)
		ORDER BY resolved_at DESC
		LIMIT $2;
	`
	return r.listIncidents(ctx, query, commanderID, limit)
}

// ListApprovals возвращает журнал решений диспетчера по инциденту
func (r *IncidentRepository) ListApprovals(ctx context.Context, incidentID uuid.UUID) ([]*models.ApprovalRecord, error) {
	query := `
		SELECT
			id, incident_id, decision, actor_id, actor_role, original_priority, revised_priority,
			original_assets, revised_assets, reason, notes, assigned_commander, decided_at
		FROM approval_history
		WHERE incident_id = $1
		ORDER BY id ASC;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ApprovalRecord, 0)
	for rows.Next() {
		rec := &models.ApprovalRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.IncidentID,
			&rec.Decision,
			&rec.Actor.ID,
			&rec.Actor.Role,
			&rec.OriginalPriority,
			&rec.RevisedPriority,
			&rec.OriginalAssets,
			&rec.RevisedAssets,
			&rec.Reason,
			&rec.Notes,
			&rec.AssignedCommander,
			&rec.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error approval iteration: %w", err)
	}
	return records, nil
}

// SaveSafetyRejection сохраняет запись об отказе фильтра безопасности в бд
func (r *IncidentRepository) SaveSafetyRejection(ctx context.Context, rejection *models.SafetyRejection) error {
	query := `
		INSERT INTO safety_rejections (submission_id, session_id, stage, rule, rejected_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id;
	`
	err := r.db.QueryRow(ctx, query,
		rejection.SubmissionID,
		rejection.SessionID,
		rejection.Stage,
		rejection.Rule,
		rejection.RejectedAt,
	).Scan(&rejection.ID)
	if err != nil {
		return fmt.Errorf("failed to save safety rejection: %w", err)
	}
	return nil
}

func (r *IncidentRepository) listIncidents(ctx context.Context, query string, args ...any) ([]*models.Incident, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

func (r *IncidentRepository) listTransitions(ctx context.Context, id uuid.UUID) ([]models.TransitionEntry, error) {
	query := `
		SELECT version, from_status, to_status, actor_id, actor_role, reason, notes, created_at
		FROM incident_transitions
		WHERE incident_id = $1
		ORDER BY version ASC;
	`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]models.TransitionEntry, 0)
	for rows.Next() {
		var e models.TransitionEntry
		if err := rows.Scan(&e.Version, &e.From, &e.To, &e.Actor.ID, &e.Actor.Role, &e.Reason, &e.Notes, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error transition iteration: %w", err)
	}
	return entries, nil
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	err := row.Scan(
		&incident.ID,
		&incident.SubmissionID,
		&incident.SessionID,
		&incident.Status,
		&incident.Priority,
		&incident.Type,
		&incident.Location,
		&incident.Description,
		&incident.Assets,
		&incident.Analysis,
		&incident.AssignedCommander,
		&incident.Version,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.DispatchedAt,
		&incident.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

func insertTransition(ctx context.Context, tx pgx.Tx, incidentID uuid.UUID, e models.TransitionEntry) error {
	query := `
		INSERT INTO incident_transitions (incident_id, version, from_status, to_status, actor_id, actor_role, reason, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := tx.Exec(ctx, query, incidentID, e.Version, e.From, e.To, e.Actor.ID, e.Actor.Role, e.Reason, e.Notes, e.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrVersionConflict
		}
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

func insertApproval(ctx context.Context, tx pgx.Tx, rec *models.ApprovalRecord) error {
	query := `
		INSERT INTO approval_history (
			incident_id, decision, actor_id, actor_role, original_priority, revised_priority,
			original_assets, revised_assets, reason, notes, assigned_commander, decided_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id;
	`
	err := tx.QueryRow(ctx, query,
		rec.IncidentID,
		rec.Decision,
		rec.Actor.ID,
		rec.Actor.Role,
		rec.OriginalPriority,
		rec.RevisedPriority,
		rec.OriginalAssets,
		rec.RevisedAssets,
		rec.Reason,
		rec.Notes,
		rec.AssignedCommander,
		rec.DecidedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to append approval history: %w", err)
	}
	return nil
}
