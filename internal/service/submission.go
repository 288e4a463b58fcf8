package service

//go:generate mockgen -source=submission.go -destination=mocks/submission.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

const sessionContextSize = 5

// Normalizer - адаптер приема обращений
type Normalizer interface {
	Normalize(ctx context.Context, sub models.Submission) (*models.ReportEnvelope, error)
}

// Analyzer - конвейер анализа
type Analyzer interface {
	Analyze(ctx context.Context, env *models.ReportEnvelope) (*models.AnalysisResult, error)
}

// SessionRepository хранит историю диалога сессии
type SessionRepository interface {
	Append(ctx context.Context, sessionID string, msg models.ChatMessage) error
	// Recent возвращает последние n сообщений, n <= 0 - всю историю
	Recent(ctx context.Context, sessionID string, n int) ([]models.ChatMessage, error)
	Delete(ctx context.Context, sessionID string) error
}

// SubmissionService определяет контракт приема обращений
type SubmissionService interface {
	Submit(ctx context.Context, sub models.Submission) (*models.SubmissionResult, error)
	SessionHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type submissionService struct {
	intake   Normalizer
	analyzer Analyzer
	store    *IncidentStore
	sessions SessionRepository
	inflight *inflightRuns
	logger   *logrus.Logger
}

func NewSubmissionService(intake Normalizer, analyzer Analyzer, store *IncidentStore, sessions SessionRepository, logger *logrus.Logger) SubmissionService {
	return &submissionService{
		intake:   intake,
		analyzer: analyzer,
		store:    store,
		sessions: sessions,
		inflight: newInflightRuns(),
		logger:   logger,
	}
}

// Submit проводит обращение через прием, анализ и создание инцидента.
// Инцидент создается только по полному успешному анализу.
func (s *submissionService) Submit(ctx context.Context, sub models.Submission) (*models.SubmissionResult, error) {
	env, err := s.intake.Normalize(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("service: could not accept submission: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":       "submission",
		"method":        "Submit",
		"submission_id": env.SubmissionID,
		"session_id":    env.SessionID,
	})
	log.Info("Submission accepted")

	history, err := s.sessions.Recent(ctx, env.SessionID, sessionContextSize)
	if err != nil {
		log.WithError(err).Warn("Failed to load session history")
	}
	for _, msg := range history {
		env.Context = append(env.Context, msg.Role+": "+msg.Content)
	}

	runCtx, finish := s.inflight.begin(ctx, env.SessionID)
	defer finish()

	analysis, err := s.analyzer.Analyze(runCtx, env)
	if errors.Is(context.Cause(runCtx), models.ErrSubmissionReplaced) {
		log.Info("Submission superseded by a newer one")
		return nil, models.ErrSubmissionReplaced
	}
	if err != nil {
		var rejection *models.SafetyRejectionError
		if errors.As(err, &rejection) {
			s.recordRejection(ctx, log, env, rejection)
			return nil, err
		}
		log.WithError(err).Warn("Analysis failed")
		return nil, fmt.Errorf("service: analysis failed: %w", err)
	}

	incident, err := s.store.Create(ctx, env, analysis)
	if err != nil {
		return nil, err
	}

	// в историю попадают только реплики, прошедшие анализ
	s.appendMessage(ctx, log, env.SessionID, models.ChatMessage{Role: models.ChatRoleUser, Content: env.CombinedText()})
	id := incident.ID
	s.appendMessage(ctx, log, env.SessionID, models.ChatMessage{
		Role:       models.ChatRoleAssistant,
		Content:    analysis.Reasoning,
		IncidentID: &id,
	})

	return &models.SubmissionResult{
		SubmissionID: env.SubmissionID,
		SessionID:    env.SessionID,
		Incident:     incident,
		Analysis:     analysis,
	}, nil
}

func (s *submissionService) SessionHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	msgs, err := s.sessions.Recent(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("service: could not load session: %w", err)
	}
	return msgs, nil
}

func (s *submissionService) ClearSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("service: could not clear session: %w", err)
	}
	return nil
}

func (s *submissionService) recordRejection(ctx context.Context, log *logrus.Entry, env *models.ReportEnvelope, rejection *models.SafetyRejectionError) {
	log.WithFields(logrus.Fields{"stage": rejection.Stage, "rule": rejection.Rule}).Warn("Submission rejected by safety check")
	err := s.store.RecordSafetyRejection(ctx, &models.SafetyRejection{
		SubmissionID: env.SubmissionID,
		SessionID:    env.SessionID,
		Stage:        rejection.Stage,
		Rule:         rejection.Rule,
	})
	if err != nil {
		log.WithError(err).Error("Failed to record safety rejection")
	}
	s.appendMessage(ctx, log, env.SessionID, models.ChatMessage{
		Role:    models.ChatRoleAssistant,
		Content: "Your report could not be processed. Please describe the emergency in your own words.",
	})
}

func (s *submissionService) appendMessage(ctx context.Context, log *logrus.Entry, sessionID string, msg models.ChatMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := s.sessions.Append(ctx, sessionID, msg); err != nil {
		log.WithError(err).Warn("Failed to append session message")
	}
}

// inflightRuns отменяет незавершенный анализ сессии при повторной подаче
type inflightRuns struct {
	mu   sync.Mutex
	runs map[string]*inflightRun
}

type inflightRun struct {
	cancel context.CancelCauseFunc
}

func newInflightRuns() *inflightRuns {
	return &inflightRuns{runs: make(map[string]*inflightRun)}
}

func (r *inflightRuns) begin(ctx context.Context, sessionID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	run := &inflightRun{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.runs[sessionID]; ok {
		prev.cancel(models.ErrSubmissionReplaced)
	}
	r.runs[sessionID] = run
	r.mu.Unlock()

	return runCtx, func() {
		r.mu.Lock()
		if r.runs[sessionID] == run {
			delete(r.runs, sessionID)
		}
		r.mu.Unlock()
		cancel(nil)
	}
}
