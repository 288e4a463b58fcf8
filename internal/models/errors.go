package models

import (
	"errors"
	"fmt"
)

// Ошибки валидации
var (
	ErrEmptySubmission    = errors.New("empty submission: text, audio or image is required")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrReasonRequired     = errors.New("rejection reason is required")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrActorNotPermitted  = errors.New("actor is not permitted to perform this transition")
	ErrIncidentNotFound   = errors.New("incident not found")
	ErrIncidentExists     = errors.New("incident already exists")
	ErrVersionConflict    = errors.New("version conflict")
	ErrInputRejected      = errors.New("input rejected by safety check")
	ErrOutputRejected     = errors.New("output rejected by safety check")
	ErrTriageUnavailable  = errors.New("triage unavailable")
	ErrPipelineTimeout    = errors.New("pipeline timeout")
	ErrNoCommander        = errors.New("no commander available")
	ErrSubmissionReplaced = errors.New("submission superseded by a newer one")
)

// Ошибки внешних сервисов
var (
	ErrInferenceUnavailable = errors.New("inference unavailable")
	ErrTranscriptionFailed  = errors.New("transcription failed")
)

// SafetyRejectionError описывает срабатывание фильтра безопасности
type SafetyRejectionError struct {
	Stage string
	Rule  string
}

func (e *SafetyRejectionError) Error() string {
	return fmt.Sprintf("%s safety check flagged (rule: %s)", e.Stage, e.Rule)
}

func (e *SafetyRejectionError) Unwrap() error {
	if e.Stage == "output" {
		return ErrOutputRejected
	}
	return ErrInputRejected
}

// IsRetryable - транзиентные сбои, которые лечатся повторной отправкой
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTriageUnavailable) ||
		errors.Is(err, ErrInferenceUnavailable) ||
		errors.Is(err, ErrTranscriptionFailed) ||
		errors.Is(err, ErrPipelineTimeout)
}

// IsSafetyRejection - терминальный отказ фильтра безопасности
func IsSafetyRejection(err error) bool {
	return errors.Is(err, ErrInputRejected) || errors.Is(err, ErrOutputRejected)
}

// VersionConflictError сообщает актуальную версию, чтобы клиент мог перечитать инцидент
type VersionConflictError struct {
	Expected int64
	Current  int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, current %d", e.Expected, e.Current)
}

func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}
