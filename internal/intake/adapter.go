package intake

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/transcription"
	"github.com/sirupsen/logrus"
)

// Adapter нормализует разнородные обращения в ReportEnvelope.
// Содержимое не оценивается, проверяется только структурная полнота.
type Adapter struct {
	transcriber transcription.Transcriber
	logger      *logrus.Logger
	now         func() time.Time
}

// NewAdapter создает адаптер. transcriber может быть nil - тогда аудио без расшифровки
// принимается только вместе с текстом или изображением.
func NewAdapter(transcriber transcription.Transcriber, logger *logrus.Logger) *Adapter {
	return &Adapter{
		transcriber: transcriber,
		logger:      logger,
		now:         time.Now,
	}
}

// Normalize строит конверт, присваивая новый идентификатор и метку времени
func (a *Adapter) Normalize(ctx context.Context, sub models.Submission) (*models.ReportEnvelope, error) {
	text := strings.TrimSpace(sub.Text)
	transcript := strings.TrimSpace(sub.Transcript)
	hasAudio := len(sub.Audio) > 0 || transcript != ""
	hasImage := strings.TrimSpace(sub.ImageRef) != "" || strings.TrimSpace(sub.ImageTag) != ""

	if text == "" && !hasAudio && !hasImage {
		return nil, models.ErrEmptySubmission
	}

	// Расшифровка - обогащение по возможности, её сбой не фатален
	if transcript == "" && len(sub.Audio) > 0 && a.transcriber != nil {
		out, err := a.transcriber.Transcribe(ctx, sub.Audio, sub.AudioMIME)
		if err != nil {
			a.logger.WithError(err).WithField("session_id", sub.SessionID).Warn("Audio transcription failed, continuing without transcript")
			if text == "" && !hasImage {
				return nil, err
			}
		} else {
			transcript = out
		}
	}
	if text == "" && transcript == "" && !hasImage {
		// аудио есть, но распознать нечего
		return nil, models.ErrEmptySubmission
	}

	role := sub.Role
	if !role.Valid() {
		role = models.RolePublic
	}
	sessionID := strings.TrimSpace(sub.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var coords *models.Coordinates
	if sub.Coordinates != nil {
		c := *sub.Coordinates
		coords = &c
	}

	return &models.ReportEnvelope{
		SubmissionID: uuid.New(),
		SessionID:    sessionID,
		Text:         text,
		Transcript:   transcript,
		ImageRef:     strings.TrimSpace(sub.ImageRef),
		ImageTag:     strings.ToLower(strings.TrimSpace(sub.ImageTag)),
		Coordinates:  coords,
		Role:         role,
		Channel:      sub.Channel,
		SubmittedAt:  a.now().UTC(),
	}, nil
}
