package intake

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	s.calls++
	return s.text, s.err
}

func newTestAdapter(tr *stubTranscriber) *Adapter {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	if tr == nil {
		return NewAdapter(nil, logger)
	}
	return NewAdapter(tr, logger)
}

func TestNormalize_Text(t *testing.T) {
	a := newTestAdapter(nil)

	env, err := a.Normalize(context.Background(), models.Submission{
		SessionID:   "s-1",
		Text:        "  Fire at MG Road  ",
		Coordinates: &models.Coordinates{Latitude: 12.97, Longitude: 77.6},
		Role:        models.RolePublic,
	})

	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", env.SubmissionID.String())
	assert.Equal(t, "s-1", env.SessionID)
	assert.Equal(t, "Fire at MG Road", env.Text)
	assert.Equal(t, 12.97, env.Coordinates.Latitude)
	assert.False(t, env.SubmittedAt.IsZero())
}

func TestNormalize_EmptySubmission(t *testing.T) {
	a := newTestAdapter(nil)

	_, err := a.Normalize(context.Background(), models.Submission{
		Text:        "   ",
		Coordinates: &models.Coordinates{Latitude: 1, Longitude: 1},
	})

	assert.ErrorIs(t, err, models.ErrEmptySubmission)
}

func TestNormalize_FreshIdentityPerSubmission(t *testing.T) {
	a := newTestAdapter(nil)
	sub := models.Submission{Text: "car crash"}

	first, err := a.Normalize(context.Background(), sub)
	require.NoError(t, err)
	second, err := a.Normalize(context.Background(), sub)
	require.NoError(t, err)

	assert.NotEqual(t, first.SubmissionID, second.SubmissionID)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, models.RolePublic, first.Role)
}

func TestNormalize_TranscribesAudio(t *testing.T) {
	tr := &stubTranscriber{text: "smoke coming from the basement"}
	a := newTestAdapter(tr)

	env, err := a.Normalize(context.Background(), models.Submission{Audio: []byte("RIFF"), AudioMIME: "audio/wav"})

	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, "smoke coming from the basement", env.Transcript)
	assert.Equal(t, "smoke coming from the basement", env.CombinedText())
}

func TestNormalize_TranscriptionFailureIsBestEffort(t *testing.T) {
	tr := &stubTranscriber{err: models.ErrTranscriptionFailed}
	a := newTestAdapter(tr)

	env, err := a.Normalize(context.Background(), models.Submission{
		Text:  "someone collapsed",
		Audio: []byte("RIFF"),
	})

	require.NoError(t, err)
	assert.Empty(t, env.Transcript)
	assert.Equal(t, "someone collapsed", env.Text)
}

func TestNormalize_AudioOnlyTranscriptionFailure(t *testing.T) {
	tr := &stubTranscriber{err: errors.Join(models.ErrTranscriptionFailed, errors.New("timeout"))}
	a := newTestAdapter(tr)

	_, err := a.Normalize(context.Background(), models.Submission{Audio: []byte("RIFF")})

	assert.ErrorIs(t, err, models.ErrTranscriptionFailed)
}

func TestNormalize_ImageOnly(t *testing.T) {
	a := newTestAdapter(nil)

	env, err := a.Normalize(context.Background(), models.Submission{ImageRef: "uploads/1.jpg", ImageTag: "Urban_Fire"})

	require.NoError(t, err)
	assert.True(t, env.HasImage())
	assert.Equal(t, "urban_fire", env.ImageTag)
}
