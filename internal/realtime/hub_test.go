package realtime

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func testIncident(commander string, version int64) *models.Incident {
	inc := &models.Incident{
		ID:        uuid.New(),
		Status:    models.StatusPendingDispatch,
		Priority:  models.PriorityP2,
		Type:      models.TypeFire,
		Version:   version,
		UpdatedAt: time.Now().UTC(),
	}
	if commander != "" {
		inc.AssignedCommander = &commander
		inc.Status = models.StatusDispatched
	}
	return inc
}

func TestHub_DeliversInCommitOrder(t *testing.T) {
	// Подготовка
	hub := NewHub(16, newTestLogger())
	sub := hub.Subscribe(models.SubscriptionFilter{Role: models.RoleDispatcher})
	inc := testIncident("", 1)

	// Действие
	for v := int64(1); v <= 5; v++ {
		snapshot := inc.Clone()
		snapshot.Version = v
		require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventStatusChange, snapshot)))
	}

	// Проверки
	for v := int64(1); v <= 5; v++ {
		select {
		case e := <-sub.Events():
			assert.Equal(t, v, e.Version)
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", v)
		}
	}
}

func TestHub_RoleFiltering(t *testing.T) {
	// Подготовка
	hub := NewHub(16, newTestLogger())
	assigned := testIncident("cmd-1", 2)
	other := testIncident("cmd-2", 2)

	dispatcher := hub.Subscribe(models.SubscriptionFilter{Role: models.RoleDispatcher})
	commander := hub.Subscribe(models.SubscriptionFilter{Role: models.RoleCommander, CommanderID: "cmd-1"})
	reporter := hub.Subscribe(models.SubscriptionFilter{Role: models.RolePublic, IncidentID: other.ID})

	// Действие
	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventCommanderAssigned, assigned)))
	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventCommanderAssigned, other)))

	// Проверки
	assert.Len(t, dispatcher.Events(), 2)
	require.Len(t, commander.Events(), 1)
	assert.Equal(t, assigned.ID, (<-commander.Events()).IncidentID)
	require.Len(t, reporter.Events(), 1)
	assert.Equal(t, other.ID, (<-reporter.Events()).IncidentID)
}

func TestHub_NoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub(16, newTestLogger())
	inc := testIncident("", 1)
	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventNewIncident, inc)))

	late := hub.Subscribe(models.SubscriptionFilter{Role: models.RoleDispatcher})
	assert.Empty(t, late.Events())
}

func TestHub_OverflowDisconnectsOnlySlowSubscriber(t *testing.T) {
	// Подготовка
	hub := NewHub(2, newTestLogger())
	slow := hub.Subscribe(models.SubscriptionFilter{Role: models.RoleDispatcher})
	fast := hub.Subscribe(models.SubscriptionFilter{Role: models.RoleDispatcher})
	inc := testIncident("", 1)

	// Действие
	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventStatusChange, inc)))
		<-fast.Events()
	}

	// Проверки
	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was not disconnected")
	}
	assert.Equal(t, "overflow", slow.Reason())
	assert.Equal(t, "", fast.Reason())
	assert.Equal(t, 1, hub.Count())
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(4, newTestLogger())
	sub := hub.Subscribe(models.SubscriptionFilter{Role: models.RoleDispatcher})
	require.Equal(t, 1, hub.Count())

	hub.Unsubscribe(sub.ID)
	hub.Unsubscribe(sub.ID)

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, "unsubscribed", sub.Reason())
	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventNewIncident, testIncident("", 1))))
	assert.Empty(t, sub.Events())
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  models.SubscriptionFilter
		wantErr error
	}{
		{"dispatcher", models.SubscriptionFilter{Role: models.RoleDispatcher}, nil},
		{"commander ok", models.SubscriptionFilter{Role: models.RoleCommander, CommanderID: "cmd-1"}, nil},
		{"commander without id", models.SubscriptionFilter{Role: models.RoleCommander}, ErrCommanderIDRequired},
		{"reporter ok", models.SubscriptionFilter{Role: models.RolePublic, IncidentID: uuid.New()}, nil},
		{"reporter without incident", models.SubscriptionFilter{Role: models.RolePublic}, ErrIncidentIDRequired},
		{"unknown role", models.SubscriptionFilter{Role: "auditor"}, ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
