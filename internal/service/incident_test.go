package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/service/mocks"
	webhook_mocks "github.com/shenikar/resq_dispatch/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type storeMocks struct {
	repo      *mocks.MockIncidentRepository
	assigner  *mocks.MockAssigner
	publisher *mocks.MockEventPublisher
	webhook   *webhook_mocks.MockWebhookPublisher
}

// newTestIncidentStore - хранилище инцидентов на моках. События уходят в два получателя.
func newTestIncidentStore(t *testing.T) (*IncidentStore, storeMocks) {
	ctrl := gomock.NewController(t)
	m := storeMocks{
		repo:      mocks.NewMockIncidentRepository(ctrl),
		assigner:  mocks.NewMockAssigner(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
		webhook:   webhook_mocks.NewMockWebhookPublisher(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	store := NewIncidentStore(m.repo, m.assigner, Publishers(m.publisher, m.webhook), logger)
	return store, m
}

func pendingIncident(version int64) *models.Incident {
	now := time.Now().UTC()
	return &models.Incident{
		ID:       uuid.New(),
		Status:   models.StatusPendingDispatch,
		Priority: models.PriorityP2,
		Type:     models.TypeFire,
		Assets:   []models.Asset{{Type: "fire_engine", Quantity: 1}},
		Version:  version,
		Transitions: []models.TransitionEntry{{
			Version:   1,
			To:        models.StatusPendingDispatch,
			Actor:     models.SystemActor,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var dispatcher = models.Actor{ID: "disp-1", Role: models.RoleDispatcher}

func TestGetIncident_Success_FromCache(t *testing.T) {
	// Подготовка
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	expected := pendingIncident(1)

	// Ожидания
	m.repo.EXPECT().
		GetIncidentFromCache(ctx, expected.ID).
		Return(expected, nil).
		Times(1)

	// Действие
	incident, err := store.GetIncident(ctx, expected.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, incident)
}

func TestGetIncident_Success_FromDB(t *testing.T) {
	// Подготовка
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	expected := pendingIncident(1)

	// Ожидания
	// 1. Промах кеша
	m.repo.EXPECT().
		GetIncidentFromCache(ctx, expected.ID).
		Return(nil, nil).
		Times(1)

	// 2. Попадание в БД
	m.repo.EXPECT().
		GetByID(ctx, expected.ID).
		Return(expected, nil).
		Times(1)

	// 3. Запись в кеш
	m.repo.EXPECT().
		SetIncidentCache(ctx, expected).
		Return(nil).
		Times(1)

	// Действие
	incident, err := store.GetIncident(ctx, expected.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, incident)
}

func TestGetIncident_CacheErrorFallsBackToDB(t *testing.T) {
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	expected := pendingIncident(1)

	m.repo.EXPECT().GetIncidentFromCache(ctx, expected.ID).Return(nil, fmt.Errorf("redis down"))
	m.repo.EXPECT().GetByID(ctx, expected.ID).Return(expected, nil)
	m.repo.EXPECT().SetIncidentCache(ctx, expected).Return(fmt.Errorf("redis down"))

	incident, err := store.GetIncident(ctx, expected.ID)

	require.NoError(t, err)
	assert.Equal(t, expected.ID, incident.ID)
}

func TestGetIncident_NotFound(t *testing.T) {
	// Подготовка
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	id := uuid.New()

	// Ожидания
	m.repo.EXPECT().GetIncidentFromCache(ctx, id).Return(nil, nil)
	m.repo.EXPECT().GetByID(ctx, id).Return(nil, models.ErrIncidentNotFound)

	// Действие
	incident, err := store.GetIncident(ctx, id)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, models.ErrIncidentNotFound)
}

func TestQueryQueue_DefaultLimit(t *testing.T) {
	store, m := newTestIncidentStore(t)
	ctx := context.Background()

	m.repo.EXPECT().
		ListQueue(ctx, models.QueueFilter{Priority: models.PriorityP1, Limit: 50}).
		Return([]*models.Incident{pendingIncident(1)}, nil)

	incidents, err := store.QueryQueue(ctx, models.QueueFilter{Priority: models.PriorityP1, Limit: 500})

	require.NoError(t, err)
	assert.Len(t, incidents, 1)
}

func TestQueryQueue_InvalidPriority(t *testing.T) {
	store, _ := newTestIncidentStore(t)

	_, err := store.QueryQueue(context.Background(), models.QueueFilter{Priority: "P9"})

	assert.ErrorIs(t, err, models.ErrInvalidPriority)
}

func TestQueryResolved_DefaultLimit(t *testing.T) {
	store, m := newTestIncidentStore(t)
	ctx := context.Background()

	m.repo.EXPECT().ListResolved(ctx, "cmd-1", 20).Return(nil, nil)

	_, err := store.QueryResolved(ctx, "cmd-1", 0)
	require.NoError(t, err)
}

func TestUpdateStatus_ApprovalOnlyTargets(t *testing.T) {
	store, _ := newTestIncidentStore(t)
	actor := models.Actor{ID: "cmd-1", Role: models.RoleCommander}

	for _, status := range []models.Status{models.StatusDispatched, models.StatusRejected, models.StatusPendingDispatch, "unknown"} {
		_, err := store.UpdateStatus(context.Background(), uuid.New(), 1, status, actor, "")
		assert.ErrorIs(t, err, models.ErrInvalidTransition, "status %s", status)
	}
}

func TestTransition_StaleVersion(t *testing.T) {
	// Подготовка
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	current := pendingIncident(3)

	// Ожидания: до фиксации дело не доходит
	m.repo.EXPECT().GetByID(ctx, current.ID).Return(current, nil)

	// Действие
	_, err := store.Transition(ctx, current.ID, Command{Action: ActionApprove, ExpectedVersion: 2, Actor: dispatcher})

	// Проверки
	require.ErrorIs(t, err, models.ErrVersionConflict)
	var conflict *models.VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(3), conflict.Current)
	assert.Equal(t, int64(2), conflict.Expected)
}

func TestTransition_CommitFailureReleasesCommander(t *testing.T) {
	// Подготовка
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	current := pendingIncident(1)

	// Ожидания
	m.repo.EXPECT().GetByID(ctx, current.ID).Return(current, nil)
	m.assigner.EXPECT().Assign(ctx, gomock.Any()).Return("cmd-1", nil)
	m.repo.EXPECT().
		Commit(ctx, gomock.Any(), int64(1), gomock.Any(), gomock.Nil()).
		Return(fmt.Errorf("connection reset"))
	m.assigner.EXPECT().Release(ctx, "cmd-1", current.ID).Times(1)

	// Действие
	incident, err := store.Transition(ctx, current.ID, Command{Action: ActionApprove, ExpectedVersion: 1, Actor: dispatcher})

	// Проверки: событий нет, инцидент не изменен
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, models.StatusPendingDispatch, current.Status)
	assert.Nil(t, current.AssignedCommander)
}

func TestTransition_CommitLosesVersionRace(t *testing.T) {
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	current := pendingIncident(1)
	fresh := pendingIncident(2)
	fresh.ID = current.ID

	gomock.InOrder(
		m.repo.EXPECT().GetByID(ctx, current.ID).Return(current, nil),
		m.repo.EXPECT().Commit(ctx, gomock.Any(), int64(1), gomock.Any(), gomock.Any()).Return(models.ErrVersionConflict),
		m.repo.EXPECT().GetByID(ctx, current.ID).Return(fresh, nil),
	)

	_, err := store.Transition(ctx, current.ID, Command{
		Action:          ActionReject,
		ExpectedVersion: 1,
		Actor:           dispatcher,
		Reason:          "duplicate",
	})

	var conflict *models.VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(2), conflict.Current)
}

func TestTransition_ApprovePublishesInOrder(t *testing.T) {
	// Подготовка
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	current := pendingIncident(1)
	var kinds []models.EventKind

	// Ожидания
	m.repo.EXPECT().GetByID(ctx, current.ID).Return(current, nil)
	m.assigner.EXPECT().Assign(ctx, gomock.Any()).Return("cmd-1", nil)
	m.repo.EXPECT().
		Commit(ctx, gomock.Any(), int64(1), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, next *models.Incident, _ int64, entry models.TransitionEntry, approval *models.ApprovalRecord) error {
			assert.Equal(t, int64(2), next.Version)
			assert.Equal(t, int64(2), entry.Version)
			assert.Equal(t, models.StatusPendingDispatch, entry.From)
			assert.Equal(t, models.StatusDispatched, entry.To)
			assert.Nil(t, approval)
			return nil
		})
	m.repo.EXPECT().InvalidateIncidentCache(ctx, current.ID).Return(nil)
	m.publisher.EXPECT().
		Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.Event) error {
			kinds = append(kinds, e.Kind)
			assert.Equal(t, int64(2), e.Version)
			return nil
		}).
		Times(2)
	// сбой одного получателя не мешает остальным и не откатывает переход
	m.webhook.EXPECT().Publish(ctx, gomock.Any()).Return(fmt.Errorf("queue unavailable")).Times(2)

	// Действие
	incident, err := store.Transition(ctx, current.ID, Command{Action: ActionApprove, ExpectedVersion: 1, Actor: dispatcher})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, incident.Status)
	assert.Equal(t, "cmd-1", incident.CommanderID())
	require.NotNil(t, incident.DispatchedAt)
	assert.Equal(t, []models.EventKind{models.EventStatusChange, models.EventCommanderAssigned}, kinds)
}

func TestTransition_AssignmentFailureLeavesPending(t *testing.T) {
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	current := pendingIncident(1)

	m.repo.EXPECT().GetByID(ctx, current.ID).Return(current, nil)
	m.assigner.EXPECT().Assign(ctx, gomock.Any()).Return("", models.ErrNoCommander)

	_, err := store.Transition(ctx, current.ID, Command{Action: ActionApprove, ExpectedVersion: 1, Actor: dispatcher})

	assert.ErrorIs(t, err, models.ErrNoCommander)
}

func TestTransition_UnknownAction(t *testing.T) {
	store, _ := newTestIncidentStore(t)

	_, err := store.Transition(context.Background(), uuid.New(), Command{Action: "teleport", ExpectedVersion: 1, Actor: dispatcher})

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestRecordSafetyRejection(t *testing.T) {
	store, m := newTestIncidentStore(t)
	ctx := context.Background()
	rejection := &models.SafetyRejection{SubmissionID: uuid.New(), Stage: "input", Rule: "prompt_injection"}

	m.repo.EXPECT().SaveSafetyRejection(ctx, rejection).Return(nil)

	require.NoError(t, store.RecordSafetyRejection(ctx, rejection))
	assert.False(t, rejection.RejectedAt.IsZero())
}

func TestLockTable_SerializesSameID(t *testing.T) {
	// Подготовка
	table := newLockTable()
	id := uuid.New()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)

	// Действие
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.Lock(id)
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	// Проверки
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, table.size())
}

func TestLockTable_DifferentIDsDoNotBlock(t *testing.T) {
	table := newLockTable()
	unlockA := table.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := table.Lock(uuid.New())
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different incident blocked")
	}
}
