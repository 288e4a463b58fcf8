package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dispatcherActor = models.Actor{ID: "disp-1", Role: models.RoleDispatcher}

func newTestConsoleServer(t *testing.T, manager *SessionManager, actor models.Actor, filter models.SubscriptionFilter) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = manager.Serve(context.Background(), conn, actor, filter)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialConsole(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readControl(t *testing.T, conn *websocket.Conn) controlMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg controlMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestSessionManager_SubscribeAndReceive(t *testing.T) {
	// Подготовка
	hub := NewHub(16, newTestLogger())
	manager := NewSessionManager(hub, newTestLogger())
	srv := newTestConsoleServer(t, manager, dispatcherActor, models.SubscriptionFilter{Role: models.RoleDispatcher})
	conn := dialConsole(t, srv)

	ack := readControl(t, conn)
	require.Equal(t, kindSubscribed, ack.Kind)
	require.NotEmpty(t, ack.ConnectionID)
	waitFor(t, func() bool { return hub.Count() == 1 })

	// Действие
	inc := testIncident("", 1)
	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventNewIncident, inc)))

	// Проверки
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventNewIncident, event.Kind)
	assert.Equal(t, inc.ID, event.IncidentID)
	assert.Len(t, manager.Sessions(), 1)
}

func TestSessionManager_PingAndResubscribe(t *testing.T) {
	// Подготовка
	hub := NewHub(16, newTestLogger())
	manager := NewSessionManager(hub, newTestLogger())
	srv := newTestConsoleServer(t, manager, dispatcherActor, models.SubscriptionFilter{Role: models.RoleDispatcher})
	conn := dialConsole(t, srv)
	readControl(t, conn)

	// Действие
	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "ping"}))
	pong := readControl(t, conn)

	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type:   "subscribe",
		Filter: models.SubscriptionFilter{Role: models.RoleDispatcher},
	}))
	resub := readControl(t, conn)

	// Проверки
	assert.Equal(t, kindPong, pong.Kind)
	require.Equal(t, kindSubscribed, resub.Kind)
	require.NotNil(t, resub.Filter)
	assert.Equal(t, models.RoleDispatcher, resub.Filter.Role)
	waitFor(t, func() bool { return hub.Count() == 1 })
}

func TestSessionManager_CommanderResubscribeKeepsOwnScope(t *testing.T) {
	// Подготовка
	hub := NewHub(16, newTestLogger())
	manager := NewSessionManager(hub, newTestLogger())
	commander := models.Actor{ID: "cmd-1", Role: models.RoleCommander}
	srv := newTestConsoleServer(t, manager, commander, models.SubscriptionFilter{Role: models.RoleCommander, CommanderID: "cmd-1"})
	conn := dialConsole(t, srv)
	readControl(t, conn)

	// Действие: клиент просит чужого командира и роль диспетчера
	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type:   "subscribe",
		Filter: models.SubscriptionFilter{Role: models.RoleDispatcher, CommanderID: "cmd-2"},
	}))
	resub := readControl(t, conn)

	// Проверки
	require.Equal(t, kindSubscribed, resub.Kind)
	require.NotNil(t, resub.Filter)
	assert.Equal(t, models.RoleCommander, resub.Filter.Role)
	assert.Equal(t, "cmd-1", resub.Filter.CommanderID)
	waitFor(t, func() bool { return hub.Count() == 1 })

	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventStatusChange, testIncident("cmd-2", 2))))
	mine := testIncident("cmd-1", 2)
	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventStatusChange, mine)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, mine.ID, event.IncidentID)
}

func TestSessionManager_ReporterCannotWidenSubscription(t *testing.T) {
	// Подготовка
	hub := NewHub(16, newTestLogger())
	manager := NewSessionManager(hub, newTestLogger())
	own := testIncident("", 1)
	reporter := models.Actor{ID: "anonymous", Role: models.RolePublic}
	srv := newTestConsoleServer(t, manager, reporter, models.SubscriptionFilter{Role: models.RolePublic, IncidentID: own.ID})
	conn := dialConsole(t, srv)
	readControl(t, conn)

	// Действие
	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type:   "subscribe",
		Filter: models.SubscriptionFilter{Role: models.RoleDispatcher},
	}))
	resub := readControl(t, conn)

	// Проверки
	require.Equal(t, kindSubscribed, resub.Kind)
	require.NotNil(t, resub.Filter)
	assert.Equal(t, models.RolePublic, resub.Filter.Role)
	assert.Equal(t, own.ID, resub.Filter.IncidentID)
	waitFor(t, func() bool { return hub.Count() == 1 })

	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventNewIncident, testIncident("", 1))))
	require.NoError(t, hub.Publish(context.Background(), models.NewEvent(models.EventNewIncident, own)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, own.ID, event.IncidentID)
}

func TestSessionManager_ReporterCannotSwitchIncident(t *testing.T) {
	hub := NewHub(16, newTestLogger())
	manager := NewSessionManager(hub, newTestLogger())
	reporter := models.Actor{ID: "anonymous", Role: models.RolePublic}
	srv := newTestConsoleServer(t, manager, reporter, models.SubscriptionFilter{Role: models.RolePublic, IncidentID: uuid.New()})
	conn := dialConsole(t, srv)
	readControl(t, conn)

	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type:   "subscribe",
		Filter: models.SubscriptionFilter{Role: models.RolePublic, IncidentID: uuid.New()},
	}))
	reply := readControl(t, conn)

	assert.Equal(t, kindError, reply.Kind)
	assert.Equal(t, ErrIncidentFixed.Error(), reply.Error)
}

func TestScopeFilter(t *testing.T) {
	incidentID := uuid.New()
	tests := []struct {
		name      string
		actor     models.Actor
		requested models.SubscriptionFilter
		want      models.SubscriptionFilter
		wantErr   error
	}{
		{
			name:      "dispatcher ignores requested narrowing",
			actor:     models.Actor{ID: "disp-1", Role: models.RoleDispatcher},
			requested: models.SubscriptionFilter{Role: models.RolePublic, IncidentID: incidentID},
			want:      models.SubscriptionFilter{Role: models.RoleDispatcher},
		},
		{
			name:      "commander bound to own id",
			actor:     models.Actor{ID: "cmd-1", Role: models.RoleCommander},
			requested: models.SubscriptionFilter{Role: models.RoleCommander, CommanderID: "cmd-2"},
			want:      models.SubscriptionFilter{Role: models.RoleCommander, CommanderID: "cmd-1"},
		},
		{
			name:      "commander without id",
			actor:     models.Actor{Role: models.RoleCommander},
			requested: models.SubscriptionFilter{Role: models.RoleCommander, CommanderID: "cmd-2"},
			wantErr:   ErrCommanderIDRequired,
		},
		{
			name:      "reporter keeps incident",
			actor:     models.Actor{ID: "anonymous", Role: models.RolePublic},
			requested: models.SubscriptionFilter{Role: models.RoleDispatcher, IncidentID: incidentID},
			want:      models.SubscriptionFilter{Role: models.RolePublic, IncidentID: incidentID},
		},
		{
			name:      "reporter without incident",
			actor:     models.Actor{ID: "anonymous", Role: models.RolePublic},
			requested: models.SubscriptionFilter{Role: models.RoleDispatcher},
			wantErr:   ErrIncidentIDRequired,
		},
		{
			name:      "system actor",
			actor:     models.SystemActor,
			requested: models.SubscriptionFilter{Role: models.RoleDispatcher},
			wantErr:   ErrUnknownRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScopeFilter(tt.actor, tt.requested)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionManager_DisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(16, newTestLogger())
	manager := NewSessionManager(hub, newTestLogger())
	srv := newTestConsoleServer(t, manager, dispatcherActor, models.SubscriptionFilter{Role: models.RoleDispatcher})
	conn := dialConsole(t, srv)
	readControl(t, conn)
	waitFor(t, func() bool { return hub.Count() == 1 })

	require.NoError(t, conn.Close())

	waitFor(t, func() bool { return hub.Count() == 0 && len(manager.Sessions()) == 0 })
}

func TestSessionManager_OverflowClosesConsole(t *testing.T) {
	// Подготовка
	hub := NewHub(1, newTestLogger())
	manager := NewSessionManager(hub, newTestLogger())
	srv := newTestConsoleServer(t, manager, dispatcherActor, models.SubscriptionFilter{Role: models.RoleDispatcher})
	conn := dialConsole(t, srv)
	readControl(t, conn)
	waitFor(t, func() bool { return hub.Count() == 1 })

	// Действие: клиент не читает, очередь переполняется
	inc := testIncident("", 1)
	waitFor(t, func() bool {
		for i := 0; i < 500; i++ {
			_ = hub.Publish(context.Background(), models.NewEvent(models.EventStatusChange, inc))
		}
		return hub.Count() == 0
	})

	// Проверки
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var closed bool
	for !closed {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			closed = true
			break
		}
		if msg.Kind == kindClosing {
			assert.Equal(t, "overflow", msg.Error)
		}
	}
	assert.True(t, closed)
	waitFor(t, func() bool { return len(manager.Sessions()) == 0 })
}
