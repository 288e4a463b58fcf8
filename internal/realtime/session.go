package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultPongWait  = 60 * time.Second
	defaultWriteWait = 10 * time.Second
	maxMessageSize   = 4096
)

var (
	ErrCommanderIDRequired = errors.New("commander subscription requires commander_id")
	ErrIncidentIDRequired  = errors.New("reporter subscription requires incident_id")
	ErrUnknownRole         = errors.New("unknown subscriber role")
	ErrIncidentFixed       = errors.New("reporter connection follows a single incident")
)

// ScopeFilter строит фильтр подписки для участника. Роль и командир берутся
// только из участника, от клиента принимается лишь incident_id заявителя.
func ScopeFilter(actor models.Actor, requested models.SubscriptionFilter) (models.SubscriptionFilter, error) {
	filter := models.SubscriptionFilter{Role: actor.Role}
	switch actor.Role {
	case models.RoleDispatcher:
	case models.RoleCommander:
		filter.CommanderID = actor.ID
	case models.RolePublic:
		filter.IncidentID = requested.IncidentID
	default:
		return models.SubscriptionFilter{}, ErrUnknownRole
	}
	if err := ValidateFilter(filter); err != nil {
		return models.SubscriptionFilter{}, err
	}
	return filter, nil
}

// ValidateFilter проверяет, что фильтр соответствует роли
func ValidateFilter(f models.SubscriptionFilter) error {
	switch f.Role {
	case models.RoleDispatcher:
		return nil
	case models.RoleCommander:
		if f.CommanderID == "" {
			return ErrCommanderIDRequired
		}
		return nil
	case models.RolePublic:
		if f.IncidentID == uuid.Nil {
			return ErrIncidentIDRequired
		}
		return nil
	}
	return ErrUnknownRole
}

// Служебные сообщения для консоли
const (
	kindSubscribed = "subscribed"
	kindPong       = "pong"
	kindError      = "error"
	kindClosing    = "closing"
)

type controlMessage struct {
	Kind         string                     `json:"kind"`
	ConnectionID string                     `json:"connection_id,omitempty"`
	Filter       *models.SubscriptionFilter `json:"filter,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

type inboundMessage struct {
	Type   string                    `json:"type"`
	Filter models.SubscriptionFilter `json:"filter"`
}

// SessionInfo - описание живого подключения
type SessionInfo struct {
	ConnectionID string                    `json:"connection_id"`
	Filter       models.SubscriptionFilter `json:"filter"`
	ConnectedAt  time.Time                 `json:"connected_at"`
}

type session struct {
	id          string
	conn        *websocket.Conn
	actor       models.Actor
	initial     models.SubscriptionFilter
	connectedAt time.Time

	mu  sync.Mutex
	sub *Subscription
}

// rescope применяет запрос переподписки в границах участника подключения.
// Заявитель остается на инциденте, к которому был допущен при подключении.
func (s *session) rescope(requested models.SubscriptionFilter) (models.SubscriptionFilter, error) {
	if s.actor.Role == models.RolePublic {
		if requested.IncidentID == uuid.Nil {
			requested.IncidentID = s.initial.IncidentID
		}
		if requested.IncidentID != s.initial.IncidentID {
			return models.SubscriptionFilter{}, ErrIncidentFixed
		}
	}
	return ScopeFilter(s.actor, requested)
}

func (s *session) subscription() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// SessionManager ведет жизненный цикл консолей: connect, subscribe(filter), receive, disconnect.
// Пропущенные за время отключения события не досылаются, клиент перечитывает состояние сам.
type SessionManager struct {
	hub       *Hub
	logger    *logrus.Logger
	pongWait  time.Duration
	pingEvery time.Duration
	writeWait time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionManager(hub *Hub, logger *logrus.Logger) *SessionManager {
	return &SessionManager{
		hub:       hub,
		logger:    logger,
		pongWait:  defaultPongWait,
		pingEvery: (defaultPongWait * 9) / 10,
		writeWait: defaultWriteWait,
		sessions:  make(map[string]*session),
	}
}

// Serve обслуживает подключение участника до его закрытия.
// filter должен быть уже проверен на доступ, роль и командир все равно берутся из actor.
func (m *SessionManager) Serve(ctx context.Context, conn *websocket.Conn, actor models.Actor, filter models.SubscriptionFilter) error {
	filter, err := ScopeFilter(actor, filter)
	if err != nil {
		_ = conn.Close()
		return err
	}
	sess := m.connect(conn, actor, filter)
	defer m.disconnect(sess)

	log := m.logger.WithFields(logrus.Fields{
		"service":       "realtime",
		"connection_id": sess.id,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	control := make(chan controlMessage, 8)
	resubscribe := make(chan *Subscription, 1)

	sub := m.subscribe(sess, filter)
	control <- controlMessage{Kind: kindSubscribed, ConnectionID: sess.id, Filter: &sub.Filter}
	log.WithField("role", filter.Role).Info("Console connected")

	go m.readPump(ctx, cancel, sess, control, resubscribe, log)
	m.writePump(ctx, sess, control, resubscribe, log)
	return nil
}

func (m *SessionManager) connect(conn *websocket.Conn, actor models.Actor, filter models.SubscriptionFilter) *session {
	sess := &session{
		id:          uuid.NewString(),
		conn:        conn,
		actor:       actor,
		initial:     filter,
		connectedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()
	return sess
}

func (m *SessionManager) subscribe(sess *session, filter models.SubscriptionFilter) *Subscription {
	sub := m.hub.Subscribe(filter)
	sess.mu.Lock()
	prev := sess.sub
	sess.sub = sub
	sess.mu.Unlock()
	if prev != nil {
		m.hub.Unsubscribe(prev.ID)
	}
	return sub
}

func (m *SessionManager) disconnect(sess *session) {
	if sub := sess.subscription(); sub != nil {
		m.hub.Unsubscribe(sub.ID)
	}
	m.mu.Lock()
	delete(m.sessions, sess.id)
	m.mu.Unlock()
	_ = sess.conn.Close()
	m.logger.WithFields(logrus.Fields{
		"service":       "realtime",
		"connection_id": sess.id,
	}).Info("Console disconnected")
}

func (m *SessionManager) readPump(ctx context.Context, cancel context.CancelFunc, sess *session, control chan<- controlMessage, resubscribe chan<- *Subscription, log *logrus.Entry) {
	defer cancel()

	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(m.pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(m.pongWait))
	})

	for {
		var in inboundMessage
		if err := sess.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("Console read failed")
			}
			return
		}
		_ = sess.conn.SetReadDeadline(time.Now().Add(m.pongWait))

		var reply controlMessage
		switch in.Type {
		case "ping":
			reply = controlMessage{Kind: kindPong}
		case "subscribe":
			filter, err := sess.rescope(in.Filter)
			if err != nil {
				log.WithError(err).WithField("requested", in.Filter).Warn("Rejected console resubscribe")
				reply = controlMessage{Kind: kindError, Error: err.Error()}
				break
			}
			sub := m.subscribe(sess, filter)
			select {
			case resubscribe <- sub:
			case <-ctx.Done():
				return
			}
			reply = controlMessage{Kind: kindSubscribed, ConnectionID: sess.id, Filter: &sub.Filter}
		default:
			reply = controlMessage{Kind: kindError, Error: "unknown message type"}
		}
		select {
		case control <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// writePump - единственный писатель в соединение
func (m *SessionManager) writePump(ctx context.Context, sess *session, control <-chan controlMessage, resubscribe <-chan *Subscription, log *logrus.Entry) {
	ticker := time.NewTicker(m.pingEvery)
	defer ticker.Stop()

	sub := sess.subscription()
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-resubscribe:
			sub = next
		case <-sub.Done():
			if sub != sess.subscription() {
				// заменена новой подпиской, ждем ее через resubscribe
				select {
				case sub = <-resubscribe:
				case <-ctx.Done():
					return
				}
				continue
			}
			log.WithField("reason", sub.Reason()).Warn("Subscription closed, dropping console")
			m.write(sess, controlMessage{Kind: kindClosing, Error: sub.Reason()})
			_ = sess.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, sub.Reason()),
				time.Now().Add(m.writeWait))
			return
		case event := <-sub.Events():
			if err := m.write(sess, event); err != nil {
				log.WithError(err).Debug("Console write failed")
				return
			}
		case msg := <-control:
			if err := m.write(sess, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(m.writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *SessionManager) write(sess *session, v any) error {
	if err := sess.conn.SetWriteDeadline(time.Now().Add(m.writeWait)); err != nil {
		return err
	}
	return sess.conn.WriteJSON(v)
}

// Sessions возвращает список живых подключений
func (m *SessionManager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		info := SessionInfo{ConnectionID: s.id, ConnectedAt: s.connectedAt}
		if sub := s.subscription(); sub != nil {
			info.Filter = sub.Filter
		}
		out = append(out, info)
	}
	return out
}

// Shutdown закрывает все подключения
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(m.writeWait))
		_ = s.conn.Close()
	}
}
