package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// Subscription - живая подписка консоли. Получает только события после своего создания.
type Subscription struct {
	ID        string
	Filter    models.SubscriptionFilter
	CreatedAt time.Time

	events    chan models.Event
	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

// Events - очередь доставки подписчика
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

// Done закрывается, когда подписка снята или переполнена
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Reason - причина закрытия подписки
func (s *Subscription) Reason() string {
	select {
	case <-s.done:
		return s.reason
	default:
		return ""
	}
}

func (s *Subscription) close(reason string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		close(s.done)
	})
}

// Hub раздает события подписчикам. Медленный подписчик не тормозит фиксацию:
// при переполнении его очереди подписка закрывается.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	logger *logrus.Logger
}

func NewHub(buffer int, logger *logrus.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe регистрирует подписку с фильтром
func (h *Hub) Subscribe(filter models.SubscriptionFilter) *Subscription {
	sub := &Subscription{
		ID:        uuid.NewString(),
		Filter:    filter,
		CreatedAt: time.Now().UTC(),
		events:    make(chan models.Event, h.buffer),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe снимает подписку, недоставленные события отбрасываются
func (h *Hub) Unsubscribe(id string) {
	h.remove(id, "unsubscribed")
}

func (h *Hub) remove(id, reason string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		sub.close(reason)
	}
}

// Publish доставляет событие всем подходящим подписчикам без блокировки
func (h *Hub) Publish(_ context.Context, event models.Event) error {
	var overflowed []*Subscription

	h.mu.RLock()
	for _, sub := range h.subs {
		if !sub.Filter.Matches(event) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range overflowed {
		h.logger.WithFields(logrus.Fields{
			"service":         "realtime",
			"subscription_id": sub.ID,
			"role":            sub.Filter.Role,
			"incident_id":     event.IncidentID,
		}).Warn("Subscriber queue overflow, disconnecting")
		h.remove(sub.ID, "overflow")
	}
	return nil
}

// Count - число активных подписок
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
