package memory

import (
	"context"
	"sync"

	"github.com/shenikar/resq_dispatch/internal/models"
)

// SessionRepository хранит историю сессий в памяти без срока жизни
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string][]models.ChatMessage
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string][]models.ChatMessage)}
}

func (r *SessionRepository) Append(_ context.Context, sessionID string, msg models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append(r.sessions[sessionID], msg)
	return nil
}

func (r *SessionRepository) Recent(_ context.Context, sessionID string, n int) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.sessions[sessionID]
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]models.ChatMessage(nil), msgs...), nil
}

func (r *SessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
