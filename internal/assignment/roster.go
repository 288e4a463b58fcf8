package assignment

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/config"
	"github.com/shenikar/resq_dispatch/internal/models"
)

type commander struct {
	config.Commander
	active map[uuid.UUID]struct{}
}

// Roster - реестр командиров и политика назначения.
// Предпочитает свободного командира с подходящей специализацией, затем любого свободного,
// затем наименее загруженного.
type Roster struct {
	mu         sync.Mutex
	commanders []*commander
	byID       map[string]*commander
}

func NewRoster(commanders []config.Commander) *Roster {
	r := &Roster{byID: make(map[string]*commander)}
	for _, c := range commanders {
		if _, dup := r.byID[c.ID]; dup {
			continue
		}
		entry := &commander{Commander: c, active: make(map[uuid.UUID]struct{})}
		r.commanders = append(r.commanders, entry)
		r.byID[c.ID] = entry
	}
	return r
}

// Assign выбирает командира для инцидента и учитывает его как занятого
func (r *Roster) Assign(_ context.Context, incident *models.Incident) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.commanders) == 0 {
		return "", models.ErrNoCommander
	}

	var chosen *commander
	for _, c := range r.commanders {
		if len(c.active) == 0 && strings.EqualFold(c.Specialization, string(incident.Type)) {
			chosen = c
			break
		}
	}
	if chosen == nil {
		for _, c := range r.commanders {
			if len(c.active) == 0 {
				chosen = c
				break
			}
		}
	}
	if chosen == nil {
		chosen = r.commanders[0]
		for _, c := range r.commanders[1:] {
			if len(c.active) < len(chosen.active) {
				chosen = c
			}
		}
	}
	chosen.active[incident.ID] = struct{}{}
	return chosen.ID, nil
}

// Release освобождает командира от инцидента
func (r *Roster) Release(_ context.Context, commanderID string, incidentID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[commanderID]; ok {
		delete(c.active, incidentID)
	}
}

// Track восстанавливает занятость по активным инцидентам после рестарта
func (r *Roster) Track(commanderID string, incidentID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[commanderID]; ok {
		c.active[incidentID] = struct{}{}
	}
}

// Snapshot возвращает состояние реестра
func (r *Roster) Snapshot() []models.CommanderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.CommanderStatus, 0, len(r.commanders))
	for _, c := range r.commanders {
		ids := make([]uuid.UUID, 0, len(c.active))
		for id := range c.active {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		out = append(out, models.CommanderStatus{
			ID:              c.ID,
			Zone:            c.Zone,
			Specialization:  c.Specialization,
			Available:       len(c.active) == 0,
			ActiveIncidents: ids,
		})
	}
	return out
}
