package search

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Коллекции векторного хранилища
const (
	CollectionSOPs      = "sops"
	CollectionLandmarks = "landmarks"
	CollectionIncidents = "incidents"
)

// GeoFilter ограничивает выдачу радиусом вокруг точки
type GeoFilter struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Query - запрос к векторному поиску
type Query struct {
	Collection string
	Vector     []float32
	Limit      int
	Geo        *GeoFilter
	// Filter - точное совпадение по полям payload
	Filter map[string]string
}

// Match - найденная точка со счетом
type Match struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Searcher - контракт векторного поиска
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Match, error)
}

// Document - точка для in-memory индекса
type Document struct {
	ID        string
	Vector    []float32
	Payload   map[string]any
	Latitude  float64
	Longitude float64
	HasGeo    bool
}

// MemorySearcher - косинусный поиск по документам в памяти
type MemorySearcher struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

func NewMemorySearcher() *MemorySearcher {
	return &MemorySearcher{collections: make(map[string][]Document)}
}

// Upsert добавляет или заменяет документ
func (m *MemorySearcher) Upsert(collection string, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.collections[collection]
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			return
		}
	}
	m.collections[collection] = append(docs, doc)
}

func (m *MemorySearcher) Search(ctx context.Context, q Query) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	var out []Match
	for _, d := range m.collections[q.Collection] {
		if !matchesPayload(d.Payload, q.Filter) {
			continue
		}
		if q.Geo != nil {
			if !d.HasGeo || haversine(q.Geo.Latitude, q.Geo.Longitude, d.Latitude, d.Longitude) > q.Geo.RadiusMeters {
				continue
			}
		}
		out = append(out, Match{ID: d.ID, Score: cosine(q.Vector, d.Vector), Payload: d.Payload})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesPayload(payload map[string]any, filter map[string]string) bool {
	for k, v := range filter {
		if s, ok := payload[k].(string); !ok || s != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

const earthRadiusMeters = 6371000.0

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
