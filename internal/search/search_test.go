package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySearcher_RanksAndFilters(t *testing.T) {
	s := NewMemorySearcher()
	s.Upsert(CollectionSOPs, Document{ID: "sop-fire", Vector: []float32{1, 0}, Payload: map[string]any{"incident_type": "Fire"}})
	s.Upsert(CollectionSOPs, Document{ID: "sop-fire-2", Vector: []float32{0.6, 0.8}, Payload: map[string]any{"incident_type": "Fire"}})
	s.Upsert(CollectionSOPs, Document{ID: "sop-flood", Vector: []float32{1, 0}, Payload: map[string]any{"incident_type": "Flood"}})

	matches, err := s.Search(context.Background(), Query{
		Collection: CollectionSOPs,
		Vector:     []float32{1, 0},
		Filter:     map[string]string{"incident_type": "Fire"},
	})

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "sop-fire", matches[0].ID)
	assert.InDelta(t, 0.6, matches[1].Score, 1e-6)
}

func TestMemorySearcher_GeoRadius(t *testing.T) {
	s := NewMemorySearcher()
	s.Upsert(CollectionLandmarks, Document{ID: "near", Vector: []float32{1}, Latitude: 12.9716, Longitude: 77.5946, HasGeo: true})
	s.Upsert(CollectionLandmarks, Document{ID: "far", Vector: []float32{1}, Latitude: 13.5, Longitude: 77.5946, HasGeo: true})

	matches, err := s.Search(context.Background(), Query{
		Collection: CollectionLandmarks,
		Vector:     []float32{1},
		Geo:        &GeoFilter{Latitude: 12.972, Longitude: 77.595, RadiusMeters: 1000},
	})

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].ID)
}

func TestQdrantClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/sops/points/search", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("api-key"))

		var req qdrantSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Limit)
		require.NotNil(t, req.Filter)
		assert.Equal(t, "incident_type", req.Filter.Must[0].Key)

		_, _ = w.Write([]byte(`{"result":[{"id":7,"score":0.91,"payload":{"title":"Structure fire"}}]}`))
	}))
	defer srv.Close()

	c := NewQdrantClient(srv.URL+"/", "key", time.Second)
	matches, err := c.Search(context.Background(), Query{
		Collection: CollectionSOPs,
		Vector:     []float32{0.1, 0.2},
		Limit:      3,
		Filter:     map[string]string{"incident_type": "Fire"},
	})

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "7", matches[0].ID)
	assert.Equal(t, "Structure fire", matches[0].Payload["title"])
}

func TestQdrantClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewQdrantClient(srv.URL, "", time.Second)
	_, err := c.Search(context.Background(), Query{Collection: "missing", Vector: []float32{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
