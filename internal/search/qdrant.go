package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// QdrantClient обращается к REST API Qdrant
type QdrantClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewQdrantClient(baseURL, apiKey string, timeout time.Duration) *QdrantClient {
	return &QdrantClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type qdrantSearchRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *qdrantFilter `json:"filter,omitempty"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key       string           `json:"key"`
	Match     *qdrantMatch     `json:"match,omitempty"`
	GeoRadius *qdrantGeoRadius `json:"geo_radius,omitempty"`
}

type qdrantMatch struct {
	Value string `json:"value"`
}

type qdrantGeoRadius struct {
	Center qdrantPoint `json:"center"`
	Radius float64     `json:"radius"`
}

type qdrantPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (c *QdrantClient) Search(ctx context.Context, q Query) ([]Match, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	body := qdrantSearchRequest{Vector: q.Vector, Limit: limit, WithPayload: true}
	var must []qdrantCondition
	for k, v := range q.Filter {
		must = append(must, qdrantCondition{Key: k, Match: &qdrantMatch{Value: v}})
	}
	if q.Geo != nil {
		must = append(must, qdrantCondition{
			Key: "location",
			GeoRadius: &qdrantGeoRadius{
				Center: qdrantPoint{Lat: q.Geo.Latitude, Lon: q.Geo.Longitude},
				Radius: q.Geo.RadiusMeters,
			},
		})
	}
	if len(must) > 0 {
		body.Filter = &qdrantFilter{Must: must}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, url.PathEscape(q.Collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", q.Collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("qdrant search %s: status %d: %s", q.Collection, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out qdrantSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	matches := make([]Match, 0, len(out.Result))
	for _, r := range out.Result {
		matches = append(matches, Match{ID: fmt.Sprint(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return matches, nil
}
