package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shenikar/resq_dispatch/internal/inference"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/search"
)

const (
	landmarkRadiusMeters = 2000
	similarIncidentLimit = 3
	sopLimit             = 3
)

// infer вызывает шлюз с независимым таймаутом стадии и декодирует ответ
func (s *Supervisor) infer(ctx context.Context, stage inference.Stage, input any, out any) error {
	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	raw, err := s.gateway.Infer(stageCtx, inference.Request{Stage: stage, Input: input})
	if err != nil {
		return fmt.Errorf("%s inference: %w", stage, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s output is malformed: %w", stage, err)
	}
	return nil
}

func (s *Supervisor) triage(ctx context.Context, env *models.ReportEnvelope) (*models.TriageOutput, error) {
	input := inference.TriageInput{
		Text:    env.CombinedText(),
		Context: env.Context,
		Similar: s.similarIncidents(ctx, env),
	}
	var out models.TriageOutput
	if err := s.infer(ctx, inference.StageTriage, input, &out); err != nil {
		return nil, err
	}
	if !out.Priority.Valid() {
		return nil, fmt.Errorf("triage returned %w %q", models.ErrInvalidPriority, out.Priority)
	}
	out.Type = resolveType(out.Type, out.Candidates)
	out.Confidence = clamp01(out.Confidence)
	return &out, nil
}

// resolveType выбирает тип с наибольшей оценкой, при равенстве - более широкий
func resolveType(declared models.IncidentType, candidates map[string]float64) models.IncidentType {
	best, bestScore := models.TypeOther, -1.0
	for name, score := range candidates {
		t := models.IncidentType(name)
		if !t.Valid() {
			continue
		}
		if score > bestScore || (score == bestScore && t.MoreConservative(best)) {
			best, bestScore = t, score
		}
	}
	if bestScore >= 0 {
		return best
	}
	if declared.Valid() {
		return declared
	}
	return models.TypeOther
}

// similarIncidents - необязательная подсказка для сортировки, ошибки поиска не влияют на результат
func (s *Supervisor) similarIncidents(ctx context.Context, env *models.ReportEnvelope) []string {
	if s.embedder == nil || s.searcher == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, env.CombinedText())
	if err != nil {
		s.logger.WithError(err).Debug("Similar incident lookup skipped")
		return nil
	}
	matches, err := s.searcher.Search(ctx, search.Query{Collection: search.CollectionIncidents, Vector: vec, Limit: similarIncidentLimit})
	if err != nil {
		s.logger.WithError(err).Debug("Similar incident lookup skipped")
		return nil
	}
	return payloadStrings(matches, "summary")
}

func (s *Supervisor) geo(ctx context.Context, env *models.ReportEnvelope) (*models.GeoOutput, error) {
	input := inference.GeoInput{Text: env.CombinedText(), Coordinates: env.Coordinates}
	if env.Coordinates != nil && s.embedder != nil && s.searcher != nil {
		if vec, err := s.embedder.Embed(ctx, input.Text); err == nil {
			matches, err := s.searcher.Search(ctx, search.Query{
				Collection: search.CollectionLandmarks,
				Vector:     vec,
				Limit:      5,
				Geo: &search.GeoFilter{
					Latitude:     env.Coordinates.Latitude,
					Longitude:    env.Coordinates.Longitude,
					RadiusMeters: landmarkRadiusMeters,
				},
			})
			if err == nil {
				input.Landmarks = payloadStrings(matches, "name")
			}
		}
	}

	var out models.GeoOutput
	if err := s.infer(ctx, inference.StageGeo, input, &out); err != nil {
		return nil, err
	}
	// координаты клиента точнее модели
	if env.Coordinates != nil {
		out.Location.Latitude = env.Coordinates.Latitude
		out.Location.Longitude = env.Coordinates.Longitude
	}
	if out.Location.Latitude < -90 || out.Location.Latitude > 90 || out.Location.Longitude < -180 || out.Location.Longitude > 180 {
		return nil, fmt.Errorf("geo returned coordinates out of range")
	}
	if env.Coordinates == nil && out.Location.Address == "" && out.Location.Latitude == 0 && out.Location.Longitude == 0 {
		return nil, fmt.Errorf("geo could not resolve a location")
	}
	if len(out.Landmarks) == 0 {
		out.Landmarks = input.Landmarks
	}
	return &out, nil
}

func (s *Supervisor) vision(ctx context.Context, env *models.ReportEnvelope) (*models.VisionOutput, error) {
	input := inference.VisionInput{ImageRef: env.ImageRef, ImageTag: env.ImageTag, Text: env.Text}
	var out models.VisionOutput
	if err := s.infer(ctx, inference.StageVision, input, &out); err != nil {
		return nil, err
	}
	category := strings.ToLower(strings.TrimSpace(out.Category))
	if category == "" {
		category = env.ImageTag
	}
	if t, ok := models.VisualType(category); ok {
		out.Type = t
	}
	if !out.Type.Valid() {
		out.Type = models.TypeOther
	}
	out.Category = category
	out.Confidence = clamp01(out.Confidence)
	return &out, nil
}

func (s *Supervisor) protocol(ctx context.Context, env *models.ReportEnvelope, t models.IncidentType, p models.Priority) (*models.ProtocolOutput, error) {
	sops := s.lookupSOPs(ctx, t)
	input := inference.ProtocolInput{Type: t, Priority: p, Text: env.CombinedText(), SOPs: sops}

	var out models.ProtocolOutput
	if err := s.infer(ctx, inference.StageProtocol, input, &out); err != nil {
		return nil, err
	}

	// принимаем только процедуры из выдачи поиска
	known := make(map[string]models.SOPReference, len(sops))
	for _, sop := range sops {
		known[sop.ID] = sop
	}
	validated := make([]models.SOPReference, 0, len(out.SOPs))
	for _, sop := range out.SOPs {
		if ref, ok := known[sop.ID]; ok {
			validated = append(validated, ref)
		}
	}
	if len(validated) == 0 {
		validated = sops
	}
	out.SOPs = validated
	out.Assets = mergeAssets(out.Assets)
	return &out, nil
}

func (s *Supervisor) lookupSOPs(ctx context.Context, t models.IncidentType) []models.SOPReference {
	if cached, ok := s.sopCache.Get(t); ok {
		return cached
	}
	if s.embedder == nil || s.searcher == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, string(t)+" emergency standard operating procedure")
	if err != nil {
		s.logger.WithError(err).Debug("SOP lookup skipped")
		return nil
	}
	matches, err := s.searcher.Search(ctx, search.Query{
		Collection: search.CollectionSOPs,
		Vector:     vec,
		Limit:      sopLimit,
		Filter:     map[string]string{"incident_type": string(t)},
	})
	if err != nil {
		s.logger.WithError(err).Debug("SOP lookup skipped")
		return nil
	}
	sops := make([]models.SOPReference, 0, len(matches))
	for _, m := range matches {
		title, _ := m.Payload["title"].(string)
		sops = append(sops, models.SOPReference{ID: m.ID, Title: title, Score: m.Score})
	}
	s.sopCache.Add(t, sops)
	return sops
}

func (s *Supervisor) synthesize(ctx context.Context, input inference.SynthesisInput) (string, error) {
	var out inference.SynthesisOutput
	if err := s.infer(ctx, inference.StageSynthesis, input, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Reasoning) == "" {
		return "", fmt.Errorf("synthesis returned empty reasoning")
	}
	return out.Reasoning, nil
}

func payloadStrings(matches []search.Match, key string) []string {
	var out []string
	for _, m := range matches {
		if v, ok := m.Payload[key].(string); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
