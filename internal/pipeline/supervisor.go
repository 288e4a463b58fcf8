package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shenikar/resq_dispatch/internal/inference"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/search"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const sopCacheSize = 64

// Config - параметры супервизора
type Config struct {
	StageTimeout    time.Duration
	PipelineTimeout time.Duration
}

// Supervisor проводит обращение через стадии анализа
type Supervisor struct {
	gateway  inference.Gateway
	embedder inference.Embedder
	searcher search.Searcher
	guard    Checker
	cfg      Config
	sopCache *lru.Cache[models.IncidentType, []models.SOPReference]
	logger   *logrus.Logger
}

// NewSupervisor создает конвейер. embedder и searcher необязательны: без них
// поиск ориентиров, процедур и похожих инцидентов пропускается.
func NewSupervisor(gateway inference.Gateway, embedder inference.Embedder, searcher search.Searcher, guard Checker, cfg Config, logger *logrus.Logger) (*Supervisor, error) {
	cache, err := lru.New[models.IncidentType, []models.SOPReference](sopCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sop cache: %w", err)
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 10 * time.Second
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = 30 * time.Second
	}
	return &Supervisor{
		gateway:  gateway,
		embedder: embedder,
		searcher: searcher,
		guard:    guard,
		cfg:      cfg,
		sopCache: cache,
		logger:   logger,
	}, nil
}

type outcome struct {
	result *models.AnalysisResult
	err    error
}

// Analyze превращает конверт в AnalysisResult.
// Отказы фильтра безопасности возвращаются как *models.SafetyRejectionError.
func (s *Supervisor) Analyze(ctx context.Context, env *models.ReportEnvelope) (*models.AnalysisResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":       "pipeline",
		"method":        "Analyze",
		"submission_id": env.SubmissionID,
		"session_id":    env.SessionID,
	})

	if rule, flagged := s.guard.Check(env.CombinedText()); flagged {
		log.WithField("rule", rule).Warn("Input rejected by safety check")
		return nil, &models.SafetyRejectionError{Stage: "input", Rule: rule}
	}

	env = s.screenContext(env, log)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancel()

	// буфер на один результат: отставшие стадии не блокируются после таймаута
	done := make(chan outcome, 1)
	go func() {
		res, err := s.run(runCtx, env, log)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && runCtx.Err() != nil {
			return nil, s.interrupted(ctx, log)
		}
		return out.result, out.err
	case <-runCtx.Done():
		return nil, s.interrupted(ctx, log)
	}
}

// screenContext убирает из истории диалога реплики, которые не проходят фильтр безопасности.
// Конверт вызывающего не изменяется.
func (s *Supervisor) screenContext(env *models.ReportEnvelope, log *logrus.Entry) *models.ReportEnvelope {
	kept := make([]string, 0, len(env.Context))
	for _, line := range env.Context {
		if rule, flagged := s.guard.Check(line); flagged {
			log.WithField("rule", rule).Warn("Dropped flagged line from conversation context")
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == len(env.Context) {
		return env
	}
	screened := *env
	screened.Context = kept
	return &screened
}

func (s *Supervisor) interrupted(parent context.Context, log *logrus.Entry) error {
	if err := parent.Err(); err != nil {
		log.WithError(err).Info("Analysis cancelled")
		return err
	}
	log.WithField("timeout", s.cfg.PipelineTimeout).Warn("Analysis timed out")
	return fmt.Errorf("%w: exceeded %s", models.ErrPipelineTimeout, s.cfg.PipelineTimeout)
}

func (s *Supervisor) run(ctx context.Context, env *models.ReportEnvelope, log *logrus.Entry) (*models.AnalysisResult, error) {
	var (
		triage            *models.TriageOutput
		geo               *models.GeoOutput
		vision            *models.VisionOutput
		geoErr, visionErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.triage(gctx, env)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrTriageUnavailable, err)
		}
		triage = out
		return nil
	})
	g.Go(func() error {
		geo, geoErr = s.geo(gctx, env)
		return nil
	})
	if env.HasImage() {
		g.Go(func() error {
			vision, visionErr = s.vision(gctx, env)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Triage failed")
		return nil, err
	}

	var degraded []string
	if geoErr != nil {
		log.WithError(geoErr).Warn("Geo stage degraded")
		degraded = append(degraded, string(inference.StageGeo))
		geo = nil
	}
	if visionErr != nil {
		log.WithError(visionErr).Warn("Vision stage degraded")
		degraded = append(degraded, string(inference.StageVision))
		vision = nil
	}

	incidentType, priority := merge(triage, vision)

	protocol, err := s.protocol(ctx, env, incidentType, priority)
	if err != nil {
		log.WithError(err).Warn("Protocol stage degraded")
		degraded = append(degraded, string(inference.StageProtocol))
		protocol = &models.ProtocolOutput{}
	}

	reasoning, err := s.synthesize(ctx, inference.SynthesisInput{
		Triage:   triage,
		Geo:      geo,
		Vision:   vision,
		Protocol: protocol,
		Priority: priority,
		Type:     incidentType,
	})
	if err != nil {
		log.WithError(err).Warn("Synthesis degraded, using triage reasoning")
		degraded = append(degraded, string(inference.StageSynthesis))
		reasoning = triage.Reasoning
	}

	if rule, flagged := s.guard.Check(reasoning + "\n" + protocol.Instructions); flagged {
		log.WithField("rule", rule).Warn("Output rejected by safety check")
		return nil, &models.SafetyRejectionError{Stage: "output", Rule: rule}
	}

	result := &models.AnalysisResult{
		Type:      incidentType,
		Priority:  priority,
		Reasoning: reasoning,
		Assets:    mergeAssets(triage.Assets, protocol.Assets),
		Risks:     mergeRisks(triage, vision),
		SOPs:      append([]models.SOPReference{}, protocol.SOPs...),
		Safety:    models.SafetyPass,
		Triage:    triage,
		Geo:       geo,
		Vision:    vision,
		Protocol:  protocol,
		Degraded:  degraded,
	}
	if geo != nil {
		loc := geo.Location
		result.Location = &loc
	}
	result.QualityScore = qualityScore(result, env.HasImage())

	log.WithFields(logrus.Fields{
		"priority":      result.Priority,
		"incident_type": result.Type,
		"degraded":      degraded,
	}).Info("Analysis completed")
	return result, nil
}

// merge применяет приоритеты источников: сортировка главная,
// визуальная стадия только уточняет тип Other и может лишь повысить приоритет
func merge(triage *models.TriageOutput, vision *models.VisionOutput) (models.IncidentType, models.Priority) {
	incidentType, priority := triage.Type, triage.Priority
	if vision == nil {
		return incidentType, priority
	}
	if incidentType == models.TypeOther && vision.Type.Valid() && vision.Type != models.TypeOther {
		incidentType = vision.Type
	}
	if vision.Type.RaisesPriority() {
		priority = models.Higher(priority, models.PriorityP2)
	}
	return incidentType, priority
}

func mergeAssets(lists ...[]models.Asset) []models.Asset {
	out := []models.Asset{}
	index := make(map[string]int)
	for _, list := range lists {
		for _, a := range list {
			if a.Type == "" || a.Quantity <= 0 {
				continue
			}
			if i, ok := index[a.Type]; ok {
				out[i].Quantity = max(out[i].Quantity, a.Quantity)
				continue
			}
			index[a.Type] = len(out)
			out = append(out, a)
		}
	}
	return out
}

func mergeRisks(triage *models.TriageOutput, vision *models.VisionOutput) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(risks []string) {
		for _, r := range risks {
			if r != "" && !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	add(triage.Risks)
	if vision != nil {
		add(vision.Risks)
	}
	return out
}

// qualityScore - уверенность сортировки, взвешенная полнотой вкладов стадий
func qualityScore(r *models.AnalysisResult, hasImage bool) float64 {
	expected, got := 3.0, 0.0
	if r.Geo != nil {
		got++
	}
	if len(r.SOPs) > 0 || len(r.Protocol.Assets) > 0 {
		got++
	}
	if !contains(r.Degraded, string(inference.StageSynthesis)) {
		got++
	}
	if hasImage {
		expected++
		if r.Vision != nil {
			got++
		}
	}
	score := 0.5*r.Triage.Confidence + 0.5*(got/expected)
	return math.Round(score*100) / 100
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
