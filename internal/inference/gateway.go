package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// Stage - идентификатор стадии, для которой запрашивается вывод
type Stage string

const (
	StageTriage    Stage = "triage"
	StageGeo       Stage = "geo"
	StageVision    Stage = "vision"
	StageProtocol  Stage = "protocol"
	StageSynthesis Stage = "synthesis"
)

// Request - структурированный запрос к шлюзу
type Request struct {
	Stage  Stage
	Prompt string
	Input  any
}

// Gateway - шлюз вывода LLM. Возвращает JSON результата стадии или ErrInferenceUnavailable.
type Gateway interface {
	Name() string
	Infer(ctx context.Context, req Request) (json.RawMessage, error)
}

// FallbackGateway опрашивает провайдеров по порядку до первого успешного ответа
type FallbackGateway struct {
	providers []Gateway
	logger    *logrus.Logger
}

func NewFallbackGateway(logger *logrus.Logger, providers ...Gateway) *FallbackGateway {
	return &FallbackGateway{providers: providers, logger: logger}
}

func (g *FallbackGateway) Name() string {
	return "fallback"
}

func (g *FallbackGateway) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	var errs []error
	for _, p := range g.providers {
		out, err := p.Infer(ctx, req)
		if err == nil {
			return out, nil
		}
		// отмена запроса не повод переключать провайдера
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInferenceUnavailable, ctx.Err())
		}
		g.logger.WithFields(logrus.Fields{
			"provider": p.Name(),
			"stage":    req.Stage,
		}).WithError(err).Warn("Inference provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", models.ErrInferenceUnavailable)
	}
	return nil, fmt.Errorf("%w: %v", models.ErrInferenceUnavailable, errors.Join(errs...))
}
