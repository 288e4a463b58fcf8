package inference

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shenikar/resq_dispatch/internal/models"
	"google.golang.org/genai"
)

var stagePrompts = map[Stage]string{
	StageTriage: `You are an emergency triage officer. Classify the report.
Respond with JSON: {"priority":"P1|P2|P3|P4","incident_type":"Fire|Medical|Accident|Flood|Crime|HazMat|Landslide|Earthquake|Infrastructure|Other",
"candidates":{"<type>":<score 0..1>},"risks":[string],"reasoning":string,"confidence":<0..1>}.
P1 means immediate threat to life.`,
	StageGeo: `You resolve the location of an emergency report.
Respond with JSON: {"location":{"latitude":number,"longitude":number,"address":string},"landmarks":[string]}.
Prefer the provided coordinates, use the text only to fill the address.`,
	StageVision: `You classify an emergency image reference and its classifier tag.
Respond with JSON: {"category":string,"incident_type":string,"risks":[string],"confidence":<0..1>}.`,
	StageProtocol: `You select standard operating procedures and response assets for an incident.
Respond with JSON: {"sops":[{"id":string,"title":string}],"recommended_assets":[{"type":string,"quantity":int}],"critical_instructions":string}.
Only use SOP ids from the input.`,
	StageSynthesis: `You summarize the analysis of an emergency for a human dispatcher in at most three sentences.
Respond with JSON: {"reasoning":string}.`,
}

// GeminiGateway вызывает модель Gemini и возвращает JSON ответа
type GeminiGateway struct {
	cli   *genai.Client
	model string
}

func NewGeminiGateway(ctx context.Context, apiKey, model string) (*GeminiGateway, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGateway{cli: cli, model: model}, nil
}

func (g *GeminiGateway) Name() string {
	return "gemini:" + g.model
}

func (g *GeminiGateway) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = stagePrompts[req.Stage]
	}
	in, err := json.MarshalIndent(req.Input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s input: %w", req.Stage, err)
	}
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInferenceUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", models.ErrInferenceUnavailable, g.model)
	}
	txt := resp.Candidates[0].Content.Parts[0].Text
	if !json.Valid([]byte(txt)) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON", models.ErrInferenceUnavailable, g.model)
	}
	return json.RawMessage(txt), nil
}
