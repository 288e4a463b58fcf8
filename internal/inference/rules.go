package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/shenikar/resq_dispatch/internal/models"
)

var typeKeywords = map[models.IncidentType][]string{
	models.TypeFire:           {"fire", "smoke", "burning", "flames", "blaze"},
	models.TypeMedical:        {"injured", "unconscious", "casualties", "bleeding", "heart attack", "collapsed", "not breathing", "wounded"},
	models.TypeAccident:       {"accident", "crash", "collision", "overturned", "hit by"},
	models.TypeFlood:          {"flood", "flooding", "submerged", "water level", "inundated"},
	models.TypeCrime:          {"robbery", "assault", "theft", "shooting", "stabbing", "gun", "burglary"},
	models.TypeHazMat:         {"chemical", "gas leak", "toxic", "hazardous", "spill", "fumes"},
	models.TypeLandslide:      {"landslide", "mudslide", "rockfall"},
	models.TypeEarthquake:     {"earthquake", "tremor", "quake", "aftershock"},
	models.TypeInfrastructure: {"bridge", "power line", "building collapse", "outage", "sinkhole"},
}

var criticalKeywords = []string{
	"multiple casualties", "casualties", "trapped", "explosion", "unconscious", "not breathing",
	"dead", "spreading", "children", "shooting", "stabbing", "building collapse",
}

var minorKeywords = []string{"minor", "no one hurt", "nobody hurt", "no injuries", "small"}

var elevatedTypes = map[models.IncidentType]bool{
	models.TypeFire:       true,
	models.TypeHazMat:     true,
	models.TypeEarthquake: true,
	models.TypeFlood:      true,
	models.TypeLandslide:  true,
}

var typeRisks = map[models.IncidentType][]string{
	models.TypeFire:           {"fire spread", "smoke inhalation"},
	models.TypeMedical:        {"deterioration of casualties"},
	models.TypeAccident:       {"secondary collisions", "fuel leak"},
	models.TypeFlood:          {"rising water", "electrocution"},
	models.TypeCrime:          {"armed suspect"},
	models.TypeHazMat:         {"toxic exposure", "contamination"},
	models.TypeLandslide:      {"further slope failure"},
	models.TypeEarthquake:     {"aftershocks", "structural collapse"},
	models.TypeInfrastructure: {"structural collapse", "service outage"},
}

var typeAssets = map[models.IncidentType][]models.Asset{
	models.TypeFire:           {{Type: "fire_engine", Quantity: 2}, {Type: "ambulance", Quantity: 1}},
	models.TypeMedical:        {{Type: "ambulance", Quantity: 1}},
	models.TypeAccident:       {{Type: "ambulance", Quantity: 1}, {Type: "police_unit", Quantity: 1}, {Type: "tow_truck", Quantity: 1}},
	models.TypeFlood:          {{Type: "rescue_boat", Quantity: 2}, {Type: "ambulance", Quantity: 1}},
	models.TypeCrime:          {{Type: "police_unit", Quantity: 2}},
	models.TypeHazMat:         {{Type: "hazmat_team", Quantity: 1}, {Type: "fire_engine", Quantity: 1}, {Type: "ambulance", Quantity: 1}},
	models.TypeLandslide:      {{Type: "search_and_rescue", Quantity: 1}, {Type: "excavator", Quantity: 1}},
	models.TypeEarthquake:     {{Type: "search_and_rescue", Quantity: 2}, {Type: "ambulance", Quantity: 2}},
	models.TypeInfrastructure: {{Type: "engineering_crew", Quantity: 1}, {Type: "police_unit", Quantity: 1}},
	models.TypeOther:          {{Type: "patrol_unit", Quantity: 1}},
}

var typeInstructions = map[models.IncidentType]string{
	models.TypeFire:       "Evacuate the building, keep people upwind, do not use elevators.",
	models.TypeMedical:    "Keep the patient still, check breathing, apply pressure to bleeding.",
	models.TypeFlood:      "Move to higher ground, avoid walking or driving through water.",
	models.TypeHazMat:     "Keep clear and upwind, do not touch spilled material.",
	models.TypeEarthquake: "Stay away from damaged structures, expect aftershocks.",
	models.TypeLandslide:  "Keep away from the slope and watch for further movement.",
}

var addressPattern = regexp.MustCompile(`\b(?:at|near|on|in)\s+([A-Z0-9][\w.'-]*(?:\s+[A-Z0-9][\w.'-]*)*)`)

// RuleGateway - детерминированный провайдер на ключевых словах.
// Используется без ключа API и как последний провайдер в цепочке.
type RuleGateway struct{}

func NewRuleGateway() *RuleGateway {
	return &RuleGateway{}
}

func (g *RuleGateway) Name() string {
	return "rules"
}

func (g *RuleGateway) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out any
	switch in := req.Input.(type) {
	case TriageInput:
		out = ruleTriage(in)
	case GeoInput:
		geo, err := ruleGeo(in)
		if err != nil {
			return nil, err
		}
		out = geo
	case VisionInput:
		out = ruleVision(in)
	case ProtocolInput:
		out = ruleProtocol(in)
	case SynthesisInput:
		out = ruleSynthesis(in)
	default:
		return nil, fmt.Errorf("%w: rules gateway cannot serve stage %s", models.ErrInferenceUnavailable, req.Stage)
	}
	return json.Marshal(out)
}

func ruleTriage(in TriageInput) models.TriageOutput {
	text := strings.ToLower(in.Text)
	candidates := make(map[string]float64)
	best, bestScore := models.TypeOther, 0
	for t, words := range typeKeywords {
		score := countMatches(text, words)
		if score == 0 {
			continue
		}
		candidates[string(t)] = float64(score)
		if score > bestScore || (score == bestScore && t.MoreConservative(best)) {
			best, bestScore = t, score
		}
	}

	priority := models.PriorityP3
	switch {
	case countMatches(text, criticalKeywords) > 0:
		priority = models.PriorityP1
	case elevatedTypes[best] || strings.Contains(text, "injured"):
		priority = models.PriorityP2
	case countMatches(text, minorKeywords) > 0:
		priority = models.PriorityP4
	}

	confidence := 0.3
	if best != models.TypeOther {
		confidence = min(0.5+0.1*float64(bestScore), 0.95)
	}

	return models.TriageOutput{
		Priority:   priority,
		Type:       best,
		Candidates: candidates,
		Risks:      typeRisks[best],
		Reasoning:  fmt.Sprintf("Classified as %s with priority %s from %d matching indicators.", best, priority, bestScore),
		Confidence: confidence,
	}
}

func ruleGeo(in GeoInput) (models.GeoOutput, error) {
	var address string
	if m := addressPattern.FindStringSubmatch(in.Text); len(m) > 1 {
		address = strings.TrimSpace(m[1])
	}
	if in.Coordinates == nil && address == "" {
		return models.GeoOutput{}, fmt.Errorf("%w: location could not be resolved", models.ErrInferenceUnavailable)
	}
	out := models.GeoOutput{
		Location:  models.Location{Address: address},
		Landmarks: in.Landmarks,
	}
	if in.Coordinates != nil {
		out.Location.Latitude = in.Coordinates.Latitude
		out.Location.Longitude = in.Coordinates.Longitude
	}
	return out, nil
}

func ruleVision(in VisionInput) models.VisionOutput {
	tag := in.ImageTag
	if tag == "" && in.ImageRef != "" {
		base := strings.ToLower(path.Base(in.ImageRef))
		tag = strings.TrimSuffix(base, path.Ext(base))
	}
	t, ok := models.VisualType(tag)
	if !ok {
		return models.VisionOutput{Category: tag, Type: models.TypeOther, Confidence: 0.2}
	}
	return models.VisionOutput{
		Category:   tag,
		Type:       t,
		Risks:      typeRisks[t],
		Confidence: 0.8,
	}
}

func ruleProtocol(in ProtocolInput) models.ProtocolOutput {
	assets := append([]models.Asset(nil), typeAssets[in.Type]...)
	if len(assets) == 0 {
		assets = append(assets, typeAssets[models.TypeOther]...)
	}
	if in.Priority == models.PriorityP1 {
		// для P1 удваиваем первую линию
		assets[0].Quantity *= 2
	}
	return models.ProtocolOutput{
		SOPs:         in.SOPs,
		Assets:       assets,
		Instructions: typeInstructions[in.Type],
	}
}

func ruleSynthesis(in SynthesisInput) SynthesisOutput {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s incident", in.Priority, in.Type)
	if in.Geo != nil && in.Geo.Location.Address != "" {
		fmt.Fprintf(&b, " at %s", in.Geo.Location.Address)
	}
	b.WriteString(".")
	if in.Triage != nil && in.Triage.Reasoning != "" {
		b.WriteString(" " + in.Triage.Reasoning)
	}
	if in.Vision != nil && in.Vision.Type != "" && in.Vision.Type != models.TypeOther {
		fmt.Fprintf(&b, " Image indicates %s.", in.Vision.Type)
	}
	if in.Protocol != nil && len(in.Protocol.Assets) > 0 {
		parts := make([]string, 0, len(in.Protocol.Assets))
		for _, a := range in.Protocol.Assets {
			parts = append(parts, fmt.Sprintf("%dx %s", a.Quantity, a.Type))
		}
		sort.Strings(parts)
		fmt.Fprintf(&b, " Recommended: %s.", strings.Join(parts, ", "))
	}
	return SynthesisOutput{Reasoning: b.String()}
}

func countMatches(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
