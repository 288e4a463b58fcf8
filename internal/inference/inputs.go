package inference

import "github.com/shenikar/resq_dispatch/internal/models"

// TriageInput - вход стадии сортировки
type TriageInput struct {
	Text    string   `json:"text"`
	Context []string `json:"conversation_context,omitempty"`
	Similar []string `json:"similar_incidents,omitempty"`
}

// GeoInput - вход гео-стадии
type GeoInput struct {
	Text        string              `json:"text"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
	Landmarks   []string            `json:"nearby_landmarks,omitempty"`
}

// VisionInput - вход визуальной стадии
type VisionInput struct {
	ImageRef string `json:"image_ref,omitempty"`
	ImageTag string `json:"image_tag,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ProtocolInput - вход стадии протоколов
type ProtocolInput struct {
	Type     models.IncidentType   `json:"incident_type"`
	Priority models.Priority       `json:"priority"`
	Text     string                `json:"text"`
	SOPs     []models.SOPReference `json:"sops,omitempty"`
}

// SynthesisInput - вклады стадий для итогового обоснования
type SynthesisInput struct {
	Triage   *models.TriageOutput   `json:"triage"`
	Geo      *models.GeoOutput      `json:"geo,omitempty"`
	Vision   *models.VisionOutput   `json:"vision,omitempty"`
	Protocol *models.ProtocolOutput `json:"protocol,omitempty"`
	Priority models.Priority        `json:"priority"`
	Type     models.IncidentType    `json:"incident_type"`
}

// SynthesisOutput - ответ стадии синтеза
type SynthesisOutput struct {
	Reasoning string `json:"reasoning"`
}
