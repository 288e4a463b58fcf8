package models

// SafetyOutcome - итог проверок безопасности
type SafetyOutcome string

const (
	SafetyPass          SafetyOutcome = "pass"
	SafetyInputFlagged  SafetyOutcome = "input-flagged"
	SafetyOutputFlagged SafetyOutcome = "output-flagged"
)

// SOPReference - ссылка на стандартную операционную процедуру
type SOPReference struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score,omitempty"`
}

// TriageOutput - вклад стадии сортировки
type TriageOutput struct {
	Priority   Priority           `json:"priority"`
	Type       IncidentType       `json:"incident_type"`
	Candidates map[string]float64 `json:"candidates,omitempty"`
	Assets     []Asset            `json:"recommended_assets,omitempty"`
	Risks      []string           `json:"risks,omitempty"`
	Reasoning  string             `json:"reasoning"`
	Confidence float64            `json:"confidence"`
}

// GeoOutput - вклад гео-стадии
type GeoOutput struct {
	Location  Location `json:"location"`
	Landmarks []string `json:"landmarks,omitempty"`
}

// VisionOutput - вклад визуальной стадии
type VisionOutput struct {
	Category   string       `json:"category"`
	Type       IncidentType `json:"incident_type,omitempty"`
	Risks      []string     `json:"risks,omitempty"`
	Confidence float64      `json:"confidence"`
}

// ProtocolOutput - вклад стадии протоколов
type ProtocolOutput struct {
	SOPs         []SOPReference `json:"sops,omitempty"`
	Assets       []Asset        `json:"recommended_assets,omitempty"`
	Instructions string         `json:"critical_instructions,omitempty"`
}

// AnalysisResult - итог конвейера. Вклады специалистов хранятся явно и могут отсутствовать.
type AnalysisResult struct {
	Type         IncidentType    `json:"incident_type"`
	Priority     Priority        `json:"priority"`
	Reasoning    string          `json:"reasoning"`
	Assets       []Asset         `json:"recommended_assets"`
	Risks        []string        `json:"risks"`
	Location     *Location       `json:"location,omitempty"`
	SOPs         []SOPReference  `json:"sops"`
	QualityScore float64         `json:"quality_score"`
	Safety       SafetyOutcome   `json:"safety,omitempty"`
	Triage       *TriageOutput   `json:"triage,omitempty"`
	Geo          *GeoOutput      `json:"geo,omitempty"`
	Vision       *VisionOutput   `json:"vision,omitempty"`
	Protocol     *ProtocolOutput `json:"protocol,omitempty"`
	Degraded     []string        `json:"degraded_stages,omitempty"`
}

// Clone копирует срезы результата
func (a AnalysisResult) Clone() AnalysisResult {
	c := a
	c.Assets = append([]Asset(nil), a.Assets...)
	c.Risks = append([]string(nil), a.Risks...)
	c.SOPs = append([]SOPReference(nil), a.SOPs...)
	c.Degraded = append([]string(nil), a.Degraded...)
	if a.Location != nil {
		loc := *a.Location
		c.Location = &loc
	}
	return c
}

// visualTypes сопоставляет метки классификатора изображений с типами инцидентов
var visualTypes = map[string]IncidentType{
	"fire_disaster":          TypeFire,
	"urban_fire":             TypeFire,
	"wild_fire":              TypeFire,
	"water_disaster":         TypeFlood,
	"human_damage":           TypeMedical,
	"human":                  TypeMedical,
	"land_disaster":          TypeLandslide,
	"land_slide":             TypeLandslide,
	"earthquake":             TypeEarthquake,
	"damaged_infrastructure": TypeInfrastructure,
	"infrastructure":         TypeInfrastructure,
	"drought":                TypeOther,
}

// VisualType возвращает тип инцидента для метки изображения
func VisualType(tag string) (IncidentType, bool) {
	t, ok := visualTypes[tag]
	return t, ok
}

// RaisesPriority - визуально подтвержденные категории, повышающие P3/P4 до P2
func (t IncidentType) RaisesPriority() bool {
	return t == TypeFire || t == TypeMedical || t == TypeEarthquake
}
