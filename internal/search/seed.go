package search

import (
	"context"
	"fmt"
)

// EmbedFunc строит вектор текста
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

type sopSeed struct {
	id, title string
	incident  string
}

var defaultSOPs = []sopSeed{
	{"SOP-FIRE-01", "Structure fire: initial attack and evacuation", "Fire"},
	{"SOP-FIRE-02", "Mass casualty triage at fire scene", "Fire"},
	{"SOP-MED-01", "Cardiac arrest and unconscious patient response", "Medical"},
	{"SOP-MED-02", "Multiple casualty incident triage (START)", "Medical"},
	{"SOP-ACC-01", "Road traffic collision scene safety", "Accident"},
	{"SOP-FLD-01", "Flood water rescue and evacuation", "Flood"},
	{"SOP-CRM-01", "Violent crime scene approach and cordon", "Crime"},
	{"SOP-HAZ-01", "Hazardous material release isolation zone", "HazMat"},
	{"SOP-LND-01", "Landslide search and rescue", "Landslide"},
	{"SOP-EQK-01", "Earthquake collapsed structure search", "Earthquake"},
	{"SOP-INF-01", "Damaged infrastructure hazard control", "Infrastructure"},
}

// SeedSOPs заполняет in-memory индекс базовым набором процедур
func SeedSOPs(ctx context.Context, s *MemorySearcher, embed EmbedFunc) error {
	for _, sop := range defaultSOPs {
		vec, err := embed(ctx, sop.incident+" "+sop.title)
		if err != nil {
			return fmt.Errorf("failed to embed %s: %w", sop.id, err)
		}
		s.Upsert(CollectionSOPs, Document{
			ID:     sop.id,
			Vector: vec,
			Payload: map[string]any{
				"title":         sop.title,
				"incident_type": sop.incident,
			},
		})
	}
	return nil
}
