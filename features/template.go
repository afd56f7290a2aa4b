package features

import "roomsync/world"

type Constraints struct {
	// MaxCount caps how many times the feature may be applied to one world.
	// Zero means unlimited.
	MaxCount int `json:"maxCount,omitempty" yaml:"maxCount,omitempty"`
}

// Template is a static catalog entry. Clients only ever reference templates
// by id; spawn instructions and rules never come from the wire.
type Template struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	Category    string               `json:"category" yaml:"category"`
	Icon        string               `json:"icon" yaml:"icon"`
	Spawn       []world.EntityConfig `json:"spawn,omitempty" yaml:"spawn,omitempty"`
	Rules       []world.Rule         `json:"rules,omitempty" yaml:"rules,omitempty"`
	Constraints Constraints          `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Starter     bool                 `json:"starter,omitempty" yaml:"starter,omitempty"`
}

// Card is the client-facing projection of a template.
type Card struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Icon        string `json:"icon"`
}

func (t Template) Card() Card {
	return Card{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Icon:        t.Icon,
	}
}

func (t Template) Feature() world.Feature {
	return world.Feature{
		ID:    t.ID,
		Spawn: t.Spawn,
		Rules: t.Rules,
	}
}
