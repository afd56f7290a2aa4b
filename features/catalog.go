package features

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"roomsync/world"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogFile is the on-disk layout of a feature catalog.
type CatalogFile struct {
	Features []Template `json:"features" yaml:"features"`
}

var ErrInvalidCatalog = errors.New("invalid-catalog")

// DefaultCatalog parses the catalog shipped with the binary.
func DefaultCatalog() ([]Template, error) {
	return ParseCatalog(defaultCatalog)
}

func ParseCatalog(data []byte) ([]Template, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := validateCatalog(file.Features); err != nil {
		return nil, err
	}
	return file.Features, nil
}

func validateCatalog(templates []Template) error {
	seen := make(map[string]bool, len(templates))

	for i, t := range templates {
		if t.ID == "" {
			return fmt.Errorf("%w: feature #%d has no id", ErrInvalidCatalog, i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, t.ID)
		}
		seen[t.ID] = true

		if t.Name == "" || t.Category == "" {
			return fmt.Errorf("%w: %q needs a name and a category", ErrInvalidCatalog, t.ID)
		}
		if t.Constraints.MaxCount < 0 {
			return fmt.Errorf("%w: %q has a negative maxCount", ErrInvalidCatalog, t.ID)
		}

		for _, r := range t.Rules {
			if err := validateRule(t, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRule(t Template, r world.Rule) error {
	if r.Trigger != world.TriggerAudio {
		return fmt.Errorf("%w: %q rule has unknown trigger %q", ErrInvalidCatalog, t.ID, r.Trigger)
	}
	if r.Condition != world.ConditionClap && r.Condition != world.ConditionLoud {
		return fmt.Errorf("%w: %q rule has unknown condition %q", ErrInvalidCatalog, t.ID, r.Condition)
	}

	switch r.Effect.Type {
	case world.EffectChangeColor:
		idx := r.Effect.SpawnIndex
		if r.Effect.EntityID == "" && (idx == nil || *idx < 0 || *idx >= len(t.Spawn)) {
			return fmt.Errorf("%w: %q change_color needs a valid spawnIndex", ErrInvalidCatalog, t.ID)
		}
	case world.EffectSpawn:
		if r.Effect.Spawn == nil {
			return fmt.Errorf("%w: %q spawn effect has no spawn config", ErrInvalidCatalog, t.ID)
		}
	default:
		return fmt.Errorf("%w: %q rule has unknown effect %q", ErrInvalidCatalog, t.ID, r.Effect.Type)
	}
	return nil
}
