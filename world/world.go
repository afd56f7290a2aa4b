// Package world holds the entity model and audio rule engine of one
// world-building session.
//
// A World is not safe for concurrent use; the room that owns it serializes
// every call under its own lock.
package world

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrWorldFull      = errors.New("world-full")
	ErrEntityNotFound = errors.New("entity-not-found")
)

type Options struct {
	MaxEntities         int
	ClapPeakThreshold   float64
	LoudVolumeThreshold float64
}

// Feature is the part of a catalog template the world needs to apply it.
type Feature struct {
	ID    string
	Spawn []EntityConfig
	Rules []Rule
}

const (
	ActionSpawn   = "spawn"
	ActionAddRule = "add_rule"
)

// Result describes one step of a feature application, relayed to clients.
type Result struct {
	Action string      `json:"action"`
	Entity *Entity     `json:"entity,omitempty"`
	Rule   *ActiveRule `json:"rule,omitempty"`
}

// State is a read-only snapshot of a world.
type State struct {
	EntityCount       int          `json:"entityCount"`
	Entities          []Entity     `json:"entities"`
	AppliedFeatureIDs []string     `json:"appliedFeatureIds"`
	ActiveRules       []ActiveRule `json:"activeRules"`
}

type World struct {
	opts Options

	entities  map[string]*Entity
	order     []string
	entitySeq int
	ruleSeq   int
	applied   []string
	rules     []*ActiveRule
}

func New(opts Options) *World {
	return &World{
		opts:     opts,
		entities: make(map[string]*Entity),
	}
}

func (w *World) EntityCount() int {
	return len(w.entities)
}

func (w *World) MaxEntities() int {
	return w.opts.MaxEntities
}

// SpawnEntity places a new entity. It fails with ErrWorldFull once the
// entity cap is reached.
func (w *World) SpawnEntity(cfg EntityConfig) (*Entity, error) {
	if len(w.entities) >= w.opts.MaxEntities {
		return nil, fmt.Errorf("%w: %d/%d", ErrWorldFull, len(w.entities), w.opts.MaxEntities)
	}
	w.entitySeq++
	e := newEntity("entity_"+strconv.Itoa(w.entitySeq), cfg)
	w.entities[e.ID] = e
	w.order = append(w.order, e.ID)

	out := *e
	return &out, nil
}

// RemoveEntity reports whether an entity was removed.
func (w *World) RemoveEntity(id string) bool {
	if _, ok := w.entities[id]; !ok {
		return false
	}
	delete(w.entities, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

func (w *World) UpdateEntity(id string, patch EntityPatch) (*Entity, error) {
	e, ok := w.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	e.apply(patch)

	out := *e
	return &out, nil
}

func (w *World) Entity(id string) (Entity, bool) {
	e, ok := w.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Entities returns copies in spawn order.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, *w.entities[id])
	}
	return out
}

func (w *World) AppliedFeatureIDs() []string {
	out := make([]string, len(w.applied))
	copy(out, w.applied)
	return out
}

func (w *World) ActiveRules() []ActiveRule {
	out := make([]ActiveRule, 0, len(w.rules))
	for _, r := range w.rules {
		out = append(out, *r)
	}
	return out
}

func (w *World) State() State {
	return State{
		EntityCount:       w.EntityCount(),
		Entities:          w.Entities(),
		AppliedFeatureIDs: w.AppliedFeatureIDs(),
		ActiveRules:       w.ActiveRules(),
	}
}

// ApplyFeature records the feature id, spawns its entities and registers its
// rules. It performs no validation and no rollback: callers validate first.
func (w *World) ApplyFeature(f Feature) []Result {
	w.applied = append(w.applied, f.ID)

	results := make([]Result, 0, len(f.Spawn)+len(f.Rules))
	spawned := make([]string, len(f.Spawn))

	for i, cfg := range f.Spawn {
		e, err := w.SpawnEntity(cfg)
		if err != nil {
			continue
		}
		spawned[i] = e.ID
		results = append(results, Result{Action: ActionSpawn, Entity: e})
	}

	for _, rule := range f.Rules {
		ar := w.addRule(f.ID, rule, spawned)
		out := *ar
		results = append(results, Result{Action: ActionAddRule, Rule: &out})
	}

	return results
}
