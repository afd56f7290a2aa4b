package world

import "strconv"

type Trigger string

const TriggerAudio Trigger = "audio"

type Condition string

const (
	// ConditionClap fires on a transient: the signal peak.
	ConditionClap Condition = "clap"
	// ConditionLoud fires on sustained loudness: the signal volume.
	ConditionLoud Condition = "loud"
)

type EffectType string

const (
	EffectChangeColor EffectType = "change_color"
	EffectSpawn       EffectType = "spawn"
)

// Effect is what a rule does when it fires.
//
// A change_color effect targets EntityID. Catalog templates cannot know
// entity ids in advance, so they may set SpawnIndex instead: the index into
// the same feature's spawn list, resolved when the rule is instantiated.
type Effect struct {
	Type       EffectType    `json:"type" yaml:"type"`
	EntityID   string        `json:"entityId,omitempty" yaml:"entityId,omitempty"`
	SpawnIndex *int          `json:"spawnIndex,omitempty" yaml:"spawnIndex,omitempty"`
	Colors     []string      `json:"colors,omitempty" yaml:"colors,omitempty"`
	Spawn      *EntityConfig `json:"spawn,omitempty" yaml:"spawn,omitempty"`
}

type Rule struct {
	Trigger   Trigger   `json:"trigger" yaml:"trigger"`
	Condition Condition `json:"condition" yaml:"condition"`
	Effect    Effect    `json:"effect" yaml:"effect"`
}

// ActiveRule is a rule instance registered in a world.
type ActiveRule struct {
	Rule
	ID        string `json:"id"`
	FeatureID string `json:"featureId"`
	FireCount int    `json:"fireCount"`
}

// AudioSignal is one analysis frame sent by a client microphone. Volume and
// Peak are normalized to [0, 1]; Rhythm is a beat confidence the rule engine
// forwards but does not evaluate.
type AudioSignal struct {
	Volume float64 `json:"volume"`
	Peak   float64 `json:"peak"`
	Rhythm float64 `json:"rhythm"`
}

// Mutation describes a world change caused by a fired rule.
type Mutation struct {
	Action   string  `json:"action"`
	RuleID   string  `json:"ruleId"`
	PlayerID string  `json:"playerId,omitempty"`
	EntityID string  `json:"entityId,omitempty"`
	Color    string  `json:"color,omitempty"`
	Entity   *Entity `json:"entity,omitempty"`
}

var defaultPalette = []string{"#ff4d6d", "#ffd166", "#06d6a0", "#118ab2", "#8338ec"}

func (w *World) addRule(featureID string, rule Rule, spawned []string) *ActiveRule {
	w.ruleSeq++
	ar := &ActiveRule{
		Rule:      rule,
		ID:        "rule_" + strconv.Itoa(w.ruleSeq),
		FeatureID: featureID,
	}
	if idx := rule.Effect.SpawnIndex; idx != nil {
		if *idx >= 0 && *idx < len(spawned) {
			ar.Effect.EntityID = spawned[*idx]
		}
		ar.Effect.SpawnIndex = nil
	}
	w.rules = append(w.rules, ar)
	return ar
}

// AddRule registers a single rule outside of a feature application.
func (w *World) AddRule(rule Rule) ActiveRule {
	return *w.addRule("", rule, nil)
}

func (w *World) matches(c Condition, s AudioSignal) bool {
	switch c {
	case ConditionClap:
		return s.Peak > w.opts.ClapPeakThreshold
	case ConditionLoud:
		return s.Volume > w.opts.LoudVolumeThreshold
	}
	return false
}

// ProcessAudioSignal runs every audio rule whose condition matches the signal
// and returns the resulting mutations, or nil when nothing fired.
func (w *World) ProcessAudioSignal(playerID string, s AudioSignal) []Mutation {
	var mutations []Mutation

	for _, r := range w.rules {
		if r.Trigger != TriggerAudio || !w.matches(r.Condition, s) {
			continue
		}
		m, ok := w.execute(r)
		if !ok {
			continue
		}
		r.FireCount++
		m.PlayerID = playerID
		mutations = append(mutations, m)
	}

	return mutations
}

func (w *World) execute(r *ActiveRule) (Mutation, bool) {
	switch r.Effect.Type {
	case EffectChangeColor:
		palette := r.Effect.Colors
		if len(palette) == 0 {
			palette = defaultPalette
		}
		color := palette[r.FireCount%len(palette)]
		e, err := w.UpdateEntity(r.Effect.EntityID, EntityPatch{Color: &color})
		if err != nil {
			return Mutation{}, false
		}
		return Mutation{
			Action:   string(EffectChangeColor),
			RuleID:   r.ID,
			EntityID: e.ID,
			Color:    color,
			Entity:   e,
		}, true

	case EffectSpawn:
		if r.Effect.Spawn == nil {
			return Mutation{}, false
		}
		e, err := w.SpawnEntity(*r.Effect.Spawn)
		if err != nil {
			return Mutation{}, false
		}
		return Mutation{
			Action:   string(EffectSpawn),
			RuleID:   r.ID,
			EntityID: e.ID,
			Entity:   e,
		}, true
	}
	return Mutation{}, false
}
