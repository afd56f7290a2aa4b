package world

// Vec3 is serialized as a [x, y, z] array.
type Vec3 [3]float64

type EntityType string

const (
	TypeGround     EntityType = "ground"
	TypeBuilding   EntityType = "building"
	TypeTree       EntityType = "tree"
	TypeDecoration EntityType = "decoration"
	TypeNPC        EntityType = "npc"
	TypeEffect     EntityType = "effect"
	TypeWater      EntityType = "water"
)

const defaultColor = "#ffffff"

// Entity is one placed object. Mesh and Animation are render hints that the
// core never interprets.
type Entity struct {
	ID        string         `json:"id"`
	Type      EntityType     `json:"type"`
	Position  Vec3           `json:"position"`
	Rotation  Vec3           `json:"rotation"`
	Scale     Vec3           `json:"scale"`
	Color     string         `json:"color"`
	Mesh      string         `json:"mesh"`
	Animation map[string]any `json:"animation,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EntityConfig describes an entity to spawn. Unset fields get defaults.
type EntityConfig struct {
	Type      EntityType     `json:"type" yaml:"type"`
	Position  *Vec3          `json:"position,omitempty" yaml:"position,omitempty"`
	Rotation  *Vec3          `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Scale     *Vec3          `json:"scale,omitempty" yaml:"scale,omitempty"`
	Color     string         `json:"color,omitempty" yaml:"color,omitempty"`
	Mesh      string         `json:"mesh,omitempty" yaml:"mesh,omitempty"`
	Animation map[string]any `json:"animation,omitempty" yaml:"animation,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// EntityPatch is a shallow partial update; nil fields are left untouched.
type EntityPatch struct {
	Position  *Vec3          `json:"position,omitempty"`
	Rotation  *Vec3          `json:"rotation,omitempty"`
	Scale     *Vec3          `json:"scale,omitempty"`
	Color     *string        `json:"color,omitempty"`
	Mesh      *string        `json:"mesh,omitempty"`
	Animation map[string]any `json:"animation,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newEntity(id string, cfg EntityConfig) *Entity {
	e := &Entity{
		ID:        id,
		Type:      cfg.Type,
		Scale:     Vec3{1, 1, 1},
		Color:     cfg.Color,
		Mesh:      cfg.Mesh,
		Animation: cfg.Animation,
		Metadata:  cfg.Metadata,
	}
	if e.Type == "" {
		e.Type = TypeDecoration
	}
	if cfg.Position != nil {
		e.Position = *cfg.Position
	}
	if cfg.Rotation != nil {
		e.Rotation = *cfg.Rotation
	}
	if cfg.Scale != nil {
		e.Scale = *cfg.Scale
	}
	if e.Color == "" {
		e.Color = defaultColor
	}
	if e.Mesh == "" {
		e.Mesh = string(e.Type)
	}
	return e
}

func (e *Entity) apply(p EntityPatch) {
	if p.Position != nil {
		e.Position = *p.Position
	}
	if p.Rotation != nil {
		e.Rotation = *p.Rotation
	}
	if p.Scale != nil {
		e.Scale = *p.Scale
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Mesh != nil {
		e.Mesh = *p.Mesh
	}
	if p.Animation != nil {
		e.Animation = p.Animation
	}
	if p.Metadata != nil {
		e.Metadata = p.Metadata
	}
}
