// Package features deals feature cards from a static catalog and applies the
// chosen ones to a world.
package features

import (
	"errors"
	"fmt"

	"roomsync/world"
)

var (
	ErrUnknownFeature = errors.New("unknown-feature")
	ErrFeatureLimit   = errors.New("feature-limit-reached")
)

// WorldState is what card dealing and validation read from a world.
type WorldState interface {
	EntityCount() int
	AppliedFeatureIDs() []string
}

// World is a WorldState that features can be applied to.
type World interface {
	WorldState
	ApplyFeature(f world.Feature) []world.Result
}

type Options struct {
	MaxEntities     int
	DealSize        int
	StarterDealSize int
	// ReofferApplied lets applied templates back into the deal while their
	// maxCount allows it. Off by default: once applied, a template leaves the pool.
	ReofferApplied bool
}

// Applied summarizes a successful card application.
type Applied struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Results []world.Result `json:"results"`
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	opts       Options
	templates  []Template
	byID       map[string]int
	categories []string
}

func NewRegistry(templates []Template, opts Options) *Registry {
	r := &Registry{
		opts:      opts,
		templates: append([]Template(nil), templates...),
		byID:      make(map[string]int, len(templates)),
	}

	seenCategory := map[string]bool{}
	for i, t := range r.templates {
		r.byID[t.ID] = i
		if t.Starter || seenCategory[t.Category] {
			continue
		}
		seenCategory[t.Category] = true
		r.categories = append(r.categories, t.Category)
	}
	return r
}

func (r *Registry) Template(id string) (Template, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Template{}, false
	}
	return r.templates[i], true
}

// Cards projects the whole catalog.
func (r *Registry) Cards() []Card {
	cards := make([]Card, 0, len(r.templates))
	for _, t := range r.templates {
		cards = append(cards, t.Card())
	}
	return cards
}

// GenerateCards deals the cards offered on the given turn. An empty world is
// only ever offered starter templates. Otherwise the deal rotates through the
// categories so consecutive cards come from different buckets, and tops up
// from any remaining template when buckets run dry.
func (r *Registry) GenerateCards(ws WorldState, turn int) []Card {
	if ws.EntityCount() == 0 {
		return r.starterCards()
	}
	if turn < 0 {
		turn = 0
	}

	counts := countApplied(ws.AppliedFeatureIDs())

	var pool []Template
	buckets := map[string][]Template{}
	for _, t := range r.templates {
		if t.Starter || !r.offerable(t, counts[t.ID]) {
			continue
		}
		pool = append(pool, t)
		buckets[t.Category] = append(buckets[t.Category], t)
	}

	cards := make([]Card, 0, r.opts.DealSize)
	picked := map[string]bool{}

	if n := len(r.categories); n > 0 {
		start := turn % n
		for i := 0; i < n && len(cards) < r.opts.DealSize; i++ {
			bucket := buckets[r.categories[(start+i)%n]]
			if len(bucket) == 0 {
				continue
			}
			t := bucket[turn%len(bucket)]
			picked[t.ID] = true
			cards = append(cards, t.Card())
		}
	}

	for _, t := range pool {
		if len(cards) >= r.opts.DealSize {
			break
		}
		if picked[t.ID] {
			continue
		}
		picked[t.ID] = true
		cards = append(cards, t.Card())
	}

	return cards
}

func (r *Registry) starterCards() []Card {
	cards := make([]Card, 0, r.opts.StarterDealSize)
	for _, t := range r.templates {
		if len(cards) >= r.opts.StarterDealSize {
			break
		}
		if t.Starter {
			cards = append(cards, t.Card())
		}
	}
	return cards
}

func (r *Registry) offerable(t Template, applied int) bool {
	if applied == 0 {
		return true
	}
	if !r.opts.ReofferApplied {
		return false
	}
	return t.Constraints.MaxCount == 0 || applied < t.Constraints.MaxCount
}

// ValidateFeature checks a template against the world before anything is
// spawned: the world must have room for every entity the template spawns, and
// the template's maxCount must not be exhausted.
func (r *Registry) ValidateFeature(t Template, ws WorldState) error {
	if count, need := ws.EntityCount(), len(t.Spawn); count+need > r.opts.MaxEntities {
		return fmt.Errorf("%w: %d + %d > %d", world.ErrWorldFull, count, need, r.opts.MaxEntities)
	}
	if limit := t.Constraints.MaxCount; limit > 0 {
		if n := countApplied(ws.AppliedFeatureIDs())[t.ID]; n >= limit {
			return fmt.Errorf("%w: %s applied %d/%d", ErrFeatureLimit, t.ID, n, limit)
		}
	}
	return nil
}

// ApplyCard validates and applies the template behind cardID.
func (r *Registry) ApplyCard(cardID string, w World) (*Applied, error) {
	t, ok := r.Template(cardID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, cardID)
	}
	if err := r.ValidateFeature(t, w); err != nil {
		return nil, err
	}

	return &Applied{
		ID:      t.ID,
		Name:    t.Name,
		Results: w.ApplyFeature(t.Feature()),
	}, nil
}

func countApplied(ids []string) map[string]int {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	return counts
}
