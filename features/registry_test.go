package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomsync/world"
)

type MockWorld struct {
	mock.Mock
}

func (m *MockWorld) EntityCount() int {
	return m.Called().Int(0)
}

func (m *MockWorld) AppliedFeatureIDs() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockWorld) ApplyFeature(f world.Feature) []world.Result {
	return m.Called(f).Get(0).([]world.Result)
}

func testOptions() Options {
	return Options{MaxEntities: 50, DealSize: 3, StarterDealSize: 4}
}

func newTestWorld() *world.World {
	return world.New(world.Options{MaxEntities: 50, ClapPeakThreshold: 0.8, LoudVolumeThreshold: 0.6})
}

func testTemplates() []Template {
	return []Template{
		{ID: "grass", Name: "Grass", Category: "ground", Starter: true, Spawn: []world.EntityConfig{{Type: world.TypeGround}}},
		{ID: "sand", Name: "Sand", Category: "ground", Starter: true, Spawn: []world.EntityConfig{{Type: world.TypeGround}}},
		{ID: "oak", Name: "Oak", Category: "nature", Spawn: []world.EntityConfig{{Type: world.TypeTree}}},
		{ID: "pine", Name: "Pine", Category: "nature", Spawn: []world.EntityConfig{{Type: world.TypeTree}}},
		{ID: "house", Name: "House", Category: "building", Spawn: []world.EntityConfig{{Type: world.TypeBuilding}}},
		{ID: "well", Name: "Well", Category: "decoration", Constraints: Constraints{MaxCount: 1}, Spawn: []world.EntityConfig{{Type: world.TypeDecoration}}},
	}
}

func TestDefaultCatalogParses(t *testing.T) {
	templates, err := DefaultCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, templates)

	starters := 0
	for _, tpl := range templates {
		if tpl.Starter {
			starters++
			for _, s := range tpl.Spawn {
				assert.Contains(t, []world.EntityType{world.TypeGround, world.TypeWater}, s.Type, tpl.ID)
			}
		}
	}
	assert.GreaterOrEqual(t, starters, 2)
}

func TestParseCatalog_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"not yaml", "features: [oops"},
		{"missing id", "features:\n  - { name: A, category: c }"},
		{"duplicate id", "features:\n  - { id: a, name: A, category: c }\n  - { id: a, name: B, category: c }"},
		{"missing category", "features:\n  - { id: a, name: A }"},
		{"negative max", "features:\n  - { id: a, name: A, category: c, constraints: { maxCount: -1 } }"},
		{"bad trigger", "features:\n  - id: a\n    name: A\n    category: c\n    rules:\n      - { trigger: timer, condition: clap, effect: { type: spawn, spawn: { type: effect } } }"},
		{"bad condition", "features:\n  - id: a\n    name: A\n    category: c\n    rules:\n      - { trigger: audio, condition: whisper, effect: { type: spawn, spawn: { type: effect } } }"},
		{"color without target", "features:\n  - id: a\n    name: A\n    category: c\n    rules:\n      - { trigger: audio, condition: clap, effect: { type: change_color } }"},
		{"spawn without config", "features:\n  - id: a\n    name: A\n    category: c\n    rules:\n      - { trigger: audio, condition: loud, effect: { type: spawn } }"},
		{"unknown effect", "features:\n  - id: a\n    name: A\n    category: c\n    rules:\n      - { trigger: audio, condition: loud, effect: { type: explode } }"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tc.yaml))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestParseCatalog_Vectors(t *testing.T) {
	templates, err := ParseCatalog([]byte(`
features:
  - id: a
    name: A
    category: c
    spawn:
      - { type: tree, position: [1, 2, 3] }
`))
	require.NoError(t, err)
	require.Len(t, templates, 1)
	require.NotNil(t, templates[0].Spawn[0].Position)
	assert.Equal(t, world.Vec3{1, 2, 3}, *templates[0].Spawn[0].Position)
}

func TestGenerateCards_EmptyWorldOffersStarters(t *testing.T) {
	templates, err := DefaultCatalog()
	require.NoError(t, err)
	r := NewRegistry(templates, testOptions())

	cards := r.GenerateCards(newTestWorld(), 0)

	require.NotEmpty(t, cards)
	assert.LessOrEqual(t, len(cards), 4)
	seen := map[string]bool{}
	for _, c := range cards {
		tpl, ok := r.Template(c.ID)
		require.True(t, ok)
		assert.True(t, tpl.Starter, c.ID)
		assert.False(t, seen[c.ID], "duplicate card %s", c.ID)
		seen[c.ID] = true
	}
}

func TestGenerateCards_CategoryDiversity(t *testing.T) {
	r := NewRegistry(testTemplates(), testOptions())
	w := newTestWorld()
	_, err := r.ApplyCard("grass", w)
	require.NoError(t, err)

	cards := r.GenerateCards(w, 0)

	require.Len(t, cards, 3)
	categories := map[string]bool{}
	for _, c := range cards {
		tpl, _ := r.Template(c.ID)
		assert.False(t, tpl.Starter)
		categories[c.Category] = true
	}
	assert.Len(t, categories, 3)
}

func TestGenerateCards_RotatesWithTurn(t *testing.T) {
	r := NewRegistry(testTemplates(), testOptions())
	w := newTestWorld()
	_, err := r.ApplyCard("grass", w)
	require.NoError(t, err)

	first := r.GenerateCards(w, 0)
	second := r.GenerateCards(w, 1)

	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.Equal(t, "nature", first[0].Category)
	assert.Equal(t, "building", second[0].Category)
}

func TestGenerateCards_ExcludesApplied(t *testing.T) {
	r := NewRegistry(testTemplates(), Options{MaxEntities: 50, DealSize: 10, StarterDealSize: 4})
	w := newTestWorld()
	for _, id := range []string{"grass", "oak", "house"} {
		_, err := r.ApplyCard(id, w)
		require.NoError(t, err)
	}

	cards := r.GenerateCards(w, 0)

	ids := []string{}
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"pine", "well"}, ids)
}

func TestGenerateCards_FallbackFillsFromRemaining(t *testing.T) {
	templates := []Template{
		{ID: "grass", Name: "Grass", Category: "ground", Starter: true, Spawn: []world.EntityConfig{{}}},
		{ID: "a1", Name: "A1", Category: "a"},
		{ID: "a2", Name: "A2", Category: "a"},
		{ID: "a3", Name: "A3", Category: "a"},
	}
	r := NewRegistry(templates, testOptions())
	w := newTestWorld()
	_, err := r.ApplyCard("grass", w)
	require.NoError(t, err)

	cards := r.GenerateCards(w, 0)

	require.Len(t, cards, 3)
	ids := map[string]bool{}
	for _, c := range cards {
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestGenerateCards_ReofferApplied(t *testing.T) {
	opts := Options{MaxEntities: 50, DealSize: 10, StarterDealSize: 4, ReofferApplied: true}
	r := NewRegistry(testTemplates(), opts)
	w := newTestWorld()
	for _, id := range []string{"grass", "oak", "well"} {
		_, err := r.ApplyCard(id, w)
		require.NoError(t, err)
	}

	ids := []string{}
	for _, c := range r.GenerateCards(w, 0) {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "oak")
	assert.NotContains(t, ids, "well", "maxCount reached")
}

func TestApplyCard_MaxCountIsEnforced(t *testing.T) {
	r := NewRegistry(testTemplates(), testOptions())
	w := newTestWorld()

	first, err := r.ApplyCard("well", w)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "well", first.ID)
	assert.Equal(t, "Well", first.Name)
	require.Len(t, first.Results, 1)
	assert.Equal(t, world.ActionSpawn, first.Results[0].Action)
	count := w.EntityCount()

	second, err := r.ApplyCard("well", w)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrFeatureLimit)
	assert.Equal(t, count, w.EntityCount())
}

func TestApplyCard_UnknownID(t *testing.T) {
	r := NewRegistry(testTemplates(), testOptions())
	mw := &MockWorld{}

	applied, err := r.ApplyCard("dragon", mw)

	assert.Nil(t, applied)
	assert.ErrorIs(t, err, ErrUnknownFeature)
	mw.AssertNotCalled(t, "ApplyFeature", mock.Anything)
}

func TestApplyCard_ValidationRunsBeforeMutation(t *testing.T) {
	r := NewRegistry(testTemplates(), testOptions())
	mw := &MockWorld{}
	mw.On("EntityCount").Return(50)
	mw.On("AppliedFeatureIDs").Return([]string{})

	applied, err := r.ApplyCard("oak", mw)

	assert.Nil(t, applied)
	assert.ErrorIs(t, err, world.ErrWorldFull)
	mw.AssertNotCalled(t, "ApplyFeature", mock.Anything)
}

func TestValidateFeature(t *testing.T) {
	r := NewRegistry(testTemplates(), Options{MaxEntities: 3, DealSize: 3, StarterDealSize: 4})
	big := Template{ID: "big", Name: "Big", Category: "x", Spawn: make([]world.EntityConfig, 2)}

	testCases := []struct {
		name    string
		count   int
		applied []string
		tpl     Template
		wantErr error
	}{
		{"fits exactly", 1, nil, big, nil},
		{"one too many", 2, nil, big, world.ErrWorldFull},
		{"limit not reached", 0, []string{"oak"}, testTemplates()[5], nil},
		{"limit reached", 0, []string{"well"}, testTemplates()[5], ErrFeatureLimit},
		{"unlimited repeats", 0, []string{"oak", "oak", "oak"}, testTemplates()[2], nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mw := &MockWorld{}
			mw.On("EntityCount").Return(tc.count)
			mw.On("AppliedFeatureIDs").Return(append([]string{}, tc.applied...)).Maybe()

			err := r.ValidateFeature(tc.tpl, mw)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestCards(t *testing.T) {
	r := NewRegistry(testTemplates(), testOptions())
	cards := r.Cards()
	require.Len(t, cards, len(testTemplates()))
	assert.Equal(t, Card{ID: "grass", Name: "Grass", Category: "ground"}, cards[0])
}
