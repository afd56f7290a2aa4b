package game

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomsync/features"
	"roomsync/world"
)

// --- Socket ---

type MockSocket struct {
	mock.Mock
}

func (m *MockSocket) Send(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockSocket) IsOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

// --- Transport ---

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTransport) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockTransport) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransport) Close(code string) {
	m.Called(code)
}

// recordingSocket keeps every frame it is sent.
type recordingSocket struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *recordingSocket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrConnClosed
	}
	s.frames = append(s.frames, append([]byte(nil), data...))
	return nil
}

func (s *recordingSocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *recordingSocket) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSocket) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

func (s *recordingSocket) messages(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.frames))
	for _, f := range s.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (s *recordingSocket) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range s.messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// last returns the most recent message of type typ and fails if there is none.
func (s *recordingSocket) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	msgs := s.ofType(t, typ)
	require.NotEmpty(t, msgs, "no %s message received", typ)
	return msgs[len(msgs)-1]
}

// --- fixtures ---

func testOptions() Options {
	return Options{
		MaxPlayers:    10,
		MaxJamPlayers: 4,
		Jam:           JamOptions{DefaultTempo: 120, MinTempo: 40, MaxTempo: 300},
		World:         world.Options{MaxEntities: 50, ClapPeakThreshold: 0.8, LoudVolumeThreshold: 0.6},
	}
}

func testCatalog() *features.Registry {
	first := 0
	templates := []features.Template{
		{
			ID: "grass", Name: "Grass", Category: "ground", Starter: true,
			Constraints: features.Constraints{MaxCount: 1},
			Spawn:       []world.EntityConfig{{Type: world.TypeGround}},
		},
		{
			ID: "sand", Name: "Sand", Category: "ground", Starter: true,
			Constraints: features.Constraints{MaxCount: 1},
			Spawn:       []world.EntityConfig{{Type: world.TypeGround}},
		},
		{
			ID: "flowers", Name: "Flowers", Category: "nature",
			Spawn: []world.EntityConfig{{Type: world.TypeDecoration}},
			Rules: []world.Rule{{
				Trigger:   world.TriggerAudio,
				Condition: world.ConditionClap,
				Effect:    world.Effect{Type: world.EffectChangeColor, SpawnIndex: &first, Colors: []string{"#ff0000", "#00ff00"}},
			}},
		},
		{
			ID: "cottage", Name: "Cottage", Category: "building",
			Spawn: []world.EntityConfig{{Type: world.TypeBuilding}},
		},
	}
	return features.NewRegistry(templates, features.Options{MaxEntities: 50, DealSize: 3, StarterDealSize: 4})
}
