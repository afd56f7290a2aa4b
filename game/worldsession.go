package game

import (
	"sync"

	"roomsync/features"
	"roomsync/world"
)

// WorldSession is a world-building room's world and its turn counter. The
// turn advances once per applied card.
type WorldSession struct {
	mu    sync.Mutex
	world *world.World
	turn  int
}

func NewWorldSession(opts world.Options) *WorldSession {
	return &WorldSession{world: world.New(opts)}
}

// Deal returns the cards for the current turn and the world as it stands.
func (s *WorldSession) Deal(catalog *features.Registry) (int, []features.Card, world.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn, catalog.GenerateCards(s.world, s.turn), s.world.State()
}

// SelectCard applies a card and deals the next turn.
func (s *WorldSession) SelectCard(catalog *features.Registry, cardID string) (*features.Applied, int, []features.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := catalog.ApplyCard(cardID, s.world)
	if err != nil {
		return nil, s.turn, nil, err
	}
	s.turn++
	return applied, s.turn, catalog.GenerateCards(s.world, s.turn), nil
}

func (s *WorldSession) ProcessAudio(playerID string, signal world.AudioSignal) []world.Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.ProcessAudioSignal(playerID, signal)
}

func (s *WorldSession) State() world.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.State()
}
