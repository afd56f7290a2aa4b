package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"roomsync/domain"
	"roomsync/protocol"
	"roomsync/world"
)

// Variant is what a room is specialized for. A room starts Generic and may
// turn into a Jam or a WorldBuilder exactly once.
type Variant interface {
	isVariant()
}

type Generic struct{}

type Jam struct {
	State *JamState
}

type WorldBuilder struct {
	Session *WorldSession
}

func (Generic) isVariant()      {}
func (Jam) isVariant()          {}
func (WorldBuilder) isVariant() {}

type Room struct {
	mu         sync.Mutex
	id         string
	maxPlayers int
	players    map[string]*Player
	order      []string
	seq        int
	variant    Variant
	createdAt  time.Time
	now        func() time.Time
}

func NewRoom(id string, maxPlayers int) *Room {
	return newRoom(id, maxPlayers, time.Now)
}

func newRoom(id string, maxPlayers int, now func() time.Time) *Room {
	return &Room{
		id:         id,
		maxPlayers: maxPlayers,
		players:    make(map[string]*Player),
		variant:    Generic{},
		createdAt:  now(),
		now:        now,
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) MaxPlayers() int {
	return r.maxPlayers
}

// AddPlayer admits socket as a new player. Numbers come from a counter that
// only grows, so a number is never handed to a second player.
func (r *Room) AddPlayer(socket Socket) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= r.maxPlayers {
		return nil, fmt.Errorf("%w: %s has %d/%d", domain.ErrRoomFull, r.id, len(r.players), r.maxPlayers)
	}

	r.seq++
	p := &Player{
		id:     fmt.Sprintf("player_%d_%d", r.now().UnixMilli(), r.seq),
		number: r.seq,
		socket: socket,
	}
	r.players[p.id] = p
	r.order = append(r.order, p.id)
	return p, nil
}

// RemovePlayer reports whether id was a member.
func (r *Room) RemovePlayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Room) Player(id string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	return p, ok
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Players is the roster in join order.
func (r *Room) Players() []protocol.PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]protocol.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, r.players[id].info())
	}
	return roster
}

// Broadcast serializes msg once and sends it to every open member except
// exclude.
func (r *Room) Broadcast(msg any, exclude Socket) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	r.BroadcastRaw(data, exclude)
	return nil
}

// BroadcastRaw never removes members: a failed send is logged and skipped,
// removal only follows the transport's own close.
func (r *Room) BroadcastRaw(data []byte, exclude Socket) {
	for _, s := range r.sockets() {
		if s == exclude || !s.IsOpen() {
			continue
		}
		if err := s.Send(data); err != nil {
			log.Debug().Err(err).Str("room", r.id).Msg("broadcast send failed")
		}
	}
}

// SendTo is a no-op when the player is gone or its socket is closed.
func (r *Room) SendTo(playerID string, msg any) error {
	p, ok := r.Player(playerID)
	if !ok || !p.socket.IsOpen() {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.socket.Send(data)
}

func (r *Room) sockets() []Socket {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Socket, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id].socket)
	}
	return out
}

func (r *Room) Variant() Variant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.variant
}

// InitJamState turns a generic room into a jam room.
func (r *Room) InitJamState(name string, opts JamOptions) (*JamState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.variant.(Generic); !ok {
		return nil, fmt.Errorf("%w: %s is already specialized", domain.ErrWrongRoomKind, r.id)
	}
	state := NewJamState(name, opts, r.now())
	r.variant = Jam{State: state}
	return state, nil
}

// InitWorld returns the room's world session, creating it on first use.
// Jam rooms never host a world.
func (r *Room) InitWorld(opts world.Options) (*WorldSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch v := r.variant.(type) {
	case WorldBuilder:
		return v.Session, nil
	case Generic:
		s := NewWorldSession(opts)
		r.variant = WorldBuilder{Session: s}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s is a jam room", domain.ErrWrongRoomKind, r.id)
	}
}

// JamState returns the room's jam state if it is a jam room.
func (r *Room) JamState() (*JamState, bool) {
	j, ok := r.Variant().(Jam)
	if !ok {
		return nil, false
	}
	return j.State, true
}
