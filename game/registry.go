package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"roomsync/domain"
	"roomsync/protocol"
	"roomsync/world"
)

type Options struct {
	MaxPlayers    int
	MaxJamPlayers int
	Jam           JamOptions
	World         world.Options
}

// Registry owns every live room. Jam rooms are also indexed on their own.
// Joining and leaving run under the registry lock so a listing never sees a
// room between its last member leaving and its removal.
//
// Lock order: registry, then room.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	rooms    map[string]*Room
	jamRooms map[string]*Room
	now      func() time.Time
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		rooms:    make(map[string]*Room),
		jamRooms: make(map[string]*Room),
		now:      time.Now,
	}
}

func (r *Registry) Options() Options {
	return r.opts
}

// GetOrCreateRoom never fails.
func (r *Registry) GetOrCreateRoom(id string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(id)
}

func (r *Registry) getOrCreateLocked(id string) *Room {
	if room, ok := r.rooms[id]; ok {
		return room
	}
	room := newRoom(id, r.opts.MaxPlayers, r.now)
	r.rooms[id] = room
	log.Info().Str("room", id).Msg("room created")
	return room
}

func (r *Registry) GetRoom(id string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Admit adds socket to the room named id, creating the room if needed. Jam
// rooms are only entered through JoinJamRoom.
func (r *Registry) Admit(id string, socket Socket) (*Room, *Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jamRooms[id]; ok {
		return nil, nil, fmt.Errorf("%w: %s is a jam room", domain.ErrWrongRoomKind, id)
	}
	room := r.getOrCreateLocked(id)
	p, err := room.AddPlayer(socket)
	if err != nil {
		return nil, nil, err
	}
	return room, p, nil
}

// CreateJamRoom allocates a jam room and admits its creator as player 1. The
// room is never visible without its creator.
func (r *Registry) CreateJamRoom(name string, creator Socket) (*Room, *Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newJamID()
	for r.rooms[id] != nil {
		id = r.newJamID()
	}

	room := newRoom(id, r.opts.MaxJamPlayers, r.now)
	if _, err := room.InitJamState(name, r.opts.Jam); err != nil {
		return nil, nil, err
	}
	p, err := room.AddPlayer(creator)
	if err != nil {
		return nil, nil, err
	}

	r.rooms[id] = room
	r.jamRooms[id] = room
	log.Info().Str("room", id).Str("name", name).Msg("jam room created")
	return room, p, nil
}

func (r *Registry) newJamID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("jam_%d_%s", r.now().UnixMilli(), suffix)
}

func (r *Registry) JoinJamRoom(id string, socket Socket) (*Room, *Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.jamRooms[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	p, err := room.AddPlayer(socket)
	if err != nil {
		return nil, nil, err
	}
	return room, p, nil
}

// ListJamRooms returns the joinable jam rooms, oldest first. Full rooms are
// left out.
func (r *Registry) ListJamRooms() []protocol.JamRoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	type entry struct {
		summary   protocol.JamRoomSummary
		createdAt time.Time
	}
	entries := make([]entry, 0, len(r.jamRooms))
	for id, room := range r.jamRooms {
		count := room.PlayerCount()
		if count >= r.opts.MaxJamPlayers {
			continue
		}
		state, ok := room.JamState()
		if !ok {
			continue
		}
		snap := state.Snapshot()
		entries = append(entries, entry{
			summary: protocol.JamRoomSummary{
				ID:          id,
				Name:        snap.Name,
				Tempo:       snap.Tempo,
				IsPlaying:   snap.IsPlaying,
				PlayerCount: count,
			},
			createdAt: snap.CreatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].createdAt.Equal(entries[j].createdAt) {
			return entries[i].summary.ID < entries[j].summary.ID
		}
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	rooms := make([]protocol.JamRoomSummary, 0, len(entries))
	for _, e := range entries {
		rooms = append(rooms, e.summary)
	}
	return rooms
}

// RemovePlayer removes a member and drops the room once it is empty. It
// returns the room so the caller can notify whoever is left.
func (r *Registry) RemovePlayer(roomID, playerID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	removed := room.RemovePlayer(playerID)
	if room.PlayerCount() == 0 {
		r.deleteLocked(roomID)
	}
	return room, removed
}

// CleanupJamRoom drops an empty jam room. It is a no-op when the room is gone
// or still occupied.
func (r *Registry) CleanupJamRoom(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.jamRooms[id]
	if !ok || room.PlayerCount() > 0 {
		return false
	}
	r.deleteLocked(id)
	return true
}

func (r *Registry) deleteLocked(id string) {
	delete(r.rooms, id)
	delete(r.jamRooms, id)
	log.Info().Str("room", id).Msg("room removed")
}
