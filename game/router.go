package game

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"roomsync/domain"
	"roomsync/features"
	"roomsync/protocol"
	"roomsync/world"
)

const defaultJamRoomName = "Untitled Jam"

// Session is one connection's membership state. It is only touched from the
// connection's read goroutine.
type Session struct {
	socket    Socket
	log       zerolog.Logger
	room      *Room
	player    *Player
	jamRoom   *Room
	jamPlayer *Player
}

func (s *Session) Room() *Room {
	return s.room
}

func (s *Session) Player() *Player {
	return s.player
}

// JamRoom is nil unless the connection has created or joined a jam room.
func (s *Session) JamRoom() *Room {
	return s.jamRoom
}

func (s *Session) send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode reply")
		return
	}
	if err := s.socket.Send(data); err != nil {
		s.log.Debug().Err(err).Msg("reply dropped")
	}
}

// Router dispatches decoded client messages to the relay, jam and world
// handlers.
type Router struct {
	registry *Registry
	catalog  *features.Registry
}

func NewRouter(registry *Registry, catalog *features.Registry) *Router {
	return &Router{registry: registry, catalog: catalog}
}

// Connect admits socket into roomID and announces it.
func (rt *Router) Connect(roomID string, socket Socket, logger zerolog.Logger) (*Session, error) {
	room, p, err := rt.registry.Admit(roomID, socket)
	if err != nil {
		logger.Warn().Err(err).Str("room", roomID).Msg("admission refused")
		return nil, err
	}

	sess := &Session{
		socket: socket,
		log:    logger.With().Str("room", room.ID()).Str("player", p.ID()).Logger(),
		room:   room,
		player: p,
	}
	sess.log.Info().Int("number", p.Number()).Msg("player joined")

	count := room.PlayerCount()
	sess.send(protocol.MakeRoomJoined(p.ID(), p.Number(), room.ID(), count))
	rt.broadcast(sess, room, protocol.MakePlayerJoined(p.ID(), count), socket)
	return sess, nil
}

// Disconnect releases every membership the session holds. Calling it twice
// is harmless.
func (rt *Router) Disconnect(sess *Session) {
	rt.leaveJam(sess)

	if sess.room == nil {
		return
	}
	room, p := sess.room, sess.player
	sess.room, sess.player = nil, nil

	rt.registry.RemovePlayer(room.ID(), p.ID())
	rt.broadcast(sess, room, protocol.MakePlayerLeft(p.ID(), room.PlayerCount()), nil)
	sess.log.Info().Msg("player left")
}

// Handle processes one inbound frame. Bad frames and unknown types are
// dropped; the connection stays up.
func (rt *Router) Handle(sess *Session, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		sess.log.Debug().Err(err).Msg("dropping malformed message")
		return
	}
	if sess.room == nil {
		return
	}

	switch m := msg.(type) {
	case protocol.Relay:
		rt.relay(sess, m)

	case protocol.JamRoomList:
		sess.send(protocol.MakeJamRoomList(rt.registry.ListJamRooms()))
	case protocol.JamCreateRoom:
		rt.createJam(sess, m)
	case protocol.JamJoinRoom:
		rt.joinJam(sess, m)
	case protocol.JamLeaveRoom:
		if sess.jamRoom == nil {
			sess.send(protocol.MakeJamError(domain.ErrNotInRoom.Error()))
			return
		}
		rt.leaveJam(sess)
	case protocol.JamPatternUpdate:
		rt.mutateJam(sess, m.RoomID, m.Fields, func(j *JamState) error {
			return j.SetStep(m.Track, m.Step, m.Value)
		})
	case protocol.JamTempoChange:
		rt.mutateJam(sess, m.RoomID, m.Fields, func(j *JamState) error {
			return j.SetTempo(m.Tempo)
		})
	case protocol.JamPlayState:
		rt.mutateJam(sess, m.RoomID, m.Fields, func(j *JamState) error {
			j.SetPlaying(m.IsPlaying)
			return nil
		})

	case protocol.WorldRequestCards:
		rt.requestCards(sess)
	case protocol.WorldSelectCard:
		rt.selectCard(sess, m)
	case protocol.WorldAudioSignal:
		rt.audioSignal(sess, m)

	case protocol.Unknown:
		sess.log.Debug().Str("type", m.Kind).Msg("unknown message type")
	default:
		sess.log.Warn().Str("type", msg.Type()).Msg("message type has no handler")
	}
}

func (rt *Router) broadcast(sess *Session, room *Room, msg any, exclude Socket) {
	if err := room.Broadcast(msg, exclude); err != nil {
		sess.log.Error().Err(err).Msg("failed to encode broadcast")
	}
}

func (rt *Router) relay(sess *Session, m protocol.Relay) {
	stamped, err := m.Fields.Stamp(sess.player.ID())
	if err != nil {
		sess.log.Error().Err(err).Str("type", m.Kind).Msg("failed to stamp relay")
		return
	}
	sess.room.BroadcastRaw(stamped, sess.socket)
}

// --- Jam rooms ---

func (rt *Router) createJam(sess *Session, m protocol.JamCreateRoom) {
	name := strings.TrimSpace(m.RoomName)
	if name == "" {
		name = defaultJamRoomName
	}

	room, p, err := rt.registry.CreateJamRoom(name, sess.socket)
	if err != nil {
		sess.log.Warn().Err(err).Msg("jam room creation failed")
		sess.send(protocol.MakeJamError(errorCode(err)))
		return
	}
	rt.leaveJam(sess)
	sess.jamRoom, sess.jamPlayer = room, p
	sess.log.Info().Str("jam", room.ID()).Msg("jam room opened")

	sess.send(protocol.MakeJamRoomCreated(p.ID(), room.ID(), name, room.Players()))
}

func (rt *Router) joinJam(sess *Session, m protocol.JamJoinRoom) {
	if sess.jamRoom != nil && sess.jamRoom.ID() == m.RoomID {
		rt.sendJamJoined(sess, sess.jamRoom, sess.jamPlayer)
		return
	}

	room, p, err := rt.registry.JoinJamRoom(m.RoomID, sess.socket)
	if err != nil {
		sess.log.Info().Err(err).Str("jam", m.RoomID).Msg("jam join refused")
		sess.send(protocol.MakeJamError(errorCode(err)))
		return
	}
	rt.leaveJam(sess)
	sess.jamRoom, sess.jamPlayer = room, p
	sess.log.Info().Str("jam", room.ID()).Msg("joined jam room")

	players := rt.sendJamJoined(sess, room, p)
	rt.broadcast(sess, room, protocol.MakeJamPlayerJoined(p.ID(), players), sess.socket)
}

// sendJamJoined queues the full jam state to the joiner. Updates applied
// after the snapshot are relayed after it.
func (rt *Router) sendJamJoined(sess *Session, room *Room, p *Player) []protocol.PlayerInfo {
	state, _ := room.JamState()
	players := room.Players()
	state.View(func(snap JamSnapshot) {
		sess.send(protocol.MakeJamRoomJoined(p.ID(), room.ID(), snap.Name, players, snap.Pattern, snap.Tempo, snap.IsPlaying))
	})
	return players
}

// leaveJam removes the session from its jam room, tells the others, then
// drops the room if it emptied.
func (rt *Router) leaveJam(sess *Session) {
	if sess.jamRoom == nil {
		return
	}
	room, p := sess.jamRoom, sess.jamPlayer
	sess.jamRoom, sess.jamPlayer = nil, nil

	rt.registry.RemovePlayer(room.ID(), p.ID())
	rt.broadcast(sess, room, protocol.MakeJamPlayerLeft(p.ID(), room.Players()), nil)
	rt.registry.CleanupJamRoom(room.ID())
	sess.log.Info().Str("jam", room.ID()).Msg("left jam room")
}

// mutateJam applies a change to the sender's jam room and relays the original
// message, stamped with the sender, to everyone else in it.
func (rt *Router) mutateJam(sess *Session, roomID string, fields protocol.Fields, apply func(*JamState) error) {
	if sess.jamRoom == nil || sess.jamRoom.ID() != roomID {
		sess.send(protocol.MakeJamError(domain.ErrNotInRoom.Error()))
		return
	}
	state, ok := sess.jamRoom.JamState()
	if !ok {
		sess.send(protocol.MakeJamError(domain.ErrWrongRoomKind.Error()))
		return
	}
	if err := apply(state); err != nil {
		sess.log.Debug().Err(err).Msg("jam update rejected")
		sess.send(protocol.MakeJamError(errorCode(err)))
		return
	}

	stamped, err := fields.Stamp(sess.jamPlayer.ID())
	if err != nil {
		sess.log.Error().Err(err).Msg("failed to stamp jam update")
		return
	}
	sess.jamRoom.BroadcastRaw(stamped, sess.socket)
}

// --- World building ---

func (rt *Router) worldSession(sess *Session, cardID string) (*WorldSession, bool) {
	ws, err := sess.room.InitWorld(rt.registry.Options().World)
	if err != nil {
		sess.send(protocol.MakeWorldError(errorCode(err), cardID))
		return nil, false
	}
	return ws, true
}

func (rt *Router) requestCards(sess *Session) {
	ws, ok := rt.worldSession(sess, "")
	if !ok {
		return
	}
	turn, cards, state := ws.Deal(rt.catalog)
	sess.send(protocol.MakeWorldCards(turn, cards))
	sess.send(protocol.MakeWorldState(state))
}

func (rt *Router) selectCard(sess *Session, m protocol.WorldSelectCard) {
	ws, ok := rt.worldSession(sess, m.CardID)
	if !ok {
		return
	}

	applied, turn, cards, err := ws.SelectCard(rt.catalog, m.CardID)
	if err != nil {
		sess.log.Info().Err(err).Str("feature", m.CardID).Msg("card rejected")
		sess.send(protocol.MakeWorldError(errorCode(err), m.CardID))
		return
	}
	sess.log.Info().Str("feature", applied.ID).Int("turn", turn).Msg("feature applied")

	rt.broadcast(sess, sess.room, protocol.MakeFeatureApplied(sess.player.ID(), applied), nil)
	rt.broadcast(sess, sess.room, protocol.MakeWorldCards(turn, cards), nil)
}

func (rt *Router) audioSignal(sess *Session, m protocol.WorldAudioSignal) {
	ws, ok := rt.worldSession(sess, "")
	if !ok {
		return
	}

	mutations := ws.ProcessAudio(sess.player.ID(), world.AudioSignal{
		Volume: m.Volume,
		Peak:   m.Peak,
		Rhythm: m.Rhythm,
	})
	if len(mutations) == 0 {
		return
	}
	rt.broadcast(sess, sess.room, protocol.MakeRuleTriggered(sess.player.ID(), mutations), nil)
}
