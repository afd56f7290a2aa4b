// Package protocol defines the JSON message envelope exchanged over the room
// websocket. Every message carries a "type"; all other fields depend on it.
//
// Message types live in one flat namespace. The jam dialect is prefixed with
// "beatlab:" and the world-building dialect with "world:" so neither collides
// with the generic relay vocabulary.
package protocol

// Generic room presence.
const (
	TypeRoomJoined   = "room_joined"
	TypePlayerJoined = "player_joined"
	TypePlayerLeft   = "player_left"
	TypeError        = "error"
)

// Pass-through relay. The server stamps playerId and fans these out.
const (
	TypeCursorMove   = "cursor_move"
	TypeCursorDown   = "cursor_down"
	TypeCursorUp     = "cursor_up"
	TypeWindowOpen   = "window_open"
	TypeWindowClose  = "window_close"
	TypeWindowMove   = "window_move"
	TypeWindowResize = "window_resize"
	TypeWindowFocus  = "window_focus"
	TypeFileCreate   = "file_create"
	TypeFileUpdate   = "file_update"
	TypeFileDelete   = "file_delete"
)

// Jam (step sequencer) dialect.
const (
	TypeJamRoomList      = "beatlab:room_list"
	TypeJamCreateRoom    = "beatlab:create_room"
	TypeJamRoomCreated   = "beatlab:room_created"
	TypeJamJoinRoom      = "beatlab:join_room"
	TypeJamRoomJoined    = "beatlab:room_joined"
	TypeJamPlayerJoined  = "beatlab:player_joined"
	TypeJamLeaveRoom     = "beatlab:leave_room"
	TypeJamPlayerLeft    = "beatlab:player_left"
	TypeJamPatternUpdate = "beatlab:pattern_update"
	TypeJamTempoChange   = "beatlab:tempo_change"
	TypeJamPlayState     = "beatlab:play_state"
	TypeJamError         = "beatlab:error"
)

// World-building dialect.
const (
	TypeWorldRequestCards   = "world:request_cards"
	TypeWorldCards          = "world:cards"
	TypeWorldState          = "world:state"
	TypeWorldSelectCard     = "world:select_card"
	TypeWorldFeatureApplied = "world:feature_applied"
	TypeWorldAudioSignal    = "world:audio_signal"
	TypeWorldRuleTriggered  = "world:rule_triggered"
	TypeWorldError          = "world:error"
)

var relayTypes = map[string]bool{
	TypeCursorMove:   true,
	TypeCursorDown:   true,
	TypeCursorUp:     true,
	TypeWindowOpen:   true,
	TypeWindowClose:  true,
	TypeWindowMove:   true,
	TypeWindowResize: true,
	TypeWindowFocus:  true,
	TypeFileCreate:   true,
	TypeFileUpdate:   true,
	TypeFileDelete:   true,
}

// IsRelay reports whether messages of type t are pure fan-out.
func IsRelay(t string) bool {
	return relayTypes[t]
}
