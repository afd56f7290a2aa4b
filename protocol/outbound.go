package protocol

import (
	"roomsync/config"
	"roomsync/features"
	"roomsync/world"
)

// Pattern is the jam step grid, indexed [track][step].
type Pattern [config.JamTracks][config.JamSteps]bool

type PlayerInfo struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
}

// --- Generic rooms ---

type RoomJoined struct {
	Type         string `json:"type"`
	PlayerID     string `json:"playerId"`
	PlayerNumber int    `json:"playerNumber"`
	RoomID       string `json:"roomId"`
	PlayerCount  int    `json:"playerCount"`
}

type Presence struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId"`
	PlayerCount int    `json:"playerCount"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	CardID  string `json:"cardId,omitempty"`
}

func MakeRoomJoined(playerID string, number int, roomID string, count int) RoomJoined {
	return RoomJoined{
		Type:         TypeRoomJoined,
		PlayerID:     playerID,
		PlayerNumber: number,
		RoomID:       roomID,
		PlayerCount:  count,
	}
}

func MakePlayerJoined(playerID string, count int) Presence {
	return Presence{Type: TypePlayerJoined, PlayerID: playerID, PlayerCount: count}
}

func MakePlayerLeft(playerID string, count int) Presence {
	return Presence{Type: TypePlayerLeft, PlayerID: playerID, PlayerCount: count}
}

// MakeError builds the generic error reply. code is a kebab-case error code.
func MakeError(code string) Error {
	return Error{Type: TypeError, Message: code}
}

// --- Jam rooms ---

type JamRoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tempo       int    `json:"tempo"`
	IsPlaying   bool   `json:"isPlaying"`
	PlayerCount int    `json:"playerCount"`
}

type JamRoomListReply struct {
	Type  string           `json:"type"`
	Rooms []JamRoomSummary `json:"rooms"`
}

type JamRoomCreated struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId"`
	RoomID   string       `json:"roomId"`
	RoomName string       `json:"roomName"`
	Players  []PlayerInfo `json:"players"`
}

type JamRoomJoined struct {
	Type      string       `json:"type"`
	PlayerID  string       `json:"playerId"`
	RoomID    string       `json:"roomId"`
	RoomName  string       `json:"roomName"`
	Players   []PlayerInfo `json:"players"`
	Pattern   Pattern      `json:"pattern"`
	Tempo     int          `json:"tempo"`
	IsPlaying bool         `json:"isPlaying"`
}

type JamRoster struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId"`
	Players  []PlayerInfo `json:"players"`
}

func MakeJamRoomList(rooms []JamRoomSummary) JamRoomListReply {
	if rooms == nil {
		rooms = []JamRoomSummary{}
	}
	return JamRoomListReply{Type: TypeJamRoomList, Rooms: rooms}
}

func MakeJamRoomCreated(playerID, roomID, roomName string, players []PlayerInfo) JamRoomCreated {
	return JamRoomCreated{
		Type:     TypeJamRoomCreated,
		PlayerID: playerID,
		RoomID:   roomID,
		RoomName: roomName,
		Players:  players,
	}
}

func MakeJamRoomJoined(playerID, roomID, roomName string, players []PlayerInfo, pattern Pattern, tempo int, isPlaying bool) JamRoomJoined {
	return JamRoomJoined{
		Type:      TypeJamRoomJoined,
		PlayerID:  playerID,
		RoomID:    roomID,
		RoomName:  roomName,
		Players:   players,
		Pattern:   pattern,
		Tempo:     tempo,
		IsPlaying: isPlaying,
	}
}

func MakeJamPlayerJoined(playerID string, players []PlayerInfo) JamRoster {
	return JamRoster{Type: TypeJamPlayerJoined, PlayerID: playerID, Players: players}
}

func MakeJamPlayerLeft(playerID string, players []PlayerInfo) JamRoster {
	return JamRoster{Type: TypeJamPlayerLeft, PlayerID: playerID, Players: players}
}

func MakeJamError(code string) Error {
	return Error{Type: TypeJamError, Message: code}
}

// --- World building ---

type WorldCards struct {
	Type  string          `json:"type"`
	Turn  int             `json:"turn"`
	Cards []features.Card `json:"cards"`
}

type WorldState struct {
	Type string `json:"type"`
	world.State
}

type FeatureApplied struct {
	Type     string            `json:"type"`
	PlayerID string            `json:"playerId"`
	Feature  *features.Applied `json:"feature"`
}

type RuleTriggered struct {
	Type      string           `json:"type"`
	PlayerID  string           `json:"playerId"`
	Mutations []world.Mutation `json:"mutations"`
}

func MakeWorldCards(turn int, cards []features.Card) WorldCards {
	if cards == nil {
		cards = []features.Card{}
	}
	return WorldCards{Type: TypeWorldCards, Turn: turn, Cards: cards}
}

func MakeWorldState(s world.State) WorldState {
	return WorldState{Type: TypeWorldState, State: s}
}

func MakeFeatureApplied(playerID string, applied *features.Applied) FeatureApplied {
	return FeatureApplied{Type: TypeWorldFeatureApplied, PlayerID: playerID, Feature: applied}
}

func MakeRuleTriggered(playerID string, mutations []world.Mutation) RuleTriggered {
	return RuleTriggered{Type: TypeWorldRuleTriggered, PlayerID: playerID, Mutations: mutations}
}

func MakeWorldError(code, cardID string) Error {
	return Error{Type: TypeWorldError, Message: code, CardID: cardID}
}
