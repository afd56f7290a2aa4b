package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed   = errors.New("malformed-message")
	ErrMissingType = errors.New("missing-type")
)

// Fields is a decoded envelope kept as raw JSON so relayed messages go out
// verbatim.
type Fields map[string]json.RawMessage

// Message is the closed set of inbound messages. Decode returns one of the
// types in this file; anything else is Unknown.
type Message interface {
	Type() string
	isMessage()
}

// Relay is a pass-through message of one of the relay types.
type Relay struct {
	Kind   string
	Fields Fields
}

type JamRoomList struct{}

type JamCreateRoom struct {
	RoomName string `json:"roomName"`
}

type JamJoinRoom struct {
	RoomID string `json:"roomId"`
}

type JamLeaveRoom struct {
	RoomID string `json:"roomId"`
}

type JamPatternUpdate struct {
	RoomID string
	Track  int
	Step   int
	Value  bool
	Fields Fields
}

type JamTempoChange struct {
	RoomID string
	Tempo  int
	Fields Fields
}

type JamPlayState struct {
	RoomID    string
	IsPlaying bool
	Fields    Fields
}

type WorldRequestCards struct{}

type WorldSelectCard struct {
	CardID string `json:"cardId"`
}

type WorldAudioSignal struct {
	Volume float64 `json:"volume"`
	Peak   float64 `json:"peak"`
	Rhythm float64 `json:"rhythm"`
}

// Unknown is any well-formed message whose type the server does not handle.
type Unknown struct {
	Kind string
}

func (m Relay) Type() string { return m.Kind }
func (JamRoomList) Type() string { return TypeJamRoomList }
func (JamCreateRoom) Type() string { return TypeJamCreateRoom }
func (JamJoinRoom) Type() string { return TypeJamJoinRoom }
func (JamLeaveRoom) Type() string { return TypeJamLeaveRoom }
func (JamPatternUpdate) Type() string { return TypeJamPatternUpdate }
func (JamTempoChange) Type() string { return TypeJamTempoChange }
func (JamPlayState) Type() string { return TypeJamPlayState }
func (WorldRequestCards) Type() string { return TypeWorldRequestCards }
func (WorldSelectCard) Type() string { return TypeWorldSelectCard }
func (WorldAudioSignal) Type() string { return TypeWorldAudioSignal }
func (m Unknown) Type() string { return m.Kind }
func (Relay) isMessage() {}
func (JamRoomList) isMessage() {}
func (JamCreateRoom) isMessage() {}
func (JamJoinRoom) isMessage() {}
func (JamLeaveRoom) isMessage() {}
func (JamPatternUpdate) isMessage() {}
func (JamTempoChange) isMessage() {}
func (JamPlayState) isMessage() {}
func (WorldRequestCards) isMessage() {}
func (WorldSelectCard) isMessage() {}
func (WorldAudioSignal) isMessage() {}
func (Unknown) isMessage() {}

// Decode parses one inbound frame.
func Decode(data []byte) (Message, error) {
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	raw, ok := fields["type"]
	if !ok {
		return nil, ErrMissingType
	}
	var typ string
	if err := json.Unmarshal(raw, &typ); err != nil || typ == "" {
		return nil, ErrMissingType
	}

	if IsRelay(typ) {
		return Relay{Kind: typ, Fields: fields}, nil
	}

	switch typ {
	case TypeJamRoomList:
		return JamRoomList{}, nil
	case TypeJamCreateRoom:
		return decodeInto[JamCreateRoom](data)
	case TypeJamJoinRoom:
		return decodeInto[JamJoinRoom](data)
	case TypeJamLeaveRoom:
		return decodeInto[JamLeaveRoom](data)
	case TypeJamPatternUpdate:
		return decodePatternUpdate(data, fields)
	case TypeJamTempoChange:
		return decodeTempoChange(data, fields)
	case TypeJamPlayState:
		return decodePlayState(data, fields)
	case TypeWorldRequestCards:
		return WorldRequestCards{}, nil
	case TypeWorldSelectCard:
		return decodeInto[WorldSelectCard](data)
	case TypeWorldAudioSignal:
		return decodeInto[WorldAudioSignal](data)
	}

	return Unknown{Kind: typ}, nil
}

func decodeInto[T Message](data []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return m, nil
}

func decodePatternUpdate(data []byte, fields Fields) (Message, error) {
	var p struct {
		RoomID string `json:"roomId"`
		Track  *int   `json:"track"`
		Step   *int   `json:"step"`
		Value  *bool  `json:"value"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if p.Track == nil || p.Step == nil || p.Value == nil {
		return nil, fmt.Errorf("%w: pattern_update needs track, step and value", ErrMalformed)
	}
	return JamPatternUpdate{RoomID: p.RoomID, Track: *p.Track, Step: *p.Step, Value: *p.Value, Fields: fields}, nil
}

func decodeTempoChange(data []byte, fields Fields) (Message, error) {
	var p struct {
		RoomID string `json:"roomId"`
		Tempo  *int   `json:"tempo"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if p.Tempo == nil {
		return nil, fmt.Errorf("%w: tempo_change needs tempo", ErrMalformed)
	}
	return JamTempoChange{RoomID: p.RoomID, Tempo: *p.Tempo, Fields: fields}, nil
}

func decodePlayState(data []byte, fields Fields) (Message, error) {
	var p struct {
		RoomID    string `json:"roomId"`
		IsPlaying *bool  `json:"isPlaying"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if p.IsPlaying == nil {
		return nil, fmt.Errorf("%w: play_state needs isPlaying", ErrMalformed)
	}
	return JamPlayState{RoomID: p.RoomID, IsPlaying: *p.IsPlaying, Fields: fields}, nil
}

// Stamp returns the fields re-encoded with playerId set to the sender.
func (f Fields) Stamp(playerID string) (json.RawMessage, error) {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	id, err := json.Marshal(playerID)
	if err != nil {
		return nil, err
	}
	out["playerId"] = id
	return json.Marshal(out)
}
