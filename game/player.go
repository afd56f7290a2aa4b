package game

import "roomsync/protocol"

// Player is one membership of a socket in a room. Its id and number never
// change while it is in the room.
type Player struct {
	id     string
	number int
	socket Socket
}

func (p *Player) ID() string {
	return p.id
}

func (p *Player) Number() int {
	return p.number
}

func (p *Player) Socket() Socket {
	return p.socket
}

func (p *Player) info() protocol.PlayerInfo {
	return protocol.PlayerInfo{ID: p.id, Number: p.number}
}
