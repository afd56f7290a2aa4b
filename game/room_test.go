package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomsync/domain"
	"roomsync/protocol"
)

func TestRoom_AddPlayerCapacity(t *testing.T) {
	t.Parallel()
	room := NewRoom("r1", 10)

	for i := 1; i <= 10; i++ {
		p, err := room.AddPlayer(&recordingSocket{})
		require.NoError(t, err)
		assert.Equal(t, i, p.Number())
	}

	p, err := room.AddPlayer(&recordingSocket{})
	assert.Nil(t, p)
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	assert.Equal(t, 10, room.PlayerCount())
}

func TestRoom_NumbersAreNeverReused(t *testing.T) {
	t.Parallel()
	room := NewRoom("r1", 10)

	p1, _ := room.AddPlayer(&recordingSocket{})
	p2, _ := room.AddPlayer(&recordingSocket{})
	require.True(t, room.RemovePlayer(p2.ID()))

	p3, err := room.AddPlayer(&recordingSocket{})
	require.NoError(t, err)

	assert.Equal(t, 1, p1.Number())
	assert.Equal(t, 3, p3.Number())
	assert.NotEqual(t, p2.ID(), p3.ID())
}

func TestRoom_PlayerIDs(t *testing.T) {
	t.Parallel()
	fixed := time.UnixMilli(1700000000000)
	room := newRoom("r1", 10, func() time.Time { return fixed })

	p1, _ := room.AddPlayer(&recordingSocket{})
	p2, _ := room.AddPlayer(&recordingSocket{})

	assert.Equal(t, "player_1700000000000_1", p1.ID())
	assert.Equal(t, "player_1700000000000_2", p2.ID())
}

func TestRoom_RemovePlayer(t *testing.T) {
	t.Parallel()
	room := NewRoom("r1", 10)
	p, _ := room.AddPlayer(&recordingSocket{})

	assert.True(t, room.RemovePlayer(p.ID()))
	assert.False(t, room.RemovePlayer(p.ID()))
	assert.False(t, room.RemovePlayer("nobody"))
	assert.Equal(t, 0, room.PlayerCount())
}

func TestRoom_PlayersInJoinOrder(t *testing.T) {
	t.Parallel()
	room := NewRoom("r1", 10)
	p1, _ := room.AddPlayer(&recordingSocket{})
	p2, _ := room.AddPlayer(&recordingSocket{})
	p3, _ := room.AddPlayer(&recordingSocket{})
	room.RemovePlayer(p2.ID())

	assert.Equal(t, []protocol.PlayerInfo{
		{ID: p1.ID(), Number: 1},
		{ID: p3.ID(), Number: 3},
	}, room.Players())
}

func TestRoom_BroadcastExcludesSender(t *testing.T) {
	t.Parallel()
	room := NewRoom("r1", 10)

	sender := &MockSocket{}
	open := &MockSocket{}
	closed := &MockSocket{}
	sender.On("IsOpen").Return(true).Maybe()
	open.On("IsOpen").Return(true)
	open.On("Send", mock.Anything).Return(nil)
	closed.On("IsOpen").Return(false)

	for _, s := range []Socket{sender, open, closed} {
		_, err := room.AddPlayer(s)
		require.NoError(t, err)
	}

	require.NoError(t, room.Broadcast(map[string]string{"type": "ping"}, sender))

	sender.AssertNotCalled(t, "Send", mock.Anything)
	closed.AssertNotCalled(t, "Send", mock.Anything)
	open.AssertNumberOfCalls(t, "Send", 1)
	open.AssertCalled(t, "Send", []byte(`{"type":"ping"}`))
}

func TestRoom_BroadcastFailureKeepsMember(t *testing.T) {
	t.Parallel()
	room := NewRoom("r1", 10)

	failing := &MockSocket{}
	failing.On("IsOpen").Return(true)
	failing.On("Send", mock.Anything).Return(assert.AnError)
	healthy := &recordingSocket{}

	room.AddPlayer(failing)
	room.AddPlayer(healthy)

	require.NoError(t, room.Broadcast(map[string]int{"n": 1}, nil))

	assert.Equal(t, 2, room.PlayerCount())
	assert.Len(t, healthy.messages(t), 1)
	failing.AssertExpectations(t)
}

func TestRoom_SendTo(t *testing.T) {
	t.Parallel()
	room := NewRoom("r1", 10)
	target := &recordingSocket{}
	other := &recordingSocket{}
	p, _ := room.AddPlayer(target)
	room.AddPlayer(other)

	require.NoError(t, room.SendTo(p.ID(), map[string]string{"type": "hello"}))
	assert.NoError(t, room.SendTo("nobody", map[string]string{"type": "hello"}))

	target.close()
	assert.NoError(t, room.SendTo(p.ID(), map[string]string{"type": "again"}))

	assert.Len(t, target.messages(t), 1)
	assert.Empty(t, other.messages(t))
}

func TestRoom_VariantTransitions(t *testing.T) {
	t.Parallel()
	jamOpts := testOptions().Jam
	worldOpts := testOptions().World

	t.Run("generic to jam happens once", func(t *testing.T) {
		t.Parallel()
		room := NewRoom("r1", 4)
		assert.IsType(t, Generic{}, room.Variant())

		state, err := room.InitJamState("Beats", jamOpts)
		require.NoError(t, err)
		assert.Equal(t, "Beats", state.Name())

		_, err = room.InitJamState("Again", jamOpts)
		assert.ErrorIs(t, err, domain.ErrWrongRoomKind)

		got, ok := room.JamState()
		require.True(t, ok)
		assert.Same(t, state, got)
	})

	t.Run("jam room never hosts a world", func(t *testing.T) {
		t.Parallel()
		room := NewRoom("r1", 4)
		_, err := room.InitJamState("Beats", jamOpts)
		require.NoError(t, err)

		_, err = room.InitWorld(worldOpts)
		assert.ErrorIs(t, err, domain.ErrWrongRoomKind)
	})

	t.Run("world session is created once", func(t *testing.T) {
		t.Parallel()
		room := NewRoom("r1", 10)
		first, err := room.InitWorld(worldOpts)
		require.NoError(t, err)
		second, err := room.InitWorld(worldOpts)
		require.NoError(t, err)
		assert.Same(t, first, second)

		_, err = room.InitJamState("Beats", jamOpts)
		assert.ErrorIs(t, err, domain.ErrWrongRoomKind)
		_, ok := room.JamState()
		assert.False(t, ok)
	})
}
