// Package client is a reconnecting websocket session for roomsync clients.
//
// An Agent owns one socket at a time. When the socket drops it redials with
// exponential backoff and replays every registered intent message so the
// server rebuilds the session's room memberships.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"roomsync/protocol"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 10 * time.Second
)

var (
	ErrNotConnected = errors.New("not-connected")
	ErrGaveUp       = errors.New("reconnect-attempts-exhausted")
)

type State int32

const (
	Connecting State = iota
	Connected
	Reconnecting
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Disconnected:
		return "disconnected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Options struct {
	// URL is the full websocket endpoint, query included.
	URL    string
	Dialer *websocket.Dialer

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnMessage and OnStateChange run on the agent's goroutine.
	OnMessage     func(data []byte)
	OnStateChange func(State)

	Logger *zerolog.Logger
}

// Replies that carry this connection's own player id.
var selfTypes = map[string]bool{
	protocol.TypeRoomJoined:     true,
	protocol.TypeJamRoomCreated: true,
	protocol.TypeJamRoomJoined:  true,
}

type Agent struct {
	opts Options
	log  zerolog.Logger

	// self holds the player ids the server assigned on the current socket.
	// Only the Run goroutine touches it.
	self map[string]bool

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	intents map[string][]byte
	order   []string
	attempt int
}

func New(opts Options) *Agent {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Agent{
		opts:    opts,
		log:     logger.With().Str("component", "client").Str("url", opts.URL).Logger(),
		state:   Connecting,
		intents: map[string][]byte{},
	}
}

// Backoff is the wait before reconnect attempt n, counting from zero:
// base doubled n times, never more than max.
func Backoff(n int, base, max time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= 32 {
		return max
	}
	d := base << n
	if d <= 0 || d > max {
		return max
	}
	return d
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	changed := a.state != s
	a.state = s
	a.mu.Unlock()

	if changed {
		a.log.Debug().Stringer("state", s).Msg("state changed")
		if a.opts.OnStateChange != nil {
			a.opts.OnStateChange(s)
		}
	}
}

// Run connects and keeps the session alive until ctx is cancelled or the
// reconnect budget is spent. It always leaves the agent Disconnected.
func (a *Agent) Run(ctx context.Context) error {
	defer a.setState(Disconnected)

	for {
		conn, _, err := a.opts.Dialer.DialContext(ctx, a.opts.URL, nil)
		if err == nil {
			err = a.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warn().Err(err).Msg("connection lost")

		if err := a.wait(ctx); err != nil {
			return err
		}
	}
}

func (a *Agent) wait(ctx context.Context) error {
	a.mu.Lock()
	n := a.attempt
	a.attempt++
	a.mu.Unlock()

	if n >= a.opts.MaxAttempts {
		a.log.Error().Int("attempts", n).Msg("giving up on reconnect")
		return ErrGaveUp
	}
	a.setState(Reconnecting)

	delay := Backoff(n, a.opts.BaseDelay, a.opts.MaxDelay)
	a.log.Info().Int("attempt", n+1).Dur("delay", delay).Msg("reconnecting")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// serve attaches conn, replays intents and reads until the socket fails.
func (a *Agent) serve(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := a.attach(conn); err != nil {
		a.detach(conn)
		return err
	}
	a.setState(Connected)
	a.log.Info().Msg("connected")
	defer a.detach(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if a.accept(data) && a.opts.OnMessage != nil {
			a.opts.OnMessage(data)
		}
	}
}

// accept records ids from the server's own replies and drops frames echoing
// this client's own updates. The reconnect budget is restored only once the
// server has admitted the connection.
func (a *Agent) accept(data []byte) bool {
	var env struct {
		Type     string `json:"type"`
		PlayerID string `json:"playerId"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return true
	}

	if env.Type == protocol.TypeRoomJoined {
		a.mu.Lock()
		a.attempt = 0
		a.mu.Unlock()
	}
	if selfTypes[env.Type] {
		if env.PlayerID != "" {
			a.self[env.PlayerID] = true
		}
		return true
	}
	if env.PlayerID != "" && a.self[env.PlayerID] {
		a.log.Debug().Str("type", env.Type).Msg("dropping own echo")
		return false
	}
	return true
}

func (a *Agent) attach(conn *websocket.Conn) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conn = conn
	a.self = map[string]bool{}
	for _, key := range a.order {
		if err := conn.WriteMessage(websocket.TextMessage, a.intents[key]); err != nil {
			return fmt.Errorf("replay %s: %w", key, err)
		}
	}
	return nil
}

func (a *Agent) detach(conn *websocket.Conn) {
	a.mu.Lock()
	if a.conn == conn {
		a.conn = nil
	}
	a.mu.Unlock()
	conn.Close()
}

// Send writes msg as JSON on the current socket. Messages are not queued
// while disconnected.
func (a *Agent) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeLocked(data)
}

// SetIntent remembers msg under key, replacing any earlier intent with the
// same key, and sends it now if connected. Intents are replayed in the order
// their keys were first set.
func (a *Agent) SetIntent(key string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.intents[key]; !ok {
		a.order = append(a.order, key)
	}
	a.intents[key] = data

	if a.conn == nil {
		return nil
	}
	return a.writeLocked(data)
}

func (a *Agent) ClearIntent(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.intents[key]; !ok {
		return
	}
	delete(a.intents, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *Agent) writeLocked(data []byte) error {
	if a.conn == nil {
		return ErrNotConnected
	}
	return a.conn.WriteMessage(websocket.TextMessage, data)
}
