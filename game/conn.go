package game

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"roomsync/domain"
)

var (
	ErrConnClosed    = errors.New("connection-closed")
	ErrSendQueueFull = errors.New("send-queue-full")
)

// Socket is what rooms see of a member's connection.
type Socket interface {
	Send(data []byte) error
	IsOpen() bool
}

// Conn owns one client transport. Outbound messages are queued and written by
// WritePump; inbound frames are read, rate limited and handed on by ReadPump.
type Conn struct {
	id        string
	transport Transport
	outbound  chan []byte
	done      chan struct{}
	open      atomic.Bool
	closeOnce sync.Once
	limiter   *rate.Limiter
	log       zerolog.Logger
}

func NewConn(transport Transport, limiter *rate.Limiter) *Conn {
	c := &Conn{
		id:        uuid.NewString(),
		transport: transport,
		outbound:  make(chan []byte, 256),
		done:      make(chan struct{}),
		limiter:   limiter,
	}
	c.log = log.With().Str("conn", c.id).Logger()
	c.open.Store(true)
	return c
}

func (c *Conn) ID() string {
	return c.id
}

// Logger returns the connection's logger so callers can add context.
func (c *Conn) Logger() *zerolog.Logger {
	return &c.log
}

// Send queues data without blocking. A full queue drops the message.
func (c *Conn) Send(data []byte) error {
	if !c.open.Load() {
		return ErrConnClosed
	}
	select {
	case c.outbound <- data:
		return nil
	default:
		c.log.Warn().Int("bytes", len(data)).Msg("outbound queue full, dropping message")
		return ErrSendQueueFull
	}
}

func (c *Conn) IsOpen() bool {
	return c.open.Load()
}

// Close marks the connection closed and stops the write pump. Safe to call
// more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
	})
}

// ReadPump reads until the transport fails, then closes the connection.
func (c *Conn) ReadPump(handle func(data []byte)) {
	defer c.Close()

	for {
		data, err := c.transport.Read()
		if err != nil {
			c.log.Debug().Err(err).Msg("read failed, closing")
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.log.Debug().Err(domain.ErrRateLimited).Msg("dropping message")
			continue
		}

		handle(data)
	}
}

// WritePump drains the outbound queue and keeps the peer alive with pings.
// It returns after Close, flushing what was already queued.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	c.writeLoop(ticker.C)
}

func (c *Conn) writeLoop(ticks <-chan time.Time) {
	defer c.transport.Close("")

	for {
		select {
		case data := <-c.outbound:
			if err := c.transport.Write(data); err != nil {
				c.log.Debug().Err(err).Msg("write failed, closing")
				c.Close()
				return
			}
		case <-ticks:
			if err := c.transport.Ping(); err != nil {
				c.log.Debug().Err(err).Msg("ping failed, closing")
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case data := <-c.outbound:
			if err := c.transport.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
