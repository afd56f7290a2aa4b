package game

import (
	"fmt"
	"sync"
	"time"

	"roomsync/config"
	"roomsync/domain"
	"roomsync/protocol"
)

type JamOptions struct {
	DefaultTempo int
	MinTempo     int
	MaxTempo     int
}

// JamState is the shared sequencer session of a jam room. Every write is last
// write wins per cell.
type JamState struct {
	mu        sync.Mutex
	opts      JamOptions
	name      string
	pattern   protocol.Pattern
	tempo     int
	isPlaying bool
	createdAt time.Time
}

type JamSnapshot struct {
	Name      string
	Pattern   protocol.Pattern
	Tempo     int
	IsPlaying bool
	CreatedAt time.Time
}

func NewJamState(name string, opts JamOptions, now time.Time) *JamState {
	return &JamState{
		opts:      opts,
		name:      name,
		tempo:     opts.DefaultTempo,
		createdAt: now,
	}
}

func (j *JamState) Name() string {
	return j.name
}

func (j *JamState) SetStep(track, step int, value bool) error {
	if track < 0 || track >= config.JamTracks || step < 0 || step >= config.JamSteps {
		return fmt.Errorf("%w: cell %d/%d outside %dx%d", domain.ErrInvalidPayload, track, step, config.JamTracks, config.JamSteps)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pattern[track][step] = value
	return nil
}

func (j *JamState) SetTempo(tempo int) error {
	if tempo < j.opts.MinTempo || tempo > j.opts.MaxTempo {
		return fmt.Errorf("%w: tempo %d outside [%d, %d]", domain.ErrInvalidPayload, tempo, j.opts.MinTempo, j.opts.MaxTempo)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tempo = tempo
	return nil
}

func (j *JamState) SetPlaying(playing bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.isPlaying = playing
}

func (j *JamState) Snapshot() JamSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

// View calls fn with the current state while holding off every update, so
// whatever fn queues goes out before the relay of any later change.
func (j *JamState) View(fn func(JamSnapshot)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(j.snapshotLocked())
}

func (j *JamState) snapshotLocked() JamSnapshot {
	return JamSnapshot{
		Name:      j.name,
		Pattern:   j.pattern,
		Tempo:     j.tempo,
		IsPlaying: j.isPlaying,
		CreatedAt: j.createdAt,
	}
}
