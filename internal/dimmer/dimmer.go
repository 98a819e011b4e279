// Package dimmer tracks the focused container and keeps every other
// container at the unfocused opacity.
package dimmer

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/dimsway/internal/config"
	"github.com/bryanchriswhite/dimsway/internal/ipc"
	"github.com/bryanchriswhite/dimsway/internal/logger"
	"github.com/rs/zerolog"
)

// Commander is the compositor command surface the dimmer drives.
type Commander interface {
	InitTiling(opacity float64) error
	GetSeats() (int64, error)
	SubscribeWindow() error
	SetOpacity(containerID int64, opacity float64) error
	NextEvent() ([]byte, error)
}

// Transition describes one focus move.
type Transition struct {
	From      int64            `json:"from"`
	Dimmed    bool             `json:"dimmed"`
	To        ipc.WindowChange `json:"to"`
	Focused   float64          `json:"focused_opacity"`
	Unfocused float64          `json:"unfocused_opacity"`
}

// State is a point-in-time view of the dimmer.
type State struct {
	Tracking  bool            `json:"tracking"`
	FocusedID int64           `json:"focused_id"`
	Levels    config.Snapshot `json:"levels"`
}

// Dimmer is the focus-tracking state machine. It starts Uninitialized and
// moves to Tracking once a focused container id is known.
type Dimmer struct {
	cmd    Commander
	levels *config.Levels
	log    *zerolog.Logger

	mu        sync.RWMutex
	tracking  bool
	focusedID int64
	listeners []chan Transition
}

// New creates an uninitialized dimmer.
func New(cmd Commander, levels *config.Levels) *Dimmer {
	return &Dimmer{
		cmd:       cmd,
		levels:    levels,
		log:       logger.WithComponent("dimmer"),
		focusedID: -1,
		listeners: make([]chan Transition, 0),
	}
}

// Start makes tiled windows translucent, seeds the focused id from the seat
// query, and subscribes to window events. Nothing is dimmed here since no
// previous window exists yet.
func (d *Dimmer) Start() error {
	snap := d.levels.Snapshot()

	if err := d.cmd.InitTiling(snap.Unfocused); err != nil {
		d.log.Warn().Err(err).Msg("Failed to set initial tiling opacity")
	}

	if id, err := d.cmd.GetSeats(); err != nil {
		d.log.Warn().Err(err).Msg("Failed to query focused container")
	} else {
		d.mu.Lock()
		d.tracking = true
		d.focusedID = id
		d.mu.Unlock()
		d.log.Info().Int64("container_id", id).Msg("Tracking initial focus")
	}

	if err := d.cmd.SubscribeWindow(); err != nil {
		return fmt.Errorf("subscribe to window events: %w", err)
	}
	return nil
}

// Run processes events in arrival order until receiving fails. A failure
// after ctx is cancelled is a clean stop.
func (d *Dimmer) Run(ctx context.Context) error {
	for {
		raw, err := d.cmd.NextEvent()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive event: %w", err)
		}
		d.Handle(raw)
	}
}

// Handle interprets one event payload and applies it if it moves focus.
func (d *Dimmer) Handle(raw []byte) {
	result := ipc.Interpret(raw)
	switch result.Outcome {
	case ipc.Accepted:
		d.Apply(result.Event)
	case ipc.RejectedIgnoredChange:
		// close/new/title never move focus
	default:
		d.log.Debug().Stringer("reason", result.Outcome).Msg("Skipping event")
	}
}

// Apply dims the previously focused container and brightens ev's container.
func (d *Dimmer) Apply(ev ipc.WindowChange) {
	snap := d.levels.Snapshot()

	d.mu.Lock()
	from, dim := d.focusedID, d.tracking && d.focusedID >= 0
	d.tracking = true
	d.focusedID = ev.ContainerID
	d.mu.Unlock()

	if dim {
		if err := d.cmd.SetOpacity(from, snap.Unfocused); err != nil {
			d.log.Warn().Err(err).Int64("container_id", from).Msg("Failed to dim container")
		}
	}
	if err := d.cmd.SetOpacity(ev.ContainerID, snap.Focused); err != nil {
		d.log.Warn().Err(err).Int64("container_id", ev.ContainerID).Msg("Failed to brighten container")
	}

	d.log.Debug().
		Str("change", ev.Change).
		Int64("from", from).
		Int64("to", ev.ContainerID).
		Msg("Focus moved")

	d.notifyListeners(Transition{
		From:      from,
		Dimmed:    dim,
		To:        ev,
		Focused:   snap.Focused,
		Unfocused: snap.Unfocused,
	})
}

// State returns the current tracking state and levels.
func (d *Dimmer) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return State{
		Tracking:  d.tracking,
		FocusedID: d.focusedID,
		Levels:    d.levels.Snapshot(),
	}
}

// Levels returns the shared opacity levels.
func (d *Dimmer) Levels() *config.Levels {
	return d.levels
}

// Subscribe adds a listener for focus transitions
func (d *Dimmer) Subscribe() chan Transition {
	ch := make(chan Transition, 10)
	d.mu.Lock()
	d.listeners = append(d.listeners, ch)
	d.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener
func (d *Dimmer) Unsubscribe(ch chan Transition) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, listener := range d.listeners {
		if listener == ch {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// notifyListeners never blocks the event loop
func (d *Dimmer) notifyListeners(t Transition) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, listener := range d.listeners {
		select {
		case listener <- t:
		default:
			// Skip if channel is full
		}
	}
}
