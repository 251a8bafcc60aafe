package player

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/shared"
)

// Gateway is the full API surface the engine needs: polling plus commands.
type Gateway interface {
	PlaybackGateway
	CommandGateway
}

// EngineConfig bundles the tracker and dispatcher tuning.
type EngineConfig struct {
	Tracker    TrackerConfig
	Dispatcher DispatcherConfig
}

// Engine assembles the bus, tracker, and dispatcher into one unit with a
// shared lifecycle: the tracker feeds the dispatcher's reconciliation, and an
// authorization loss suspends both until [Engine.Resume].
type Engine struct {
	Bus        *Bus
	Tracker    *Tracker
	Dispatcher *Dispatcher
}

// NewEngine wires a complete playback engine over the given gateway.
func NewEngine(gw Gateway, logger *log.Logger, cfg EngineConfig) *Engine {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	bus := NewBus()
	tracker := NewTracker(gw, bus, shared.WithLogger(logger, "component", "tracker"), cfg.Tracker)
	dispatcher := NewDispatcher(gw, bus, shared.WithLogger(logger, "component", "dispatcher"), cfg.Dispatcher)

	tracker.AddObserver(dispatcher.Observe)

	e := &Engine{
		Bus:        bus,
		Tracker:    tracker,
		Dispatcher: dispatcher,
	}
	return e
}

// Run drives the polling loop until ctx is canceled, then releases the
// dispatcher's timers. Command dispatch runs concurrently with polling;
// publication stays serialized inside the bus.
func (e *Engine) Run(ctx context.Context) error {
	defer e.Dispatcher.Close()
	return e.Tracker.Run(ctx)
}

// Dispatch forwards a user intent to the dispatcher.
func (e *Engine) Dispatch(ctx context.Context, intent Intent) {
	e.Dispatcher.Dispatch(ctx, intent)
}

// Suspend halts polling and command dispatch (re-authentication required).
func (e *Engine) Suspend() {
	e.Tracker.Suspend()
	e.Dispatcher.Suspend()
}

// Resume restarts the engine after a fresh authorization.
func (e *Engine) Resume() {
	e.Dispatcher.Resume()
	e.Tracker.Resume()
}
