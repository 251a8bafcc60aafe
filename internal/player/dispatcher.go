package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/shared"
)

// CommandKind enumerates the user intents the dispatcher accepts.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdPlay
	CmdPause
	CmdNext
	CmdPrevious
	CmdSeek
	CmdVolume
	CmdTransfer
	CmdPlayTrack
	CmdPlayContext
)

func (k CommandKind) String() string {
	switch k {
	case CmdPlay:
		return "play"
	case CmdPause:
		return "pause"
	case CmdNext:
		return "next"
	case CmdPrevious:
		return "previous"
	case CmdSeek:
		return "seek"
	case CmdVolume:
		return "volume"
	case CmdTransfer:
		return "transfer"
	case CmdPlayTrack:
		return "play track"
	case CmdPlayContext:
		return "play in context"
	default:
		return "none"
	}
}

// Intent is a typed user action, as delivered by the UI's keybindings.
type Intent struct {
	Kind          CommandKind
	PositionMS    int    // CmdSeek
	VolumePercent int    // CmdVolume
	DeviceID      string // CmdTransfer
	DeviceName    string // CmdTransfer
	TrackURI      string // CmdPlayTrack
	ContextURI    string // CmdPlayContext
	Offset        int    // CmdPlayContext
}

// PendingCommand tracks a dispatched command through its reconciliation
// window: it is destroyed when a polled snapshot satisfies the expected
// effect, or when the deadline elapses and the optimistic guess is reverted.
type PendingCommand struct {
	Kind     CommandKind
	IssuedAt time.Time
	Deadline time.Time
	Effect   func(*Snapshot) bool
}

// CommandGateway is the slice of the API gateway the dispatcher issues
// playback commands through.
type CommandGateway interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMS int) error
	SetVolume(ctx context.Context, percent int) error
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	PlayURI(ctx context.Context, trackURI string) error
	PlayContext(ctx context.Context, contextURI string, position int) error
}

// seekTolerance bounds how far a polled position may sit from a seek target
// and still count as that seek having applied (playback advances between the
// seek landing and the poll observing it).
const (
	seekToleranceBehind = 2 * time.Second
	seekToleranceAhead  = 10 * time.Second
)

// Dispatcher turns user intents into optimistic projections plus gateway
// calls, then reconciles against the tracker's next snapshots.
//
// At most one command is pending at a time; a newer intent replaces the
// previous pending command's claim on the display.
type Dispatcher struct {
	gw        CommandGateway
	bus       *Bus
	logger    *log.Logger
	deadline  time.Duration
	debounce  time.Duration
	now       func() time.Time
	suspended atomic.Bool

	mu            sync.Mutex
	pending       *PendingCommand
	pendingGen    uint64
	deadlineTimer *time.Timer
	seekDeb       *debouncer
	volumeDeb     *debouncer
}

// DispatcherConfig tunes reconciliation and debouncing. Zero values mean defaults.
type DispatcherConfig struct {
	ReconcileDeadline time.Duration
	Debounce          time.Duration
}

// NewDispatcher creates a command dispatcher publishing to bus.
func NewDispatcher(gw CommandGateway, bus *Bus, logger *log.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.ReconcileDeadline <= 0 {
		cfg.ReconcileDeadline = 5 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 300 * time.Millisecond
	}

	d := &Dispatcher{
		gw:       gw,
		bus:      bus,
		logger:   logger,
		deadline: cfg.ReconcileDeadline,
		debounce: cfg.Debounce,
		now:      time.Now,
	}
	d.seekDeb = newDebouncer(cfg.Debounce)
	d.volumeDeb = newDebouncer(cfg.Debounce)
	return d
}

// Suspend drops all further intents until [Dispatcher.Resume]; used while the
// engine waits for re-authorization.
func (d *Dispatcher) Suspend() { d.suspended.Store(true) }

// Resume re-enables command dispatch.
func (d *Dispatcher) Resume() { d.suspended.Store(false) }

// Close cancels outstanding debounce and deadline timers.
func (d *Dispatcher) Close() {
	d.seekDeb.stop()
	d.volumeDeb.stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deadlineTimer != nil {
		d.deadlineTimer.Stop()
		d.deadlineTimer = nil
	}
	d.pending = nil
}

// Dispatch accepts a user intent: it publishes the optimistic projection
// immediately (so the UI feels responsive), then issues the gateway call
// without blocking the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) {
	vm := d.bus.State()
	if d.suspended.Load() || vm.Connectivity == Reauthorize {
		// Authorization is gone; every command would just re-fail the refresh.
		d.bus.notify(NoticeWarning, "re-authorization required", d.now())
		return
	}

	if vm.TransferLock && intent.Kind != CmdTransfer {
		// Playback controls stay blocked until the transfer resolves.
		return
	}

	current := vm.Display.Snapshot

	switch intent.Kind {
	case CmdTransfer:
		// No safe local projection exists for a device transfer.
		d.bus.setTransferLock(true)
		go d.issue(ctx, intent, d.transferEffect(intent))
		return

	case CmdSeek:
		d.publishProjection(intent, current)
		d.seekDeb.trigger(intent, func(last Intent) {
			d.issue(ctx, last, d.seekEffect(last))
		})
		return

	case CmdVolume:
		d.publishProjection(intent, current)
		d.volumeDeb.trigger(intent, func(last Intent) {
			d.issue(ctx, last, d.volumeEffect(last))
		})
		return
	}

	effect := d.effectFor(intent, current)
	d.publishProjection(intent, current)
	go d.issue(ctx, intent, effect)
}

// publishProjection applies the intent's expected effect to the currently
// displayed snapshot and publishes the result as the optimistic display state.
func (d *Dispatcher) publishProjection(intent Intent, current *Snapshot) {
	proj := project(intent, current)
	if proj == nil {
		// Nothing sensible to project (no known playback yet); the next poll
		// will carry the real outcome.
		return
	}
	d.bus.setOptimistic(proj, intent.Kind)
}

// issue performs the gateway call and, on success (or an ambiguous outcome),
// opens the reconciliation window.
func (d *Dispatcher) issue(ctx context.Context, intent Intent, effect func(*Snapshot) bool) {
	err := d.call(ctx, intent)
	switch {
	case err == nil:
		d.register(intent.Kind, effect)

	case errors.Is(err, shared.ErrAmbiguous):
		// The command may have applied. Keep the optimistic projection and
		// let the next polls decide rather than re-issuing.
		d.logger.Warn("command outcome unknown, awaiting reconciliation", "command", intent.Kind)
		d.register(intent.Kind, effect)

	default:
		d.logger.Error("command failed", "command", intent.Kind, "error", err)
		if intent.Kind == CmdTransfer {
			d.bus.setTransferLock(false)
		}
		d.bus.collapse(&Notice{
			Kind: NoticeWarning,
			Text: fmt.Sprintf("%s failed", intent.Kind),
			At:   d.now(),
		})
	}
}

func (d *Dispatcher) call(ctx context.Context, intent Intent) error {
	switch intent.Kind {
	case CmdPlay:
		return d.gw.Play(ctx)
	case CmdPause:
		return d.gw.Pause(ctx)
	case CmdNext:
		return d.gw.Next(ctx)
	case CmdPrevious:
		return d.gw.Previous(ctx)
	case CmdSeek:
		return d.gw.Seek(ctx, intent.PositionMS)
	case CmdVolume:
		return d.gw.SetVolume(ctx, intent.VolumePercent)
	case CmdTransfer:
		return d.gw.TransferPlayback(ctx, intent.DeviceID, true)
	case CmdPlayTrack:
		return d.gw.PlayURI(ctx, intent.TrackURI)
	case CmdPlayContext:
		return d.gw.PlayContext(ctx, intent.ContextURI, intent.Offset)
	default:
		return fmt.Errorf("%w: unknown command", shared.ErrInvalidInput)
	}
}

// register installs the pending command and arms its deadline, replacing any
// prior pending command (a newer intent supersedes the older claim).
func (d *Dispatcher) register(kind CommandKind, effect func(*Snapshot) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	issued := d.now()
	d.pending = &PendingCommand{
		Kind:     kind,
		IssuedAt: issued,
		Deadline: issued.Add(d.deadline),
		Effect:   effect,
	}
	d.pendingGen++
	gen := d.pendingGen

	if d.deadlineTimer != nil {
		d.deadlineTimer.Stop()
	}
	// The generation ties the timer to this registration: a stale timer that
	// already fired but lost the race to Stop must not revert a newer command.
	d.deadlineTimer = time.AfterFunc(d.deadline, func() { d.expire(gen) })
}

// Observe reconciles a freshly applied authoritative snapshot against the
// pending command. The tracker calls this after every applied poll.
func (d *Dispatcher) Observe(snap *Snapshot) {
	d.mu.Lock()
	pending := d.pending
	if pending == nil || !pending.Effect(snap) {
		d.mu.Unlock()
		return
	}

	// Optimistic projection and authoritative state now agree.
	d.pending = nil
	if d.deadlineTimer != nil {
		d.deadlineTimer.Stop()
		d.deadlineTimer = nil
	}
	d.mu.Unlock()

	if pending.Kind == CmdTransfer {
		d.bus.setTransferLock(false)
	}
	d.bus.collapse(nil)
}

// expire fires when the reconciliation deadline elapses unsatisfied: the
// optimistic guess is discarded and authoritative truth re-published.
func (d *Dispatcher) expire(gen uint64) {
	d.mu.Lock()
	pending := d.pending
	if pending == nil || gen != d.pendingGen {
		// A stale timer for an already superseded command.
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.deadlineTimer = nil
	d.mu.Unlock()

	d.logger.Warn("command effect never observed, reverting",
		"command", pending.Kind, "error", shared.ErrReconcileTimeout)
	if pending.Kind == CmdTransfer {
		d.bus.setTransferLock(false)
	}
	d.bus.collapse(&Notice{
		Kind: NoticeWarning,
		Text: fmt.Sprintf("%s may not have applied", pending.Kind),
		At:   d.now(),
	})
}

// Pending returns the currently outstanding command, if any.
func (d *Dispatcher) Pending() *PendingCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// project builds the optimistic snapshot for an intent, or nil when no safe
// local projection exists.
func project(intent Intent, current *Snapshot) *Snapshot {
	if current == nil {
		return nil
	}

	switch intent.Kind {
	case CmdPlay:
		return current.with(func(s *Snapshot) { s.IsPlaying = true })
	case CmdPause:
		return current.with(func(s *Snapshot) {
			pos, _ := current.Progress(time.Now())
			s.IsPlaying = false
			s.PositionMS = pos
		})
	case CmdSeek:
		return current.with(func(s *Snapshot) {
			s.PositionMS = intent.PositionMS
			s.CapturedAt = time.Now()
		})
	case CmdVolume:
		return current.with(func(s *Snapshot) { s.VolumePercent = intent.VolumePercent })
	case CmdNext, CmdPrevious:
		return current.with(func(s *Snapshot) {
			s.PositionMS = 0
			s.CapturedAt = time.Now()
		})
	default:
		// Track/context starts and transfers have no trustworthy projection.
		return nil
	}
}

// effectFor builds the expected-effect predicate evaluated against later polls.
func (d *Dispatcher) effectFor(intent Intent, current *Snapshot) func(*Snapshot) bool {
	switch intent.Kind {
	case CmdPlay:
		return func(s *Snapshot) bool { return s != nil && s.IsPlaying }
	case CmdPause:
		return func(s *Snapshot) bool { return s != nil && !s.IsPlaying }
	case CmdNext, CmdPrevious:
		prevTrack := ""
		prevPos := 0
		if current != nil {
			prevTrack = current.TrackID
			prevPos = current.PositionMS
		}
		return func(s *Snapshot) bool {
			if s == nil {
				return false
			}
			// A skip within a single-track queue keeps the same ID but
			// restarts the position.
			return s.TrackID != prevTrack || s.PositionMS < prevPos
		}
	case CmdPlayTrack:
		uri := intent.TrackURI
		return func(s *Snapshot) bool { return s != nil && s.IsPlaying && s.TrackURI == uri }
	case CmdPlayContext:
		return func(s *Snapshot) bool { return s != nil && s.IsPlaying }
	case CmdSeek:
		return d.seekEffect(intent)
	case CmdVolume:
		return d.volumeEffect(intent)
	default:
		return func(*Snapshot) bool { return true }
	}
}

func (d *Dispatcher) seekEffect(intent Intent) func(*Snapshot) bool {
	target := intent.PositionMS
	return func(s *Snapshot) bool {
		if s == nil {
			return false
		}
		diff := time.Duration(s.PositionMS-target) * time.Millisecond
		return diff >= -seekToleranceBehind && diff <= seekToleranceAhead
	}
}

func (d *Dispatcher) volumeEffect(intent Intent) func(*Snapshot) bool {
	target := intent.VolumePercent
	return func(s *Snapshot) bool { return s != nil && s.VolumePercent == target }
}

func (d *Dispatcher) transferEffect(intent Intent) func(*Snapshot) bool {
	device := intent.DeviceID
	return func(s *Snapshot) bool { return s != nil && s.DeviceID == device }
}

// debouncer coalesces rapid repeated intents into a single trailing call.
type debouncer struct {
	window time.Duration

	mu    sync.Mutex
	timer *time.Timer
	last  Intent
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

// trigger records the intent and (re)arms the trailing timer; when the window
// closes without another trigger, fire runs with the last intent recorded.
func (db *debouncer) trigger(intent Intent, fire func(Intent)) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.last = intent
	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.window, func() {
		db.mu.Lock()
		last := db.last
		db.timer = nil
		db.mu.Unlock()
		fire(last)
	})
}

func (db *debouncer) stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}
