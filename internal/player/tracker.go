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
	"github.com/strumcli/strum/internal/spotify"
)

// PlaybackGateway is the slice of the API gateway the tracker polls through.
type PlaybackGateway interface {
	CurrentPlayback(ctx context.Context) (*spotify.PlaybackContext, error)
}

// DeviceChange is emitted when a poll reveals playback moved to another
// device without a local transfer command.
type DeviceChange struct {
	FromID, FromName string
	ToID, ToName     string
	At               time.Time
}

// TrackerConfig tunes the polling cadence. Zero values mean defaults.
type TrackerConfig struct {
	Interval     time.Duration // while a playback-relevant screen is focused
	SlowInterval time.Duration // otherwise
	StaleAfter   time.Duration // no successful poll for this long marks the view stale
}

// Tracker polls the remote playback state on a fixed cadence and keeps the
// bus's authoritative snapshot current.
//
// Polls are strictly serialized: the polling loop is a single goroutine and
// never starts a poll before the previous one finishes, so snapshots are
// applied in wall-clock order.
type Tracker struct {
	gw     PlaybackGateway
	bus    *Bus
	logger *log.Logger
	cfg    TrackerConfig
	now    func() time.Time

	focused   atomic.Bool
	suspended atomic.Bool
	kick      chan struct{}

	mu           sync.Mutex
	lastSuccess  time.Time
	lastDeviceID string
	seenDevice   bool
	failures     int
	observers    []func(*Snapshot)
	deviceEvents chan DeviceChange
}

// NewTracker creates a tracker publishing to bus.
func NewTracker(gw PlaybackGateway, bus *Bus, logger *log.Logger, cfg TrackerConfig) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = 1500 * time.Millisecond
	}
	if cfg.SlowInterval <= 0 {
		cfg.SlowInterval = 5 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Second
	}

	t := &Tracker{
		gw:           gw,
		bus:          bus,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
		kick:         make(chan struct{}, 1),
		deviceEvents: make(chan DeviceChange, 4),
	}
	t.focused.Store(true)
	return t
}

// AddObserver registers a reconciliation hook invoked after every applied
// snapshot (the dispatcher's Observe).
func (t *Tracker) AddObserver(fn func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// DeviceChanges returns the channel carrying external device-change events.
func (t *Tracker) DeviceChanges() <-chan DeviceChange {
	return t.deviceEvents
}

// SetFocused switches between the fast and slow polling cadence depending on
// whether the UI is on a playback-relevant screen.
func (t *Tracker) SetFocused(focused bool) {
	t.focused.Store(focused)
}

// Suspend halts polling (refresh token rejected, awaiting re-authorization).
func (t *Tracker) Suspend() {
	t.suspended.Store(true)
	t.bus.setConnectivity(Reauthorize)
}

// Resume restarts polling after a fresh authorization.
func (t *Tracker) Resume() {
	t.suspended.Store(false)
	t.bus.setConnectivity(Connected)
	t.Poke()
}

// Poke requests an immediate poll outside the regular cadence, e.g. right
// after a command was confirmed applied.
func (t *Tracker) Poke() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Run drives the Idle -> Polling -> (Updated|Unchanged|Failed) -> Idle loop
// until the context is canceled. Closing the context also stops the timer;
// an in-flight HTTP call is left to complete or time out naturally.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		if !t.suspended.Load() {
			t.pollOnce(ctx)
		}

		timer := time.NewTimer(t.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-t.kick:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pollOnce performs a single serialized poll and publishes its outcome.
func (t *Tracker) pollOnce(ctx context.Context) {
	pc, err := t.gw.CurrentPlayback(ctx)
	if err != nil {
		t.onFailure(err)
		return
	}

	snap := NewSnapshot(pc, t.now())
	t.onSuccess(snap)
}

func (t *Tracker) onSuccess(snap *Snapshot) {
	t.mu.Lock()
	t.failures = 0
	t.lastSuccess = t.now()

	var change *DeviceChange
	if snap != nil {
		if t.seenDevice && snap.DeviceID != t.lastDeviceID {
			change = &DeviceChange{
				FromID: t.lastDeviceID,
				ToID:   snap.DeviceID,
				ToName: snap.DeviceName,
				At:     snap.CapturedAt,
			}
		}
		t.lastDeviceID = snap.DeviceID
		t.seenDevice = true
	}
	observers := t.observers
	t.mu.Unlock()

	if !t.bus.applySnapshot(snap) {
		// Out-of-order snapshot; drop it without reconciliation.
		return
	}

	if change != nil {
		t.logger.Info("playback moved to another device", "device", change.ToName)
		t.bus.notify(NoticeDeviceChange, fmt.Sprintf("playback moved to %s", change.ToName), change.At)
		select {
		case t.deviceEvents <- *change:
		default:
		}
	}

	for _, fn := range observers {
		fn(snap)
	}
}

func (t *Tracker) onFailure(err error) {
	if errors.Is(err, shared.ErrRefreshDenied) || errors.Is(err, shared.ErrUnauthorized) {
		t.logger.Error("authorization lost, suspending polls", "error", err)
		t.Suspend()
		return
	}

	t.mu.Lock()
	t.failures++
	failures := t.failures
	stale := !t.lastSuccess.IsZero() && t.now().Sub(t.lastSuccess) > t.cfg.StaleAfter
	if t.lastSuccess.IsZero() && failures > 1 {
		stale = true
	}
	t.mu.Unlock()

	t.logger.Warn("playback poll failed", "failures", failures, "error", err)
	if stale {
		// Keep the last-known snapshot displayed, but let the UI show a
		// reconnecting indicator.
		t.bus.setConnectivity(Reconnecting)
	}
}

// delay computes the next poll delay: the focus-dependent cadence, extended
// with bounded backoff when polls are failing (connectivity is expected to be
// transient, so polling never stops).
func (t *Tracker) delay() time.Duration {
	base := t.cfg.Interval
	if !t.focused.Load() {
		base = t.cfg.SlowInterval
	}

	t.mu.Lock()
	failures := t.failures
	t.mu.Unlock()

	if failures > 0 {
		shift := failures
		if shift > 3 {
			shift = 3
		}
		base *= time.Duration(1 << shift)
	}

	return base
}

// Stale reports whether the displayed snapshot is older than the stale threshold.
func (t *Tracker) Stale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.lastSuccess.IsZero() && t.now().Sub(t.lastSuccess) > t.cfg.StaleAfter
}
