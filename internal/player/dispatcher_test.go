package player

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/strumcli/strum/internal/shared"
)

// fakeGateway records command calls and answers with scripted errors.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string
	seeks []int
	vols  []int
	errs  map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errs: map[string]error{}}
}

func (g *fakeGateway) record(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
	return g.errs[name]
}

func (g *fakeGateway) Play(context.Context) error     { return g.record("play") }
func (g *fakeGateway) Pause(context.Context) error    { return g.record("pause") }
func (g *fakeGateway) Next(context.Context) error     { return g.record("next") }
func (g *fakeGateway) Previous(context.Context) error { return g.record("previous") }

func (g *fakeGateway) Seek(_ context.Context, positionMS int) error {
	g.mu.Lock()
	g.seeks = append(g.seeks, positionMS)
	g.mu.Unlock()
	return g.record("seek")
}

func (g *fakeGateway) SetVolume(_ context.Context, percent int) error {
	g.mu.Lock()
	g.vols = append(g.vols, percent)
	g.mu.Unlock()
	return g.record("volume")
}

func (g *fakeGateway) TransferPlayback(_ context.Context, deviceID string, play bool) error {
	return g.record("transfer")
}

func (g *fakeGateway) PlayURI(_ context.Context, trackURI string) error {
	return g.record("play uri")
}

func (g *fakeGateway) PlayContext(_ context.Context, contextURI string, position int) error {
	return g.record("play context")
}

func (g *fakeGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (g *fakeGateway) fail(name string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[name] = err
}

// waitFor polls cond until it holds or the deadline passes. Command issue and
// debounce firing happen off the dispatching goroutine.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestDispatcher(t *testing.T, gw *fakeGateway, cfg DispatcherConfig) (*Dispatcher, *Bus) {
	t.Helper()
	bus := NewBus()
	d := NewDispatcher(gw, bus, shared.NewLogger(io.Discard), cfg)
	t.Cleanup(d.Close)
	return d, bus
}

func playingSnapshot(at time.Time) *Snapshot {
	return &Snapshot{
		IsPlaying:     true,
		TrackID:       "trk-1",
		TrackName:     "Song One",
		PositionMS:    30000,
		DurationMS:    200000,
		DeviceID:      "dev-1",
		VolumePercent: 50,
		CapturedAt:    at,
	}
}

func TestDispatchOptimistic(t *testing.T) {
	t.Run("Pause Projects Immediately And Converges Silently", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})

		base := time.Now()
		bus.applySnapshot(playingSnapshot(base))

		d.Dispatch(context.Background(), Intent{Kind: CmdPause})

		vm := bus.State()
		if vm.Display.Mode != Optimistic || vm.Display.Snapshot.IsPlaying {
			t.Fatalf("expected an immediate paused projection, got %+v", vm.Display)
		}
		if vm.Display.Snapshot.TrackID != "trk-1" {
			t.Errorf("projection changed unrelated fields: %+v", vm.Display.Snapshot)
		}

		waitFor(t, func() bool { return d.Pending() != nil }, "pause was never registered as pending")

		confirmed := playingSnapshot(base.Add(time.Second))
		confirmed.IsPlaying = false
		bus.applySnapshot(confirmed)
		d.Observe(confirmed)

		vm = bus.State()
		if vm.Display.Mode != Authoritative || vm.Display.Snapshot.IsPlaying {
			t.Errorf("expected authoritative paused display, got %+v", vm.Display)
		}
		if vm.Notice != nil {
			t.Errorf("silent convergence must not raise a notice, got %+v", vm.Notice)
		}
		if d.Pending() != nil {
			t.Error("pending command should be cleared after confirmation")
		}
	})

	t.Run("Skip Resets Position In Projection", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})
		bus.applySnapshot(playingSnapshot(time.Now()))

		d.Dispatch(context.Background(), Intent{Kind: CmdNext})

		vm := bus.State()
		if vm.Display.Mode != Optimistic || vm.Display.Snapshot.PositionMS != 0 {
			t.Errorf("expected position reset in projection, got %+v", vm.Display)
		}
	})

	t.Run("No Playback Means No Projection", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})

		d.Dispatch(context.Background(), Intent{Kind: CmdPlay})

		if vm := bus.State(); vm.Display.Mode != Authoritative {
			t.Errorf("expected no optimistic display without a snapshot, got %+v", vm.Display)
		}
		waitFor(t, func() bool { return gw.count("play") == 1 }, "command was never issued")
	})
}

func TestDispatchReconciliation(t *testing.T) {
	t.Run("Unconfirmed Command Reverts At Deadline", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{ReconcileDeadline: 60 * time.Millisecond})

		base := time.Now()
		bus.applySnapshot(playingSnapshot(base))

		d.Dispatch(context.Background(), Intent{Kind: CmdNext})
		waitFor(t, func() bool { return d.Pending() != nil }, "next was never registered as pending")

		// Polls keep reporting the old track past the deadline.
		waitFor(t, func() bool {
			vm := bus.State()
			return vm.Display.Mode == Authoritative && vm.Notice != nil
		}, "display never reverted to authoritative")

		vm := bus.State()
		if vm.Display.Snapshot.TrackID != "trk-1" {
			t.Errorf("expected the old track back, got %+v", vm.Display.Snapshot)
		}
		if want := "next may not have applied"; vm.Notice.Text != want {
			t.Errorf("expected notice %q, got %q", want, vm.Notice.Text)
		}
		if d.Pending() != nil {
			t.Error("pending command should be cleared after the deadline")
		}
	})

	t.Run("Ambiguous Outcome Keeps Projection Until Polls Decide", func(t *testing.T) {
		gw := newFakeGateway()
		gw.fail("next", fmt.Errorf("%w: POST /me/player/next", shared.ErrAmbiguous))
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})

		base := time.Now()
		bus.applySnapshot(playingSnapshot(base))

		d.Dispatch(context.Background(), Intent{Kind: CmdNext})
		waitFor(t, func() bool { return d.Pending() != nil }, "ambiguous command should stay pending")

		if gw.count("next") != 1 {
			t.Errorf("ambiguous command must not be re-issued, got %d calls", gw.count("next"))
		}
		if vm := bus.State(); vm.Display.Mode != Optimistic {
			t.Errorf("projection should survive an ambiguous outcome, got %+v", vm.Display)
		}

		// A later poll shows the skip did land.
		landed := playingSnapshot(base.Add(time.Second))
		landed.TrackID = "trk-2"
		landed.PositionMS = 0
		bus.applySnapshot(landed)
		d.Observe(landed)

		vm := bus.State()
		if vm.Display.Mode != Authoritative || vm.Display.Snapshot.TrackID != "trk-2" {
			t.Errorf("expected convergence on the new track, got %+v", vm.Display)
		}
		if vm.Notice != nil {
			t.Errorf("convergence must not raise a notice, got %+v", vm.Notice)
		}
	})

	t.Run("Superseded Deadline Cannot Revert A Newer Command", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{ReconcileDeadline: time.Hour})

		base := time.Now()
		bus.applySnapshot(playingSnapshot(base))

		d.Dispatch(context.Background(), Intent{Kind: CmdNext})
		waitFor(t, func() bool { return d.Pending() != nil }, "next was never registered as pending")

		d.Dispatch(context.Background(), Intent{Kind: CmdPause})
		waitFor(t, func() bool {
			p := d.Pending()
			return p != nil && p.Kind == CmdPause
		}, "pause never superseded the pending next")

		// The first registration's timer fires after losing the race to Stop.
		d.expire(1)

		vm := bus.State()
		if vm.Display.Mode != Optimistic {
			t.Errorf("stale deadline reverted the newer command: %+v", vm.Display)
		}
		if vm.Notice != nil {
			t.Errorf("stale deadline raised a notice: %+v", vm.Notice)
		}
		if p := d.Pending(); p == nil || p.Kind != CmdPause {
			t.Errorf("stale deadline cleared the pending command: %+v", p)
		}

		// The live registration's deadline still reverts as usual.
		d.mu.Lock()
		gen := d.pendingGen
		d.mu.Unlock()
		d.expire(gen)

		vm = bus.State()
		if vm.Display.Mode != Authoritative || vm.Notice == nil {
			t.Errorf("live deadline failed to revert: %+v", vm.Display)
		}
		if d.Pending() != nil {
			t.Error("pending command should be cleared after the live deadline")
		}
	})

	t.Run("Rejected Command Reverts Immediately", func(t *testing.T) {
		gw := newFakeGateway()
		gw.fail("pause", fmt.Errorf("%w", shared.ErrNoActiveDevice))
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})

		bus.applySnapshot(playingSnapshot(time.Now()))
		d.Dispatch(context.Background(), Intent{Kind: CmdPause})

		waitFor(t, func() bool {
			vm := bus.State()
			return vm.Display.Mode == Authoritative && vm.Notice != nil
		}, "rejected command never reverted the display")

		vm := bus.State()
		if !vm.Display.Snapshot.IsPlaying {
			t.Errorf("expected authoritative playing state back, got %+v", vm.Display.Snapshot)
		}
		if want := "pause failed"; vm.Notice.Text != want {
			t.Errorf("expected notice %q, got %q", want, vm.Notice.Text)
		}
	})
}

func TestDispatchDebounce(t *testing.T) {
	t.Run("Rapid Seeks Coalesce Into One Call", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{Debounce: 40 * time.Millisecond})

		bus.applySnapshot(playingSnapshot(time.Now()))

		for i := 1; i <= 5; i++ {
			d.Dispatch(context.Background(), Intent{Kind: CmdSeek, PositionMS: 30000 + i*5000})
		}

		// Every intent updates the projection right away.
		if vm := bus.State(); vm.Display.Snapshot.PositionMS != 55000 {
			t.Errorf("expected projection at the last target, got %+v", vm.Display.Snapshot)
		}

		waitFor(t, func() bool { return gw.count("seek") == 1 }, "debounced seek never fired")
		time.Sleep(100 * time.Millisecond)

		gw.mu.Lock()
		defer gw.mu.Unlock()
		if len(gw.seeks) != 1 || gw.seeks[0] != 55000 {
			t.Errorf("expected exactly one seek to 55000, got %v", gw.seeks)
		}
	})

	t.Run("Rapid Volume Steps Coalesce", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{Debounce: 40 * time.Millisecond})

		bus.applySnapshot(playingSnapshot(time.Now()))

		for _, v := range []int{55, 60, 65} {
			d.Dispatch(context.Background(), Intent{Kind: CmdVolume, VolumePercent: v})
		}

		waitFor(t, func() bool { return gw.count("volume") == 1 }, "debounced volume never fired")
		time.Sleep(100 * time.Millisecond)

		gw.mu.Lock()
		defer gw.mu.Unlock()
		if len(gw.vols) != 1 || gw.vols[0] != 65 {
			t.Errorf("expected exactly one volume call at 65, got %v", gw.vols)
		}
	})
}

func TestDispatchTransfer(t *testing.T) {
	t.Run("Transfer Locks Controls Until Confirmed", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})

		base := time.Now()
		bus.applySnapshot(playingSnapshot(base))

		d.Dispatch(context.Background(), Intent{Kind: CmdTransfer, DeviceID: "dev-2", DeviceName: "Speaker"})

		vm := bus.State()
		if !vm.TransferLock {
			t.Fatal("expected transfer lock while the transfer is in flight")
		}
		if vm.Display.Mode != Authoritative {
			t.Errorf("transfers must not project optimistically, got %+v", vm.Display)
		}

		// Other playback intents are dropped while locked.
		d.Dispatch(context.Background(), Intent{Kind: CmdPause})
		if vm := bus.State(); vm.Display.Mode != Authoritative {
			t.Errorf("locked dispatcher accepted a playback intent: %+v", vm.Display)
		}

		waitFor(t, func() bool { return d.Pending() != nil }, "transfer was never registered as pending")

		moved := playingSnapshot(base.Add(time.Second))
		moved.DeviceID = "dev-2"
		moved.DeviceName = "Speaker"
		bus.applySnapshot(moved)
		d.Observe(moved)

		vm = bus.State()
		if vm.TransferLock {
			t.Error("expected transfer lock released after confirmation")
		}
		if vm.Display.Snapshot.DeviceID != "dev-2" {
			t.Errorf("expected display on the new device, got %+v", vm.Display.Snapshot)
		}
		if gw.count("pause") != 0 {
			t.Error("locked dispatcher must not issue playback commands")
		}
	})

	t.Run("Failed Transfer Releases The Lock", func(t *testing.T) {
		gw := newFakeGateway()
		gw.fail("transfer", fmt.Errorf("%w", shared.ErrUnavailable))
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})

		bus.applySnapshot(playingSnapshot(time.Now()))
		d.Dispatch(context.Background(), Intent{Kind: CmdTransfer, DeviceID: "dev-2"})

		waitFor(t, func() bool { return !bus.State().TransferLock }, "transfer lock never released on failure")

		if vm := bus.State(); vm.Notice == nil || vm.Notice.Text != "transfer failed" {
			t.Errorf("expected a transfer failure notice, got %+v", bus.State().Notice)
		}
	})
}

func TestDispatchSuspended(t *testing.T) {
	t.Run("Intents Are Dropped With A Warning", func(t *testing.T) {
		gw := newFakeGateway()
		d, bus := newTestDispatcher(t, gw, DispatcherConfig{})

		bus.applySnapshot(playingSnapshot(time.Now()))
		d.Suspend()
		d.Dispatch(context.Background(), Intent{Kind: CmdPause})

		vm := bus.State()
		if vm.Display.Mode != Authoritative {
			t.Errorf("suspended dispatcher projected a command: %+v", vm.Display)
		}
		if vm.Notice == nil || vm.Notice.Kind != NoticeWarning {
			t.Errorf("expected a warning notice, got %+v", vm.Notice)
		}
		if gw.count("pause") != 0 {
			t.Error("suspended dispatcher issued a command")
		}

		d.Resume()
		d.Dispatch(context.Background(), Intent{Kind: CmdPause})
		waitFor(t, func() bool { return gw.count("pause") == 1 }, "resumed dispatcher never issued the command")
	})
}
