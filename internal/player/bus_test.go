package player

import (
	"testing"
	"time"
)

func snapAt(trackID string, at time.Time) *Snapshot {
	return &Snapshot{TrackID: trackID, IsPlaying: true, CapturedAt: at}
}

func TestBusSnapshotOrdering(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Newer Snapshot Applies", func(t *testing.T) {
		bus := NewBus()
		if !bus.applySnapshot(snapAt("a", base)) {
			t.Fatal("expected first snapshot to apply")
		}
		if !bus.applySnapshot(snapAt("b", base.Add(time.Second))) {
			t.Fatal("expected newer snapshot to apply")
		}
		if got := bus.State().Authoritative.TrackID; got != "b" {
			t.Errorf("expected track b, got %s", got)
		}
	})

	t.Run("Late Snapshot Is Dropped", func(t *testing.T) {
		bus := NewBus()
		bus.applySnapshot(snapAt("b", base.Add(time.Second)))
		if bus.applySnapshot(snapAt("a", base)) {
			t.Error("expected stale snapshot to be rejected")
		}
		if bus.applySnapshot(snapAt("c", base.Add(time.Second))) {
			t.Error("expected equal-time snapshot to be rejected")
		}
		if got := bus.State().Authoritative.TrackID; got != "b" {
			t.Errorf("published state rolled backwards to %s", got)
		}
	})
}

func TestBusDisplayState(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Authoritative Follows Applied Snapshots", func(t *testing.T) {
		bus := NewBus()
		bus.applySnapshot(snapAt("a", base))

		vm := bus.State()
		if vm.Display.Mode != Authoritative || vm.Display.Snapshot.TrackID != "a" {
			t.Errorf("unexpected display state: %+v", vm.Display)
		}
	})

	t.Run("Optimistic Display Survives New Polls", func(t *testing.T) {
		bus := NewBus()
		bus.applySnapshot(snapAt("a", base))

		guess := snapAt("a", base)
		guess.IsPlaying = false
		bus.setOptimistic(guess, CmdPause)

		bus.applySnapshot(snapAt("b", base.Add(time.Second)))

		vm := bus.State()
		if vm.Display.Mode != Optimistic || vm.Display.Snapshot.IsPlaying {
			t.Errorf("optimistic display was overwritten: %+v", vm.Display)
		}
		if vm.Authoritative.TrackID != "b" {
			t.Errorf("authoritative state not updated behind the projection: %+v", vm.Authoritative)
		}
	})

	t.Run("Collapse Reverts To Authoritative", func(t *testing.T) {
		bus := NewBus()
		bus.applySnapshot(snapAt("a", base))
		bus.setOptimistic(snapAt("x", base), CmdNext)

		bus.collapse(&Notice{Kind: NoticeWarning, Text: "next may not have applied", At: base})

		vm := bus.State()
		if vm.Display.Mode != Authoritative || vm.Display.Snapshot.TrackID != "a" {
			t.Errorf("expected display reverted to authoritative, got %+v", vm.Display)
		}
		if vm.Notice == nil || vm.Notice.Text != "next may not have applied" {
			t.Errorf("expected revert notice, got %+v", vm.Notice)
		}
	})
}

func TestBusSubscribe(t *testing.T) {
	t.Run("Signals Are Coalesced", func(t *testing.T) {
		bus := NewBus()
		sub := bus.Subscribe()

		base := time.Now()
		bus.applySnapshot(snapAt("a", base))
		bus.applySnapshot(snapAt("b", base.Add(time.Second)))
		bus.applySnapshot(snapAt("c", base.Add(2*time.Second)))

		select {
		case <-sub:
		default:
			t.Fatal("expected a pending signal after updates")
		}

		// All three updates collapse into at most one buffered signal.
		select {
		case <-sub:
			t.Error("expected signals to be coalesced")
		default:
		}

		if got := bus.State().Authoritative.TrackID; got != "c" {
			t.Errorf("expected latest state c, got %s", got)
		}
	})
}
