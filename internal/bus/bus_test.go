package bus

import (
	"runtime"
	"testing"
)

func TestPublishRename(t *testing.T) {
	b := New(nil)
	var got Event
	sub := b.Subscribe("id-1", func(ev Event) { got = ev })
	defer sub.Close()

	b.Publish(Event{Kind: Renamed, ItemID: "id-1", OldName: "a", NewName: "b"})
	if got.Kind != Renamed || got.OldName != "a" || got.NewName != "b" {
		t.Errorf("event = %+v", got)
	}
}

func TestPublishOnlyTargetsItem(t *testing.T) {
	b := New(nil)
	calls := 0
	sub := b.Subscribe("id-1", func(Event) { calls++ })
	defer sub.Close()

	b.Publish(Event{Kind: Removed, ItemID: "id-2"})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestSubscribeAllSeesEveryItem(t *testing.T) {
	b := New(nil)
	var ids []string
	sub := b.SubscribeAll(func(ev Event) { ids = append(ids, ev.ItemID) })
	defer sub.Close()

	b.Publish(Event{Kind: Removed, ItemID: "x"})
	b.Publish(Event{Kind: Removed, ItemID: "y"})
	if len(ids) != 2 || ids[0] != "x" || ids[1] != "y" {
		t.Errorf("ids = %v", ids)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New(nil)
	calls := 0
	sub := b.Subscribe("id", func(Event) { calls++ })
	sub.Close()
	sub.Close()
	b.Publish(Event{Kind: Renamed, ItemID: "id"})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if b.Len("id") != 0 {
		t.Errorf("Len = %d, want 0", b.Len("id"))
	}
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	b := New(nil)
	var first, second *Subscription
	calls := 0
	first = b.Subscribe("id", func(Event) {
		calls++
		first.Close()
		second.Close()
	})
	second = b.Subscribe("id", func(Event) { calls++ })

	b.Publish(Event{Kind: Renamed, ItemID: "id"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second closed before its turn)", calls)
	}
	b.Publish(Event{Kind: Renamed, ItemID: "id"})
	if calls != 1 {
		t.Errorf("calls after close = %d, want 1", calls)
	}
}

func TestUnreferencedReceiverIsDropped(t *testing.T) {
	b := New(nil)
	calls := 0
	func() {
		b.Subscribe("id", func(Event) { calls++ })
	}()
	runtime.GC()

	b.Publish(Event{Kind: Renamed, ItemID: "id"})
	if calls != 0 {
		t.Errorf("collected receiver was notified %d times", calls)
	}
	if n := b.Len("id"); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestReferencedReceiverSurvivesGC(t *testing.T) {
	b := New(nil)
	calls := 0
	sub := b.Subscribe("id", func(Event) { calls++ })
	runtime.GC()

	b.Publish(Event{Kind: Renamed, ItemID: "id"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	runtime.KeepAlive(sub)
}

func TestPanickingReceiverDoesNotEscape(t *testing.T) {
	b := New(nil)
	calls := 0
	s1 := b.Subscribe("id", func(Event) { panic("boom") })
	s2 := b.Subscribe("id", func(Event) { calls++ })
	defer s1.Close()
	defer s2.Close()

	b.Publish(Event{Kind: Removed, ItemID: "id"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestForget(t *testing.T) {
	b := New(nil)
	calls := 0
	sub := b.Subscribe("id", func(Event) { calls++ })
	b.Forget("id")
	b.Publish(Event{Kind: Renamed, ItemID: "id"})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	runtime.KeepAlive(sub)
}
