// Package bus delivers library rename and remove notifications to receivers
// registered against an item.
//
// The bus holds receivers weakly: a Subscription that nothing else references
// is collected and silently pruned on the next dispatch. Dispatch is
// synchronous and works on a snapshot, so a handler may close its own or any
// other subscription while being notified.
package bus

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"weak"
)

// Kind distinguishes notifications.
type Kind uint8

const (
	Renamed Kind = iota + 1
	Removed
)

func (k Kind) String() string {
	switch k {
	case Renamed:
		return "renamed"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event describes one structural edit of a library item.
// Rename events carry OldName and NewName; remove events carry Item and Name.
type Event struct {
	Kind    Kind
	ItemID  string
	Name    string
	OldName string
	NewName string
	Item    any
}

// Handler receives events. Handlers must not panic; a panic is recovered and
// logged so it never reaches the code that triggered the edit.
type Handler func(Event)

// wildcard keys receivers interested in every item.
const wildcard = "*"

// Bus is a per-item registry of weakly held subscriptions.
type Bus struct {
	mu       sync.Mutex
	registry map[string][]weak.Pointer[Subscription]
	logger   *slog.Logger
}

// New returns an empty bus. A nil logger discards panic reports.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		registry: make(map[string][]weak.Pointer[Subscription]),
		logger:   logger,
	}
}

// Subscription is the receiver handle. The caller owns it: registration does
// not keep it alive.
type Subscription struct {
	bus    *Bus
	key    string
	fn     Handler
	closed bool
}

// Subscribe registers fn for events about itemID.
func (b *Bus) Subscribe(itemID string, fn Handler) *Subscription {
	s := &Subscription{bus: b, key: itemID, fn: fn}
	b.mu.Lock()
	b.registry[itemID] = append(b.registry[itemID], weak.Make(s))
	b.mu.Unlock()
	return s
}

// SubscribeAll registers fn for events about any item.
func (b *Bus) SubscribeAll(fn Handler) *Subscription {
	return b.Subscribe(wildcard, fn)
}

// Key returns the item ID the subscription listens to.
func (s *Subscription) Key() string { return s.key }

// Bus returns the bus the subscription is registered on.
func (s *Subscription) Bus() *Bus { return s.bus }

// Rebind registers fn with the same bus and key as s.
func (s *Subscription) Rebind(fn Handler) *Subscription {
	return s.bus.Subscribe(s.key, fn)
}

// Close unregisters the subscription. Closing twice is harmless.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	entries := b.registry[s.key]
	entries = slices.DeleteFunc(entries, func(p weak.Pointer[Subscription]) bool {
		v := p.Value()
		return v == nil || v == s
	})
	if len(entries) == 0 {
		delete(b.registry, s.key)
	} else {
		b.registry[s.key] = entries
	}
}

// snapshot returns the live subscriptions for key and prunes collected ones.
func (b *Bus) snapshot(key string) []*Subscription {
	entries := b.registry[key]
	live := make([]*Subscription, 0, len(entries))
	kept := entries[:0]
	for _, p := range entries {
		if v := p.Value(); v != nil && !v.closed {
			live = append(live, v)
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		delete(b.registry, key)
	} else {
		b.registry[key] = kept
	}
	return live
}

// Publish notifies every live receiver of ev.ItemID, then wildcard receivers.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	targets := b.snapshot(ev.ItemID)
	if ev.ItemID != wildcard {
		targets = append(targets, b.snapshot(wildcard)...)
	}
	b.mu.Unlock()

	for _, s := range targets {
		b.mu.Lock()
		closed := s.closed
		b.mu.Unlock()
		if closed {
			continue
		}
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("bus: receiver panicked",
				slog.String("item_id", ev.ItemID),
				slog.String("kind", ev.Kind.String()),
				slog.Any("panic", r))
		}
	}()
	s.fn(ev)
}

// Forget drops the registry entry for itemID. Subscriptions already handed
// out stop receiving events.
func (b *Bus) Forget(itemID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.registry[itemID] {
		if v := p.Value(); v != nil {
			v.closed = true
		}
	}
	delete(b.registry, itemID)
}

// Len returns the number of live receivers registered for itemID.
func (b *Bus) Len(itemID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshot(itemID))
}
