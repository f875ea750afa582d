// FILE: modconf/notify.go
package modconf

import "sync"

// EventKind represents the type of lifecycle event.
type EventKind int

const (
	// EventLoading indicates a definition's backing data was read into
	// memory for the first time.
	EventLoading EventKind = iota

	// EventReloading indicates a subsequent load: a file change, an
	// explicit reload, or an applied sync payload.
	EventReloading

	// EventUnloading indicates a definition left memory.
	EventUnloading
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventReloading:
		return "reloading"
	case EventUnloading:
		return "unloading"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle transition of a registered definition.
type Event struct {
	// Kind is the type of transition.
	Kind EventKind

	// Owner is the registering mod's identifier.
	Owner string

	// Side is the definition's side.
	Side Side

	// FileName is the definition's file name within its config directory.
	FileName string

	// Corrections counts values that fell back to their defaults during
	// the load. Zero for unloading events.
	Corrections int
}

// Observer is called when a definition loads, reloads, or unloads.
type Observer func(event Event)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	owner    string
	notifier *notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type ownerObserver struct {
	owner    string // "" matches every owner
	observer Observer
}

// notifier fans lifecycle events out to subscribers. Observers run outside
// the lock, so they may subscribe or unsubscribe reentrantly.
type notifier struct {
	mu        sync.RWMutex
	observers map[uint64]ownerObserver
	nextID    uint64
}

func newNotifier() *notifier {
	return &notifier{observers: make(map[uint64]ownerObserver)}
}

func (n *notifier) subscribe(owner string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.observers[id] = ownerObserver{owner: owner, observer: observer}

	return &Subscription{id: id, owner: owner, notifier: n}
}

func (n *notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.observers, id)
}

func (n *notifier) notify(event Event) {
	n.mu.RLock()
	observers := make([]Observer, 0, len(n.observers))
	for _, entry := range n.observers {
		if entry.owner == "" || entry.owner == event.Owner {
			observers = append(observers, entry.observer)
		}
	}
	n.mu.RUnlock()

	// Call observers outside the lock
	for _, obs := range observers {
		obs(event)
	}
}
