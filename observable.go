package formz

import (
	"sync"
	"sync/atomic"
)

// Handler receives the new snapshot after every published change.
type Handler[S any] func(S)

// Subscription identifies a handler registered on a node. The zero value
// identifies nothing and is safe to pass to Unsubscribe.
type Subscription struct {
	id uint64
}

// Active reports whether the subscription was issued by a node.
func (s Subscription) Active() bool {
	return s.id != 0
}

// Subscription ids are unique across all observables so a handle from one
// node can never detach a handler registered on another.
var subscriptionSeq atomic.Uint64

type subscriber[S any] struct {
	id uint64
	fn Handler[S]
}

// Observable holds an immutable snapshot and notifies subscribers when it is
// replaced. Notifications run synchronously in the goroutine that changed the
// state, after the internal lock has been released, so subscribers may read
// any node (including this one) from inside a handler.
type Observable[S any] struct {
	mu    sync.RWMutex
	state S
	equal func(a, b S) bool
	subs  []subscriber[S]
}

// NewObservable creates an Observable holding initial. The equal function
// suppresses redundant emissions; a nil equal publishes every SetState.
func NewObservable[S any](initial S, equal func(a, b S) bool) *Observable[S] {
	return &Observable[S]{state: initial, equal: equal}
}

// State returns the current snapshot.
func (o *Observable[S]) State() S {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// SetState replaces the snapshot with next unless it is equal to the current
// one. Callers merge partial updates into a copy of State() first; since
// untouched keys carry the current values, comparing the whole snapshot is the
// same as comparing only the supplied keys. Reports whether subscribers were
// notified.
func (o *Observable[S]) SetState(next S) bool {
	return o.Transition(func(S) S { return next })
}

// Transition computes the next snapshot from the current one while holding
// the lock, so concurrent transitions never interleave mid-computation.
func (o *Observable[S]) Transition(fn func(prev S) S) bool {
	o.mu.Lock()
	prev := o.state
	next := fn(prev)
	if o.equal != nil && o.equal(prev, next) {
		o.mu.Unlock()
		return false
	}
	o.state = next
	subs := o.handlers()
	o.mu.Unlock()

	notify(subs, next)
	return true
}

// Emit notifies every subscriber with the current snapshot.
func (o *Observable[S]) Emit() {
	o.mu.RLock()
	state := o.state
	subs := o.handlers()
	o.mu.RUnlock()

	notify(subs, state)
}

// Subscribe registers fn and returns the handle used to remove it.
func (o *Observable[S]) Subscribe(fn Handler[S]) Subscription {
	if fn == nil {
		return Subscription{}
	}
	id := subscriptionSeq.Add(1)
	o.mu.Lock()
	o.subs = append(o.subs, subscriber[S]{id: id, fn: fn})
	o.mu.Unlock()
	return Subscription{id: id}
}

// Unsubscribe removes the handler registered under sub. It reports whether a
// handler was removed.
func (o *Observable[S]) Unsubscribe(sub Subscription) bool {
	if !sub.Active() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == sub.id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribers returns the number of registered handlers.
func (o *Observable[S]) Subscribers() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

// handlers copies the subscriber list so handlers may subscribe or
// unsubscribe while a notification is in progress. Must hold o.mu.
func (o *Observable[S]) handlers() []subscriber[S] {
	if len(o.subs) == 0 {
		return nil
	}
	out := make([]subscriber[S], len(o.subs))
	copy(out, o.subs)
	return out
}

func notify[S any](subs []subscriber[S], state S) {
	for _, s := range subs {
		s.fn(state)
	}
}
