// Package formztest provides test utilities for code built on formz.
package formztest

import (
	"sync"
	"testing"
	"time"
)

// Recorder collects every snapshot a node publishes. Pass Handle as a
// node's OnChangeState to capture the construction snapshot too, or to
// Subscribe for later ones.
type Recorder[S any] struct {
	mu     sync.Mutex
	states []S
}

// NewRecorder creates an empty Recorder.
func NewRecorder[S any]() *Recorder[S] {
	return &Recorder[S]{}
}

// Handle records s.
func (r *Recorder[S]) Handle(s S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

// States returns a copy of the recorded snapshots, oldest first.
func (r *Recorder[S]) States() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]S, len(r.states))
	copy(out, r.states)
	return out
}

// Len returns the number of recorded snapshots.
func (r *Recorder[S]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Last returns the most recent snapshot, or false if none was recorded.
func (r *Recorder[S]) Last() (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		var zero S
		return zero, false
	}
	return r.states[len(r.states)-1], true
}

// Clear drops the recorded snapshots.
func (r *Recorder[S]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = nil
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}

// Eventually fails the test if condition does not hold within timeout.
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	if !WaitFor(t, timeout, condition) {
		t.Fatalf("condition not met within %v: %s", timeout, msg)
	}
}
