package formz

import "context"

// Watcher observes a baseline source and emits raw payloads on a channel.
// Implementations must emit the current payload as soon as Watch is called so
// that Sync can apply an initial baseline. A source that holds no baseline yet
// emits an empty payload, which Sync treats as nothing to load.
type Watcher interface {
	// Watch begins observing the source. The returned channel is closed when
	// ctx is cancelled or the source fails for good.
	Watch(ctx context.Context) (<-chan []byte, error)
}
