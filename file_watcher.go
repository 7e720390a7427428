package formz

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/capitan"
)

// FileWatcher watches a baseline file and emits its contents.
//
// Editors often save in several steps: truncate, write, chmod. After the
// first emission the watcher only forwards contents that are non-empty and
// differ from the last payload it emitted. With WithCodec it also holds back
// contents that do not decode, so a half-written file never reaches Sync.
type FileWatcher struct {
	path  string
	codec Codec
}

// FileWatcherOption configures a FileWatcher.
type FileWatcherOption func(*FileWatcher)

// WithCodec makes the watcher decode every reload with codec before emitting
// it. Reloads that fail to decode are reported through BaselineRejected.
func WithCodec(codec Codec) FileWatcherOption {
	return func(w *FileWatcher) {
		w.codec = codec
	}
}

// NewFileWatcher creates a new FileWatcher for the given file path.
func NewFileWatcher(path string, opts ...FileWatcherOption) *FileWatcher {
	w := &FileWatcher{path: path}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch emits the file's contents now, or an empty payload when the file is
// empty or unreadable, and again after every write or create event that
// yields a new baseline. The file must exist when Watch is called.
func (w *FileWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(w.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch baseline %s: %w", w.path, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer watcher.Close()

		// An unreadable file counts as no baseline.
		last, _ := os.ReadFile(w.path)
		select {
		case out <- last:
		case <-ctx.Done():
			return
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				data, err := os.ReadFile(w.path)
				if err != nil || !w.accept(ctx, last, data) {
					continue
				}
				last = data

				select {
				case out <- data:
				case <-ctx.Done():
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}

// accept reports whether a reload should be emitted after last.
func (w *FileWatcher) accept(ctx context.Context, last, data []byte) bool {
	if len(data) == 0 || bytes.Equal(last, data) {
		return false
	}
	if w.codec == nil {
		return true
	}
	var decoded any
	if err := w.codec.Unmarshal(data, &decoded); err != nil {
		capitan.Emit(ctx, BaselineRejected,
			KeyPath.Field(w.path),
			KeyContentType.Field(w.codec.ContentType()),
			KeyError.Field(err.Error()),
		)
		return false
	}
	return true
}
