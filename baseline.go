package formz

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoobzio/capitan"
)

// Loader is a node that can take its baseline from a serialized payload.
// Field, ArrayGroup and ObjectGroup implement it.
type Loader interface {
	LoadValue(data []byte, codec Codec) error
}

var (
	// ErrNotLoader is returned when a group member cannot load a baseline.
	ErrNotLoader = errors.New("member does not implement Loader")

	// ErrTooManyValues is returned when an array baseline holds more values
	// than the group has members.
	ErrTooManyValues = errors.New("baseline has more values than members")
)

// LoadValue decodes data into a value and seeds the field with it.
func (f *Field[T, I]) LoadValue(data []byte, codec Codec) error {
	var v T
	if err := codec.Unmarshal(data, &v); err != nil {
		err = fmt.Errorf("decode baseline: %w", err)
		f.loaded(codec, err)
		return err
	}
	f.Seed(v)
	f.loaded(codec, nil)
	return nil
}

// LoadValue decodes data as a list and seeds member i with element i.
// Members beyond the end of the list keep their baseline. The group publishes
// once after every member has been seeded.
func (g *ArrayGroup) LoadValue(data []byte, codec Codec) error {
	var values []any
	if err := codec.Unmarshal(data, &values); err != nil {
		err = fmt.Errorf("decode baseline: %w", err)
		g.loaded(codec, err)
		return err
	}

	members := g.snapshotMembers()
	if len(values) > len(members) {
		err := fmt.Errorf("%w: %d values for %d members", ErrTooManyValues, len(values), len(members))
		g.loaded(codec, err)
		return err
	}

	i := 0
	err := detachEach(&g.mu, members[:len(values)], g.onMember, func(m *member) error {
		v := values[i]
		i++
		return loadMember(m, v, codec)
	})
	g.Refresh()
	g.loaded(codec, err)
	return err
}

// LoadValue decodes data as an object and seeds each named member with its
// entry. Unknown keys are ignored and missing keys keep their baseline. The
// group publishes once after every member has been seeded.
func (g *ObjectGroup) LoadValue(data []byte, codec Codec) error {
	var values map[string]any
	if err := codec.Unmarshal(data, &values); err != nil {
		err = fmt.Errorf("decode baseline: %w", err)
		g.loaded(codec, err)
		return err
	}

	var members []*member
	for _, m := range g.snapshotMembers() {
		if _, ok := values[m.name]; ok {
			members = append(members, m)
		}
	}

	err := detachEach(&g.mu, members, g.onMember, func(m *member) error {
		return loadMember(m, values[m.name], codec)
	})
	g.Refresh()
	g.loaded(codec, err)
	return err
}

// loadMember re-encodes one decoded element and hands it to the member.
func loadMember(m *member, value any, codec Codec) error {
	l, ok := m.node.(Loader)
	if !ok {
		return fmt.Errorf("member %s: %w", m.name, ErrNotLoader)
	}
	raw, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("member %s: encode baseline: %w", m.name, err)
	}
	if err := l.LoadValue(raw, codec); err != nil {
		return fmt.Errorf("member %s: %w", m.name, err)
	}
	return nil
}

func (e env) loaded(codec Codec, err error) {
	if err != nil {
		capitan.Emit(e.ctx, BaselineLoadFailed,
			KeyNode.Field(e.name),
			KeyContentType.Field(codec.ContentType()),
			KeyError.Field(err.Error()),
		)
		return
	}
	capitan.Emit(e.ctx, BaselineLoaded,
		KeyNode.Field(e.name),
		KeyContentType.Field(codec.ContentType()),
	)
}

// Sync keeps loader's baseline in step with a watched source. It blocks until
// the first payload is applied and returns that load's error, then applies
// later payloads in the background until ctx is cancelled or the watcher
// closes its channel. Later failures are reported through BaselineLoadFailed
// and leave the previous baseline in place. Empty payloads mean the source
// has no baseline and are skipped.
//
// Example:
//
//	profile := formz.NewObjectGroup(formz.ObjectGroupConfig{Fields: fields})
//	err := formz.Sync(ctx, formz.NewFileWatcher("profile.yaml"), profile, formz.YAMLCodec{})
func Sync(ctx context.Context, watcher Watcher, loader Loader, codec Codec) error {
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	var initialErr error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case raw, ok := <-changes:
		if !ok {
			return fmt.Errorf("watcher closed before emitting initial value")
		}
		if len(raw) > 0 {
			initialErr = loader.LoadValue(raw, codec)
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-changes:
				if !ok {
					return
				}
				if len(raw) == 0 {
					continue
				}
				_ = loader.LoadValue(raw, codec) //nolint:errcheck // reported via BaselineLoadFailed
			}
		}
	}()

	return initialErr
}
