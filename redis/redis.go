// Package redis stores form baselines in Redis and watches them through
// keyspace notifications, so formz.Sync can keep a form in step with values
// saved by another process.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/formz"
)

// Config for a Redis-backed baseline store. Defaults can be loaded via
// envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: FORMZ_REDIS_ADDR
	Addr string `env:"FORMZ_REDIS_ADDR,default=localhost:6379"`
	// DB selects the Redis database. ENV: FORMZ_REDIS_DB
	DB int `env:"FORMZ_REDIS_DB,default=0"`
	// KeyPrefix for all baseline keys. ENV: FORMZ_BASELINE_PREFIX
	KeyPrefix string `env:"FORMZ_BASELINE_PREFIX,default=formz:baseline:"`
}

// ConfigFromEnv populates a Config from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("decode redis config: %w", err)
	}
	return cfg, nil
}

// Store saves and watches baselines, one key per form.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "formz:baseline:"
	}
	return &Store{client: cl, prefix: prefix}, nil
}

// NewFromEnv builds a Store from ConfigFromEnv.
func NewFromEnv() (*Store, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

// Key returns the Redis key holding the baseline of form.
func (s *Store) Key(form string) string { return s.prefix + form }

// Save stores the current value of node as the baseline of form.
func (s *Store) Save(ctx context.Context, form string, node formz.Node, codec formz.Codec) error {
	data, err := codec.Marshal(node.Status().Value)
	if err != nil {
		return fmt.Errorf("encode baseline %s: %w", form, err)
	}
	if err := s.client.Set(ctx, s.Key(form), data, 0).Err(); err != nil {
		return fmt.Errorf("save baseline %s: %w", form, err)
	}
	return nil
}

// Load reads the stored baseline of form into loader. A missing key is not an
// error; the loader keeps its baseline.
func (s *Store) Load(ctx context.Context, form string, loader formz.Loader, codec formz.Codec) error {
	data, err := s.client.Get(ctx, s.Key(form)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load baseline %s: %w", form, err)
	}
	return loader.LoadValue(data, codec)
}

// Watcher returns a formz.Watcher over the baseline of form.
func (s *Store) Watcher(form string) *Watcher {
	return &Watcher{client: s.client, key: s.Key(form)}
}

// Watcher watches a Redis key for changes using keyspace notifications.
// Requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
type Watcher struct {
	client *redis.Client
	key    string
}

var _ formz.Watcher = (*Watcher)(nil)

// Watch emits the key's current value, or an empty payload when the key is
// missing, and again after every write.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	db := w.client.Options().DB
	channel := fmt.Sprintf("__keyspace@%d__:%s", db, w.key)
	pubsub := w.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer pubsub.Close()

		val, err := w.client.Get(ctx, w.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			val = nil
		case err != nil:
			return
		}
		select {
		case out <- val:
		case <-ctx.Done():
			return
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				switch msg.Payload {
				case "set", "setex", "psetex", "setnx", "mset":
				default:
					continue
				}
				val, err := w.client.Get(ctx, w.key).Bytes()
				if err != nil {
					continue
				}
				select {
				case out <- val:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
