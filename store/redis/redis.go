/*
Package redis provides a Redis-backed implementation of fuel.KV.

PURPOSE:
  Lets several processes (a desktop server and a phone-side sync, say) share
  one logbook. Each document is a plain Redis string under Prefix+key.

CHANGE FEED:
  Every Set/Remove publishes the key on Prefix+"changes". Watch subscribes to
  that channel, so a process sees writes made by any other process. Delivery
  is best-effort: readers re-read state on notification.

USAGE:
  store, err := redis.New(ctx, "redis://localhost:6379/0", "fuelbook:")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Store implements fuel.KV and fuel.Watcher on Redis.
type Store struct {
	client *goredis.Client
	prefix string
}

// New connects to url (redis://host:port/db) and pings the server.
func New(ctx context.Context, url, prefix string) (*Store, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) channel() string { return s.prefix + "changes" }

// Get returns the document under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return v, true, nil
}

// Set replaces the document under key and announces the change.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return s.publish(ctx, key)
}

// Remove deletes key and announces the change.
func (s *Store) Remove(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	if n == 0 {
		return nil
	}
	return s.publish(ctx, key)
}

func (s *Store) publish(ctx context.Context, key string) error {
	if err := s.client.Publish(ctx, s.channel(), key).Err(); err != nil {
		return fmt.Errorf("failed to publish change of %q: %w", key, err)
	}
	return nil
}

// Watch streams changed keys until ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan string, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	// Wait for the subscription to be confirmed before returning, so writes
	// made right after Watch are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()
	return out, nil
}
