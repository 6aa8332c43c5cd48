package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	debugRedisAddChannel = "add:autoviews-log-debug"
	debugRedisRmvChannel = "rmv:autoviews-log-debug"
	debugRedisPrefix     = "autoviews-debug:"
)

var (
	ErrInvalidDatabaseName = errors.New("invalid database name")
)

// RedisDebugger is a redis based [Debugger] implementation.
//
// It uses redis to synchronize all the processes between them: a
// [MemDebugger] is kept up to date with redis pub/sub, and the list is
// restored from the redis keys at startup.
type RedisDebugger struct {
	client redis.UniversalClient
	store  *MemDebugger
	sub    *redis.PubSub
}

// NewRedisDebugger instantiates a new [RedisDebugger], bootstraps the service
// with the state saved in redis and starts the subscription to the change
// channel.
func NewRedisDebugger(client redis.UniversalClient) (*RedisDebugger, error) {
	ctx := context.Background()

	dbg := &RedisDebugger{
		client: client,
		store:  NewMemDebugger(),
		sub:    client.Subscribe(ctx, debugRedisAddChannel, debugRedisRmvChannel),
	}

	if err := dbg.bootstrap(ctx); err != nil {
		return nil, err
	}

	go dbg.subscribeEvents()

	return dbg, nil
}

// AddDatabase adds the specified database to the debug list.
func (r *RedisDebugger) AddDatabase(db string, ttl time.Duration) error {
	ctx := context.Background()

	if db == "" || strings.ContainsRune(db, ' ') {
		return ErrInvalidDatabaseName
	}

	// The memory storage is updated when this process consumes its own
	// event.
	err := r.client.Publish(ctx, debugRedisAddChannel, ttl.String()+" "+db).Err()
	if err != nil {
		return err
	}

	return r.client.Set(ctx, debugRedisPrefix+db, 0, ttl).Err()
}

// RemoveDatabase removes the specified database from the debug list.
func (r *RedisDebugger) RemoveDatabase(db string) error {
	ctx := context.Background()

	err := r.client.Publish(ctx, debugRedisRmvChannel, "0s "+db).Err()
	if err != nil {
		return err
	}

	return r.client.Del(ctx, debugRedisPrefix+db).Err()
}

// ExpiresAt returns the expiration time of the debug mode for the database.
func (r *RedisDebugger) ExpiresAt(db string) *time.Time {
	return r.store.ExpiresAt(db)
}

func (r *RedisDebugger) subscribeEvents() {
	for msg := range r.sub.Channel() {
		ttlStr, db, ok := strings.Cut(msg.Payload, " ")
		if !ok {
			continue
		}

		switch msg.Channel {
		case debugRedisAddChannel:
			ttl, _ := time.ParseDuration(ttlStr)
			_ = r.store.AddDatabase(db, ttl)
		case debugRedisRmvChannel:
			_ = r.store.RemoveDatabase(db)
		}
	}
}

// Close the redis client and the subscription channel.
func (r *RedisDebugger) Close() error {
	if err := r.sub.Close(); err != nil {
		return fmt.Errorf("failed to close the subscription: %w", err)
	}

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close the client: %w", err)
	}

	return nil
}

func (r *RedisDebugger) bootstrap(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, debugRedisPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	for _, key := range keys {
		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil {
			continue
		}
		_ = r.store.AddDatabase(strings.TrimPrefix(key, debugRedisPrefix), ttl)
	}

	return nil
}
