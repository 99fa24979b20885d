package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/parkgate/internal/config"
	"github.com/goodtune/parkgate/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Key layout. Sessions are hashes keyed by a monotonically increasing id,
// with an open-session index per plate and a ZSET ordered by entry time.
const (
	keySessionPrefix   = "parkgate:session:"
	keySessionSeq      = "parkgate:session:seq"
	keyOpenPrefix      = "parkgate:open:"
	keySessionsByEntry = "parkgate:sessions:by_entry"
	keySessionsOpen    = "parkgate:sessions:open"
	keyPlatesSeen      = "parkgate:sessions:plates"
	keySessionStats    = "parkgate:sessions:stats"

	keyEventPrefix      = "parkgate:event:"
	keyEventSeq         = "parkgate:event:seq"
	keyEventsByTime     = "parkgate:events:by_time"
	keyEventPlatePrefix = "parkgate:events:plate:"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client       *redis.Client
	sessionStore *sessionStore
	eventStore   *eventStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	// Create Redis client
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:       client,
		sessionStore: &sessionStore{client: client},
		eventStore:   &eventStore{client: client},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Sessions returns the SessionStore implementation
func (s *Store) Sessions() storage.SessionStore {
	return s.sessionStore
}

// Events returns the EventStore implementation
func (s *Store) Events() storage.EventStore {
	return s.eventStore
}
