package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
	"github.com/redis/go-redis/v9"
)

type eventStore struct {
	client *redis.Client
}

// Add stores a recognition event as JSON and indexes it by time and plate
func (s *eventStore) Add(ctx context.Context, event storage.RecognitionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		seq, err := s.client.Incr(ctx, keyEventSeq).Result()
		if err != nil {
			return err
		}
		event.ID = strconv.FormatInt(seq, 10)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	score := float64(event.Timestamp.UnixNano())
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyEventPrefix+event.ID, data, 0)
	pipe.ZAdd(ctx, keyEventsByTime, redis.Z{Score: score, Member: event.ID})
	pipe.ZAdd(ctx, keyEventPlatePrefix+event.Plate, redis.Z{Score: score, Member: event.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Query returns matching events newest first
func (s *eventStore) Query(ctx context.Context, filter storage.EventFilter) ([]storage.RecognitionEvent, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	min, max := "-inf", "+inf"
	if filter.StartTime != nil {
		min = strconv.FormatInt(filter.StartTime.UnixNano(), 10)
	}
	if filter.EndTime != nil {
		max = strconv.FormatInt(filter.EndTime.UnixNano(), 10)
	}

	// Scan the plate index when a plate filter is given, the global time
	// index otherwise.
	index := keyEventsByTime
	if filter.Plate != "" {
		index = keyEventPlatePrefix + filter.Plate
	}

	ids, err := s.client.ZRevRangeByScore(ctx, index, &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]storage.RecognitionEvent, 0, filter.Limit)
	skipped := 0
	for _, id := range ids {
		if len(events) >= filter.Limit {
			break
		}
		raw, err := s.client.Get(ctx, keyEventPrefix+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var event storage.RecognitionEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event %s: %w", id, err)
		}
		if !matchesEventFilter(event, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// DeleteBefore removes events older than the cutoff, including their indexes
func (s *eventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := "(" + strconv.FormatInt(cutoff.UnixNano(), 10)
	ids, err := s.client.ZRangeByScore(ctx, keyEventsByTime, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		raw, err := s.client.Get(ctx, keyEventPrefix+id).Result()
		if err != nil && err != redis.Nil {
			return deleted, err
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, keyEventPrefix+id)
		pipe.ZRem(ctx, keyEventsByTime, id)
		if err == nil {
			var event storage.RecognitionEvent
			if jsonErr := json.Unmarshal([]byte(raw), &event); jsonErr == nil {
				pipe.ZRem(ctx, keyEventPlatePrefix+event.Plate, id)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func matchesEventFilter(event storage.RecognitionEvent, filter storage.EventFilter) bool {
	if filter.Plate != "" && event.Plate != filter.Plate {
		return false
	}
	if filter.Lane != "" && event.Lane != filter.Lane {
		return false
	}
	if filter.Outcome != "" && event.Outcome != filter.Outcome {
		return false
	}
	return true
}
