package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
	"go.etcd.io/bbolt"
)

type eventStore struct {
	db *bbolt.DB
}

func (s *eventStore) Add(ctx context.Context, event storage.RecognitionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		key, err := eventKey(event.Timestamp)
		if err != nil {
			return err
		}
		event.ID = key
	}
	data, err := marshal(event)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return fmt.Errorf("events bucket missing")
		}
		if err := bucket.Put([]byte(event.ID), data); err != nil {
			return err
		}
		return s.addIndexes(tx, event)
	})
}

func (s *eventStore) Query(ctx context.Context, filter storage.EventFilter) ([]storage.RecognitionEvent, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	events := make([]storage.RecognitionEvent, 0)
	skipped := 0

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}

		// When a plate filter is given, walk its index bucket instead of
		// the whole event log.
		var ids *bbolt.Bucket
		if filter.Plate != "" {
			ids = indexBucket(tx, bucketIndexEvents, bucketIndexPlate, normalizeIndexKey(filter.Plate))
			if ids == nil {
				return nil
			}
		}

		scan := func(id []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			value := bucket.Get(id)
			if value == nil {
				return nil
			}
			var event storage.RecognitionEvent
			if err := unmarshal(value, &event); err != nil {
				return err
			}
			if !matchesEventFilter(event, filter) {
				return nil
			}
			if skipped < filter.Offset {
				skipped++
				return nil
			}
			events = append(events, event)
			return nil
		}

		// Keys sort by timestamp, so a reverse walk yields newest first.
		if ids != nil {
			c := ids.Cursor()
			for k, _ := c.Last(); k != nil && len(events) < filter.Limit; k, _ = c.Prev() {
				if err := scan(k); err != nil {
					return err
				}
			}
			return nil
		}
		c := bucket.Cursor()
		for k, _ := c.Last(); k != nil && len(events) < filter.Limit; k, _ = c.Prev() {
			if err := scan(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *eventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	return deleted, s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var event storage.RecognitionEvent
			if err := unmarshal(v, &event); err != nil {
				return err
			}
			if !event.Timestamp.Before(cutoff) {
				// Time ordered keys mean everything after this point is
				// newer than the cutoff.
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
			s.deleteIndexes(tx, event)
			deleted++
		}
		return nil
	})
}

func (s *eventStore) addIndexes(tx *bbolt.Tx, event storage.RecognitionEvent) error {
	plateBucket, err := ensureIndexBucket(tx, bucketIndexEvents, bucketIndexPlate, normalizeIndexKey(event.Plate))
	if err != nil {
		return err
	}
	if err := plateBucket.Put([]byte(event.ID), []byte{}); err != nil {
		return err
	}

	laneBucket, err := ensureIndexBucket(tx, bucketIndexEvents, bucketIndexLane, normalizeIndexKey(event.Lane))
	if err != nil {
		return err
	}
	return laneBucket.Put([]byte(event.ID), []byte{})
}

func (s *eventStore) deleteIndexes(tx *bbolt.Tx, event storage.RecognitionEvent) {
	if b := indexBucket(tx, bucketIndexEvents, bucketIndexPlate, normalizeIndexKey(event.Plate)); b != nil {
		_ = b.Delete([]byte(event.ID))
	}
	if b := indexBucket(tx, bucketIndexEvents, bucketIndexLane, normalizeIndexKey(event.Lane)); b != nil {
		_ = b.Delete([]byte(event.ID))
	}
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
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}
