package bolt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) RecordEntry(ctx context.Context, plate string, confidence *float64, entryTime time.Time, imagePath string) (*storage.ParkingSession, error) {
	var session storage.ParkingSession
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sessions := tx.Bucket([]byte(bucketSessions))
		openIdx := tx.Bucket([]byte(bucketOpenByPlate))
		if sessions == nil || openIdx == nil {
			return fmt.Errorf("session buckets missing")
		}

		if openIdx.Get([]byte(plate)) != nil {
			return storage.ErrAlreadyOpen
		}

		id, err := sessions.NextSequence()
		if err != nil {
			return fmt.Errorf("next session id: %w", err)
		}

		session = storage.ParkingSession{
			ID:         int64(id),
			Plate:      plate,
			Confidence: confidence,
			EntryTime:  entryTime,
			Status:     storage.StatusIn,
			ImagePath:  imagePath,
		}
		data, err := marshal(session)
		if err != nil {
			return err
		}

		key := sessionKey(id)
		if err := sessions.Put(key, data); err != nil {
			return err
		}
		return openIdx.Put([]byte(plate), key)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) RecordExit(ctx context.Context, plate string, exitTime time.Time, fees storage.FeeSchedule) (*storage.ExitSummary, error) {
	var summary storage.ExitSummary
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sessions := tx.Bucket([]byte(bucketSessions))
		openIdx := tx.Bucket([]byte(bucketOpenByPlate))
		if sessions == nil || openIdx == nil {
			return fmt.Errorf("session buckets missing")
		}

		key := openIdx.Get([]byte(plate))
		if key == nil {
			return storage.ErrNoOpenSession
		}
		value := sessions.Get(key)
		if value == nil {
			return fmt.Errorf("open index points at missing session for %s", plate)
		}

		var session storage.ParkingSession
		if err := unmarshal(value, &session); err != nil {
			return err
		}

		minutes := storage.DurationMinutes(session.EntryTime, exitTime)
		exit := exitTime
		session.ExitTime = &exit
		session.DurationMinutes = minutes
		session.Fee = fees.Fee(minutes)
		session.Status = storage.StatusOut

		data, err := marshal(session)
		if err != nil {
			return err
		}
		if err := sessions.Put(key, data); err != nil {
			return err
		}
		if err := openIdx.Delete([]byte(plate)); err != nil {
			return err
		}

		summary = storage.ExitSummary{
			SessionID:       session.ID,
			Plate:           session.Plate,
			EntryTime:       session.EntryTime,
			ExitTime:        exitTime,
			DurationMinutes: minutes,
			Fee:             session.Fee,
			Currency:        fees.Currency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *sessionStore) Open(ctx context.Context, plate string) (*storage.ParkingSession, error) {
	var session *storage.ParkingSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sessions := tx.Bucket([]byte(bucketSessions))
		openIdx := tx.Bucket([]byte(bucketOpenByPlate))
		if sessions == nil || openIdx == nil {
			return storage.ErrNotFound
		}
		key := openIdx.Get([]byte(plate))
		if key == nil {
			return storage.ErrNotFound
		}
		value := sessions.Get(key)
		if value == nil {
			return storage.ErrNotFound
		}
		var result storage.ParkingSession
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		session = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) ListOpen(ctx context.Context) ([]storage.ParkingSession, error) {
	open := make([]storage.ParkingSession, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket([]byte(bucketSessions))
		openIdx := tx.Bucket([]byte(bucketOpenByPlate))
		if sessions == nil || openIdx == nil {
			return nil
		}
		return openIdx.ForEach(func(_, key []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			value := sessions.Get(key)
			if value == nil {
				return nil
			}
			var session storage.ParkingSession
			if err := unmarshal(value, &session); err != nil {
				return err
			}
			open = append(open, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(open, func(i, j int) bool { return open[i].EntryTime.Before(open[j].EntryTime) })
	return open, nil
}

func (s *sessionStore) Recent(ctx context.Context, limit int) ([]storage.ParkingSession, error) {
	if limit <= 0 {
		limit = 10
	}
	recent := make([]storage.ParkingSession, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket([]byte(bucketSessions))
		if sessions == nil {
			return nil
		}
		// Keys are sequence ordered, so a reverse cursor walk yields the
		// newest sessions first.
		c := sessions.Cursor()
		for k, v := c.Last(); k != nil && len(recent) < limit; k, v = c.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var session storage.ParkingSession
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			recent = append(recent, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recent, nil
}

func (s *sessionStore) Statistics(ctx context.Context, now time.Time) (*storage.Stats, error) {
	stats := &storage.Stats{}
	plates := make(map[string]struct{})
	today := now.Format("2006-01-02")
	var confSum float64
	var confCount int

	err := s.db.View(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket([]byte(bucketSessions))
		if sessions == nil {
			return nil
		}
		return sessions.ForEach(func(_, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var session storage.ParkingSession
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			stats.TotalCount++
			plates[session.Plate] = struct{}{}
			if session.Status == storage.StatusIn {
				stats.OpenCount++
			}
			if session.EntryTime.In(now.Location()).Format("2006-01-02") == today {
				stats.TodayCount++
			}
			if session.Confidence != nil {
				confSum += *session.Confidence
				confCount++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	stats.UniquePlates = len(plates)
	if confCount > 0 {
		avg := confSum / float64(confCount)
		stats.AverageConfidence = &avg
	}
	return stats, nil
}
