package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
}

// RecordEntry opens a session for a plate via the entry script
func (s *sessionStore) RecordEntry(ctx context.Context, plate string, confidence *float64, entryTime time.Time, imagePath string) (*storage.ParkingSession, error) {
	script := redis.NewScript(recordEntryScript)

	conf := ""
	if confidence != nil {
		conf = strconv.FormatFloat(*confidence, 'f', -1, 64)
	}

	keys := []string{
		keyOpenPrefix + plate,
		keySessionSeq,
		keySessionsByEntry,
		keySessionsOpen,
		keyPlatesSeen,
		keySessionStats,
	}
	args := []interface{}{
		plate,
		entryTime.Format(time.RFC3339Nano),
		entryTime.UnixNano(),
		conf,
		imagePath,
		keySessionPrefix,
	}

	id, err := script.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, storage.ErrAlreadyOpen
	}

	return &storage.ParkingSession{
		ID:         id,
		Plate:      plate,
		Confidence: confidence,
		EntryTime:  entryTime,
		Status:     storage.StatusIn,
		ImagePath:  imagePath,
	}, nil
}

// RecordExit closes the open session for a plate via the exit script
func (s *sessionStore) RecordExit(ctx context.Context, plate string, exitTime time.Time, fees storage.FeeSchedule) (*storage.ExitSummary, error) {
	script := redis.NewScript(recordExitScript)

	keys := []string{
		keyOpenPrefix + plate,
		keySessionsOpen,
	}
	args := []interface{}{
		exitTime.Format(time.RFC3339Nano),
		exitTime.UnixNano(),
		strconv.FormatFloat(fees.Tier1, 'f', -1, 64),
		strconv.FormatFloat(fees.Tier2, 'f', -1, 64),
		fees.BoundaryMinutes,
		keySessionPrefix,
	}

	result, err := script.Run(ctx, s.client, keys, args...).Slice()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrNoOpenSession
		}
		return nil, err
	}
	if len(result) != 4 {
		return nil, fmt.Errorf("unexpected exit script result: %v", result)
	}

	id, err := strconv.ParseInt(fmt.Sprint(result[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	entryTime, err := time.Parse(time.RFC3339Nano, fmt.Sprint(result[1]))
	if err != nil {
		return nil, fmt.Errorf("parse entry time: %w", err)
	}
	minutes, err := strconv.Atoi(fmt.Sprint(result[2]))
	if err != nil {
		return nil, fmt.Errorf("parse duration: %w", err)
	}
	fee, err := strconv.ParseFloat(fmt.Sprint(result[3]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}

	return &storage.ExitSummary{
		SessionID:       id,
		Plate:           plate,
		EntryTime:       entryTime,
		ExitTime:        exitTime,
		DurationMinutes: minutes,
		Fee:             fee,
		Currency:        fees.Currency,
	}, nil
}

// Open returns the open session for a plate
func (s *sessionStore) Open(ctx context.Context, plate string) (*storage.ParkingSession, error) {
	id, err := s.client.Get(ctx, keyOpenPrefix+plate).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	data, err := s.client.HGetAll(ctx, keySessionPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	return parseSession(data)
}

// ListOpen returns all open sessions ordered by entry time
func (s *sessionStore) ListOpen(ctx context.Context) ([]storage.ParkingSession, error) {
	ids, err := s.client.SMembers(ctx, keySessionsOpen).Result()
	if err != nil {
		return nil, err
	}
	sessions, err := s.fetchSessions(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].EntryTime.Before(sessions[j].EntryTime) })
	return sessions, nil
}

// Recent returns the newest sessions by entry time
func (s *sessionStore) Recent(ctx context.Context, limit int) ([]storage.ParkingSession, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := s.client.ZRevRange(ctx, keySessionsByEntry, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchSessions(ctx, ids)
}

// Statistics aggregates counters from the session indexes
func (s *sessionStore) Statistics(ctx context.Context, now time.Time) (*storage.Stats, error) {
	stats := &storage.Stats{}

	total, err := s.client.ZCard(ctx, keySessionsByEntry).Result()
	if err != nil {
		return nil, err
	}
	stats.TotalCount = int(total)

	open, err := s.client.SCard(ctx, keySessionsOpen).Result()
	if err != nil {
		return nil, err
	}
	stats.OpenCount = int(open)

	unique, err := s.client.SCard(ctx, keyPlatesSeen).Result()
	if err != nil {
		return nil, err
	}
	stats.UniquePlates = int(unique)

	// Today spans midnight to midnight in the caller's location.
	year, month, day := now.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	today, err := s.client.ZCount(ctx, keySessionsByEntry,
		strconv.FormatInt(dayStart.UnixNano(), 10),
		"("+strconv.FormatInt(dayEnd.UnixNano(), 10)).Result()
	if err != nil {
		return nil, err
	}
	stats.TodayCount = int(today)

	aggregate, err := s.client.HGetAll(ctx, keySessionStats).Result()
	if err != nil {
		return nil, err
	}
	if raw, ok := aggregate["conf_count"]; ok {
		count, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && count > 0 {
			sum, err := strconv.ParseFloat(aggregate["conf_sum"], 64)
			if err == nil {
				avg := sum / float64(count)
				stats.AverageConfidence = &avg
			}
		}
	}

	return stats, nil
}

// fetchSessions retrieves session hashes in a pipeline
func (s *sessionStore) fetchSessions(ctx context.Context, ids []string) ([]storage.ParkingSession, error) {
	if len(ids) == 0 {
		return []storage.ParkingSession{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, keySessionPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sessions := make([]storage.ParkingSession, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		session, err := parseSession(data)
		if err == nil {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}
