package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
)

// parseSession converts a Redis hash to ParkingSession
func parseSession(data map[string]string) (*storage.ParkingSession, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	id, err := strconv.ParseInt(data["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id: %w", err)
	}

	entryTime, err := time.Parse(time.RFC3339Nano, data["entry_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry_time: %w", err)
	}

	session := &storage.ParkingSession{
		ID:        id,
		Plate:     data["plate"],
		EntryTime: entryTime,
		Status:    storage.Status(data["status"]),
		ImagePath: data["image_path"],
	}

	if raw := data["exit_time"]; raw != "" {
		exitTime, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exit_time: %w", err)
		}
		session.ExitTime = &exitTime
	}

	if raw := data["duration_minutes"]; raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration_minutes: %w", err)
		}
		session.DurationMinutes = minutes
	}

	if raw := data["fee"]; raw != "" {
		fee, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fee: %w", err)
		}
		session.Fee = fee
	}

	if raw := data["confidence"]; raw != "" {
		conf, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse confidence: %w", err)
		}
		session.Confidence = &conf
	}

	return session, nil
}
