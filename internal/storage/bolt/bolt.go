package bolt

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodtune/parkgate/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketSessions    = "sessions"
	bucketOpenByPlate = "open_by_plate"
	bucketEvents      = "events"
	bucketIndexes     = "indexes"
	bucketIndexEvents = "events"
	bucketIndexPlate  = "plate"
	bucketIndexLane   = "lane"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			[]byte(bucketSessions),
			[]byte(bucketOpenByPlate),
			[]byte(bucketEvents),
			[]byte(bucketIndexes),
		}

		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		indexes := tx.Bucket([]byte(bucketIndexes))
		if indexes == nil {
			return fmt.Errorf("indexes bucket missing")
		}
		if _, err := indexes.CreateBucketIfNotExists([]byte(bucketIndexEvents)); err != nil {
			return fmt.Errorf("create event indexes: %w", err)
		}

		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the parking session store.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{db: s.db} }

// Events returns the recognition event store.
func (s *Store) Events() storage.EventStore { return &eventStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// eventKey yields keys that sort by timestamp so cursor scans walk events in
// time order.
func eventKey(ts time.Time) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%020d-%s", ts.UnixNano(), suffix), nil
}

// sessionKey zero-pads the sequence id so keys sort in insertion order.
func sessionKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}

func ensureIndexBucket(tx *bbolt.Tx, path ...string) (*bbolt.Bucket, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty index bucket path")
	}
	root := tx.Bucket([]byte(bucketIndexes))
	if root == nil {
		return nil, fmt.Errorf("indexes bucket missing")
	}
	current := root
	for _, part := range path {
		bucket := current.Bucket([]byte(part))
		if bucket == nil {
			var err error
			bucket, err = current.CreateBucketIfNotExists([]byte(part))
			if err != nil {
				return nil, err
			}
		}
		current = bucket
	}
	return current, nil
}

func indexBucket(tx *bbolt.Tx, path ...string) *bbolt.Bucket {
	root := tx.Bucket([]byte(bucketIndexes))
	if root == nil {
		return nil
	}
	current := root
	for _, part := range path {
		current = current.Bucket([]byte(part))
		if current == nil {
			return nil
		}
	}
	return current
}

func normalizeIndexKey(value string) string {
	if value == "" {
		return "unknown"
	}
	return strings.ToLower(value)
}
