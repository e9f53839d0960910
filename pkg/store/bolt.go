package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"
	"github.com/pixperk/quorumlock/pkg/fsm"
	bolt "go.etcd.io/bbolt"
)

var (
	locksBucket    = []byte("locks")
	countersBucket = []byte("counters")
)

// BoltBackend is a durable single-node lock store.
// Expiry is kept as wall-clock deadlines so keys survive restarts with their ttl intact.
// Counters are nested buckets, each increment is the bucket's NextSequence.
type BoltBackend struct {
	db     *bolt.DB
	clock  clock.Clock
	logger hclog.Logger
}

type boltEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func OpenBoltBackend(path string, clk clock.Clock) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.WallClock
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(locksBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(countersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltBackend{db: db, clock: clk, logger: hclog.NewNullLogger()}, nil
}

func (b *BoltBackend) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("ttl %s: must be positive", ttl)
	}

	created := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(locksBucket)
		now := b.clock.Now()

		if raw := bucket.Get([]byte(key)); raw != nil {
			var existing boltEntry
			if err := json.Unmarshal(raw, &existing); err != nil {
				return err
			}
			if now.Before(existing.ExpiresAt) {
				return nil
			}
		}

		data, err := json.Marshal(boltEntry{Value: value, ExpiresAt: now.Add(ttl)})
		if err != nil {
			return err
		}
		created = true
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (b *BoltBackend) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	deleted := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(locksBucket)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}

		var existing boltEntry
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		if !b.clock.Now().Before(existing.ExpiresAt) {
			//expired, drop it but it was not ours to delete
			return bucket.Delete([]byte(key))
		}
		if existing.Value != expected {
			return nil
		}

		deleted = true
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (b *BoltBackend) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(locksBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var existing boltEntry
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		if b.clock.Now().Before(existing.ExpiresAt) {
			value, found = existing.Value, true
		}
		return nil
	})
	return value, found, err
}

func (b *BoltBackend) Increment(_ context.Context, key string) (uint64, error) {
	var next uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		counter, err := tx.Bucket(countersBucket).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		next, err = counter.NextSequence()
		return err
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// removes expired keys, returns how many were removed
func (b *BoltBackend) Sweep(context.Context) (int, error) {
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(locksBucket)
		now := b.clock.Now()

		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var entry boltEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if !now.Before(entry.ExpiresAt) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// key counts, expired keys not yet swept included
// SetLogger routes the backend's own warnings, nil silences them.
func (b *BoltBackend) SetLogger(logger hclog.Logger) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	b.logger = logger
}

// ReadStats counts live lock keys and counters.
func (b *BoltBackend) ReadStats() (fsm.Stats, error) {
	var stats fsm.Stats
	err := b.db.View(func(tx *bolt.Tx) error {
		stats.Keys = tx.Bucket(locksBucket).Stats().KeyN
		return tx.Bucket(countersBucket).ForEach(func(_, v []byte) error {
			if v == nil {
				stats.Counters++
			}
			return nil
		})
	})
	if err != nil {
		return fsm.Stats{}, fmt.Errorf("read stats: %w", err)
	}
	return stats, nil
}

// Stats is ReadStats for status reporting, a failed read is logged and reported as empty.
func (b *BoltBackend) Stats() fsm.Stats {
	stats, err := b.ReadStats()
	if err != nil {
		b.logger.Warn("stats unavailable", "error", err)
	}
	return stats
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
