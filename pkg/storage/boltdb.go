package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	bolt "go.etcd.io/bbolt"
)

// BoltDBStorage holds the durable state of one replicated lock store node
// logstore : raft log entries (conditional sets, deletes, increments), fronted by a cache
// stablestore : raft metadata that must survive restarts (term, vote)
// snapshotstore : snapshots of keys and fencing counters
type BoltDBStorage struct {
	LogStore      raft.LogStore
	StableStore   raft.StableStore
	SnapshotStore raft.SnapshotStore

	db *raftboltdb.BoltStore
}

const (
	retainSnapshots = 3   //snapshots kept on disk
	logCacheSize    = 512 //recent entries served from memory to followers
)

func NewBoltDBStorage(dataDir string, logger hclog.Logger) (*BoltDBStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	//one bolt file serves both log and stable storage
	//a second process on the same data dir fails instead of blocking forever
	db, err := raftboltdb.New(raftboltdb.Options{
		Path:        filepath.Join(dataDir, "raft.db"),
		BoltOptions: &bolt.Options{Timeout: time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("open raft log: %w", err)
	}

	logStore, err := raft.NewLogCache(logCacheSize, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	snapshots, err := raft.NewFileSnapshotStoreWithLogger(filepath.Join(dataDir, "snapshots"), retainSnapshots, logger.Named("snapshots"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	return &BoltDBStorage{
		LogStore:      logStore,
		StableStore:   db,
		SnapshotStore: snapshots,
		db:            db,
	}, nil
}

func (b *BoltDBStorage) Close() error {
	return b.db.Close()
}
