package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultWALDir        = "./data/wal"
	walSegmentThreshold  = 1000
	walMaxSegments       = 20
	snapshotWALKeyPrefix = "rate_snapshot_"
)

// WALSnapshotRepository persists rate snapshots in a segmented write-ahead log.
type WALSnapshotRepository struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALSnapshotRepository initializes a WAL-backed snapshot store under the provided directory.
func NewWALSnapshotRepository(dir string) (*WALSnapshotRepository, error) {
	if dir == "" {
		dir = defaultWALDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init rate snapshot WAL")
	}

	return &WALSnapshotRepository{wal: wal}, nil
}

// Put appends the snapshot at the next WAL index.
func (s *WALSnapshotRepository) Put(_ context.Context, snap RateSnapshot) error {
	if snap.Base == "" {
		return errors.New("rate snapshot base is required")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal rate snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Wrap(s.wal.Write(s.wal.CurrentIndex()+1, snapshotWALKeyPrefix+snap.Base, payload), "write rate snapshot")
}

// LatestAfter walks the log backwards and returns the newest snapshot for base captured after the threshold.
func (s *WALSnapshotRepository) LatestAfter(_ context.Context, base string, after time.Time) (*RateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *RateSnapshot
	for idx := s.wal.CurrentIndex(); idx > 0; idx-- {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read rate snapshot at index %d", idx)
		}
		if key == "" {
			// older segments have been rotated away
			break
		}
		if key != snapshotWALKeyPrefix+base {
			continue
		}

		var snap RateSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, errors.Wrap(err, "decode rate snapshot")
		}
		if !snap.CapturedAt.After(after) {
			break
		}
		if latest == nil || snap.CapturedAt.After(latest.CapturedAt) {
			latest = &snap
		}
	}

	return latest, nil
}

// Close closes the underlying WAL.
func (s *WALSnapshotRepository) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

var _ SnapshotRepository = (*WALSnapshotRepository)(nil)
