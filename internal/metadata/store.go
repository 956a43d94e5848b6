package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/internal/sync_"
)

var ErrNoSubmissionID = errors.New("submission has no id")

// Store keeps one JSON record per submission under the cache root, plus an
// id-to-record index. All paths stored on disk are relative to the root so
// the whole cache directory can be moved wholesale.
type Store struct {
	root      string
	tolerance float64
	log       *zap.SugaredLogger

	index    *sync_.Mutexed[indexMap]
	loadOnce sync.Once

	// fileMu serializes all record-file writes, one shared lock rather
	// than per-file. Never held together with the index lock.
	fileMu sync.Mutex
	writes int64
}

type StoreOption func(*Store)

// WithRepairTolerance sets the indexed-to-present ratio below which Repair
// does a full reconciliation. Must be in (0, 1].
func WithRepairTolerance(tolerance float64) StoreOption {
	return func(s *Store) {
		s.tolerance = tolerance
	}
}

// NewStore creates a store rooted at the cache directory. Nothing is read
// from disk until the first operation that needs the index.
func NewStore(root string, options ...StoreOption) *Store {
	s := &Store{
		root:      root,
		tolerance: 0.9,
		log:       zap.S().Named("metadata"),
		index:     sync_.NewMutexed(make(indexMap)),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Store) ensureLoaded() {
	s.loadOnce.Do(func() {
		index, err := loadIndexFile(s.indexPath())
		if err != nil {
			s.log.Warnw("failed to load submission index, starting empty", "error", err)
		}
		s.index.Set(index)
	})
}

func (s *Store) indexPath() string {
	return filepath.Join(s.root, IndexFilename)
}

// Update writes or refreshes the record for sub. The write is suppressed
// when every tracked field matches the stored record; the index file is
// rewritten only when the id's entry is new or has moved.
func (s *Store) Update(sub red_media_browser.Submission, cachePath string, mediaURL string) error {
	s.ensureLoaded()
	id := sub.ID()
	if id == "" {
		return ErrNoSubmissionID
	}
	candidate := newRecord(sub, s.relativeCachePath(cachePath), mediaURL)
	recordPath := shardPath(id)

	if existing, ok := s.readRecord(recordPath); ok {
		changes, err := diff.Diff(existing.tracked(), candidate.tracked())
		if err != nil {
			s.log.Warnw("failed to diff records, writing anyway",
				"submission_id", id, "error", err)
		} else if len(changes) == 0 {
			return nil
		} else {
			for _, change := range changes {
				s.log.Debugw("record field changed",
					"submission_id", id,
					"field", strings.Join(change.Path, "."),
					"from", change.From,
					"to", change.To)
			}
		}
	}

	if err := s.writeRecord(recordPath, candidate); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", id, err)
	}
	return s.setIndexEntry(id, recordPath)
}

// Get returns the stored record for id, if any. Corrupt or missing record
// files behave as absent.
func (s *Store) Get(id string) (*Record, bool) {
	s.ensureLoaded()
	var recordPath string
	var ok bool
	_ = s.index.Locked(func(index indexMap) error {
		recordPath, ok = index[id]
		return nil
	})
	if !ok {
		return nil, false
	}
	return s.readRecord(filepath.FromSlash(recordPath))
}

// Snapshot rehydrates the stored record for id as a read-only submission.
func (s *Store) Snapshot(id string) (red_media_browser.Submission, bool) {
	record, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return record.Snapshot(), true
}

// Len is the number of indexed submissions.
func (s *Store) Len() int {
	s.ensureLoaded()
	n := 0
	_ = s.index.Locked(func(index indexMap) error {
		n = len(index)
		return nil
	})
	return n
}

// AbsoluteCachePath resolves a record's cache path against the store root.
func (s *Store) AbsoluteCachePath(record *Record) string {
	if record.CachePath == "" {
		return ""
	}
	return filepath.Join(s.root, filepath.FromSlash(record.CachePath))
}

// relativeCachePath rewrites an absolute cache path to be root-relative in
// slash form. Paths outside the root are stored as given.
func (s *Store) relativeCachePath(cachePath string) string {
	if cachePath == "" {
		return ""
	}
	rel, err := filepath.Rel(s.root, cachePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(cachePath)
	}
	return filepath.ToSlash(rel)
}

func (s *Store) readRecord(recordPath string) (*Record, bool) {
	data, err := os.ReadFile(filepath.Join(s.root, recordPath))
	if err != nil {
		return nil, false
	}
	record := &Record{}
	if err := json.Unmarshal(data, record); err != nil {
		s.log.Warnw("corrupt metadata record, treating as absent",
			"path", recordPath, "error", err)
		return nil, false
	}
	return record, true
}

func (s *Store) writeRecord(recordPath string, record *Record) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if err := writeJSONAtomic(filepath.Join(s.root, recordPath), record); err != nil {
		return err
	}
	s.writes++
	return nil
}

// recordWrites reports how many record files this store has written.
func (s *Store) recordWrites() int64 {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return s.writes
}

// setIndexEntry points id at recordPath and persists the index. On a failed
// save the in-memory entry is rolled back so a later call retries the write.
func (s *Store) setIndexEntry(id string, recordPath string) error {
	entry := filepath.ToSlash(recordPath)
	return s.index.Locked(func(index indexMap) error {
		previous, had := index[id]
		if had && previous == entry {
			return nil
		}
		index[id] = entry
		if err := writeJSONAtomic(s.indexPath(), index); err != nil {
			if had {
				index[id] = previous
			} else {
				delete(index, id)
			}
			return fmt.Errorf("failed to save index: %w", err)
		}
		return nil
	})
}

// mergeIndexEntries adds a batch of entries and persists the index once.
func (s *Store) mergeIndexEntries(entries indexMap) error {
	if len(entries) == 0 {
		return nil
	}
	return s.index.Locked(func(index indexMap) error {
		for id, entry := range entries {
			index[id] = entry
		}
		if err := writeJSONAtomic(s.indexPath(), index); err != nil {
			for id := range entries {
				delete(index, id)
			}
			return fmt.Errorf("failed to save index: %w", err)
		}
		return nil
	})
}
