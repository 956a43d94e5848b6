package metadata

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/util"
)

// Repair reconciles the index with what is actually on disk. Media files no
// record claims get a synthesized record and index entry, so the browser can
// still surface downloads whose metadata was lost. Returns how many entries
// were added.
//
// A full reconciliation reads every record, so unless force is set it only
// runs when the indexed-to-present ratio drops below the store's tolerance.
func (s *Store) Repair(force bool) (int, error) {
	s.ensureLoaded()

	files, walkErr := s.mediaFiles()
	if len(files) == 0 {
		return 0, walkErr
	}

	indexed := s.Len()
	ratio := float64(indexed) / float64(len(files))
	if !force && ratio >= s.tolerance {
		s.log.Debugw("repair not needed",
			"indexed", indexed, "present", len(files), "ratio", ratio)
		return 0, walkErr
	}

	result := walkErr
	claimed := s.claimedCachePaths()
	added := 0
	entries := make(indexMap)
	for _, cachePath := range files {
		if claimed.Contains(cachePath) {
			continue
		}
		id := syntheticID(cachePath)
		record := &Record{
			SubmissionID:   id,
			Title:          path.Base(cachePath),
			CachePath:      cachePath,
			MediaKind:      util.KindFromExtension(cachePath).String(),
			LastCheckedUTC: time.Now().UTC(),
		}
		recordPath := shardPath(id)
		if err := s.writeRecord(recordPath, record); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		entries[id] = filepath.ToSlash(recordPath)
		added++
	}
	if err := s.mergeIndexEntries(entries); err != nil {
		result = multierror.Append(result, err)
	}
	s.log.Infow("repair complete",
		"added", added, "present", len(files), "previously_indexed", indexed)
	return added, result
}

// mediaFiles walks the cache root collecting relative slash paths of every
// media file outside the metadata tree. Walk errors are aggregated rather
// than aborting, so one unreadable directory doesn't hide the rest.
func (s *Store) mediaFiles() ([]string, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, nil
	}
	var files []string
	var result error
	metadataRoot := filepath.Join(s.root, metadataDir)
	walkErr := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		if d.IsDir() {
			if p == metadataRoot {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == IndexFilename || !util.HasMediaExtension(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if walkErr != nil {
		result = multierror.Append(result, walkErr)
	}
	return files, result
}

// claimedCachePaths reads every indexed record and collects the cache paths
// they point at.
func (s *Store) claimedCachePaths() generic.Set[string] {
	var recordPaths []string
	_ = s.index.Locked(func(index indexMap) error {
		recordPaths = make([]string, 0, len(index))
		for _, entry := range index {
			recordPaths = append(recordPaths, entry)
		}
		return nil
	})
	claimed := generic.NewSet[string]()
	for _, recordPath := range recordPaths {
		if record, ok := s.readRecord(filepath.FromSlash(recordPath)); ok && record.CachePath != "" {
			claimed.Add(record.CachePath)
		}
	}
	return claimed
}

// syntheticID derives a stable id for an orphaned file, so repeated repairs
// converge on the same record instead of minting duplicates.
func syntheticID(cachePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(cachePath)).String()
}
