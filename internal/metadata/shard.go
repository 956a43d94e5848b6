package metadata

import (
	"path/filepath"
	"strings"
)

const (
	metadataDir = "metadata"
	// recordZone namespaces submission records under the metadata tree,
	// leaving room for other record families later.
	recordZone = "submissions"
	// IndexFilename is the single index document at the cache root.
	IndexFilename = "submission_index.json"
)

// shardPath derives the record location for an id, relative to the cache
// root: metadata/submissions/<id[0:2]>/<id[2:4]>/<id[4:6]>/<id>.json. Short
// ids are padded so every record sits at the same depth.
func shardPath(id string) string {
	clean := cleanID(id)
	padded := clean
	if len(padded) < 6 {
		padded += strings.Repeat("_", 6-len(padded))
	}
	return filepath.Join(metadataDir, recordZone,
		padded[0:2], padded[2:4], padded[4:6], clean+".json")
}

// cleanID keeps ids safe to use as path components.
func cleanID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
