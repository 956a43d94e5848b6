package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
)

func testSubmission(id string, score int) red_media_browser.Submission {
	return red_media_browser.NewSnapshotSubmission(red_media_browser.SnapshotFields{
		ID:        id,
		Title:     "A fox jumping",
		URL:       "https://files.example.com/" + id + ".mp4",
		Permalink: "/r/foxes/comments/" + id + "/a_fox_jumping/",
		Score:     score,
	})
}

func writeMedia(t *testing.T, root string, rel string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStoreUpdateSuppressesUnchangedWrites(t *testing.T) {
	assert := assert_.New(t)
	root := t.TempDir()
	store := NewStore(root)
	mediaURL := "https://files.example.com/abc123.mp4"
	cachePath := writeMedia(t, root, "files.example.com/abc123.mp4")

	assert.NoError(store.Update(testSubmission("abc123", 10), cachePath, mediaURL))
	assert.EqualValues(1, store.recordWrites())

	// Identical tracked fields: the second call must not touch disk.
	assert.NoError(store.Update(testSubmission("abc123", 10), cachePath, mediaURL))
	assert.EqualValues(1, store.recordWrites())

	// A tracked change forces a rewrite.
	assert.NoError(store.Update(testSubmission("abc123", 11), cachePath, mediaURL))
	assert.EqualValues(2, store.recordWrites())
}

func TestStoreRoundTrip(t *testing.T) {
	assert := assert_.New(t)
	root := t.TempDir()
	store := NewStore(root)
	mediaURL := "https://files.example.com/abc123.mp4"
	cachePath := writeMedia(t, root, "files.example.com/abc123.mp4")
	assert.NoError(store.Update(testSubmission("abc123", 10), cachePath, mediaURL))

	record, ok := store.Get("abc123")
	if assert.True(ok) {
		assert.Equal("abc123", record.SubmissionID)
		assert.Equal("files.example.com/abc123.mp4", record.CachePath)
		assert.Equal(mediaURL, record.MediaURL)
		assert.Equal("video", record.MediaKind)
		assert.Equal(cachePath, store.AbsoluteCachePath(record))
		assert.False(record.LastCheckedUTC.IsZero())
	}

	// A fresh store over the same root sees everything through the index.
	reopened := NewStore(root)
	record, ok = reopened.Get("abc123")
	if assert.True(ok) {
		assert.Equal("files.example.com/abc123.mp4", record.CachePath)
	}
	snapshot, ok := reopened.Snapshot("abc123")
	if assert.True(ok) {
		assert.Equal("A fox jumping", snapshot.Title())
		assert.Equal(10, snapshot.Score())
		assert.Equal(mediaURL, snapshot.URL())
	}
}

func TestStoreIndexOnDisk(t *testing.T) {
	assert := assert_.New(t)
	root := t.TempDir()
	store := NewStore(root)
	cachePath := writeMedia(t, root, "files.example.com/abc123.mp4")
	assert.NoError(store.Update(testSubmission("abc123", 1), cachePath, "https://files.example.com/abc123.mp4"))

	data, err := os.ReadFile(filepath.Join(root, IndexFilename))
	assert.NoError(err)
	index := map[string]string{}
	assert.NoError(json.Unmarshal(data, &index))
	assert.Equal(map[string]string{
		"abc123": "metadata/submissions/ab/c1/23/abc123.json",
	}, index)

	// The entry points at a real record file.
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(index["abc123"])))
	assert.NoError(err)
}

func TestStoreCorruptIndexRecovery(t *testing.T) {
	assert := assert_.New(t)
	root := t.TempDir()
	assert.NoError(os.WriteFile(filepath.Join(root, IndexFilename), []byte("{not json"), 0o644))

	store := NewStore(root)
	assert.Equal(0, store.Len())

	// The next successful save replaces the broken file.
	cachePath := writeMedia(t, root, "files.example.com/abc123.mp4")
	assert.NoError(store.Update(testSubmission("abc123", 1), cachePath, "https://files.example.com/abc123.mp4"))
	index, err := loadIndexFile(filepath.Join(root, IndexFilename))
	assert.NoError(err)
	assert.Len(index, 1)
}

func TestStoreCorruptRecordTreatedAsAbsent(t *testing.T) {
	assert := assert_.New(t)
	root := t.TempDir()
	store := NewStore(root)
	cachePath := writeMedia(t, root, "files.example.com/abc123.mp4")
	assert.NoError(store.Update(testSubmission("abc123", 1), cachePath, "https://files.example.com/abc123.mp4"))

	recordPath := filepath.Join(root, shardPath("abc123"))
	assert.NoError(os.WriteFile(recordPath, []byte("{broken"), 0o644))

	_, ok := store.Get("abc123")
	assert.False(ok)

	// An update rewrites the record from scratch.
	assert.NoError(store.Update(testSubmission("abc123", 2), cachePath, "https://files.example.com/abc123.mp4"))
	record, ok := store.Get("abc123")
	if assert.True(ok) {
		assert.Equal(2, record.Score)
	}
}

func TestStoreUpdateRejectsEmptyID(t *testing.T) {
	assert := assert_.New(t)
	store := NewStore(t.TempDir())
	sub := red_media_browser.NewSnapshotSubmission(red_media_browser.SnapshotFields{})
	assert.ErrorIs(store.Update(sub, "", ""), ErrNoSubmissionID)
}

func TestShardPath(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal(
		filepath.Join("metadata", "submissions", "ab", "c1", "23", "abc123.json"),
		shardPath("abc123"))
	// Short ids pad out to full shard depth.
	assert.Equal(
		filepath.Join("metadata", "submissions", "x_", "__", "__", "x.json"),
		shardPath("x"))
	// Hostile characters never become path separators.
	assert.Equal(
		filepath.Join("metadata", "submissions", "a_", "_b", "__", "a__b.json"),
		shardPath("a/.b"))
}
