// Package metadata persists one JSON sidecar record per submission plus a
// single index mapping submission ids to record paths. Records shard across
// directories derived from the id so tens of thousands of entries never pile
// up in one directory.
package metadata

import (
	"time"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/util"
)

// Record is the sidecar document for one submission's cached asset.
// CachePath is relative to the cache root so the whole cache directory can
// be moved.
type Record struct {
	SubmissionID     string    `json:"submission_id"`
	Title            string    `json:"title"`
	Permalink        string    `json:"permalink"`
	CachePath        string    `json:"cache_path"`
	MediaURL         string    `json:"media_url"`
	MediaKind        string    `json:"media_kind,omitempty"`
	ModerationStatus string    `json:"moderation_status,omitempty"`
	Author           string    `json:"author,omitempty"`
	Subreddit        string    `json:"subreddit,omitempty"`
	Score            int       `json:"score"`
	CreatedUTC       time.Time `json:"created_utc"`
	IsGallery        bool      `json:"is_gallery,omitempty"`
	Over18           bool      `json:"over_18,omitempty"`
	LastCheckedUTC   time.Time `json:"last_checked_utc"`
}

// trackedFields are the fields whose change justifies rewriting a record on
// disk. Everything else (notably LastCheckedUTC) is bookkeeping that is not
// worth a write of its own.
type trackedFields struct {
	CachePath        string
	MediaURL         string
	ModerationStatus string
	Score            int
	Title            string
}

func (r *Record) tracked() trackedFields {
	return trackedFields{
		CachePath:        r.CachePath,
		MediaURL:         r.MediaURL,
		ModerationStatus: r.ModerationStatus,
		Score:            r.Score,
		Title:            r.Title,
	}
}

// newRecord filters a submission down to the fields a record keeps.
func newRecord(sub red_media_browser.Submission, relCachePath, mediaURL string) *Record {
	return &Record{
		SubmissionID:     sub.ID(),
		Title:            sub.Title(),
		Permalink:        sub.Permalink(),
		CachePath:        relCachePath,
		MediaURL:         mediaURL,
		MediaKind:        util.KindFromExtension(relCachePath).String(),
		ModerationStatus: sub.ModerationStatus(),
		Author:           sub.Author(),
		Subreddit:        sub.Subreddit(),
		Score:            sub.Score(),
		CreatedUTC:       sub.CreatedUTC(),
		IsGallery:        sub.IsGallery(),
		Over18:           sub.Over18(),
		LastCheckedUTC:   time.Now().UTC(),
	}
}

// Snapshot rehydrates the record into a Submission for cache browsing.
func (r *Record) Snapshot() red_media_browser.Submission {
	return red_media_browser.NewSnapshotSubmission(red_media_browser.SnapshotFields{
		ID:               r.SubmissionID,
		Title:            r.Title,
		URL:              r.MediaURL,
		Permalink:        r.Permalink,
		Author:           r.Author,
		Subreddit:        r.Subreddit,
		Score:            r.Score,
		CreatedUTC:       r.CreatedUTC,
		IsGallery:        r.IsGallery,
		Over18:           r.Over18,
		ModerationStatus: r.ModerationStatus,
	})
}
