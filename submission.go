package red_media_browser

import (
	"html"
	"time"
)

// Moderation states carried through metadata bookkeeping. The feed API is
// the source of truth; these are cached copies.
const (
	ModerationUnknown  = ""
	ModerationApproved = "approved"
	ModerationRemoved  = "removed"
)

// A Submission is the unit of work handed to the pipeline: one feed post
// with a media URL to resolve and cache. Two implementations exist, one
// wrapping a live feed API object and one rehydrated from a stored metadata
// record; callers never care which they hold.
type Submission interface {
	ID() string
	Title() string
	URL() string
	Permalink() string
	Author() string
	Subreddit() string
	Score() int
	CreatedUTC() time.Time
	IsGallery() bool
	Over18() bool
	// MediaMetadata maps gallery asset ids to their best direct URL, empty
	// for non-gallery posts.
	MediaMetadata() map[string]string
	ModerationStatus() string
}

var (
	_ Submission = (*LiveSubmission)(nil)
	_ Submission = (*SnapshotSubmission)(nil)
)

// LiveSubmission wraps a feed post as decoded from the upstream API's JSON.
// Field access is lazy and tolerant: the feed omits or retypes fields freely
// and that must never panic the pipeline.
type LiveSubmission struct {
	raw map[string]any
}

func NewLiveSubmission(raw map[string]any) *LiveSubmission {
	return &LiveSubmission{raw: raw}
}

func (s *LiveSubmission) ID() string        { return s.str("id") }
func (s *LiveSubmission) Title() string     { return s.str("title") }
func (s *LiveSubmission) URL() string       { return s.str("url") }
func (s *LiveSubmission) Permalink() string { return s.str("permalink") }
func (s *LiveSubmission) Author() string    { return s.str("author") }
func (s *LiveSubmission) Subreddit() string { return s.str("subreddit") }

func (s *LiveSubmission) Score() int {
	// encoding/json decodes numbers into float64
	if f, ok := s.raw["score"].(float64); ok {
		return int(f)
	}
	return 0
}

// CreatedUTC converts the feed's epoch-seconds creation stamp. Zero when the
// field is missing or mistyped.
func (s *LiveSubmission) CreatedUTC() time.Time {
	if f, ok := s.raw["created_utc"].(float64); ok {
		return time.Unix(int64(f), 0).UTC()
	}
	return time.Time{}
}

func (s *LiveSubmission) IsGallery() bool {
	b, _ := s.raw["is_gallery"].(bool)
	return b
}

func (s *LiveSubmission) Over18() bool {
	b, _ := s.raw["over_18"].(bool)
	return b
}

// MediaMetadata flattens the feed's media_metadata object: each gallery
// asset id maps to the source variant's URL, preferring mp4 over gif over
// the plain image. The feed HTML-escapes ampersands inside these URLs.
func (s *LiveSubmission) MediaMetadata() map[string]string {
	rawMeta, ok := s.raw["media_metadata"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(rawMeta))
	for id, v := range rawMeta {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		source, ok := entry["s"].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"mp4", "gif", "u"} {
			if u, ok := source[key].(string); ok && u != "" {
				out[id] = html.UnescapeString(u)
				break
			}
		}
	}
	return out
}

func (s *LiveSubmission) ModerationStatus() string {
	if s.str("removed_by_category") != "" {
		return ModerationRemoved
	}
	if b, _ := s.raw["approved"].(bool); b {
		return ModerationApproved
	}
	return ModerationUnknown
}

// Raw exposes the underlying decoded object for field filtering by the
// metadata store.
func (s *LiveSubmission) Raw() map[string]any { return s.raw }

func (s *LiveSubmission) str(key string) string {
	v, _ := s.raw[key].(string)
	return v
}

// SnapshotFields is everything a stored metadata record can rehydrate.
type SnapshotFields struct {
	ID               string
	Title            string
	URL              string
	Permalink        string
	Author           string
	Subreddit        string
	Score            int
	CreatedUTC       time.Time
	IsGallery        bool
	Over18           bool
	ModerationStatus string
}

// SnapshotSubmission is a Submission rebuilt from a stored metadata record,
// used when browsing the cache without the feed API object.
type SnapshotSubmission struct {
	fields SnapshotFields
}

func NewSnapshotSubmission(fields SnapshotFields) *SnapshotSubmission {
	return &SnapshotSubmission{fields: fields}
}

func (s *SnapshotSubmission) ID() string                       { return s.fields.ID }
func (s *SnapshotSubmission) Title() string                    { return s.fields.Title }
func (s *SnapshotSubmission) URL() string                      { return s.fields.URL }
func (s *SnapshotSubmission) Permalink() string                { return s.fields.Permalink }
func (s *SnapshotSubmission) Author() string                   { return s.fields.Author }
func (s *SnapshotSubmission) Subreddit() string                { return s.fields.Subreddit }
func (s *SnapshotSubmission) Score() int                       { return s.fields.Score }
func (s *SnapshotSubmission) CreatedUTC() time.Time            { return s.fields.CreatedUTC }
func (s *SnapshotSubmission) IsGallery() bool                  { return s.fields.IsGallery }
func (s *SnapshotSubmission) Over18() bool                     { return s.fields.Over18 }
func (s *SnapshotSubmission) MediaMetadata() map[string]string { return nil }
func (s *SnapshotSubmission) ModerationStatus() string         { return s.fields.ModerationStatus }
