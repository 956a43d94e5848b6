// Package youtube resolves embedded watch URLs into direct stream URLs.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/generic"
)

// Resolver turns watch URLs into direct stream URLs. Best-effort: any
// failure degrades dispatch back to the original URL.
type Resolver struct {
	// Client performs the metadata lookups. The zero value works.
	Client youtube.Client
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) generic.Result[string] {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return generic.Err[string](err)
	}
	videoID, err := extractVideoID(parsedURL)
	if err != nil {
		return generic.Err[string](err)
	}
	video, err := r.Client.GetVideoContext(ctx, watchURL(videoID))
	if err != nil {
		return generic.Err[string](fmt.Errorf("failed to get video info: %w", err))
	}
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return generic.Err[string](errors.New("no formats with audio"))
	}
	sort.SliceStable(formats, func(i, j int) bool {
		if formats[i].Height != formats[j].Height {
			return formats[i].Height > formats[j].Height
		}
		return formats[i].Bitrate > formats[j].Bitrate
	})
	if formats[0].URL == "" {
		return generic.Err[string](errors.New("stream URL needs deciphering"))
	}
	return generic.Ok(formats[0].URL)
}

func watchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// Extract video ID from a watch URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/v/{VIDEO_ID}
//	http(s?)://(www|m).youtube.com/shorts/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func extractVideoID(u *url.URL) (string, error) {
	var id string
	switch u.Hostname() {
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		switch {
		case strings.HasPrefix(u.Path, "/v/"):
			id = strings.SplitN(u.Path, "/", 3)[2]
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.SplitN(u.Path, "/", 3)[2]
		case u.Path == "/watch" || u.Path == "/details":
			if !u.Query().Has("v") {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
			id = u.Query().Get("v")
		}
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname")
	}
	if id == "" {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}

func init() {
	r := &Resolver{}
	red_media_browser.DefaultRegistry.MustAdd(red_media_browser.Handler{
		Name:    "youtube",
		Suffix:  "youtube.com",
		Resolve: r.Resolve,
	})
	red_media_browser.DefaultRegistry.MustAdd(red_media_browser.Handler{
		Name:    "youtube-shortlink",
		Suffix:  "youtu.be",
		Resolve: r.Resolve,
	})
}
