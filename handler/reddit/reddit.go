// Package reddit inspects feed posts for embedded third-party video. It is
// not a dispatch handler: post URLs are only inspected when nothing else
// matched, so the pipeline drives it directly.
package reddit

import (
	"context"
	"html"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
	"github.com/radialmonster/red-media-browser-sub000/internal/scrape"
	"github.com/radialmonster/red-media-browser-sub000/util"
)

// HostSuffix identifies feed-post URLs.
const HostSuffix = "reddit.com"

// Inspector fetches a post's structured JSON representation and digs out any
// embedded third-party video reference.
type Inspector struct {
	Client *fetch.Client
	// Base overrides the feed origin, for tests. Empty keeps the post URL's
	// own origin.
	Base string

	log *zap.SugaredLogger
}

func NewInspector(client *fetch.Client) *Inspector {
	return &Inspector{Client: client}
}

// A post's JSON endpoint returns an array of listings; the first carries the
// post itself, the rest are comments.
type listing struct {
	Data struct {
		Children []struct {
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	URLOverriddenByDest string         `json:"url_overridden_by_dest"`
	SecureMedia         *embeddedMedia `json:"secure_media"`
	Media               *embeddedMedia `json:"media"`
}

type embeddedMedia struct {
	Type   string `json:"type"`
	Oembed struct {
		HTML         string `json:"html"`
		ProviderURL  string `json:"provider_url"`
		ThumbnailURL string `json:"thumbnail_url"`
	} `json:"oembed"`
}

// InspectPost returns the third-party video URL a post embeds, or None.
// Degradation (fetch failure, nothing embedded) is logged, never surfaced.
func (i *Inspector) InspectPost(ctx context.Context, rawURL string) generic.Option[string] {
	jsonURL, ok := i.structuredURL(rawURL)
	if !ok {
		return generic.None[string]()
	}
	var listings []listing
	if err := i.Client.GetJSON(ctx, jsonURL, &listings); err != nil {
		i.logger().Debugw("post inspection failed", "url", rawURL, "error", err)
		return generic.None[string]()
	}
	if len(listings) == 0 {
		return generic.None[string]()
	}
	for _, child := range listings[0].Data.Children {
		if embedded := child.Data.embeddedVideoURL(); embedded.IsSome() {
			return embedded
		}
	}
	return generic.None[string]()
}

// embeddedVideoURL prefers the oembed iframe's source, then the post's
// outbound link when it leaves the feed host.
func (d postData) embeddedVideoURL() generic.Option[string] {
	for _, m := range []*embeddedMedia{d.SecureMedia, d.Media} {
		if m == nil || m.Oembed.HTML == "" {
			continue
		}
		// The oembed markup arrives HTML-escaped inside the JSON.
		fragment := html.UnescapeString(m.Oembed.HTML)
		if src := scrape.FirstAttr(strings.NewReader(fragment), "iframe", "src"); src.IsSome() {
			return generic.Some(util.WithoutQuery(src.Unwrap()))
		}
	}
	if d.URLOverriddenByDest != "" && !isFeedURL(d.URLOverriddenByDest) {
		return generic.Some(d.URLOverriddenByDest)
	}
	return generic.None[string]()
}

// structuredURL maps a post permalink to its JSON endpoint:
// /r/sub/comments/id/slug/ becomes /r/sub/comments/id/slug.json.
func (i *Inspector) structuredURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return "", false
	}
	if !strings.HasSuffix(p, ".json") {
		p += ".json"
	}
	if i.Base != "" {
		base, err := url.Parse(i.Base)
		if err != nil {
			return "", false
		}
		u.Scheme = base.Scheme
		u.Host = base.Host
	}
	u.Path = p
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), true
}

func isFeedURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == HostSuffix || strings.HasSuffix(host, "."+HostSuffix)
}

func (i *Inspector) logger() *zap.SugaredLogger {
	if i.log == nil {
		i.log = zap.S().Named("reddit")
	}
	return i.log
}
