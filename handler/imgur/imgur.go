// Package imgur resolves image-host page URLs into the direct media they
// front.
package imgur

import (
	"context"
	"html"
	"net/http"
	"net/url"
	"strings"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
	"github.com/radialmonster/red-media-browser-sub000/internal/scrape"
	"github.com/radialmonster/red-media-browser-sub000/util"
)

const (
	// HostSuffix is the page-serving domain the handler registers for.
	HostSuffix = "imgur.com"
	// defaultImageHost serves direct media; single-segment fallback guesses
	// are built against it.
	defaultImageHost = "i.imgur.com"
)

// PageScraper rewrites gallery and bare-id page URLs into direct media URLs.
type PageScraper struct {
	Client *fetch.Client
	// ImageHost is the direct-media host used for fallback guesses.
	ImageHost string
}

func NewPageScraper(client *fetch.Client) *PageScraper {
	return &PageScraper{Client: client, ImageHost: defaultImageHost}
}

// Handler wraps the scraper for registry registration.
func (h *PageScraper) Handler() red_media_browser.Handler {
	return red_media_browser.Handler{
		Name:    "imgur",
		Suffix:  HostSuffix,
		Resolve: h.Resolve,
	}
}

// Resolve rewrites a page URL to the media it embeds. Page markup carries
// the asset in og:video/twitter:player (video beats image) or
// og:image/twitter:image.
func (h *PageScraper) Resolve(ctx context.Context, rawURL string) generic.Result[string] {
	// The legacy animated suffix is a static rewrite, no fetch needed.
	if trimmed, ok := strings.CutSuffix(util.WithoutQuery(rawURL), ".gifv"); ok {
		return generic.Ok(trimmed + ".mp4")
	}
	if util.HasMediaExtension(util.WithoutQuery(rawURL)) {
		return generic.Ok(rawURL)
	}

	resp, err := h.Client.Get(ctx, rawURL)
	if err != nil {
		return h.fallback(rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return h.fallback(rawURL, &fetch.StatusError{Status: resp.StatusCode, URL: rawURL})
	}

	switch util.KindFromContentType(resp.Header.Get("Content-Type")) {
	case util.KindImage, util.KindVideo:
		// The page URL served media after all; keep the redirect target.
		return generic.Ok(resp.Request.URL.String())
	case util.KindHTML:
		tags := scrape.MetaTags(resp.Body)
		if extracted := scrape.FirstMeta(tags,
			"og:video", "twitter:player", "og:image", "twitter:image"); extracted.IsSome() {
			return generic.Ok(normalize(extracted.Unwrap()))
		}
	}
	if guess, ok := h.singleSegmentGuess(rawURL); ok {
		return generic.Ok(guess)
	}
	return generic.Ok(rawURL)
}

// fallback covers fetch-level failure: guess the direct URL when the page
// path allows it, otherwise surface the cause.
func (h *PageScraper) fallback(rawURL string, cause error) generic.Result[string] {
	if guess, ok := h.singleSegmentGuess(rawURL); ok {
		return generic.Ok(guess)
	}
	return generic.Err[string](cause)
}

// singleSegmentGuess constructs the direct-media URL for bare one-segment
// page paths: https://imgur.com/AbCd123 is usually
// https://i.imgur.com/AbCd123.jpg.
func (h *PageScraper) singleSegmentGuess(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) != 1 || strings.Contains(segments[0], ".") {
		return "", false
	}
	return "https://" + h.ImageHost + "/" + segments[0] + ".jpg", true
}

// normalize unescapes HTML entities and strips tracking query parameters
// from a scraped URL.
func normalize(mediaURL string) string {
	return util.WithoutQuery(html.UnescapeString(mediaURL))
}

func init() {
	red_media_browser.DefaultRegistry.MustAdd(NewPageScraper(fetch.NewClient()).Handler())
}
