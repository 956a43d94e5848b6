// Package redgifs handles the video host whose image subdomain redirects to
// HTML watch pages: a dispatch handler for i.redgifs.com links, and the
// multi-tier API cascade that turns watch-page URLs into direct streams.
package redgifs

import (
	"context"
	"errors"
	"net/http"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
	"github.com/radialmonster/red-media-browser-sub000/internal/scrape"
	"github.com/radialmonster/red-media-browser-sub000/util"
)

const (
	// ImageHostSuffix is the image-serving subdomain whose links often
	// redirect to a watch page instead of the asset.
	ImageHostSuffix = "i.redgifs.com"
	// WatchHostSuffix is the provider's main domain, serving HTML watch
	// pages.
	WatchHostSuffix = "redgifs.com"
)

// ImageRedirect resolves i.redgifs.com links. A link that really is an image
// comes back unchanged; one that redirects to a watch page gets its real
// asset URL scraped out of the page's og:image tag.
type ImageRedirect struct {
	Client *fetch.Client
}

func NewImageRedirect(client *fetch.Client) *ImageRedirect {
	return &ImageRedirect{Client: client}
}

// Handler wraps the resolver for registry registration.
func (h *ImageRedirect) Handler() red_media_browser.Handler {
	return red_media_browser.Handler{
		Name:    "redgifs-images",
		Suffix:  ImageHostSuffix,
		Resolve: h.Resolve,
	}
}

func (h *ImageRedirect) Resolve(ctx context.Context, rawURL string) generic.Result[string] {
	resp, err := h.Client.Get(ctx, rawURL)
	if err != nil {
		return generic.Err[string](err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return generic.Err[string](&fetch.StatusError{Status: resp.StatusCode, URL: rawURL})
	}
	if util.KindFromContentType(resp.Header.Get("Content-Type")) != util.KindHTML {
		// The link served real media; nothing to rewrite.
		return generic.Ok(rawURL)
	}

	tags := scrape.MetaTags(resp.Body)
	extracted := scrape.FirstMeta(tags, "og:image", "twitter:image")
	if extracted.IsNone() {
		return generic.Err[string](errors.New("watch page carries no image meta tag"))
	}
	resolved := extracted.Unwrap()
	// Scraped URLs sometimes drop the extension; reuse the original's so the
	// cache path still looks like an image.
	if !util.HasImageExtension(util.WithoutQuery(resolved)) {
		if ext := util.ExtensionOf(util.WithoutQuery(rawURL)); ext != "" {
			resolved += "." + ext
		}
	}
	return generic.Ok(resolved)
}

func init() {
	red_media_browser.DefaultRegistry.MustAdd(NewImageRedirect(fetch.NewClient()).Handler())
}
