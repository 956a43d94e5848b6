// Package handlers registers every provider handler into the default
// registry and assembles the default resolution pipeline.
package handlers

import (
	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/handler/reddit"
	"github.com/radialmonster/red-media-browser-sub000/handler/redgifs"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"

	_ "github.com/radialmonster/red-media-browser-sub000/handler/imgur"
	_ "github.com/radialmonster/red-media-browser-sub000/handler/youtube"
)

// NewDefaultPipeline wires the default registry (populated by this package's
// imports) together with the two provider hooks that are not dispatch
// handlers: the redgifs API cascade and the reddit post inspector.
func NewDefaultPipeline(cacheRoot string, client *fetch.Client) *red_media_browser.Pipeline {
	if client == nil {
		client = fetch.NewClient()
	}
	p := red_media_browser.NewPipeline(&red_media_browser.DefaultRegistry, cacheRoot)
	p.VideoResolver = redgifs.NewAPI(client).ResolveVideo
	p.PostInspector = reddit.NewInspector(client).InspectPost
	return p
}
