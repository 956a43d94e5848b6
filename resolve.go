package red_media_browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/radialmonster/red-media-browser-sub000/cache"
	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/util"
)

// A MediaReference ties together the three names one download works with.
// Resolved may equal Original; CachePath is derived from Resolved and only
// changes again if the download reclassifies the file's extension.
type MediaReference struct {
	Original  string
	Resolved  string
	CachePath string
}

// A VideoResolverFunc is the video provider's API cascade: given a watch-page
// URL it returns a direct stream URL, or None when every tier failed.
type VideoResolverFunc = func(ctx context.Context, rawURL string) generic.Option[string]

// A PostInspectorFunc extracts an embedded third-party video reference from
// a feed post's structured JSON, or None when the post embeds nothing.
type PostInspectorFunc = func(ctx context.Context, rawURL string) generic.Option[string]

// maxInspectDepth stops a feed post that links another feed post from
// recursing forever.
const maxInspectDepth = 2

// A Pipeline turns raw submission URLs into fetchable media URLs. The
// registry covers per-provider rewriting; VideoResolver and PostInspector
// are the two provider hooks the pipeline itself sequences.
type Pipeline struct {
	Registry  *HandlerRegistry
	CacheRoot string

	// VideoHostSuffix is the provider whose non-direct URLs go through
	// VideoResolver when dispatch leaves them unresolved.
	VideoHostSuffix string
	// FeedHostSuffixes are hosts whose URLs are posts rather than media,
	// eligible for PostInspector when no handler matched.
	FeedHostSuffixes []string

	VideoResolver VideoResolverFunc
	PostInspector PostInspectorFunc

	log *zap.SugaredLogger
}

func NewPipeline(registry *HandlerRegistry, cacheRoot string) *Pipeline {
	return &Pipeline{
		Registry:         registry,
		CacheRoot:        cacheRoot,
		VideoHostSuffix:  "redgifs.com",
		FeedHostSuffixes: []string{"reddit.com"},
		log:              zap.S().Named("resolve"),
	}
}

// Resolve turns a raw submission URL into the URL to fetch. Resolution is
// best-effort: every failing stage falls back to the best URL known so far,
// so the result is always usable. A cache hit stops further rewriting.
func (p *Pipeline) Resolve(ctx context.Context, rawURL string) string {
	return p.resolve(ctx, rawURL, 0)
}

func (p *Pipeline) resolve(ctx context.Context, rawURL string, depth int) string {
	candidate := rawURL
	matched := false
	if p.Registry != nil {
		candidate, matched = p.Registry.Dispatch(ctx, rawURL)
	}
	if p.cacheHit(candidate) {
		return candidate
	}

	switch {
	case p.VideoResolver != nil && p.isVideoHost(candidate) && !util.HasMediaExtension(util.WithoutQuery(candidate)):
		if resolved := p.VideoResolver(ctx, candidate); resolved.IsSome() {
			p.logger().Debugw("video API resolved URL", "url", rawURL, "resolved", resolved.Unwrap())
			candidate = resolved.Unwrap()
		}
	case p.PostInspector != nil && !matched && depth < maxInspectDepth && p.isFeedPost(candidate):
		if embedded := p.PostInspector(ctx, candidate); embedded.IsSome() {
			p.logger().Debugw("feed post embeds third-party video", "url", rawURL, "embedded", embedded.Unwrap())
			candidate = p.resolve(ctx, embedded.Unwrap(), depth+1)
		}
	}

	return rewriteLegacyExtension(candidate)
}

// ResolveReference resolves rawURL and computes the cache path it will
// occupy.
func (p *Pipeline) ResolveReference(ctx context.Context, rawURL string) (MediaReference, error) {
	ref := MediaReference{Original: rawURL}
	if rawURL == "" {
		return ref, ErrEmptyURL
	}
	ref.Resolved = p.Resolve(ctx, rawURL)
	path, err := cache.ResolvePath(p.CacheRoot, ref.Resolved)
	if err != nil {
		return ref, fmt.Errorf("%w: %v", ErrNoCachePath, err)
	}
	ref.CachePath = path
	return ref, nil
}

// Cached reports whether a reference's media is already on disk.
func (p *Pipeline) Cached(ref MediaReference) bool {
	return ref.CachePath != "" && cache.Exists(ref.CachePath)
}

func (p *Pipeline) cacheHit(rawURL string) bool {
	if p.CacheRoot == "" {
		return false
	}
	path, err := cache.ResolvePath(p.CacheRoot, rawURL)
	return err == nil && cache.Exists(path)
}

func (p *Pipeline) isVideoHost(rawURL string) bool {
	return urlHostMatches(rawURL, p.VideoHostSuffix)
}

func (p *Pipeline) isFeedPost(rawURL string) bool {
	for _, suffix := range p.FeedHostSuffixes {
		if urlHostMatches(rawURL, suffix) {
			return true
		}
	}
	return false
}

func (p *Pipeline) logger() *zap.SugaredLogger {
	if p.log == nil {
		p.log = zap.S().Named("resolve")
	}
	return p.log
}

// rewriteLegacyExtension maps the legacy animated-image suffix to its real
// video form. Static substitution, no network.
func rewriteLegacyExtension(rawURL string) string {
	if trimmed, ok := strings.CutSuffix(util.WithoutQuery(rawURL), ".gifv"); ok {
		return trimmed + ".mp4"
	}
	return rawURL
}

func urlHostMatches(rawURL, suffix string) bool {
	if suffix == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && hostMatchesSuffix(strings.ToLower(u.Hostname()), suffix)
}
