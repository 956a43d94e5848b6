package red_media_browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/radialmonster/red-media-browser-sub000/cache"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
	"github.com/radialmonster/red-media-browser-sub000/internal/scrape"
	"github.com/radialmonster/red-media-browser-sub000/util"
)

var (
	ErrEmptyURL         = errors.New("download URL is empty")
	ErrNoCachePath      = errors.New("no cache path for URL")
	ErrExtractionFailed = errors.New("failed to extract media URL from watch page")
)

// HTTPError is a download that reached the server and was refused.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.Status, e.URL)
}

// An Executor streams media URLs into the cache. One Executor serves all
// download tasks; it holds no per-download state.
type Executor struct {
	CacheRoot string
	Client    *fetch.Client

	// ChunkSize is the copy buffer size used when streaming bodies to disk.
	ChunkSize int

	// ImageHostSuffix and WatchHostSuffix describe the disguised-media
	// redirect: a fetch that starts on the image host but lands on the
	// watch host with an HTML body hit a redirect artifact, not the asset.
	ImageHostSuffix string
	WatchHostSuffix string

	// VideoHostSuffix's CDN refuses requests without a Referer.
	VideoHostSuffix string

	log *zap.SugaredLogger
}

func NewExecutor(cacheRoot string, client *fetch.Client) *Executor {
	return &Executor{
		CacheRoot:       cacheRoot,
		Client:          client,
		ChunkSize:       64 * 1024,
		ImageHostSuffix: "i.redgifs.com",
		WatchHostSuffix: "redgifs.com",
		VideoHostSuffix: "redgifs.com",
		log:             zap.S().Named("download"),
	}
}

// Download streams rawURL into the cache and returns the final file path,
// which may differ from the pre-download path by a corrected extension.
// onProgress, when non-nil, receives strictly increasing percentages in
// 0-100; it is skipped entirely when the response length is unknown.
//
// Existence is checked only by callers before starting; two concurrent
// downloads of one asset are legal and converge via the reclassification
// rename semantics.
func (e *Executor) Download(ctx context.Context, rawURL string, onProgress func(percent int)) (string, error) {
	if rawURL == "" {
		return "", ErrEmptyURL
	}
	dest, err := cache.ResolvePath(e.CacheRoot, rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCachePath, err)
	}
	if err := cache.EnsureParentDir(dest); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	resp, err := e.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if e.isDisguisedRedirect(rawURL, resp) {
		resp, err = e.refetchDisguised(ctx, resp)
		if err != nil {
			return "", err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Status: resp.StatusCode, URL: resp.Request.URL.String()}
	}

	if err := e.saveStream(ctx, dest, resp, onProgress); err != nil {
		return "", err
	}

	return e.reclassify(dest, resp.Header.Get("Content-Type"))
}

func (e *Executor) get(ctx context.Context, rawURL string) (*http.Response, error) {
	var opts []fetch.RequestOption
	if urlHostMatches(rawURL, e.VideoHostSuffix) {
		opts = append(opts, fetch.WithReferer("https://www."+e.VideoHostSuffix+"/"))
	}
	return e.Client.Get(ctx, rawURL, opts...)
}

// isDisguisedRedirect recognizes the provider artifact where an image URL
// redirects to the HTML watch page for the same asset.
func (e *Executor) isDisguisedRedirect(rawURL string, resp *http.Response) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if util.KindFromContentType(resp.Header.Get("Content-Type")) != util.KindHTML {
		return false
	}
	origin, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	originHost := strings.ToLower(origin.Hostname())
	finalHost := strings.ToLower(resp.Request.URL.Hostname())
	return hostMatchesSuffix(originHost, e.ImageHostSuffix) &&
		hostMatchesSuffix(finalHost, e.WatchHostSuffix) &&
		!hostMatchesSuffix(finalHost, e.ImageHostSuffix)
}

// refetchDisguised scrapes the real image URL out of the watch page and
// fetches that instead, consuming and closing the page response. Failure to
// extract is a hard error: there is no asset to fall back to.
func (e *Executor) refetchDisguised(ctx context.Context, page *http.Response) (*http.Response, error) {
	tags := scrape.MetaTags(page.Body)
	page.Body.Close()
	extracted := scrape.FirstMeta(tags, "og:image", "twitter:image")
	if extracted.IsNone() {
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, page.Request.URL)
	}
	e.logger().Debugw("disguised media redirect, following extracted URL",
		"page_url", page.Request.URL.String(), "extracted", extracted.Unwrap())
	return e.get(ctx, extracted.Unwrap())
}

func (e *Executor) saveStream(ctx context.Context, dest string, resp *http.Response, onProgress func(int)) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if onProgress != nil && resp.ContentLength > 0 {
		// progress counter is the last writer, so failed writes are never
		// counted
		w = io.MultiWriter(f, &progressCounter{
			expected: resp.ContentLength,
			report:   onProgress,
		})
	}
	buf := make([]byte, e.chunkSize())
	if _, err := io.CopyBuffer(w, &readerContext{ctx: ctx, r: resp.Body}, buf); err != nil {
		// don't leave a partial file where a cache check would trust it
		_ = os.Remove(dest)
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return nil
}

// reclassify corrects dest's extension when the observed content type
// disagrees with what the URL promised. The rename follows
// last-writer-loses semantics: when the corrected target already exists, a
// concurrent download of the same asset won, and this redundant copy is
// deleted instead of overwriting the winner.
func (e *Executor) reclassify(dest string, contentType string) (string, error) {
	actual := util.KindFromContentType(contentType)
	if actual != util.KindImage && actual != util.KindVideo {
		// non-media content types never stamp their extension onto a cache
		// path
		return dest, nil
	}
	ext := util.ExtensionForContentType(contentType)
	if ext == "" || ext == util.ExtensionOf(dest) {
		return dest, nil
	}
	renamed := strings.TrimSuffix(dest, filepath.Ext(dest)) + "." + ext
	if renamed == dest {
		return dest, nil
	}

	if cache.Exists(renamed) {
		e.logger().Debugw("reclassified target already cached, dropping duplicate", "path", renamed)
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return renamed, fmt.Errorf("failed to remove duplicate download: %w", err)
		}
		return renamed, nil
	}
	if err := os.Rename(dest, renamed); err != nil {
		if cache.Exists(renamed) {
			// lost the race between the existence check and the rename
			_ = os.Remove(dest)
			return renamed, nil
		}
		return dest, fmt.Errorf("failed to rename %s: %w", dest, err)
	}
	e.logger().Debugw("reclassified download", "from", dest, "to", renamed, "content_type", contentType)
	return renamed, nil
}

func (e *Executor) chunkSize() int {
	if e.ChunkSize <= 0 {
		return 64 * 1024
	}
	return e.ChunkSize
}

func (e *Executor) logger() *zap.SugaredLogger {
	if e.log == nil {
		e.log = zap.S().Named("download")
	}
	return e.log
}

// progressCounter converts byte counts into whole-percent progress reports,
// strictly increasing and capped at 100.
type progressCounter struct {
	expected   int64
	downloaded int64
	last       int
	report     func(int)
}

func (p *progressCounter) Write(b []byte) (int, error) {
	p.downloaded += int64(len(b))
	percent := int(p.downloaded * 100 / p.expected)
	if percent > 100 {
		percent = 100
	}
	if percent > p.last {
		p.last = percent
		p.report(percent)
	}
	return len(b), nil
}
