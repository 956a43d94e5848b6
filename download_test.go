package red_media_browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/radialmonster/red-media-browser-sub000/cache"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
)

// routeTransport sends every request to one test server while preserving the
// original host for dispatch, so tests can exercise real domain names.
type routeTransport struct {
	target string
}

func (t *routeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Host = req.URL.Host
	clone.URL.Scheme = "http"
	clone.URL.Host = t.target
	resp, err := http.DefaultTransport.RoundTrip(clone)
	if resp != nil {
		// the transport stamps the response with the rewritten clone; restore
		// the logical request so resp.Request.URL reports the real domain, as
		// it would off a real transport
		resp.Request = req
	}
	return resp, err
}

func routedClient(server *httptest.Server) *fetch.Client {
	return fetch.NewClient(fetch.WithHTTPClient(&http.Client{
		Transport: &routeTransport{target: server.Listener.Addr().String()},
	}))
}

func TestDownloadStreamsToCache(t *testing.T) {
	assert := assert_.New(t)
	payload := bytes.Repeat([]byte("x"), 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	root := t.TempDir()
	e := NewExecutor(root, fetch.NewClient())
	e.ChunkSize = 1024

	var percents []int
	path, err := e.Download(context.Background(), server.URL+"/media/clip.mp4", func(p int) {
		percents = append(percents, p)
	})
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "127.0.0.1", "clip.mp4"), path)

	data, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Equal(payload, data)

	assert.NotEmpty(percents)
	assert.Equal(100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.Greater(percents[i], percents[i-1], "progress must be strictly increasing")
	}
}

func TestDownloadEmptyURL(t *testing.T) {
	assert := assert_.New(t)
	e := NewExecutor(t.TempDir(), fetch.NewClient())
	_, err := e.Download(context.Background(), "", nil)
	assert.ErrorIs(err, ErrEmptyURL)
}

func TestDownloadHTTPError(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	root := t.TempDir()
	e := NewExecutor(root, fetch.NewClient())
	_, err := e.Download(context.Background(), server.URL+"/missing.jpg", nil)

	var httpErr *HTTPError
	assert.ErrorAs(err, &httpErr)
	assert.Equal(http.StatusNotFound, httpErr.Status)
	assert.False(cache.Exists(filepath.Join(root, "127.0.0.1", "missing.jpg")))
}

func TestDownloadReclassifiesMismatchedExtension(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("really a video"))
	}))
	defer server.Close()

	root := t.TempDir()
	e := NewExecutor(root, fetch.NewClient())
	path, err := e.Download(context.Background(), server.URL+"/clip.jpg", nil)
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "127.0.0.1", "clip.mp4"), path)
	assert.True(cache.Exists(path))
	assert.False(cache.Exists(filepath.Join(root, "127.0.0.1", "clip.jpg")))
}

func TestDownloadKeepsMatchingExtension(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg bytes"))
	}))
	defer server.Close()

	root := t.TempDir()
	e := NewExecutor(root, fetch.NewClient())
	path, err := e.Download(context.Background(), server.URL+"/pic.jpg", nil)
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "127.0.0.1", "pic.jpg"), path)
}

func TestDownloadDisguisedMediaRedirect(t *testing.T) {
	assert := assert_.New(t)
	pngPayload := []byte("png bytes for the real asset")
	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host {
		case "i.redgifs.com":
			gotReferer = r.Header.Get("Referer")
			http.Redirect(w, r, "https://www.redgifs.com/watch/fox", http.StatusMovedPermanently)
		case "www.redgifs.com":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><meta property="og:image" content="https://files.redgifs.com/fox.png"/></head><body></body></html>`)
		case "files.redgifs.com":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngPayload)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	root := t.TempDir()
	e := NewExecutor(root, routedClient(server))
	path, err := e.Download(context.Background(), "https://i.redgifs.com/i/fox.jpg", nil)
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "i.redgifs.com", "fox.png"), path)
	assert.Equal("https://www.redgifs.com/", gotReferer)

	data, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Equal(pngPayload, data)
	assert.False(cache.Exists(filepath.Join(root, "i.redgifs.com", "fox.jpg")))
}

func TestDownloadDisguisedExtractionFailure(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host {
		case "i.redgifs.com":
			http.Redirect(w, r, "https://www.redgifs.com/watch/fox", http.StatusMovedPermanently)
		case "www.redgifs.com":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>no meta tags at all</title></head></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	e := NewExecutor(t.TempDir(), routedClient(server))
	_, err := e.Download(context.Background(), "https://i.redgifs.com/i/fox.jpg", nil)
	assert.ErrorIs(err, ErrExtractionFailed)
}

func TestReclassifyConcurrentRenames(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	e := NewExecutor(dir, nil)
	src := filepath.Join(dir, "a.jpg")
	assert.NoError(os.WriteFile(src, []byte("png bytes"), 0o644))

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.reclassify(src, "image/png")
		}()
	}
	wg.Wait()

	target := filepath.Join(dir, "a.png")
	assert.NoError(errs[0])
	assert.NoError(errs[1])
	assert.Equal(target, results[0])
	assert.Equal(target, results[1])
	assert.True(cache.Exists(target))
	assert.False(cache.Exists(src), "no pre-rename file may survive")
}

func TestReclassifyLoserDeletesDuplicate(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	e := NewExecutor(dir, nil)
	src := filepath.Join(dir, "a.jpg")

	assert.NoError(os.WriteFile(src, []byte("winner"), 0o644))
	target, err := e.reclassify(src, "image/png")
	assert.NoError(err)
	assert.Equal(filepath.Join(dir, "a.png"), target)

	// a slower download of the same asset finishes at the old path
	assert.NoError(os.WriteFile(src, []byte("loser"), 0o644))
	again, err := e.reclassify(src, "image/png")
	assert.NoError(err)
	assert.Equal(target, again)

	data, err := os.ReadFile(target)
	assert.NoError(err)
	assert.Equal([]byte("winner"), data, "the loser must not overwrite the winner")
	assert.False(cache.Exists(src))
}

func TestDownloadAfterLegacyRewrite(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4 bytes"))
	}))
	defer server.Close()

	root := t.TempDir()
	p := NewPipeline(&HandlerRegistry{}, root)
	e := NewExecutor(root, fetch.NewClient())

	resolved := p.Resolve(context.Background(), server.URL+"/cat.gifv")
	assert.Equal(server.URL+"/cat.mp4", resolved)

	path, err := e.Download(context.Background(), resolved, nil)
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "127.0.0.1", "cat.mp4"), path)
}
