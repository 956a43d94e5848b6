package red_media_browser

import (
	"context"
	"errors"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/radialmonster/red-media-browser-sub000/generic"
)

func rewriteTo(target string) HandlerFunc {
	return func(ctx context.Context, rawURL string) generic.Result[string] {
		return generic.Ok(target)
	}
}

func alwaysFail() HandlerFunc {
	return func(ctx context.Context, rawURL string) generic.Result[string] {
		return generic.Err[string](errors.New("provider API is down"))
	}
}

func TestRegistryLongestSuffixWins(t *testing.T) {
	assert := assert_.New(t)
	registry := &HandlerRegistry{}
	assert.NoError(registry.Create("video", "redgifs.com", rewriteTo("https://parent.example/x")))
	assert.NoError(registry.Create("video-images", "i.redgifs.com", rewriteTo("https://subdomain.example/x")))

	resolved, ok := registry.Dispatch(context.Background(), "https://i.redgifs.com/x")
	assert.True(ok)
	assert.Equal("https://subdomain.example/x", resolved)

	resolved, ok = registry.Dispatch(context.Background(), "https://www.redgifs.com/watch/x")
	assert.True(ok)
	assert.Equal("https://parent.example/x", resolved)
}

func TestRegistryAddValidation(t *testing.T) {
	assert := assert_.New(t)
	registry := &HandlerRegistry{}

	assert.ErrorIs(registry.Add(Handler{Suffix: "imgur.com"}), ErrInvalidHandler)
	assert.ErrorIs(registry.Add(Handler{Resolve: rewriteTo("x")}), ErrInvalidHandler)

	assert.NoError(registry.Create("imgur", "imgur.com", rewriteTo("x")))
	assert.ErrorIs(registry.Create("imgur-again", "imgur.com", rewriteTo("y")), ErrDuplicateHandler)
}

func TestRegistryDispatchNoMatchPassesThrough(t *testing.T) {
	assert := assert_.New(t)
	registry := &HandlerRegistry{}
	assert.NoError(registry.Create("imgur", "imgur.com", rewriteTo("rewritten")))

	resolved, ok := registry.Dispatch(context.Background(), "https://example.com/a.jpg")
	assert.False(ok)
	assert.Equal("https://example.com/a.jpg", resolved)
}

func TestRegistryDispatchHandlerFailurePassesThrough(t *testing.T) {
	assert := assert_.New(t)
	registry := &HandlerRegistry{}
	assert.NoError(registry.Create("imgur", "imgur.com", alwaysFail()))

	resolved, ok := registry.Dispatch(context.Background(), "https://imgur.com/gallery/abc")
	assert.False(ok)
	assert.Equal("https://imgur.com/gallery/abc", resolved)
}

func TestRegistryDispatchUnparsableURL(t *testing.T) {
	assert := assert_.New(t)
	registry := &HandlerRegistry{}
	assert.NoError(registry.Create("imgur", "imgur.com", rewriteTo("rewritten")))

	resolved, ok := registry.Dispatch(context.Background(), "not-a-url")
	assert.False(ok)
	assert.Equal("not-a-url", resolved)
}

func TestRegistryListMostSpecificFirst(t *testing.T) {
	assert := assert_.New(t)
	registry := &HandlerRegistry{}
	assert.NoError(registry.Create("video", "redgifs.com", rewriteTo("x")))
	assert.NoError(registry.Create("video-images", "i.redgifs.com", rewriteTo("x")))
	assert.NoError(registry.Create("imgur", "imgur.com", rewriteTo("x")))

	assert.Equal([]string{"video-images", "video", "imgur"}, registry.List())
}

func TestRegistryDispatchWith(t *testing.T) {
	assert := assert_.New(t)
	registry := &HandlerRegistry{}
	assert.NoError(registry.Create("imgur", "imgur.com", rewriteTo("rewritten")))

	resolved, err := registry.DispatchWith(context.Background(), "imgur.com", "https://anything.example/x")
	assert.NoError(err)
	assert.Equal("rewritten", resolved)

	_, err = registry.DispatchWith(context.Background(), "nope.com", "https://anything.example/x")
	assert.ErrorIs(err, ErrUnknownSuffix)
}
