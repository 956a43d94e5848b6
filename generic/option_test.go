package generic

import (
	"errors"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestOption(t *testing.T) {
	assert := assert_.New(t)

	some := Some("https://example.com/a.mp4")
	none := None[string]()

	assert.True(some.IsSome())
	assert.False(some.IsNone())
	assert.False(none.IsSome())
	assert.True(none.IsNone())

	assert.Equal("https://example.com/a.mp4", some.Unwrap())
	assert.Panics(func() { none.Unwrap() })

	assert.Equal("https://example.com/a.mp4", some.UnwrapOr("fallback"))
	assert.Equal("fallback", none.UnwrapOr("fallback"))
	assert.Equal("lazy", none.UnwrapOrElse(func() string { return "lazy" }))
}

func TestOptionOrElse(t *testing.T) {
	assert := assert_.New(t)

	calls := 0
	tier := func(v Option[string]) func() Option[string] {
		return func() Option[string] {
			calls++
			return v
		}
	}

	// First Some in the chain wins and later tiers are not invoked.
	got := None[string]().
		OrElse(tier(None[string]())).
		OrElse(tier(Some("hd"))).
		OrElse(tier(Some("sd")))
	assert.Equal("hd", got.Unwrap())
	assert.Equal(2, calls)
}

func TestOptionOkOr(t *testing.T) {
	assert := assert_.New(t)

	errEmpty := errors.New("no url")
	assert.Equal("x", Some("x").OkOr(errEmpty).Unwrap())
	assert.Equal(errEmpty, None[string]().OkOr(errEmpty).Error)
}
