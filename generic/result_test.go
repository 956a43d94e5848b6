package generic

import (
	"errors"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert := assert_.New(t)

	errDegraded := errors.New("handler degraded")
	ok := Ok("https://cdn.example.com/x.mp4")
	bad := Err[string](errDegraded)

	assert.True(ok.IsOk())
	assert.False(ok.IsErr())
	assert.True(bad.IsErr())

	assert.Equal("https://cdn.example.com/x.mp4", ok.Unwrap())
	assert.Panics(func() { bad.Unwrap() })
	assert.Equal("original", bad.UnwrapOr("original"))

	assert.True(ok.Ok().IsSome())
	assert.True(bad.Ok().IsNone())

	v, err := bad.Parts()
	assert.Equal("", v)
	assert.Equal(errDegraded, err)
}

func TestResultHelpers(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal(5, Unwrap(5, nil))
	assert.Panics(func() { Unwrap(0, errors.New("boom")) })
	assert.NotPanics(func() { Unwrap_(nil) })
	assert.Panics(func() { Unwrap_(errors.New("boom")) })
}
