package sync_

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestMutexedSimple(t *testing.T) {
	assert := assert_.New(t)
	m := NewMutexed(map[string]string{"t3_abc": "meta/ab/c.json"})
	assert.Equal("meta/ab/c.json", m.Get()["t3_abc"])
	_ = m.Locked(func(v map[string]string) error {
		v["t3_def"] = "meta/de/f.json"
		return nil
	})
	assert.Len(m.Get(), 2)
}

func TestRWMutexedSimple(t *testing.T) {
	assert := assert_.New(t)
	rw := NewRWMutexed(123)
	assert.Equal(123, rw.Get())
	assert.Equal(123, rw.Swap(456))
	assert.Equal(456, rw.Get())
	rw.Set(789)
	assert.Equal(789, rw.Get())
}

func TestRWMutexedRace(t *testing.T) {
	assert := assert_.New(t)
	rw := NewRWMutexed(new(int))
	start := NewEvent()
	wg := sync.WaitGroup{}

	// Increment by 2500 with 50 goroutines in parallel
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start.Wait()
			for j := 0; j < 50; j++ {
				_ = rw.Locked(func(v *int) error {
					*v = *v + 1
					return nil
				})
			}
		}()
	}

	// Read 2500 times with another 50 goroutines in parallel
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start.Wait()
			for j := 0; j < 50; j++ {
				_ = rw.RLocked(func(v *int) error {
					_ = *v
					return nil
				})
			}
		}()
	}

	start.Set()
	wg.Wait()

	assert.Equal(2500, *rw.Get())
}
