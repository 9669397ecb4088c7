package keymutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyMutex_SerializesSameKey(t *testing.T) {
	km := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.WithLock("learner-1", func() {
				counter++
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := New()

	km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.WithLock("b", func() {})
		close(done)
	}()

	<-done
	km.Unlock("a")
}

func TestKeyMutex_EntryDroppedWhenFree(t *testing.T) {
	km := New()

	km.Lock("a")
	km.Unlock("a")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}

func TestKeyMutex_UnlockUnheldPanics(t *testing.T) {
	km := New()
	assert.Panics(t, func() { km.Unlock("never-locked") })
}
