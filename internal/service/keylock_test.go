package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	kl := newKeyLock()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			kl.Lock("ticket-1")
			counter++
			kl.Unlock("ticket-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyLockDifferentKeysDoNotBlock(t *testing.T) {
	kl := newKeyLock()
	kl.Lock("a")
	defer kl.Unlock("a")

	done := make(chan struct{})
	go func() {
		kl.Lock("b")
		kl.Unlock("b")
		close(done)
	}()
	<-done
}

func TestKeyLockDiscardsUnusedEntries(t *testing.T) {
	kl := newKeyLock()
	kl.Lock("a")
	kl.Unlock("a")

	kl.mu.Lock()
	defer kl.mu.Unlock()
	assert.Empty(t, kl.locks)
}
