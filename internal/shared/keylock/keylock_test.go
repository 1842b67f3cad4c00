package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New[string]()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("A01|2026-02-01")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, m.Len())
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	m := New[string]()

	unlockA := m.Lock("A01|2026-02-01")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock("A01|2026-02-02")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestUnlockTwice(t *testing.T) {
	m := New[int]()
	unlock := m.Lock(7)
	unlock()
	unlock()
	assert.Equal(t, 0, m.Len())
}
