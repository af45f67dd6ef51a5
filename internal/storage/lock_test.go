package storage

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("pack:1")
			defer unlock()
			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()
			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if max != 1 {
		t.Fatalf("concurrent holders = %d, want 1", max)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()
	unlockA := km.Lock("pack:1")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("pack:2")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyedMutexPrunesReleasedKeys(t *testing.T) {
	km := newKeyedMutex()
	unlock := km.Lock("pack:1")
	unlock()
	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("lock table size = %d after release, want 0", len(km.locks))
	}
}
