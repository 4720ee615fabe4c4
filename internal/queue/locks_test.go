package queue

import (
	"sync"
	"testing"
)

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("item")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 32 {
		t.Fatalf("expected 32 increments, got %d", counter)
	}
	if size := km.size(); size != 0 {
		t.Fatalf("expected lock table to drain, got %d entries", size)
	}
}
