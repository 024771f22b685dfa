package pipeline

import (
	"fmt"
	"sync"
	"testing"
)

func TestSeenSetMarkIfNew(t *testing.T) {
	s := NewSeenSet([]string{"a", "b"})

	if s.MarkIfNew("a") {
		t.Error("hydrated id accepted as new")
	}
	if !s.MarkIfNew("c") {
		t.Error("fresh id rejected")
	}
	if s.MarkIfNew("c") {
		t.Error("id accepted twice")
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestSeenSetForget(t *testing.T) {
	s := NewSeenSet(nil)
	if !s.MarkIfNew("x") {
		t.Fatal("fresh id rejected")
	}

	s.Forget("x")
	if !s.MarkIfNew("x") {
		t.Error("forgotten id still rejected")
	}
}

// Overlapping extraction windows can race the same candidate; exactly
// one accept must win.
func TestSeenSetConcurrentMark(t *testing.T) {
	s := NewSeenSet(nil)

	const goroutines = 16
	const ids = 50

	var mu sync.Mutex
	accepted := make(map[string]int)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < ids; i++ {
				id := fmt.Sprintf("id-%d", i)
				if s.MarkIfNew(id) {
					mu.Lock()
					accepted[id]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if len(accepted) != ids {
		t.Fatalf("accepted %d distinct ids, want %d", len(accepted), ids)
	}
	for id, n := range accepted {
		if n != 1 {
			t.Errorf("id %s accepted %d times, want 1", id, n)
		}
	}
}
