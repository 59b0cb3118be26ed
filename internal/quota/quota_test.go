package quota

import (
	"errors"
	"sync"
	"testing"
)

func TestGate_AllowsUpToLimit(t *testing.T) {
	g := NewGate(3)
	for i := 0; i < 3; i++ {
		if err := g.Check("alice", "gpt-4o"); err != nil {
			t.Fatalf("Check() call %d error = %v", i, err)
		}
	}
	if err := g.Check("alice", "gpt-4o"); err == nil {
		t.Fatal("expected fourth call to exceed quota")
	}
}

func TestGate_ExceededErrorDetails(t *testing.T) {
	g := NewGate(1)
	if err := g.Check("bob", "claude"); err != nil {
		t.Fatalf("first call should succeed: %v", err)
	}
	err := g.Check("bob", "claude")
	if err == nil {
		t.Fatal("expected error on second call")
	}
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %T", err)
	}
	if exceeded.UserID != "bob" || exceeded.Model != "claude" {
		t.Errorf("exceeded = %+v, want user bob model claude", exceeded)
	}
	if !errors.Is(err, ErrExceeded) {
		t.Error("expected errors.Is(err, ErrExceeded) to hold")
	}
}

func TestGate_SeparateKeysAreIndependent(t *testing.T) {
	g := NewGate(1)
	if err := g.Check("alice", "gpt-4o"); err != nil {
		t.Fatalf("alice/gpt-4o: %v", err)
	}
	if err := g.Check("alice", "claude"); err != nil {
		t.Fatalf("alice/claude should be a separate bucket: %v", err)
	}
	if err := g.Check("bob", "gpt-4o"); err != nil {
		t.Fatalf("bob/gpt-4o should be a separate bucket: %v", err)
	}
}

func TestGate_ConcurrentCheckNeverOvershoots(t *testing.T) {
	const limit = 50
	g := NewGate(limit)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Check("concurrent-user", "model-x"); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Errorf("allowed = %d, want exactly %d", allowed, limit)
	}
	if got := g.Count("concurrent-user", "model-x"); got != limit {
		t.Errorf("Count() = %d, want %d", got, limit)
	}
}

func TestGate_Reset(t *testing.T) {
	g := NewGate(1)
	if err := g.Check("alice", "gpt-4o"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	g.Reset()
	if err := g.Check("alice", "gpt-4o"); err != nil {
		t.Fatalf("expected quota to be clear after Reset, got %v", err)
	}
}
