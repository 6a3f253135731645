package mailbox

import (
	"sync"
	"testing"
)

func TestPollEmptyReturnsFalse(t *testing.T) {
	m := New[int]()
	if _, ok := m.Poll(); ok {
		t.Fatal("Poll on empty mailbox should return false")
	}
}

func TestSubmitThenPollRoundTrips(t *testing.T) {
	m := New[string]()
	m.Submit("frame-1")
	v, ok := m.Poll()
	if !ok || v != "frame-1" {
		t.Fatalf("Poll() = %q, %v, want %q, true", v, ok, "frame-1")
	}
}

func TestSubmitOverwritesUnpolledValue(t *testing.T) {
	m := New[int]()
	m.Submit(1)
	m.Submit(2)
	m.Submit(3)

	v, ok := m.Poll()
	if !ok || v != 3 {
		t.Fatalf("Poll() = %d, %v, want 3, true (latest wins)", v, ok)
	}
	if _, ok := m.Poll(); ok {
		t.Fatal("second Poll with no intervening Submit should return false")
	}
}

func TestPeekDoesNotDrain(t *testing.T) {
	m := New[int]()
	m.Submit(42)

	v1, ok1 := m.Peek()
	v2, ok2 := m.Peek()
	if !ok1 || !ok2 || v1 != 42 || v2 != 42 {
		t.Fatalf("Peek should be repeatable: got (%d,%v) then (%d,%v)", v1, ok1, v2, ok2)
	}

	v3, ok3 := m.Poll()
	if !ok3 || v3 != 42 {
		t.Fatalf("Poll after Peek should still return the value once: got (%d,%v)", v3, ok3)
	}
	if _, ok := m.Poll(); ok {
		t.Fatal("Poll after drain should return false")
	}
}

func TestSubmitNeverBlocksConcurrently(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Submit(n)
		}(i)
	}
	wg.Wait()

	if _, ok := m.Poll(); !ok {
		t.Fatal("expected a value present after concurrent submits")
	}
}
