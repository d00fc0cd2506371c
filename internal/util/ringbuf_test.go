package util

import "testing"

func TestRingBufferOverwrite(t *testing.T) {
	r := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	got := r.Snapshot()
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Fatalf("got %v", got)
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestRingBufferClear(t *testing.T) {
	r := NewRingBuffer[string](2)
	r.Push("a")
	r.Clear()
	if r.Len() != 0 || len(r.Snapshot()) != 0 {
		t.Fatal("clear left elements behind")
	}
	r.Push("b")
	if got := r.Snapshot(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("got %v", got)
	}
}
