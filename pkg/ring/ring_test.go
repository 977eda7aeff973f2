package ring

import "testing"

func TestPushEvictsOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
	got := b.Values()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values = %v, want %v", got, want)
		}
	}
}

func TestLastEmpty(t *testing.T) {
	b := New[string](2)
	if _, ok := b.Last(); ok {
		t.Fatalf("expected no last on empty buffer")
	}
}

func TestReplaceLast(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	if !b.ReplaceLast(9) {
		t.Fatalf("expected replace to succeed")
	}
	if b.Len() != 2 {
		t.Fatalf("replace must not change length, got %d", b.Len())
	}
	if v, _ := b.Last(); v != 9 {
		t.Fatalf("last = %d, want 9", v)
	}
}

func TestAtOrder(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 4; i++ {
		b.Push(i)
	}
	if b.At(0) != 2 || b.At(2) != 4 {
		t.Fatalf("At order wrong: %d %d", b.At(0), b.At(2))
	}
}

func TestReset(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("len after reset = %d", b.Len())
	}
	b.Push(7)
	if v, _ := b.Last(); v != 7 {
		t.Fatalf("push after reset broken")
	}
}
