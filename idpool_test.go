package uthreads

import (
	"errors"
	"testing"
)

func TestIDPoolAscending(t *testing.T) {
	p := newIDPool(5)

	for want := 1; want < 5; want++ {
		got, err := p.acquire()
		if err != nil {
			t.Fatalf("acquire() error = %v", err)
		}
		if got != want {
			t.Fatalf("acquire() = %d, want %d", got, want)
		}
	}
	if _, err := p.acquire(); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("acquire() on empty pool error = %v, want ErrPoolExhausted", err)
	}
}

func TestIDPoolReleaseReuseSmallest(t *testing.T) {
	p := newIDPool(6)
	for i := 0; i < 5; i++ {
		p.acquire()
	}

	for _, id := range []int{4, 2, 5} {
		if err := p.release(id); err != nil {
			t.Fatalf("release(%d) error = %v", id, err)
		}
	}
	for _, want := range []int{2, 4, 5} {
		if got, _ := p.acquire(); got != want {
			t.Fatalf("acquire() = %d, want %d", got, want)
		}
	}
}

func TestIDPoolReleaseErrors(t *testing.T) {
	p := newIDPool(3)

	if err := p.release(MainThreadID); err == nil {
		t.Fatalf("release(0) error = nil, want error")
	}
	if err := p.release(3); err == nil {
		t.Fatalf("release(3) error = nil, want out of range")
	}
	if err := p.release(1); err == nil {
		t.Fatalf("release of a free id error = nil, want error")
	}
	if got := p.available(); got != 2 {
		t.Fatalf("available() = %d, want 2", got)
	}
}

func TestIDPoolOnlyMain(t *testing.T) {
	p := newIDPool(1)
	if _, err := p.acquire(); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("acquire() error = %v, want ErrPoolExhausted", err)
	}
}
