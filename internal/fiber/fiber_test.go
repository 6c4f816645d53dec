package fiber

import (
	"reflect"
	"testing"
)

func TestSwapPingPong(t *testing.T) {
	var sw Goroutines
	main := sw.Capture()

	var trace []string
	var worker *Context
	worker = sw.Make(make([]byte, 16), func() {
		for i := 0; i < 3; i++ {
			trace = append(trace, "worker")
			sw.Swap(worker, main)
		}
		sw.Exit(worker, main)
	})

	for i := 0; i < 3; i++ {
		trace = append(trace, "main")
		sw.Swap(main, worker)
	}
	trace = append(trace, "main")
	sw.Swap(main, worker) // worker leaves its loop and exits back to main
	sw.Release(worker)

	want := []string{"main", "worker", "main", "worker", "main", "worker", "main"}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
}

func TestExitRunsDefersBeforeHandoff(t *testing.T) {
	var sw Goroutines
	main := sw.Capture()

	var trace []string
	var worker *Context
	worker = sw.Make(nil, func() {
		defer func() { trace = append(trace, "deferred") }()
		trace = append(trace, "body")
		sw.Exit(worker, main)
		trace = append(trace, "unreachable")
	})

	sw.Swap(main, worker)
	trace = append(trace, "main")
	sw.Release(worker)

	want := []string{"body", "deferred", "main"}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
}

func TestReleaseNeverStarted(t *testing.T) {
	var sw Goroutines
	ran := false
	c := sw.Make(make([]byte, 8), func() { ran = true })
	if got := len(c.Stack()); got != 8 {
		t.Fatalf("len(Stack()) = %d, want 8", got)
	}

	sw.Release(c)

	if ran {
		t.Fatalf("entry ran after Release of a never started context")
	}
	if c.Stack() != nil {
		t.Fatalf("Stack() = %v after Release, want nil", c.Stack())
	}
}

func TestReleaseParked(t *testing.T) {
	var sw Goroutines
	main := sw.Capture()

	unwound := false
	var worker *Context
	worker = sw.Make(nil, func() {
		defer func() { unwound = true }()
		sw.Swap(worker, main)
		t.Errorf("released context resumed")
	})

	sw.Swap(main, worker)
	sw.Release(worker)

	if !unwound {
		t.Fatalf("parked context did not unwind on Release")
	}
}

func TestSwapToSelf(t *testing.T) {
	var sw Goroutines
	main := sw.Capture()
	sw.Swap(main, main) // must not block
}
