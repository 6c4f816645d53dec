// Package fiber implements execution contexts on top of goroutines.
//
// Every context owns one goroutine. At most one of them is runnable at a time:
// a context runs only after somebody resumed it, and it parks itself again
// before resuming another. Control is handed over with a buffered wake
// channel, which also orders memory between the two goroutines.
package fiber

import (
	"runtime"
	"sync"
)

// Context is a suspended (or running) flow of control.
type Context struct {
	wake chan struct{}
	kill chan struct{}
	// done is closed once the goroutine of a made context has unwound.
	// Captured contexts have no goroutine of their own and leave it nil.
	done chan struct{}

	stack []byte

	// handoff is resumed by the exiting goroutine after its defers ran.
	handoff *Context

	killOnce sync.Once
}

func newContext() *Context {
	return &Context{
		wake: make(chan struct{}, 1),
		kill: make(chan struct{}),
	}
}

// Stack returns the stack region the context was made with.
func (c *Context) Stack() []byte {
	return c.stack
}

// resume hands control to c.
func (c *Context) resume() {
	select {
	case c.wake <- struct{}{}:
	default:
		panic("fiber: context resumed twice")
	}
}

// wait blocks until the context is resumed (true) or released (false).
func (c *Context) wait() bool {
	select {
	case <-c.wake:
		return true
	case <-c.kill:
		return false
	}
}

// Goroutines is the goroutine-backed switcher.
type Goroutines struct{}

// Capture wraps the calling goroutine. It must not be passed to Exit.
func (Goroutines) Capture() *Context {
	return newContext()
}

// Make prepares a context that starts entry on its first resume.
func (Goroutines) Make(stack []byte, entry func()) *Context {
	c := newContext()
	c.stack = stack
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		defer func() {
			if c.handoff != nil {
				c.handoff.resume()
			}
		}()
		if !c.wait() {
			return
		}
		entry()
	}()

	return c
}

// Swap resumes to and parks the caller in from until from is resumed.
// A released context never returns from Swap: its goroutine unwinds instead.
func (Goroutines) Swap(from, to *Context) {
	if from == to {
		return
	}
	to.resume()
	if !from.wait() {
		runtime.Goexit()
	}
}

// Exit ends the calling context and resumes to once the caller has unwound.
func (Goroutines) Exit(from, to *Context) {
	if from.done == nil {
		panic("fiber: Exit on a captured context")
	}
	from.handoff = to
	runtime.Goexit()
}

// Release discards a context that is not running and waits for its goroutine.
func (Goroutines) Release(c *Context) {
	c.killOnce.Do(func() { close(c.kill) })
	if c.done != nil {
		<-c.done
	}
	c.stack = nil
}
