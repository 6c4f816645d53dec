package uthreads

import "uthreads/internal/fiber"

// Switcher 是机器上下文原语：保存/恢复执行状态，以及在一块新栈上准备入口。
// 调度器只通过这个接口切换线程。
type Switcher interface {
	// Capture 把调用者自己（主线程）包装成一个上下文，不改变它的执行
	Capture() *fiber.Context
	// Make 准备一个新上下文，第一次被恢复时在 stack 上开始执行 entry
	Make(stack []byte, entry func()) *fiber.Context
	// Swap 恢复 to，并把调用者挂起在 from 中；from 再次被恢复时返回
	Swap(from, to *fiber.Context)
	// Exit 结束调用者的上下文并恢复 to，不会返回
	Exit(from, to *fiber.Context)
	// Release 丢弃一个没有在运行的上下文
	Release(c *fiber.Context)
}

// CPU 处理器：是一个模拟的「CPU」。
// CPU 在某一时刻只能跑一个线程，切换都经过这里。
type CPU struct {
	sw Switcher
}

// NewCPU 用给定的上下文原语新建 CPU，sw 为 nil 时用 goroutine 实现。
func NewCPU(sw Switcher) *CPU {
	if sw == nil {
		sw = fiber.Goroutines{}
	}
	return &CPU{sw: sw}
}

// Boot 把调用者包装成主线程的上下文
func (c *CPU) Boot(t *Thread) {
	t.ctx = c.sw.Capture()
}

// Load 为新线程准备上下文：第一次被调度时在它自己的栈上运行 entry
func (c *CPU) Load(t *Thread, entry func()) {
	t.ctx = c.sw.Make(t.stack, entry)
}

// Switch 切换 CPU 任务：挂起 prev，运行 next。
// prev 再次被调度时返回。
func (c *CPU) Switch(prev, next *Thread) {
	c.sw.Swap(prev.ctx, next.ctx)
}

// Exit 让 prev 永远离开 CPU，运行 next。不会返回。
func (c *CPU) Exit(prev, next *Thread) {
	c.sw.Exit(prev.ctx, next.ctx)
}

// Unload 回收一个不在运行的线程的上下文
func (c *CPU) Unload(t *Thread) {
	if t.ctx != nil {
		c.sw.Release(t.ctx)
		t.ctx = nil
	}
}
