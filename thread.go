package uthreads

import (
	"fmt"

	"uthreads/internal/fiber"
)

// State 是线程的生命周期状态。
// 线程结束不是一个状态：结束的线程直接从调度器里删掉。
type State int

const (
	StateRunning State = iota
	StateReady
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateReady:
		return "READY"
	case StateBlocked:
		return "BLOCKED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Thread 线程控制块 (TCB)：一个可调度线程的全部状态。
// 所有字段都只在调度器的临界区里读写。
type Thread struct {
	id    int
	state State

	// ctx 是保存的执行上下文
	ctx *fiber.Context
	// stack 线程独占的栈，主线程没有（用调用者自己的栈）
	stack Stack

	// quantums 作为 RUNNING 线程经历过的时间片数
	quantums int
	// sleep 离自动唤醒还剩的时间片数，0 表示没在睡
	sleep int

	entry func()

	// terminating 线程自己结束了自己，等下一次切换完成后再删除
	terminating bool
}

// newMainThread 主线程：id 0，正在运行，已经用掉了第一个时间片
func newMainThread() *Thread {
	return &Thread{
		id:       MainThreadID,
		state:    StateRunning,
		quantums: 1,
	}
}

// newThread 新线程：就绪，还没运行过
func newThread(id int, stack Stack, entry func()) *Thread {
	return &Thread{
		id:    id,
		state: StateReady,
		stack: stack,
		entry: entry,
	}
}

// Id 线程 ID
func (t *Thread) Id() int { return t.id }

// State 线程状态
func (t *Thread) State() State { return t.state }

// Quantums 线程运行过的时间片数
func (t *Thread) Quantums() int { return t.quantums }

// Sleeping 线程是否还在睡
func (t *Thread) Sleeping() bool { return t.sleep > 0 }

func (t *Thread) String() string {
	return fmt.Sprintf("Thread{id=%d, state=%s, quantums=%d, sleep=%d}", t.id, t.state, t.quantums, t.sleep)
}
