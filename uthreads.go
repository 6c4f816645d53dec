// Package uthreads 是一个用户态线程库：把很多逻辑线程复用到一个执行流上，
// 用时钟中断做时间片轮转抢占。
//
// 这里的包级函数是一组 uthread 风格的接口，背后是一个进程唯一的 Scheduler。
// 成功返回 Success（或要求的值），失败返回 Failure，并把原因打印到日志。
package uthreads

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	Success = 0
	Failure = -1
)

var (
	libMu sync.Mutex
	lib   *Scheduler
)

// current 返回已经初始化的调度器，没有初始化时打印错误并返回 nil
func current() *Scheduler {
	libMu.Lock()
	defer libMu.Unlock()
	if lib == nil {
		libraryError(log.NewEntry(log.StandardLogger()), ErrNotInitialized)
	}
	return lib
}

// Init 初始化线程库，调用者成为主线程 (id 0)。quantumUsecs 必须大于 0。
func Init(quantumUsecs int) int {
	cfg := DefaultConfig()
	cfg.QuantumUsecs = quantumUsecs
	return InitWithConfig(cfg)
}

// InitWithConfig 用完整的配置初始化线程库。
// 时钟设置失败是致命错误：打印日志并退出进程。
func InitWithConfig(cfg Config, opts ...Option) int {
	libMu.Lock()
	defer libMu.Unlock()

	logger := log.NewEntry(log.StandardLogger())
	if lib != nil && !lib.Closed() {
		libraryError(logger, ErrAlreadyInitialized)
		return Failure
	}

	s, err := New(cfg, opts...)
	if err != nil {
		if errors.Is(err, ErrTimerSetup) {
			logger.WithError(err).Fatal("system error: cannot deliver preemption interrupts")
			return Failure
		}
		libraryError(logger, err)
		return Failure
	}
	lib = s
	return Success
}

// Spawn 新建线程，返回它的 id
func Spawn(entry func()) int {
	s := current()
	if s == nil {
		return Failure
	}
	id, err := s.Spawn(entry)
	if err != nil {
		return Failure
	}
	return id
}

// Terminate 结束线程 tid。tid 为 0 时整个进程退出。
func Terminate(tid int) int {
	return result(func(s *Scheduler) error { return s.Terminate(tid) })
}

// Block 阻塞线程 tid
func Block(tid int) int {
	return result(func(s *Scheduler) error { return s.Block(tid) })
}

// Resume 解除线程 tid 的阻塞
func Resume(tid int) int {
	return result(func(s *Scheduler) error { return s.Resume(tid) })
}

// Sleep 当前线程睡 numQuantums 个时间片
func Sleep(numQuantums int) int {
	return result(func(s *Scheduler) error { return s.Sleep(numQuantums) })
}

// Yield 主动让出剩下的时间片
func Yield() int {
	return result(func(s *Scheduler) error { return s.Yield() })
}

// Checkpoint 安全点，到期的时钟中断在这里生效
func Checkpoint() {
	libMu.Lock()
	s := lib
	libMu.Unlock()
	if s != nil {
		s.Checkpoint()
	}
}

// GetTid 当前线程的 id
func GetTid() int {
	s := current()
	if s == nil {
		return Failure
	}
	return s.RunningID()
}

// GetTotalQuantums 总时间片数
func GetTotalQuantums() int {
	s := current()
	if s == nil {
		return Failure
	}
	return s.TotalQuantums()
}

// GetQuantums 线程 tid 运行过的时间片数
func GetQuantums(tid int) int {
	s := current()
	if s == nil {
		return Failure
	}
	q, err := s.Quantums(tid)
	if err != nil {
		return Failure
	}
	return q
}

func result(call func(s *Scheduler) error) int {
	s := current()
	if s == nil {
		return Failure
	}
	if err := call(s); err != nil {
		return Failure
	}
	return Success
}
