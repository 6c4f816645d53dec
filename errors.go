package uthreads

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// 用户态线程库的所有错误。
// 使用错误（参数、ID、主线程限制）都可以恢复，出错时调度器的状态不变。
var (
	ErrInvalidQuantum     = errors.New("invalid quantum value")
	ErrNoSuchThread       = errors.New("thread ID does not exist")
	ErrPoolExhausted      = errors.New("no thread ID available")
	ErrNilEntry           = errors.New("entry point is nil")
	ErrMainThread         = errors.New("operation not allowed on the main thread")
	ErrInvalidSleep       = errors.New("invalid sleep operation")
	ErrStackExhausted     = errors.New("stack allocation failed")
	ErrClosed             = errors.New("scheduler is shut down")
	ErrAlreadyInitialized = errors.New("thread library already initialized")
	ErrNotInitialized     = errors.New("thread library not initialized")
	ErrTimerSetup         = errors.New("preemption timer setup failed")
)

// libraryError 打印一条使用错误。
func libraryError(logger *log.Entry, err error) {
	logger.Error("thread library error: ", err)
}

// systemError 打印一条资源/环境错误。
func systemError(logger *log.Entry, err error) {
	logger.Error("system error: ", err)
}
