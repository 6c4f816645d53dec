package uthreads

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// InterruptHandler 是「中断处理程序」，每个时间片到期时被调用一次。
// 它跑在中断源自己的 goroutine 上，只能做登记，不能切换线程。
type InterruptHandler func()

// Interrupter 是周期性的时钟中断源。
type Interrupter interface {
	// Arm 开始每 quantum 投递一次中断
	Arm(quantum time.Duration, handler InterruptHandler) error
	// Rearm 重新开始计一个完整的时间片
	Rearm()
	// Disarm 停止投递
	Disarm()
}

// NewInterrupter 按名字构造中断源：virtual | real | manual
func NewInterrupter(kind string) (Interrupter, error) {
	switch kind {
	case TimerVirtual:
		return NewVirtualInterrupter(), nil
	case TimerReal:
		return &TickerInterrupter{}, nil
	case TimerManual:
		return &ManualInterrupter{}, nil
	}
	return nil, fmt.Errorf("unknown timer %q", kind)
}

// TickerInterrupter 用 time.Ticker 按墙上时间投递中断
type TickerInterrupter struct {
	mu      sync.Mutex
	quantum time.Duration
	ticker  *time.Ticker
	stop    chan struct{}
}

func (t *TickerInterrupter) Arm(quantum time.Duration, handler InterruptHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ticker != nil {
		return fmt.Errorf("ticker interrupter already armed")
	}
	t.quantum = quantum
	t.ticker = time.NewTicker(quantum)
	t.stop = make(chan struct{})

	go func(ticker *time.Ticker, stop chan struct{}) {
		for {
			select {
			case <-ticker.C:
				handler()
			case <-stop:
				return
			}
		}
	}(t.ticker, t.stop)

	log.WithField("quantum", quantum).Debug("[Interrupt] ticker armed")
	return nil
}

func (t *TickerInterrupter) Rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker != nil {
		t.ticker.Reset(t.quantum)
	}
}

func (t *TickerInterrupter) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.stop)
	t.ticker = nil
}

// ManualInterrupter 只在 Fire 时投递中断，用来做确定性的调度。
type ManualInterrupter struct {
	mu      sync.Mutex
	handler InterruptHandler
	rearms  int
}

func (m *ManualInterrupter) Arm(_ time.Duration, handler InterruptHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	return nil
}

func (m *ManualInterrupter) Rearm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rearms++
}

func (m *ManualInterrupter) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = nil
}

// Fire 投递一次时钟中断。没有 Arm 或已经 Disarm 时什么都不做。
func (m *ManualInterrupter) Fire() {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h()
	}
}

// Rearms 时钟被重置的次数
func (m *ManualInterrupter) Rearms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rearms
}
