//go:build linux

package uthreads

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// VirtualInterrupter 用 ITIMER_VIRTUAL 计时，按进程消耗的用户态 CPU 时间
// 投递 SIGVTALRM。
type VirtualInterrupter struct {
	mu      sync.Mutex
	quantum time.Duration
	sigs    chan os.Signal
	stop    chan struct{}
}

// NewVirtualInterrupter 新建虚拟时间中断源
func NewVirtualInterrupter() Interrupter {
	return &VirtualInterrupter{}
}

func (v *VirtualInterrupter) Arm(quantum time.Duration, handler InterruptHandler) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.sigs != nil {
		return fmt.Errorf("virtual interrupter already armed")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGVTALRM)

	if err := setVirtualTimer(quantum); err != nil {
		signal.Stop(sigs)
		return fmt.Errorf("setitimer failed: %w", err)
	}
	v.quantum = quantum
	v.sigs = sigs
	v.stop = make(chan struct{})

	go func(sigs chan os.Signal, stop chan struct{}) {
		for {
			select {
			case <-sigs:
				handler()
			case <-stop:
				return
			}
		}
	}(v.sigs, v.stop)

	log.WithField("quantum", quantum).Debug("[Interrupt] virtual timer armed")
	return nil
}

func (v *VirtualInterrupter) Rearm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sigs == nil {
		return
	}
	if err := setVirtualTimer(v.quantum); err != nil {
		log.WithError(err).Error("system error: setitimer failed")
	}
}

func (v *VirtualInterrupter) Disarm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sigs == nil {
		return
	}
	if err := setVirtualTimer(0); err != nil {
		log.WithError(err).Warn("[Interrupt] failed to stop virtual timer")
	}
	// 忽略而不是恢复默认行为：已经在路上的 SIGVTALRM 会结束进程
	signal.Ignore(unix.SIGVTALRM)
	close(v.stop)
	v.sigs = nil
}

// setVirtualTimer 设置一个周期为 d 的 ITIMER_VIRTUAL，d 为 0 时停止
func setVirtualTimer(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	_, err := unix.Setitimer(unix.ItimerVirtual, unix.Itimerval{
		Interval: tv,
		Value:    tv,
	})
	return err
}
