//go:build !linux

package uthreads

import (
	"fmt"
	"runtime"
	"time"
)

// VirtualInterrupter 在这个平台上不可用，Arm 总是失败
type VirtualInterrupter struct{}

// NewVirtualInterrupter 新建虚拟时间中断源
func NewVirtualInterrupter() Interrupter {
	return VirtualInterrupter{}
}

func (VirtualInterrupter) Arm(time.Duration, InterruptHandler) error {
	return fmt.Errorf("virtual timer is not supported on %s", runtime.GOOS)
}

func (VirtualInterrupter) Rearm()  {}
func (VirtualInterrupter) Disarm() {}
