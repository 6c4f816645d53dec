package uthreads

import (
	"fmt"
	"sync"
)

// Stack 是一个线程独占的、固定大小的栈区域。
// 不共享，不扩容。
type Stack []byte

// Memory 是模拟的「内存」：按固定大小切出线程栈，并记录总共用了多少。
type Memory struct {
	sync.Mutex

	stackSize int
	// budget 栈总字节数上限，0 表示不限
	budget int
	inUse  int

	pool sync.Pool
}

// NewMemory 新建一个按 stackSize 切栈的内存
func NewMemory(stackSize, budget int) *Memory {
	m := &Memory{
		stackSize: stackSize,
		budget:    budget,
	}
	m.pool.New = func() any {
		return make(Stack, m.stackSize)
	}
	return m
}

// Alloc 分配一个新的栈。超出预算时返回 ErrStackExhausted。
func (m *Memory) Alloc() (Stack, error) {
	m.Lock()
	defer m.Unlock()

	if m.budget > 0 && m.inUse+m.stackSize > m.budget {
		return nil, fmt.Errorf("%w: %d of %d bytes in use", ErrStackExhausted, m.inUse, m.budget)
	}
	m.inUse += m.stackSize

	s := m.pool.Get().(Stack)
	clear(s)
	return s, nil
}

// Free 归还一个栈
func (m *Memory) Free(s Stack) {
	if s == nil {
		return
	}
	m.Lock()
	defer m.Unlock()

	m.inUse -= m.stackSize
	m.pool.Put(s)
}

// InUse 当前所有线程栈占用的字节数
func (m *Memory) InUse() int {
	m.Lock()
	defer m.Unlock()
	return m.inUse
}
