package uthreads

import (
	"container/heap"
	"fmt"
)

// MainThreadID 是主线程的 ID，永远不会进出 ID 池
const MainThreadID = 0

// intHeap 是一个小根堆
type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// idPool 分配线程 ID：每次给出 [1, max) 中最小的空闲 ID。
type idPool struct {
	free intHeap
	// inPool[id] 表示 id 当前空闲
	inPool []bool
}

func newIDPool(max int) *idPool {
	p := &idPool{
		free:   make(intHeap, 0, max),
		inPool: make([]bool, max),
	}
	for id := 1; id < max; id++ {
		p.free = append(p.free, id)
		p.inPool[id] = true
	}
	heap.Init(&p.free)
	return p
}

// acquire 取出最小的空闲 ID
func (p *idPool) acquire() (int, error) {
	if p.free.Len() == 0 {
		return -1, ErrPoolExhausted
	}
	id := heap.Pop(&p.free).(int)
	p.inPool[id] = false
	return id, nil
}

// release 归还一个 ID。归还主线程 ID、越界 ID 或已经空闲的 ID 都是调用方的错误。
func (p *idPool) release(id int) error {
	if id <= MainThreadID || id >= len(p.inPool) {
		return fmt.Errorf("release id %d: out of range", id)
	}
	if p.inPool[id] {
		return fmt.Errorf("release id %d: already free", id)
	}
	p.inPool[id] = true
	heap.Push(&p.free, id)
	return nil
}

// available 空闲 ID 的数量
func (p *idPool) available() int {
	return p.free.Len()
}
