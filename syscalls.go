package uthreads

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

/********* 👇 SYSTEM CALLS 👇 ***************/

// Spawn 新建一个线程，放到就绪队列尾，返回它的 id。
func (s *Scheduler) Spawn(entry func()) (int, error) {
	id, err := s.spawn(entry)
	s.deliver()
	return id, err
}

func (s *Scheduler) spawn(entry func()) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return -1, s.fail(ErrClosed)
	}
	if entry == nil {
		return -1, s.fail(ErrNilEntry)
	}
	id, err := s.ids.acquire()
	if err != nil {
		return -1, s.fail(err)
	}
	stack, err := s.mem.Alloc()
	if err != nil {
		systemError(s.log.WithField("tid", id), err)
		if rerr := s.ids.release(id); rerr != nil {
			s.log.WithError(rerr).Error("[Dispatcher] id pool corrupted")
		}
		return -1, err
	}

	t := newThread(id, stack, entry)
	s.cpu.Load(t, s.trampoline(t))
	s.threads[id] = t
	s.ready = append(s.ready, t)

	s.log.WithField("tid", id).Debug("[Dispatcher] spawn")
	return id, nil
}

// Terminate 结束线程 id：
//   - 结束自己：标记，切换出去，离开 CPU 以后再删除，不返回；
//   - 主线程结束自己：释放所有线程，退出进程；
//   - 其他线程结束主线程：切回主线程，由主线程释放所有线程并退出进程；
//   - 结束别的线程：立即删除。
func (s *Scheduler) Terminate(id int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.fail(ErrClosed)
	}
	t, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: %d", ErrNoSuchThread, id))
	}

	switch {
	case id == MainThreadID && s.running == s.main:
		victims := s.teardownLocked()
		s.mu.Unlock()
		s.unload(victims)
		s.exit()
		return nil

	case id == MainThreadID:
		prev := s.running
		s.shuttingDown = true
		s.main.state = StateRunning
		s.running = s.main
		s.log.WithField("tid", prev.id).Info("[Dispatcher] main thread terminated by another thread")
		s.mu.Unlock()
		s.cpu.Exit(prev, s.main)
		return nil

	case t == s.running:
		t.terminating = true
		s.dying = append(s.dying, t)
		s.log.WithField("tid", id).Debug("[Dispatcher] thread terminates itself")
		s.mu.Unlock()
		s.switchThread()
		return nil
	}

	s.forgetLocked(t)
	s.mu.Unlock()

	s.unload([]*Thread{t})
	s.deliver()
	return nil
}

// Block 阻塞线程 id。阻塞自己会切换出去，直到被 Resume 以后重新被调度。
// 不能阻塞主线程。阻塞一个已经阻塞的线程什么都不做。
func (s *Scheduler) Block(id int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.fail(ErrClosed)
	}
	if id == MainThreadID {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: block", ErrMainThread))
	}
	t, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: %d", ErrNoSuchThread, id))
	}
	if t.state == StateBlocked {
		s.mu.Unlock()
		s.deliver()
		return nil
	}

	t.state = StateBlocked
	s.removeReady(t)
	s.log.WithField("tid", id).Debug("[Dispatcher] block")
	self := t == s.running
	s.mu.Unlock()

	if self {
		s.switchThread()
	}
	s.deliver()
	return nil
}

// Resume 解除线程 id 的阻塞。还在睡的线程只清掉阻塞标记，
// 睡醒时再进就绪队列。对没有阻塞的线程什么都不做。
func (s *Scheduler) Resume(id int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.fail(ErrClosed)
	}
	t, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: %d", ErrNoSuchThread, id))
	}
	if t.state == StateBlocked {
		t.state = StateReady
		if t.sleep == 0 {
			s.ready = append(s.ready, t)
		}
		s.log.WithFields(log.Fields{
			"tid":      id,
			"sleeping": t.sleep > 0,
		}).Debug("[Dispatcher] resume")
	}
	s.mu.Unlock()

	s.deliver()
	return nil
}

// Sleep 让当前线程睡 n 个时间片，然后切换出去。
// 当前时间片剩下的部分也算一个，所以计数是 n+1。主线程不能睡。
func (s *Scheduler) Sleep(n int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.fail(ErrClosed)
	}
	if s.running == s.main {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: main thread cannot sleep", ErrInvalidSleep))
	}
	if n < 0 {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: negative quantums %d", ErrInvalidSleep, n))
	}

	t := s.running
	t.sleep = n + 1
	s.sleeping[t.id] = t
	s.log.WithFields(log.Fields{
		"tid":      t.id,
		"quantums": n,
	}).Debug("[Dispatcher] sleep")
	s.mu.Unlock()

	s.switchThread()
	s.deliver()
	return nil
}

// Yield 主动结束当前时间片，效果和一次时钟中断相同。
func (s *Scheduler) Yield() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return s.fail(ErrClosed)
	}

	s.switchThread()
	s.deliver()
	return nil
}

// Checkpoint 是一个安全点：如果时钟中断已经到了，就在这里被抢占。
// 长时间计算的线程应该经常调用它。
func (s *Scheduler) Checkpoint() {
	s.deliver()
}

// Shutdown 释放除主线程外的所有线程并停止时钟，不退出进程。
// 只能由主线程调用；已经关闭时什么都不做。
func (s *Scheduler) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.running != s.main {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: shutdown must run on the main thread", ErrMainThread))
	}
	victims := s.teardownLocked()
	s.mu.Unlock()

	s.unload(victims)
	return nil
}

/********* 👆 SYSTEM CALLS 👆 ***************/

// RunningID 当前运行的线程 id
func (s *Scheduler) RunningID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running.id
}

// TotalQuantums 从初始化开始一共经历的时间片数，第一个时间片也算
func (s *Scheduler) TotalQuantums() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalQuantums
}

// Quantums 线程 id 运行过的时间片数
func (s *Scheduler) Quantums(id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return -1, s.fail(fmt.Errorf("%w: %d", ErrNoSuchThread, id))
	}
	return t.quantums, nil
}

// State 线程 id 的状态
func (s *Scheduler) State(id int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return 0, s.fail(fmt.Errorf("%w: %d", ErrNoSuchThread, id))
	}
	return t.state, nil
}

// Closed 调度器是否已经关闭
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
