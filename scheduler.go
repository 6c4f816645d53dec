package uthreads

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Scheduler 是用户态线程的调度器：把很多逻辑线程复用到一个执行流上，
// 时钟中断做抢占，sleep / block / 结束自己时主动切换。
//
// 调用 New 的 goroutine 成为主线程 (id 0)。除了 RunningID、TotalQuantums、
// Quantums、State 这几个只读方法，其他方法都只能由当前正在运行的线程调用。
type Scheduler struct {
	// mu 是临界区：持有它相当于屏蔽了时钟信号。
	// 所有队列、集合、ID 池的修改都在它里面完成。
	mu sync.Mutex

	cfg   Config
	log   *log.Entry
	cpu   *CPU
	mem   *Memory
	ids   *idPool
	clock Interrupter

	main    *Thread
	running *Thread
	// ready 就绪队列，先进先出
	ready []*Thread
	// sleeping 正在睡的线程，不管是不是 BLOCKED
	sleeping map[int]*Thread
	// threads 所有存活的线程
	threads map[int]*Thread
	// dying 自己结束了自己、已经离开 CPU、等待删除的线程
	dying []*Thread

	totalQuantums int

	// preempt 有一个还没处理的时钟中断
	preempt atomic.Bool
	// shuttingDown 其他线程结束了主线程，切回主线程后整个进程退出
	shuttingDown bool
	closed       bool
}

// Option 定制 Scheduler 的依赖
type Option func(*Scheduler)

// WithLogger 使用指定的 logrus.Logger。进程退出也走它的 Exit。
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		s.log = l.WithField("lib", "uthreads")
	}
}

// WithInterrupter 使用指定的时钟中断源，忽略 Config.Timer
func WithInterrupter(i Interrupter) Option {
	return func(s *Scheduler) {
		s.clock = i
	}
}

// WithSwitcher 使用指定的上下文原语
func WithSwitcher(sw Switcher) Option {
	return func(s *Scheduler) {
		s.cpu = NewCPU(sw)
	}
}

// New 初始化调度器：检查配置，把调用者变成主线程，启动抢占时钟。
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:      cfg,
		log:      log.WithField("lib", "uthreads"),
		mem:      NewMemory(cfg.StackSize, cfg.StackBudget),
		ids:      newIDPool(cfg.MaxThreads),
		sleeping: map[int]*Thread{},
		threads:  map[int]*Thread{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cpu == nil {
		s.cpu = NewCPU(nil)
	}
	if s.clock == nil {
		clock, err := NewInterrupter(cfg.Timer)
		if err != nil {
			return nil, err
		}
		s.clock = clock
	}

	s.main = newMainThread()
	s.cpu.Boot(s.main)
	s.running = s.main
	s.threads[MainThreadID] = s.main
	s.totalQuantums = 1

	if err := s.clock.Arm(cfg.Quantum(), s.clockInterrupt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimerSetup, err)
	}

	s.log.WithFields(log.Fields{
		"quantum":     cfg.Quantum(),
		"max_threads": cfg.MaxThreads,
		"timer":       cfg.Timer,
	}).Info("[Dispatcher] scheduler initialized")
	return s, nil
}

// clockInterrupt 处理时钟中断：只登记，真正的切换发生在下一个安全点。
func (s *Scheduler) clockInterrupt() {
	s.preempt.Store(true)
}

// deliver 是安全点：如果有挂起的时钟中断，就做一次切换。
// 相当于 sigprocmask 解除屏蔽的那一刻。
func (s *Scheduler) deliver() {
	if s.preempt.Load() {
		s.switchThread()
	}
}

// switchThread 是调度的核心：更新睡眠计数，把当前线程放回队尾，
// 取出队首线程运行。
//
// 调用者挂起在这里，直到某次切换又选中了它，这时从这里返回。
// 被恢复以后要先处理两件推迟的事：整个进程的退出，以及删除自己结束了自己的线程。
func (s *Scheduler) switchThread() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.preempt.Store(false)
	s.wakeSleepers()

	prev := s.running
	if !prev.terminating && prev.state != StateBlocked {
		prev.state = StateReady
		if prev.sleep == 0 {
			s.ready = append(s.ready, prev)
		}
	}

	if len(s.ready) == 0 {
		// 主线程不会睡也不会被阻塞，只要它活着就不会走到这里
		s.mu.Unlock()
		s.log.WithField("thread", prev).Panic("[Dispatcher] no thread to run")
	}

	next := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	next.state = StateRunning
	next.quantums++
	s.totalQuantums++
	s.running = next
	s.clock.Rearm()

	s.log.WithFields(log.Fields{
		"from":    prev.id,
		"to":      next.id,
		"quantum": s.totalQuantums,
	}).Trace("[Dispatcher] switch")
	s.mu.Unlock()

	if prev.terminating {
		// 不返回
		s.cpu.Exit(prev, next)
	}
	s.cpu.Switch(prev, next)
	s.resumed()
}

// wakeSleepers 给每个睡着的线程减一个时间片，到 0 的叫醒。
// 按 id 顺序处理，同一次醒来的线程按 id 进就绪队列。
func (s *Scheduler) wakeSleepers() {
	ids := make([]int, 0, len(s.sleeping))
	for id := range s.sleeping {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		t := s.sleeping[id]
		t.sleep--
		if t.sleep > 0 {
			continue
		}
		delete(s.sleeping, id)
		// 当前线程由 switchThread 自己放回队尾
		if t.state != StateBlocked && t != s.running {
			s.ready = append(s.ready, t)
		}
		s.log.WithField("tid", id).Debug("[Dispatcher] thread woke up")
	}
}

// resumed 在一个线程重新拿到 CPU 后运行（包括新线程第一次运行）。
func (s *Scheduler) resumed() {
	s.mu.Lock()
	if s.shuttingDown && s.running == s.main {
		victims := s.teardownLocked()
		s.mu.Unlock()
		s.unload(victims)
		s.exit()
		return
	}

	dying := s.dying
	s.dying = nil
	for _, t := range dying {
		s.forgetLocked(t)
	}
	if len(dying) > 0 {
		s.clock.Rearm()
	}
	s.mu.Unlock()

	s.unload(dying)
}

// trampoline 是新线程真正的入口。entry 返回等于线程结束自己。
func (s *Scheduler) trampoline(t *Thread) func() {
	return func() {
		s.resumed()
		t.entry()
		if err := s.Terminate(t.id); err != nil {
			s.log.WithError(err).WithField("tid", t.id).Error("[Dispatcher] thread returned after shutdown")
		}
	}
}

// forgetLocked 把线程从所有集合里去掉，归还 ID。
// 调用者负责随后 unload 它。
func (s *Scheduler) forgetLocked(t *Thread) {
	delete(s.threads, t.id)
	delete(s.sleeping, t.id)
	s.removeReady(t)
	if err := s.ids.release(t.id); err != nil {
		s.log.WithError(err).Error("[Dispatcher] id pool corrupted")
	}
	s.log.WithField("tid", t.id).Debug("[Dispatcher] thread deleted")
}

// removeReady 把 t 从就绪队列里删掉，其他线程保持原来的顺序
func (s *Scheduler) removeReady(t *Thread) {
	kept := s.ready[:0]
	for _, r := range s.ready {
		if r != t {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(s.ready); i++ {
		s.ready[i] = nil
	}
	s.ready = kept
}

// unload 回收线程的上下文和栈。不能在临界区里调用：
// 被回收的 goroutine 退出时会先跑完它的 defer。
func (s *Scheduler) unload(threads []*Thread) {
	for _, t := range threads {
		s.cpu.Unload(t)
		s.mem.Free(t.stack)
		t.stack = nil
	}
}

// teardownLocked 释放除主线程外的所有线程，停掉时钟，调度器从此关闭。
func (s *Scheduler) teardownLocked() []*Thread {
	victims := make([]*Thread, 0, len(s.threads))
	for id, t := range s.threads {
		if id != MainThreadID {
			victims = append(victims, t)
		}
	}
	slices.SortFunc(victims, func(a, b *Thread) int { return a.id - b.id })

	s.threads = map[int]*Thread{MainThreadID: s.main}
	s.sleeping = map[int]*Thread{}
	s.ready = nil
	s.dying = nil
	s.ids = newIDPool(s.cfg.MaxThreads)
	s.main.state = StateRunning
	s.running = s.main
	s.closed = true
	s.clock.Disarm()

	s.log.WithField("released", len(victims)).Info("[Dispatcher] scheduler shut down")
	return victims
}

// exit 结束整个进程，成功状态
func (s *Scheduler) exit() {
	s.log.Info("[Dispatcher] main thread terminated, exit")
	s.log.Logger.Exit(0)
}

// fail 打印使用错误并原样返回
func (s *Scheduler) fail(err error) error {
	libraryError(s.log, err)
	return err
}
