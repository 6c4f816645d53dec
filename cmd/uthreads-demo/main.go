// Command uthreads-demo 在一个执行流上跑几个用户态线程：
// 一个一直计数，一个周期性地睡，一个阻塞自己等主线程唤醒。
package main

import (
	"flag"

	"github.com/samber/do"
	log "github.com/sirupsen/logrus"

	"uthreads"
)

func main() {
	configPath := flag.String("config", "", "path to a uthreads toml config")
	quantums := flag.Int("quantums", 50, "how many quantums to run before terminating the main thread")
	flag.Parse()

	injector := do.New()
	do.ProvideValue(injector, *configPath)
	do.Provide(injector, provideConfig)
	do.Provide(injector, provideLogger)
	do.Provide(injector, provideInterrupter)
	do.Provide(injector, provideScheduler)

	log.RegisterExitHandler(func() {
		if err := injector.Shutdown(); err != nil {
			log.WithError(err).Warn("[Demo] shutdown")
		}
	})

	s := do.MustInvoke[*uthreads.Scheduler](injector)
	run(s, *quantums)
}

func provideConfig(i *do.Injector) (uthreads.Config, error) {
	path := do.MustInvoke[string](i)
	if path == "" {
		return uthreads.DefaultConfig(), nil
	}
	return uthreads.LoadConfig(path)
}

func provideLogger(i *do.Injector) (*log.Logger, error) {
	cfg := do.MustInvoke[uthreads.Config](i)
	logger := log.StandardLogger()
	if cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}
	return logger, nil
}

func provideInterrupter(i *do.Injector) (uthreads.Interrupter, error) {
	cfg := do.MustInvoke[uthreads.Config](i)
	return uthreads.NewInterrupter(cfg.Timer)
}

// provideScheduler 必须在主 goroutine 上调用：调用者会成为主线程
func provideScheduler(i *do.Injector) (*uthreads.Scheduler, error) {
	cfg := do.MustInvoke[uthreads.Config](i)
	logger := do.MustInvoke[*log.Logger](i)
	clock := do.MustInvoke[uthreads.Interrupter](i)

	s, err := uthreads.New(cfg, uthreads.WithLogger(logger), uthreads.WithInterrupter(clock))
	if err != nil {
		logger.WithError(err).Fatal("system error: cannot start scheduler")
	}
	return s, err
}

func run(s *uthreads.Scheduler, quantums int) {
	counter, _ := s.Spawn(func() {
		n := 0
		for {
			n++
			if n%1_000_000 == 0 {
				log.WithFields(log.Fields{
					"tid": s.RunningID(),
					"n":   n,
				}).Info("[Counter] still counting")
			}
			s.Checkpoint()
		}
	})

	s.Spawn(func() {
		for round := 1; round <= 3; round++ {
			log.WithFields(log.Fields{
				"tid":   s.RunningID(),
				"round": round,
				"total": s.TotalQuantums(),
			}).Info("[Sleeper] going to sleep for 3 quantums")
			s.Sleep(3)
		}
		log.WithField("tid", s.RunningID()).Info("[Sleeper] done")
	})

	waiter, _ := s.Spawn(func() {
		tid := s.RunningID()
		for {
			log.WithField("tid", tid).Info("[Waiter] blocking myself")
			s.Block(tid)
			log.WithField("tid", tid).Info("[Waiter] resumed")
		}
	})

	for last := s.TotalQuantums(); s.TotalQuantums() < quantums; {
		if total := s.TotalQuantums(); total-last >= 10 {
			last = total
			log.WithField("total", total).Info("[Main] waking the waiter")
			s.Resume(waiter)
		}
		s.Checkpoint()
	}

	q, _ := s.Quantums(counter)
	log.WithFields(log.Fields{
		"total":   s.TotalQuantums(),
		"counter": q,
	}).Info("[Main] terminating the main thread")
	s.Terminate(uthreads.MainThreadID)
}
