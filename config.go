package uthreads

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

// 默认配置，与 uthreads.h 的约定保持一致
const (
	DefaultMaxThreads = 100
	DefaultStackSize  = 4096
	DefaultQuantum    = 100 // 微秒
)

// 抢占时钟的种类
const (
	TimerVirtual = "virtual" // 进程虚拟时间 (ITIMER_VIRTUAL / SIGVTALRM)
	TimerReal    = "real"    // 墙上时间 (time.Ticker)
	TimerManual  = "manual"  // 手动触发 (ManualInterrupter)
)

// Config 是调度器的配置，可以从 toml 文件读取。
type Config struct {
	// QuantumUsecs 时间片长度，单位微秒，必须大于 0
	QuantumUsecs int `toml:"quantum_usecs"`
	// MaxThreads 同时存在的线程数上限 (MAX_THREAD_NUM)，包括主线程
	MaxThreads int `toml:"max_threads"`
	// StackSize 每个线程的栈大小（字节）
	StackSize int `toml:"stack_size"`
	// StackBudget 所有线程栈的总字节数上限，0 表示不限
	StackBudget int `toml:"stack_budget"`
	// Timer 抢占时钟：virtual | real | manual
	Timer string `toml:"timer"`
	// LogLevel logrus 日志级别
	LogLevel string `toml:"log_level"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		QuantumUsecs: DefaultQuantum,
		MaxThreads:   DefaultMaxThreads,
		StackSize:    DefaultStackSize,
		Timer:        TimerReal,
		LogLevel:     "info",
	}
}

// LoadConfig 从 toml 文件读取配置，文件里没写的项使用默认值。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	log.WithFields(log.Fields{
		"path":    path,
		"quantum": cfg.QuantumUsecs,
		"timer":   cfg.Timer,
	}).Debug("[Config] loaded")
	return cfg, nil
}

// Validate 检查配置是否可用
func (c Config) Validate() error {
	if c.QuantumUsecs <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantum, c.QuantumUsecs)
	}
	if c.MaxThreads < 1 {
		return fmt.Errorf("max_threads must be at least 1, got %d", c.MaxThreads)
	}
	if c.StackSize <= 0 {
		return fmt.Errorf("stack_size must be positive, got %d", c.StackSize)
	}
	if c.StackBudget < 0 {
		return fmt.Errorf("stack_budget must not be negative, got %d", c.StackBudget)
	}
	switch c.Timer {
	case TimerVirtual, TimerReal, TimerManual:
	default:
		return fmt.Errorf("unknown timer %q", c.Timer)
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("bad log_level: %w", err)
		}
	}
	return nil
}

// Quantum 返回时间片长度
func (c Config) Quantum() time.Duration {
	return time.Duration(c.QuantumUsecs) * time.Microsecond
}
