// Package notify 编辑器的提示面。核心契约是去重：同一内容的提示在时间窗口内
// 只透出一次，避免保存重试风暴把用户淹没在相同的错误里。
package notify

import (
	"sync"
	"time"

	applog "textflow/internal/platform/log"
)

// Level 提示级别
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// DefaultWindow 相同内容提示的抑制窗口
const DefaultWindow = 8 * time.Second

// Sink 实际的提示出口（UI toast、日志等）
type Sink func(level Level, message string)

// Notifier 按内容+时间窗口去重的提示器
type Notifier struct {
	mu     sync.Mutex
	window time.Duration
	sink   Sink
	seen   map[string]time.Time
	now    func() time.Time
}

// New 创建提示器。sink 为 nil 时落到结构化日志。
func New(window time.Duration, sink Sink) *Notifier {
	if window <= 0 {
		window = DefaultWindow
	}
	if sink == nil {
		sink = logSink
	}
	return &Notifier{
		window: window,
		sink:   sink,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Notify 透出一条提示。窗口内重复内容被抑制，返回是否真正透出。
func (n *Notifier) Notify(level Level, message string) bool {
	key := string(level) + "|" + message
	n.mu.Lock()
	now := n.now()
	if last, ok := n.seen[key]; ok && now.Sub(last) < n.window {
		n.mu.Unlock()
		return false
	}
	n.seen[key] = now
	n.mu.Unlock()

	n.sink(level, message)
	return true
}

// Info / Success / Error 便捷入口
func (n *Notifier) Info(message string) bool    { return n.Notify(LevelInfo, message) }
func (n *Notifier) Success(message string) bool { return n.Notify(LevelSuccess, message) }
func (n *Notifier) Error(message string) bool   { return n.Notify(LevelError, message) }

func logSink(level Level, message string) {
	switch level {
	case LevelError:
		applog.Error("[Editor/Notify] "+message, "level", string(level))
	default:
		applog.Info("[Editor/Notify] "+message, "level", string(level))
	}
}
