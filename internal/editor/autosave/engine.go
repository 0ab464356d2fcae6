// Package autosave 本地草稿与远端存储之间的同步引擎：脏跟踪、防抖保存、
// 失败冷却，以及用服务端权威快照回填本地状态。
package autosave

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"textflow/internal/domain/automation"
	"textflow/internal/editor/notify"
	applog "textflow/internal/platform/log"
)

// Client 远端存储边界：整体替换集合，返回服务端规范化后的权威集合。
type Client interface {
	Replace(ctx context.Context, automations []automation.Automation) ([]automation.Automation, error)
}

// Config 引擎时间参数
type Config struct {
	Debounce     time.Duration // 变更后静默多久触发保存
	Cooldown     time.Duration // 保存失败后自动保存的冷却期
	ConfirmEvery time.Duration // 保存成功提示的最小间隔
	SaveTimeout  time.Duration // 单次保存请求超时
}

// DefaultConfig 默认时间参数
func DefaultConfig() Config {
	return Config{
		Debounce:     1200 * time.Millisecond,
		Cooldown:     6 * time.Second,
		ConfirmEvery: 8 * time.Second,
		SaveTimeout:  15 * time.Second,
	}
}

// Engine 自动保存引擎。状态机：clean → dirty（变更）→ saving（定时器/显式）
// → clean | dirty-with-cooldown（按结果）。
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	client   Client
	notifier *notify.Notifier

	// onCanonical 保存成功且期间无新变更时，用服务端集合替换本地状态
	onCanonical func([]automation.Automation)

	latest    []automation.Automation
	latestSer string
	lastSaved string
	dirty     bool
	saving    bool

	timer         *time.Timer
	lastFailureAt time.Time
	lastConfirmAt time.Time
}

// New 创建引擎。onCanonical 在持锁之外回调。
func New(cfg Config, client Client, notifier *notify.Notifier, onCanonical func([]automation.Automation)) *Engine {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.ConfirmEvery <= 0 {
		cfg.ConfirmEvery = def.ConfirmEvery
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}
	if notifier == nil {
		notifier = notify.New(cfg.ConfirmEvery, nil)
	}
	return &Engine{cfg: cfg, client: client, notifier: notifier, onCanonical: onCanonical}
}

// Seed 设置已保存基线（加载后调用），不触发保存。
func (e *Engine) Seed(automations []automation.Automation) {
	ser := serialize(automations)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest = snapshot(automations)
	e.latestSer = ser
	e.lastSaved = ser
	e.dirty = false
	e.stopTimerLocked()
}

// Observe 每次图变更后调用。与已保存快照不一致则置脏并重启防抖定时器；
// 窗口内的后续变更会取消并重启定时器（合并为一次保存）。
func (e *Engine) Observe(automations []automation.Automation) {
	ser := serialize(automations)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.latest = snapshot(automations)
	e.latestSer = ser

	if ser == e.lastSaved {
		e.dirty = false
		e.stopTimerLocked()
		return
	}

	e.dirty = true
	e.stopTimerLocked()
	e.timer = time.AfterFunc(e.cfg.Debounce, func() { e.flush(false) })
}

// SaveNow 显式保存：绕过冷却保护，同步等待结果。
func (e *Engine) SaveNow(ctx context.Context) error {
	return e.save(ctx, true)
}

// Dirty 本地状态是否落后于已保存快照
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// flush 定时器触发的自动保存
func (e *Engine) flush(explicit bool) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SaveTimeout)
	defer cancel()
	_ = e.save(ctx, explicit)
}

func (e *Engine) save(ctx context.Context, explicit bool) error {
	e.mu.Lock()
	if !e.dirty && !explicit {
		e.mu.Unlock()
		return nil
	}
	if !explicit {
		if remain := e.cfg.Cooldown - time.Since(e.lastFailureAt); remain > 0 {
			// 冷却期内不自动触发，到期后重试
			e.stopTimerLocked()
			e.timer = time.AfterFunc(remain, func() { e.flush(false) })
			e.mu.Unlock()
			return nil
		}
	}
	if e.saving {
		e.mu.Unlock()
		return nil
	}
	e.saving = true
	submittedSer := e.latestSer
	submitted := snapshot(e.latest)
	e.mu.Unlock()

	canonical, err := e.client.Replace(ctx, submitted)

	e.mu.Lock()
	e.saving = false
	if err != nil {
		// 草稿保留，冷却保护武装并预约冷却结束后的重试，错误提示按内容+窗口去重
		e.lastFailureAt = time.Now()
		e.stopTimerLocked()
		e.timer = time.AfterFunc(e.cfg.Cooldown, func() { e.flush(false) })
		e.mu.Unlock()
		applog.Warn("[Editor/Autosave] Save failed", "error", err)
		e.notifier.Error("Saving automations failed: " + err.Error())
		return err
	}

	e.lastSaved = submittedSer
	adopt := e.latestSer == submittedSer
	if adopt {
		// 提交之后没有新变更：服务端集合即权威状态
		e.latest = snapshot(canonical)
		e.latestSer = serialize(canonical)
		e.lastSaved = e.latestSer
		e.dirty = false
		e.stopTimerLocked()
	} else {
		// 提交之后已有新变更：不回填，保持脏，重启防抖让下一轮带上最新状态
		e.stopTimerLocked()
		e.timer = time.AfterFunc(e.cfg.Debounce, func() { e.flush(false) })
	}

	confirm := time.Since(e.lastConfirmAt) >= e.cfg.ConfirmEvery
	if confirm {
		e.lastConfirmAt = time.Now()
	}
	e.mu.Unlock()

	if adopt && e.onCanonical != nil {
		e.onCanonical(snapshot(canonical))
	}
	if confirm {
		e.notifier.Success("Automations saved")
	}
	return nil
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// serialize 集合的结构化比较基于序列化形态，配合 copy-on-write 的图模型
// 保证脏判定是可靠的
func serialize(automations []automation.Automation) string {
	data, err := json.Marshal(automations)
	if err != nil {
		return ""
	}
	return string(data)
}

func snapshot(automations []automation.Automation) []automation.Automation {
	out := make([]automation.Automation, len(automations))
	for i, a := range automations {
		out[i] = a.Clone()
	}
	return out
}
