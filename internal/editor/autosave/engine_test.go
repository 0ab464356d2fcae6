package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"textflow/internal/domain/automation"
	"textflow/internal/editor/notify"
)

// fakeClient 记录 Replace 调用，可注入失败和规范化结果
type fakeClient struct {
	mu        sync.Mutex
	calls     int32
	fail      atomic.Bool
	canonical []automation.Automation
	lastSeen  []automation.Automation
}

func (c *fakeClient) Replace(_ context.Context, automations []automation.Automation) ([]automation.Automation, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.fail.Load() {
		return nil, errors.New("storage unavailable")
	}
	c.mu.Lock()
	c.lastSeen = automations
	canonical := c.canonical
	c.mu.Unlock()
	if canonical != nil {
		return canonical, nil
	}
	return automations, nil
}

func (c *fakeClient) callCount() int {
	return int(atomic.LoadInt32(&c.calls))
}

func testConfig() Config {
	return Config{
		Debounce:     30 * time.Millisecond,
		Cooldown:     150 * time.Millisecond,
		ConfirmEvery: 50 * time.Millisecond,
		SaveTimeout:  time.Second,
	}
}

func silentNotifier() *notify.Notifier {
	return notify.New(time.Minute, func(notify.Level, string) {})
}

func sample(name string) []automation.Automation {
	ids := automation.UUIDSource
	a := automation.Starter(ids)
	a.Name = name
	return []automation.Automation{a}
}

// TestDebounceCoalesces 防抖窗口内的一串变更合并为一次保存
func TestDebounceCoalesces(t *testing.T) {
	client := &fakeClient{}
	e := New(testConfig(), client, silentNotifier(), nil)
	e.Seed(nil)

	ids := automation.UUIDSource
	a := automation.Starter(ids)
	set := []automation.Automation{a}
	for i := 0; i < 10; i++ {
		a = automation.MoveNode(a, a.Nodes[0].ID, float64(i*10), 0)
		set[0] = a
		e.Observe(set)
		time.Sleep(2 * time.Millisecond)
	}
	if !e.Dirty() {
		t.Fatal("engine should be dirty before debounce fires")
	}

	time.Sleep(120 * time.Millisecond)
	if got := client.callCount(); got != 1 {
		t.Errorf("expected exactly 1 save, got %d", got)
	}
	if e.Dirty() {
		t.Error("engine still dirty after successful save")
	}
}

// TestObserveCleanIsNoop 回到已保存形态时取消待定保存
func TestObserveCleanIsNoop(t *testing.T) {
	client := &fakeClient{}
	e := New(testConfig(), client, silentNotifier(), nil)
	saved := sample("baseline")
	e.Seed(saved)

	e.Observe(sample("edited"))
	e.Observe(saved)
	if e.Dirty() {
		t.Error("engine dirty after reverting to saved state")
	}

	time.Sleep(100 * time.Millisecond)
	if got := client.callCount(); got != 0 {
		t.Errorf("unexpected saves: %d", got)
	}
}

// TestFailureCooldown 保存失败后冷却期内不自动重试，冷却结束后带最新状态重试
func TestFailureCooldown(t *testing.T) {
	client := &fakeClient{}
	client.fail.Store(true)
	e := New(testConfig(), client, silentNotifier(), nil)
	e.Seed(nil)

	e.Observe(sample("draft"))
	time.Sleep(60 * time.Millisecond)
	if got := client.callCount(); got != 1 {
		t.Fatalf("expected 1 failed save, got %d", got)
	}
	if !e.Dirty() {
		t.Error("draft should stay dirty after failure")
	}

	// 冷却期内再次变更不触发新的保存
	e.Observe(sample("draft again"))
	time.Sleep(60 * time.Millisecond)
	if got := client.callCount(); got != 1 {
		t.Errorf("save triggered inside cooldown: %d calls", got)
	}

	// 冷却结束后自动重试并成功
	client.fail.Store(false)
	time.Sleep(200 * time.Millisecond)
	if got := client.callCount(); got != 2 {
		t.Errorf("expected retry after cooldown, got %d calls", got)
	}
	if e.Dirty() {
		t.Error("engine still dirty after recovered save")
	}
}

// TestSaveNowBypassesCooldown 显式保存绕过冷却保护
func TestSaveNowBypassesCooldown(t *testing.T) {
	client := &fakeClient{}
	client.fail.Store(true)
	e := New(testConfig(), client, silentNotifier(), nil)
	e.Seed(nil)

	e.Observe(sample("draft"))
	time.Sleep(60 * time.Millisecond) // 第一次自动保存失败，进入冷却

	client.fail.Store(false)
	if err := e.SaveNow(context.Background()); err != nil {
		t.Fatalf("explicit save failed: %v", err)
	}
	if got := client.callCount(); got != 2 {
		t.Errorf("expected explicit save to go through, got %d calls", got)
	}
}

// TestAdoptCanonical 提交后无新变更时采纳服务端规范化集合
func TestAdoptCanonical(t *testing.T) {
	canonical := sample("normalized by server")
	client := &fakeClient{canonical: canonical}

	var adopted []automation.Automation
	var mu sync.Mutex
	e := New(testConfig(), client, silentNotifier(), func(set []automation.Automation) {
		mu.Lock()
		adopted = set
		mu.Unlock()
	})
	e.Seed(nil)

	e.Observe(sample("local draft"))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if adopted == nil {
		t.Fatal("canonical collection not adopted")
	}
	if adopted[0].Name != "normalized by server" {
		t.Errorf("adopted wrong collection: %q", adopted[0].Name)
	}
	if e.Dirty() {
		t.Error("engine dirty after adopting canonical state")
	}
}

// TestStaleResponseDoesNotStomp 保存进行中产生的新变更不被迟到的响应覆盖，
// 而是留待下一轮防抖保存带上最新状态后收敛
func TestStaleResponseDoesNotStomp(t *testing.T) {
	release := make(chan struct{})
	client := &slowClient{release: release}

	adopted := int32(0)
	cfg := testConfig()
	cfg.Debounce = 100 * time.Millisecond
	e := New(cfg, client, silentNotifier(), func(set []automation.Automation) {
		atomic.AddInt32(&adopted, 1)
		client.mu.Lock()
		client.lastAdopted = set[0].Name
		client.mu.Unlock()
	})
	e.Seed(nil)

	e.Observe(sample("first"))
	time.Sleep(150 * time.Millisecond) // 防抖触发，Replace 阻塞中

	e.Observe(sample("second")) // 保存期间的新变更
	close(release)
	time.Sleep(30 * time.Millisecond) // 迟到的响应已处理，第二轮防抖尚未触发

	if atomic.LoadInt32(&adopted) != 0 {
		t.Error("stale response adopted over newer local edits")
	}
	if !e.Dirty() {
		t.Error("newer edits should keep the engine dirty")
	}

	// 第二轮防抖保存带上 "second"，这次才采纳
	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt32(&adopted) != 1 {
		t.Errorf("expected exactly 1 adoption, got %d", atomic.LoadInt32(&adopted))
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.lastAdopted != "second" {
		t.Errorf("adopted %q, want the newer draft", client.lastAdopted)
	}
	if e.Dirty() {
		t.Error("engine should be clean after converging")
	}
}

// slowClient 第一次调用阻塞到 release 关闭
type slowClient struct {
	mu          sync.Mutex
	release     chan struct{}
	first       atomic.Bool
	lastAdopted string
}

func (c *slowClient) Replace(_ context.Context, automations []automation.Automation) ([]automation.Automation, error) {
	if c.first.CompareAndSwap(false, true) {
		<-c.release
	}
	return automations, nil
}
