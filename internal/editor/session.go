// Package editor 自动化图编辑器的会话层：自动化集合的工作副本、当前选中项、
// 视口与交互状态机、自动保存引擎的装配点。
package editor

import (
	"context"
	"fmt"
	"sync"

	"textflow/internal/domain/automation"
	"textflow/internal/editor/autosave"
	"textflow/internal/editor/canvas"
	"textflow/internal/editor/notify"
	"textflow/internal/editor/viewport"
	applog "textflow/internal/platform/log"
)

// StoreClient 远端存储的完整客户端边界
type StoreClient interface {
	autosave.Client
	Load(ctx context.Context) ([]automation.Automation, error)
	TestSMS(ctx context.Context, automationID, from, body string) error
	RunNow(ctx context.Context, automationID string) error
}

// Session 一次编辑会话。集合的事实来源在远端，这里是持续与之调和的工作草稿。
type Session struct {
	mu sync.Mutex

	store    StoreClient
	ids      automation.IDSource
	notifier *notify.Notifier
	saver    *autosave.Engine
	machine  *canvas.Machine

	automations []automation.Automation
	selectedID  string

	selectedNodeID string
	inspectorOpen  bool

	view viewport.Viewport
	busy bool // test-run / run-now 在途
}

// NewSession 创建会话。ids 为 nil 时使用 UUID 源。
func NewSession(store StoreClient, cfg autosave.Config, ids automation.IDSource) *Session {
	if ids == nil {
		ids = automation.UUIDSource
	}
	s := &Session{
		store:    store,
		ids:      ids,
		notifier: notify.New(notify.DefaultWindow, nil),
		view:     viewport.New(),
	}
	s.saver = autosave.New(cfg, store, s.notifier, s.adoptCanonical)
	s.machine = canvas.NewMachine(s)
	return s
}

// Load 拉取远端集合。账户还没有任何自动化时合成起步模板（随后由防抖保存落库）。
func (s *Session) Load(ctx context.Context) error {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		s.notifier.Error("Loading automations failed: " + err.Error())
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saver.Seed(loaded)
	if len(loaded) == 0 {
		starter := automation.Starter(s.ids)
		s.automations = []automation.Automation{starter}
		s.selectedID = starter.ID
		s.saver.Observe(s.automations)
		return nil
	}
	s.automations = loaded
	s.selectedID = loaded[0].ID
	return nil
}

// Machine 画布交互状态机
func (s *Session) Machine() *canvas.Machine {
	return s.machine
}

// Notifier 提示面（供外层挂接 UI sink）
func (s *Session) Notifier() *notify.Notifier {
	return s.notifier
}

// Dirty 是否有未保存的本地变更
func (s *Session) Dirty() bool {
	return s.saver.Dirty()
}

// Automations 集合快照
func (s *Session) Automations() []automation.Automation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]automation.Automation, len(s.automations))
	for i, a := range s.automations {
		out[i] = a.Clone()
	}
	return out
}

// Selected 当前选中的自动化（快照），没有返回 nil
func (s *Session) Selected() *automation.Automation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.selectedLocked(); a != nil {
		c := a.Clone()
		return &c
	}
	return nil
}

// SelectAutomation 切换选中的自动化
func (s *Session) SelectAutomation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.automations {
		if s.automations[i].ID == id {
			s.selectedID = id
			s.selectedNodeID = ""
			s.inspectorOpen = false
			return
		}
	}
}

// SelectedNode 当前选中节点 ID 与检查器开合状态
func (s *Session) SelectedNode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedNodeID, s.inspectorOpen
}

// --- 集合级操作（显式、立即保存） ---

// CreateAutomation 新建一条空自动化并选中（账户上限内）
func (s *Session) CreateAutomation(name string) *automation.Automation {
	s.mu.Lock()
	if len(s.automations) >= automation.MaxAutomationsPerAccount {
		s.mu.Unlock()
		s.notifier.Error("Automation limit reached")
		return nil
	}
	a := automation.Starter(s.ids)
	if name != "" {
		a.Name = name
	}
	s.automations = append(s.automations, a)
	s.selectedID = a.ID
	s.selectedNodeID = ""
	s.inspectorOpen = false
	s.saver.Observe(s.automations)
	s.mu.Unlock()

	c := a.Clone()
	return &c
}

// DeleteAutomation 删除并立即保存（改变了选中项，不能只排队等防抖）
func (s *Session) DeleteAutomation(ctx context.Context, id string) error {
	s.mu.Lock()
	kept := s.automations[:0]
	for _, a := range s.automations {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	s.automations = kept
	if s.selectedID == id {
		s.selectedID = ""
		s.selectedNodeID = ""
		s.inspectorOpen = false
		if len(s.automations) > 0 {
			s.selectedID = s.automations[0].ID
		}
	}
	s.saver.Observe(s.automations)
	s.mu.Unlock()

	return s.saver.SaveNow(ctx)
}

// DuplicateAutomation 复制一条自动化（全新 ID）并立即保存
func (s *Session) DuplicateAutomation(ctx context.Context, id string) error {
	s.mu.Lock()
	if len(s.automations) >= automation.MaxAutomationsPerAccount {
		s.mu.Unlock()
		s.notifier.Error("Automation limit reached")
		return nil
	}
	var source *automation.Automation
	for i := range s.automations {
		if s.automations[i].ID == id {
			source = &s.automations[i]
			break
		}
	}
	if source == nil {
		s.mu.Unlock()
		return fmt.Errorf("automation %s not found", id)
	}
	dup := automation.Duplicate(*source, s.ids)
	s.automations = append(s.automations, dup)
	s.selectedID = dup.ID
	s.saver.Observe(s.automations)
	s.mu.Unlock()

	return s.saver.SaveNow(ctx)
}

// SaveNow 用户显式保存，绕过冷却保护
func (s *Session) SaveNow(ctx context.Context) error {
	return s.saver.SaveNow(ctx)
}

// RenameSelected 重命名当前自动化
func (s *Session) RenameSelected(name string) {
	s.mutate(func(a automation.Automation) automation.Automation {
		a = a.Clone()
		a.Name = name
		return a
	})
}

// --- 图级操作（乐观、防抖保存） ---

// UpdateNodeConfig 检查器表单字段变更
func (s *Session) UpdateNodeConfig(nodeID string, patch automation.NodeConfig) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.UpdateNodeConfig(a, nodeID, patch)
	})
}

// SetNodeLabel 手改节点标签
func (s *Session) SetNodeLabel(nodeID, text string) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.SetLabel(a, nodeID, text)
	})
}

// DeleteNode 删除节点（级联删边），并清理选中状态
func (s *Session) DeleteNode(nodeID string) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.DeleteNode(a, nodeID)
	})
	s.mu.Lock()
	if s.selectedNodeID == nodeID {
		s.selectedNodeID = ""
		s.inspectorOpen = false
	}
	s.mu.Unlock()
}

// --- canvas.Surface 实现 ---

// Viewport 当前视口
func (s *Session) Viewport() viewport.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetViewport 替换视口
func (s *Session) SetViewport(v viewport.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// SelectNode 选中节点并打开检查器
func (s *Session) SelectNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.selectedLocked(); a != nil && a.NodeByID(id) != nil {
		s.selectedNodeID = id
		s.inspectorOpen = true
	}
}

// ClearSelection 清除节点选中并收起检查器
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedNodeID = ""
	s.inspectorOpen = false
}

// NodePosition 节点的世界坐标
func (s *Session) NodePosition(id string) (automation.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.selectedLocked(); a != nil {
		if n := a.NodeByID(id); n != nil {
			return n.Position, true
		}
	}
	return automation.Position{}, false
}

// MoveNode 拖拽中的位置更新
func (s *Session) MoveNode(id string, x, y float64) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.MoveNode(a, id, x, y)
	})
}

// InsertNodeAt 托盘拖放落点插入节点
func (s *Session) InsertNodeAt(t automation.NodeType, world viewport.Point) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.InsertNode(a, t, automation.Position{X: world.X, Y: world.Y}, s.ids)
	})
}

// Connect 连接两个节点
func (s *Session) Connect(fromID string, port automation.Port, toID string) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.Connect(a, fromID, port, toID, s.ids)
	})
}

// DisconnectAllFrom 删除出边（双击输出柄）
func (s *Session) DisconnectAllFrom(nodeID string, port automation.Port) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.DisconnectAllFrom(a, nodeID, port)
	})
}

// DisconnectAllTo 删除入边（双击输入柄）
func (s *Session) DisconnectAllTo(nodeID string) {
	s.mutate(func(a automation.Automation) automation.Automation {
		return automation.DisconnectAllTo(a, nodeID)
	})
}

// --- 手动触发 ---

// TestSMS 模拟一条入站短信触发（手动测试），只挂忙碌指示，不阻塞编辑
func (s *Session) TestSMS(ctx context.Context, from, body string) error {
	s.mu.Lock()
	a := s.selectedLocked()
	if a == nil {
		s.mu.Unlock()
		return fmt.Errorf("no automation selected")
	}
	id := a.ID
	s.busy = true
	s.mu.Unlock()
	defer s.clearBusy()

	if err := s.store.TestSMS(ctx, id, from, body); err != nil {
		s.notifier.Error("Test SMS failed: " + err.Error())
		return err
	}
	s.notifier.Success("Test SMS dispatched")
	return nil
}

// RunNow 手动触发一次 manual 类型的执行
func (s *Session) RunNow(ctx context.Context) error {
	s.mu.Lock()
	a := s.selectedLocked()
	if a == nil {
		s.mu.Unlock()
		return fmt.Errorf("no automation selected")
	}
	id := a.ID
	s.busy = true
	s.mu.Unlock()
	defer s.clearBusy()

	if err := s.store.RunNow(ctx, id); err != nil {
		s.notifier.Error("Run failed: " + err.Error())
		return err
	}
	s.notifier.Success("Automation run queued")
	return nil
}

// Busy 是否有在途的手动触发请求
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// --- 内部 ---

// mutate 对选中的自动化应用一次纯变更并让保存引擎观察结果快照
func (s *Session) mutate(op func(automation.Automation) automation.Automation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.automations {
		if s.automations[i].ID == s.selectedID {
			s.automations[i] = op(s.automations[i])
			s.saver.Observe(s.automations)
			return
		}
	}
}

// adoptCanonical 保存成功后用服务端的权威集合替换本地状态，
// 调和服务端分配的新 ID（选中项按位置兜底）
func (s *Session) adoptCanonical(canonical []automation.Automation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prevIdx := -1
	for i := range s.automations {
		if s.automations[i].ID == s.selectedID {
			prevIdx = i
			break
		}
	}
	s.automations = canonical
	if s.selectedLocked() == nil {
		s.selectedID = ""
		if prevIdx >= 0 && prevIdx < len(canonical) {
			s.selectedID = canonical[prevIdx].ID
		} else if len(canonical) > 0 {
			s.selectedID = canonical[0].ID
		}
		s.selectedNodeID = ""
		s.inspectorOpen = false
	}
	applog.Debug("[Editor/Session] Canonical snapshot adopted", "automations", len(canonical))
}

func (s *Session) selectedLocked() *automation.Automation {
	for i := range s.automations {
		if s.automations[i].ID == s.selectedID {
			return &s.automations[i]
		}
	}
	return nil
}

func (s *Session) clearBusy() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}
