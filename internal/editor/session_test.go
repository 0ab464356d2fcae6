package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"textflow/internal/domain/automation"
	"textflow/internal/editor/autosave"
	"textflow/internal/editor/canvas"
	"textflow/internal/editor/viewport"
)

// fakeStore 内存版 StoreClient
type fakeStore struct {
	mu       sync.Mutex
	loaded   []automation.Automation
	loadErr  error
	replaces int
	saved    []automation.Automation
	testSMS  []string
	runs     []string
}

func (s *fakeStore) Load(_ context.Context) ([]automation.Automation, error) {
	return s.loaded, s.loadErr
}

func (s *fakeStore) Replace(_ context.Context, automations []automation.Automation) ([]automation.Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaces++
	s.saved = automations
	return automations, nil
}

func (s *fakeStore) TestSMS(_ context.Context, automationID, from, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testSMS = append(s.testSMS, automationID+"|"+from+"|"+body)
	return nil
}

func (s *fakeStore) RunNow(_ context.Context, automationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, automationID)
	return nil
}

func (s *fakeStore) replaceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaces
}

func testSession(store *fakeStore) *Session {
	return NewSession(store, autosave.Config{
		Debounce:     30 * time.Millisecond,
		Cooldown:     150 * time.Millisecond,
		ConfirmEvery: time.Minute,
		SaveTimeout:  time.Second,
	}, seqIDs())
}

func seqIDs() automation.IDSource {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id_%d", n)
	}
}

// TestLoadSynthesizesStarter 空账户加载后得到起步模板并排队保存
func TestLoadSynthesizesStarter(t *testing.T) {
	store := &fakeStore{}
	s := testSession(store)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := s.Automations()
	if len(got) != 1 {
		t.Fatalf("expected starter automation, got %d", len(got))
	}
	a := got[0]
	if len(a.Nodes) != 2 || len(a.Edges) != 1 {
		t.Errorf("starter shape: %d nodes %d edges", len(a.Nodes), len(a.Edges))
	}
	if a.TriggerNode() == nil {
		t.Error("starter has no trigger")
	}
	if !s.Dirty() {
		t.Error("synthesized starter should be pending save")
	}

	time.Sleep(100 * time.Millisecond)
	if store.replaceCount() != 1 {
		t.Errorf("starter not persisted: %d saves", store.replaceCount())
	}
}

// TestLoadExistingSelectsFirst 已有集合加载后选中第一条且不触发保存
func TestLoadExistingSelectsFirst(t *testing.T) {
	ids := seqIDs()
	store := &fakeStore{loaded: []automation.Automation{automation.Starter(ids), automation.Starter(ids)}}
	s := testSession(store)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	sel := s.Selected()
	if sel == nil || sel.ID != store.loaded[0].ID {
		t.Errorf("expected first automation selected")
	}
	if s.Dirty() {
		t.Error("freshly loaded session should be clean")
	}
	time.Sleep(80 * time.Millisecond)
	if store.replaceCount() != 0 {
		t.Errorf("unexpected save after clean load: %d", store.replaceCount())
	}
}

// TestLoadError 加载失败向上返回
func TestLoadError(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("boom")}
	s := testSession(store)
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}

// TestCanvasDrivesGraph 经由状态机的完整交互：拖放插入、拖拽移动、连线
func TestCanvasDrivesGraph(t *testing.T) {
	store := &fakeStore{}
	s := testSession(store)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	m := s.Machine()

	// 托盘拖放插入 delay
	m.DropPalette(automation.NodeTypeDelay, viewport.Point{X: 100, Y: 300})
	a := *s.Selected()
	if len(a.Nodes) != 3 {
		t.Fatalf("expected 3 nodes after drop, got %d", len(a.Nodes))
	}
	delay := a.Nodes[2]
	if delay.Position.X != 100 || delay.Position.Y != 300 {
		t.Errorf("drop position = %+v", delay.Position)
	}

	// 拖拽节点
	m.PointerDown(canvas.Hit{Kind: canvas.HitNodeBody, NodeID: delay.ID}, viewport.Point{X: 0, Y: 0})
	m.PointerMove(viewport.Point{X: 50, Y: 0})
	m.PointerUp(canvas.Hit{Kind: canvas.HitBackground})
	a = *s.Selected()
	if got := a.NodeByID(delay.ID).Position.X; got != 150 {
		t.Errorf("dragged X = %v", got)
	}
	if nodeID, open := s.SelectedNode(); nodeID != delay.ID || !open {
		t.Errorf("drag should select node and open inspector: %q %v", nodeID, open)
	}

	// 输出柄 → 输入柄连线
	a = *s.Selected()
	action := a.Nodes[1]
	m.PointerDown(canvas.Hit{Kind: canvas.HitOutputHandle, NodeID: delay.ID, Port: automation.PortOut}, viewport.Point{})
	m.PointerUp(canvas.Hit{Kind: canvas.HitInputHandle, NodeID: action.ID})
	a = *s.Selected()
	if len(a.Edges) != 2 {
		t.Errorf("expected 2 edges after connect, got %d", len(a.Edges))
	}

	// 双击输入柄断开全部入边
	m.DoubleClick(canvas.Hit{Kind: canvas.HitInputHandle, NodeID: action.ID})
	a = *s.Selected()
	if len(a.Edges) != 0 {
		t.Errorf("expected all incoming edges removed, got %d", len(a.Edges))
	}
}

// TestNoteHasNoOutput 从 note 的位置发起连线在图层面被拒绝，画布状态正常复位
func TestNoteHasNoOutput(t *testing.T) {
	store := &fakeStore{}
	s := testSession(store)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	m := s.Machine()

	m.DropPalette(automation.NodeTypeNote, viewport.Point{X: 0, Y: 0})
	a := *s.Selected()
	note := a.Nodes[2]
	action := a.Nodes[1]
	edges := len(a.Edges)

	m.PointerDown(canvas.Hit{Kind: canvas.HitOutputHandle, NodeID: note.ID, Port: automation.PortOut}, viewport.Point{})
	m.PointerUp(canvas.Hit{Kind: canvas.HitInputHandle, NodeID: action.ID})

	a = *s.Selected()
	if len(a.Edges) != edges {
		t.Errorf("edge out of a note was created")
	}
	if m.Mode() != canvas.ModeIdle {
		t.Errorf("machine stuck in %s", m.Mode())
	}
}

// TestCollectionOperations 新建/复制/删除与立即保存
func TestCollectionOperations(t *testing.T) {
	store := &fakeStore{}
	s := testSession(store)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	created := s.CreateAutomation("Drip campaign")
	if created == nil || created.Name != "Drip campaign" {
		t.Fatalf("create returned %+v", created)
	}
	if sel := s.Selected(); sel.ID != created.ID {
		t.Error("created automation not selected")
	}

	if err := s.DuplicateAutomation(context.Background(), created.ID); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	got := s.Automations()
	if len(got) != 3 {
		t.Fatalf("expected 3 automations, got %d", len(got))
	}
	if got[2].Name != "Drip campaign (copy)" {
		t.Errorf("copy name: %q", got[2].Name)
	}
	if store.replaceCount() == 0 {
		t.Error("duplicate should save immediately")
	}

	if err := s.DeleteAutomation(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, a := range s.Automations() {
		if a.ID == created.ID {
			t.Error("automation not deleted")
		}
	}
	if sel := s.Selected(); sel == nil {
		t.Error("selection not moved after deleting selected automation")
	}
}

// TestManualTriggers 测试短信与手动运行转发到存储客户端
func TestManualTriggers(t *testing.T) {
	store := &fakeStore{}
	s := testSession(store)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	id := s.Selected().ID

	if err := s.TestSMS(context.Background(), "+15551234567", "hello"); err != nil {
		t.Fatalf("test sms: %v", err)
	}
	if len(store.testSMS) != 1 || store.testSMS[0] != id+"|+15551234567|hello" {
		t.Errorf("testSMS calls: %v", store.testSMS)
	}

	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("run now: %v", err)
	}
	if len(store.runs) != 1 || store.runs[0] != id {
		t.Errorf("runs: %v", store.runs)
	}
	if s.Busy() {
		t.Error("busy flag not cleared")
	}
}
