// Package canvas 画布指针交互状态机。四个互斥模式（idle/panning/
// dragging-node/connecting）由一个显式的模式值切换，杜绝多个独立布尔
// 标志导致的"两种模式同时生效"。所有变更都经由图模型的纯操作下发，
// 画布任何时刻都能从单一一致的 Automation 快照渲染出来。
package canvas

import (
	"textflow/internal/domain/automation"
	"textflow/internal/editor/viewport"
)

// Mode 交互模式
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModePanning      Mode = "panning"
	ModeDraggingNode Mode = "dragging-node"
	ModeConnecting   Mode = "connecting"
)

// HitKind 指针落点类型
type HitKind int

const (
	HitBackground HitKind = iota
	HitNodeBody
	HitOutputHandle // 输出柄（condition 节点为 true/false 柄）
	HitInputHandle
)

// Hit 指针事件的落点
type Hit struct {
	Kind   HitKind
	NodeID string
	Port   automation.Port // 仅 HitOutputHandle 有意义
}

// Surface 状态机作用的编辑面。由编辑器会话实现。
type Surface interface {
	Viewport() viewport.Viewport
	SetViewport(viewport.Viewport)

	SelectNode(id string) // 选中节点并打开检查器
	ClearSelection()

	NodePosition(id string) (automation.Position, bool)
	MoveNode(id string, x, y float64)
	InsertNodeAt(t automation.NodeType, world viewport.Point)
	Connect(fromID string, port automation.Port, toID string)
	DisconnectAllFrom(nodeID string, port automation.Port)
	DisconnectAllTo(nodeID string)
}

// Machine 指针交互状态机。同一时刻只有一个模式持有捕获状态。
type Machine struct {
	surface Surface
	mode    Mode

	// panning：指针与 pan 的起点
	startClient viewport.Point
	startPanX   float64
	startPanY   float64

	// dragging-node：被拖节点与其起始世界位置
	dragNodeID string
	nodeStart  automation.Position

	// connecting：源节点/端口与预览线锚点、跟踪中的光标世界坐标
	connectFrom string
	connectPort automation.Port
	anchorWorld viewport.Point
	cursorWorld viewport.Point
}

// NewMachine 创建空闲状态机
func NewMachine(surface Surface) *Machine {
	return &Machine{surface: surface, mode: ModeIdle}
}

// Mode 当前模式
func (m *Machine) Mode() Mode {
	return m.mode
}

// PointerDown 指针按下：按落点进入 panning / dragging-node / connecting
func (m *Machine) PointerDown(hit Hit, client viewport.Point) {
	if m.mode != ModeIdle {
		return
	}
	switch hit.Kind {
	case HitBackground:
		m.surface.ClearSelection()
		v := m.surface.Viewport()
		m.mode = ModePanning
		m.startClient = client
		m.startPanX = v.PanX
		m.startPanY = v.PanY

	case HitNodeBody:
		pos, ok := m.surface.NodePosition(hit.NodeID)
		if !ok {
			return
		}
		m.surface.SelectNode(hit.NodeID)
		m.mode = ModeDraggingNode
		m.dragNodeID = hit.NodeID
		m.nodeStart = pos
		m.startClient = client

	case HitOutputHandle:
		world := m.surface.Viewport().ScreenToWorld(client)
		m.mode = ModeConnecting
		m.connectFrom = hit.NodeID
		m.connectPort = hit.Port
		m.anchorWorld = world
		m.cursorWorld = world
	}
}

// PointerMove 指针移动：按当前模式持续更新
func (m *Machine) PointerMove(client viewport.Point) {
	switch m.mode {
	case ModePanning:
		v := m.surface.Viewport()
		v.PanX = m.startPanX + (client.X - m.startClient.X)
		v.PanY = m.startPanY + (client.Y - m.startClient.Y)
		m.surface.SetViewport(v)

	case ModeDraggingNode:
		zoom := m.surface.Viewport().Zoom
		dx := (client.X - m.startClient.X) / zoom
		dy := (client.Y - m.startClient.Y) / zoom
		m.surface.MoveNode(m.dragNodeID, m.nodeStart.X+dx, m.nodeStart.Y+dy)

	case ModeConnecting:
		m.cursorWorld = m.surface.Viewport().ScreenToWorld(client)
	}
}

// PointerUp 指针抬起：panning/dragging 的位置已逐步提交，直接清状态；
// connecting 在输入柄上抬起才真正连边，否则放弃。
func (m *Machine) PointerUp(hit Hit) {
	if m.mode == ModeConnecting && hit.Kind == HitInputHandle {
		m.surface.Connect(m.connectFrom, m.connectPort, hit.NodeID)
	}
	m.reset()
}

// DoubleClick 双击端点柄：输入柄删全部入边，输出柄删该端口的全部出边
func (m *Machine) DoubleClick(hit Hit) {
	if m.mode != ModeIdle {
		return
	}
	switch hit.Kind {
	case HitInputHandle:
		m.surface.DisconnectAllTo(hit.NodeID)
	case HitOutputHandle:
		m.surface.DisconnectAllFrom(hit.NodeID, hit.Port)
	}
}

// Wheel 滚轮：普通滚动平移；按住修饰键（捏合等效）绕光标缩放
func (m *Machine) Wheel(client viewport.Point, dx, dy float64, zoomModifier bool) {
	v := m.surface.Viewport()
	if !zoomModifier {
		m.surface.SetViewport(v.Scroll(dx, dy))
		return
	}
	factor := viewport.ZoomStep
	if dy > 0 {
		factor = 1 / viewport.ZoomStep
	}
	m.surface.SetViewport(v.ZoomAt(factor, client))
}

// DropPalette 托盘项拖放：独立于指针状态机，换算世界坐标后插入节点
func (m *Machine) DropPalette(t automation.NodeType, client viewport.Point) {
	world := m.surface.Viewport().ScreenToWorld(client)
	m.surface.InsertNodeAt(t, world)
}

// PreviewEdge connecting 模式下返回虚线预览边的锚点与光标世界坐标
func (m *Machine) PreviewEdge() (from string, port automation.Port, anchor, cursor viewport.Point, ok bool) {
	if m.mode != ModeConnecting {
		return "", "", viewport.Point{}, viewport.Point{}, false
	}
	return m.connectFrom, m.connectPort, m.anchorWorld, m.cursorWorld, true
}

func (m *Machine) reset() {
	m.mode = ModeIdle
	m.dragNodeID = ""
	m.connectFrom = ""
	m.connectPort = ""
}
