package automation

import "time"

// NodeType 自动化节点类型
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeCondition NodeType = "condition"
	NodeTypeNote      NodeType = "note"
)

// IsValid 判断节点类型是否合法
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeTrigger, NodeTypeAction, NodeTypeDelay, NodeTypeCondition, NodeTypeNote:
		return true
	default:
		return false
	}
}

// AllowsIncoming trigger 节点不允许入边
func (t NodeType) AllowsIncoming() bool {
	return t != NodeTypeTrigger
}

// AllowsOutgoing note 节点不暴露任何出口
func (t NodeType) AllowsOutgoing() bool {
	return t != NodeTypeNote
}

// Port 边的源端口。只有 condition 节点有 true/false 分支端口，其余统一为 out。
type Port string

const (
	PortOut   Port = "out"
	PortTrue  Port = "true"
	PortFalse Port = "false"
)

// ValidFor 判断端口对给定源节点类型是否合法
func (p Port) ValidFor(t NodeType) bool {
	if t == NodeTypeCondition {
		return p == PortTrue || p == PortFalse
	}
	return p == PortOut
}

// 每账户/每自动化的结构上限
const (
	MaxAutomationsPerAccount = 50
	MaxNodesPerAutomation    = 250
	MaxEdgesPerAutomation    = 500
)

// 世界坐标裁剪边界。画布本身无界，持久化的位置被裁剪到这个矩形内。
const (
	BoundsX = 6000
	BoundsY = 8000
)

// Position 节点在世界坐标系中的位置
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamp 裁剪到世界坐标边界
func (p Position) Clamp() Position {
	return Position{
		X: clampFloat(p.X, -BoundsX, BoundsX),
		Y: clampFloat(p.Y, -BoundsY, BoundsY),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Node 自动化图中的一个节点
type Node struct {
	ID       string     `json:"id"`
	Type     NodeType   `json:"type"`
	Label    string     `json:"label"`
	Position Position   `json:"position"`
	Config   NodeConfig `json:"config"`
}

// Edge 两个节点之间的有向连接。唯一键为 (from, fromPort, to)。
type Edge struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromPort Port   `json:"fromPort"`
	To       string `json:"to"`
}

// Key 返回边的去重键
func (e Edge) Key() string {
	return e.From + "|" + string(e.FromPort) + "|" + e.To
}

// Automation 一条自动化：命名的节点/边有向图
type Automation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
}

// NodeByID 按 ID 查找节点，未找到返回 nil
func (a *Automation) NodeByID(id string) *Node {
	for i := range a.Nodes {
		if a.Nodes[i].ID == id {
			return &a.Nodes[i]
		}
	}
	return nil
}

// TriggerNode 返回自动化中的 trigger 节点（至多一个），没有则返回 nil
func (a *Automation) TriggerNode() *Node {
	for i := range a.Nodes {
		if a.Nodes[i].Type == NodeTypeTrigger {
			return &a.Nodes[i]
		}
	}
	return nil
}

// HasTrigger 是否已存在 trigger 节点
func (a *Automation) HasTrigger() bool {
	return a.TriggerNode() != nil
}

// hasEdgeKey 是否存在 (from, port, to) 相同的边
func (a *Automation) hasEdgeKey(key string) bool {
	for i := range a.Edges {
		if a.Edges[i].Key() == key {
			return true
		}
	}
	return false
}

// Clone 深拷贝。图变更操作都是 copy-on-write 的，原值永不被原地修改。
func (a Automation) Clone() Automation {
	out := a
	out.Nodes = make([]Node, len(a.Nodes))
	for i, n := range a.Nodes {
		n.Config = n.Config.Clone()
		out.Nodes[i] = n
	}
	out.Edges = append([]Edge(nil), a.Edges...)
	return out
}
