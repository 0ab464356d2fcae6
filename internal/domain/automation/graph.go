package automation

import "time"

// 图变更操作。全部是纯函数：输入 Automation 值 + 参数，返回新的 Automation 值。
// 违反结构不变量的请求是静默 no-op（返回原值），不会产生错误或部分变更，
// 因此任意调用方（托盘拖放、复制、导入）天然获得同一套保证。

// InsertNode 在 pos 处插入一个 t 类型节点，分配新 ID、默认配置和派生标签。
// 已存在 trigger 时再插入 trigger、或节点数达到上限时为 no-op。
func InsertNode(a Automation, t NodeType, pos Position, ids IDSource) Automation {
	if !t.IsValid() {
		return a
	}
	if t == NodeTypeTrigger && a.HasTrigger() {
		return a
	}
	if len(a.Nodes) >= MaxNodesPerAutomation {
		return a
	}
	cfg := DefaultConfig(t)
	out := a.Clone()
	out.Nodes = append(out.Nodes, Node{
		ID:       ids(),
		Type:     t,
		Label:    DeriveLabel(t, cfg),
		Position: pos.Clamp(),
		Config:   cfg,
	})
	return touch(out)
}

// DeleteNode 删除节点并级联删除所有以它为端点的边
func DeleteNode(a Automation, nodeID string) Automation {
	if a.NodeByID(nodeID) == nil {
		return a
	}
	out := a.Clone()
	nodes := out.Nodes[:0]
	for _, n := range out.Nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		}
	}
	out.Nodes = nodes
	edges := out.Edges[:0]
	for _, e := range out.Edges {
		if e.From != nodeID && e.To != nodeID {
			edges = append(edges, e)
		}
	}
	out.Edges = edges
	return touch(out)
}

// MoveNode 移动节点到世界坐标 (x, y)，仅做边界裁剪，不做其它校验
func MoveNode(a Automation, nodeID string, x, y float64) Automation {
	if a.NodeByID(nodeID) == nil {
		return a
	}
	out := a.Clone()
	n := out.NodeByID(nodeID)
	n.Position = Position{X: x, Y: y}.Clamp()
	return touch(out)
}

// UpdateNodeConfig 将 patch 合并进节点配置。patch 的 kind 与节点类型不符时
// 从 DefaultConfig 重新开始合并。当前标签仍是派生标签时同步重新派生。
func UpdateNodeConfig(a Automation, nodeID string, patch NodeConfig) Automation {
	if a.NodeByID(nodeID) == nil {
		return a
	}
	out := a.Clone()
	n := out.NodeByID(nodeID)

	base := n.Config
	if !base.Matches(n.Type) {
		base = DefaultConfig(n.Type)
	}
	if patch.Kind == "" {
		patch.Kind = n.Type
	}
	if patch.Kind == n.Type {
		n.Config = base.Merge(patch)
	} else {
		n.Config = base
	}

	if LooksAutoGenerated(n.Label) {
		n.Label = DeriveLabel(n.Type, n.Config)
	}
	return touch(out)
}

// SetLabel 用户手动设置标签。手改标签是粘性的：后续配置变更不再覆盖它，
// 除非新文本本身又匹配派生标签的模式。
func SetLabel(a Automation, nodeID, text string) Automation {
	if a.NodeByID(nodeID) == nil {
		return a
	}
	out := a.Clone()
	out.NodeByID(nodeID).Label = text
	return touch(out)
}

// Connect 连接 from 节点的 port 端口到 to 节点。以下情况为 no-op：
// 自环、重复边、to 不允许入边、from 在该端口上不允许出边、边数达到上限。
func Connect(a Automation, fromID string, port Port, toID string, ids IDSource) Automation {
	if fromID == toID {
		return a
	}
	from := a.NodeByID(fromID)
	to := a.NodeByID(toID)
	if from == nil || to == nil {
		return a
	}
	if port == "" {
		port = PortOut
	}
	if !from.Type.AllowsOutgoing() || !port.ValidFor(from.Type) {
		return a
	}
	if !to.Type.AllowsIncoming() {
		return a
	}
	if len(a.Edges) >= MaxEdgesPerAutomation {
		return a
	}
	e := Edge{ID: ids(), From: fromID, FromPort: port, To: toID}
	if a.hasEdgeKey(e.Key()) {
		return a
	}
	out := a.Clone()
	out.Edges = append(out.Edges, e)
	return touch(out)
}

// Disconnect 按边 ID 删除单条边
func Disconnect(a Automation, edgeID string) Automation {
	return removeEdges(a, func(e Edge) bool { return e.ID == edgeID })
}

// DisconnectAllFrom 删除 nodeID 的全部出边；port 非空时只删该端口上的出边
func DisconnectAllFrom(a Automation, nodeID string, port Port) Automation {
	return removeEdges(a, func(e Edge) bool {
		return e.From == nodeID && (port == "" || e.FromPort == port)
	})
}

// DisconnectAllTo 删除 nodeID 的全部入边
func DisconnectAllTo(a Automation, nodeID string) Automation {
	return removeEdges(a, func(e Edge) bool { return e.To == nodeID })
}

func removeEdges(a Automation, match func(Edge) bool) Automation {
	matched := false
	for _, e := range a.Edges {
		if match(e) {
			matched = true
			break
		}
	}
	if !matched {
		return a
	}
	out := a.Clone()
	edges := out.Edges[:0]
	for _, e := range out.Edges {
		if !match(e) {
			edges = append(edges, e)
		}
	}
	out.Edges = edges
	return touch(out)
}

// Duplicate 深拷贝整条自动化，所有节点/边/自动化 ID 重新分配，名称追加副本后缀
func Duplicate(a Automation, ids IDSource) Automation {
	out := a.Clone()
	out.ID = ids()
	out.Name = a.Name + " (copy)"
	idMap := make(map[string]string, len(out.Nodes))
	for i := range out.Nodes {
		fresh := ids()
		idMap[out.Nodes[i].ID] = fresh
		out.Nodes[i].ID = fresh
	}
	for i := range out.Edges {
		out.Edges[i].ID = ids()
		out.Edges[i].From = idMap[out.Edges[i].From]
		out.Edges[i].To = idMap[out.Edges[i].To]
	}
	return touch(out)
}

func touch(a Automation) Automation {
	a.UpdatedAt = time.Now().UTC()
	return a
}
