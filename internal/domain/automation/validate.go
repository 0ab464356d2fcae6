package automation

import "fmt"

// NormalizeCollection 服务端保存前的整体校验与规范化。
// 编辑器的乐观本地状态可能携带越界位置、悬空边、空 ID（新建待分配）等，
// 这里统一收敛为规范形态，返回值即保存后回传客户端的权威集合。
// 超出账户上限等无法修复的问题返回错误，本地草稿由调用方保留。
func NormalizeCollection(automations []Automation, ids IDSource) ([]Automation, error) {
	if len(automations) > MaxAutomationsPerAccount {
		return nil, fmt.Errorf("account automation limit exceeded: %d > %d", len(automations), MaxAutomationsPerAccount)
	}

	out := make([]Automation, 0, len(automations))
	for i, a := range automations {
		norm, err := normalizeAutomation(a, ids)
		if err != nil {
			return nil, fmt.Errorf("automation %d (%s): %w", i, a.Name, err)
		}
		out = append(out, norm)
	}
	return out, nil
}

func normalizeAutomation(a Automation, ids IDSource) (Automation, error) {
	if len(a.Nodes) > MaxNodesPerAutomation {
		return a, fmt.Errorf("node limit exceeded: %d > %d", len(a.Nodes), MaxNodesPerAutomation)
	}
	if len(a.Edges) > MaxEdgesPerAutomation {
		return a, fmt.Errorf("edge limit exceeded: %d > %d", len(a.Edges), MaxEdgesPerAutomation)
	}

	out := a.Clone()
	if out.ID == "" {
		out.ID = ids()
	}
	if out.Name == "" {
		out.Name = "Untitled automation"
	}

	// 节点：类型合法、ID 唯一、至多一个 trigger（先到先得）、位置裁剪、配置兜底
	seen := make(map[string]bool, len(out.Nodes))
	hasTrigger := false
	nodes := out.Nodes[:0]
	for _, n := range out.Nodes {
		if !n.Type.IsValid() {
			return a, fmt.Errorf("invalid node type %q", n.Type)
		}
		if n.ID == "" {
			n.ID = ids()
		}
		if seen[n.ID] {
			return a, fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		if n.Type == NodeTypeTrigger {
			if hasTrigger {
				continue // 第二个 trigger 丢弃
			}
			hasTrigger = true
		}
		n.Position = n.Position.Clamp()
		if !n.Config.Matches(n.Type) {
			n.Config = DefaultConfig(n.Type)
		}
		if n.Type == NodeTypeDelay {
			*n.Config.Delay = n.Config.Delay.Normalize()
		}
		if n.Label == "" {
			n.Label = DeriveLabel(n.Type, n.Config)
		}
		nodes = append(nodes, n)
	}
	out.Nodes = nodes

	// 边：端点存在、端口合法、键唯一、能力约束；不合法的边直接丢弃
	nodeType := make(map[string]NodeType, len(out.Nodes))
	for _, n := range out.Nodes {
		nodeType[n.ID] = n.Type
	}
	keys := make(map[string]bool, len(out.Edges))
	edges := out.Edges[:0]
	for _, e := range out.Edges {
		fromType, okFrom := nodeType[e.From]
		toType, okTo := nodeType[e.To]
		if !okFrom || !okTo || e.From == e.To {
			continue
		}
		if e.FromPort == "" {
			e.FromPort = PortOut
		}
		if !fromType.AllowsOutgoing() || !e.FromPort.ValidFor(fromType) || !toType.AllowsIncoming() {
			continue
		}
		if keys[e.Key()] {
			continue
		}
		keys[e.Key()] = true
		if e.ID == "" {
			e.ID = ids()
		}
		edges = append(edges, e)
	}
	out.Edges = edges

	return out, nil
}
