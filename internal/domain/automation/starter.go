package automation

import "time"

// Starter 合成两节点起步模板：inbound_sms 触发 → send_sms 动作。
// 账户还没有任何自动化时由加载端点返回，首次保存时才真正落库。
func Starter(ids IDSource) Automation {
	triggerCfg := DefaultConfig(NodeTypeTrigger)
	actionCfg := DefaultConfig(NodeTypeAction)
	trigger := Node{
		ID:       ids(),
		Type:     NodeTypeTrigger,
		Label:    DeriveLabel(NodeTypeTrigger, triggerCfg),
		Position: Position{X: -220, Y: 0},
		Config:   triggerCfg,
	}
	action := Node{
		ID:       ids(),
		Type:     NodeTypeAction,
		Label:    DeriveLabel(NodeTypeAction, actionCfg),
		Position: Position{X: 220, Y: 0},
		Config:   actionCfg,
	}
	return Automation{
		ID:        ids(),
		Name:      "Welcome reply",
		UpdatedAt: time.Now().UTC(),
		Nodes:     []Node{trigger, action},
		Edges: []Edge{
			{ID: ids(), From: trigger.ID, FromPort: PortOut, To: action.ID},
		},
	}
}
