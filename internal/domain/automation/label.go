package automation

import (
	"fmt"
	"regexp"
	"strings"
)

// HumanName 触发器种类的展示名
func (k TriggerKind) HumanName() string {
	switch k {
	case TriggerInboundSMS:
		return "Inbound SMS"
	case TriggerTagAdded:
		return "Tag Added"
	case TriggerWebhook:
		return "Webhook"
	case TriggerSchedule:
		return "Schedule"
	case TriggerManual:
		return "Manual"
	default:
		return string(k)
	}
}

// HumanName 动作种类的展示名
func (k ActionKind) HumanName() string {
	switch k {
	case ActionSendSMS:
		return "Send SMS"
	case ActionSendEmail:
		return "Send Email"
	case ActionAddTag:
		return "Add Tag"
	case ActionRemoveTag:
		return "Remove Tag"
	case ActionWebhook:
		return "Webhook"
	default:
		return string(k)
	}
}

// DeriveLabel 从类型化配置派生节点的展示标签（纯函数）
func DeriveLabel(t NodeType, cfg NodeConfig) string {
	switch t {
	case NodeTypeTrigger:
		if cfg.Trigger != nil {
			return "Trigger: " + cfg.Trigger.Kind.HumanName()
		}
		return "Trigger:"
	case NodeTypeAction:
		if cfg.Action != nil {
			return "Action: " + cfg.Action.Kind.HumanName()
		}
		return "Action:"
	case NodeTypeDelay:
		d := DelayConfig{}
		if cfg.Delay != nil {
			d = *cfg.Delay
		}
		d = d.Normalize()
		unit := strings.TrimSuffix(string(d.Unit), "s")
		if d.Value != 1 {
			unit += "s"
		}
		return fmt.Sprintf("Delay: %d %s", d.Value, unit)
	case NodeTypeCondition:
		c := ConditionConfig{}
		if cfg.Condition != nil {
			c = *cfg.Condition
		}
		label := fmt.Sprintf("Condition: %s %s", c.Left, c.Op.Symbol())
		if !c.Op.IsUnary() && c.Right != "" {
			label += " " + c.Right
		}
		return strings.TrimRight(label, " ")
	case NodeTypeNote:
		return "Note"
	default:
		return string(t)
	}
}

// autoLabelPattern 派生标签的可识别前缀
var autoLabelPattern = regexp.MustCompile(`^(Trigger|Action|Delay|Condition):`)

// 历史版本遗留的占位标签，同样视为可覆盖
var placeholderLabels = []string{"New Node", "Untitled"}

// LooksAutoGenerated 判断标签是否为派生/占位标签。
// 返回 true 的标签允许在配置变更时被重新派生覆盖；用户手改的标签不被触碰。
func LooksAutoGenerated(label string) bool {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || trimmed == "Note" {
		return true
	}
	for _, p := range placeholderLabels {
		if strings.Contains(trimmed, p) {
			return true
		}
	}
	return autoLabelPattern.MatchString(trimmed)
}
