package automation

// TriggerKind 触发器种类
type TriggerKind string

const (
	TriggerInboundSMS TriggerKind = "inbound_sms"
	TriggerTagAdded   TriggerKind = "tag_added"
	TriggerWebhook    TriggerKind = "webhook"
	TriggerSchedule   TriggerKind = "schedule"
	TriggerManual     TriggerKind = "manual"
)

// IsValid 判断触发器种类是否合法
func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerInboundSMS, TriggerTagAdded, TriggerWebhook, TriggerSchedule, TriggerManual:
		return true
	default:
		return false
	}
}

// ActionKind 动作种类
type ActionKind string

const (
	ActionSendSMS   ActionKind = "send_sms"
	ActionSendEmail ActionKind = "send_email"
	ActionAddTag    ActionKind = "add_tag"
	ActionRemoveTag ActionKind = "remove_tag"
	ActionWebhook   ActionKind = "webhook"
)

// IsValid 判断动作种类是否合法
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionSendSMS, ActionSendEmail, ActionAddTag, ActionRemoveTag, ActionWebhook:
		return true
	default:
		return false
	}
}

// ConditionOp 条件比较操作符
type ConditionOp string

const (
	OpEq          ConditionOp = "eq"
	OpNeq         ConditionOp = "neq"
	OpContains    ConditionOp = "contains"
	OpNotContains ConditionOp = "not_contains"
	OpGt          ConditionOp = "gt"
	OpLt          ConditionOp = "lt"
	OpIsEmpty     ConditionOp = "is_empty"
	OpIsNotEmpty  ConditionOp = "is_not_empty"
)

// IsUnary is_empty/is_not_empty 不需要右操作数
func (op ConditionOp) IsUnary() bool {
	return op == OpIsEmpty || op == OpIsNotEmpty
}

// Symbol 操作符的展示形式
func (op ConditionOp) Symbol() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpContains:
		return "contains"
	case OpNotContains:
		return "not contains"
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpIsEmpty:
		return "is empty"
	case OpIsNotEmpty:
		return "is not empty"
	default:
		return string(op)
	}
}

// DelayUnit 延迟的展示单位
type DelayUnit string

const (
	UnitMinutes DelayUnit = "minutes"
	UnitHours   DelayUnit = "hours"
	UnitDays    DelayUnit = "days"
	UnitWeeks   DelayUnit = "weeks"
	UnitMonths  DelayUnit = "months"
)

// Minutes 单位换算为分钟
func (u DelayUnit) Minutes() int {
	switch u {
	case UnitHours:
		return 60
	case UnitDays:
		return 24 * 60
	case UnitWeeks:
		return 7 * 24 * 60
	case UnitMonths:
		return 30 * 24 * 60
	default:
		return 1
	}
}

// delayUnits 从大到小排列，用于推断最大的能整除的展示单位
var delayUnits = []DelayUnit{UnitMonths, UnitWeeks, UnitDays, UnitHours, UnitMinutes}

// InferDelayUnit 返回能整除 minutes 的最大单位；minutes<=0 时返回 minutes 单位
func InferDelayUnit(minutes int) DelayUnit {
	if minutes <= 0 {
		return UnitMinutes
	}
	for _, u := range delayUnits {
		if minutes%u.Minutes() == 0 {
			return u
		}
	}
	return UnitMinutes
}

// TriggerConfig trigger 节点配置
type TriggerConfig struct {
	Kind       TriggerKind `json:"triggerKind"`
	TagID      string      `json:"tagId,omitempty"`      // tag_added
	WebhookKey string      `json:"webhookKey,omitempty"` // webhook
	Schedule   string      `json:"schedule,omitempty"`   // schedule
}

// ActionConfig action 节点配置
type ActionConfig struct {
	Kind    ActionKind `json:"actionKind"`
	To      string     `json:"to,omitempty"` // 目标选择（contact / 固定号码 / 成员）
	Body    string     `json:"body,omitempty"`
	Subject string     `json:"subject,omitempty"` // send_email
	TagID   string     `json:"tagId,omitempty"`   // add_tag / remove_tag
	URL     string     `json:"url,omitempty"`     // webhook
}

// DelayConfig delay 节点配置。Minutes 是唯一事实来源，
// Unit/Value 是展示用分解，约束 Minutes == Value * Unit.Minutes()。
type DelayConfig struct {
	Minutes int       `json:"minutes"`
	Unit    DelayUnit `json:"unit"`
	Value   int       `json:"value"`
}

// Normalize 重建 Unit/Value 与 Minutes 的一致性。
// Unit/Value 已设置时以它们为准重算 Minutes，否则从 Minutes 推导展示分解。
func (c DelayConfig) Normalize() DelayConfig {
	if c.Unit != "" && c.Value > 0 {
		c.Minutes = c.Value * c.Unit.Minutes()
		return c
	}
	if c.Minutes < 0 {
		c.Minutes = 0
	}
	c.Unit = InferDelayUnit(c.Minutes)
	c.Value = c.Minutes / c.Unit.Minutes()
	return c
}

// ConditionConfig condition 节点配置
type ConditionConfig struct {
	Left  string      `json:"left"`
	Op    ConditionOp `json:"op"`
	Right string      `json:"right,omitempty"`
}

// NoteConfig note 节点配置
type NoteConfig struct {
	Text string `json:"text,omitempty"`
}

// NodeConfig 按 kind 区分的封闭配置联合。只有与 kind 匹配的分支会被设置。
type NodeConfig struct {
	Kind      NodeType         `json:"kind,omitempty"`
	Trigger   *TriggerConfig   `json:"trigger,omitempty"`
	Action    *ActionConfig    `json:"action,omitempty"`
	Delay     *DelayConfig     `json:"delay,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
	Note      *NoteConfig      `json:"note,omitempty"`
}

// DefaultConfig 每种节点类型的初始配置
func DefaultConfig(t NodeType) NodeConfig {
	switch t {
	case NodeTypeTrigger:
		return NodeConfig{Kind: t, Trigger: &TriggerConfig{Kind: TriggerInboundSMS}}
	case NodeTypeAction:
		return NodeConfig{Kind: t, Action: &ActionConfig{Kind: ActionSendSMS, To: "contact"}}
	case NodeTypeDelay:
		return NodeConfig{Kind: t, Delay: &DelayConfig{Minutes: 5, Unit: UnitMinutes, Value: 5}}
	case NodeTypeCondition:
		return NodeConfig{Kind: t, Condition: &ConditionConfig{Left: "contact.tag", Op: OpEq}}
	case NodeTypeNote:
		return NodeConfig{Kind: t, Note: &NoteConfig{}}
	default:
		return NodeConfig{Kind: t}
	}
}

// Clone 深拷贝配置
func (c NodeConfig) Clone() NodeConfig {
	out := c
	if c.Trigger != nil {
		v := *c.Trigger
		out.Trigger = &v
	}
	if c.Action != nil {
		v := *c.Action
		out.Action = &v
	}
	if c.Delay != nil {
		v := *c.Delay
		out.Delay = &v
	}
	if c.Condition != nil {
		v := *c.Condition
		out.Condition = &v
	}
	if c.Note != nil {
		v := *c.Note
		out.Note = &v
	}
	return out
}

// Matches 配置的 kind 与节点类型是否一致且对应分支存在
func (c NodeConfig) Matches(t NodeType) bool {
	if c.Kind != t {
		return false
	}
	switch t {
	case NodeTypeTrigger:
		return c.Trigger != nil
	case NodeTypeAction:
		return c.Action != nil
	case NodeTypeDelay:
		return c.Delay != nil
	case NodeTypeCondition:
		return c.Condition != nil
	case NodeTypeNote:
		return c.Note != nil
	default:
		return false
	}
}

// Merge 将 patch 中已设置的字段合并进现有配置，返回合并结果。
// 字符串字段非空才覆盖；delay 的 unit/value/minutes 作为整体重新归一化；
// condition 换成一元操作符时清空右操作数。
func (c NodeConfig) Merge(patch NodeConfig) NodeConfig {
	out := c.Clone()
	switch {
	case out.Trigger != nil && patch.Trigger != nil:
		p := patch.Trigger
		if p.Kind != "" {
			out.Trigger.Kind = p.Kind
		}
		if p.TagID != "" {
			out.Trigger.TagID = p.TagID
		}
		if p.WebhookKey != "" {
			out.Trigger.WebhookKey = p.WebhookKey
		}
		if p.Schedule != "" {
			out.Trigger.Schedule = p.Schedule
		}
	case out.Action != nil && patch.Action != nil:
		p := patch.Action
		if p.Kind != "" {
			out.Action.Kind = p.Kind
		}
		if p.To != "" {
			out.Action.To = p.To
		}
		if p.Body != "" {
			out.Action.Body = p.Body
		}
		if p.Subject != "" {
			out.Action.Subject = p.Subject
		}
		if p.TagID != "" {
			out.Action.TagID = p.TagID
		}
		if p.URL != "" {
			out.Action.URL = p.URL
		}
	case out.Delay != nil && patch.Delay != nil:
		p := patch.Delay
		next := *out.Delay
		if p.Unit != "" {
			next.Unit = p.Unit
		}
		if p.Value > 0 {
			next.Value = p.Value
		}
		if p.Unit == "" && p.Value == 0 && p.Minutes != next.Minutes {
			// patch 直接给出规范分钟数时，重新推导展示分解
			next = DelayConfig{Minutes: p.Minutes}
		}
		*out.Delay = next.Normalize()
	case out.Condition != nil && patch.Condition != nil:
		p := patch.Condition
		if p.Left != "" {
			out.Condition.Left = p.Left
		}
		if p.Op != "" {
			out.Condition.Op = p.Op
		}
		if p.Right != "" {
			out.Condition.Right = p.Right
		}
		if out.Condition.Op.IsUnary() {
			out.Condition.Right = ""
		}
	case out.Note != nil && patch.Note != nil:
		out.Note.Text = patch.Note.Text
	}
	return out
}
