package port

import (
	"time"

	"textflow/internal/domain/automation"
)

// Account 账户（自动化集合的属主）
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settings 账户的自动化集合文档。集合整体是持久化单元（无行级更新）。
type Settings struct {
	AccountID   string                  `json:"account_id"`
	Automations []automation.Automation `json:"automations"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Tag 联系人标签（节点配置下拉的数据源之一）
type Tag struct {
	ID        string    `json:"id"`
	AccountID string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Member 账户成员（send 动作的目标选择项）
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Campaign 外部营销活动列表项（只读数据源）
type Campaign struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// TriggerEvent 投递给外部执行引擎的触发事件
type TriggerEvent struct {
	AccountID    string                 `json:"account_id"`
	AutomationID string                 `json:"automation_id"`
	Kind         automation.TriggerKind `json:"kind"`
	From         string                 `json:"from,omitempty"` // inbound_sms 来源号码
	Body         string                 `json:"body,omitempty"` // inbound_sms 正文
	Test         bool                   `json:"test,omitempty"` // 测试投递，不产生真实外呼
	EnqueuedAt   time.Time              `json:"enqueued_at"`
}
