package port

import (
	"context"

	"textflow/internal/domain/automation"
)

// Repository 自动化设置存储接口
type Repository interface {
	// Account
	GetAccount(ctx context.Context, id string) (*Account, error)
	CreateAccount(ctx context.Context, acc *Account) error

	// Settings — 集合整体读写。ReplaceSettings 是 last-write-wins：
	// 没有版本号/ETag，两个并发会话互相覆盖是协议的显式取舍。
	GetSettings(ctx context.Context, accountID string) (*Settings, error)
	ReplaceSettings(ctx context.Context, accountID string, automations []automation.Automation) (*Settings, error)

	// 节点配置下拉的数据源
	ListTags(ctx context.Context, accountID string) ([]*Tag, error)
	CreateTag(ctx context.Context, tag *Tag) error
	ListMembers(ctx context.Context, accountID string) ([]*Member, error)
	ListCampaigns(ctx context.Context, accountID string) ([]*Campaign, error)

	// 建表迁移
	EnsureTables(ctx context.Context) error
}

// TriggerQueue 外部执行引擎的事件入队口。编辑器只投递，不消费。
type TriggerQueue interface {
	Enqueue(ctx context.Context, evt *TriggerEvent) error
}
