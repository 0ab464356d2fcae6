// Package postgres 自动化设置的 PostgreSQL 存储。
// 每个账户的自动化集合作为一个 JSONB 文档整体读写（集合是持久化单元）。
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"textflow/internal/domain/automation"
	"textflow/internal/domain/automation/port"
	applog "textflow/internal/platform/log"
)

type Repository struct {
	db *sql.DB
}

// NewRepository 创建 PostgreSQL 存储
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureTables 确保所有表存在
func (r *Repository) EnsureTables(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS accounts (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name       VARCHAR(255) NOT NULL,
		status     VARCHAR(32) NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS automation_settings (
		account_id  UUID PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
		automations JSONB NOT NULL DEFAULT '[]',
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS contact_tags (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		name       VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (account_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_contact_tags_account ON contact_tags(account_id);

	CREATE TABLE IF NOT EXISTS account_members (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		name       VARCHAR(255) NOT NULL,
		phone      VARCHAR(32)  NOT NULL DEFAULT '',
		email      VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_account_members_account ON account_members(account_id);

	CREATE TABLE IF NOT EXISTS campaigns (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		name       VARCHAR(255) NOT NULL,
		status     VARCHAR(32) NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_campaigns_account ON campaigns(account_id);
	`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// --- Account ---

// GetAccount 按 ID 查询账户，未找到返回 nil
func (r *Repository) GetAccount(ctx context.Context, id string) (*port.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, status, created_at, updated_at FROM accounts WHERE id = $1`, id)
	acc := &port.Account{}
	err := row.Scan(&acc.ID, &acc.Name, &acc.Status, &acc.CreatedAt, &acc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// CreateAccount 创建账户
func (r *Repository) CreateAccount(ctx context.Context, acc *port.Account) error {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.Status == "" {
		acc.Status = "active"
	}
	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		acc.ID, acc.Name, acc.Status, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// --- Settings ---

// GetSettings 读取账户的自动化集合。没有记录时返回空集合。
func (r *Repository) GetSettings(ctx context.Context, accountID string) (*port.Settings, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT automations, updated_at FROM automation_settings WHERE account_id = $1`, accountID)

	var raw []byte
	var updatedAt time.Time
	err := row.Scan(&raw, &updatedAt)
	if err == sql.ErrNoRows {
		return &port.Settings{AccountID: accountID, Automations: []automation.Automation{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var automations []automation.Automation
	if err := json.Unmarshal(raw, &automations); err != nil {
		return nil, fmt.Errorf("decode settings document: %w", err)
	}
	return &port.Settings{AccountID: accountID, Automations: automations, UpdatedAt: updatedAt}, nil
}

// ReplaceSettings 整体替换账户的自动化集合（UPSERT）。
// last-write-wins：无版本号，后保存的会话覆盖先保存的。
func (r *Repository) ReplaceSettings(ctx context.Context, accountID string, automations []automation.Automation) (*port.Settings, error) {
	if automations == nil {
		automations = []automation.Automation{}
	}
	raw, err := json.Marshal(automations)
	if err != nil {
		return nil, fmt.Errorf("encode settings document: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automation_settings (account_id, automations, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET automations = $2, updated_at = $3`,
		accountID, raw, now)
	if err != nil {
		return nil, fmt.Errorf("replace settings: %w", err)
	}

	applog.Debug("[Storage] Settings replaced", "account_id", accountID, "automations", len(automations))
	return &port.Settings{AccountID: accountID, Automations: automations, UpdatedAt: now}, nil
}

// --- Lookup 数据源 ---

// ListTags 账户的联系人标签
func (r *Repository) ListTags(ctx context.Context, accountID string) ([]*port.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, name, created_at FROM contact_tags WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []*port.Tag
	for rows.Next() {
		t := &port.Tag{}
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// CreateTag 创建标签（检查器的标签选择器内联创建）
func (r *Repository) CreateTag(ctx context.Context, tag *port.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	tag.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_tags (id, account_id, name, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account_id, name) DO NOTHING`,
		tag.ID, tag.AccountID, tag.Name, tag.CreatedAt)
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// ListMembers 账户成员
func (r *Repository) ListMembers(ctx context.Context, accountID string) ([]*port.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, phone, email FROM account_members WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*port.Member
	for rows.Next() {
		m := &port.Member{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListCampaigns 营销活动列表
func (r *Repository) ListCampaigns(ctx context.Context, accountID string) ([]*port.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, status FROM campaigns WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*port.Campaign
	for rows.Next() {
		c := &port.Campaign{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Status); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}
