// Package client 编辑器侧的远端存储 HTTP 客户端，对应服务端的
// /automations 接口族。实现 editor.StoreClient。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"textflow/internal/domain/automation"
)

// Config 客户端配置
type Config struct {
	BaseURL string
	Token   string // Bearer token
	Timeout time.Duration
}

// Client /automations 接口的 HTTP 客户端
type Client struct {
	cfg  Config
	http *http.Client
}

// New 创建客户端
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// settingsResponse GET/PUT /automations/settings 的应答
type settingsResponse struct {
	OK          bool                    `json:"ok"`
	Automations []automation.Automation `json:"automations"`
	Error       string                  `json:"error,omitempty"`
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Load 拉取账户的自动化集合
func (c *Client) Load(ctx context.Context) ([]automation.Automation, error) {
	var resp settingsResponse
	if err := c.do(ctx, http.MethodGet, "/automations/settings", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("load automations: %s", resp.Error)
	}
	return resp.Automations, nil
}

// Replace 整体替换集合，返回服务端规范化后的权威集合
func (c *Client) Replace(ctx context.Context, automations []automation.Automation) ([]automation.Automation, error) {
	body := map[string]any{"automations": automations}
	var resp settingsResponse
	if err := c.do(ctx, http.MethodPut, "/automations/settings", body, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("save automations: %s", resp.Error)
	}
	return resp.Automations, nil
}

// TestSMS 模拟一条入站短信触发
func (c *Client) TestSMS(ctx context.Context, automationID, from, body string) error {
	req := map[string]any{"automationId": automationID, "from": from, "body": body}
	var resp okResponse
	if err := c.do(ctx, http.MethodPost, "/automations/test-sms", req, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("test sms: %s", resp.Error)
	}
	return nil
}

// RunNow 手动触发 manual 类型执行
func (c *Client) RunNow(ctx context.Context, automationID string) error {
	req := map[string]any{"automationId": automationID}
	var resp okResponse
	if err := c.do(ctx, http.MethodPost, "/automations/run", req, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("run automation: %s", resp.Error)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	return nil
}
