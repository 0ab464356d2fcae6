package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"textflow/internal/domain/automation"
	"textflow/internal/domain/automation/port"
)

const testSecret = "test-secret"

// memRepo 内存版 port.Repository
type memRepo struct {
	mu       sync.Mutex
	accounts map[string]*port.Account
	settings map[string][]automation.Automation
	tags     map[string][]*port.Tag
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts: map[string]*port.Account{},
		settings: map[string][]automation.Automation{},
		tags:     map[string][]*port.Tag{},
	}
}

func (r *memRepo) GetAccount(_ context.Context, id string) (*port.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id], nil
}

func (r *memRepo) CreateAccount(_ context.Context, acc *port.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acc.ID] = acc
	return nil
}

func (r *memRepo) GetSettings(_ context.Context, accountID string) (*port.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &port.Settings{AccountID: accountID, Automations: r.settings[accountID]}, nil
}

func (r *memRepo) ReplaceSettings(_ context.Context, accountID string, automations []automation.Automation) (*port.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[accountID] = automations
	return &port.Settings{AccountID: accountID, Automations: automations, UpdatedAt: time.Now()}, nil
}

func (r *memRepo) ListTags(_ context.Context, accountID string) ([]*port.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tags[accountID], nil
}

func (r *memRepo) CreateTag(_ context.Context, tag *port.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tag.ID = fmt.Sprintf("tag_%d", len(r.tags[tag.AccountID])+1)
	r.tags[tag.AccountID] = append(r.tags[tag.AccountID], tag)
	return nil
}

func (r *memRepo) ListMembers(context.Context, string) ([]*port.Member, error) {
	return []*port.Member{{ID: "m1", Name: "Dana"}}, nil
}

func (r *memRepo) ListCampaigns(context.Context, string) ([]*port.Campaign, error) {
	return nil, nil
}

func (r *memRepo) EnsureTables(context.Context) error { return nil }

// memQueue 内存版触发事件队列
type memQueue struct {
	mu     sync.Mutex
	events []*port.TriggerEvent
}

func (q *memQueue) Enqueue(_ context.Context, evt *port.TriggerEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, evt)
	return nil
}

func setupTestServer(t *testing.T) (http.Handler, *memRepo, *memQueue) {
	t.Helper()
	repo := newMemRepo()
	repo.accounts["acc_1"] = &port.Account{ID: "acc_1", Name: "Test Account", Status: "active"}
	repo.accounts["acc_frozen"] = &port.Account{ID: "acc_frozen", Status: "suspended"}
	queue := &memQueue{}

	cfg := DefaultServerConfig()
	cfg.JWTSecret = testSecret
	srv := NewServer(cfg, repo, queue, nil)
	return srv.Handler(), repo, queue
}

func signToken(t *testing.T, accountID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"sub":        "user_1",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

// TestAuthRequired 所有业务路由需要有效 JWT
func TestAuthRequired(t *testing.T) {
	h, _, _ := setupTestServer(t)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not.a.jwt", http.StatusUnauthorized},
		{"unknown account", signToken(t, "acc_nope"), http.StatusForbidden},
		{"suspended account", signToken(t, "acc_frozen"), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodGet, "/automations/settings", tc.token, nil)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["error"] == "" {
				t.Error("error message missing")
			}
		})
	}

	// health 不需要鉴权
	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

// TestGetSettingsSynthesizesStarter 空账户返回起步模板但不落库
func TestGetSettingsSynthesizesStarter(t *testing.T) {
	h, repo, _ := setupTestServer(t)
	token := signToken(t, "acc_1")

	rec := doJSON(t, h, http.MethodGet, "/automations/settings", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Error("ok flag missing")
	}
	automations, _ := body["automations"].([]any)
	if len(automations) != 1 {
		t.Fatalf("expected synthesized starter, got %v", body["automations"])
	}
	viewer, _ := body["viewer"].(map[string]any)
	if viewer["account_id"] != "acc_1" {
		t.Errorf("viewer = %v", viewer)
	}

	// 起步模板只在应答里，不写库
	if len(repo.settings["acc_1"]) != 0 {
		t.Error("starter was persisted by a read")
	}
}

// TestPutSettingsRoundTrip 保存后读取得到规范化的同一集合
func TestPutSettingsRoundTrip(t *testing.T) {
	h, _, _ := setupTestServer(t)
	token := signToken(t, "acc_1")

	draft := automation.Starter(automation.UUIDSource)
	draft.Nodes[0].Position = automation.Position{X: 99999, Y: 0} // 越界，服务端裁剪
	rec := doJSON(t, h, http.MethodPut, "/automations/settings", token, map[string]any{
		"automations": []automation.Automation{draft},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/automations/settings", token, nil)
	body := decodeBody(t, rec)
	automations, _ := body["automations"].([]any)
	if len(automations) != 1 {
		t.Fatalf("round trip lost automations: %v", body)
	}
	first, _ := automations[0].(map[string]any)
	if first["name"] != draft.Name {
		t.Errorf("name = %v", first["name"])
	}
	nodes, _ := first["nodes"].([]any)
	n0, _ := nodes[0].(map[string]any)
	pos, _ := n0["position"].(map[string]any)
	if pos["x"].(float64) != automation.BoundsX {
		t.Errorf("position not clamped on save: %v", pos)
	}
}

// TestPutSettingsValidation 域校验失败返回 422，坏 JSON 返回 400
func TestPutSettingsValidation(t *testing.T) {
	h, _, _ := setupTestServer(t)
	token := signToken(t, "acc_1")

	t.Run("domain error", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPut, "/automations/settings", token, map[string]any{
			"automations": []map[string]any{{
				"id":   "a1",
				"name": "bad",
				"nodes": []map[string]any{
					{"id": "n1", "type": "widget"},
				},
			}},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/automations/settings", bytes.NewBufferString("{nope"))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

// TestTestSMSEndpoint 校验号码格式和触发器类型，事件入队
func TestTestSMSEndpoint(t *testing.T) {
	h, repo, queue := setupTestServer(t)
	token := signToken(t, "acc_1")

	withTrigger := automation.Starter(automation.UUIDSource)
	repo.settings["acc_1"] = []automation.Automation{withTrigger}

	t.Run("bad phone", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/automations/test-sms", token, map[string]any{
			"automationId": withTrigger.ID, "from": "12345", "body": "hi",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown automation", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/automations/test-sms", token, map[string]any{
			"automationId": "missing", "from": "+15551234567", "body": "hi",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("dispatches", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/automations/test-sms", token, map[string]any{
			"automationId": withTrigger.ID, "from": "+15551234567", "body": "JOIN",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if len(queue.events) != 1 {
			t.Fatalf("events = %d", len(queue.events))
		}
		evt := queue.events[0]
		if !evt.Test || evt.Kind != automation.TriggerInboundSMS || evt.Body != "JOIN" {
			t.Errorf("event = %+v", evt)
		}
	})

	t.Run("rejects without inbound trigger", func(t *testing.T) {
		manual := withTrigger.Clone()
		manual.ID = "a_manual"
		manual.Nodes[0].Config.Trigger.Kind = automation.TriggerManual
		repo.settings["acc_1"] = append(repo.settings["acc_1"], manual)

		rec := doJSON(t, h, http.MethodPost, "/automations/test-sms", token, map[string]any{
			"automationId": "a_manual", "from": "+15551234567", "body": "hi",
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
		}
	})
}

// TestRunEndpoint 手动运行入队 manual 事件
func TestRunEndpoint(t *testing.T) {
	h, repo, queue := setupTestServer(t)
	token := signToken(t, "acc_1")

	a := automation.Starter(automation.UUIDSource)
	repo.settings["acc_1"] = []automation.Automation{a}

	rec := doJSON(t, h, http.MethodPost, "/automations/run", token, map[string]any{"automationId": a.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(queue.events) != 1 || queue.events[0].Kind != automation.TriggerManual {
		t.Errorf("events = %+v", queue.events)
	}
}

// TestLookupEndpoints 下拉数据源：列表、内联创建、空列表而非 null
func TestLookupEndpoints(t *testing.T) {
	h, _, _ := setupTestServer(t)
	token := signToken(t, "acc_1")

	rec := doJSON(t, h, http.MethodPost, "/lookup/tags", token, map[string]any{"name": "  vip  "})
	if rec.Code != http.StatusOK {
		t.Fatalf("create tag status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	tag, _ := body["tag"].(map[string]any)
	if tag["name"] != "vip" {
		t.Errorf("tag name not trimmed: %v", tag)
	}

	rec = doJSON(t, h, http.MethodGet, "/lookup/tags", token, nil)
	body = decodeBody(t, rec)
	tags, ok := body["tags"].([]any)
	if !ok || len(tags) != 1 {
		t.Errorf("tags = %v", body["tags"])
	}

	rec = doJSON(t, h, http.MethodPost, "/lookup/tags", token, map[string]any{"name": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d", rec.Code)
	}

	// campaigns 为空时返回 [] 而不是 null
	rec = doJSON(t, h, http.MethodGet, "/lookup/campaigns", token, nil)
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"campaigns":[]`)) {
		t.Errorf("campaigns not an empty array: %s", rec.Body.String())
	}
}
