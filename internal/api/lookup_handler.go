package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	redisdb "textflow/internal/db/redis"
	"textflow/internal/domain/automation/port"
	applog "textflow/internal/platform/log"
)

// LookupHandler 节点配置下拉的数据源端点（标签/成员/活动）。
// 这些是编辑器的外部协作者：任何失败都容忍为返回空列表，绝不致命。
type LookupHandler struct {
	repo  port.Repository
	cache *redisdb.LookupCache // 可选
}

// NewLookupHandler 创建处理器，cache 可为 nil
func NewLookupHandler(repo port.Repository, cache *redisdb.LookupCache) *LookupHandler {
	return &LookupHandler{repo: repo, cache: cache}
}

// RegisterRoutes 注册路由
func (h *LookupHandler) RegisterRoutes(r chi.Router) {
	r.Get("/lookup/tags", h.ListTags)
	r.Post("/lookup/tags", h.CreateTag)
	r.Get("/lookup/members", h.ListMembers)
	r.Get("/lookup/campaigns", h.ListCampaigns)
}

// ListTags 联系人标签列表
func (h *LookupHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var cached []*port.Tag
	if h.cache != nil && h.cache.Get(r.Context(), "tags", scope.AccountID, &cached) {
		writeOK(w, map[string]any{"tags": nonNil(cached)})
		return
	}

	tags, err := h.repo.ListTags(r.Context(), scope.AccountID)
	if err != nil {
		applog.Warn("[Lookup] Tags query failed, returning empty list", "error", err)
		writeOK(w, map[string]any{"tags": []*port.Tag{}})
		return
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), "tags", scope.AccountID, tags)
	}
	writeOK(w, map[string]any{"tags": nonNil(tags)})
}

type createTagRequest struct {
	Name string `json:"name"`
}

// CreateTag 检查器标签选择器的内联创建
func (h *LookupHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	tag := &port.Tag{AccountID: scope.AccountID, Name: req.Name}
	if err := h.repo.CreateTag(r.Context(), tag); err != nil {
		applog.Error("[Lookup] Tag create failed", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), "tags", scope.AccountID)
	}
	writeOK(w, map[string]any{"tag": tag})
}

// ListMembers 账户成员列表
func (h *LookupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var cached []*port.Member
	if h.cache != nil && h.cache.Get(r.Context(), "members", scope.AccountID, &cached) {
		writeOK(w, map[string]any{"members": nonNil(cached)})
		return
	}

	members, err := h.repo.ListMembers(r.Context(), scope.AccountID)
	if err != nil {
		applog.Warn("[Lookup] Members query failed, returning empty list", "error", err)
		writeOK(w, map[string]any{"members": []*port.Member{}})
		return
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), "members", scope.AccountID, members)
	}
	writeOK(w, map[string]any{"members": nonNil(members)})
}

// ListCampaigns 营销活动列表
func (h *LookupHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var cached []*port.Campaign
	if h.cache != nil && h.cache.Get(r.Context(), "campaigns", scope.AccountID, &cached) {
		writeOK(w, map[string]any{"campaigns": nonNil(cached)})
		return
	}

	campaigns, err := h.repo.ListCampaigns(r.Context(), scope.AccountID)
	if err != nil {
		applog.Warn("[Lookup] Campaigns query failed, returning empty list", "error", err)
		writeOK(w, map[string]any{"campaigns": []*port.Campaign{}})
		return
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), "campaigns", scope.AccountID, campaigns)
	}
	writeOK(w, map[string]any{"campaigns": nonNil(campaigns)})
}

// nonNil 空切片而非 null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
