package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"textflow/internal/domain/automation"
	"textflow/internal/domain/automation/port"
	applog "textflow/internal/platform/log"
)

// SettingsHandler 自动化集合的读写端点
type SettingsHandler struct {
	repo port.Repository
	ids  automation.IDSource
}

// NewSettingsHandler 创建处理器
func NewSettingsHandler(repo port.Repository, ids automation.IDSource) *SettingsHandler {
	if ids == nil {
		ids = automation.UUIDSource
	}
	return &SettingsHandler{repo: repo, ids: ids}
}

// RegisterRoutes 注册路由
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/automations/settings", h.GetSettings)
	r.Put("/automations/settings", h.PutSettings)
}

// GetSettings 返回账户已保存的自动化集合（附 viewer 身份）。
// 账户还没有任何自动化时合成两节点起步模板，但不落库（首次保存才写入）。
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	settings, err := h.repo.GetSettings(r.Context(), scope.AccountID)
	if err != nil {
		applog.Error("[Settings] Load failed", "account_id", scope.AccountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load automations")
		return
	}

	automations := settings.Automations
	if len(automations) == 0 {
		automations = []automation.Automation{automation.Starter(h.ids)}
	}

	writeOK(w, map[string]any{
		"automations": automations,
		"viewer":      scope,
	})
}

type putSettingsRequest struct {
	Automations []automation.Automation `json:"automations"`
}

// PutSettings 整体替换账户的自动化集合。服务端重新校验并规范化，
// 返回权威集合（客户端据此调和服务端分配的 ID）。
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var req putSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	normalized, err := automation.NormalizeCollection(req.Automations, h.ids)
	if err != nil {
		// 域校验失败：本地草稿由客户端保留，这里只报告原因
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	saved, err := h.repo.ReplaceSettings(r.Context(), scope.AccountID, normalized)
	if err != nil {
		applog.Error("[Settings] Save failed", "account_id", scope.AccountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save automations")
		return
	}

	applog.Info("[Settings] Collection saved",
		"account_id", scope.AccountID,
		"automations", len(saved.Automations),
	)
	writeOK(w, map[string]any{
		"automations": saved.Automations,
		"viewer":      scope,
	})
}
