package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"textflow/internal/domain/automation"
	"textflow/internal/domain/automation/port"
	applog "textflow/internal/platform/log"
)

// e164Pattern E.164 号码格式
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// TriggerHandler 手动触发端点：test-sms 模拟入站短信，run 手动执行。
// 真正的匹配与动作执行属于外部执行引擎，这里只做校验并投递事件。
type TriggerHandler struct {
	repo  port.Repository
	queue port.TriggerQueue
}

// NewTriggerHandler 创建处理器
func NewTriggerHandler(repo port.Repository, queue port.TriggerQueue) *TriggerHandler {
	return &TriggerHandler{repo: repo, queue: queue}
}

// RegisterRoutes 注册路由
func (h *TriggerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/automations/test-sms", h.TestSMS)
	r.Post("/automations/run", h.RunNow)
}

type testSMSRequest struct {
	AutomationID string `json:"automationId"`
	From         string `json:"from"`
	Body         string `json:"body"`
}

// TestSMS 模拟一条入站短信触发，用于手动测试
func (h *TriggerHandler) TestSMS(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var req testSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AutomationID == "" {
		writeError(w, http.StatusBadRequest, "automationId is required")
		return
	}
	if !e164Pattern.MatchString(req.From) {
		writeError(w, http.StatusBadRequest, "from must be an E.164 phone number")
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	target, err := h.findAutomation(r, scope.AccountID, req.AutomationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load automations")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "automation not found")
		return
	}
	trigger := target.TriggerNode()
	if trigger == nil || trigger.Config.Trigger == nil || trigger.Config.Trigger.Kind != automation.TriggerInboundSMS {
		writeError(w, http.StatusUnprocessableEntity, "automation has no inbound SMS trigger")
		return
	}

	evt := &port.TriggerEvent{
		AccountID:    scope.AccountID,
		AutomationID: req.AutomationID,
		Kind:         automation.TriggerInboundSMS,
		From:         req.From,
		Body:         req.Body,
		Test:         true,
	}
	if err := h.queue.Enqueue(r.Context(), evt); err != nil {
		applog.Error("[Trigger] Test SMS enqueue failed", "automation_id", req.AutomationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to dispatch test")
		return
	}
	writeOK(w, nil)
}

type runRequest struct {
	AutomationID string `json:"automationId"`
}

// RunNow 手动触发一次 manual 类型的执行
func (h *TriggerHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AutomationID == "" {
		writeError(w, http.StatusBadRequest, "automationId is required")
		return
	}

	target, err := h.findAutomation(r, scope.AccountID, req.AutomationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load automations")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "automation not found")
		return
	}

	evt := &port.TriggerEvent{
		AccountID:    scope.AccountID,
		AutomationID: req.AutomationID,
		Kind:         automation.TriggerManual,
	}
	if err := h.queue.Enqueue(r.Context(), evt); err != nil {
		applog.Error("[Trigger] Run enqueue failed", "automation_id", req.AutomationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to dispatch run")
		return
	}
	writeOK(w, nil)
}

func (h *TriggerHandler) findAutomation(r *http.Request, accountID, automationID string) (*automation.Automation, error) {
	settings, err := h.repo.GetSettings(r.Context(), accountID)
	if err != nil {
		return nil, err
	}
	for i := range settings.Automations {
		if settings.Automations[i].ID == automationID {
			return &settings.Automations[i], nil
		}
	}
	return nil, nil
}
