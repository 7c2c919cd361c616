// Package claimd HTTP 处理函数
package claimd

import (
	"encoding/json"
	"net/http"

	"claimd/internal/uniqueness"
)

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 写入错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// EvaluateResponse 评估响应体
type EvaluateResponse struct {
	Ok     bool                    `json:"ok"`
	Errors []uniqueness.FieldError `json:"errors,omitempty"`
}

// Evaluate 评估命令唯一性
// POST /api/v1/evaluate
//
// 通过返回 200，声明成交；被拒返回 409 并携带全部失败规则。
// 未配置规则的命令类型按无约束处理，直接通过。
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var cmd uniqueness.TypedCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cmd.Type == "" {
		writeError(w, http.StatusBadRequest, "command_type is required")
		return
	}

	res := h.checker.Evaluate(r.Context(), cmd)
	if !res.Ok() {
		writeJSON(w, http.StatusConflict, EvaluateResponse{Ok: false, Errors: res.Errors})
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Ok: true})
}

// Release 释放命令的全部声明
// POST /api/v1/release
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	var cmd uniqueness.TypedCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cmd.Type == "" {
		writeError(w, http.StatusBadRequest, "command_type is required")
		return
	}

	if err := h.checker.Release(r.Context(), cmd); err != nil {
		h.logger.WithError(err).Error("Release failed", "command_type", cmd.Type)
		writeError(w, http.StatusInternalServerError, "release failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health 健康检查
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
