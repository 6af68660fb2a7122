package api

import (
	"encoding/json"
	"net/http"

	"ai4free/internal/session"
)

// sessionStatus godoc
// @Summary 查询管理会话状态
// @Tags 会话
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/session [get]
func (h *handler) sessionStatus(w http.ResponseWriter, r *http.Request) {
	gate := h.lookupGate(r)
	if gate == nil {
		writeJSON(w, http.StatusOK, session.Status{})
		return
	}
	gate.CheckExpiry(r.Context())
	writeJSON(w, http.StatusOK, gate.Status(r.Context()))
}

// login godoc
// @Summary 管理员口令登录
// @Tags 会话
// @Accept json
// @Produce json
// @Param body body loginRequest true "口令"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/session/login [post]
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	gate := h.openGate(w, r)
	if !gate.Login(r.Context(), req.Password) {
		writeJSON(w, http.StatusUnauthorized, gate.Status(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, gate.Status(r.Context()))
}

// logout godoc
// @Summary 退出管理会话
// @Tags 会话
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/session/logout [post]
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	gate := h.lookupGate(r)
	if gate == nil {
		writeJSON(w, http.StatusOK, session.Status{})
		return
	}
	gate.Logout(r.Context())
	writeJSON(w, http.StatusOK, gate.Status(r.Context()))
}

type loginRequest struct {
	Password string `json:"password"`
}
