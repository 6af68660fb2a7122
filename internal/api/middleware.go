// 本文件用于跨域、会话与管理端鉴权中间件
package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"ai4free/internal/config"
	"ai4free/internal/models"
	"ai4free/internal/session"
)

const sessionCookieName = "ai4free_session"

// withCORS 未配置白名单时只放行回环地址与同主机来源；配置后严格按白名单匹配
func withCORS(cfg *models.Config, next http.Handler) http.Handler {
	allowList := config.CORSOrigins(cfg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !isOriginAllowed(origin, r.Host, allowList) {
			writeError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(origin, requestHost string, allowList []string) bool {
	if len(allowList) > 0 {
		for _, allowed := range allowList {
			if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
				return true
			}
		}
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	originHost := parsed.Hostname()
	if isLoopbackHost(originHost) {
		return true
	}
	return strings.EqualFold(originHost, hostWithoutPort(requestHost))
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func hostWithoutPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

// lookupGate 按 cookie 查找已有会话，不创建新会话
func (h *handler) lookupGate(r *http.Request) *session.Gate {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	gate, ok := h.sessions.Lookup(cookie.Value)
	if !ok {
		return nil
	}
	return gate
}

// openGate 找到或创建会话门禁，标识变化时下发新的会话 cookie。只在登录时调用
func (h *handler) openGate(w http.ResponseWriter, r *http.Request) *session.Gate {
	var current string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		current = cookie.Value
	}
	gate, id := h.sessions.Gate(r.Context(), current)
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.cfg.SessionCookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return gate
}

// requireAdmin 管理端接口要求会话已登录，并在处理前做一次过期检查
func (h *handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gate := h.lookupGate(r)
		if gate == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		gate.CheckExpiry(r.Context())
		if !gate.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
