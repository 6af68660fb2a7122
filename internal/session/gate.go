// Package session 实现管理端的会话门禁：固定口令登录，会话存储中的限时登录标记。
// 这是界面层的门禁，不是安全边界
package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"ai4free/internal/kvstore"
	"ai4free/internal/logger"
	"ai4free/internal/metrics"
)

const (
	KeyAuthenticated = "admin_authenticated"
	KeyLoginTime     = "admin_login_time"

	MsgPasswordRequired = "请输入密码"
	msgPasswordWrong    = "密码错误，请重试。可用密码："

	DefaultMaxAge        = 24 * time.Hour
	DefaultCheckInterval = time.Hour
)

// DefaultPasswords 默认口令白名单
var DefaultPasswords = []string{"admin", "admin123", "admin2024!"}

// Options 门禁参数，未设置的字段使用默认值
type Options struct {
	Passwords     []string
	MaxAge        time.Duration
	CheckInterval time.Duration
	Clock         func() time.Time
	Metrics       *metrics.Collector
}

func (o Options) withDefaults() Options {
	if len(o.Passwords) == 0 {
		o.Passwords = append([]string(nil), DefaultPasswords...)
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.CheckInterval <= 0 {
		o.CheckInterval = DefaultCheckInterval
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Status 会话状态
type Status struct {
	Authenticated bool       `json:"authenticated"`
	Error         string     `json:"error"`
	LoginTime     *time.Time `json:"loginTime,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Gate 单个浏览器会话的登录门禁。状态保存在会话存储中，
// 以相同存储和前缀重新创建 Gate 即可恢复登录状态
type Gate struct {
	store  kvstore.Store
	prefix string
	opts   Options

	mu            sync.Mutex
	authenticated bool
	lastError     string
}

// NewGate 创建门禁并从会话存储恢复登录标记；已登录时立即做一次过期检查
func NewGate(ctx context.Context, store kvstore.Store, prefix string, opts Options) *Gate {
	g := &Gate{
		store:  store,
		prefix: prefix,
		opts:   opts.withDefaults(),
	}
	flag, ok, err := store.Get(ctx, g.key(KeyAuthenticated))
	if err != nil {
		logger.Warn("读取会话登录标记失败: %v", err)
	}
	g.authenticated = ok && flag == "true"
	if g.authenticated {
		g.CheckExpiry(ctx)
	}
	return g
}

// Login 校验口令。空口令或不在白名单内时记录错误提示并返回 false
func (g *Gate) Login(ctx context.Context, password string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastError = ""

	if strings.TrimSpace(password) == "" {
		g.lastError = MsgPasswordRequired
		g.opts.Metrics.ObserveLogin("blank")
		return false
	}
	if !g.allowed(password) {
		g.lastError = msgPasswordWrong + strings.Join(g.opts.Passwords, ", ")
		g.opts.Metrics.ObserveLogin("rejected")
		return false
	}

	now := g.opts.Clock()
	if err := g.store.Set(ctx, g.key(KeyAuthenticated), "true"); err != nil {
		logger.Error("写入会话登录标记失败: %v", err)
	}
	if err := g.store.Set(ctx, g.key(KeyLoginTime), strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		logger.Error("写入会话登录时间失败: %v", err)
	}
	g.authenticated = true
	g.opts.Metrics.ObserveLogin("success")
	return true
}

// Logout 清除登录标记、登录时间与错误提示
func (g *Gate) Logout(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutLocked(ctx)
}

func (g *Gate) logoutLocked(ctx context.Context) {
	g.authenticated = false
	g.lastError = ""
	if err := g.store.Remove(ctx, g.key(KeyAuthenticated)); err != nil {
		logger.Warn("清除会话登录标记失败: %v", err)
	}
	if err := g.store.Remove(ctx, g.key(KeyLoginTime)); err != nil {
		logger.Warn("清除会话登录时间失败: %v", err)
	}
}

// IsAuthenticated 当前是否已登录
func (g *Gate) IsAuthenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

// Error 最近一次登录失败的提示
func (g *Gate) Error() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastError
}

// CheckExpiry 已登录且距登录时间超过有效期时强制登出，返回是否发生了登出。
// 登录时间缺失或无法解析时不做处理
func (g *Gate) CheckExpiry(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.authenticated {
		return false
	}
	loginTime, ok := g.loginTimeLocked(ctx)
	if !ok {
		return false
	}
	if g.opts.Clock().Sub(loginTime) > g.opts.MaxAge {
		logger.Info("管理会话已超过 %s，自动登出", g.opts.MaxAge)
		g.logoutLocked(ctx)
		g.opts.Metrics.IncSessionExpired()
		return true
	}
	return false
}

// Run 已登录期间按检查间隔执行过期检查，直到 ctx 结束
func (g *Gate) Run(ctx context.Context) {
	ticker := time.NewTicker(g.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.CheckExpiry(ctx)
		}
	}
}

// Status 返回会话状态快照
func (g *Gate) Status(ctx context.Context) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	status := Status{Authenticated: g.authenticated, Error: g.lastError}
	if !g.authenticated {
		return status
	}
	if loginTime, ok := g.loginTimeLocked(ctx); ok {
		expires := loginTime.Add(g.opts.MaxAge)
		status.LoginTime = &loginTime
		status.ExpiresAt = &expires
	}
	return status
}

// clear 删除该会话在存储中的全部键
func (g *Gate) clear(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutLocked(ctx)
}

func (g *Gate) loginTimeLocked(ctx context.Context) (time.Time, bool) {
	raw, ok, err := g.store.Get(ctx, g.key(KeyLoginTime))
	if err != nil || !ok {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

func (g *Gate) allowed(password string) bool {
	for _, p := range g.opts.Passwords {
		if password == p {
			return true
		}
	}
	return false
}

func (g *Gate) key(name string) string {
	return g.prefix + name
}
