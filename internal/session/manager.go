package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai4free/internal/kvstore"
	"ai4free/internal/logger"
)

type entry struct {
	gate     *Gate
	lastSeen time.Time
}

// Manager 按会话标识维护门禁，所有会话共用一个内存会话存储并以标识作为键前缀
type Manager struct {
	store kvstore.Store
	opts  Options

	mu       sync.Mutex
	sessions map[string]*entry
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager 创建会话管理器
func NewManager(opts Options) *Manager {
	return &Manager{
		store:    kvstore.NewMemoryStore(0),
		opts:     opts.withDefaults(),
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
	}
}

// Gate 返回会话对应的门禁。标识为空或格式不合法时分配新标识
func (m *Manager) Gate(ctx context.Context, id string) (*Gate, string) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.opts.Clock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = now
		return e.gate, id
	}
	gate := NewGate(ctx, m.store, id+":", m.opts)
	m.sessions[id] = &entry{gate: gate, lastSeen: now}
	m.opts.Metrics.SetActiveSessions(len(m.sessions))
	return gate, id
}

// Lookup 查找已存在的会话
func (m *Manager) Lookup(id string) (*Gate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.gate, true
}

// Count 当前跟踪的会话数
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep 对所有会话执行过期检查，并移除未登录且空闲超过有效期的会话。返回本次登出的会话数
func (m *Manager) Sweep(ctx context.Context) int {
	m.mu.Lock()
	snapshot := make(map[string]*entry, len(m.sessions))
	for id, e := range m.sessions {
		snapshot[id] = e
	}
	m.mu.Unlock()

	expired := 0
	for _, e := range snapshot {
		if e.gate.CheckExpiry(ctx) {
			expired++
		}
	}

	now := m.opts.Clock()
	m.mu.Lock()
	for id, e := range m.sessions {
		if e.gate.IsAuthenticated() {
			continue
		}
		if now.Sub(e.lastSeen) > m.opts.MaxAge {
			e.gate.clear(ctx)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	m.opts.Metrics.SetActiveSessions(count)
	if expired > 0 {
		logger.Info("会话过期检查完成: 登出=%d 剩余会话=%d", expired, count)
	}
	return expired
}

// Start 启动后台过期检查，按检查间隔运行
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.opts.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Sweep(ctx)
			}
		}
	}()
}

// Close 停止后台检查
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
