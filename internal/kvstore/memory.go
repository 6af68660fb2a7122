package kvstore

import (
	"context"
	"sync"
)

// MemoryStore 进程内键值存储，用于会话存储与测试
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]string
	quotaBytes int64
	closed     bool
}

// NewMemoryStore 创建内存存储，quotaBytes<=0 表示不限制
func NewMemoryStore(quotaBytes int64) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]string),
		quotaBytes: quotaBytes,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := checkQuota(m.quotaBytes, usedExcept(m.entries, key), key, value); err != nil {
		return err
	}
	m.entries[key] = value
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return sortedKeys(m.entries), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Describe() Info {
	return Info{Backend: "memory"}
}
