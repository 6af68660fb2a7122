// 本文件用于基于单个 JSON 文件的键值存储实现
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ai4free/internal/logger"
	"ai4free/internal/watcher"
)

// FileOptions 文件存储选项
type FileOptions struct {
	QuotaBytes int64
	Watch      bool
	OnReload   func()
}

// FileStats 表示文件存储健康指标
type FileStats struct {
	StoreFile                string
	CorruptFallbackTotal     uint64
	PersistWriteFailureTotal uint64
	ReloadTotal              uint64
}

// StatsReporter 可选接口，带有自身健康计数的后端实现它
type StatsReporter interface {
	Stats() FileStats
}

// FileStore 把全部键值保存为一个 JSON 对象文件，内存中保留一份缓存
type FileStore struct {
	path       string
	quotaBytes int64
	onReload   func()

	mu                       sync.Mutex
	entries                  map[string]string
	lastPersisted            []byte
	closed                   bool
	corruptFallbackTotal     uint64
	persistWriteFailureTotal uint64
	reloadTotal              uint64

	watcher *watcher.FileWatcher
}

// NewFileStore 创建并加载文件存储
func NewFileStore(path string, opts FileOptions) (*FileStore, error) {
	cleaned := strings.TrimSpace(path)
	if cleaned == "" {
		return nil, fmt.Errorf("存储文件路径不能为空")
	}
	store := &FileStore{
		path:       cleaned,
		quotaBytes: opts.QuotaBytes,
		onReload:   opts.OnReload,
		entries:    make(map[string]string),
	}
	if dir := filepath.Dir(cleaned); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建存储目录失败: %w", err)
		}
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	if opts.Watch {
		w, err := watcher.NewFileWatcher(cleaned, 0, func(string) { store.reload() })
		if err != nil {
			return nil, fmt.Errorf("创建存储文件监控失败: %w", err)
		}
		if err := w.Start(); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("启动存储文件监控失败: %w", err)
		}
		store.watcher = w
	}
	return store, nil
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := checkQuota(f.quotaBytes, usedExcept(f.entries, key), key, value); err != nil {
		return err
	}
	prev, existed := f.entries[key]
	f.entries[key] = value
	if err := f.saveLocked(); err != nil {
		f.persistWriteFailureTotal++
		if existed {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

func (f *FileStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	prev, existed := f.entries[key]
	if !existed {
		return nil
	}
	delete(f.entries, key)
	if err := f.saveLocked(); err != nil {
		f.persistWriteFailureTotal++
		f.entries[key] = prev
		return err
	}
	return nil
}

func (f *FileStore) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	return sortedKeys(f.entries), nil
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	w := f.watcher
	f.watcher = nil
	f.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

func (f *FileStore) Describe() Info {
	return Info{Backend: "file", Location: f.path}
}

// Stats 返回文件存储健康指标快照
func (f *FileStore) Stats() FileStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FileStats{
		StoreFile:                f.path,
		CorruptFallbackTotal:     f.corruptFallbackTotal,
		PersistWriteFailureTotal: f.persistWriteFailureTotal,
		ReloadTotal:              f.reloadTotal,
	}
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取存储文件失败: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return f.fallbackFromCorruptedStoreLocked(data, err)
	}
	f.entries = entries
	f.lastPersisted = data
	return nil
}

// reload 在文件被外部修改后刷新缓存。内容与上次自身写入一致时忽略
func (f *FileStore) reload() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.mu.Unlock()
		if os.IsNotExist(err) {
			logger.Warn("存储文件被删除，保留内存数据直到下次写入: %s", f.path)
			return
		}
		logger.Error("重新加载存储文件失败: %s, 错误: %v", f.path, err)
		return
	}
	if bytes.Equal(data, f.lastPersisted) {
		f.mu.Unlock()
		return
	}
	entries, err := decodeEntries(data)
	if err != nil {
		f.mu.Unlock()
		logger.Warn("外部修改后的存储文件无法解析，保留当前数据: %s, 错误: %v", f.path, err)
		return
	}
	f.entries = entries
	f.lastPersisted = data
	f.reloadTotal++
	callback := f.onReload
	f.mu.Unlock()

	logger.Info("存储文件已被外部修改，重新加载完成: %s, 键数量=%d", f.path, len(entries))
	if callback != nil {
		callback()
	}
}

func (f *FileStore) saveLocked() error {
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化存储失败: %w", err)
	}
	if err := writeFileAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("写入存储文件失败: %w", err)
	}
	f.lastPersisted = data
	return nil
}

func (f *FileStore) fallbackFromCorruptedStoreLocked(rawData []byte, parseErr error) error {
	f.corruptFallbackTotal++
	backupPath := buildCorruptBackupPath(f.path)
	if err := writeFileAtomic(backupPath, rawData, 0o644); err != nil {
		return fmt.Errorf("解析存储文件失败且备份损坏文件失败: %w", err)
	}

	f.entries = make(map[string]string)
	if err := f.saveLocked(); err != nil {
		f.persistWriteFailureTotal++
		return fmt.Errorf("存储文件损坏后重建空存储失败: %w", err)
	}

	logger.Error("存储文件损坏，已降级为空存储并完成备份: 源文件=%s 备份文件=%s 错误=%v", f.path, backupPath, parseErr)
	return nil
}

func decodeEntries(data []byte) (map[string]string, error) {
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return entries, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func buildCorruptBackupPath(path string) string {
	timestamp := time.Now().UTC().Format("20060102T150405.000000000Z")
	return fmt.Sprintf("%s.corrupt-%s.bak", path, timestamp)
}
