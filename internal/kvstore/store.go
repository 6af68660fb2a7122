// 本文件用于定义文本键值存储接口与后端选择
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ai4free/internal/models"
)

var (
	// ErrQuotaExceeded 写入后总字节数超过配额，对应浏览器存储的配额错误
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")
	// ErrClosed 存储已关闭
	ErrClosed = errors.New("kvstore: store closed")
)

// Store 文本键值存储。值为不透明字符串，一次 Set 即一次完整覆盖
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Info 描述存储后端，用于健康检查与日志
type Info struct {
	Backend  string
	Location string
}

// Describer 可选接口，返回后端描述
type Describer interface {
	Describe() Info
}

// Options 存储后端选项
type Options struct {
	Backend       string
	File          string
	DSN           string
	QuotaBytes    int64
	Watch         bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	// OnReload 文件后端检测到外部修改并重新加载后回调
	OnReload func()
}

// OptionsFromConfig 从配置构建存储选项
func OptionsFromConfig(cfg *models.Config) Options {
	if cfg == nil {
		return Options{Backend: "memory"}
	}
	watch := true
	if cfg.StorageWatch != nil {
		watch = *cfg.StorageWatch
	}
	return Options{
		Backend:       cfg.StorageBackend,
		File:          cfg.StorageFile,
		DSN:           cfg.StorageDSN,
		QuotaBytes:    cfg.StorageQuotaBytes,
		Watch:         watch,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		RedisPrefix:   cfg.RedisPrefix,
	}
}

// Open 按选项打开存储后端
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "memory":
		return NewMemoryStore(opts.QuotaBytes), nil
	case "file":
		return NewFileStore(opts.File, FileOptions{
			QuotaBytes: opts.QuotaBytes,
			Watch:      opts.Watch,
			OnReload:   opts.OnReload,
		})
	case "sqlite", "mysql":
		return NewSQLStore(ctx, opts.Backend, opts.DSN, opts.QuotaBytes)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:       opts.RedisAddr,
			Password:   opts.RedisPassword,
			DB:         opts.RedisDB,
			Prefix:     opts.RedisPrefix,
			QuotaBytes: opts.QuotaBytes,
		})
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", opts.Backend)
	}
}

// Describe 返回存储后端描述，未实现 Describer 时返回 unknown
func Describe(store Store) Info {
	if d, ok := store.(Describer); ok {
		return d.Describe()
	}
	return Info{Backend: "unknown"}
}

// entrySize 计算单个键值对占用的字节数
func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

// checkQuota 校验写入后总量是否超过配额，others 为除当前键外的已用字节数
func checkQuota(limit, others int64, key, value string) error {
	if limit <= 0 {
		return nil
	}
	total := others + entrySize(key, value)
	if total > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrQuotaExceeded, total, limit)
	}
	return nil
}

func usedExcept(entries map[string]string, key string) int64 {
	var used int64
	for k, v := range entries {
		if k == key {
			continue
		}
		used += entrySize(k, v)
	}
	return used
}

func sortedKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("存储键不能为空")
	}
	return nil
}
