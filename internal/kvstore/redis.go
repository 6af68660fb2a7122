package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

const redisScanBatch = 100

// RedisOptions redis 存储选项
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	Prefix     string
	QuotaBytes int64
}

// RedisStore 以带前缀的字符串键保存每个值
type RedisStore struct {
	client     *redis.Client
	addr       string
	prefix     string
	quotaBytes int64
}

// NewRedisStore 连接 redis 并校验可用性
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis 地址不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}
	return &RedisStore{
		client:     client,
		addr:       opts.Addr,
		prefix:     opts.Prefix,
		quotaBytes: opts.QuotaBytes,
	}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.fullKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis 读取失败: %w", err)
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if r.quotaBytes > 0 {
		used, err := r.usedExcept(ctx, key)
		if err != nil {
			return err
		}
		if err := checkQuota(r.quotaBytes, used, key, value); err != nil {
			return err
		}
	}
	if err := r.client.Set(ctx, r.fullKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis 写入失败: %w", err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("redis 删除失败: %w", err)
	}
	return nil
}

func (r *RedisStore) Keys(ctx context.Context) ([]string, error) {
	full, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, r.shortKey(k))
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Describe() Info {
	return Info{Backend: "redis", Location: r.addr + "/" + r.prefix}
}

func (r *RedisStore) usedExcept(ctx context.Context, key string) (int64, error) {
	full, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	skip := r.fullKey(key)
	var used int64
	for _, k := range full {
		if k == skip {
			continue
		}
		n, err := r.client.StrLen(ctx, k).Result()
		if err != nil {
			return 0, fmt.Errorf("redis 统计用量失败: %w", err)
		}
		used += int64(len(r.shortKey(k))) + n
	}
	return used, nil
}

func (r *RedisStore) scan(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, escapeRedisPattern(r.prefix)+"*", redisScanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis 扫描键失败: %w", err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (r *RedisStore) fullKey(key string) string {
	return r.prefix + key
}

func (r *RedisStore) shortKey(full string) string {
	return strings.TrimPrefix(full, r.prefix)
}

// escapeRedisPattern 转义 SCAN MATCH 中的通配字符
func escapeRedisPattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(s)
}
