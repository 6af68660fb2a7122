// Package codec 在文本键值存储之上读写整个集合：读取失败回退默认值，写入失败记录后返回错误
package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"ai4free/internal/kvstore"
	"ai4free/internal/logger"
	"ai4free/internal/metrics"
)

// Codec 绑定一个固定存储键与一个默认值生成函数
type Codec[T any] struct {
	store    kvstore.Store
	key      string
	defaults func() T
	metrics  *metrics.Collector
}

// New 创建编解码器。defaults 每次调用都应返回一份新的默认值
func New[T any](store kvstore.Store, key string, defaults func() T, collector *metrics.Collector) *Codec[T] {
	return &Codec[T]{
		store:    store,
		key:      key,
		defaults: defaults,
		metrics:  collector,
	}
}

// Key 返回存储键
func (c *Codec[T]) Key() string {
	return c.key
}

// Read 读取集合。键不存在返回默认值；读取或解码失败时记录日志与计数后返回默认值。
// 损坏的原始文本保留在存储中，直到下一次成功写入覆盖
func (c *Codec[T]) Read(ctx context.Context) T {
	c.metrics.ObserveStoreRead(c.key)
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		logger.Error("读取存储键失败，使用默认数据: key=%s, 错误: %v", c.key, err)
		c.metrics.ObserveDecodeFallback(c.key)
		return c.defaultValue()
	}
	if !ok {
		return c.defaultValue()
	}
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		logger.Error("解析存储数据失败，使用默认数据: key=%s, 错误: %v", c.key, err)
		c.metrics.ObserveDecodeFallback(c.key)
		return c.defaultValue()
	}
	return value
}

// Write 完整覆盖存储键。失败时记录日志与计数并返回错误，调用方内存中的数据不受影响
func (c *Codec[T]) Write(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.metrics.ObserveStoreWriteFailure(c.key)
		logger.Error("序列化存储数据失败: key=%s, 错误: %v", c.key, err)
		return fmt.Errorf("序列化 %s 失败: %w", c.key, err)
	}
	if err := c.store.Set(ctx, c.key, string(data)); err != nil {
		c.metrics.ObserveStoreWriteFailure(c.key)
		logger.Error("写入存储失败: key=%s, 大小=%d, 错误: %v", c.key, len(data), err)
		return fmt.Errorf("写入 %s 失败: %w", c.key, err)
	}
	c.metrics.ObserveStoreWrite(c.key, len(data))
	logger.Debug("写入存储成功: key=%s, 大小=%d", c.key, len(data))
	return nil
}

// Reset 删除存储键，下一次读取回到默认值
func (c *Codec[T]) Reset(ctx context.Context) error {
	if err := c.store.Remove(ctx, c.key); err != nil {
		c.metrics.ObserveStoreWriteFailure(c.key)
		logger.Error("删除存储键失败: key=%s, 错误: %v", c.key, err)
		return fmt.Errorf("删除 %s 失败: %w", c.key, err)
	}
	return nil
}

func (c *Codec[T]) defaultValue() T {
	if c.defaults == nil {
		var zero T
		return zero
	}
	return c.defaults()
}
