package content

import (
	"fmt"
	"sync"
	"time"
)

// IDGenerator 生成 <prefix>_<毫秒时间戳> 形式的标识。
// 同一毫秒内或时钟回拨时顺延 1 毫秒，保证同一进程内不重复
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator 创建标识生成器，now 为空时使用系统时钟
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next 生成下一个标识
func (g *IDGenerator) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	millis := g.now().UnixMilli()
	if millis <= g.last {
		millis = g.last + 1
	}
	g.last = millis
	return fmt.Sprintf("%s_%d", prefix, millis)
}

// NextUnique 生成不与 taken 中任何标识冲突的新标识
func (g *IDGenerator) NextUnique(prefix string, taken func(id string) bool) string {
	for {
		id := g.Next(prefix)
		if taken == nil || !taken(id) {
			return id
		}
	}
}
