// 本文件用于采集当前进程的运行快照，供健康检查接口使用
package sysinfo

import (
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"ai4free/internal/models"
)

const defaultCacheTTL = 2 * time.Second

// Collector 采集进程快照，在缓存有效期内复用上一次结果
type Collector struct {
	mu       sync.Mutex
	cacheTTL time.Duration
	started  time.Time
	proc     *process.Process
	hostName string

	lastSnapshot   models.ProcessSnapshot
	lastSnapshotAt time.Time
}

// NewCollector 创建采集器，cacheTTL<=0 时使用默认值
func NewCollector(cacheTTL time.Duration) *Collector {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &Collector{
		cacheTTL: cacheTTL,
		started:  time.Now(),
		proc:     proc,
		hostName: collectHostName(),
	}
}

// Snapshot 返回当前进程快照，采集失败的字段保持零值
func (c *Collector) Snapshot() models.ProcessSnapshot {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastSnapshotAt.IsZero() && now.Sub(c.lastSnapshotAt) < c.cacheTTL {
		return c.lastSnapshot
	}

	snapshot := models.ProcessSnapshot{
		PID:          int32(os.Getpid()),
		NumGoroutine: runtime.NumGoroutine(),
		Hostname:     c.hostName,
	}
	uptime := now.Sub(c.started)
	if c.proc != nil {
		if mem, err := c.proc.MemoryInfo(); err == nil && mem != nil {
			snapshot.RSSBytes = mem.RSS
		}
		if pct, err := c.proc.CPUPercent(); err == nil {
			snapshot.CPUPercent = roundPct(pct)
		}
		if created, err := c.proc.CreateTime(); err == nil && created > 0 {
			uptime = now.Sub(time.UnixMilli(created))
		}
	}
	if uptime < 0 {
		uptime = 0
	}
	snapshot.UptimeSeconds = uint64(uptime / time.Second)
	snapshot.Uptime = formatDurationCN(uptime)
	snapshot.RSS = formatBytes(float64(snapshot.RSSBytes))

	c.lastSnapshot = snapshot
	c.lastSnapshotAt = now
	return snapshot
}

func collectHostName() string {
	info, err := host.Info()
	if err == nil && strings.TrimSpace(info.Hostname) != "" {
		return strings.TrimSpace(info.Hostname)
	}
	name, _ := os.Hostname()
	return fallbackString(strings.TrimSpace(name), "--")
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
