// 本文件用于 Prometheus 指标聚合与导出 将存储与会话指标统一收口便于监控接入

package metrics

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector 聚合运行期指标，并以 Prometheus 文本格式输出。
type Collector struct {
	activeSessions atomic.Int64

	sessionExpiredTotal atomic.Uint64
	storeReloadTotal    atomic.Uint64

	mu                    sync.RWMutex
	readsByKey            map[string]uint64
	decodeFallbackByKey   map[string]uint64
	writesByKey           map[string]uint64
	writeFailuresByKey    map[string]uint64
	loginsByOutcome       map[string]uint64
	archiveByOutcome      map[string]uint64
	storeWriteBytes       *histogram
	archiveDurationSecond *histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64 // 累计桶计数
	count   uint64
	sum     float64
}

var (
	globalCollector = NewCollector()
)

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	return &Collector{
		readsByKey:            make(map[string]uint64),
		decodeFallbackByKey:   make(map[string]uint64),
		writesByKey:           make(map[string]uint64),
		writeFailuresByKey:    make(map[string]uint64),
		loginsByOutcome:       make(map[string]uint64),
		archiveByOutcome:      make(map[string]uint64),
		storeWriteBytes:       newHistogram([]float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 5242880}),
		archiveDurationSecond: newHistogram([]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}),
	}
}

func newHistogram(buckets []float64) *histogram {
	clean := make([]float64, 0, len(buckets))
	for _, bucket := range buckets {
		if bucket <= 0 {
			continue
		}
		clean = append(clean, bucket)
	}
	sort.Float64s(clean)
	return &histogram{
		buckets: clean,
		counts:  make([]uint64, len(clean)),
	}
}

func (h *histogram) observe(v float64) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		if v <= bound {
			h.counts[idx]++
		}
	}
	h.count++
	h.sum += v
}

func (h *histogram) writePrometheus(builder *strings.Builder, metric string, labels map[string]string) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		builder.WriteString(metric)
		builder.WriteString("_bucket")
		writeLabels(builder, mergeLabels(labels, map[string]string{"le": trimFloat(bound)}))
		builder.WriteByte(' ')
		builder.WriteString(strconv.FormatUint(h.counts[idx], 10))
		builder.WriteByte('\n')
	}
	builder.WriteString(metric)
	builder.WriteString("_bucket")
	writeLabels(builder, mergeLabels(labels, map[string]string{"le": "+Inf"}))
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_sum")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(trimFloat(h.sum))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_count")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')
}

// ObserveStoreRead 记录一次集合读取。
func (c *Collector) ObserveStoreRead(key string) {
	c.incKeyed(func() map[string]uint64 { return c.readsByKey }, key)
}

// ObserveDecodeFallback 记录一次解码失败后回退默认值。
func (c *Collector) ObserveDecodeFallback(key string) {
	c.incKeyed(func() map[string]uint64 { return c.decodeFallbackByKey }, key)
}

// ObserveStoreWrite 记录一次成功写入及其字节数。
func (c *Collector) ObserveStoreWrite(key string, size int) {
	if c == nil {
		return
	}
	label := normalizeMetricLabel(key)
	c.mu.Lock()
	c.writesByKey[label]++
	c.storeWriteBytes.observe(float64(size))
	c.mu.Unlock()
}

// ObserveStoreWriteFailure 记录一次写入失败。
func (c *Collector) ObserveStoreWriteFailure(key string) {
	c.incKeyed(func() map[string]uint64 { return c.writeFailuresByKey }, key)
}

// IncStoreReload 记录文件存储被外部修改后的重新加载次数。
func (c *Collector) IncStoreReload() {
	if c == nil {
		return
	}
	c.storeReloadTotal.Add(1)
}

// ObserveLogin 记录登录结果。
func (c *Collector) ObserveLogin(outcome string) {
	c.incKeyed(func() map[string]uint64 { return c.loginsByOutcome }, outcome)
}

// IncSessionExpired 记录一次会话超时登出。
func (c *Collector) IncSessionExpired() {
	if c == nil {
		return
	}
	c.sessionExpiredTotal.Add(1)
}

// SetActiveSessions 刷新当前会话数。
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.activeSessions.Store(int64(n))
}

// ObserveArchive 记录导出归档结果与耗时。
func (c *Collector) ObserveArchive(outcome string, latency time.Duration) {
	if c == nil {
		return
	}
	label := normalizeMetricLabel(outcome)
	c.mu.Lock()
	c.archiveByOutcome[label]++
	c.archiveDurationSecond.observe(latency.Seconds())
	c.mu.Unlock()
}

func (c *Collector) incKeyed(target func() map[string]uint64, key string) {
	if c == nil {
		return
	}
	label := normalizeMetricLabel(key)
	c.mu.Lock()
	target()[label]++
	c.mu.Unlock()
}

// StoreTotals 返回所有键累加后的读写计数，供健康检查使用。
func (c *Collector) StoreTotals() (reads, fallbacks, writes, failures uint64) {
	if c == nil {
		return 0, 0, 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sumValues(c.readsByKey), sumValues(c.decodeFallbackByKey), sumValues(c.writesByKey), sumValues(c.writeFailuresByKey)
}

// StoreReloadTotal 返回外部修改触发的重新加载次数。
func (c *Collector) StoreReloadTotal() uint64 {
	if c == nil {
		return 0
	}
	return c.storeReloadTotal.Load()
}

// RenderPrometheus 以 text exposition 格式导出指标。
func (c *Collector) RenderPrometheus() string {
	if c == nil {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(4096)

	c.mu.RLock()
	reads := cloneMap(c.readsByKey)
	fallbacks := cloneMap(c.decodeFallbackByKey)
	writes := cloneMap(c.writesByKey)
	failures := cloneMap(c.writeFailuresByKey)
	logins := cloneMap(c.loginsByOutcome)
	archives := cloneMap(c.archiveByOutcome)
	writeBytesCopy := cloneHistogram(c.storeWriteBytes)
	archiveDurationCopy := cloneHistogram(c.archiveDurationSecond)
	c.mu.RUnlock()

	writeKeyedCounter(&builder, "ai4free_store_reads_total", "Collection reads grouped by storage key.", "key", reads)
	writeKeyedCounter(&builder, "ai4free_store_decode_fallback_total", "Reads that fell back to defaults after a decode failure.", "key", fallbacks)
	writeKeyedCounter(&builder, "ai4free_store_writes_total", "Successful full-collection writes grouped by storage key.", "key", writes)
	writeKeyedCounter(&builder, "ai4free_store_write_failures_total", "Failed full-collection writes grouped by storage key.", "key", failures)

	writeMetricHeader(&builder, "ai4free_store_write_bytes", "histogram", "Size distribution of persisted collection values in bytes.")
	writeBytesCopy.writePrometheus(&builder, "ai4free_store_write_bytes", nil)

	writeMetricHeader(&builder, "ai4free_store_reload_total", "counter", "Reloads of the file store after external modification.")
	writeCounter(&builder, "ai4free_store_reload_total", c.storeReloadTotal.Load(), nil)

	// 始终输出 success/rejected 两个 outcome，避免零流量时缺失时序
	for _, outcome := range []string{"success", "rejected"} {
		if _, ok := logins[outcome]; !ok {
			logins[outcome] = 0
		}
	}
	writeKeyedCounter(&builder, "ai4free_session_logins_total", "Admin login attempts grouped by outcome.", "outcome", logins)

	writeMetricHeader(&builder, "ai4free_session_expired_total", "counter", "Sessions logged out by the expiry check.")
	writeCounter(&builder, "ai4free_session_expired_total", c.sessionExpiredTotal.Load(), nil)

	writeMetricHeader(&builder, "ai4free_active_sessions", "gauge", "Browser sessions currently tracked.")
	writeGaugeInt(&builder, "ai4free_active_sessions", c.activeSessions.Load(), nil)

	writeKeyedCounter(&builder, "ai4free_archive_total", "Export archive uploads grouped by outcome.", "outcome", archives)
	writeMetricHeader(&builder, "ai4free_archive_duration_seconds", "histogram", "Export archive upload latency in seconds.")
	archiveDurationCopy.writePrometheus(&builder, "ai4free_archive_duration_seconds", nil)

	return builder.String()
}

func writeKeyedCounter(builder *strings.Builder, metric, help, label string, values map[string]uint64) {
	writeMetricHeader(builder, metric, "counter", help)
	for _, key := range sortedStringKeysFromUintMap(values) {
		writeCounter(builder, metric, values[key], map[string]string{label: key})
	}
}

func cloneMap(items map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(items))
	for key, value := range items {
		out[key] = value
	}
	return out
}

func sumValues(items map[string]uint64) uint64 {
	var total uint64
	for _, value := range items {
		total += value
	}
	return total
}

func cloneHistogram(h *histogram) histogram {
	if h == nil {
		return histogram{}
	}
	return histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		count:   h.count,
		sum:     h.sum,
	}
}

func writeMetricHeader(builder *strings.Builder, metric, metricType, help string) {
	builder.WriteString("# HELP ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(help)
	builder.WriteByte('\n')
	builder.WriteString("# TYPE ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(metricType)
	builder.WriteByte('\n')
}

func writeCounter(builder *strings.Builder, metric string, value uint64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(value, 10))
	builder.WriteByte('\n')
}

func writeGaugeInt(builder *strings.Builder, metric string, value int64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatInt(value, 10))
	builder.WriteByte('\n')
}

func writeLabels(builder *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder.WriteByte('{')
	for idx, key := range keys {
		if idx > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(key)
		builder.WriteString("=\"")
		builder.WriteString(escapeLabelValue(labels[key]))
		builder.WriteByte('"')
	}
	builder.WriteByte('}')
}

func mergeLabels(base, ext map[string]string) map[string]string {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(ext))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range ext {
		merged[key] = value
	}
	return merged
}

func normalizeMetricLabel(value string) string {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "unknown"
	}
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > 120 {
		clean = clean[:120]
	}
	return clean
}

func escapeLabelValue(value string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
	)
	return replacer.Replace(value)
}

func sortedStringKeysFromUintMap(items map[string]uint64) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func trimFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ResetForTest 仅用于测试，避免跨用例污染。
func (c *Collector) ResetForTest() {
	if c == nil {
		return
	}
	c.activeSessions.Store(0)
	c.sessionExpiredTotal.Store(0)
	c.storeReloadTotal.Store(0)
	c.mu.Lock()
	c.readsByKey = make(map[string]uint64)
	c.decodeFallbackByKey = make(map[string]uint64)
	c.writesByKey = make(map[string]uint64)
	c.writeFailuresByKey = make(map[string]uint64)
	c.loginsByOutcome = make(map[string]uint64)
	c.archiveByOutcome = make(map[string]uint64)
	c.storeWriteBytes = newHistogram(c.storeWriteBytes.buckets)
	c.archiveDurationSecond = newHistogram(c.archiveDurationSecond.buckets)
	c.mu.Unlock()
}
