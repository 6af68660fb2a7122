// 本文件用于健康检查与指标暴露
package api

import (
	"net/http"

	"ai4free/internal/kvstore"
	"ai4free/internal/logger"
	"ai4free/internal/models"
)

// health godoc
// @Summary 健康检查
// @Description 存储后端、编解码计数、会话数与进程快照
// @Tags 运维
// @Produce json
// @Success 200 {object} models.HealthSnapshot
// @Failure 503 {object} models.HealthSnapshot
// @Router /api/health [get]
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	snapshot := models.HealthSnapshot{
		Status:         "ok",
		ActiveSessions: h.sessions.Count(),
		ArchiveEnabled: h.archiver != nil,
	}
	if h.store != nil {
		info := kvstore.Describe(h.store)
		snapshot.Store.Backend = info.Backend
		snapshot.Store.Location = info.Location
		keys, err := h.store.Keys(r.Context())
		if err != nil {
			logger.Warn("健康检查读取存储键失败: %v", err)
			snapshot.Status = "degraded"
		}
		snapshot.Store.Keys = len(keys)
		if reporter, ok := h.store.(kvstore.StatsReporter); ok {
			stats := reporter.Stats()
			snapshot.Store.CorruptFallbackTotal = stats.CorruptFallbackTotal
			snapshot.Store.PersistWriteFailureTotal = stats.PersistWriteFailureTotal
		}
	}
	reads, fallbacks, writes, failures := h.metrics.StoreTotals()
	snapshot.Store.ReadTotal = reads
	snapshot.Store.DecodeFallbackTotal = fallbacks
	snapshot.Store.WriteTotal = writes
	snapshot.Store.WriteFailureTotal = failures
	snapshot.Store.ExternalReloadTotal = h.metrics.StoreReloadTotal()
	if h.sysinfo != nil {
		snapshot.Process = h.sysinfo.Snapshot()
	}

	status := http.StatusOK
	if snapshot.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snapshot)
}

// metricsText 以 Prometheus 文本格式输出指标
func (h *handler) metricsText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.metrics.RenderPrometheus()))
}
