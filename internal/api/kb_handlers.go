// 本文件用于知识库 HTTP 处理器 前台读取与管理端编辑共用同一份集合
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ai4free/internal/content"
	"ai4free/internal/kb"
	"ai4free/internal/logger"
	"ai4free/internal/topic"
)

// knowledgeBaseView 前台渲染用的记录，附带解析后的图标与卡片布局
type knowledgeBaseView struct {
	content.KnowledgeBase
	Icon   content.Icon       `json:"icon"`
	Layout content.CardLayout `json:"layout"`
}

func toViews(items []content.KnowledgeBase) []knowledgeBaseView {
	views := make([]knowledgeBaseView, 0, len(items))
	for _, item := range items {
		views = append(views, knowledgeBaseView{
			KnowledgeBase: item,
			Icon:          content.ResolveIcon(item.IconName),
			Layout:        content.LayoutFor(item),
		})
	}
	return views
}

// listKnowledgeBases godoc
// @Summary 知识库列表
// @Description 默认按序号排序返回；stored=1 时返回持久化顺序；category 按分类过滤
// @Tags 知识库
// @Produce json
// @Param category query string false "分类"
// @Param stored query bool false "按持久化顺序返回"
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases [get]
func (h *handler) listKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	items := h.kb.GetAll(r.Context())
	if !parseBoolQuery(r, "stored") {
		items = content.SortKnowledgeBases(items)
	}
	items = content.FilterByCategory(items, strings.TrimSpace(r.URL.Query().Get("category")))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": toViews(items),
		"total": len(items),
	})
}

// homeFeed godoc
// @Summary 首页展示的知识库
// @Tags 知识库
// @Produce json
// @Param preloadFor query string false "当前选中的知识库标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases/home [get]
func (h *handler) homeFeed(w http.ResponseWriter, r *http.Request) {
	all := h.kb.GetAll(r.Context())
	payload := map[string]any{
		"ok":    true,
		"items": toViews(content.HomeFeed(all)),
	}
	if selected := strings.TrimSpace(r.URL.Query().Get("preloadFor")); selected != "" {
		payload["preload"] = toViews(content.PreloadCandidates(content.SortKnowledgeBases(all), selected))
	}
	writeJSON(w, http.StatusOK, payload)
}

// getKnowledgeBase godoc
// @Summary 知识库详情
// @Tags 知识库
// @Produce json
// @Param id path string true "知识库标识"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/knowledge-bases/{id} [get]
func (h *handler) getKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	item, err := h.kb.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"item": toViews([]content.KnowledgeBase{item})[0],
	})
}

// saveKnowledgeBases godoc
// @Summary 保存整个知识库集合
// @Description 校验通过后补全 iframe 展示策略并整体覆盖，后写入者生效
// @Tags 知识库管理
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/knowledge-bases [put]
func (h *handler) saveKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	items, err := h.kb.SaveChanges(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": content.MsgSaved,
		"items":   items,
	})
}

// addKnowledgeBase godoc
// @Summary 新增知识库
// @Description 未提交的字段使用表单默认值，未提供标识时自动生成
// @Tags 知识库管理
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /api/knowledge-bases [post]
func (h *handler) addKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	draft := content.NewKnowledgeBaseDraft()
	if err := decodeOptionalJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := content.ValidateKnowledgeBase(draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.kb.Add(r.Context(), draft)
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": content.MsgSaved,
		"item":    item,
	})
}

// replaceKnowledgeBase godoc
// @Summary 按标识整条替换知识库
// @Tags 知识库管理
// @Accept json
// @Produce json
// @Param id path string true "知识库标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases/{id} [put]
func (h *handler) replaceKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var item content.KnowledgeBase
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	normalized := content.NormalizeForSave([]content.KnowledgeBase{item})[0]
	if err := content.ValidateKnowledgeBase(normalized); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := h.kb.Replace(r.Context(), chi.URLParam(r, "id"), normalized)
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": content.MsgSaved,
		"item":    saved,
	})
}

// patchKnowledgeBase godoc
// @Summary 按字段修改知识库
// @Tags 知识库管理
// @Accept json
// @Produce json
// @Param id path string true "知识库标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases/{id} [patch]
func (h *handler) patchKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var patch content.KnowledgeBasePatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	saved, err := h.kb.Update(r.Context(), chi.URLParam(r, "id"), patch.Updates()...)
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": content.MsgSaved,
		"item":    saved,
	})
}

// deleteKnowledgeBase godoc
// @Summary 删除知识库
// @Tags 知识库管理
// @Produce json
// @Param id path string true "知识库标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases/{id} [delete]
func (h *handler) deleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	if err := h.kb.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": content.MsgSaved})
}

// clearKnowledgeBases godoc
// @Summary 清空知识库
// @Description 写入空集合，之后读取为空
// @Tags 知识库管理
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases [delete]
func (h *handler) clearKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	if err := h.kb.Clear(r.Context()); err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": content.MsgSaved})
}

// resetKnowledgeBases godoc
// @Summary 恢复默认知识库
// @Tags 知识库管理
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases/reset [post]
func (h *handler) resetKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	if err := h.kb.Reset(r.Context()); err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": h.kb.GetAll(r.Context()),
	})
}

// knowledgeBaseStats godoc
// @Summary 管理后台统计
// @Tags 知识库管理
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/knowledge-bases/stats [get]
func (h *handler) knowledgeBaseStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"stats": content.ComputeStats(h.kb.GetAll(r.Context())),
	})
}

// exportKnowledgeBases godoc
// @Summary 导出知识库 JSON 文件
// @Tags 知识库管理
// @Produce json
// @Success 200 {file} file
// @Router /api/knowledge-bases/export [get]
func (h *handler) exportKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	name, data, err := h.kb.Export(r.Context())
	if err != nil {
		logger.Error("导出知识库失败: %v", err)
		writeError(w, http.StatusInternalServerError, content.MsgExportFailed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// importKnowledgeBases godoc
// @Summary 解析导入的知识库文件
// @Description 只解析并返回，保存需要再调用 PUT /api/knowledge-bases
// @Tags 知识库管理
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/knowledge-bases/import [post]
func (h *handler) importKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	data, err := readImportPayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, content.MsgImportFailed)
		return
	}
	items, err := h.kb.Import(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, content.MsgImportFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": content.MsgImported,
		"items":   items,
	})
}

// archiveKnowledgeBases godoc
// @Summary 导出并归档到对象存储
// @Tags 知识库管理
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/knowledge-bases/archive [post]
func (h *handler) archiveKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "未配置导出归档")
		return
	}
	name, data, err := h.kb.Export(r.Context())
	if err != nil {
		logger.Error("导出知识库失败: %v", err)
		writeError(w, http.StatusInternalServerError, content.MsgExportFailed)
		return
	}
	link, err := h.archiver.Put(r.Context(), name, data)
	if err != nil {
		logger.Error("归档知识库导出失败: %v", err)
		writeError(w, http.StatusBadGateway, content.MsgExportFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"name": name,
		"url":  link,
	})
}

// icons godoc
// @Summary 图标表
// @Tags 知识库
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/icons [get]
func (h *handler) icons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"icons":   content.Icons(),
		"palette": content.Palette(),
	})
}

// writeServiceError 把服务层错误映射为状态码；写入失败统一返回通用提示
func (h *handler) writeServiceError(w http.ResponseWriter, err error, failure string) {
	switch {
	case errors.Is(err, content.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, kb.ErrNotFound), errors.Is(err, topic.ErrNotFound), errors.Is(err, topic.ErrArticleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, kb.ErrDuplicate), errors.Is(err, topic.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("处理请求失败: %v", err)
		writeError(w, http.StatusInternalServerError, failure)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// decodeOptionalJSON 空请求体视为不修改默认值
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, target)
}

// readImportPayload 支持直接提交 JSON 或 multipart 表单中的 file 字段
func readImportPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return readBody(w, r)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func parseBoolQuery(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
