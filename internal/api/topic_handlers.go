// 本文件用于专题与文章 HTTP 处理器
package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ai4free/internal/content"
)

// listTopics godoc
// @Summary 专题列表
// @Description 专题与文章均按序号排序；stored=1 时返回持久化顺序
// @Tags 专题
// @Produce json
// @Param stored query bool false "按持久化顺序返回"
// @Success 200 {object} map[string]interface{}
// @Router /api/topics [get]
func (h *handler) listTopics(w http.ResponseWriter, r *http.Request) {
	topics := h.topics.GetAll(r.Context())
	if !parseBoolQuery(r, "stored") {
		topics = content.SortTopics(topics)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": topics,
		"total": len(topics),
	})
}

// getTopic godoc
// @Summary 专题详情
// @Tags 专题
// @Produce json
// @Param id path string true "专题标识"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/topics/{id} [get]
func (h *handler) getTopic(w http.ResponseWriter, r *http.Request) {
	t, err := h.topics.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	t.Articles = content.SortArticles(t.Articles)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item": t})
}

// saveTopics godoc
// @Summary 保存整个专题集合
// @Tags 专题管理
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/topics [put]
func (h *handler) saveTopics(w http.ResponseWriter, r *http.Request) {
	var topics []content.Topic
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&topics); err != nil || topics == nil {
		writeError(w, http.StatusBadRequest, "提交的数据必须为专题数组")
		return
	}
	saved, err := h.topics.SaveChanges(r.Context(), topics)
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": content.MsgSaved,
		"items":   saved,
	})
}

// addTopic godoc
// @Summary 新增专题
// @Tags 专题管理
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /api/topics [post]
func (h *handler) addTopic(w http.ResponseWriter, r *http.Request) {
	draft := content.NewTopicDraft()
	if err := decodeOptionalJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	added, err := h.topics.AddTopic(r.Context(), draft)
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": content.MsgSaved,
		"item":    added,
	})
}

// replaceTopic godoc
// @Summary 按标识替换专题
// @Description 未提交 articles 时保留原有文章
// @Tags 专题管理
// @Accept json
// @Produce json
// @Param id path string true "专题标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/topics/{id} [put]
func (h *handler) replaceTopic(w http.ResponseWriter, r *http.Request) {
	var t content.Topic
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	saved, err := h.topics.ReplaceTopic(r.Context(), chi.URLParam(r, "id"), t)
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

// deleteTopic godoc
// @Summary 删除专题及其文章
// @Tags 专题管理
// @Produce json
// @Param id path string true "专题标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/topics/{id} [delete]
func (h *handler) deleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := h.topics.DeleteTopic(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": content.MsgSaved})
}

// resetTopics godoc
// @Summary 恢复默认专题
// @Tags 专题管理
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/topics/reset [post]
func (h *handler) resetTopics(w http.ResponseWriter, r *http.Request) {
	if err := h.topics.Reset(r.Context()); err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": h.topics.GetAll(r.Context()),
	})
}

// addArticle godoc
// @Summary 向专题新增文章
// @Description 空请求体时按默认值新增一篇文章
// @Tags 专题管理
// @Accept json
// @Produce json
// @Param id path string true "专题标识"
// @Success 201 {object} map[string]interface{}
// @Router /api/topics/{id}/articles [post]
func (h *handler) addArticle(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "id")
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var added content.Article
	if len(bytes.TrimSpace(body)) == 0 {
		added, err = h.topics.NewArticle(r.Context(), topicID)
	} else {
		added, err = h.addArticleFrom(r, topicID, body)
	}
	if err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": content.MsgSaved,
		"item":    added,
	})
}

// addArticleFrom 以表单默认值为底，叠加请求体中的字段后追加
func (h *handler) addArticleFrom(r *http.Request, topicID string, body []byte) (content.Article, error) {
	t, err := h.topics.Get(r.Context(), topicID)
	if err != nil {
		return content.Article{}, err
	}
	draft := content.NewArticleDraft(len(t.Articles))
	if err := json.Unmarshal(body, &draft); err != nil {
		return content.Article{}, &content.ValidationError{Message: "invalid payload"}
	}
	return h.topics.AddArticle(r.Context(), topicID, draft)
}

// replaceArticle godoc
// @Summary 按标识替换文章
// @Tags 专题管理
// @Accept json
// @Produce json
// @Param id path string true "专题标识"
// @Param articleId path string true "文章标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/topics/{id}/articles/{articleId} [put]
func (h *handler) replaceArticle(w http.ResponseWriter, r *http.Request) {
	var a content.Article
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	saved, err := h.topics.ReplaceArticle(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "articleId"), a)
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

// deleteArticle godoc
// @Summary 删除文章
// @Tags 专题管理
// @Produce json
// @Param id path string true "专题标识"
// @Param articleId path string true "文章标识"
// @Success 200 {object} map[string]interface{}
// @Router /api/topics/{id}/articles/{articleId} [delete]
func (h *handler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := h.topics.DeleteArticle(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "articleId")); err != nil {
		h.writeServiceError(w, err, content.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": content.MsgSaved})
}
