package api

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai4free/internal/content"
	"ai4free/internal/models"
)

func TestListKnowledgeBasesRenderOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_ = env.kb.SaveAll(ctx, []content.KnowledgeBase{
		{ID: "b", Name: "B", URL: "/b", Order: 2, Category: "搜索"},
		{ID: "a", Name: "A", URL: "/a", Order: 1, Category: "对话", IconName: "Unknown"},
		{ID: "c", Name: "C", URL: "/c", Order: 1, Category: "搜索"},
	})

	body := decodeBody(t, env.do(t, http.MethodGet, "/api/knowledge-bases", nil))
	items := body["items"].([]any)
	ids := []string{}
	for _, item := range items {
		ids = append(ids, item.(map[string]any)["id"].(string))
	}
	if strings.Join(ids, ",") != "a,c,b" {
		t.Fatalf("unexpected render order %v", ids)
	}
	first := items[0].(map[string]any)
	if first["icon"].(map[string]any)["name"] != string(content.IconMessageSquare) {
		t.Fatalf("unknown icon should resolve to the default, got %v", first["icon"])
	}
	if first["layout"].(map[string]any)["size"] != string(content.CardLarge) {
		t.Fatalf("unexpected layout %v", first["layout"])
	}

	body = decodeBody(t, env.do(t, http.MethodGet, "/api/knowledge-bases?stored=1&category=搜索", nil))
	items = body["items"].([]any)
	if len(items) != 2 || items[0].(map[string]any)["id"] != "b" {
		t.Fatalf("unexpected filtered stored order %v", items)
	}
}

func TestHomeFeedAndDetail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_ = env.kb.SaveAll(ctx, []content.KnowledgeBase{
		{ID: "a", Name: "A", URL: "/a", Order: 3, ShowOnHome: true, IframeStrategy: content.IframeEmbed},
		{ID: "b", Name: "B", URL: "/b", Order: 1, ShowOnHome: false, IframeStrategy: content.IframeEmbed},
		{ID: "c", Name: "C", URL: "/c", Order: 2, ShowOnHome: true, IframeStrategy: content.IframeSnapshot},
	})

	body := decodeBody(t, env.do(t, http.MethodGet, "/api/knowledge-bases/home?preloadFor=a", nil))
	items := body["items"].([]any)
	if len(items) != 2 || items[0].(map[string]any)["id"] != "c" {
		t.Fatalf("unexpected home feed %v", items)
	}
	preload := body["preload"].([]any)
	if len(preload) != 1 || preload[0].(map[string]any)["id"] != "b" {
		t.Fatalf("unexpected preload candidates %v", preload)
	}

	rec := env.do(t, http.MethodGet, "/api/knowledge-bases/a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/knowledge-bases/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSaveKnowledgeBasesValidatesAndNormalizes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPut, "/api/knowledge-bases", `[{"id":"a","name":"A","url":"/a","order":"x","iframeStrategy":"embed"}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "第 1 项的排序（order）必须为数字" {
		t.Fatalf("unexpected validation message %v", got)
	}
	if len(env.kb.GetAll(ctx)) != 8 {
		t.Fatal("failed validation must not write")
	}

	rec = env.do(t, http.MethodPut, "/api/knowledge-bases", `{"id":"a"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-array payload should be rejected, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/knowledge-bases", `[{"id":"a","name":"A","url":"/a","order":1,"iframeStrategy":"snapshot"},{"id":"b","name":"B","url":"/b","order":2,"iframeStrategy":"embed"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["message"] != content.MsgSaved {
		t.Fatal("expected saved message")
	}
	if got := env.kb.GetAll(ctx); len(got) != 2 || got[0].IframeStrategy != content.IframeSnapshot {
		t.Fatalf("unexpected saved collection %+v", got)
	}
}

func TestKnowledgeBaseCRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/knowledge-bases", map[string]any{"name": "Kimi", "url": "https://kimi.moonshot.cn", "category": "对话"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	item := decodeBody(t, rec)["item"].(map[string]any)
	id := item["id"].(string)
	if !strings.HasPrefix(id, "kb_") || item["iframeStrategy"] != "embed" || item["showOnHome"] != true {
		t.Fatalf("unexpected created item %v", item)
	}

	if rec := env.do(t, http.MethodPost, "/api/knowledge-bases", map[string]any{"url": "/x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name should be rejected, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/knowledge-bases", map[string]any{"id": "chatgpt", "name": "dup", "url": "/d"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate id should conflict, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/knowledge-bases/"+id, map[string]any{"name": "Kimi 2", "url": "/kimi", "order": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("replace failed: %d %s", rec.Code, rec.Body.String())
	}
	got, _ := env.kb.Get(ctx, id)
	if got.Name != "Kimi 2" || got.IframeStrategy != content.IframeEmbed || got.Category != "" {
		t.Fatalf("replace should overwrite the whole record, got %+v", got)
	}

	rec = env.do(t, http.MethodPatch, "/api/knowledge-bases/"+id, map[string]any{"tag": "热门", "showOnHome": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch failed: %d %s", rec.Code, rec.Body.String())
	}
	got, _ = env.kb.Get(ctx, id)
	if got.Tag != content.TagHot || got.ShowOnHome || got.Name != "Kimi 2" {
		t.Fatalf("unexpected patched record %+v", got)
	}

	if rec := env.do(t, http.MethodDelete, "/api/knowledge-bases/"+id, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/knowledge-bases/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete should 404, got %d", rec.Code)
	}
}

func TestPatchNormalizesLegacyRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)
	ctx := context.Background()
	_ = env.kb.SaveAll(ctx, []content.KnowledgeBase{{ID: "legacy", Name: "L", URL: "/l"}})

	rec := env.do(t, http.MethodPatch, "/api/knowledge-bases/legacy", map[string]any{"name": "L2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch failed: %d %s", rec.Code, rec.Body.String())
	}
	if item := decodeBody(t, rec)["item"].(map[string]any); item["iframeStrategy"] != "embed" {
		t.Fatalf("response lacks iframeStrategy: %v", item)
	}
	got, _ := env.kb.Get(ctx, "legacy")
	if got.IframeStrategy != content.IframeEmbed || got.Name != "L2" {
		t.Fatalf("stored record lacks iframeStrategy after patch: %+v", got)
	}
}

func TestSaveKnowledgeBasesUniqueIDs(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPut, "/api/knowledge-bases", `[{"id":"x","name":"A","url":"/a","iframeStrategy":"embed"},{"id":"x","name":"B","url":"/b","iframeStrategy":"embed"}]`)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "第 2 项的标识（id）重复" {
		t.Fatalf("duplicate ids should be rejected, got %d %s", rec.Code, rec.Body.String())
	}
	if len(env.kb.GetAll(ctx)) != 8 {
		t.Fatal("rejected save must not write")
	}

	rec = env.do(t, http.MethodPut, "/api/knowledge-bases", `[{"name":"A","url":"/a","iframeStrategy":"embed"},{"name":"B","url":"/b","iframeStrategy":"embed"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save without ids failed: %d %s", rec.Code, rec.Body.String())
	}
	saved := env.kb.GetAll(ctx)
	if len(saved) != 2 || !strings.HasPrefix(saved[0].ID, "kb_") || saved[0].ID == saved[1].ID {
		t.Fatalf("missing ids should be generated uniquely, got %+v", saved)
	}
}

func TestStatsClearReset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)
	ctx := context.Background()

	stats := decodeBody(t, env.do(t, http.MethodGet, "/api/knowledge-bases/stats", nil))["stats"].(map[string]any)
	if stats["total"].(float64) != 8 {
		t.Fatalf("unexpected stats %v", stats)
	}

	env.do(t, http.MethodDelete, "/api/knowledge-bases", nil)
	if len(env.kb.GetAll(ctx)) != 0 {
		t.Fatal("clear should persist an empty collection")
	}
	env.do(t, http.MethodPost, "/api/knowledge-bases/reset", nil)
	if len(env.kb.GetAll(ctx)) != 8 {
		t.Fatal("reset should restore defaults")
	}
}

func TestExportImportArchive(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodGet, "/api/knowledge-bases/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export failed: %d", rec.Code)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment; filename=knowledge_bases_") || !strings.HasSuffix(disposition, ".json") {
		t.Fatalf("unexpected disposition %q", disposition)
	}
	exported := rec.Body.Bytes()

	_ = env.kb.Clear(ctx)
	rec = env.do(t, http.MethodPost, "/api/knowledge-bases/import", exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("import failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != content.MsgImported || len(body["items"].([]any)) != 8 {
		t.Fatalf("unexpected import response %v", body)
	}
	if len(env.kb.GetAll(ctx)) != 0 {
		t.Fatal("import must not persist")
	}

	rec = env.do(t, http.MethodPost, "/api/knowledge-bases/import", "not json")
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != content.MsgImportFailed {
		t.Fatalf("expected import failure, got %d %s", rec.Code, rec.Body.String())
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "kb.json")
	_, _ = part.Write(exported)
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-bases/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.AddCookie(env.cookie)
	multipartRec := httptest.NewRecorder()
	env.router.ServeHTTP(multipartRec, req)
	if multipartRec.Code != http.StatusOK {
		t.Fatalf("multipart import failed: %d %s", multipartRec.Code, multipartRec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/knowledge-bases/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive failed: %d %s", rec.Code, rec.Body.String())
	}
	if len(env.archiver.names) != 1 || !strings.HasPrefix(env.archiver.names[0], "knowledge_bases_") {
		t.Fatalf("unexpected archived names %v", env.archiver.names)
	}

	env.archiver.err = errors.New("network down")
	rec = env.do(t, http.MethodPost, "/api/knowledge-bases/archive", nil)
	if rec.Code != http.StatusBadGateway || decodeBody(t, rec)["error"] != content.MsgExportFailed {
		t.Fatalf("expected archive failure, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestArchiveDisabled(t *testing.T) {
	env := newTestEnvWith(t, &models.Config{}, envOptions{noArchiver: true})
	env.login(t)
	if rec := env.do(t, http.MethodPost, "/api/knowledge-bases/archive", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without archive backend, got %d", rec.Code)
	}
}

func TestSaveFailureUsesGenericMessage(t *testing.T) {
	// 配额很小的存储让整体写入失败
	small := newTestEnvWith(t, nil, envOptions{quota: 16})
	small.login(t)
	rec := small.do(t, http.MethodPut, "/api/knowledge-bases", `[{"id":"a","name":"A","url":"/a","order":1,"iframeStrategy":"embed"}]`)
	if rec.Code != http.StatusInternalServerError || decodeBody(t, rec)["error"] != content.MsgSaveFailed {
		t.Fatalf("expected generic save failure, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestIconsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	body := decodeBody(t, env.do(t, http.MethodGet, "/api/icons", nil))
	if len(body["icons"].([]any)) != len(content.Icons()) || len(body["palette"].([]any)) != 7 {
		t.Fatalf("unexpected icons payload %v", body)
	}
}
