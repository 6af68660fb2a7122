// 本文件用于知识库集合的读写服务 所有修改都以整份集合覆盖写回

// 文件职责：把增删改组合为 读取 -> 修改 -> 整体保存 三步
// 关键路径：管理端保存先校验再补全展示策略 最后整体写入
// 边界与容错：读取永不失败 写入失败返回错误由上层提示用户

package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai4free/internal/codec"
	"ai4free/internal/content"
	"ai4free/internal/kvstore"
	"ai4free/internal/metrics"
)

const (
	// DefaultKey 知识库集合的存储键
	DefaultKey = "ai4free_knowledge_bases"
	idPrefix   = "kb"
)

var (
	ErrNotFound  = errors.New("knowledge base not found")
	ErrDuplicate = errors.New("knowledge base id already exists")
)

// Options 构造参数，未设置的字段使用默认值
type Options struct {
	Key      string
	Defaults func() []content.KnowledgeBase
	Clock    func() time.Time
	Metrics  *metrics.Collector
}

type Service struct {
	codec *codec.Codec[[]content.KnowledgeBase]
	ids   *content.IDGenerator
	clock func() time.Time
}

// NewService 创建知识库服务
func NewService(store kvstore.Store, opts Options) *Service {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = content.DefaultKnowledgeBases
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		codec: codec.New(store, key, defaults, opts.Metrics),
		ids:   content.NewIDGenerator(clock),
		clock: clock,
	}
}

func (s *Service) Key() string {
	return s.codec.Key()
}

// GetAll 返回持久化顺序的完整集合，键不存在或数据损坏时返回默认目录
func (s *Service) GetAll(ctx context.Context) []content.KnowledgeBase {
	items := s.codec.Read(ctx)
	if items == nil {
		return []content.KnowledgeBase{}
	}
	return items
}

// SaveAll 整体覆盖集合，不做补全
func (s *Service) SaveAll(ctx context.Context, items []content.KnowledgeBase) error {
	if items == nil {
		items = []content.KnowledgeBase{}
	}
	return s.codec.Write(ctx, items)
}

// SaveChanges 管理端保存：校验 -> 补全展示策略 -> 整体写入。校验失败时不写入
func (s *Service) SaveChanges(ctx context.Context, payload []byte) ([]content.KnowledgeBase, error) {
	items, err := content.DecodeForSave(payload)
	if err != nil {
		return nil, err
	}
	normalized := content.NormalizeForSave(items)
	s.fillIDs(normalized)
	if err := s.SaveAll(ctx, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// Get 按标识查找
func (s *Service) Get(ctx context.Context, id string) (content.KnowledgeBase, error) {
	for _, item := range s.GetAll(ctx) {
		if item.ID == id {
			return item, nil
		}
	}
	return content.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add 追加一条记录，未提供标识时生成 kb_<毫秒时间戳>
func (s *Service) Add(ctx context.Context, item content.KnowledgeBase) (content.KnowledgeBase, error) {
	items := s.GetAll(ctx)
	taken := idSet(items)
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		item.ID = s.ids.NextUnique(idPrefix, func(id string) bool { return taken[id] })
	} else if taken[item.ID] {
		return content.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrDuplicate, item.ID)
	}
	if err := s.SaveAll(ctx, append(items, item)); err != nil {
		return content.KnowledgeBase{}, err
	}
	return item, nil
}

// Replace 按标识整条替换，记录标识保持不变
func (s *Service) Replace(ctx context.Context, id string, item content.KnowledgeBase) (content.KnowledgeBase, error) {
	items := s.GetAll(ctx)
	idx := indexOf(items, id)
	if idx < 0 {
		return content.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	item.ID = id
	next := content.CloneKnowledgeBases(items)
	next[idx] = item
	if err := s.SaveAll(ctx, next); err != nil {
		return content.KnowledgeBase{}, err
	}
	return item, nil
}

// Update 对现有记录应用字段修改后整条替换
func (s *Service) Update(ctx context.Context, id string, updates ...content.KnowledgeBaseUpdate) (content.KnowledgeBase, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return content.KnowledgeBase{}, err
	}
	updated := content.NormalizeForSave([]content.KnowledgeBase{content.Apply(current, updates...)})[0]
	if err := content.ValidateKnowledgeBase(updated); err != nil {
		return content.KnowledgeBase{}, err
	}
	return s.Replace(ctx, id, updated)
}

// Delete 按标识移除
func (s *Service) Delete(ctx context.Context, id string) error {
	items := s.GetAll(ctx)
	next := make([]content.KnowledgeBase, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			next = append(next, item)
		}
	}
	if len(next) == len(items) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.SaveAll(ctx, next)
}

// Reset 删除存储键，之后读取回到默认目录
func (s *Service) Reset(ctx context.Context) error {
	return s.codec.Reset(ctx)
}

// Clear 持久化一个空集合，与 Reset 不同，之后读取为空
func (s *Service) Clear(ctx context.Context) error {
	return s.SaveAll(ctx, []content.KnowledgeBase{})
}

// Export 以两空格缩进导出当前集合，文件名按 UTC 日期命名
func (s *Service) Export(ctx context.Context) (string, []byte, error) {
	data, err := json.MarshalIndent(s.GetAll(ctx), "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("导出知识库失败: %w", err)
	}
	return ExportFileName(s.clock()), data, nil
}

// Import 解析导入内容，不写入存储，由调用方决定是否保存
func (s *Service) Import(data []byte) ([]content.KnowledgeBase, error) {
	return content.ParseImport(data)
}

// ExportFileName 返回 knowledge_bases_YYYY-MM-DD.json
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("knowledge_bases_%s.json", now.UTC().Format("2006-01-02"))
}

// fillIDs 为没有标识的条目生成 kb_<毫秒时间戳>
func (s *Service) fillIDs(items []content.KnowledgeBase) {
	taken := idSet(items)
	for i := range items {
		if items[i].ID != "" {
			continue
		}
		items[i].ID = s.ids.NextUnique(idPrefix, func(id string) bool { return taken[id] })
		taken[items[i].ID] = true
	}
}

func indexOf(items []content.KnowledgeBase, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func idSet(items []content.KnowledgeBase) map[string]bool {
	taken := make(map[string]bool, len(items))
	for _, item := range items {
		taken[item.ID] = true
	}
	return taken
}
