// 本文件用于专题与文章的读写服务 文章嵌在所属专题内 没有独立的存储键
package topic

import (
	"context"
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
	// DefaultKey 专题集合的存储键
	DefaultKey      = "ai4free_llmagent_topics"
	topicIDPrefix   = "topic"
	articleIDPrefix = "article"
)

var (
	ErrNotFound        = errors.New("topic not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrDuplicate       = errors.New("id already exists")
)

// Options 构造参数，未设置的字段使用默认值
type Options struct {
	Key      string
	Defaults func() []content.Topic
	Clock    func() time.Time
	Metrics  *metrics.Collector
}

type Service struct {
	codec *codec.Codec[[]content.Topic]
	ids   *content.IDGenerator
}

// NewService 创建专题服务
func NewService(store kvstore.Store, opts Options) *Service {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = content.DefaultTopics
	}
	return &Service{
		codec: codec.New(store, key, defaults, opts.Metrics),
		ids:   content.NewIDGenerator(opts.Clock),
	}
}

func (s *Service) Key() string {
	return s.codec.Key()
}

// GetAll 返回持久化顺序的专题集合，文章列表保证非 nil
func (s *Service) GetAll(ctx context.Context) []content.Topic {
	topics := s.codec.Read(ctx)
	if topics == nil {
		return []content.Topic{}
	}
	for i := range topics {
		if topics[i].Articles == nil {
			topics[i].Articles = []content.Article{}
		}
	}
	return topics
}

// SaveAll 整体覆盖专题集合
func (s *Service) SaveAll(ctx context.Context, topics []content.Topic) error {
	if topics == nil {
		topics = []content.Topic{}
	}
	for i := range topics {
		if topics[i].Articles == nil {
			topics[i].Articles = []content.Article{}
		}
	}
	return s.codec.Write(ctx, topics)
}

// SaveChanges 管理端整体保存：先校验全部专题与文章，再补全缺失的标识，最后整体写入。校验失败时不写入
func (s *Service) SaveChanges(ctx context.Context, topics []content.Topic) ([]content.Topic, error) {
	if err := content.ValidateTopics(topics); err != nil {
		return nil, err
	}
	next := content.CloneTopics(topics)
	topicIDs := make(map[string]bool, len(next))
	for i := range next {
		next[i].ID = strings.TrimSpace(next[i].ID)
		topicIDs[next[i].ID] = true
	}
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = s.ids.NextUnique(topicIDPrefix, func(id string) bool { return topicIDs[id] })
			topicIDs[next[i].ID] = true
		}
		articleIDs := make(map[string]bool, len(next[i].Articles))
		for j := range next[i].Articles {
			next[i].Articles[j].ID = strings.TrimSpace(next[i].Articles[j].ID)
			articleIDs[next[i].Articles[j].ID] = true
		}
		for j := range next[i].Articles {
			if next[i].Articles[j].ID != "" {
				continue
			}
			next[i].Articles[j].ID = s.ids.NextUnique(articleIDPrefix, func(id string) bool { return articleIDs[id] })
			articleIDs[next[i].Articles[j].ID] = true
		}
	}
	if err := s.SaveAll(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Get 按标识查找专题
func (s *Service) Get(ctx context.Context, id string) (content.Topic, error) {
	topics := s.GetAll(ctx)
	idx := indexOfTopic(topics, id)
	if idx < 0 {
		return content.Topic{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return topics[idx], nil
}

// AddTopic 追加专题，未提供标识时生成 topic_<毫秒时间戳>
func (s *Service) AddTopic(ctx context.Context, t content.Topic) (content.Topic, error) {
	if err := content.ValidateTopic(t); err != nil {
		return content.Topic{}, err
	}
	topics := s.GetAll(ctx)
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = s.ids.NextUnique(topicIDPrefix, func(id string) bool { return indexOfTopic(topics, id) >= 0 })
	} else if indexOfTopic(topics, t.ID) >= 0 {
		return content.Topic{}, fmt.Errorf("%w: %s", ErrDuplicate, t.ID)
	}
	if t.CardColor == "" {
		t.CardColor = content.DefaultCardColor()
	}
	if t.Articles == nil {
		t.Articles = []content.Article{}
	}
	if err := s.SaveAll(ctx, append(topics, t)); err != nil {
		return content.Topic{}, err
	}
	return t, nil
}

// ReplaceTopic 按标识整条替换专题（包含其文章列表）
func (s *Service) ReplaceTopic(ctx context.Context, id string, t content.Topic) (content.Topic, error) {
	if err := content.ValidateTopic(t); err != nil {
		return content.Topic{}, err
	}
	topics := s.GetAll(ctx)
	idx := indexOfTopic(topics, id)
	if idx < 0 {
		return content.Topic{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.ID = id
	if t.Articles == nil {
		t.Articles = topics[idx].Articles
	}
	next := content.CloneTopics(topics)
	next[idx] = t
	if err := s.SaveAll(ctx, next); err != nil {
		return content.Topic{}, err
	}
	return t, nil
}

// DeleteTopic 删除专题，其下文章随之删除
func (s *Service) DeleteTopic(ctx context.Context, id string) error {
	topics := s.GetAll(ctx)
	next := make([]content.Topic, 0, len(topics))
	for _, t := range topics {
		if t.ID != id {
			next = append(next, t)
		}
	}
	if len(next) == len(topics) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.SaveAll(ctx, next)
}

// AddArticle 向专题追加文章，未提供标识时生成 article_<毫秒时间戳>
func (s *Service) AddArticle(ctx context.Context, topicID string, a content.Article) (content.Article, error) {
	if err := content.ValidateArticle(a); err != nil {
		return content.Article{}, err
	}
	var added content.Article
	err := s.mutateArticles(ctx, topicID, func(articles []content.Article) ([]content.Article, error) {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			a.ID = s.ids.NextUnique(articleIDPrefix, func(id string) bool { return indexOfArticle(articles, id) >= 0 })
		} else if indexOfArticle(articles, a.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, a.ID)
		}
		added = a
		return append(articles, a), nil
	})
	if err != nil {
		return content.Article{}, err
	}
	return added, nil
}

// NewArticle 以表单默认值追加一篇文章
func (s *Service) NewArticle(ctx context.Context, topicID string) (content.Article, error) {
	t, err := s.Get(ctx, topicID)
	if err != nil {
		return content.Article{}, err
	}
	return s.AddArticle(ctx, topicID, content.NewArticleDraft(len(t.Articles)))
}

// ReplaceArticle 按标识整条替换文章
func (s *Service) ReplaceArticle(ctx context.Context, topicID, articleID string, a content.Article) (content.Article, error) {
	if err := content.ValidateArticle(a); err != nil {
		return content.Article{}, err
	}
	a.ID = articleID
	err := s.mutateArticles(ctx, topicID, func(articles []content.Article) ([]content.Article, error) {
		idx := indexOfArticle(articles, articleID)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, articleID)
		}
		next := append([]content.Article(nil), articles...)
		next[idx] = a
		return next, nil
	})
	if err != nil {
		return content.Article{}, err
	}
	return a, nil
}

// DeleteArticle 按标识删除文章，其余文章序号不重排
func (s *Service) DeleteArticle(ctx context.Context, topicID, articleID string) error {
	return s.mutateArticles(ctx, topicID, func(articles []content.Article) ([]content.Article, error) {
		next := make([]content.Article, 0, len(articles))
		for _, a := range articles {
			if a.ID != articleID {
				next = append(next, a)
			}
		}
		if len(next) == len(articles) {
			return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, articleID)
		}
		return next, nil
	})
}

// Reset 删除存储键，之后读取回到默认专题
func (s *Service) Reset(ctx context.Context) error {
	return s.codec.Reset(ctx)
}

// mutateArticles 定位专题，替换其文章列表，再整体保存全部专题
func (s *Service) mutateArticles(ctx context.Context, topicID string, fn func([]content.Article) ([]content.Article, error)) error {
	topics := s.GetAll(ctx)
	idx := indexOfTopic(topics, topicID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, topicID)
	}
	articles, err := fn(topics[idx].Articles)
	if err != nil {
		return err
	}
	next := content.CloneTopics(topics)
	next[idx].Articles = articles
	return s.SaveAll(ctx, next)
}

func indexOfTopic(topics []content.Topic, id string) int {
	for i, t := range topics {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func indexOfArticle(articles []content.Article, id string) int {
	for i, a := range articles {
		if a.ID == id {
			return i
		}
	}
	return -1
}
