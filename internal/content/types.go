// Package content 定义知识库与专题的数据模型、图标表、默认数据以及校验与排版规则
package content

import "errors"

// ErrInvalid 数据校验失败
var ErrInvalid = errors.New("content: invalid input")

// IconName 知识库图标名称，取值为封闭集合
type IconName string

const (
	IconMessageSquare IconName = "MessageSquare"
	IconBrainCircuit  IconName = "BrainCircuit"
	IconImage         IconName = "ImageIcon"
	IconSearch        IconName = "Search"
	IconFilm          IconName = "Film"
	IconFileText      IconName = "FileText"
)

// Tag 知识库标签
type Tag string

const (
	TagNone      Tag = ""
	TagRecommend Tag = "推荐"
	TagFree      Tag = "免费"
	TagHot       Tag = "热门"
)

// KnownTags 管理统计中按顺序展示的标签
var KnownTags = []Tag{TagRecommend, TagFree, TagHot}

// IframeStrategy 知识库内嵌展示策略
type IframeStrategy string

const (
	IframeEmbed    IframeStrategy = "embed"
	IframeSnapshot IframeStrategy = "snapshot"
)

// ContentType 文章内容类型
type ContentType string

const (
	ContentExternal ContentType = "external"
	ContentIframe   ContentType = "iframe"
	ContentRichText ContentType = "richtext"
	ContentAPI      ContentType = "api"
)

// KnowledgeBase 知识库条目，字段名即持久化格式
type KnowledgeBase struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	URL            string         `json:"url"`
	IconName       IconName       `json:"iconName"`
	Order          int            `json:"order"`
	Tag            Tag            `json:"tag,omitempty"`
	IframeStrategy IframeStrategy `json:"iframeStrategy,omitempty"`
	ShowOnHome     bool           `json:"showOnHome"`
	Category       string         `json:"category"`
}

// Article 专题下的文章
type Article struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Order       int         `json:"order"`
	ContentType ContentType `json:"contentType"`
	Content     string      `json:"content"`
	Description string      `json:"description,omitempty"`
}

// Topic 专题，拥有有序的文章列表
type Topic struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Order     int       `json:"order"`
	CardColor string    `json:"cardColor"`
	Articles  []Article `json:"articles"`
}

// IsValidIframeStrategy 判断展示策略是否为已知取值
func IsValidIframeStrategy(s IframeStrategy) bool {
	return s == IframeEmbed || s == IframeSnapshot
}

// IsValidContentType 判断文章内容类型是否为已知取值
func IsValidContentType(c ContentType) bool {
	switch c {
	case ContentExternal, ContentIframe, ContentRichText, ContentAPI:
		return true
	}
	return false
}

// IsValidTag 判断标签是否为空或已知取值
func IsValidTag(t Tag) bool {
	switch t {
	case TagNone, TagRecommend, TagFree, TagHot:
		return true
	}
	return false
}

// CloneKnowledgeBases 返回独立副本
func CloneKnowledgeBases(items []KnowledgeBase) []KnowledgeBase {
	if items == nil {
		return nil
	}
	return append([]KnowledgeBase(nil), items...)
}

// CloneTopics 深拷贝专题及其文章
func CloneTopics(topics []Topic) []Topic {
	if topics == nil {
		return nil
	}
	out := make([]Topic, len(topics))
	for i, t := range topics {
		out[i] = t
		if t.Articles != nil {
			out[i].Articles = append([]Article(nil), t.Articles...)
		}
	}
	return out
}
