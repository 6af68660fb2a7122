package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// 面向用户的提示文案
const (
	MsgSaved        = "更改已保存！"
	MsgSaveFailed   = "保存失败，请重试"
	MsgImported     = "导入成功！"
	MsgImportFailed = "导入失败：文件格式不正确"
	MsgExportFailed = "导出失败，请重试"
)

// ValidationError 带 1 起始序号的校验错误，Message 可直接展示给用户
type ValidationError struct {
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func invalidItem(index int, format string) error {
	return &ValidationError{Index: index, Message: fmt.Sprintf(format, index)}
}

func invalidField(message string) error {
	return &ValidationError{Message: message}
}

type rawKnowledgeBase struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	URL            *string         `json:"url"`
	IconName       IconName        `json:"iconName"`
	Order          json.RawMessage `json:"order"`
	Tag            Tag             `json:"tag"`
	IframeStrategy IframeStrategy  `json:"iframeStrategy"`
	ShowOnHome     bool            `json:"showOnHome"`
	Category       string          `json:"category"`
}

// DecodeForSave 解析管理端提交的完整集合并逐项校验，任一项失败即返回，不做任何写入。
// 校验顺序：排序字段为整数、已选择展示策略、URL 非空、名称非空、标识不重复。空标识由调用方补全
func DecodeForSave(data []byte) ([]KnowledgeBase, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, invalidField("提交的数据必须为知识库数组")
	}
	items := make([]KnowledgeBase, 0, len(rawItems))
	seen := make(map[string]bool, len(rawItems))
	for i, rawItem := range rawItems {
		index := i + 1
		var raw rawKnowledgeBase
		if err := json.Unmarshal(rawItem, &raw); err != nil {
			if order, ok := fieldOf(rawItem, "order"); ok && !isJSONNumber(order) {
				return nil, invalidItem(index, "第 %d 项的排序（order）必须为数字")
			}
			return nil, invalidItem(index, "第 %d 项的格式不正确")
		}
		order := 1
		if len(raw.Order) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Order), []byte("null")) {
			parsed, ok := parseOrder(raw.Order)
			if !ok {
				return nil, invalidItem(index, "第 %d 项的排序（order）必须为数字")
			}
			order = parsed
		}
		if !IsValidIframeStrategy(raw.IframeStrategy) {
			return nil, invalidItem(index, "第 %d 项必须选择 iframe 展示策略")
		}
		if raw.URL == nil || strings.TrimSpace(*raw.URL) == "" {
			return nil, invalidItem(index, "第 %d 项的 URL 不合法")
		}
		if strings.TrimSpace(raw.Name) == "" {
			return nil, invalidItem(index, "第 %d 项的名称不能为空")
		}
		id := strings.TrimSpace(raw.ID)
		if id != "" {
			if seen[id] {
				return nil, invalidItem(index, "第 %d 项的标识（id）重复")
			}
			seen[id] = true
		}
		items = append(items, KnowledgeBase{
			ID:             id,
			Name:           raw.Name,
			Description:    raw.Description,
			URL:            *raw.URL,
			IconName:       raw.IconName,
			Order:          order,
			Tag:            raw.Tag,
			IframeStrategy: raw.IframeStrategy,
			ShowOnHome:     raw.ShowOnHome,
			Category:       raw.Category,
		})
	}
	return items, nil
}

// ValidateKnowledgeBase 校验单条表单提交
func ValidateKnowledgeBase(item KnowledgeBase) error {
	if strings.TrimSpace(item.Name) == "" {
		return invalidField("名称不能为空")
	}
	if strings.TrimSpace(item.URL) == "" {
		return invalidField("URL 不合法")
	}
	if !IsValidIframeStrategy(item.IframeStrategy) {
		return invalidField("必须选择 iframe 展示策略")
	}
	if !IsValidTag(item.Tag) {
		return invalidField("标签无效")
	}
	return nil
}

// NormalizeForSave 缺失展示策略的条目补为 embed，返回新切片
func NormalizeForSave(items []KnowledgeBase) []KnowledgeBase {
	out := make([]KnowledgeBase, len(items))
	for i, item := range items {
		if item.IframeStrategy == "" {
			item.IframeStrategy = IframeEmbed
		}
		out[i] = item
	}
	return out
}

// ParseImport 解析导入文件，仅要求为知识库数组，不做持久化
func ParseImport(data []byte) ([]KnowledgeBase, error) {
	var items []KnowledgeBase
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		return nil, invalidField(MsgImportFailed)
	}
	return items, nil
}

// ValidateTopic 专题名称与分类必填
func ValidateTopic(topic Topic) error {
	if strings.TrimSpace(topic.Name) == "" {
		return invalidField("专题名称不能为空")
	}
	if strings.TrimSpace(topic.Category) == "" {
		return invalidField("专题分类不能为空")
	}
	return nil
}

// ValidateTopics 校验整个专题集合：逐项校验专题与文章，专题标识与同一专题内的文章标识不得重复
func ValidateTopics(topics []Topic) error {
	topicIDs := make(map[string]bool, len(topics))
	for i, t := range topics {
		if err := ValidateTopic(t); err != nil {
			return err
		}
		if id := strings.TrimSpace(t.ID); id != "" {
			if topicIDs[id] {
				return invalidItem(i+1, "第 %d 个专题的标识（id）重复")
			}
			topicIDs[id] = true
		}
		articleIDs := make(map[string]bool, len(t.Articles))
		for j, a := range t.Articles {
			if err := ValidateArticle(a); err != nil {
				return err
			}
			id := strings.TrimSpace(a.ID)
			if id == "" {
				continue
			}
			if articleIDs[id] {
				return &ValidationError{
					Index:   i + 1,
					Message: fmt.Sprintf("第 %d 个专题的第 %d 篇文章标识（id）重复", i+1, j+1),
				}
			}
			articleIDs[id] = true
		}
	}
	return nil
}

// ValidateArticle 文章标题必填，内容类型为已知取值
func ValidateArticle(article Article) error {
	if strings.TrimSpace(article.Title) == "" {
		return invalidField("文章标题不能为空")
	}
	if !IsValidContentType(article.ContentType) {
		return invalidField("文章内容类型无效")
	}
	return nil
}

// NewKnowledgeBaseDraft 新增表单的默认值
func NewKnowledgeBaseDraft() KnowledgeBase {
	return KnowledgeBase{
		IconName:       IconMessageSquare,
		Order:          1,
		Tag:            TagNone,
		IframeStrategy: IframeEmbed,
		ShowOnHome:     true,
	}
}

// NewTopicDraft 新增专题的默认值
func NewTopicDraft() Topic {
	return Topic{
		Order:     1,
		CardColor: DefaultCardColor(),
		Articles:  []Article{},
	}
}

// NewArticleDraft 新增文章的默认值，序号排在已有文章之后
func NewArticleDraft(existing int) Article {
	return Article{
		Title:       "新文章",
		Order:       existing + 1,
		ContentType: ContentRichText,
		Content:     "",
		Description: "",
	}
}

func fieldOf(data []byte, name string) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}
	v, ok := fields[name]
	return v, ok
}

// parseOrder 排序必须是 int32 范围内的整数
func parseOrder(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func isJSONNumber(raw json.RawMessage) bool {
	var f float64
	return json.Unmarshal(raw, &f) == nil
}
