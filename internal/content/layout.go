package content

import (
	"fmt"
	"sort"
)

// PaletteColor 卡片配色
type PaletteColor struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Token string `json:"token"`
}

var palette = []PaletteColor{
	{Name: "blue", Label: "蓝色"},
	{Name: "green", Label: "绿色"},
	{Name: "purple", Label: "紫色"},
	{Name: "orange", Label: "橙色"},
	{Name: "pink", Label: "粉色"},
	{Name: "indigo", Label: "靛蓝"},
	{Name: "teal", Label: "青色"},
}

func init() {
	for i := range palette {
		n := palette[i].Name
		palette[i].Token = fmt.Sprintf("bg-gradient-to-br from-%s-50 to-%s-100 border-%s-200", n, n, n)
	}
}

// Palette 返回 7 种卡片配色
func Palette() []PaletteColor {
	return append([]PaletteColor(nil), palette...)
}

// PaletteToken 按名称返回配色样式，未知名称返回蓝色
func PaletteToken(name string) string {
	for _, c := range palette {
		if c.Name == name {
			return c.Token
		}
	}
	return palette[0].Token
}

// DefaultCardColor 新专题默认配色
func DefaultCardColor() string {
	return palette[0].Token
}

// CardSize 知识库卡片尺寸
type CardSize string

const (
	CardSmall  CardSize = "small"
	CardMedium CardSize = "medium"
	CardLarge  CardSize = "large"
)

// CardLayout 知识库卡片的尺寸与配色
type CardLayout struct {
	Size  CardSize `json:"size"`
	Color string   `json:"color"`
}

// CardSizeFor 序号 1/3/5/7/9 为大卡，其余 3 的倍数为中卡，其他为小卡。0 按 1 处理
func CardSizeFor(order int) CardSize {
	if order == 0 {
		order = 1
	}
	switch order {
	case 1, 3, 5, 7, 9:
		return CardLarge
	}
	if order%3 == 0 {
		return CardMedium
	}
	return CardSmall
}

// CardColorFor 配色按 (order-1) 对调色板取模，0 使用第一种
func CardColorFor(order int) string {
	if order == 0 {
		return palette[0].Token
	}
	n := len(palette)
	idx := ((order-1)%n + n) % n
	return palette[idx].Token
}

// LayoutFor 计算知识库卡片排版
func LayoutFor(item KnowledgeBase) CardLayout {
	return CardLayout{Size: CardSizeFor(item.Order), Color: CardColorFor(item.Order)}
}

// SortKnowledgeBases 按 order 升序稳定排序，返回新切片
func SortKnowledgeBases(items []KnowledgeBase) []KnowledgeBase {
	out := CloneKnowledgeBases(items)
	if out == nil {
		out = []KnowledgeBase{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// SortArticles 按 order 升序稳定排序，返回新切片
func SortArticles(articles []Article) []Article {
	out := append([]Article{}, articles...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// SortTopics 专题与其文章均按 order 升序稳定排序，返回深拷贝
func SortTopics(topics []Topic) []Topic {
	out := CloneTopics(topics)
	if out == nil {
		out = []Topic{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Articles = SortArticles(out[i].Articles)
	}
	return out
}

// HomeFeed 首页展示的条目：showOnHome 为真，按 order 排序
func HomeFeed(items []KnowledgeBase) []KnowledgeBase {
	filtered := make([]KnowledgeBase, 0, len(items))
	for _, item := range items {
		if item.ShowOnHome {
			filtered = append(filtered, item)
		}
	}
	return SortKnowledgeBases(filtered)
}

// PreloadCandidates 选中某条目后可预加载的其他内嵌条目
func PreloadCandidates(items []KnowledgeBase, selectedID string) []KnowledgeBase {
	out := []KnowledgeBase{}
	for _, item := range items {
		if item.ID == selectedID {
			continue
		}
		if item.IframeStrategy == IframeEmbed {
			out = append(out, item)
		}
	}
	return out
}

// FilterByCategory 按分类过滤，category 为空或 all 时返回全部
func FilterByCategory(items []KnowledgeBase, category string) []KnowledgeBase {
	if category == "" || category == "all" {
		return CloneKnowledgeBases(items)
	}
	out := []KnowledgeBase{}
	for _, item := range items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}

// CategoryCount 分类统计
type CategoryCount struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Stats 管理后台统计
type Stats struct {
	Total      int             `json:"total"`
	ShowOnHome int             `json:"showOnHome"`
	ByTag      map[Tag]int     `json:"byTag"`
	Categories []CategoryCount `json:"categories"`
}

// ComputeStats 统计总数、首页展示数、各标签数量与分类列表（分类按名称排序）
func ComputeStats(items []KnowledgeBase) Stats {
	stats := Stats{
		Total:      len(items),
		ByTag:      make(map[Tag]int, len(KnownTags)),
		Categories: []CategoryCount{},
	}
	for _, tag := range KnownTags {
		stats.ByTag[tag] = 0
	}
	counts := map[string]int{}
	for _, item := range items {
		if item.ShowOnHome {
			stats.ShowOnHome++
		}
		if _, ok := stats.ByTag[item.Tag]; ok {
			stats.ByTag[item.Tag]++
		}
		if item.Category != "" {
			counts[item.Category]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats.Categories = append(stats.Categories, CategoryCount{
			Name:  name,
			Emoji: CategoryEmoji(name),
			Count: counts[name],
		})
	}
	return stats
}
