package content

// Icon 图标资源描述，Component 为前端图标组件名
type Icon struct {
	Name      IconName `json:"name"`
	Component string   `json:"component"`
	Label     string   `json:"label"`
}

var iconTable = []Icon{
	{Name: IconMessageSquare, Component: "MessageSquare", Label: "对话"},
	{Name: IconBrainCircuit, Component: "BrainCircuit", Label: "智能体"},
	{Name: IconImage, Component: "Image", Label: "图片"},
	{Name: IconSearch, Component: "Search", Label: "搜索"},
	{Name: IconFilm, Component: "Film", Label: "视频"},
	{Name: IconFileText, Component: "FileText", Label: "文档"},
}

// Icons 返回完整图标表
func Icons() []Icon {
	return append([]Icon(nil), iconTable...)
}

// ResolveIcon 解析图标名称，未知名称回退为 MessageSquare
func ResolveIcon(name IconName) Icon {
	for _, icon := range iconTable {
		if icon.Name == name {
			return icon
		}
	}
	return iconTable[0]
}

var categoryEmojis = map[string]string{
	"聊天":  "💬",
	"图片":  "🖼️",
	"搜索":  "🔍",
	"工作流": "🔄",
	"工具":  "🛠️",
}

// CategoryEmoji 返回分类对应的表情，未知分类使用文件夹
func CategoryEmoji(category string) string {
	if emoji, ok := categoryEmojis[category]; ok {
		return emoji
	}
	return "📁"
}
