package content

// KnowledgeBaseUpdate 对单个字段的修改，应用后得到一条完整的新记录
type KnowledgeBaseUpdate func(*KnowledgeBase)

func SetName(name string) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.Name = name }
}

func SetDescription(description string) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.Description = description }
}

func SetURL(url string) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.URL = url }
}

func SetIconName(name IconName) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.IconName = name }
}

func SetOrder(order int) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.Order = order }
}

func SetTag(tag Tag) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.Tag = tag }
}

func SetIframeStrategy(strategy IframeStrategy) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.IframeStrategy = strategy }
}

func SetShowOnHome(show bool) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.ShowOnHome = show }
}

func SetCategory(category string) KnowledgeBaseUpdate {
	return func(kb *KnowledgeBase) { kb.Category = category }
}

// Apply 在副本上依次应用修改，原记录不变
func Apply(kb KnowledgeBase, updates ...KnowledgeBaseUpdate) KnowledgeBase {
	for _, update := range updates {
		if update != nil {
			update(&kb)
		}
	}
	return kb
}

// KnowledgeBasePatch 管理端按字段提交的修改，未出现的字段保持不变
type KnowledgeBasePatch struct {
	Name           *string         `json:"name,omitempty"`
	Description    *string         `json:"description,omitempty"`
	URL            *string         `json:"url,omitempty"`
	IconName       *IconName       `json:"iconName,omitempty"`
	Order          *int            `json:"order,omitempty"`
	Tag            *Tag            `json:"tag,omitempty"`
	IframeStrategy *IframeStrategy `json:"iframeStrategy,omitempty"`
	ShowOnHome     *bool           `json:"showOnHome,omitempty"`
	Category       *string         `json:"category,omitempty"`
}

// Updates 把字段修改转换为有序的修改列表
func (p KnowledgeBasePatch) Updates() []KnowledgeBaseUpdate {
	var updates []KnowledgeBaseUpdate
	if p.Name != nil {
		updates = append(updates, SetName(*p.Name))
	}
	if p.Description != nil {
		updates = append(updates, SetDescription(*p.Description))
	}
	if p.URL != nil {
		updates = append(updates, SetURL(*p.URL))
	}
	if p.IconName != nil {
		updates = append(updates, SetIconName(*p.IconName))
	}
	if p.Order != nil {
		updates = append(updates, SetOrder(*p.Order))
	}
	if p.Tag != nil {
		updates = append(updates, SetTag(*p.Tag))
	}
	if p.IframeStrategy != nil {
		updates = append(updates, SetIframeStrategy(*p.IframeStrategy))
	}
	if p.ShowOnHome != nil {
		updates = append(updates, SetShowOnHome(*p.ShowOnHome))
	}
	if p.Category != nil {
		updates = append(updates, SetCategory(*p.Category))
	}
	return updates
}
