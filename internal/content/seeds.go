package content

import "strings"

// 默认数据在首次读取、键不存在或数据损坏时使用。每次调用返回新副本

// DefaultKnowledgeBases 内置知识库目录
func DefaultKnowledgeBases() []KnowledgeBase {
	return []KnowledgeBase{
		{
			ID: "chatgpt", Name: "ChatGPT", Description: "OpenAI 推出的通用对话助手",
			URL: "https://chat.openai.com", IconName: IconMessageSquare, Order: 1,
			Tag: TagHot, IframeStrategy: IframeSnapshot, ShowOnHome: true, Category: "聊天",
		},
		{
			ID: "claude", Name: "Claude", Description: "Anthropic 的 AI 助手，擅长长文写作与分析",
			URL: "https://claude.ai", IconName: IconBrainCircuit, Order: 2,
			Tag: TagRecommend, IframeStrategy: IframeSnapshot, ShowOnHome: true, Category: "聊天",
		},
		{
			ID: "deepseek", Name: "DeepSeek", Description: "免费可用的中文大模型对话",
			URL: "https://chat.deepseek.com", IconName: IconMessageSquare, Order: 3,
			Tag: TagFree, IframeStrategy: IframeEmbed, ShowOnHome: true, Category: "聊天",
		},
		{
			ID: "perplexity", Name: "Perplexity", Description: "带引用来源的 AI 搜索引擎",
			URL: "https://www.perplexity.ai", IconName: IconSearch, Order: 4,
			Tag: TagRecommend, IframeStrategy: IframeEmbed, ShowOnHome: true, Category: "搜索",
		},
		{
			ID: "midjourney", Name: "Midjourney", Description: "高质量 AI 图像生成",
			URL: "https://www.midjourney.com", IconName: IconImage, Order: 5,
			Tag: TagHot, IframeStrategy: IframeSnapshot, ShowOnHome: true, Category: "图片",
		},
		{
			ID: "runway", Name: "Runway", Description: "AI 视频生成与编辑工具",
			URL: "https://runwayml.com", IconName: IconFilm, Order: 6,
			IframeStrategy: IframeSnapshot, ShowOnHome: false, Category: "图片",
		},
		{
			ID: "dify", Name: "Dify", Description: "开源的 LLM 应用与工作流编排平台",
			URL: "https://dify.ai", IconName: IconBrainCircuit, Order: 7,
			Tag: TagFree, IframeStrategy: IframeEmbed, ShowOnHome: true, Category: "工作流",
		},
		{
			ID: "notebooklm", Name: "NotebookLM", Description: "基于个人资料的笔记与问答工具",
			URL: "https://notebooklm.google.com", IconName: IconFileText, Order: 8,
			IframeStrategy: IframeSnapshot, ShowOnHome: false, Category: "工具",
		},
	}
}

// DefaultTopics 内置专题及示例文章
func DefaultTopics() []Topic {
	return []Topic{
		{
			ID: "ai-models", Name: "AI模型集合", Category: "模型工具", Order: 1,
			CardColor: PaletteToken("blue"),
			Articles: []Article{
				{ID: "chatgpt", Title: "ChatGPT 使用指南", Order: 1, ContentType: ContentExternal,
					Content: "https://chat.openai.com", Description: "OpenAI 的 ChatGPT 官方网站"},
				{ID: "claude", Title: "Claude AI 助手", Order: 2, ContentType: ContentExternal,
					Content: "https://claude.ai", Description: "Anthropic 的 Claude AI 助手"},
				{ID: "gemini", Title: "Google Gemini", Order: 3, ContentType: ContentIframe,
					Content: "https://gemini.google.com", Description: "Google 的 Gemini AI 模型"},
			},
		},
		{
			ID: "prompt-engineering", Name: "提示词工程", Category: "技术教程", Order: 2,
			CardColor: PaletteToken("green"),
			Articles: []Article{
				{ID: "prompt-basics", Title: "提示词基础教程", Order: 1, ContentType: ContentRichText,
					Content: promptBasicsGuide, Description: "学习如何编写有效的AI提示词"},
				{ID: "advanced-prompts", Title: "高级提示词技巧", Order: 2, ContentType: ContentExternal,
					Content: "https://www.promptingguide.ai", Description: "深入学习高级提示词技巧"},
			},
		},
		{
			ID: "ai-tools", Name: "AI工具箱", Category: "实用工具", Order: 3,
			CardColor: PaletteToken("purple"),
			Articles: []Article{
				{ID: "midjourney", Title: "Midjourney 图像生成", Order: 1, ContentType: ContentExternal,
					Content: "https://www.midjourney.com", Description: "强大的AI图像生成工具"},
				{ID: "stable-diffusion", Title: "Stable Diffusion 本地部署", Order: 2, ContentType: ContentRichText,
					Content: stableDiffusionGuide, Description: "本地部署 Stable Diffusion 的完整指南"},
			},
		},
	}
}

// 文稿中的 § 代表反引号
func markdown(s string) string {
	return strings.ReplaceAll(s, "§", "`")
}

var promptBasicsGuide = markdown(`# 提示词工程基础

## 什么是提示词工程？

提示词工程是一门设计和优化输入提示的艺术和科学，以获得AI模型更好的输出结果。

## 基本原则

1. **明确性**: 提示应该清晰、具体
2. **上下文**: 提供足够的背景信息
3. **结构化**: 使用结构化的格式
4. **迭代优化**: 不断测试和改进

## 常用技巧

### 角色扮演
§§§
你是一位经验丰富的数据科学家，请帮我分析这个数据集...
§§§

### 分步思考
§§§
请一步步分析这个问题：
1. 首先理解问题的核心
2. 然后列出可能的解决方案
3. 最后选择最佳方案并说明理由
§§§

### 示例驱动
§§§
请按照以下格式回答：
输入：问题描述
输出：解决方案
理由：选择该方案的原因
§§§
`)

var stableDiffusionGuide = markdown(`# Stable Diffusion 本地部署指南

## 系统要求

- NVIDIA GPU (推荐 8GB+ VRAM)
- Python 3.8+
- Git

## 安装步骤

### 1. 克隆仓库
§§§bash
git clone https://github.com/AUTOMATIC1111/stable-diffusion-webui.git
cd stable-diffusion-webui
§§§

### 2. 运行安装脚本
§§§bash
./webui.sh
§§§

### 3. 下载模型
将模型文件放置在 §models/Stable-diffusion/§ 目录下

## 使用技巧

1. **正向提示词**: 描述你想要的内容
2. **负向提示词**: 描述你不想要的内容
3. **参数调整**:
   - Steps: 20-50 (采样步数)
   - CFG Scale: 7-12 (提示词相关性)
   - Size: 512x512 或 768x768

## 常用提示词模板

### 人物肖像
§§§
portrait of a beautiful woman, detailed face, realistic, photorealistic, 8k, high quality
Negative: blurry, low quality, distorted
§§§

### 风景画
§§§
beautiful landscape, mountains, lake, sunset, cinematic lighting, highly detailed
Negative: people, buildings, cars
§§§
`)
