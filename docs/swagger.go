package docs

// @title AI4Free 内容服务 API
// @version 1.0
// @description AI 工具导航站的知识库、专题文章与管理会话接口

// @license.name MIT

// @BasePath /
// @schemes http https
