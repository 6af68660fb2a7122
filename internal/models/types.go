// 本文件用于定义配置与运行指标模型
package models

// Config 配置结构体
type Config struct {
	APIBind        string `yaml:"api_bind"`         // API 服务监听地址
	APICORSOrigins string `yaml:"api_cors_origins"` // 逗号分隔的跨域白名单
	StaticRoot     string `yaml:"static_root"`      // 前端构建产物目录

	StorageBackend    string `yaml:"storage_backend"` // memory|file|sqlite|mysql|redis
	StorageFile       string `yaml:"storage_file"`
	StorageDSN        string `yaml:"storage_dsn"`
	StorageQuotaBytes int64  `yaml:"storage_quota_bytes"`
	StorageWatch      *bool  `yaml:"storage_watch"`
	RedisAddr         string `yaml:"redis_addr"`
	RedisPassword     string `yaml:"redis_password"`
	RedisDB           int    `yaml:"redis_db"`
	RedisPrefix       string `yaml:"redis_prefix"`

	KnowledgeBaseKey string `yaml:"knowledge_base_key"`
	TopicKey         string `yaml:"topic_key"`

	AdminPasswords       []string `yaml:"admin_passwords"`
	SessionMaxAge        string   `yaml:"session_max_age"`
	SessionCheckInterval string   `yaml:"session_check_interval"`
	SessionCookieSecure  bool     `yaml:"session_cookie_secure"`

	ArchiveBackend string `yaml:"archive_backend"` // 为空表示不归档，可选 oss|s3
	ArchivePrefix  string `yaml:"archive_prefix"`
	Bucket         string `yaml:"bucket"`
	AK             string `yaml:"ak"`
	SK             string `yaml:"sk"`
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	DisableSSL     bool   `yaml:"disable_ssl"`

	SwaggerEnabled *bool  `yaml:"swagger_enabled"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	LogToStd       *bool  `yaml:"log_to_std"`
}

// StoreHealth 表示键值存储与编解码层的健康指标
type StoreHealth struct {
	Backend             string `json:"backend"`
	Location            string `json:"location"`
	Keys                int    `json:"keys"`
	ReadTotal           uint64 `json:"readTotal"`
	DecodeFallbackTotal uint64 `json:"decodeFallbackTotal"`
	WriteTotal          uint64 `json:"writeTotal"`
	WriteFailureTotal   uint64 `json:"writeFailureTotal"`
	ExternalReloadTotal uint64 `json:"externalReloadTotal"`
	// 以下两项只有文件后端会填充
	CorruptFallbackTotal     uint64 `json:"corruptFallbackTotal"`
	PersistWriteFailureTotal uint64 `json:"persistWriteFailureTotal"`
}

// ProcessSnapshot 表示当前进程与主机的简要运行状态
type ProcessSnapshot struct {
	PID           int32   `json:"pid"`
	RSSBytes      uint64  `json:"rssBytes"`
	RSS           string  `json:"rss"`
	CPUPercent    float64 `json:"cpuPercent"`
	NumGoroutine  int     `json:"numGoroutine"`
	Hostname      string  `json:"hostname"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
	Uptime        string  `json:"uptime"`
}

// HealthSnapshot 表示健康检查返回的运行指标
type HealthSnapshot struct {
	Status         string          `json:"status"`
	Store          StoreHealth     `json:"store"`
	ActiveSessions int             `json:"activeSessions"`
	ArchiveEnabled bool            `json:"archiveEnabled"`
	Process        ProcessSnapshot `json:"process"`
}
