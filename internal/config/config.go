package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"ai4free/internal/models"
)

const (
	defaultAPIBind              = ":3001"
	defaultStaticRoot           = "dist/public"
	defaultStorageBackend       = "file"
	defaultStorageFile          = "data/ai4free.json"
	defaultStorageQuotaBytes    = 5 * 1024 * 1024
	defaultRedisPrefix          = "ai4free:"
	defaultKnowledgeBaseKey     = "ai4free_knowledge_bases"
	defaultTopicKey             = "ai4free_llmagent_topics"
	defaultSessionMaxAge        = 24 * time.Hour
	defaultSessionCheckInterval = time.Hour
	defaultArchivePrefix        = "ai4free-exports"
)

// DefaultAdminPasswords 默认的管理口令白名单
var DefaultAdminPasswords = []string{"admin", "admin123", "admin2024!"}

// LoadConfig 加载配置文件，文件不存在时仅使用默认值与环境变量
func LoadConfig(configFile string) (*models.Config, error) {
	var config models.Config

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	loadDotEnv(configFile)
	applyEnvOverrides(&config)
	applyDefaults(&config)
	return &config, nil
}

// loadDotEnv 读取配置文件同目录及工作目录下的 .env，已存在的环境变量优先
func loadDotEnv(configFile string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(strings.TrimSpace(configFile)); dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

func applyEnvOverrides(config *models.Config) {
	if v := envValue("STATIC_ROOT"); v != "" {
		config.StaticRoot = v
	}
	if v := envValue("API_BIND"); v != "" {
		config.APIBind = v
	}
	if v := envValue("PORT"); v != "" {
		config.APIBind = ":" + strings.TrimPrefix(v, ":")
	}
	if v := envValue("STORAGE_BACKEND"); v != "" {
		config.StorageBackend = v
	}
	if v := envValue("STORAGE_FILE"); v != "" {
		config.StorageFile = v
	}
	if v := envValue("STORAGE_DSN"); v != "" {
		config.StorageDSN = v
	}
	if v := envValue("REDIS_ADDR"); v != "" {
		config.RedisAddr = v
	}
	if v := envValue("REDIS_PASSWORD"); v != "" {
		config.RedisPassword = v
	}
	if v := envValue("ADMIN_PASSWORDS"); v != "" {
		config.AdminPasswords = splitList(v)
	}
	if v := envValue("OSS_AK"); v != "" {
		config.AK = v
	}
	if v := envValue("OSS_SK"); v != "" {
		config.SK = v
	}
	if v := envValue("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
}

func applyDefaults(config *models.Config) {
	config.StorageBackend = strings.ToLower(strings.TrimSpace(config.StorageBackend))
	config.ArchiveBackend = strings.ToLower(strings.TrimSpace(config.ArchiveBackend))

	if config.APIBind == "" {
		config.APIBind = defaultAPIBind
	}
	if config.StaticRoot == "" {
		config.StaticRoot = defaultStaticRoot
	}
	if config.StorageBackend == "" {
		config.StorageBackend = defaultStorageBackend
	}
	if config.StorageFile == "" {
		config.StorageFile = defaultStorageFile
	}
	if config.StorageQuotaBytes == 0 {
		config.StorageQuotaBytes = defaultStorageQuotaBytes
	}
	if config.RedisPrefix == "" {
		config.RedisPrefix = defaultRedisPrefix
	}
	if config.KnowledgeBaseKey == "" {
		config.KnowledgeBaseKey = defaultKnowledgeBaseKey
	}
	if config.TopicKey == "" {
		config.TopicKey = defaultTopicKey
	}
	if len(config.AdminPasswords) == 0 {
		config.AdminPasswords = append([]string(nil), DefaultAdminPasswords...)
	}
	if config.SessionMaxAge == "" {
		config.SessionMaxAge = defaultSessionMaxAge.String()
	}
	if config.SessionCheckInterval == "" {
		config.SessionCheckInterval = defaultSessionCheckInterval.String()
	}
	if config.ArchivePrefix == "" {
		config.ArchivePrefix = defaultArchivePrefix
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// ValidateConfig 验证配置
func ValidateConfig(config *models.Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}
	if strings.TrimSpace(config.APIBind) == "" {
		return fmt.Errorf("API 监听地址不能为空")
	}
	switch strings.ToLower(strings.TrimSpace(config.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("日志级别无效: %s", config.LogLevel)
	}
	switch config.StorageBackend {
	case "memory":
	case "file":
		if strings.TrimSpace(config.StorageFile) == "" {
			return fmt.Errorf("文件存储路径不能为空")
		}
	case "sqlite", "mysql":
		if strings.TrimSpace(config.StorageDSN) == "" {
			return fmt.Errorf("%s 存储需要配置 storage_dsn", config.StorageBackend)
		}
	case "redis":
		if strings.TrimSpace(config.RedisAddr) == "" {
			return fmt.Errorf("redis 存储需要配置 redis_addr")
		}
	default:
		return fmt.Errorf("不支持的存储类型: %s", config.StorageBackend)
	}
	if config.StorageQuotaBytes < 0 {
		return fmt.Errorf("存储配额不能为负数")
	}
	if strings.TrimSpace(config.KnowledgeBaseKey) == strings.TrimSpace(config.TopicKey) {
		return fmt.Errorf("知识库与专题的存储键不能相同")
	}
	if len(cleanPasswords(config.AdminPasswords)) == 0 {
		return fmt.Errorf("管理口令不能为空")
	}
	maxAge, err := parsePositiveDuration(config.SessionMaxAge)
	if err != nil {
		return fmt.Errorf("session_max_age 无效: %w", err)
	}
	interval, err := parsePositiveDuration(config.SessionCheckInterval)
	if err != nil {
		return fmt.Errorf("session_check_interval 无效: %w", err)
	}
	if interval > maxAge {
		return fmt.Errorf("会话检查间隔不能大于会话有效期")
	}
	switch config.ArchiveBackend {
	case "":
	case "oss", "s3":
		if config.Bucket == "" {
			return fmt.Errorf("归档 Bucket不能为空")
		}
		if config.AK == "" || config.SK == "" {
			return fmt.Errorf("归档认证信息不能为空")
		}
		if config.Endpoint == "" {
			return fmt.Errorf("归档 Endpoint不能为空")
		}
		if config.ArchiveBackend == "s3" && config.Region == "" {
			return fmt.Errorf("S3 Region不能为空")
		}
	default:
		return fmt.Errorf("不支持的归档类型: %s", config.ArchiveBackend)
	}
	return nil
}

// SessionMaxAge 返回会话有效期，解析失败时使用默认值
func SessionMaxAge(config *models.Config) time.Duration {
	if config == nil {
		return defaultSessionMaxAge
	}
	d, err := parsePositiveDuration(config.SessionMaxAge)
	if err != nil {
		return defaultSessionMaxAge
	}
	return d
}

// SessionCheckInterval 返回会话过期检查间隔，解析失败时使用默认值
func SessionCheckInterval(config *models.Config) time.Duration {
	if config == nil {
		return defaultSessionCheckInterval
	}
	d, err := parsePositiveDuration(config.SessionCheckInterval)
	if err != nil {
		return defaultSessionCheckInterval
	}
	return d
}

// AdminPasswords 返回去除空白后的口令白名单
func AdminPasswords(config *models.Config) []string {
	if config == nil {
		return append([]string(nil), DefaultAdminPasswords...)
	}
	cleaned := cleanPasswords(config.AdminPasswords)
	if len(cleaned) == 0 {
		return append([]string(nil), DefaultAdminPasswords...)
	}
	return cleaned
}

// StaticRoot 返回前端构建产物目录
func StaticRoot(config *models.Config) string {
	if config == nil || strings.TrimSpace(config.StaticRoot) == "" {
		return defaultStaticRoot
	}
	return strings.TrimSpace(config.StaticRoot)
}

// CORSOrigins 返回跨域白名单
func CORSOrigins(config *models.Config) []string {
	if config == nil {
		return nil
	}
	return splitList(config.APICORSOrigins)
}

// BoolValue 读取可选布尔配置
func BoolValue(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("不能为空")
	}
	if secs, err := strconv.Atoi(cleaned); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("必须大于 0")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(cleaned)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("必须大于 0")
	}
	return d, nil
}

func cleanPasswords(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	return cleanPasswords(parts)
}

func envValue(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
