package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai4free/internal/models"
)

var overrideEnvNames = []string{
	"STATIC_ROOT", "API_BIND", "PORT", "STORAGE_BACKEND", "STORAGE_FILE", "STORAGE_DSN",
	"REDIS_ADDR", "REDIS_PASSWORD", "ADMIN_PASSWORDS", "OSS_AK", "OSS_SK", "LOG_LEVEL",
}

func clearOverrideEnv(t *testing.T) {
	t.Helper()
	for _, name := range overrideEnvNames {
		t.Setenv(name, "")
	}
}

// 覆盖配置加载流程
func TestLoadConfig(t *testing.T) {
	clearOverrideEnv(t)
	tempConfig := `
api_bind: ":9000"
static_root: "/srv/ai4free/public"
storage_backend: "SQLite"
storage_dsn: "file:/tmp/ai4free.db"
storage_quota_bytes: 1024
knowledge_base_key: "kb_key"
topic_key: "topic_key"
admin_passwords: ["alpha", "beta"]
session_max_age: "2h"
session_check_interval: "30m"
archive_backend: "oss"
bucket: "test-bucket"
ak: "test-ak"
sk: "test-sk"
endpoint: "oss-cn-hangzhou.aliyuncs.com"
log_level: "debug"
log_file: "/var/log/test.log"
log_to_std: false
`
	configPath := writeTempConfig(t, tempConfig)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if config.APIBind != ":9000" {
		t.Errorf("APIBind 期望 :9000, 实际 %s", config.APIBind)
	}
	if config.StaticRoot != "/srv/ai4free/public" {
		t.Errorf("StaticRoot 期望 /srv/ai4free/public, 实际 %s", config.StaticRoot)
	}
	if config.StorageBackend != "sqlite" {
		t.Errorf("StorageBackend 期望 sqlite, 实际 %s", config.StorageBackend)
	}
	if config.StorageQuotaBytes != 1024 {
		t.Errorf("StorageQuotaBytes 期望 1024, 实际 %d", config.StorageQuotaBytes)
	}
	if config.KnowledgeBaseKey != "kb_key" || config.TopicKey != "topic_key" {
		t.Errorf("存储键不符合预期: %s %s", config.KnowledgeBaseKey, config.TopicKey)
	}
	if len(config.AdminPasswords) != 2 || config.AdminPasswords[0] != "alpha" {
		t.Errorf("AdminPasswords 期望 [alpha beta], 实际 %v", config.AdminPasswords)
	}
	if SessionMaxAge(config) != 2*time.Hour {
		t.Errorf("SessionMaxAge 期望 2h, 实际 %s", SessionMaxAge(config))
	}
	if SessionCheckInterval(config) != 30*time.Minute {
		t.Errorf("SessionCheckInterval 期望 30m, 实际 %s", SessionCheckInterval(config))
	}
	if config.ArchiveBackend != "oss" {
		t.Errorf("ArchiveBackend 期望 oss, 实际 %s", config.ArchiveBackend)
	}
	if config.LogToStd == nil || *config.LogToStd != false {
		t.Errorf("LogToStd 期望 false, 实际 %v", config.LogToStd)
	}
	if err := ValidateConfig(config); err != nil {
		t.Fatalf("配置校验失败: %v", err)
	}
}

func TestLoadConfigWithDefaults(t *testing.T) {
	clearOverrideEnv(t)
	configPath := filepath.Join(t.TempDir(), "missing.yaml")

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("配置文件缺失时应使用默认值: %v", err)
	}
	if config.APIBind != ":3001" {
		t.Errorf("APIBind 默认值期望 :3001, 实际 %s", config.APIBind)
	}
	if config.StaticRoot != "dist/public" {
		t.Errorf("StaticRoot 默认值期望 dist/public, 实际 %s", config.StaticRoot)
	}
	if config.StorageBackend != "file" || config.StorageFile != "data/ai4free.json" {
		t.Errorf("存储默认值不符合预期: %s %s", config.StorageBackend, config.StorageFile)
	}
	if config.StorageQuotaBytes != 5242880 {
		t.Errorf("StorageQuotaBytes 默认值期望 5242880, 实际 %d", config.StorageQuotaBytes)
	}
	if config.KnowledgeBaseKey != "ai4free_knowledge_bases" {
		t.Errorf("KnowledgeBaseKey 默认值不符合预期: %s", config.KnowledgeBaseKey)
	}
	if config.TopicKey != "ai4free_llmagent_topics" {
		t.Errorf("TopicKey 默认值不符合预期: %s", config.TopicKey)
	}
	if len(config.AdminPasswords) != 3 {
		t.Errorf("AdminPasswords 默认值期望 3 项, 实际 %v", config.AdminPasswords)
	}
	if SessionMaxAge(config) != 24*time.Hour {
		t.Errorf("SessionMaxAge 默认值期望 24h, 实际 %s", SessionMaxAge(config))
	}
	if SessionCheckInterval(config) != time.Hour {
		t.Errorf("SessionCheckInterval 默认值期望 1h, 实际 %s", SessionCheckInterval(config))
	}
	if config.LogLevel != "info" {
		t.Errorf("LogLevel 默认值期望 info, 实际 %s", config.LogLevel)
	}
	if err := ValidateConfig(config); err != nil {
		t.Fatalf("默认配置应通过校验: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearOverrideEnv(t)
	t.Setenv("STATIC_ROOT", "/opt/public")
	t.Setenv("PORT", "8088")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("ADMIN_PASSWORDS", " one , ,two ")
	t.Setenv("LOG_LEVEL", "warn")

	configPath := writeTempConfig(t, "api_bind: \":9000\"\nstatic_root: \"/srv/public\"\n")
	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.StaticRoot != "/opt/public" {
		t.Errorf("STATIC_ROOT 应覆盖配置文件, 实际 %s", config.StaticRoot)
	}
	if config.APIBind != ":8088" {
		t.Errorf("PORT 应覆盖监听地址, 实际 %s", config.APIBind)
	}
	if config.StorageBackend != "redis" || config.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("redis 覆盖不符合预期: %s %s", config.StorageBackend, config.RedisAddr)
	}
	if len(config.AdminPasswords) != 2 || config.AdminPasswords[1] != "two" {
		t.Errorf("ADMIN_PASSWORDS 解析不符合预期: %v", config.AdminPasswords)
	}
	if config.LogLevel != "warn" {
		t.Errorf("LOG_LEVEL 应覆盖配置文件, 实际 %s", config.LogLevel)
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() *models.Config {
		return &models.Config{
			APIBind:              ":3001",
			StorageBackend:       "file",
			StorageFile:          "data/ai4free.json",
			KnowledgeBaseKey:     "ai4free_knowledge_bases",
			TopicKey:             "ai4free_llmagent_topics",
			AdminPasswords:       []string{"admin"},
			SessionMaxAge:        "24h",
			SessionCheckInterval: "1h",
			LogLevel:             "info",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		if err := ValidateConfig(base()); err != nil {
			t.Fatalf("有效配置验证失败: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*models.Config)
	}{
		{"unknown backend", func(c *models.Config) { c.StorageBackend = "etcd" }},
		{"sqlite without dsn", func(c *models.Config) { c.StorageBackend = "sqlite" }},
		{"mysql without dsn", func(c *models.Config) { c.StorageBackend = "mysql" }},
		{"redis without addr", func(c *models.Config) { c.StorageBackend = "redis" }},
		{"same keys", func(c *models.Config) { c.TopicKey = c.KnowledgeBaseKey }},
		{"blank passwords", func(c *models.Config) { c.AdminPasswords = []string{" ", ""} }},
		{"bad max age", func(c *models.Config) { c.SessionMaxAge = "forever" }},
		{"zero interval", func(c *models.Config) { c.SessionCheckInterval = "0" }},
		{"interval above max age", func(c *models.Config) { c.SessionCheckInterval = "48h" }},
		{"invalid log level", func(c *models.Config) { c.LogLevel = "infos" }},
		{"unknown archive", func(c *models.Config) { c.ArchiveBackend = "gcs" }},
		{"archive without bucket", func(c *models.Config) {
			c.ArchiveBackend = "oss"
			c.AK, c.SK, c.Endpoint = "ak", "sk", "oss-cn-hangzhou.aliyuncs.com"
		}},
		{"s3 without region", func(c *models.Config) {
			c.ArchiveBackend = "s3"
			c.Bucket, c.AK, c.SK, c.Endpoint = "bucket", "ak", "sk", "http://127.0.0.1:9000"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Fatal("无效配置应该验证失败")
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &models.Config{SessionMaxAge: "90", SessionCheckInterval: "bad"}
	if got := SessionMaxAge(cfg); got != 90*time.Second {
		t.Fatalf("纯数字应按秒解析, 实际 %s", got)
	}
	if got := SessionCheckInterval(cfg); got != time.Hour {
		t.Fatalf("解析失败应回退默认值, 实际 %s", got)
	}
	if got := AdminPasswords(&models.Config{}); len(got) != 3 {
		t.Fatalf("空白名单应回退默认口令, 实际 %v", got)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
