// 本文件用于程序启动入口
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai4free/internal/api"
	"ai4free/internal/archive"
	"ai4free/internal/config"
	"ai4free/internal/kb"
	"ai4free/internal/kvstore"
	"ai4free/internal/logger"
	"ai4free/internal/metrics"
	"ai4free/internal/models"
	"ai4free/internal/session"
	"ai4free/internal/sysinfo"
	"ai4free/internal/topic"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("程序退出: %v", err)
	}
}

func run() error {
	configPath := parseFlags()
	log.Printf("程序启动，配置文件: %s", configPath)

	cfg, err := loadAndValidateConfig(configPath)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()

	logConfig(cfg)

	collector := metrics.Global()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeOpts := kvstore.OptionsFromConfig(cfg)
	storeOpts.OnReload = func() {
		collector.IncStoreReload()
		logger.Info("存储文件被外部修改，已重新加载")
	}
	store, err := kvstore.Open(ctx, storeOpts)
	if err != nil {
		logger.Error("打开存储失败: %v", err)
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("关闭存储失败: %v", err)
		}
	}()
	info := kvstore.Describe(store)
	logger.Info("存储后端: %s (%s)", info.Backend, info.Location)

	archiver, err := archive.New(cfg, collector)
	if err != nil {
		logger.Error("创建导出归档失败: %v", err)
		return err
	}

	sessions := session.NewManager(session.Options{
		Passwords:     config.AdminPasswords(cfg),
		MaxAge:        config.SessionMaxAge(cfg),
		CheckInterval: config.SessionCheckInterval(cfg),
		Metrics:       collector,
	})
	sessions.Start(ctx)

	apiServer := api.NewServer(api.Deps{
		Config:   cfg,
		Store:    store,
		KB:       kb.NewService(store, kb.Options{Key: cfg.KnowledgeBaseKey, Metrics: collector}),
		Topics:   topic.NewService(store, topic.Options{Key: cfg.TopicKey, Metrics: collector}),
		Sessions: sessions,
		Archiver: archiver,
		Metrics:  collector,
		SysInfo:  sysinfo.NewCollector(0),
	})
	apiServer.Start()

	waitForShutdown(apiServer, sessions)
	return nil
}

func parseFlags() string {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()
	return configPath
}

func loadAndValidateConfig(configPath string) (*models.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logConfig(cfg *models.Config) {
	logger.Info("配置加载成功")
	logger.Info("API 监听地址: %s", cfg.APIBind)
	logger.Info("静态资源目录: %s", config.StaticRoot(cfg))
	logger.Info("存储类型: %s", cfg.StorageBackend)
	if cfg.StorageBackend == "file" {
		logger.Info("存储文件: %s", cfg.StorageFile)
	}
	logger.Info("存储配额: %d 字节", cfg.StorageQuotaBytes)
	logger.Info("知识库存储键: %s", cfg.KnowledgeBaseKey)
	logger.Info("专题存储键: %s", cfg.TopicKey)
	logger.Info("会话有效期: %s", config.SessionMaxAge(cfg))
	logger.Info("会话检查间隔: %s", config.SessionCheckInterval(cfg))
	if cfg.ArchiveBackend == "" {
		logger.Info("导出归档: 未启用")
	} else {
		logger.Info("导出归档: %s bucket=%s endpoint=%s", cfg.ArchiveBackend, cfg.Bucket, cfg.Endpoint)
	}
	logger.Info("日志级别: %s", cfg.LogLevel)
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
}

func waitForShutdown(apiServer *api.Server, sessions *session.Manager) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	<-signalChan
	logger.Info("收到退出信号，正在关闭服务...")

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("关闭 API 服务失败: %v", err)
		}
	}
	sessions.Close()
	logger.Info("程序已退出")
}
