package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ai4free/internal/models"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

var (
	mu           sync.RWMutex
	activeLogger *log.Logger
	logLevel     = "info"
	logFile      *os.File
)

// InitLogger 初始化日志系统。
func InitLogger(config *models.Config) error {
	logToStd := config.LogToStd == nil || *config.LogToStd
	writer, file, err := buildLogWriter(config.LogFile, logToStd)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	activeLogger = log.New(writer, "", log.LstdFlags|log.Lshortfile)
	logLevel = normalizeLevel(config.LogLevel)
	return nil
}

func buildLogWriter(path string, logToStd bool) (io.Writer, *os.File, error) {
	if path == "" {
		return os.Stdout, nil, nil
	}

	logDir := filepath.Dir(path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	if !logToStd {
		return file, file, nil
	}
	return io.MultiWriter(os.Stdout, file), file, nil
}

// Close 关闭日志文件句柄。
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	activeLogger = nil
}

// Info 记录信息日志。
func Info(format string, v ...interface{}) {
	logWithLevel("info", format, v...)
}

// Error 记录错误日志。
func Error(format string, v ...interface{}) {
	logWithLevel("error", format, v...)
}

// Warn 记录警告日志。
func Warn(format string, v ...interface{}) {
	logWithLevel("warn", format, v...)
}

// Debug 记录调试日志。
func Debug(format string, v ...interface{}) {
	logWithLevel("debug", format, v...)
}

// SetLogLevel 设置日志级别。
func SetLogLevel(level string) {
	mu.Lock()
	logLevel = normalizeLevel(level)
	mu.Unlock()
}

// Level 返回当前日志级别。
func Level() string {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

func normalizeLevel(level string) string {
	cleaned := strings.ToLower(strings.TrimSpace(level))
	if cleaned == "warning" {
		cleaned = "warn"
	}
	if _, ok := levelRank[cleaned]; !ok {
		return "info"
	}
	return cleaned
}

func logWithLevel(level, format string, v ...interface{}) {
	mu.RLock()
	current := logLevel
	target := activeLogger
	mu.RUnlock()
	if levelRank[level] < levelRank[current] {
		return
	}
	prefix := "[" + strings.ToUpper(level) + "] "
	if target != nil {
		_ = target.Output(3, fmt.Sprintf(prefix+format, v...))
		return
	}
	_ = log.Output(3, fmt.Sprintf(prefix+format, v...))
}
