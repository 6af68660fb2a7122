// Package archive 把导出的知识库 JSON 归档到对象存储（OSS 或 S3）
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"ai4free/internal/metrics"
	"ai4free/internal/models"
)

const (
	BackendOSS = "oss"
	BackendS3  = "s3"

	DefaultPrefix = "ai4free-exports"
	unknownHost   = "unknown-host"
	contentType   = "application/json"
)

// ErrDisabled 未配置归档后端
var ErrDisabled = errors.New("archive backend is not configured")

// Archiver 上传一份导出文件并返回下载链接
type Archiver interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// New 按配置创建归档器；archive_backend 为空时返回 nil, nil
func New(cfg *models.Config, collector *metrics.Collector) (Archiver, error) {
	if cfg == nil {
		return nil, nil
	}
	var (
		inner Archiver
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.ArchiveBackend)) {
	case "":
		return nil, nil
	case BackendOSS:
		inner, err = NewOSSArchiver(cfg)
	case BackendS3:
		inner, err = NewS3Archiver(cfg)
	default:
		return nil, fmt.Errorf("不支持的归档后端: %s", cfg.ArchiveBackend)
	}
	if err != nil {
		return nil, err
	}
	return &observed{inner: inner, metrics: collector}, nil
}

// observed 为归档结果打点
type observed struct {
	inner   Archiver
	metrics *metrics.Collector
}

func (o *observed) Put(ctx context.Context, name string, data []byte) (string, error) {
	start := time.Now()
	link, err := o.inner.Put(ctx, name, data)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.metrics.ObserveArchive(outcome, time.Since(start))
	return link, err
}

// BuildObjectKey 生成 <prefix>/<hostname>/<name> 形式的对象 key
func BuildObjectKey(prefix, hostName, name string) (string, error) {
	cleanName := strings.Trim(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "/")
	if cleanName == "" {
		return "", fmt.Errorf("归档文件名不能为空")
	}
	for _, part := range strings.Split(cleanName, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("归档文件名不合法: %s", name)
		}
	}
	host := strings.Trim(strings.TrimSpace(hostName), "/")
	if host == "" {
		host = unknownHost
	}
	return joinURLPath(prefix, host, cleanName), nil
}

// BuildDownloadURL 根据 bucket、endpoint 和对象 key 构造下载 URL
func BuildDownloadURL(endpoint, bucket, objectKey string, forcePathStyle, disableSSL bool) string {
	scheme := "https"
	if disableSSL {
		scheme = "http"
	}
	normalizedScheme, host, basePath := splitEndpoint(endpoint)
	if normalizedScheme != "" {
		scheme = normalizedScheme
	}

	rawKey := strings.TrimPrefix(objectKey, "/")
	escapedKey := escapeObjectKey(rawKey)
	u := &url.URL{Scheme: scheme, Host: host}

	// 路径风格为 host/basePath/bucket/key，虚拟主机风格为 bucket.host/basePath/key
	var rawParts, escapedParts []string
	if forcePathStyle {
		rawParts = []string{basePath, bucket, rawKey}
		escapedParts = []string{basePath, bucket, escapedKey}
	} else {
		if bucket != "" {
			if host != "" {
				u.Host = bucket + "." + host
			} else {
				u.Host = bucket
			}
		}
		rawParts = []string{basePath, rawKey}
		escapedParts = []string{basePath, escapedKey}
	}
	u.Path = "/" + joinURLPath(rawParts...)
	u.RawPath = "/" + joinURLPath(escapedParts...)
	return u.String()
}

// normalizeEndpoint 为不带协议的 endpoint 补全协议
func normalizeEndpoint(endpoint string, disableSSL bool) (string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return "", fmt.Errorf("Endpoint不能为空")
	}
	parsed, err := url.Parse(trimmed)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return trimmed, nil
	}
	parsed, err = url.Parse("//" + trimmed)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("无效的 Endpoint: %s", endpoint)
	}
	scheme := "https"
	if disableSSL {
		scheme = "http"
	}
	return scheme + "://" + parsed.Host + strings.TrimSuffix(parsed.Path, "/"), nil
}

func splitEndpoint(endpoint string) (scheme, host, basePath string) {
	cleaned := strings.TrimSpace(endpoint)
	parsed, err := url.Parse(cleaned)
	if err != nil || parsed.Host == "" {
		// 让不带协议的 endpoint 也能被当成主机名解析
		parsed, err = url.Parse("//" + cleaned)
		if err != nil {
			return "", cleaned, ""
		}
		return "", parsed.Host, strings.TrimSuffix(parsed.Path, "/")
	}
	return parsed.Scheme, parsed.Host, strings.TrimSuffix(parsed.Path, "/")
}

func escapeObjectKey(objectKey string) string {
	parts := strings.Split(objectKey, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func joinURLPath(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, "/")
}

func archivePrefix(cfg *models.Config) string {
	prefix := strings.Trim(strings.TrimSpace(cfg.ArchivePrefix), "/")
	if prefix == "" {
		return DefaultPrefix
	}
	return prefix
}

// normalizeHostName 主机名作为对象 key 的一级目录
func normalizeHostName() string {
	host, err := os.Hostname()
	if err != nil {
		return unknownHost
	}
	host = strings.TrimSpace(host)
	host = strings.ReplaceAll(host, "/", "-")
	host = strings.ReplaceAll(host, "\\", "-")
	if host == "" {
		return unknownHost
	}
	return host
}
