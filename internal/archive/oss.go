// 本文件用于 OSS 归档上传
package archive

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	sdk "github.com/aliyun/aliyun-oss-go-sdk/oss"

	"ai4free/internal/logger"
	"ai4free/internal/models"
)

// OSSArchiver 基于阿里云 OSS SDK 的归档器
type OSSArchiver struct {
	bucket   *sdk.Bucket
	config   *models.Config
	prefix   string
	hostName string
}

// NewOSSArchiver 创建并初始化 OSS 客户端
func NewOSSArchiver(cfg *models.Config) (*OSSArchiver, error) {
	logger.Info("初始化OSS归档客户端...")
	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.DisableSSL)
	if err != nil {
		return nil, err
	}
	client, err := sdk.New(endpoint, cfg.AK, cfg.SK)
	if err != nil {
		return nil, fmt.Errorf("创建OSS客户端失败: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("获取OSS Bucket失败: %w", err)
	}
	logger.Info("OSS归档客户端初始化成功")
	return &OSSArchiver{
		bucket:   bucket,
		config:   cfg,
		prefix:   archivePrefix(cfg),
		hostName: normalizeHostName(),
	}, nil
}

// Put 上传导出内容，校验 ETag 后返回下载链接
func (a *OSSArchiver) Put(ctx context.Context, name string, data []byte) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.bucket == nil {
		return "", fmt.Errorf("OSS Bucket未初始化")
	}
	objectKey, err := BuildObjectKey(a.prefix, a.hostName, name)
	if err != nil {
		return "", fmt.Errorf("构建对象Key失败: %w", err)
	}
	logger.Info("开始归档到OSS: %s", objectKey)

	var responseHeader http.Header
	reader := &contextReader{ctx: ctx, reader: bytes.NewReader(data)}
	err = a.bucket.PutObject(
		objectKey,
		reader,
		sdk.ContentLength(int64(len(data))),
		sdk.ContentType(contentType),
		sdk.GetResponseHeader(&responseHeader),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("OSS上传失败: %w", err)
	}

	sum := md5.Sum(data)
	localMD5 := hex.EncodeToString(sum[:])
	remoteETag := normalizeETag(responseHeader.Get("ETag"))
	if !isETagMatch(localMD5, remoteETag) {
		return "", fmt.Errorf("OSS ETag校验失败: local=%s remote=%s", localMD5, remoteETag)
	}

	link := BuildDownloadURL(a.config.Endpoint, a.config.Bucket, objectKey, a.config.ForcePathStyle, a.config.DisableSSL)
	logger.Info("OSS归档完成: %s", link)
	return link, nil
}

func normalizeETag(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.Trim(trimmed, "\"")
	return strings.ToLower(trimmed)
}

func isValidMD5Hex(value string) bool {
	if len(value) != 32 {
		return false
	}
	for _, ch := range value {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		default:
			return false
		}
	}
	return true
}

func isETagMatch(localMD5Hex, remoteETag string) bool {
	local := normalizeETag(localMD5Hex)
	remote := normalizeETag(remoteETag)
	if !isValidMD5Hex(local) || !isValidMD5Hex(remote) {
		return false
	}
	return local == remote
}

// contextReader 让上传过程响应上下文取消
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.reader.Read(p)
}
