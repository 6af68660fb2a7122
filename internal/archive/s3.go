// 本文件用于 S3 归档上传
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"ai4free/internal/logger"
	"ai4free/internal/models"
)

// S3Archiver 基于 aws-sdk-go 的归档器，兼容 MinIO 等 S3 协议存储
type S3Archiver struct {
	client   *s3.S3
	config   *models.Config
	prefix   string
	hostName string
}

// NewS3Archiver 创建并初始化 S3 客户端
func NewS3Archiver(cfg *models.Config) (*S3Archiver, error) {
	logger.Info("初始化S3归档客户端...")
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AK, cfg.SK, ""),
		Endpoint:         aws.String(cfg.Endpoint),
		DisableSSL:       aws.Bool(cfg.DisableSSL),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("创建S3会话失败: %w", err)
	}
	logger.Info("S3归档客户端初始化成功")
	return &S3Archiver{
		client:   s3.New(sess),
		config:   cfg,
		prefix:   archivePrefix(cfg),
		hostName: normalizeHostName(),
	}, nil
}

// Put 上传导出内容并返回下载链接
func (a *S3Archiver) Put(ctx context.Context, name string, data []byte) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	objectKey, err := BuildObjectKey(a.prefix, a.hostName, name)
	if err != nil {
		return "", fmt.Errorf("构建对象Key失败: %w", err)
	}
	logger.Info("开始归档到S3: %s", objectKey)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.config.Bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	output, err := a.client.PutObjectWithContext(ctx, input)
	if err != nil {
		return "", fmt.Errorf("S3上传失败: %w", err)
	}
	if output.ETag != nil {
		logger.Info("S3上传成功 - ETag: %s", *output.ETag)
	}

	link := BuildDownloadURL(a.config.Endpoint, a.config.Bucket, objectKey, a.config.ForcePathStyle, a.config.DisableSSL)
	logger.Info("S3归档完成: %s", link)
	return link, nil
}
