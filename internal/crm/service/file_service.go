package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/creative780/crm-backend/internal/crm/entity"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// FileService 设计文件存储服务
// 核心只持有文件引用，载荷交给对象存储
type FileService struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewFileService 创建文件存储服务
func NewFileService(client *minio.Client, bucket string, logger *zap.Logger) *FileService {
	return &FileService{client: client, bucket: bucket, logger: logger}
}

// Enabled 对象存储是否可用
func (s *FileService) Enabled() bool {
	return s.client != nil
}

// NormalizeManifest 清洗文件清单：内联 base64 载荷上传到对象存储并换成 url 引用
// 对象存储未配置时保留调用方给出的引用原样入库
func (s *FileService) NormalizeManifest(ctx context.Context, manifest entity.Manifest) (entity.Manifest, error) {
	normalized := make(entity.Manifest, 0, len(manifest))
	for _, file := range manifest {
		if file.Name == "" {
			return nil, fmt.Errorf("%w: manifest entry missing name", ErrValidation)
		}
		if file.Data == "" && file.URL == "" {
			return nil, fmt.Errorf("%w: manifest entry %q has neither data nor url", ErrValidation, file.Name)
		}

		if file.Data != "" && s.client != nil {
			url, err := s.uploadInline(ctx, file)
			if err != nil {
				return nil, fmt.Errorf("upload design file %q: %w", file.Name, err)
			}
			file.URL = url
		}
		// 载荷不入库
		file.Data = ""
		if file.URL == "" {
			// 无对象存储时退化为占位引用，迁移后由外部存储接管
			file.URL = fmt.Sprintf("/media/%s", file.Name)
		}
		normalized = append(normalized, file)
	}
	return normalized, nil
}

// uploadInline 解码 data URI 并上传
func (s *FileService) uploadInline(ctx context.Context, file entity.FileDescriptor) (string, error) {
	payload := file.Data
	// data:application/pdf;base64,xxxx
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 payload", ErrValidation)
	}

	objectName := fmt.Sprintf("designs/%s_%s", uuid.New().String()[:8], file.Name)
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("design file stored",
		zap.String("object", objectName),
		zap.Int("size", len(raw)),
	)
	return fmt.Sprintf("/%s/%s", s.bucket, objectName), nil
}

// Upload 保存上传文件并返回引用
func (s *FileService) Upload(ctx context.Context, name, contentType string, size int64, reader *bytes.Reader) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	objectName := fmt.Sprintf("uploads/%s_%s", uuid.New().String()[:8], name)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/%s/%s", s.bucket, objectName), nil
}
