package service

import (
	"github.com/creative780/crm-backend/internal/config"
	"github.com/creative780/crm-backend/internal/crm/notify"
	"github.com/creative780/crm-backend/internal/crm/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Order    *OrderService
	File     *FileService
	Workflow *WorkflowService
	Approval *ApprovalService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, dispatcher notify.Dispatcher, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端（设计稿载荷存储，缺省时仅保留引用）
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO init failed, design payload upload disabled", zap.Error(err))
			minioClient = nil
		}
	}

	fileSvc := NewFileService(minioClient, cfg.MinIO.Bucket, logger)
	locks := newLineLocker()

	workflowSvc := NewWorkflowService(db, repos.Order, repos.Approval, fileSvc, dispatcher, locks, logger)
	approvalSvc := NewApprovalService(db, repos.Approval, workflowSvc, dispatcher, locks, logger)

	return &Services{
		Order:    NewOrderService(repos.Order, logger),
		File:     fileSvc,
		Workflow: workflowSvc,
		Approval: approvalSvc,
	}
}
