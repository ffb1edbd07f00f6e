package handler

import (
	"bytes"
	"io"

	"github.com/creative780/crm-backend/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// UploadHandler 文件上传处理器
type UploadHandler struct {
	fileSvc *service.FileService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(fileSvc *service.FileService) *UploadHandler {
	return &UploadHandler{fileSvc: fileSvc}
}

// UploadedFile 上传结果
type UploadedFile struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Upload 上传单个文件
// POST /api/uploads
func (h *UploadHandler) Upload(c *gin.Context) {
	if !h.fileSvc.Enabled() {
		Error(c, 50000, "object storage not configured")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file field")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "open uploaded file failed")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		InternalError(c, "read uploaded file failed")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.fileSvc.Upload(c.Request.Context(), fileHeader.Filename, contentType, int64(len(data)), bytes.NewReader(data))
	if err != nil {
		InternalError(c, "store uploaded file failed: "+err.Error())
		return
	}

	Success(c, UploadedFile{
		URL:         url,
		Filename:    fileHeader.Filename,
		Size:        int64(len(data)),
		ContentType: contentType,
	})
}
