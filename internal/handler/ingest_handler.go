package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/riskhub-protocol/riskhub/internal/middleware"
	"github.com/riskhub-protocol/riskhub/internal/model"
	"github.com/riskhub-protocol/riskhub/internal/service"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
)

// IngestHandler 批次摄取处理器
type IngestHandler struct {
	ingestSvc *service.IngestionService
}

// NewIngestHandler 创建摄取处理器
func NewIngestHandler(ingestSvc *service.IngestionService) *IngestHandler {
	return &IngestHandler{ingestSvc: ingestSvc}
}

// SubmitBatch 提交事件批次
// POST /indexer/v1/batches
func (h *IngestHandler) SubmitBatch(c *gin.Context) {
	var batch model.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		Fail(c, apperrors.Wrap(apperrors.ErrMalformedEvent, err))
		return
	}

	// 凭证绑定的网络必须与批次目标网络一致
	credNetwork := c.GetString(middleware.NetworkIDKey)
	if credNetwork != batch.NetworkID {
		Fail(c, apperrors.ErrUnauthorized.WithDetail("network_id", batch.NetworkID))
		return
	}

	result, err := h.ingestSvc.Submit(c.Request.Context(), &batch)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, result)
}
