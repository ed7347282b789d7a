package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/riskhub-protocol/riskhub/internal/model"
)

var ErrIngestRecordNotFound = errors.New("ingest record not found")

// IngestLogRepository 提交日志仓储接口, 记录每批次的终点位置与指纹
type IngestLogRepository interface {
	Append(ctx context.Context, record *model.IngestRecord) error
	// FingerprintAt 查询指定位置的提交指纹, 用于分叉点校验
	FingerprintAt(ctx context.Context, networkID string, position int64) (string, error)
	// PruneBeyond 删除分叉点之后的提交记录
	PruneBeyond(ctx context.Context, networkID string, position int64) error
	ListByNetwork(ctx context.Context, networkID string) ([]*model.IngestRecord, error)
}

type ingestLogRepository struct {
	*Repository
}

// NewIngestLogRepository 创建提交日志仓储
func NewIngestLogRepository(db *gorm.DB) IngestLogRepository {
	return &ingestLogRepository{Repository: NewRepository(db)}
}

func (r *ingestLogRepository) Append(ctx context.Context, record *model.IngestRecord) error {
	now := time.Now().UnixMilli()
	record.CreatedAt = now
	return r.DB(ctx).Create(record).Error
}

func (r *ingestLogRepository) FingerprintAt(ctx context.Context, networkID string, position int64) (string, error) {
	var record model.IngestRecord
	err := r.DB(ctx).
		Where("network_id = ? AND position = ?", networkID, position).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrIngestRecordNotFound
	}
	if err != nil {
		return "", err
	}
	return record.Fingerprint, nil
}

func (r *ingestLogRepository) PruneBeyond(ctx context.Context, networkID string, position int64) error {
	return r.DB(ctx).
		Where("network_id = ? AND position > ?", networkID, position).
		Delete(&model.IngestRecord{}).Error
}

func (r *ingestLogRepository) ListByNetwork(ctx context.Context, networkID string) ([]*model.IngestRecord, error) {
	var records []*model.IngestRecord
	err := r.DB(ctx).
		Where("network_id = ?", networkID).
		Order("position ASC").
		Find(&records).Error
	return records, err
}
