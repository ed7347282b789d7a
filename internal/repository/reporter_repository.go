package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/riskhub-protocol/riskhub/internal/model"
)

var ErrReporterNotFound = errors.New("reporter not found")

// ReporterRepository 报告者仓储接口
type ReporterRepository interface {
	// Upsert 按身份 (network_id, address) 插入或整行覆盖
	Upsert(ctx context.Context, reporter *model.Reporter) error
	GetByIdentity(ctx context.Context, networkID, address string) (*model.Reporter, error)
	ListByNetwork(ctx context.Context, networkID string) ([]*model.Reporter, error)
	// ListBeyondPosition 列出最后写入位置在 position 之后的行 (对账用)
	ListBeyondPosition(ctx context.Context, networkID string, position int64) ([]*model.Reporter, error)
	DeleteByIdentity(ctx context.Context, networkID, address string) error
}

type reporterRepository struct {
	*Repository
}

// NewReporterRepository 创建报告者仓储
func NewReporterRepository(db *gorm.DB) ReporterRepository {
	return &reporterRepository{Repository: NewRepository(db)}
}

func (r *reporterRepository) Upsert(ctx context.Context, reporter *model.Reporter) error {
	now := time.Now().UnixMilli()
	reporter.UpdatedAt = now
	if reporter.CreatedAt == 0 {
		reporter.CreatedAt = now
	}

	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "network_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reporter_id", "name", "role", "status", "stake", "url",
			"position", "sequence", "updated_at",
		}),
	}).Create(reporter).Error
}

func (r *reporterRepository) GetByIdentity(ctx context.Context, networkID, address string) (*model.Reporter, error) {
	var reporter model.Reporter
	err := r.DB(ctx).
		Where("network_id = ? AND address = ?", networkID, address).
		First(&reporter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReporterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reporter, nil
}

func (r *reporterRepository) ListByNetwork(ctx context.Context, networkID string) ([]*model.Reporter, error) {
	var reporters []*model.Reporter
	err := r.DB(ctx).
		Where("network_id = ?", networkID).
		Order("address ASC").
		Find(&reporters).Error
	return reporters, err
}

func (r *reporterRepository) ListBeyondPosition(ctx context.Context, networkID string, position int64) ([]*model.Reporter, error) {
	var reporters []*model.Reporter
	err := r.DB(ctx).
		Where("network_id = ? AND position > ?", networkID, position).
		Find(&reporters).Error
	return reporters, err
}

func (r *reporterRepository) DeleteByIdentity(ctx context.Context, networkID, address string) error {
	return r.DB(ctx).
		Where("network_id = ? AND address = ?", networkID, address).
		Delete(&model.Reporter{}).Error
}
