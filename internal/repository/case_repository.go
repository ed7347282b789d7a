package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/riskhub-protocol/riskhub/internal/model"
)

var ErrCaseNotFound = errors.New("case not found")

// CaseRepository 案件仓储接口
type CaseRepository interface {
	// Upsert 按身份 (network_id, case_id) 插入或整行覆盖
	Upsert(ctx context.Context, c *model.Case) error
	GetByIdentity(ctx context.Context, networkID, caseID string) (*model.Case, error)
	// Exists 检查案件是否已提交 (悬挂引用校验用)
	Exists(ctx context.Context, networkID, caseID string) (bool, error)
	ListByNetwork(ctx context.Context, networkID string) ([]*model.Case, error)
	ListBeyondPosition(ctx context.Context, networkID string, position int64) ([]*model.Case, error)
	DeleteByIdentity(ctx context.Context, networkID, caseID string) error
}

type caseRepository struct {
	*Repository
}

// NewCaseRepository 创建案件仓储
func NewCaseRepository(db *gorm.DB) CaseRepository {
	return &caseRepository{Repository: NewRepository(db)}
}

func (r *caseRepository) Upsert(ctx context.Context, c *model.Case) error {
	now := time.Now().UnixMilli()
	c.UpdatedAt = now
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}

	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "network_id"}, {Name: "case_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "category", "reporter_address", "status", "url",
			"position", "sequence", "updated_at",
		}),
	}).Create(c).Error
}

func (r *caseRepository) GetByIdentity(ctx context.Context, networkID, caseID string) (*model.Case, error) {
	var c model.Case
	err := r.DB(ctx).
		Where("network_id = ? AND case_id = ?", networkID, caseID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) Exists(ctx context.Context, networkID, caseID string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&model.Case{}).
		Where("network_id = ? AND case_id = ?", networkID, caseID).
		Count(&count).Error
	return count > 0, err
}

func (r *caseRepository) ListByNetwork(ctx context.Context, networkID string) ([]*model.Case, error) {
	var cases []*model.Case
	err := r.DB(ctx).
		Where("network_id = ?", networkID).
		Order("case_id ASC").
		Find(&cases).Error
	return cases, err
}

func (r *caseRepository) ListBeyondPosition(ctx context.Context, networkID string, position int64) ([]*model.Case, error) {
	var cases []*model.Case
	err := r.DB(ctx).
		Where("network_id = ? AND position > ?", networkID, position).
		Find(&cases).Error
	return cases, err
}

func (r *caseRepository) DeleteByIdentity(ctx context.Context, networkID, caseID string) error {
	return r.DB(ctx).
		Where("network_id = ? AND case_id = ?", networkID, caseID).
		Delete(&model.Case{}).Error
}
