package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/riskhub-protocol/riskhub/internal/model"
)

// VersionRepository 实体版本仓储接口, 保存每次变更后的实体快照
type VersionRepository interface {
	Append(ctx context.Context, v *model.EntityVersion) error
	// LatestAtOrBefore 查询实体在指定位置 (含) 之前的最新快照, 无则返回 nil
	LatestAtOrBefore(ctx context.Context, networkID string, kind model.EntityKind, entityKey string, position int64) (*model.EntityVersion, error)
	// ListKeysBeyond 列出分叉点之后被修改过的实体键
	ListKeysBeyond(ctx context.Context, networkID string, kind model.EntityKind, position int64) ([]string, error)
	// PruneBeyond 删除分叉点之后的快照
	PruneBeyond(ctx context.Context, networkID string, position int64) error
}

type versionRepository struct {
	*Repository
}

// NewVersionRepository 创建实体版本仓储
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{Repository: NewRepository(db)}
}

func (r *versionRepository) Append(ctx context.Context, v *model.EntityVersion) error {
	v.CreatedAt = time.Now().UnixMilli()
	return r.DB(ctx).Create(v).Error
}

func (r *versionRepository) LatestAtOrBefore(ctx context.Context, networkID string, kind model.EntityKind, entityKey string, position int64) (*model.EntityVersion, error) {
	var v model.EntityVersion
	err := r.DB(ctx).
		Where("network_id = ? AND kind = ? AND entity_key = ? AND position <= ?",
			networkID, kind, entityKey, position).
		Order("position DESC, sequence DESC").
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *versionRepository) ListKeysBeyond(ctx context.Context, networkID string, kind model.EntityKind, position int64) ([]string, error) {
	var keys []string
	err := r.DB(ctx).Model(&model.EntityVersion{}).
		Distinct("entity_key").
		Where("network_id = ? AND kind = ? AND position > ?", networkID, kind, position).
		Pluck("entity_key", &keys).Error
	return keys, err
}

func (r *versionRepository) PruneBeyond(ctx context.Context, networkID string, position int64) error {
	return r.DB(ctx).
		Where("network_id = ? AND position > ?", networkID, position).
		Delete(&model.EntityVersion{}).Error
}
