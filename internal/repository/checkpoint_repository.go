package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/riskhub-protocol/riskhub/internal/model"
)

// CheckpointRepository 游标仓储接口
type CheckpointRepository interface {
	// Get 读取网络游标, 未初始化时返回创世游标
	Get(ctx context.Context, networkID string) (*model.Checkpoint, error)
	// Advance 推进游标到新位置 (插入或覆盖)
	Advance(ctx context.Context, networkID string, position int64, forkHash string) error
	// Rewind 回退游标到分叉点
	Rewind(ctx context.Context, networkID string, position int64, forkHash string) error
}

type checkpointRepository struct {
	*Repository
}

// NewCheckpointRepository 创建游标仓储
func NewCheckpointRepository(db *gorm.DB) CheckpointRepository {
	return &checkpointRepository{Repository: NewRepository(db)}
}

func (r *checkpointRepository) Get(ctx context.Context, networkID string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := r.DB(ctx).Where("network_id = ?", networkID).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Checkpoint{
			NetworkID: networkID,
			Position:  model.GenesisPosition,
			ForkHash:  "",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *checkpointRepository) Advance(ctx context.Context, networkID string, position int64, forkHash string) error {
	now := time.Now().UnixMilli()
	cp := &model.Checkpoint{
		NetworkID: networkID,
		Position:  position,
		ForkHash:  forkHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "network_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "fork_hash", "updated_at"}),
	}).Create(cp).Error
}

func (r *checkpointRepository) Rewind(ctx context.Context, networkID string, position int64, forkHash string) error {
	return r.Advance(ctx, networkID, position, forkHash)
}
