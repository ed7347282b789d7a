package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/riskhub-protocol/riskhub/internal/model"
)

var (
	ErrNetworkNotFound  = errors.New("network not found")
	ErrNetworkDuplicate = errors.New("network id already exists")
)

// NetworkRepository 网络注册表仓储接口
type NetworkRepository interface {
	Create(ctx context.Context, network *model.Network) error
	Update(ctx context.Context, network *model.Network) error
	GetByID(ctx context.Context, id string) (*model.Network, error)
	List(ctx context.Context) ([]*model.Network, error)
}

type networkRepository struct {
	*Repository
}

// NewNetworkRepository 创建网络注册表仓储
func NewNetworkRepository(db *gorm.DB) NetworkRepository {
	return &networkRepository{Repository: NewRepository(db)}
}

func (r *networkRepository) Create(ctx context.Context, network *model.Network) error {
	now := time.Now().UnixMilli()
	network.CreatedAt = now
	network.UpdatedAt = now

	err := r.DB(ctx).Create(network).Error
	if err != nil && isDuplicateKeyError(err) {
		return ErrNetworkDuplicate
	}
	return err
}

func (r *networkRepository) Update(ctx context.Context, network *model.Network) error {
	network.UpdatedAt = time.Now().UnixMilli()

	result := r.DB(ctx).Model(&model.Network{}).
		Where("id = ?", network.ID).
		Updates(map[string]interface{}{
			"name":        network.Name,
			"authority":   network.Authority,
			"stake_token": network.StakeToken,
			"chain_id":    network.ChainID,
			"updated_at":  network.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNetworkNotFound
	}
	return nil
}

func (r *networkRepository) GetByID(ctx context.Context, id string) (*model.Network, error) {
	var network model.Network
	err := r.DB(ctx).Where("id = ?", id).First(&network).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNetworkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &network, nil
}

func (r *networkRepository) List(ctx context.Context) ([]*model.Network, error) {
	var networks []*model.Network
	err := r.DB(ctx).Order("id ASC").Find(&networks).Error
	return networks, err
}

// isDuplicateKeyError 检查是否是唯一约束冲突错误
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "23505")
}
