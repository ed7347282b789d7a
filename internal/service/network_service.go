package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/riskhub-protocol/riskhub/internal/cache"
	"github.com/riskhub-protocol/riskhub/internal/model"
	"github.com/riskhub-protocol/riskhub/internal/repository"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
	"github.com/riskhub-protocol/riskhub/pkg/logger"
)

// CreateNetworkRequest 注册网络请求
type CreateNetworkRequest struct {
	ID         string `json:"id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Backend    string `json:"backend" binding:"required"`
	Authority  string `json:"authority" binding:"required"`
	StakeToken string `json:"stake_token"`
	ChainID    *int64 `json:"chain_id"`
}

// UpdateNetworkRequest 更新网络请求, 零值字段不更新
type UpdateNetworkRequest struct {
	Name       string `json:"name"`
	Backend    string `json:"backend"`
	Authority  string `json:"authority"`
	StakeToken string `json:"stake_token"`
	ChainID    *int64 `json:"chain_id"`
}

// NetworkService 网络注册表服务
type NetworkService struct {
	networkRepo  repository.NetworkRepository
	networkCache *cache.NetworkCache
}

// NewNetworkService 创建网络注册表服务
func NewNetworkService(networkRepo repository.NetworkRepository, networkCache *cache.NetworkCache) *NetworkService {
	return &NetworkService{
		networkRepo:  networkRepo,
		networkCache: networkCache,
	}
}

// Create 注册新网络
func (s *NetworkService) Create(ctx context.Context, req *CreateNetworkRequest) (*model.Network, error) {
	backend := model.Backend(req.Backend)
	if !backend.Valid() {
		return nil, apperrors.ErrMalformedEvent.WithMessagef("unsupported backend: %s", req.Backend)
	}
	if !model.ValidAddress(backend, req.Authority) {
		return nil, apperrors.ErrMalformedEvent.WithMessagef("invalid authority address for backend %s", backend)
	}
	if req.StakeToken != "" && !model.ValidAddress(backend, req.StakeToken) {
		return nil, apperrors.ErrMalformedEvent.WithMessagef("invalid stake token address for backend %s", backend)
	}

	network := &model.Network{
		ID:         req.ID,
		Name:       req.Name,
		Backend:    backend,
		Authority:  req.Authority,
		StakeToken: req.StakeToken,
		ChainID:    req.ChainID,
	}

	if err := s.networkRepo.Create(ctx, network); err != nil {
		if errors.Is(err, repository.ErrNetworkDuplicate) {
			return nil, apperrors.ErrDuplicateNetworkID.WithDetail("network_id", req.ID)
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	logger.Info("network registered",
		zap.String("network_id", network.ID),
		zap.String("backend", string(network.Backend)))

	return network, nil
}

// Update 更新网络可变字段, id 与 backend 不可变
func (s *NetworkService) Update(ctx context.Context, id string, req *UpdateNetworkRequest) (*model.Network, error) {
	network, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Backend != "" && model.Backend(req.Backend) != network.Backend {
		return nil, apperrors.ErrImmutableField.WithDetail("field", "backend")
	}

	if req.Name != "" {
		network.Name = req.Name
	}
	if req.Authority != "" {
		if !model.ValidAddress(network.Backend, req.Authority) {
			return nil, apperrors.ErrMalformedEvent.WithMessagef("invalid authority address for backend %s", network.Backend)
		}
		network.Authority = req.Authority
	}
	if req.StakeToken != "" {
		if !model.ValidAddress(network.Backend, req.StakeToken) {
			return nil, apperrors.ErrMalformedEvent.WithMessagef("invalid stake token address for backend %s", network.Backend)
		}
		network.StakeToken = req.StakeToken
	}
	if req.ChainID != nil {
		network.ChainID = req.ChainID
	}

	if err := s.networkRepo.Update(ctx, network); err != nil {
		if errors.Is(err, repository.ErrNetworkNotFound) {
			return nil, apperrors.ErrUnknownNetwork.WithDetail("network_id", id)
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	if s.networkCache != nil {
		if err := s.networkCache.Invalidate(ctx, id); err != nil {
			logger.Warn("failed to invalidate network cache",
				zap.String("network_id", id),
				zap.Error(err))
		}
	}

	return network, nil
}

// Get 查询网络, 优先读缓存
func (s *NetworkService) Get(ctx context.Context, id string) (*model.Network, error) {
	if s.networkCache != nil {
		cached, err := s.networkCache.Get(ctx, id)
		if err != nil {
			logger.Warn("network cache read failed",
				zap.String("network_id", id),
				zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	network, err := s.networkRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNetworkNotFound) {
		return nil, apperrors.ErrUnknownNetwork.WithDetail("network_id", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	if s.networkCache != nil {
		if err := s.networkCache.Set(ctx, network); err != nil {
			logger.Warn("network cache write failed",
				zap.String("network_id", id),
				zap.Error(err))
		}
	}

	return network, nil
}

// List 列出所有网络
func (s *NetworkService) List(ctx context.Context) ([]*model.Network, error) {
	networks, err := s.networkRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return networks, nil
}
