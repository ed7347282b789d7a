// Package cache 提供基于 Redis 的网络元数据缓存
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riskhub-protocol/riskhub/internal/model"
	"github.com/riskhub-protocol/riskhub/pkg/logger"
)

const networkKeyPrefix = "riskhub:network:"

// NetworkCache 网络元数据缓存, 降低凭证校验与批次提交对注册表的读压力
type NetworkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNetworkCache 创建网络缓存
func NewNetworkCache(client *redis.Client, ttl time.Duration) *NetworkCache {
	return &NetworkCache{client: client, ttl: ttl}
}

// Get 读取缓存的网络, 未命中返回 nil
func (c *NetworkCache) Get(ctx context.Context, networkID string) (*model.Network, error) {
	data, err := c.client.Get(ctx, networkKeyPrefix+networkID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var network model.Network
	if err := json.Unmarshal(data, &network); err != nil {
		// 缓存内容损坏时按未命中处理
		logger.Warn("corrupt network cache entry",
			zap.String("network_id", networkID),
			zap.Error(err))
		return nil, nil
	}
	return &network, nil
}

// Set 写入网络缓存
func (c *NetworkCache) Set(ctx context.Context, network *model.Network) error {
	data, err := json.Marshal(network)
	if err != nil {
		return fmt.Errorf("marshal network: %w", err)
	}
	return c.client.Set(ctx, networkKeyPrefix+network.ID, data, c.ttl).Err()
}

// Invalidate 失效网络缓存, 注册表更新后调用
func (c *NetworkCache) Invalidate(ctx context.Context, networkID string) error {
	return c.client.Del(ctx, networkKeyPrefix+networkID).Err()
}
