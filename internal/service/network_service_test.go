package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub-protocol/riskhub/internal/cache"
	"github.com/riskhub-protocol/riskhub/internal/model"
	"github.com/riskhub-protocol/riskhub/internal/repository"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
)

func TestNetworkService_Create_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chainID := int64(1)
	network, err := env.networks.Create(ctx, &CreateNetworkRequest{
		ID:         "eth-mainnet",
		Name:       "Ethereum Mainnet",
		Backend:    "evm",
		Authority:  testEVMAuthority,
		StakeToken: "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		ChainID:    &chainID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BackendEVM, network.Backend)
	assert.Equal(t, testEVMAuthority, network.Authority)
}

func TestNetworkService_Create_DuplicateID(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	_, err := env.networks.Create(context.Background(), &CreateNetworkRequest{
		ID:        "eth-mainnet",
		Name:      "Duplicate",
		Backend:   "evm",
		Authority: testEVMAuthority,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDuplicateNetworkID))
}

func TestNetworkService_Create_InvalidBackend(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.networks.Create(context.Background(), &CreateNetworkRequest{
		ID:        "btc-mainnet",
		Name:      "Bitcoin",
		Backend:   "bitcoin",
		Authority: testEVMAuthority,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedEvent))
}

func TestNetworkService_Create_InvalidAuthority(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.networks.Create(context.Background(), &CreateNetworkRequest{
		ID:        "eth-mainnet",
		Name:      "Ethereum",
		Backend:   "evm",
		Authority: "not-a-hex-address",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedEvent))
}

func TestNetworkService_Update_MutableFields(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	updated, err := env.networks.Update(ctx, "eth-mainnet", &UpdateNetworkRequest{
		Name:      "Ethereum",
		Authority: "0x6B175474E89094C44Da98b954EedeAC495271d0F",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ethereum", updated.Name)
	assert.Equal(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", updated.Authority)
}

func TestNetworkService_Update_BackendImmutable(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	_, err := env.networks.Update(context.Background(), "eth-mainnet", &UpdateNetworkRequest{
		Backend: "solana",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrImmutableField))
}

func TestNetworkService_Update_SameBackendAllowed(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	// 重复声明相同的 backend 不算修改
	_, err := env.networks.Update(context.Background(), "eth-mainnet", &UpdateNetworkRequest{
		Backend: "evm",
		Name:    "Ethereum",
	})
	assert.NoError(t, err)
}

func TestNetworkService_Get_Unknown(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.networks.Get(context.Background(), "no-such-network")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnknownNetwork))
}

func TestNetworkService_List(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	networks, err := env.networks.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, networks, 1)
}

func TestNetworkService_CacheRoundTrip(t *testing.T) {
	db := newTestEnv(t).db
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	networkCache := cache.NewNetworkCache(client, time.Minute)
	svc := NewNetworkService(repository.NewNetworkRepository(db), networkCache)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateNetworkRequest{
		ID:        "eth-mainnet",
		Name:      "Ethereum",
		Backend:   "evm",
		Authority: testEVMAuthority,
	})
	require.NoError(t, err)

	// 首次读取回填缓存
	first, err := svc.Get(ctx, "eth-mainnet")
	require.NoError(t, err)

	cached, err := networkCache.Get(ctx, "eth-mainnet")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, first.Name, cached.Name)

	// 更新后缓存失效
	_, err = svc.Update(ctx, "eth-mainnet", &UpdateNetworkRequest{Name: "Ethereum Mainnet"})
	require.NoError(t, err)

	cached, err = networkCache.Get(ctx, "eth-mainnet")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
