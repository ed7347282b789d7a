package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/riskhub-protocol/riskhub/internal/metrics"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
	"github.com/riskhub-protocol/riskhub/pkg/logger"
)

// CredentialClaims 摄取凭证 Claims, 每个凭证绑定单个网络
type CredentialClaims struct {
	NetworkID string `json:"network_id"`
	jwt.RegisteredClaims
}

// CredentialResponse 签发凭证响应
type CredentialResponse struct {
	Token     string `json:"token"`
	NetworkID string `json:"network_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// CredentialService 摄取凭证服务
type CredentialService struct {
	networkService *NetworkService
	secret         []byte
	tokenTTL       time.Duration
	issuer         string
}

// NewCredentialService 创建凭证服务
func NewCredentialService(networkService *NetworkService, secret string, tokenTTL time.Duration, issuer string) *CredentialService {
	return &CredentialService{
		networkService: networkService,
		secret:         []byte(secret),
		tokenTTL:       tokenTTL,
		issuer:         issuer,
	}
}

// Issue 为指定网络签发凭证, 网络必须已注册
func (s *CredentialService) Issue(ctx context.Context, networkID string) (*CredentialResponse, error) {
	network, err := s.networkService.Get(ctx, networkID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &CredentialClaims{
		NetworkID: network.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   network.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	metrics.CredentialsIssuedTotal.WithLabelValues(network.ID).Inc()
	logger.Info("credential issued",
		zap.String("network_id", network.ID),
		zap.Int64("expires_at", expiresAt.UnixMilli()))

	return &CredentialResponse{
		Token:     signed,
		NetworkID: network.ID,
		ExpiresAt: expiresAt.UnixMilli(),
	}, nil
}

// Verify 校验凭证并重新核对注册表, 网络被注销后凭证立即失效
func (s *CredentialService) Verify(ctx context.Context, tokenString string) (*CredentialClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CredentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			metrics.CredentialRejectionsTotal.WithLabelValues("expired").Inc()
			return nil, apperrors.ErrCredentialExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			metrics.CredentialRejectionsTotal.WithLabelValues("invalid_signature").Inc()
			return nil, apperrors.ErrInvalidSignature
		default:
			metrics.CredentialRejectionsTotal.WithLabelValues("malformed").Inc()
			return nil, apperrors.Wrap(apperrors.ErrMalformedCredential, err)
		}
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid {
		metrics.CredentialRejectionsTotal.WithLabelValues("malformed").Inc()
		return nil, apperrors.ErrMalformedCredential
	}
	if claims.NetworkID == "" {
		metrics.CredentialRejectionsTotal.WithLabelValues("malformed").Inc()
		return nil, apperrors.ErrMalformedCredential.WithMessagef("credential missing network binding")
	}

	// 重新核对注册表, 凭证指向的网络必须仍然存在
	if _, err := s.networkService.Get(ctx, claims.NetworkID); err != nil {
		if apperrors.Is(err, apperrors.ErrUnknownNetwork) {
			metrics.CredentialRejectionsTotal.WithLabelValues("unknown_network").Inc()
		}
		return nil, err
	}

	return claims, nil
}
