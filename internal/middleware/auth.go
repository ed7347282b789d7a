package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/riskhub-protocol/riskhub/internal/service"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
)

const (
	// AuthHeader 认证头名称
	AuthHeader = "Authorization"
	// AuthScheme Bearer 认证方案
	AuthScheme = "Bearer"
	// NetworkIDKey context 中凭证绑定网络的键名
	NetworkIDKey = "credential_network_id"
)

// Credential 返回索引器凭证校验中间件
// 校验通过后把凭证绑定的网络写入 context, 处理器再与请求体中的网络比对
func Credential(credSvc *service.CredentialService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeader)
		if authHeader == "" {
			abortWithError(c, apperrors.ErrUnauthorized.WithMessagef("缺少认证头"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], AuthScheme) {
			abortWithError(c, apperrors.ErrMalformedCredential)
			return
		}

		claims, err := credSvc.Verify(c.Request.Context(), parts[1])
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(NetworkIDKey, claims.NetworkID)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	c.AbortWithStatusJSON(apperrors.ToHTTPStatus(appErr), gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})
}
