// Package router 提供路由注册
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riskhub-protocol/riskhub/internal/handler"
	"github.com/riskhub-protocol/riskhub/internal/middleware"
	"github.com/riskhub-protocol/riskhub/internal/service"
)

// New 创建路由
func New(
	mode string,
	credSvc *service.CredentialService,
	healthHandler *handler.HealthHandler,
	ingestHandler *handler.IngestHandler,
	networkHandler *handler.NetworkHandler,
) *gin.Engine {
	gin.SetMode(mode)
	engine := gin.New()

	// 中间件链: Recovery → Logger → Metrics
	engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(),
	)

	engine.GET("/health", healthHandler.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 索引器接口, 凭证校验
	indexer := engine.Group("/indexer/v1")
	indexer.Use(middleware.Credential(credSvc))
	{
		indexer.POST("/batches", ingestHandler.SubmitBatch)
	}

	// 管理接口, 仅部署在内网
	admin := engine.Group("/admin/v1")
	{
		admin.POST("/networks", networkHandler.Create)
		admin.PUT("/networks/:id", networkHandler.Update)
		admin.GET("/networks", networkHandler.List)
		admin.GET("/networks/:id", networkHandler.Get)
		admin.POST("/networks/:id/credentials", networkHandler.IssueCredential)
	}

	return engine
}
