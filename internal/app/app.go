package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/riskhub-protocol/riskhub/internal/cache"
	"github.com/riskhub-protocol/riskhub/internal/config"
	"github.com/riskhub-protocol/riskhub/internal/handler"
	"github.com/riskhub-protocol/riskhub/internal/kafka"
	"github.com/riskhub-protocol/riskhub/internal/repository"
	"github.com/riskhub-protocol/riskhub/internal/router"
	"github.com/riskhub-protocol/riskhub/internal/service"
	"github.com/riskhub-protocol/riskhub/pkg/logger"
)

// App 应用
type App struct {
	cfg         *config.Config
	db          *gorm.DB
	redisClient *redis.Client
	producer    kafka.AlertProducer
	httpServer  *http.Server
	engine      *gin.Engine
	health      *handler.HealthHandler
}

// New 创建应用
func New(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *App {
	return &App{
		cfg:         cfg,
		db:          db,
		redisClient: redisClient,
	}
}

// Init 初始化应用
func (a *App) Init() error {
	// 初始化告警生产者
	if a.cfg.Kafka.Enabled {
		producer, err := kafka.NewAlertProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.ClientID, a.cfg.Kafka.AlertTopic)
		if err != nil {
			return fmt.Errorf("failed to create alert producer: %w", err)
		}
		a.producer = producer
		logger.Info("kafka alert producer created",
			zap.Strings("brokers", a.cfg.Kafka.Brokers),
			zap.String("topic", a.cfg.Kafka.AlertTopic))
	} else {
		a.producer = kafka.NopAlertProducer{}
		logger.Info("kafka disabled, alerts will be dropped")
	}

	// 初始化存储层
	base := repository.NewRepository(a.db)
	networkRepo := repository.NewNetworkRepository(a.db)
	reporterRepo := repository.NewReporterRepository(a.db)
	caseRepo := repository.NewCaseRepository(a.db)
	subjectRepo := repository.NewSubjectRepository(a.db)
	checkpointRepo := repository.NewCheckpointRepository(a.db)
	ingestLogRepo := repository.NewIngestLogRepository(a.db)
	versionRepo := repository.NewVersionRepository(a.db)

	// 初始化缓存
	networkCache := cache.NewNetworkCache(a.redisClient,
		time.Duration(a.cfg.Ingestion.NetworkCacheTTLSec)*time.Second)

	// 初始化服务层
	networkSvc := service.NewNetworkService(networkRepo, networkCache)
	credSvc := service.NewCredentialService(
		networkSvc,
		a.cfg.Auth.JWTSecret,
		time.Duration(a.cfg.Auth.TokenTTLHours)*time.Hour,
		a.cfg.Auth.Issuer,
	)
	reconSvc := service.NewReconciliationService(
		reporterRepo, caseRepo, subjectRepo,
		checkpointRepo, ingestLogRepo, versionRepo,
	)
	ingestSvc := service.NewIngestionService(
		base, networkSvc, reconSvc,
		reporterRepo, caseRepo, subjectRepo,
		checkpointRepo, ingestLogRepo, versionRepo,
		a.redisClient, a.producer,
		&service.IngestionServiceConfig{
			MaxBatchEvents: a.cfg.Ingestion.MaxBatchEvents,
			LockTTL:        time.Duration(a.cfg.Ingestion.LockTTLSeconds) * time.Second,
			LockRetry:      time.Duration(a.cfg.Ingestion.LockRetryMillis) * time.Millisecond,
			LockMaxRetries: a.cfg.Ingestion.LockMaxRetries,
		},
	)

	// 初始化处理器
	a.health = handler.NewHealthHandler()
	ingestHandler := handler.NewIngestHandler(ingestSvc)
	networkHandler := handler.NewNetworkHandler(networkSvc, credSvc)

	// 设置路由
	a.engine = router.New(a.cfg.Service.Mode, credSvc, a.health, ingestHandler, networkHandler)

	// 创建 HTTP 服务器
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler:      a.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("app initialized",
		zap.Int("port", a.cfg.Service.HTTPPort),
		zap.String("mode", a.cfg.Service.Mode))

	return nil
}

// Run 运行应用
func (a *App) Run() error {
	a.health.SetReady(true)
	logger.Info("starting HTTP server", zap.String("addr", a.httpServer.Addr))
	return a.httpServer.ListenAndServe()
}

// Shutdown 关闭应用
func (a *App) Shutdown(ctx context.Context) error {
	a.health.SetReady(false)
	logger.Info("shutting down HTTP server")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := a.producer.Close(); err != nil {
		logger.Error("failed to close alert producer", zap.Error(err))
	}
	return nil
}

// Engine 获取 Gin 引擎 (用于测试)
func (a *App) Engine() *gin.Engine {
	return a.engine
}
