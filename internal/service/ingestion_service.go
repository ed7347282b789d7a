package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/riskhub-protocol/riskhub/internal/kafka"
	"github.com/riskhub-protocol/riskhub/internal/metrics"
	"github.com/riskhub-protocol/riskhub/internal/model"
	"github.com/riskhub-protocol/riskhub/internal/repository"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
	"github.com/riskhub-protocol/riskhub/pkg/logger"
	"github.com/riskhub-protocol/riskhub/pkg/redislock"
)

const ingestLockPrefix = "riskhub:ingest:lock:"

// SubmitResult 批次提交结果
type SubmitResult struct {
	Accepted    bool  `json:"accepted"`
	NewPosition int64 `json:"new_position"`
}

// IngestionService 摄取协调器
// 同一网络的批次在 validate-through-commit 期间互斥, 不同网络并行提交。
// 所有校验在任何写入之前完成, 实体写入/提交日志/游标推进在单个事务内落库。
type IngestionService struct {
	base           *repository.Repository
	networkService *NetworkService
	recon          *ReconciliationService
	reporterRepo   repository.ReporterRepository
	caseRepo       repository.CaseRepository
	subjectRepo    repository.SubjectRepository
	checkpointRepo repository.CheckpointRepository
	ingestLogRepo  repository.IngestLogRepository
	versionRepo    repository.VersionRepository
	redisClient    redis.UniversalClient
	producer       kafka.AlertProducer
	maxBatchEvents int
	lockOptions    *redislock.Options
}

// IngestionServiceConfig 摄取服务配置
type IngestionServiceConfig struct {
	MaxBatchEvents int
	LockTTL        time.Duration
	LockRetry      time.Duration
	LockMaxRetries int
}

// NewIngestionService 创建摄取协调器
func NewIngestionService(
	base *repository.Repository,
	networkService *NetworkService,
	recon *ReconciliationService,
	reporterRepo repository.ReporterRepository,
	caseRepo repository.CaseRepository,
	subjectRepo repository.SubjectRepository,
	checkpointRepo repository.CheckpointRepository,
	ingestLogRepo repository.IngestLogRepository,
	versionRepo repository.VersionRepository,
	redisClient redis.UniversalClient,
	producer kafka.AlertProducer,
	cfg *IngestionServiceConfig,
) *IngestionService {
	lockOptions := redislock.DefaultOptions()
	if cfg.LockTTL > 0 {
		lockOptions.Expiration = cfg.LockTTL
	}
	if cfg.LockRetry > 0 {
		lockOptions.RetryInterval = cfg.LockRetry
	}
	if cfg.LockMaxRetries != 0 {
		lockOptions.MaxRetries = cfg.LockMaxRetries
	}

	return &IngestionService{
		base:           base,
		networkService: networkService,
		recon:          recon,
		reporterRepo:   reporterRepo,
		caseRepo:       caseRepo,
		subjectRepo:    subjectRepo,
		checkpointRepo: checkpointRepo,
		ingestLogRepo:  ingestLogRepo,
		versionRepo:    versionRepo,
		redisClient:    redisClient,
		producer:       producer,
		maxBatchEvents: cfg.MaxBatchEvents,
		lockOptions:    lockOptions,
	}
}

// Submit 提交一个批次, 整批原子应用
func (s *IngestionService) Submit(ctx context.Context, batch *model.Batch) (*SubmitResult, error) {
	start := time.Now()

	network, err := s.networkService.Get(ctx, batch.NetworkID)
	if err != nil {
		return nil, err
	}

	if err := s.validateBatch(ctx, network, batch); err != nil {
		metrics.BatchesTotal.WithLabelValues(batch.NetworkID, "rejected").Inc()
		return nil, err
	}

	// 同一网络串行化 validate-through-commit
	lock := redislock.New(s.redisClient, ingestLockPrefix+batch.NetworkID, s.lockOptions)
	if err := lock.Acquire(ctx); err != nil {
		metrics.BatchesTotal.WithLabelValues(batch.NetworkID, "failed").Inc()
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release ingest lock",
				zap.String("network_id", batch.NetworkID),
				zap.Error(err))
		}
	}()

	checkpoint, err := s.checkpointRepo.Get(ctx, batch.NetworkID)
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(batch.NetworkID, "failed").Inc()
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	forwardExtension := batch.PredecessorPosition == checkpoint.Position &&
		batch.PredecessorFingerprint == checkpoint.ForkHash

	if !forwardExtension {
		if err := s.checkFork(ctx, batch, checkpoint); err != nil {
			metrics.BatchesTotal.WithLabelValues(batch.NetworkID, "rejected").Inc()
			return nil, err
		}
	}

	finalPosition := batch.FinalPosition()

	err = s.base.Transaction(ctx, func(txCtx context.Context) error {
		if !forwardExtension {
			if err := s.recon.Rollback(txCtx, batch.NetworkID, batch.PredecessorPosition, batch.PredecessorFingerprint); err != nil {
				return err
			}
		}
		// 案件引用必须对回滚后的状态校验, 否则主体可能指向回滚刚删除的案件。
		// 校验失败中止整个事务, 回滚本身也不会落库
		if err := s.checkCaseReferences(txCtx, batch); err != nil {
			return err
		}
		for _, event := range batch.Events {
			if err := s.applyEvent(txCtx, batch.NetworkID, event); err != nil {
				return err
			}
		}
		if err := s.ingestLogRepo.Append(txCtx, &model.IngestRecord{
			NetworkID:   batch.NetworkID,
			Position:    finalPosition,
			Fingerprint: batch.FinalFingerprint,
			EventCount:  len(batch.Events),
		}); err != nil {
			return err
		}
		return s.checkpointRepo.Advance(txCtx, batch.NetworkID, finalPosition, batch.FinalFingerprint)
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			result := "failed"
			if !appErr.Retryable {
				result = "rejected"
			}
			metrics.BatchesTotal.WithLabelValues(batch.NetworkID, result).Inc()
			return nil, err
		}
		metrics.BatchesTotal.WithLabelValues(batch.NetworkID, "failed").Inc()
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	// 重放收敛到原链尖时没有历史被替换, 不算重组, 不触发告警
	if !forwardExtension && (finalPosition != checkpoint.Position || batch.FinalFingerprint != checkpoint.ForkHash) {
		s.reportReorg(ctx, batch, checkpoint, finalPosition)
	}

	metrics.BatchesTotal.WithLabelValues(batch.NetworkID, "committed").Inc()
	metrics.BatchEventCount.WithLabelValues(batch.NetworkID).Observe(float64(len(batch.Events)))
	metrics.BatchDuration.WithLabelValues(batch.NetworkID).Observe(time.Since(start).Seconds())
	for _, event := range batch.Events {
		metrics.EventsTotal.WithLabelValues(batch.NetworkID, string(event.Kind)).Inc()
	}

	logger.Info("batch committed",
		zap.String("network_id", batch.NetworkID),
		zap.Int("events", len(batch.Events)),
		zap.Int64("new_position", finalPosition),
		zap.Bool("reconciled", !forwardExtension))

	return &SubmitResult{Accepted: true, NewPosition: finalPosition}, nil
}

// validateBatch 结构与内容校验, 必须在任何写入之前完成
func (s *IngestionService) validateBatch(ctx context.Context, network *model.Network, batch *model.Batch) error {
	if len(batch.Events) == 0 {
		return apperrors.ErrMalformedEvent.WithMessagef("批次不能为空")
	}
	if s.maxBatchEvents > 0 && len(batch.Events) > s.maxBatchEvents {
		return apperrors.ErrMalformedEvent.WithMessagef("批次事件数 %d 超过上限 %d", len(batch.Events), s.maxBatchEvents)
	}
	if batch.PredecessorPosition < model.GenesisPosition {
		return apperrors.ErrMalformedEvent.WithMessagef("前驱位置不能为负数")
	}
	if batch.FinalFingerprint == "" {
		return apperrors.ErrMalformedEvent.WithMessagef("批次缺少最终指纹")
	}

	prevPosition := batch.PredecessorPosition
	prevSequence := int64(-1)
	for i, event := range batch.Events {
		if err := event.Validate(network.Backend); err != nil {
			return err
		}
		// 事件必须按 (position, sequence) 严格递增, 且全部位于前驱位置之后
		if event.Position < prevPosition ||
			(event.Position == prevPosition && (i == 0 || event.Sequence <= prevSequence)) {
			return apperrors.ErrMalformedEvent.WithMessagef(
				"事件 %d 未按 (position, sequence) 递增排序", i)
		}
		prevPosition = event.Position
		prevSequence = event.Sequence
	}

	return nil
}

// checkCaseReferences 校验主体事件引用的案件在本批次或当前事务可见的状态中存在
// 必须在应用事务内调用, 分叉批次的 Exists 才能读到回滚后的状态
func (s *IngestionService) checkCaseReferences(ctx context.Context, batch *model.Batch) error {
	inBatch := make(map[string]struct{})
	for _, event := range batch.Events {
		if event.Kind == model.EventKindCaseUpsert && event.Case != nil {
			inBatch[event.Case.CaseID] = struct{}{}
		}
	}

	for _, event := range batch.Events {
		if event.Kind != model.EventKindSubjectUpsert || event.Subject == nil || event.Subject.CaseID == "" {
			continue
		}
		caseID := event.Subject.CaseID
		if _, ok := inBatch[caseID]; ok {
			continue
		}
		exists, err := s.caseRepo.Exists(ctx, batch.NetworkID, caseID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
		}
		if !exists {
			return apperrors.ErrDanglingReference.WithDetail("case_id", caseID)
		}
	}
	return nil
}

// checkFork 校验声明的分叉点可以作为共同祖先
func (s *IngestionService) checkFork(ctx context.Context, batch *model.Batch, checkpoint *model.Checkpoint) error {
	reason := ""
	if batch.PredecessorPosition > checkpoint.Position {
		// 前驱位置超前于游标, 中间存在缺口
		reason = fmt.Sprintf("前驱位置 %d 超前于游标 %d, 历史存在缺口",
			batch.PredecessorPosition, checkpoint.Position)
	} else {
		valid, err := s.recon.ValidFork(ctx, batch.NetworkID, batch.PredecessorPosition, batch.PredecessorFingerprint)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
		}
		if !valid {
			reason = fmt.Sprintf("位置 %d 处无匹配指纹的提交记录", batch.PredecessorPosition)
		}
	}
	if reason == "" {
		return nil
	}

	metrics.IrreconcilableForksTotal.WithLabelValues(batch.NetworkID).Inc()
	if err := s.producer.SendForkAlert(ctx, &kafka.ForkAlert{
		NetworkID:          batch.NetworkID,
		ClaimedPosition:    batch.PredecessorPosition,
		ClaimedFingerprint: batch.PredecessorFingerprint,
		CheckpointPosition: checkpoint.Position,
		Reason:             reason,
		DetectedAt:         time.Now().UnixMilli(),
	}); err != nil {
		logger.Warn("failed to send fork alert",
			zap.String("network_id", batch.NetworkID),
			zap.Error(err))
	}

	logger.Warn("irreconcilable fork",
		zap.String("network_id", batch.NetworkID),
		zap.Int64("claimed_position", batch.PredecessorPosition),
		zap.Int64("checkpoint_position", checkpoint.Position),
		zap.String("reason", reason))

	return apperrors.ErrIrreconcilableFork.WithDetail("reason", reason)
}

// applyEvent 应用单个事件并追加版本快照
func (s *IngestionService) applyEvent(ctx context.Context, networkID string, event *model.Event) error {
	switch event.Kind {
	case model.EventKindReporterUpsert:
		return s.applyReporter(ctx, networkID, event)
	case model.EventKindCaseUpsert:
		return s.applyCase(ctx, networkID, event)
	case model.EventKindSubjectUpsert:
		return s.applySubject(ctx, networkID, event)
	default:
		return apperrors.ErrMalformedEvent.WithMessagef("未知事件类型 %q", string(event.Kind))
	}
}

func (s *IngestionService) applyReporter(ctx context.Context, networkID string, event *model.Event) error {
	p := event.Reporter
	stake, err := decimal.NewFromString(p.Stake)
	if err != nil {
		return apperrors.ErrMalformedEvent.WithMessagef("质押金额 %q 无效", p.Stake)
	}

	reporter := &model.Reporter{
		NetworkID:  networkID,
		Address:    p.Address,
		ReporterID: p.ReporterID,
		Name:       p.Name,
		Role:       p.Role,
		Status:     p.Status,
		Stake:      stake,
		URL:        p.URL,
		Position:   event.Position,
		Sequence:   event.Sequence,
	}
	if err := s.reporterRepo.Upsert(ctx, reporter); err != nil {
		return err
	}
	return s.appendVersion(ctx, networkID, model.EntityKindReporter, p.Address, event, reporter)
}

func (s *IngestionService) applyCase(ctx context.Context, networkID string, event *model.Event) error {
	p := event.Case
	c := &model.Case{
		NetworkID:       networkID,
		CaseID:          p.CaseID,
		Name:            p.Name,
		Category:        p.Category,
		ReporterAddress: p.ReporterAddress,
		Status:          p.Status,
		URL:             p.URL,
		Position:        event.Position,
		Sequence:        event.Sequence,
	}
	if err := s.caseRepo.Upsert(ctx, c); err != nil {
		return err
	}
	return s.appendVersion(ctx, networkID, model.EntityKindCase, p.CaseID, event, c)
}

func (s *IngestionService) applySubject(ctx context.Context, networkID string, event *model.Event) error {
	p := event.Subject
	subject := &model.RiskSubject{
		NetworkID:       networkID,
		SubjectKind:     p.Kind,
		SubjectKey:      p.Key,
		CaseID:          p.CaseID,
		ReporterAddress: p.ReporterAddress,
		RiskScore:       p.RiskScore,
		Category:        p.Category,
		Position:        event.Position,
		Sequence:        event.Sequence,
	}
	if err := s.subjectRepo.Upsert(ctx, subject); err != nil {
		return err
	}
	return s.appendVersion(ctx, networkID, model.EntityKindSubject, subjectVersionKey(p.Kind, p.Key), event, subject)
}

func (s *IngestionService) appendVersion(ctx context.Context, networkID string, kind model.EntityKind, entityKey string, event *model.Event, entity interface{}) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", kind, err)
	}
	return s.versionRepo.Append(ctx, &model.EntityVersion{
		NetworkID: networkID,
		Kind:      kind,
		EntityKey: entityKey,
		Position:  event.Position,
		Sequence:  event.Sequence,
		Payload:   string(payload),
	})
}

// reportReorg 提交成功后上报重组指标与告警
func (s *IngestionService) reportReorg(ctx context.Context, batch *model.Batch, checkpoint *model.Checkpoint, finalPosition int64) {
	depth := checkpoint.Position - batch.PredecessorPosition
	metrics.ReorgsTotal.WithLabelValues(batch.NetworkID).Inc()
	metrics.ReorgDepth.WithLabelValues(batch.NetworkID).Observe(float64(depth))

	if err := s.producer.SendReorgAlert(ctx, &kafka.ReorgAlert{
		NetworkID:    batch.NetworkID,
		ForkPosition: batch.PredecessorPosition,
		OldPosition:  checkpoint.Position,
		NewPosition:  finalPosition,
		Depth:        depth,
		DetectedAt:   time.Now().UnixMilli(),
	}); err != nil {
		logger.Warn("failed to send reorg alert",
			zap.String("network_id", batch.NetworkID),
			zap.Error(err))
	}
}
