package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/riskhub-protocol/riskhub/internal/model"
	"github.com/riskhub-protocol/riskhub/internal/repository"
	"github.com/riskhub-protocol/riskhub/pkg/logger"
)

// subjectVersionKey 风险主体在版本历史中的实体键
// SplitN 反解时 kind 部分不含分隔符, key 部分原样保留
func subjectVersionKey(kind model.SubjectKind, key string) string {
	return string(kind) + "|" + key
}

func splitSubjectVersionKey(entityKey string) (model.SubjectKind, string, error) {
	parts := strings.SplitN(entityKey, "|", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid subject version key %q", entityKey)
	}
	return model.SubjectKind(parts[0]), parts[1], nil
}

// ReconciliationService 链重组对账引擎
// 回滚分叉点之后的实体写入: 有更早快照的恢复到快照值, 没有的删除整行,
// 并同步清除分叉点之后的版本历史与提交日志, 回退游标。
// 整个回滚只在触发它的批次事务内执行, 从不独立提交。
type ReconciliationService struct {
	reporterRepo   repository.ReporterRepository
	caseRepo       repository.CaseRepository
	subjectRepo    repository.SubjectRepository
	checkpointRepo repository.CheckpointRepository
	ingestLogRepo  repository.IngestLogRepository
	versionRepo    repository.VersionRepository
}

// NewReconciliationService 创建对账引擎
func NewReconciliationService(
	reporterRepo repository.ReporterRepository,
	caseRepo repository.CaseRepository,
	subjectRepo repository.SubjectRepository,
	checkpointRepo repository.CheckpointRepository,
	ingestLogRepo repository.IngestLogRepository,
	versionRepo repository.VersionRepository,
) *ReconciliationService {
	return &ReconciliationService{
		reporterRepo:   reporterRepo,
		caseRepo:       caseRepo,
		subjectRepo:    subjectRepo,
		checkpointRepo: checkpointRepo,
		ingestLogRepo:  ingestLogRepo,
		versionRepo:    versionRepo,
	}
}

// ValidFork 判断声明的分叉点是否为有效的共同祖先
// 创世位置恒为有效; 落在已提交批次边界上的位置必须指纹一致;
// 两个批次边界之间的位置没有本地指纹可核对, 接受客户端的声明
func (s *ReconciliationService) ValidFork(ctx context.Context, networkID string, position int64, fingerprint string) (bool, error) {
	if position == model.GenesisPosition {
		return fingerprint == "", nil
	}
	recorded, err := s.ingestLogRepo.FingerprintAt(ctx, networkID, position)
	if errors.Is(err, repository.ErrIngestRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return recorded == fingerprint, nil
}

// Rollback 将网络状态回退到分叉点, 必须在调用方事务内执行
func (s *ReconciliationService) Rollback(ctx context.Context, networkID string, forkPosition int64, forkFingerprint string) error {
	if err := s.rollbackReporters(ctx, networkID, forkPosition); err != nil {
		return fmt.Errorf("rollback reporters: %w", err)
	}
	if err := s.rollbackSubjects(ctx, networkID, forkPosition); err != nil {
		return fmt.Errorf("rollback subjects: %w", err)
	}
	if err := s.rollbackCases(ctx, networkID, forkPosition); err != nil {
		return fmt.Errorf("rollback cases: %w", err)
	}

	if err := s.versionRepo.PruneBeyond(ctx, networkID, forkPosition); err != nil {
		return fmt.Errorf("prune versions: %w", err)
	}
	if err := s.ingestLogRepo.PruneBeyond(ctx, networkID, forkPosition); err != nil {
		return fmt.Errorf("prune ingest log: %w", err)
	}
	if err := s.checkpointRepo.Rewind(ctx, networkID, forkPosition, forkFingerprint); err != nil {
		return fmt.Errorf("rewind checkpoint: %w", err)
	}

	logger.Info("state rolled back to fork point",
		zap.String("network_id", networkID),
		zap.Int64("fork_position", forkPosition))

	return nil
}

func (s *ReconciliationService) rollbackReporters(ctx context.Context, networkID string, forkPosition int64) error {
	keys, err := s.versionRepo.ListKeysBeyond(ctx, networkID, model.EntityKindReporter, forkPosition)
	if err != nil {
		return err
	}
	for _, address := range keys {
		snapshot, err := s.versionRepo.LatestAtOrBefore(ctx, networkID, model.EntityKindReporter, address, forkPosition)
		if err != nil {
			return err
		}
		if snapshot == nil {
			// 分叉点之前从未存在, 删除整行
			if err := s.reporterRepo.DeleteByIdentity(ctx, networkID, address); err != nil {
				return err
			}
			continue
		}
		var reporter model.Reporter
		if err := json.Unmarshal([]byte(snapshot.Payload), &reporter); err != nil {
			return fmt.Errorf("decode reporter snapshot %s: %w", address, err)
		}
		reporter.ID = 0
		if err := s.reporterRepo.Upsert(ctx, &reporter); err != nil {
			return err
		}
	}

	// 版本历史缺失的残留行没有可恢复的先前值, 直接删除
	leftovers, err := s.reporterRepo.ListBeyondPosition(ctx, networkID, forkPosition)
	if err != nil {
		return err
	}
	for _, row := range leftovers {
		if err := s.reporterRepo.DeleteByIdentity(ctx, networkID, row.Address); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReconciliationService) rollbackCases(ctx context.Context, networkID string, forkPosition int64) error {
	keys, err := s.versionRepo.ListKeysBeyond(ctx, networkID, model.EntityKindCase, forkPosition)
	if err != nil {
		return err
	}
	for _, caseID := range keys {
		snapshot, err := s.versionRepo.LatestAtOrBefore(ctx, networkID, model.EntityKindCase, caseID, forkPosition)
		if err != nil {
			return err
		}
		if snapshot == nil {
			if err := s.caseRepo.DeleteByIdentity(ctx, networkID, caseID); err != nil {
				return err
			}
			continue
		}
		var c model.Case
		if err := json.Unmarshal([]byte(snapshot.Payload), &c); err != nil {
			return fmt.Errorf("decode case snapshot %s: %w", caseID, err)
		}
		c.ID = 0
		if err := s.caseRepo.Upsert(ctx, &c); err != nil {
			return err
		}
	}

	leftovers, err := s.caseRepo.ListBeyondPosition(ctx, networkID, forkPosition)
	if err != nil {
		return err
	}
	for _, row := range leftovers {
		if err := s.caseRepo.DeleteByIdentity(ctx, networkID, row.CaseID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReconciliationService) rollbackSubjects(ctx context.Context, networkID string, forkPosition int64) error {
	keys, err := s.versionRepo.ListKeysBeyond(ctx, networkID, model.EntityKindSubject, forkPosition)
	if err != nil {
		return err
	}
	for _, entityKey := range keys {
		kind, key, err := splitSubjectVersionKey(entityKey)
		if err != nil {
			return err
		}
		snapshot, err := s.versionRepo.LatestAtOrBefore(ctx, networkID, model.EntityKindSubject, entityKey, forkPosition)
		if err != nil {
			return err
		}
		if snapshot == nil {
			if err := s.subjectRepo.DeleteByIdentity(ctx, networkID, kind, key); err != nil {
				return err
			}
			continue
		}
		var subject model.RiskSubject
		if err := json.Unmarshal([]byte(snapshot.Payload), &subject); err != nil {
			return fmt.Errorf("decode subject snapshot %s: %w", entityKey, err)
		}
		subject.ID = 0
		if err := s.subjectRepo.Upsert(ctx, &subject); err != nil {
			return err
		}
	}

	leftovers, err := s.subjectRepo.ListBeyondPosition(ctx, networkID, forkPosition)
	if err != nil {
		return err
	}
	for _, row := range leftovers {
		if err := s.subjectRepo.DeleteByIdentity(ctx, networkID, row.SubjectKind, row.SubjectKey); err != nil {
			return err
		}
	}
	return nil
}
