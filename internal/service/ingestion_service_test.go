package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/riskhub-protocol/riskhub/internal/kafka"
	"github.com/riskhub-protocol/riskhub/internal/model"
	"github.com/riskhub-protocol/riskhub/internal/repository"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
)

const (
	testEVMAuthority = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testEVMReporter  = "0x1111111111111111111111111111111111111111"
	testReporterUUID = "4a8c27c1-9b5e-4d2f-8a3b-6f1e0d9c8b7a"
	testCaseUUID     = "7f3d9a12-4b6c-4e8f-9a1b-2c3d4e5f6a7b"
)

type testEnv struct {
	db             *gorm.DB
	networks       *NetworkService
	ingest         *IngestionService
	creds          *CredentialService
	reporterRepo   repository.ReporterRepository
	caseRepo       repository.CaseRepository
	subjectRepo    repository.SubjectRepository
	checkpointRepo repository.CheckpointRepository
}

// captureAlertProducer 记录发出的告警
type captureAlertProducer struct {
	reorgs []*kafka.ReorgAlert
	forks  []*kafka.ForkAlert
}

func (p *captureAlertProducer) SendReorgAlert(ctx context.Context, alert *kafka.ReorgAlert) error {
	p.reorgs = append(p.reorgs, alert)
	return nil
}

func (p *captureAlertProducer) SendForkAlert(ctx context.Context, alert *kafka.ForkAlert) error {
	p.forks = append(p.forks, alert)
	return nil
}

func (p *captureAlertProducer) Close() error { return nil }

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithProducer(t, kafka.NopAlertProducer{})
}

func newTestEnvWithProducer(t *testing.T, producer kafka.AlertProducer) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.Network{},
		&model.Reporter{},
		&model.Case{},
		&model.RiskSubject{},
		&model.Checkpoint{},
		&model.IngestRecord{},
		&model.EntityVersion{},
	)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	base := repository.NewRepository(db)
	networkRepo := repository.NewNetworkRepository(db)
	reporterRepo := repository.NewReporterRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	checkpointRepo := repository.NewCheckpointRepository(db)
	ingestLogRepo := repository.NewIngestLogRepository(db)
	versionRepo := repository.NewVersionRepository(db)

	networks := NewNetworkService(networkRepo, nil)
	recon := NewReconciliationService(reporterRepo, caseRepo, subjectRepo, checkpointRepo, ingestLogRepo, versionRepo)
	ingest := NewIngestionService(base, networks, recon,
		reporterRepo, caseRepo, subjectRepo, checkpointRepo, ingestLogRepo, versionRepo,
		redisClient, producer,
		&IngestionServiceConfig{MaxBatchEvents: 100})
	creds := NewCredentialService(networks, "test-secret", time.Hour, "riskhub-test")

	return &testEnv{
		db:             db,
		networks:       networks,
		ingest:         ingest,
		creds:          creds,
		reporterRepo:   reporterRepo,
		caseRepo:       caseRepo,
		subjectRepo:    subjectRepo,
		checkpointRepo: checkpointRepo,
	}
}

func (e *testEnv) createEVMNetwork(t *testing.T) {
	t.Helper()
	_, err := e.networks.Create(context.Background(), &CreateNetworkRequest{
		ID:        "eth-mainnet",
		Name:      "Ethereum Mainnet",
		Backend:   "evm",
		Authority: testEVMAuthority,
	})
	require.NoError(t, err)
}

func reporterEvent(address string, position, sequence int64, name string) *model.Event {
	return &model.Event{
		Kind:     model.EventKindReporterUpsert,
		Position: position,
		Sequence: sequence,
		Reporter: &model.ReporterPayload{
			Address:    address,
			ReporterID: testReporterUUID,
			Name:       name,
			Role:       model.ReporterRoleValidator,
			Status:     model.ReporterStatusActive,
			Stake:      "1000",
		},
	}
}

func caseEvent(caseID string, position, sequence int64, status model.CaseStatus) *model.Event {
	return &model.Event{
		Kind:     model.EventKindCaseUpsert,
		Position: position,
		Sequence: sequence,
		Case: &model.CasePayload{
			CaseID:          caseID,
			Name:            "phishing campaign",
			Category:        model.CategoryScam,
			ReporterAddress: testEVMReporter,
			Status:          status,
		},
	}
}

func subjectEvent(key, caseID string, position, sequence int64, score int16) *model.Event {
	return &model.Event{
		Kind:     model.EventKindSubjectUpsert,
		Position: position,
		Sequence: sequence,
		Subject: &model.SubjectPayload{
			Kind:            model.SubjectKindAddress,
			Key:             key,
			CaseID:          caseID,
			ReporterAddress: testEVMReporter,
			RiskScore:       score,
			Category:        model.CategoryScam,
		},
	}
}

func TestIngestionService_Submit_ForwardExtension(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	batch := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "0xaaa",
		Events: []*model.Event{
			reporterEvent(testEVMReporter, 10, 0, "validator-one"),
			caseEvent(testCaseUUID, 10, 1, model.CaseStatusOpen),
			subjectEvent("0x2222222222222222222222222222222222222222", testCaseUUID, 12, 0, 8),
		},
	}

	result, err := env.ingest.Submit(ctx, batch)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(12), result.NewPosition)

	reporter, err := env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", testEVMReporter)
	require.NoError(t, err)
	assert.Equal(t, "validator-one", reporter.Name)

	subject, err := env.subjectRepo.GetByIdentity(ctx, "eth-mainnet", model.SubjectKindAddress, "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	assert.Equal(t, int16(8), subject.RiskScore)
	assert.Equal(t, testCaseUUID, subject.CaseID)

	cp, err := env.checkpointRepo.Get(ctx, "eth-mainnet")
	require.NoError(t, err)
	assert.Equal(t, int64(12), cp.Position)
	assert.Equal(t, "0xaaa", cp.ForkHash)
}

func TestIngestionService_Submit_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	batch := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "0xaaa",
		Events: []*model.Event{
			reporterEvent(testEVMReporter, 10, 0, "validator-one"),
		},
	}

	first, err := env.ingest.Submit(ctx, batch)
	require.NoError(t, err)

	// 完整重放同一批次, 状态与首次提交一致
	second, err := env.ingest.Submit(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, first.NewPosition, second.NewPosition)

	var reporterCount int64
	env.db.Model(&model.Reporter{}).Count(&reporterCount)
	assert.Equal(t, int64(1), reporterCount)

	cp, _ := env.checkpointRepo.Get(ctx, "eth-mainnet")
	assert.Equal(t, int64(10), cp.Position)
	assert.Equal(t, "0xaaa", cp.ForkHash)
}

func TestIngestionService_Submit_Atomicity(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	bad := reporterEvent(testEVMReporter, 20, 0, "bad")
	bad.Reporter.Stake = "-5"

	batch := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events: []*model.Event{
			reporterEvent("0x3333333333333333333333333333333333333333", 10, 0, "good"),
			bad,
		},
	}

	_, err := env.ingest.Submit(ctx, batch)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedEvent))

	// 单个事件校验失败时整批不落库, 游标不动
	var reporterCount int64
	env.db.Model(&model.Reporter{}).Count(&reporterCount)
	assert.Equal(t, int64(0), reporterCount)

	cp, _ := env.checkpointRepo.Get(ctx, "eth-mainnet")
	assert.Equal(t, model.GenesisPosition, cp.Position)
}

func TestIngestionService_Submit_UnknownNetwork(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch := &model.Batch{
		NetworkID:        "no-such-network",
		FinalFingerprint: "0xaaa",
		Events:           []*model.Event{reporterEvent(testEVMReporter, 10, 0, "x")},
	}

	_, err := env.ingest.Submit(ctx, batch)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnknownNetwork))
}

func TestIngestionService_Submit_EmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	batch := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
	}

	_, err := env.ingest.Submit(context.Background(), batch)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedEvent))
}

func TestIngestionService_Submit_OutOfOrderEvents(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	batch := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events: []*model.Event{
			reporterEvent(testEVMReporter, 20, 0, "later"),
			reporterEvent("0x3333333333333333333333333333333333333333", 10, 0, "earlier"),
		},
	}

	_, err := env.ingest.Submit(context.Background(), batch)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedEvent))
}

func TestIngestionService_Submit_DanglingReference(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	batch := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events: []*model.Event{
			subjectEvent("0x2222222222222222222222222222222222222222", testCaseUUID, 10, 0, 5),
		},
	}

	_, err := env.ingest.Submit(ctx, batch)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDanglingReference))

	var subjectCount int64
	env.db.Model(&model.RiskSubject{}).Count(&subjectCount)
	assert.Equal(t, int64(0), subjectCount)
}

func TestIngestionService_Submit_CaseReferenceWithinBatch(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	// 案件与引用它的主体在同一批次内
	batch := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events: []*model.Event{
			caseEvent(testCaseUUID, 10, 0, model.CaseStatusOpen),
			subjectEvent("0x2222222222222222222222222222222222222222", testCaseUUID, 10, 1, 5),
		},
	}

	result, err := env.ingest.Submit(context.Background(), batch)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
}

func TestIngestionService_Submit_CaseReferenceCommittedEarlier(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	first := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events:           []*model.Event{caseEvent(testCaseUUID, 10, 0, model.CaseStatusOpen)},
	}
	_, err := env.ingest.Submit(ctx, first)
	require.NoError(t, err)

	second := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    10,
		PredecessorFingerprint: "0xaaa",
		FinalFingerprint:       "0xbbb",
		Events: []*model.Event{
			subjectEvent("0x2222222222222222222222222222222222222222", testCaseUUID, 15, 0, 7),
		},
	}
	result, err := env.ingest.Submit(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(15), result.NewPosition)
}

func TestIngestionService_Submit_GapAheadOfCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	// 前驱位置声明在游标之前从未提交过的未来位置
	batch := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    50,
		PredecessorFingerprint: "0xfff",
		FinalFingerprint:       "0xaaa",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 60, 0, "x")},
	}

	_, err := env.ingest.Submit(ctx, batch)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIrreconcilableFork))
}

func TestIngestionService_Submit_FingerprintMismatchAtBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	first := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events:           []*model.Event{reporterEvent(testEVMReporter, 10, 0, "x")},
	}
	_, err := env.ingest.Submit(ctx, first)
	require.NoError(t, err)

	_, err = env.ingest.Submit(ctx, &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    20,
		PredecessorFingerprint: "0xbbb",
		FinalFingerprint:       "0xccc",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 25, 0, "y")},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIrreconcilableFork))

	// 已提交边界上指纹不一致
	_, err = env.ingest.Submit(ctx, &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    10,
		PredecessorFingerprint: "0xwrong",
		FinalFingerprint:       "0xccc",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 25, 0, "y")},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIrreconcilableFork))
}

func TestIngestionService_Submit_ReorgRollbackAndReapply(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	victim := "0x4444444444444444444444444444444444444444"
	survivor := "0x5555555555555555555555555555555555555555"

	// 旧历史: survivor 在位置 60 写入, victim 在位置 90 首次写入, 游标停在 100
	base := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0x080",
		Events:           []*model.Event{reporterEvent(survivor, 60, 0, "survivor-v1")},
	}
	_, err := env.ingest.Submit(ctx, base)
	require.NoError(t, err)

	oldHistory := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    60,
		PredecessorFingerprint: "0x080",
		FinalFingerprint:       "0x100",
		Events: []*model.Event{
			reporterEvent(victim, 90, 0, "victim-old"),
			reporterEvent(survivor, 95, 0, "survivor-v2"),
			reporterEvent(testEVMReporter, 100, 0, "tip-old"),
		},
	}
	_, err = env.ingest.Submit(ctx, oldHistory)
	require.NoError(t, err)

	// 新历史声明分叉点 80: 回退 81-100 的写入后应用 81-105 的新事件
	newHistory := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    80,
		PredecessorFingerprint: "0x080-alt",
		FinalFingerprint:       "0x105",
		Events: []*model.Event{
			reporterEvent(testEVMReporter, 101, 0, "tip-new"),
			reporterEvent(victim, 105, 0, "victim-new"),
		},
	}
	result, err := env.ingest.Submit(ctx, newHistory)
	require.NoError(t, err)
	assert.Equal(t, int64(105), result.NewPosition)

	// victim 在分叉点前没有历史, 旧值被清除后由新历史重建
	victimRow, err := env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", victim)
	require.NoError(t, err)
	assert.Equal(t, "victim-new", victimRow.Name)
	assert.Equal(t, int64(105), victimRow.Position)

	// survivor 在位置 95 的写入被回退到位置 60 的快照
	survivorRow, err := env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", survivor)
	require.NoError(t, err)
	assert.Equal(t, "survivor-v1", survivorRow.Name)
	assert.Equal(t, int64(60), survivorRow.Position)

	// 位置 100 的旧链尖实体被新历史在 101 覆盖
	tipRow, err := env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", testEVMReporter)
	require.NoError(t, err)
	assert.Equal(t, "tip-new", tipRow.Name)

	cp, _ := env.checkpointRepo.Get(ctx, "eth-mainnet")
	assert.Equal(t, int64(105), cp.Position)
	assert.Equal(t, "0x105", cp.ForkHash)
}

func TestIngestionService_Submit_ReorgDeletesUnrecoverableRows(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	first := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0x010",
		Events: []*model.Event{
			caseEvent(testCaseUUID, 10, 0, model.CaseStatusOpen),
			subjectEvent("0x2222222222222222222222222222222222222222", testCaseUUID, 10, 1, 9),
		},
	}
	_, err := env.ingest.Submit(ctx, first)
	require.NoError(t, err)

	// 回到创世并换一条不含这些实体的历史
	replacement := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "0x008",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 8, 0, "only-survivor")},
	}
	result, err := env.ingest.Submit(ctx, replacement)
	require.NoError(t, err)
	assert.Equal(t, int64(8), result.NewPosition)

	var caseCount, subjectCount int64
	env.db.Model(&model.Case{}).Count(&caseCount)
	env.db.Model(&model.RiskSubject{}).Count(&subjectCount)
	assert.Equal(t, int64(0), caseCount)
	assert.Equal(t, int64(0), subjectCount)

	_, err = env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", testEVMReporter)
	assert.NoError(t, err)
}

func TestIngestionService_Submit_SamePositionOverwrite(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	first := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0x010",
		Events:           []*model.Event{reporterEvent(testEVMReporter, 10, 0, "original")},
	}
	_, err := env.ingest.Submit(ctx, first)
	require.NoError(t, err)

	// 同一位置以不同载荷重放 (分叉到创世), 新值覆盖旧值
	overwrite := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "0x010b",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 10, 0, "replaced")},
	}
	_, err = env.ingest.Submit(ctx, overwrite)
	require.NoError(t, err)

	reporter, err := env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", testEVMReporter)
	require.NoError(t, err)
	assert.Equal(t, "replaced", reporter.Name)

	var count int64
	env.db.Model(&model.Reporter{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

// 规格书端到端场景: NEAR 网络从注册到重组合并的完整链路
func TestIngestionService_EndToEnd_NEAR(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.networks.Create(ctx, &CreateNetworkRequest{
		ID:        "near-1",
		Name:      "NEAR Mainnet",
		Backend:   "near",
		Authority: "authority.near",
	})
	require.NoError(t, err)

	cred, err := env.creds.Issue(ctx, "near-1")
	require.NoError(t, err)
	claims, err := env.creds.Verify(ctx, cred.Token)
	require.NoError(t, err)
	assert.Equal(t, "near-1", claims.NetworkID)

	nearReporter := func(position int64, name string) *model.Event {
		return &model.Event{
			Kind:     model.EventKindReporterUpsert,
			Position: position,
			Sequence: 0,
			Reporter: &model.ReporterPayload{
				Address:    "validator.near",
				ReporterID: testReporterUUID,
				Name:       name,
				Role:       model.ReporterRoleValidator,
				Status:     model.ReporterStatusActive,
				Stake:      "1000",
			},
		}
	}

	batch := &model.Batch{
		NetworkID:              "near-1",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "hash-10",
		Events:                 []*model.Event{nearReporter(10, "validator-x")},
	}

	result, err := env.ingest.Submit(ctx, batch)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(10), result.NewPosition)

	// 原样重放, 位置不变且不产生重复行
	replay, err := env.ingest.Submit(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(10), replay.NewPosition)

	var count int64
	env.db.Model(&model.Reporter{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// 分叉点 5 在游标 10 之后方, 位置 8 的新值沿新历史合并
	fork := &model.Batch{
		NetworkID:              "near-1",
		PredecessorPosition:    5,
		PredecessorFingerprint: "hash-5",
		FinalFingerprint:       "hash-8",
		Events:                 []*model.Event{nearReporter(8, "validator-x-forked")},
	}
	forked, err := env.ingest.Submit(ctx, fork)
	require.NoError(t, err)
	assert.Equal(t, int64(8), forked.NewPosition)

	reporter, err := env.reporterRepo.GetByIdentity(ctx, "near-1", "validator.near")
	require.NoError(t, err)
	assert.Equal(t, "validator-x-forked", reporter.Name)
	assert.Equal(t, int64(8), reporter.Position)

	cp, _ := env.checkpointRepo.Get(ctx, "near-1")
	assert.Equal(t, int64(8), cp.Position)
}

func TestIngestionService_Submit_BatchSizeLimit(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)

	events := make([]*model.Event, 0, 101)
	for i := 0; i < 101; i++ {
		events = append(events, reporterEvent(testEVMReporter, int64(i+1), 0, "x"))
	}
	batch := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events:           events,
	}

	_, err := env.ingest.Submit(context.Background(), batch)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedEvent))
}

func TestIngestionService_Submit_DanglingReferenceAcrossRollback(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	first := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0x010",
		Events:           []*model.Event{caseEvent(testCaseUUID, 10, 0, model.CaseStatusOpen)},
	}
	_, err := env.ingest.Submit(ctx, first)
	require.NoError(t, err)

	// 分叉到创世会回滚掉位置 10 的案件, 引用它的主体必须被拒绝
	fork := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "0x008",
		Events: []*model.Event{
			subjectEvent("0x2222222222222222222222222222222222222222", testCaseUUID, 8, 0, 5),
		},
	}
	_, err = env.ingest.Submit(ctx, fork)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDanglingReference))

	// 整个事务(含回滚)中止: 案件仍在, 主体未落库, 游标不动
	var caseCount, subjectCount int64
	env.db.Model(&model.Case{}).Count(&caseCount)
	env.db.Model(&model.RiskSubject{}).Count(&subjectCount)
	assert.Equal(t, int64(1), caseCount)
	assert.Equal(t, int64(0), subjectCount)

	cp, _ := env.checkpointRepo.Get(ctx, "eth-mainnet")
	assert.Equal(t, int64(10), cp.Position)
	assert.Equal(t, "0x010", cp.ForkHash)
}

func TestIngestionService_Submit_CaseReferenceRestoredByRollback(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	// 案件在位置 5 创建, 位置 15 被更新, 行的最后写入位置落在分叉点之后
	first := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0x005",
		Events:           []*model.Event{caseEvent(testCaseUUID, 5, 0, model.CaseStatusOpen)},
	}
	_, err := env.ingest.Submit(ctx, first)
	require.NoError(t, err)

	second := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    5,
		PredecessorFingerprint: "0x005",
		FinalFingerprint:       "0x015",
		Events:                 []*model.Event{caseEvent(testCaseUUID, 15, 0, model.CaseStatusClosed)},
	}
	_, err = env.ingest.Submit(ctx, second)
	require.NoError(t, err)

	// 分叉点 5 的回滚把案件恢复到位置 5 的快照, 引用它的主体依然有效
	fork := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    5,
		PredecessorFingerprint: "0x005",
		FinalFingerprint:       "0x008",
		Events: []*model.Event{
			subjectEvent("0x2222222222222222222222222222222222222222", testCaseUUID, 8, 0, 5),
		},
	}
	result, err := env.ingest.Submit(ctx, fork)
	require.NoError(t, err)
	assert.Equal(t, int64(8), result.NewPosition)

	restored, err := env.caseRepo.GetByIdentity(ctx, "eth-mainnet", testCaseUUID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusOpen, restored.Status)
	assert.Equal(t, int64(5), restored.Position)

	subject, err := env.subjectRepo.GetByIdentity(ctx, "eth-mainnet", model.SubjectKindAddress, "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	assert.Equal(t, testCaseUUID, subject.CaseID)
}

func TestIngestionService_Submit_ReorgSweepsUntrackedRows(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	first := &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0x010",
		Events:           []*model.Event{reporterEvent(testEVMReporter, 10, 0, "tracked")},
	}
	_, err := env.ingest.Submit(ctx, first)
	require.NoError(t, err)

	// 绕过摄取直接写入的行没有版本快照, 回滚时只能整行清除
	untracked := "0x6666666666666666666666666666666666666666"
	err = env.reporterRepo.Upsert(ctx, &model.Reporter{
		NetworkID:  "eth-mainnet",
		Address:    untracked,
		ReporterID: testReporterUUID,
		Name:       "untracked",
		Role:       model.ReporterRoleTracer,
		Status:     model.ReporterStatusActive,
		Position:   50,
	})
	require.NoError(t, err)

	fork := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "0x008",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 8, 0, "rebuilt")},
	}
	_, err = env.ingest.Submit(ctx, fork)
	require.NoError(t, err)

	_, err = env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", untracked)
	assert.ErrorIs(t, err, repository.ErrReporterNotFound)

	rebuilt, err := env.reporterRepo.GetByIdentity(ctx, "eth-mainnet", testEVMReporter)
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", rebuilt.Name)
}

func TestIngestionService_Submit_ReplayDoesNotAlert(t *testing.T) {
	producer := &captureAlertProducer{}
	env := newTestEnvWithProducer(t, producer)
	env.createEVMNetwork(t)
	ctx := context.Background()

	batch := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    model.GenesisPosition,
		PredecessorFingerprint: "",
		FinalFingerprint:       "0x010",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 10, 0, "validator-one")},
	}
	_, err := env.ingest.Submit(ctx, batch)
	require.NoError(t, err)

	// 原样重放收敛到同一链尖, 不应触发重组告警
	_, err = env.ingest.Submit(ctx, batch)
	require.NoError(t, err)
	assert.Empty(t, producer.reorgs)

	// 真正替换了历史的分叉批次才告警
	fork := &model.Batch{
		NetworkID:              "eth-mainnet",
		PredecessorPosition:    5,
		PredecessorFingerprint: "0x005",
		FinalFingerprint:       "0x008",
		Events:                 []*model.Event{reporterEvent(testEVMReporter, 8, 0, "forked")},
	}
	_, err = env.ingest.Submit(ctx, fork)
	require.NoError(t, err)
	require.Len(t, producer.reorgs, 1)
	assert.Equal(t, int64(5), producer.reorgs[0].ForkPosition)
	assert.Equal(t, int64(10), producer.reorgs[0].OldPosition)
	assert.Equal(t, int64(8), producer.reorgs[0].NewPosition)
}

func TestIngestionService_Submit_NetworksIndependent(t *testing.T) {
	env := newTestEnv(t)
	env.createEVMNetwork(t)
	ctx := context.Background()

	_, err := env.networks.Create(ctx, &CreateNetworkRequest{
		ID:        "sol-mainnet",
		Name:      "Solana",
		Backend:   "solana",
		Authority: "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy",
	})
	require.NoError(t, err)

	_, err = env.ingest.Submit(ctx, &model.Batch{
		NetworkID:        "eth-mainnet",
		FinalFingerprint: "0xaaa",
		Events:           []*model.Event{reporterEvent(testEVMReporter, 10, 0, "evm")},
	})
	require.NoError(t, err)

	solEvent := &model.Event{
		Kind:     model.EventKindReporterUpsert,
		Position: 7,
		Sequence: 0,
		Reporter: &model.ReporterPayload{
			Address:    "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
			ReporterID: testReporterUUID,
			Name:       "sol-validator",
			Role:       model.ReporterRoleTracer,
			Status:     model.ReporterStatusActive,
			Stake:      "500",
		},
	}
	_, err = env.ingest.Submit(ctx, &model.Batch{
		NetworkID:        "sol-mainnet",
		FinalFingerprint: "sol-7",
		Events:           []*model.Event{solEvent},
	})
	require.NoError(t, err)

	evmCp, _ := env.checkpointRepo.Get(ctx, "eth-mainnet")
	solCp, _ := env.checkpointRepo.Get(ctx, "sol-mainnet")
	assert.Equal(t, int64(10), evmCp.Position)
	assert.Equal(t, int64(7), solCp.Position)
}
