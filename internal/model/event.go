package model

import (
	"regexp"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
)

// EventKind 规范事件类型
type EventKind string

const (
	EventKindReporterUpsert EventKind = "reporter_upsert"
	EventKindCaseUpsert     EventKind = "case_upsert"
	EventKindSubjectUpsert  EventKind = "subject_upsert"
)

// Valid 检查事件类型是否合法
func (k EventKind) Valid() bool {
	switch k {
	case EventKindReporterUpsert, EventKindCaseUpsert, EventKindSubjectUpsert:
		return true
	default:
		return false
	}
}

// ReporterPayload 报告者事件载荷
type ReporterPayload struct {
	Address    string         `json:"address"`
	ReporterID string         `json:"reporter_id"`
	Name       string         `json:"name"`
	Role       ReporterRole   `json:"role"`
	Status     ReporterStatus `json:"status"`
	Stake      string         `json:"stake"`
	URL        string         `json:"url,omitempty"`
}

// CasePayload 案件事件载荷
type CasePayload struct {
	CaseID          string     `json:"case_id"`
	Name            string     `json:"name"`
	Category        Category   `json:"category"`
	ReporterAddress string     `json:"reporter_address"`
	Status          CaseStatus `json:"status"`
	URL             string     `json:"url,omitempty"`
}

// SubjectPayload 风险主体事件载荷
type SubjectPayload struct {
	Kind            SubjectKind `json:"kind"`
	Key             string      `json:"key"`
	CaseID          string      `json:"case_id,omitempty"`
	ReporterAddress string      `json:"reporter_address"`
	RiskScore       int16       `json:"risk_score"`
	Category        Category    `json:"category"`
}

// Event 后端无关的风险情报状态变更
// Position 为变更生效的链上位置，Sequence 用于同一位置内的确定性排序
type Event struct {
	Kind     EventKind        `json:"kind"`
	Position int64            `json:"position"`
	Sequence int64            `json:"sequence"`
	Reporter *ReporterPayload `json:"reporter,omitempty"`
	Case     *CasePayload     `json:"case,omitempty"`
	Subject  *SubjectPayload  `json:"subject,omitempty"`
}

// Batch 索引器客户端提交的有序事件批次
// 前驱位置/指纹声明了批次所基于的链历史，整批原子应用
type Batch struct {
	NetworkID              string   `json:"network_id"`
	PredecessorPosition    int64    `json:"predecessor_position"`
	PredecessorFingerprint string   `json:"predecessor_fingerprint"`
	FinalFingerprint       string   `json:"final_fingerprint"`
	Events                 []*Event `json:"events"`
}

// FinalPosition 返回批次的最终位置 (事件已按位置排序时为最后一个事件的位置)
func (b *Batch) FinalPosition() int64 {
	if len(b.Events) == 0 {
		return b.PredecessorPosition
	}
	return b.Events[len(b.Events)-1].Position
}

var (
	solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	nearAccountPattern   = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)
)

// ValidAddress 按链后端校验账户地址格式
func ValidAddress(backend Backend, address string) bool {
	if address == "" {
		return false
	}
	switch backend {
	case BackendEVM:
		return ethcommon.IsHexAddress(address)
	case BackendSolana:
		return solanaAddressPattern.MatchString(address)
	case BackendNEAR:
		return len(address) >= 2 && len(address) <= 64 && nearAccountPattern.MatchString(address)
	default:
		return false
	}
}

// Validate 校验单个事件的内容
// 所有校验在任何写入之前完成，校验失败拒绝整个批次
func (e *Event) Validate(backend Backend) error {
	if !e.Kind.Valid() {
		return apperrors.ErrMalformedEvent.WithMessagef("未知事件类型 %q", string(e.Kind))
	}
	if e.Position <= 0 {
		return apperrors.ErrMalformedEvent.WithMessagef("事件位置必须为正数，实际为 %d", e.Position)
	}
	if e.Sequence < 0 {
		return apperrors.ErrMalformedEvent.WithMessagef("事件序号不能为负数，实际为 %d", e.Sequence)
	}

	switch e.Kind {
	case EventKindReporterUpsert:
		return e.validateReporter(backend)
	case EventKindCaseUpsert:
		return e.validateCase(backend)
	case EventKindSubjectUpsert:
		return e.validateSubject(backend)
	}
	return nil
}

func (e *Event) validateReporter(backend Backend) error {
	p := e.Reporter
	if p == nil {
		return apperrors.ErrMalformedEvent.WithMessagef("reporter_upsert 缺少 reporter 载荷")
	}
	if !ValidAddress(backend, p.Address) {
		return apperrors.ErrMalformedEvent.WithMessagef("报告者地址 %q 不符合 %s 格式", p.Address, backend)
	}
	if _, err := uuid.Parse(p.ReporterID); err != nil {
		return apperrors.ErrMalformedEvent.WithMessagef("报告者 ID %q 不是合法 UUID", p.ReporterID)
	}
	if !p.Role.Valid() {
		return apperrors.ErrMalformedEvent.WithMessagef("未知报告者角色 %q", string(p.Role))
	}
	if !p.Status.Valid() {
		return apperrors.ErrMalformedEvent.WithMessagef("未知报告者状态 %q", string(p.Status))
	}
	if stake, err := decimal.NewFromString(p.Stake); err != nil || stake.IsNegative() {
		return apperrors.ErrMalformedEvent.WithMessagef("质押金额 %q 无效", p.Stake)
	}
	return nil
}

func (e *Event) validateCase(backend Backend) error {
	p := e.Case
	if p == nil {
		return apperrors.ErrMalformedEvent.WithMessagef("case_upsert 缺少 case 载荷")
	}
	if _, err := uuid.Parse(p.CaseID); err != nil {
		return apperrors.ErrMalformedEvent.WithMessagef("案件 ID %q 不是合法 UUID", p.CaseID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.ErrMalformedEvent.WithMessagef("案件名称不能为空")
	}
	if !p.Category.Valid() {
		return apperrors.ErrMalformedEvent.WithMessagef("未知风险类别 %q", string(p.Category))
	}
	if !ValidAddress(backend, p.ReporterAddress) {
		return apperrors.ErrMalformedEvent.WithMessagef("案件报告者地址 %q 不符合 %s 格式", p.ReporterAddress, backend)
	}
	if !p.Status.Valid() {
		return apperrors.ErrMalformedEvent.WithMessagef("未知案件状态 %q", string(p.Status))
	}
	return nil
}

func (e *Event) validateSubject(backend Backend) error {
	p := e.Subject
	if p == nil {
		return apperrors.ErrMalformedEvent.WithMessagef("subject_upsert 缺少 subject 载荷")
	}
	if !p.Kind.Valid() {
		return apperrors.ErrMalformedEvent.WithMessagef("未知主体类型 %q", string(p.Kind))
	}
	if p.Kind == SubjectKindAddress {
		if !ValidAddress(backend, p.Key) {
			return apperrors.ErrMalformedEvent.WithMessagef("主体地址 %q 不符合 %s 格式", p.Key, backend)
		}
	} else if strings.TrimSpace(p.Key) == "" {
		return apperrors.ErrMalformedEvent.WithMessagef("资产标识不能为空")
	}
	if p.CaseID != "" {
		if _, err := uuid.Parse(p.CaseID); err != nil {
			return apperrors.ErrMalformedEvent.WithMessagef("关联案件 ID %q 不是合法 UUID", p.CaseID)
		}
	}
	if !ValidAddress(backend, p.ReporterAddress) {
		return apperrors.ErrMalformedEvent.WithMessagef("主体报告者地址 %q 不符合 %s 格式", p.ReporterAddress, backend)
	}
	if p.RiskScore < MinRiskScore || p.RiskScore > MaxRiskScore {
		return apperrors.ErrMalformedEvent.WithMessagef("风险评分 %d 超出 [%d,%d] 范围", p.RiskScore, MinRiskScore, MaxRiskScore)
	}
	if !p.Category.Valid() {
		return apperrors.ErrMalformedEvent.WithMessagef("未知风险类别 %q", string(p.Category))
	}
	return nil
}
