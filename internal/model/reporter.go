package model

import (
	"github.com/shopspring/decimal"
)

// ReporterRole 报告者角色
type ReporterRole string

const (
	ReporterRoleValidator ReporterRole = "validator"
	ReporterRoleTracer    ReporterRole = "tracer"
	ReporterRolePublisher ReporterRole = "publisher"
	ReporterRoleAuthority ReporterRole = "authority"
)

// Valid 检查角色是否合法
func (r ReporterRole) Valid() bool {
	switch r {
	case ReporterRoleValidator, ReporterRoleTracer, ReporterRolePublisher, ReporterRoleAuthority:
		return true
	default:
		return false
	}
}

// ReporterStatus 报告者状态
type ReporterStatus string

const (
	ReporterStatusActive   ReporterStatus = "active"
	ReporterStatusInactive ReporterStatus = "inactive"
)

// Valid 检查状态是否合法
func (s ReporterStatus) Valid() bool {
	return s == ReporterStatusActive || s == ReporterStatusInactive
}

// Reporter 风险情报报告者，身份 = (network_id, address)
type Reporter struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	NetworkID  string          `gorm:"column:network_id;type:varchar(64);not null;uniqueIndex:idx_reporters_identity,priority:1" json:"network_id"`
	Address    string          `gorm:"column:address;type:varchar(128);not null;uniqueIndex:idx_reporters_identity,priority:2" json:"address"`
	ReporterID string          `gorm:"column:reporter_id;type:varchar(36);not null" json:"reporter_id"`
	Name       string          `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Role       ReporterRole    `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Status     ReporterStatus  `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Stake      decimal.Decimal `gorm:"column:stake;type:decimal(36,18);not null" json:"stake"`
	URL        string          `gorm:"column:url;type:varchar(256)" json:"url"`
	Position   int64           `gorm:"column:position;type:bigint;not null;index" json:"position"` // 最后写入该行的链上位置
	Sequence   int64           `gorm:"column:sequence;type:bigint;not null" json:"sequence"`
	CreatedAt  int64           `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt  int64           `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Reporter) TableName() string {
	return "reporters"
}

// IsActive 检查报告者是否处于激活状态
func (r *Reporter) IsActive() bool {
	return r.Status == ReporterStatusActive
}
