package model

// CaseStatus 案件状态
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusClosed CaseStatus = "closed"
)

// Valid 检查状态是否合法
func (s CaseStatus) Valid() bool {
	return s == CaseStatusOpen || s == CaseStatusClosed
}

// Case 风险案件，身份 = (network_id, case_id)
type Case struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	NetworkID       string     `gorm:"column:network_id;type:varchar(64);not null;uniqueIndex:idx_cases_identity,priority:1" json:"network_id"`
	CaseID          string     `gorm:"column:case_id;type:varchar(36);not null;uniqueIndex:idx_cases_identity,priority:2" json:"case_id"`
	Name            string     `gorm:"column:name;type:varchar(256);not null" json:"name"`
	Category        Category   `gorm:"column:category;type:varchar(32);not null" json:"category"`
	ReporterAddress string     `gorm:"column:reporter_address;type:varchar(128);not null" json:"reporter_address"`
	Status          CaseStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	URL             string     `gorm:"column:url;type:varchar(256)" json:"url"`
	Position        int64      `gorm:"column:position;type:bigint;not null;index" json:"position"` // 最后写入该行的链上位置
	Sequence        int64      `gorm:"column:sequence;type:bigint;not null" json:"sequence"`
	CreatedAt       int64      `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt       int64      `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Case) TableName() string {
	return "cases"
}

// IsOpen 检查案件是否处于打开状态
func (c *Case) IsOpen() bool {
	return c.Status == CaseStatusOpen
}
