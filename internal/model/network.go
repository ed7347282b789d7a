package model

// Backend 链后端类型
type Backend string

const (
	BackendEVM    Backend = "evm"
	BackendSolana Backend = "solana"
	BackendNEAR   Backend = "near"
)

// Valid 检查后端类型是否合法
func (b Backend) Valid() bool {
	switch b {
	case BackendEVM, BackendSolana, BackendNEAR:
		return true
	default:
		return false
	}
}

// Network 已注册的链网络
// id 和 backend 创建后不可修改，网络创建后不可删除
type Network struct {
	ID         string  `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Name       string  `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Backend    Backend `gorm:"column:backend;type:varchar(16);not null" json:"backend"`
	Authority  string  `gorm:"column:authority;type:varchar(128);not null" json:"authority"`
	StakeToken string  `gorm:"column:stake_token;type:varchar(128);not null" json:"stake_token"`
	ChainID    *int64  `gorm:"column:chain_id;type:bigint" json:"chain_id,omitempty"`
	CreatedAt  int64   `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt  int64   `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Network) TableName() string {
	return "networks"
}
