package model

// GenesisPosition 创世位置，尚未摄取任何批次时的检查点位置
const GenesisPosition int64 = 0

// Checkpoint 每个网络的摄取游标
// 只由摄取事务修改，与实体写入同事务推进或回退
type Checkpoint struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	NetworkID string `gorm:"column:network_id;type:varchar(64);uniqueIndex;not null" json:"network_id"`
	Position  int64  `gorm:"column:position;type:bigint;not null" json:"position"`
	ForkHash  string `gorm:"column:fork_hash;type:varchar(128);not null" json:"fork_hash"`
	CreatedAt int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Checkpoint) TableName() string {
	return "checkpoints"
}

// IngestRecord 已提交批次的位置指纹记录
// 构成该网络可接受的分叉点集合，回滚时清除分叉点之后的记录
type IngestRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	NetworkID   string `gorm:"column:network_id;type:varchar(64);not null;uniqueIndex:idx_ingest_log_position,priority:1" json:"network_id"`
	Position    int64  `gorm:"column:position;type:bigint;not null;uniqueIndex:idx_ingest_log_position,priority:2" json:"position"`
	Fingerprint string `gorm:"column:fingerprint;type:varchar(128);not null" json:"fingerprint"`
	EventCount  int    `gorm:"column:event_count;type:int;not null" json:"event_count"`
	CreatedAt   int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (IngestRecord) TableName() string {
	return "ingest_log"
}
