package model

// EntityKind 版本历史中的实体类型
type EntityKind string

const (
	EntityKindReporter EntityKind = "reporter"
	EntityKindCase     EntityKind = "case"
	EntityKindSubject  EntityKind = "subject"
)

// EntityVersion 实体写入历史
// 每个成功应用的事件追加一行，记录应用后的完整实体快照。
// 回滚时用分叉点之前最近的快照恢复实体，找不到则删除实体行。
type EntityVersion struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	NetworkID string     `gorm:"column:network_id;type:varchar(64);not null;index:idx_versions_lookup,priority:1" json:"network_id"`
	Kind      EntityKind `gorm:"column:kind;type:varchar(16);not null;index:idx_versions_lookup,priority:2" json:"kind"`
	EntityKey string     `gorm:"column:entity_key;type:varchar(300);not null;index:idx_versions_lookup,priority:3" json:"entity_key"`
	Position  int64      `gorm:"column:position;type:bigint;not null;index" json:"position"`
	Sequence  int64      `gorm:"column:sequence;type:bigint;not null" json:"sequence"`
	Payload   string     `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	CreatedAt int64      `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (EntityVersion) TableName() string {
	return "entity_versions"
}
