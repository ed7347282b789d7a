package model

// Category 风险类别
type Category string

const (
	CategoryNone                 Category = "none"
	CategoryWalletService        Category = "wallet_service"
	CategoryMerchantService      Category = "merchant_service"
	CategoryMiningPool           Category = "mining_pool"
	CategoryExchange             Category = "exchange"
	CategoryDeFi                 Category = "defi"
	CategoryOTCBroker            Category = "otc_broker"
	CategoryATM                  Category = "atm"
	CategoryGambling             Category = "gambling"
	CategoryIllicitOrganization  Category = "illicit_organization"
	CategoryMixer                Category = "mixer"
	CategoryDarknetService       Category = "darknet_service"
	CategoryScam                 Category = "scam"
	CategoryRansomware           Category = "ransomware"
	CategoryTheft                Category = "theft"
	CategoryCounterfeit          Category = "counterfeit"
	CategoryTerroristFinancing   Category = "terrorist_financing"
	CategorySanctions            Category = "sanctions"
	CategoryChildAbuse           Category = "child_abuse"
	CategoryHacker               Category = "hacker"
	CategoryHighRiskJurisdiction Category = "high_risk_jurisdiction"
)

var validCategories = map[Category]struct{}{
	CategoryNone:                 {},
	CategoryWalletService:        {},
	CategoryMerchantService:      {},
	CategoryMiningPool:           {},
	CategoryExchange:             {},
	CategoryDeFi:                 {},
	CategoryOTCBroker:            {},
	CategoryATM:                  {},
	CategoryGambling:             {},
	CategoryIllicitOrganization:  {},
	CategoryMixer:                {},
	CategoryDarknetService:       {},
	CategoryScam:                 {},
	CategoryRansomware:           {},
	CategoryTheft:                {},
	CategoryCounterfeit:          {},
	CategoryTerroristFinancing:   {},
	CategorySanctions:            {},
	CategoryChildAbuse:           {},
	CategoryHacker:               {},
	CategoryHighRiskJurisdiction: {},
}

// Valid 检查类别是否合法
func (c Category) Valid() bool {
	_, ok := validCategories[c]
	return ok
}

// SubjectKind 风险主体类型
type SubjectKind string

const (
	SubjectKindAddress SubjectKind = "address"
	SubjectKindAsset   SubjectKind = "asset"
)

// Valid 检查主体类型是否合法
func (k SubjectKind) Valid() bool {
	return k == SubjectKindAddress || k == SubjectKindAsset
}

// 风险评分取值范围 [MinRiskScore, MaxRiskScore]
const (
	MinRiskScore = 0
	MaxRiskScore = 10
)

// RiskSubject 被标记的地址或资产，身份 = (network_id, subject_kind, subject_key)
type RiskSubject struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	NetworkID       string      `gorm:"column:network_id;type:varchar(64);not null;uniqueIndex:idx_subjects_identity,priority:1" json:"network_id"`
	SubjectKind     SubjectKind `gorm:"column:subject_kind;type:varchar(16);not null;uniqueIndex:idx_subjects_identity,priority:2" json:"subject_kind"`
	SubjectKey      string      `gorm:"column:subject_key;type:varchar(256);not null;uniqueIndex:idx_subjects_identity,priority:3" json:"subject_key"`
	CaseID          string      `gorm:"column:case_id;type:varchar(36);index" json:"case_id,omitempty"` // 为空表示未关联案件
	ReporterAddress string      `gorm:"column:reporter_address;type:varchar(128);not null" json:"reporter_address"`
	RiskScore       int16       `gorm:"column:risk_score;type:smallint;not null" json:"risk_score"`
	Category        Category    `gorm:"column:category;type:varchar(32);not null" json:"category"`
	Position        int64       `gorm:"column:position;type:bigint;not null;index" json:"position"` // 最后写入该行的链上位置
	Sequence        int64       `gorm:"column:sequence;type:bigint;not null" json:"sequence"`
	CreatedAt       int64       `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt       int64       `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (RiskSubject) TableName() string {
	return "risk_subjects"
}
