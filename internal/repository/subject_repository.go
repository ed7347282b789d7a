package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/riskhub-protocol/riskhub/internal/model"
)

var ErrSubjectNotFound = errors.New("risk subject not found")

// SubjectRepository 风险标的仓储接口
type SubjectRepository interface {
	// Upsert 按身份 (network_id, subject_kind, subject_key) 插入或整行覆盖
	Upsert(ctx context.Context, s *model.RiskSubject) error
	GetByIdentity(ctx context.Context, networkID string, kind model.SubjectKind, key string) (*model.RiskSubject, error)
	ListByNetwork(ctx context.Context, networkID string) ([]*model.RiskSubject, error)
	ListBeyondPosition(ctx context.Context, networkID string, position int64) ([]*model.RiskSubject, error)
	DeleteByIdentity(ctx context.Context, networkID string, kind model.SubjectKind, key string) error
}

type subjectRepository struct {
	*Repository
}

// NewSubjectRepository 创建风险标的仓储
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{Repository: NewRepository(db)}
}

func (r *subjectRepository) Upsert(ctx context.Context, s *model.RiskSubject) error {
	now := time.Now().UnixMilli()
	s.UpdatedAt = now
	if s.CreatedAt == 0 {
		s.CreatedAt = now
	}

	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "network_id"}, {Name: "subject_kind"}, {Name: "subject_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"case_id", "reporter_address", "category", "risk_score", "position", "sequence", "updated_at",
		}),
	}).Create(s).Error
}

func (r *subjectRepository) GetByIdentity(ctx context.Context, networkID string, kind model.SubjectKind, key string) (*model.RiskSubject, error) {
	var s model.RiskSubject
	err := r.DB(ctx).
		Where("network_id = ? AND subject_kind = ? AND subject_key = ?", networkID, kind, key).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subjectRepository) ListByNetwork(ctx context.Context, networkID string) ([]*model.RiskSubject, error) {
	var subjects []*model.RiskSubject
	err := r.DB(ctx).
		Where("network_id = ?", networkID).
		Order("subject_kind ASC, subject_key ASC").
		Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepository) ListBeyondPosition(ctx context.Context, networkID string, position int64) ([]*model.RiskSubject, error) {
	var subjects []*model.RiskSubject
	err := r.DB(ctx).
		Where("network_id = ? AND position > ?", networkID, position).
		Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepository) DeleteByIdentity(ctx context.Context, networkID string, kind model.SubjectKind, key string) error {
	return r.DB(ctx).
		Where("network_id = ? AND subject_kind = ? AND subject_key = ?", networkID, kind, key).
		Delete(&model.RiskSubject{}).Error
}
