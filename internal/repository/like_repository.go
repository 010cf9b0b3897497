package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/model"
)

type LikeRepository interface {
	// Create 同一用户对同一目标只保留一条，重复时 inserted=false
	Create(ctx context.Context, l *model.Like) (inserted bool, err error)
	Get(ctx context.Context, userID string, target content.Ref) (*model.Like, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, target content.Ref, likeType string) (int64, error)
	ListByTarget(ctx context.Context, target content.Ref) ([]*model.Like, error)
	ListByTargets(ctx context.Context, kind content.Kind, ids []string) ([]*model.Like, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Like, error)
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository { return &likeRepository{db: db} }

func (r *likeRepository) Create(ctx context.Context, l *model.Like) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(l)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) Get(ctx context.Context, userID string, target content.Ref) (*model.Like, error) {
	var l model.Like
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_kind = ? AND target_id = ?", userID, string(target.Kind), target.ID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *likeRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Like{}).Error
}

func (r *likeRepository) Count(ctx context.Context, target content.Ref, likeType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Like{}).
		Where("target_kind = ? AND target_id = ? AND type = ?", string(target.Kind), target.ID, likeType).
		Count(&n).Error
	return n, err
}

func (r *likeRepository) ListByTarget(ctx context.Context, target content.Ref) ([]*model.Like, error) {
	return r.ListByTargets(ctx, target.Kind, []string{target.ID})
}

func (r *likeRepository) ListByTargets(ctx context.Context, kind content.Kind, ids []string) ([]*model.Like, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []*model.Like
	err := r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id IN ?", string(kind), ids).
		Find(&res).Error
	return res, err
}

func (r *likeRepository) ListByUser(ctx context.Context, userID string) ([]*model.Like, error) {
	var res []*model.Like
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&res).Error
	return res, err
}
