package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/model"
)

// CommentRepository 评论仓储；评论没有评论计数，只实现 content.LikeCounters 与 content.CountsReader
type CommentRepository interface {
	content.Resolver
	content.LikeCounters
	content.CountsReader

	Create(ctx context.Context, c *model.Comment) error
	Get(ctx context.Context, id string) (*model.Comment, error)
	GetMany(ctx context.Context, ids []string) ([]*model.Comment, error)
	Delete(ctx context.Context, id string) error
	ListReplies(ctx context.Context, parentID string) ([]*model.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*model.Comment, error)
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Comment, error)
	// SubtreeIDs 返回以 rootID 为根的整棵回复树（含根），父节点在前
	SubtreeIDs(ctx context.Context, rootID string) ([]string, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository { return &commentRepository{db: db} }

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepository) Get(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepository) GetMany(ctx context.Context, ids []string) ([]*model.Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []*model.Comment
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comment{}).Error
}

func (r *commentRepository) Exists(ctx context.Context, id string) (bool, error) {
	return rowExists(ctx, r.db, &model.Comment{}, id)
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID string) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("created_at ASC").Find(&res).Error
	return res, err
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC").Find(&res).Error
	return res, err
}

func (r *commentRepository) ListByAuthor(ctx context.Context, authorID string) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Find(&res).Error
	return res, err
}

func (r *commentRepository) SubtreeIDs(ctx context.Context, rootID string) ([]string, error) {
	ids := []string{rootID}
	frontier := []string{rootID}
	for len(frontier) > 0 {
		var children []string
		if err := r.db.WithContext(ctx).
			Model(&model.Comment{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		ids = append(ids, children...)
		frontier = children
	}
	return ids, nil
}

func (r *commentRepository) RecomputeLikeCounts(ctx context.Context, id string) (int64, int64, error) {
	return recomputeLikeCounts(ctx, r.db, &model.Comment{}, content.NewRef(content.KindComment, id))
}

func (r *commentRepository) Counts(ctx context.Context, id string) (content.Counts, error) {
	return readCounts(ctx, r.db, &model.Comment{}, id, false)
}
