package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/model"
)

// PostRepository 帖子仓储，同时实现 content.LikeCounters 与 content.CommentCounters
type PostRepository interface {
	content.Resolver
	content.LikeCounters
	content.CommentCounters
	content.CountsReader

	Create(ctx context.Context, p *model.Post) error
	Get(ctx context.Context, id string) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *postRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{}).Error
}

func (r *postRepository) Exists(ctx context.Context, id string) (bool, error) {
	return rowExists(ctx, r.db, &model.Post{}, id)
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("created_at DESC").Find(&res).Error
	return res, err
}

func (r *postRepository) RecomputeLikeCounts(ctx context.Context, id string) (int64, int64, error) {
	return recomputeLikeCounts(ctx, r.db, &model.Post{}, content.NewRef(content.KindPost, id))
}

// RecomputeCommentCount 只统计直接评论（parent_id 为空），回复不计入帖子评论数
func (r *postRepository) RecomputeCommentCount(ctx context.Context, id string) (int64, error) {
	exists, err := r.Exists(ctx, id)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, content.ErrTargetGone
	}

	var n int64
	if err := r.db.WithContext(ctx).
		Model(&model.Comment{}).
		Where("post_id = ? AND parent_id IS NULL", id).
		Count(&n).Error; err != nil {
		return 0, err
	}

	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumn("comment_count", n)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, content.ErrConcurrentModification
	}
	return n, nil
}

func (r *postRepository) Counts(ctx context.Context, id string) (content.Counts, error) {
	return readCounts(ctx, r.db, &model.Post{}, id, true)
}
