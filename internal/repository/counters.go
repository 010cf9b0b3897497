package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/model"
)

type likeTally struct {
	Type string
	N    int64
}

// countLikes 按类型统计某目标当前的点赞行数
func countLikes(ctx context.Context, db *gorm.DB, ref content.Ref) (likes, dislikes int64, err error) {
	var rows []likeTally
	err = db.WithContext(ctx).
		Model(&model.Like{}).
		Select("type, COUNT(*) AS n").
		Where("target_kind = ? AND target_id = ?", string(ref.Kind), ref.ID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	for _, row := range rows {
		switch row.Type {
		case model.LikeTypeLike:
			likes = row.N
		case model.LikeTypeDislike:
			dislikes = row.N
		}
	}
	return likes, dislikes, nil
}

// recomputeLikeCounts 从 likes 表重新统计并回写到目标行。
// 目标不存在返回 ErrTargetGone；回写时目标已被删除返回 ErrConcurrentModification。
func recomputeLikeCounts(ctx context.Context, db *gorm.DB, target any, ref content.Ref) (int64, int64, error) {
	exists, err := rowExists(ctx, db, target, ref.ID)
	if err != nil {
		return 0, 0, err
	}
	if !exists {
		return 0, 0, content.ErrTargetGone
	}

	likes, dislikes, err := countLikes(ctx, db, ref)
	if err != nil {
		return 0, 0, err
	}

	res := db.WithContext(ctx).
		Model(target).
		Where("id = ?", ref.ID).
		UpdateColumns(map[string]any{"like_count": likes, "dislike_count": dislikes})
	if res.Error != nil {
		return 0, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, 0, content.ErrConcurrentModification
	}
	return likes, dislikes, nil
}

// readCounts 读取目标行上已持久化的计数列；comment 表没有 comment_count
func readCounts(ctx context.Context, db *gorm.DB, target any, id string, withComments bool) (content.Counts, error) {
	cols := []string{"like_count", "dislike_count"}
	if withComments {
		cols = append(cols, "comment_count")
	}
	var row struct {
		LikeCount    int64
		DislikeCount int64
		CommentCount int64
	}
	err := db.WithContext(ctx).Model(target).Select(cols).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.Counts{}, content.ErrTargetGone
	}
	if err != nil {
		return content.Counts{}, err
	}
	return content.Counts{Likes: row.LikeCount, Dislikes: row.DislikeCount, Comments: row.CommentCount}, nil
}

func rowExists(ctx context.Context, db *gorm.DB, m any, id string) (bool, error) {
	var cnt int64
	if err := db.WithContext(ctx).Model(m).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// RegisterKinds 注册内置内容类型：post（点赞 + 评论计数）、comment（点赞计数）、account（仅解析）
func RegisterKinds(reg *content.Registry) error {
	if err := reg.Register(content.KindPost, func(db *gorm.DB) content.Resolver { return NewPostRepository(db) }); err != nil {
		return err
	}
	if err := reg.Register(content.KindComment, func(db *gorm.DB) content.Resolver { return NewCommentRepository(db) }); err != nil {
		return err
	}
	return reg.Register(content.KindAccount, func(db *gorm.DB) content.Resolver { return NewAccountRepository(db) })
}

// NewRegistry returns a registry with the built-in kinds.
func NewRegistry() *content.Registry {
	reg := content.NewRegistry()
	if err := RegisterKinds(reg); err != nil {
		panic(err)
	}
	return reg
}
