package model

import (
	"time"

	"github.com/d60-Lab/engagement/internal/content"
)

const (
	LikeTypeLike    = "like"
	LikeTypeDislike = "dislike"
)

// Like 点赞/点踩，通过 (target_kind, target_id) 多态关联帖子或评论
type Like struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	UserID     string `gorm:"type:varchar(36);uniqueIndex:ux_like_user_target;not null" validate:"required"`
	TargetKind string `gorm:"type:varchar(32);uniqueIndex:ux_like_user_target;index:idx_like_target;not null" validate:"required"`
	TargetID   string `gorm:"type:varchar(36);uniqueIndex:ux_like_user_target;index:idx_like_target;not null" validate:"required"`
	Type       string `gorm:"type:varchar(7);index:idx_like_target;not null" validate:"required,oneof=like dislike"`
	CreatedAt  time.Time
}

func (Like) TableName() string { return "likes" }

func (l *Like) Target() content.Ref { return content.NewRef(content.Kind(l.TargetKind), l.TargetID) }

func (l *Like) SetTarget(ref content.Ref) {
	l.TargetKind = string(ref.Kind)
	l.TargetID = ref.ID
}
