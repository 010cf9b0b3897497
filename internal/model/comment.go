package model

import (
	"time"

	"github.com/d60-Lab/engagement/internal/content"
)

// Comment 评论；ParentID 为空表示直接评论帖子，否则为回复
// PostID 始终指向根帖子，回复与父评论保持一致
type Comment struct {
	ID           string  `gorm:"primaryKey;type:varchar(36)"`
	PostID       string  `gorm:"type:varchar(36);index:idx_comment_post;not null"`
	ParentID     *string `gorm:"type:varchar(36);index:idx_comment_parent"`
	AuthorID     string  `gorm:"type:varchar(36);index:idx_comment_author;not null" validate:"required"`
	Content      string  `gorm:"type:text;not null" validate:"required"`
	LikeCount    int64   `gorm:"not null;default:0"`
	DislikeCount int64   `gorm:"not null;default:0"`
	Active       bool    `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Comment) TableName() string { return "comments" }

func (c *Comment) Ref() content.Ref { return content.NewRef(content.KindComment, c.ID) }

// Target is what the comment is attached to: the post for a top-level
// comment, the parent comment for a reply.
func (c *Comment) Target() content.Ref {
	if c.ParentID != nil {
		return content.NewRef(content.KindComment, *c.ParentID)
	}
	return content.NewRef(content.KindPost, c.PostID)
}

func (c *Comment) IsReply() bool { return c.ParentID != nil }
