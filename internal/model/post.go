package model

import (
	"time"

	"github.com/d60-Lab/engagement/internal/content"
)

// Post 帖子；LikeCount/DislikeCount/CommentCount 为派生计数，仅由 reaction 引擎回写
type Post struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	AuthorID     string `gorm:"type:varchar(36);index:idx_post_author;not null" validate:"required"`
	Title        string `gorm:"type:varchar(100);not null" validate:"required,max=100"`
	Content      string `gorm:"type:text"`
	ImageURL     string `gorm:"type:varchar(255)" validate:"omitempty,url"`
	LikeCount    int64  `gorm:"not null;default:0"`
	DislikeCount int64  `gorm:"not null;default:0"`
	CommentCount int64  `gorm:"not null;default:0"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Post) TableName() string { return "posts" }

func (p *Post) Ref() content.Ref { return content.NewRef(content.KindPost, p.ID) }
