package model

import (
	"time"

	"github.com/d60-Lab/engagement/internal/content"
)

const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationReply   = "reply"
	NotificationMention = "mention"
	NotificationFollow  = "follow"
)

// Notification 通知；按 created_at 倒序投递
type Notification struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	RecipientID string    `gorm:"type:varchar(36);index:idx_notification_recipient_read,priority:1;not null" validate:"required"`
	ActorID     string    `gorm:"type:varchar(36);index:idx_notification_actor;not null" validate:"required"`
	Type        string    `gorm:"type:varchar(10);not null" validate:"required,oneof=like comment reply mention follow"`
	Message     string    `gorm:"type:text"`
	SubjectKind string    `gorm:"type:varchar(32);index:idx_notification_subject;not null" validate:"required"`
	SubjectID   string    `gorm:"type:varchar(36);index:idx_notification_subject;not null" validate:"required"`
	IsRead      bool      `gorm:"not null;default:false;index:idx_notification_recipient_read,priority:2"`
	CreatedAt   time.Time `gorm:"index:idx_notification_recipient_read,priority:3"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) Subject() content.Ref {
	return content.NewRef(content.Kind(n.SubjectKind), n.SubjectID)
}

func (n *Notification) SetSubject(ref content.Ref) {
	n.SubjectKind = string(ref.Kind)
	n.SubjectID = ref.ID
}
