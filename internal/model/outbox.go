package model

import "time"

const (
	EventStatusPending = "pending"
	EventStatusDone    = "done"
	EventStatusFailed  = "failed"
)

// MutationEvent 事件外发盒：与业务写入同一事务落地，提交后才可见
type MutationEvent struct {
	Seq         int64      `gorm:"primaryKey;autoIncrement"`
	ID          string     `gorm:"type:varchar(36);uniqueIndex:ux_event_id;not null"`
	EntityKind  string     `gorm:"type:varchar(32);not null"`
	Operation   string     `gorm:"type:varchar(16);not null"`
	EntityID    string     `gorm:"type:varchar(36);index:idx_event_entity;not null"`
	Before      *string    `gorm:"type:text"`
	After       *string    `gorm:"type:text"`
	Status      string     `gorm:"type:varchar(16);index:idx_event_status_created;not null"` // pending, done, failed
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"index:idx_event_status_created"`
	ProcessedAt *time.Time
}

func (MutationEvent) TableName() string { return "mutation_events" }

// ReactionReceipt 记录某事件已被某 handler 应用过，用于重复投递去重
type ReactionReceipt struct {
	EventID   string `gorm:"primaryKey;type:varchar(36)"`
	Handler   string `gorm:"primaryKey;type:varchar(64)"`
	CreatedAt time.Time
}

func (ReactionReceipt) TableName() string { return "reaction_receipts" }
