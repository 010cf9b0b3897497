package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engagement/internal/model"
)

// EventRepository 事件外发盒仓储
type EventRepository interface {
	Append(ctx context.Context, e *model.MutationEvent) error
	Get(ctx context.Context, id string) (*model.MutationEvent, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause string) error
	RecordAttempt(ctx context.Context, id string, cause string) error
	// RecordError 只记录错误，不增加 attempts
	RecordError(ctx context.Context, id string, cause string) error
	// ClaimPending 认领一批早于 before 的 pending 事件并将其 attempts +1
	ClaimPending(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.MutationEvent, error)
	// FailExhausted 把重试次数耗尽的 pending 事件标记为 failed
	FailExhausted(ctx context.Context, maxAttempts int) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository { return &eventRepository{db: db} }

func (r *eventRepository) Append(ctx context.Context, e *model.MutationEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *eventRepository) Get(ctx context.Context, id string) (*model.MutationEvent, error) {
	var e model.MutationEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.MutationEvent{}).
		Where("id = ? AND status = ?", id, model.EventStatusPending).
		Updates(map[string]any{"status": model.EventStatusDone, "processed_at": now}).Error
}

func (r *eventRepository) MarkFailed(ctx context.Context, id string, cause string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.MutationEvent{}).
		Where("id = ? AND status = ?", id, model.EventStatusPending).
		Updates(map[string]any{"status": model.EventStatusFailed, "processed_at": now, "last_error": cause}).Error
}

func (r *eventRepository) RecordAttempt(ctx context.Context, id string, cause string) error {
	return r.db.WithContext(ctx).
		Model(&model.MutationEvent{}).
		Where("id = ? AND status = ?", id, model.EventStatusPending).
		Updates(map[string]any{"attempts": gorm.Expr("attempts + ?", 1), "last_error": cause}).Error
}

func (r *eventRepository) RecordError(ctx context.Context, id string, cause string) error {
	return r.db.WithContext(ctx).
		Model(&model.MutationEvent{}).
		Where("id = ? AND status = ?", id, model.EventStatusPending).
		UpdateColumn("last_error", cause).Error
}

func (r *eventRepository) ClaimPending(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.MutationEvent, error) {
	var batch []*model.MutationEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE SKIP LOCKED（sqlite 忽略行锁子句）
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND created_at < ? AND attempts < ?", model.EventStatusPending, before, maxAttempts).
			Order("seq").
			Limit(limit).
			Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}
		return tx.Model(&model.MutationEvent{}).
			Where("id IN ?", ids).
			UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error
	})
	return batch, err
}

func (r *eventRepository) FailExhausted(ctx context.Context, maxAttempts int) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.MutationEvent{}).
		Where("status = ? AND attempts >= ?", model.EventStatusPending, maxAttempts).
		Updates(map[string]any{"status": model.EventStatusFailed, "processed_at": now})
	return res.RowsAffected, res.Error
}

func (r *eventRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.MutationEvent{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
