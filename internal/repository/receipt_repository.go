package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engagement/internal/model"
)

// ReceiptRepository 记录 (event_id, handler) 的应用回执
type ReceiptRepository interface {
	// Insert 返回 inserted=false 表示该事件已被该 handler 处理过
	Insert(ctx context.Context, eventID, handler string) (inserted bool, err error)
	Exists(ctx context.Context, eventID, handler string) (bool, error)
}

type receiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) ReceiptRepository { return &receiptRepository{db: db} }

func (r *receiptRepository) Insert(ctx context.Context, eventID, handler string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ReactionReceipt{EventID: eventID, Handler: handler})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *receiptRepository) Exists(ctx context.Context, eventID, handler string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.ReactionReceipt{}).
		Where("event_id = ? AND handler = ?", eventID, handler).
		Count(&cnt).Error
	return cnt > 0, err
}
