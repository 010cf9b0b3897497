package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/model"
)

type AccountRepository interface {
	Create(ctx context.Context, a *model.Account) error
	Get(ctx context.Context, id string) (*model.Account, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)

	// IncrementUnread 原子 +1，返回受影响行数（0 表示账号不存在）
	IncrementUnread(ctx context.Context, id string) (int64, error)
	// DecrementUnread 原子 -1，下限为 0
	DecrementUnread(ctx context.Context, id string) (int64, error)
	SetUnread(ctx context.Context, id string, n int64) (int64, error)
	UnreadCount(ctx context.Context, id string) (int64, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepository{db: db} }

func (r *accountRepository) Create(ctx context.Context, a *model.Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *accountRepository) Get(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Account{}).Error
}

func (r *accountRepository) Exists(ctx context.Context, id string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *accountRepository) IncrementUnread(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		UpdateColumn("unread_notification_count", gorm.Expr("unread_notification_count + ?", 1))
	return res.RowsAffected, res.Error
}

func (r *accountRepository) DecrementUnread(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		UpdateColumn("unread_notification_count",
			gorm.Expr("CASE WHEN unread_notification_count > 0 THEN unread_notification_count - 1 ELSE 0 END"))
	return res.RowsAffected, res.Error
}

func (r *accountRepository) SetUnread(ctx context.Context, id string, n int64) (int64, error) {
	if n < 0 {
		n = 0
	}
	res := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		UpdateColumn("unread_notification_count", n)
	return res.RowsAffected, res.Error
}

func (r *accountRepository) UnreadCount(ctx context.Context, id string) (int64, error) {
	var counts []int64
	if err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Pluck("unread_notification_count", &counts).Error; err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return counts[0], nil
}
