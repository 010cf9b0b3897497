// Package notification maintains Account.UnreadNotificationCount from
// notification events and, optionally, creates notifications for likes,
// comments and follows.
package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/cache"
	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/lock"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/pkg/logger"
)

// CounterHandler is the receipt name of the unread counter handler.
const CounterHandler = "notification.unread"

var errApplied = errors.New("notification: event already applied")

type Option func(*CounterService)

// WithCache writes the new unread count through to c after every change.
func WithCache(c *cache.CounterCache) Option {
	return func(s *CounterService) { s.cache = c }
}

// WithLocker serializes the changes to one account's counter, together with
// the cache write that follows them. The default is in-process.
func WithLocker(l lock.Locker) Option {
	return func(s *CounterService) {
		if l != nil {
			s.locker = l
		}
	}
}

// CounterService 未读通知计数：按状态迁移增减，不做全量重算
type CounterService struct {
	db     *gorm.DB
	cache  *cache.CounterCache
	locker lock.Locker
}

func NewCounterService(db *gorm.DB, opts ...Option) *CounterService {
	s := &CounterService{db: db, locker: lock.NewKeyedMutex()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// delta 根据事件判断未读数变化：+1、-1 或 0
func delta(evt event.Event) (recipientID string, d int64, err error) {
	switch evt.Operation {
	case event.OpCreated:
		var n model.Notification
		if err := evt.DecodeState(&n); err != nil {
			return "", 0, err
		}
		if !n.IsRead {
			return n.RecipientID, 1, nil
		}
		return n.RecipientID, 0, nil

	case event.OpUpdated:
		var before, after model.Notification
		ok, err := evt.DecodeBefore(&before)
		if err != nil {
			return "", 0, err
		}
		if !ok {
			return "", 0, fmt.Errorf("%w: notification %s", content.ErrTransitionAmbiguous, evt.EntityID)
		}
		if err := evt.DecodeState(&after); err != nil {
			return "", 0, err
		}
		if !before.IsRead && after.IsRead {
			return after.RecipientID, -1, nil
		}
		return after.RecipientID, 0, nil

	case event.OpDeleted:
		var n model.Notification
		if err := evt.DecodeState(&n); err != nil {
			return "", 0, err
		}
		if !n.IsRead {
			return n.RecipientID, -1, nil
		}
		return n.RecipientID, 0, nil
	}
	return "", 0, fmt.Errorf("%w: unexpected operation %q", event.ErrMalformed, evt.Operation)
}

// Handle applies one notification event to the recipient's counter. The
// receipt and the counter update commit together, so a redelivered event
// changes the counter at most once.
func (s *CounterService) Handle(ctx context.Context, evt event.Event) error {
	recipientID, d, err := delta(evt)
	if err != nil {
		return err
	}
	if d == 0 {
		return nil
	}

	// 同一账号的计数变更与缓存写入在同一把锁内完成，旧值不会覆盖新值
	unlock, err := s.lockAccount(ctx, recipientID)
	if err != nil {
		return err
	}
	defer unlock()

	var count int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := repository.NewReceiptRepository(tx).Insert(ctx, evt.ID, CounterHandler)
		if err != nil {
			return err
		}
		if !inserted {
			return errApplied
		}

		accounts := repository.NewAccountRepository(tx)
		var rows int64
		if d > 0 {
			rows, err = accounts.IncrementUnread(ctx, recipientID)
		} else {
			rows, err = accounts.DecrementUnread(ctx, recipientID)
		}
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: account %s", content.ErrTargetGone, recipientID)
		}
		count, err = accounts.UnreadCount(ctx, recipientID)
		return err
	})
	if errors.Is(err, errApplied) {
		logger.Debug("notification event already applied", zap.String("event_id", evt.ID))
		return nil
	}
	if err != nil {
		return err
	}
	s.writeThrough(ctx, recipientID, count)
	return nil
}

// Reconcile recounts accountID's unread notifications and overwrites the
// counter. It repairs drift left by events that were dropped as failed.
func (s *CounterService) Reconcile(ctx context.Context, accountID string) (int64, error) {
	unlock, err := s.lockAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var count int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repository.NewNotificationRepository(tx).CountUnread(ctx, accountID)
		if err != nil {
			return err
		}
		rows, err := repository.NewAccountRepository(tx).SetUnread(ctx, accountID, n)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: account %s", content.ErrTargetGone, accountID)
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.writeThrough(ctx, accountID, count)
	return count, nil
}

func (s *CounterService) lockAccount(ctx context.Context, accountID string) (func(), error) {
	return s.locker.Lock(ctx, content.NewRef(content.KindAccount, accountID).Key())
}

// writeThrough must run under the account lock.
func (s *CounterService) writeThrough(ctx context.Context, accountID string, n int64) {
	if s.cache == nil {
		return
	}
	err := s.cache.StoreUnread(ctx, accountID, n)
	if err == nil {
		return
	}
	logger.Warn("write unread count to cache failed", zap.String("account_id", accountID), zap.Error(err))
	if err := s.cache.InvalidateUnread(ctx, accountID); err != nil {
		logger.Warn("invalidate unread count failed", zap.String("account_id", accountID), zap.Error(err))
	}
}
