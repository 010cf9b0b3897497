// Package store is the write path of the engine. Every write runs in one
// gorm transaction that also appends a mutation event per changed row to the
// outbox; events are handed to the Publisher only after commit.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/repository"
)

var (
	ErrNotFound       = errors.New("store: not found")
	ErrInvalidInput   = errors.New("store: invalid input")
	ErrInvalidParent  = errors.New("store: invalid parent comment")
	ErrFollowSelf     = errors.New("store: cannot follow self")
	ErrAlreadyReacted = errors.New("store: already reacted")
	ErrNotLikeable    = errors.New("store: target kind cannot be liked")
	ErrDuplicate      = errors.New("store: duplicate")
)

// Publisher receives committed events. Publish must not block.
type Publisher interface {
	Publish(evt event.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(event.Event) {}

type Option func(*Store)

// WithPublisher sets the post-commit sink. Without one events stay pending
// in the outbox until the relay picks them up.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// Store 互动数据写入口
type Store struct {
	db        *gorm.DB
	registry  *content.Registry
	publisher Publisher
	validate  *validator.Validate

	accounts      repository.AccountRepository
	posts         repository.PostRepository
	comments      repository.CommentRepository
	likes         repository.LikeRepository
	follows       repository.FollowRepository
	notifications repository.NotificationRepository
}

func New(db *gorm.DB, registry *content.Registry, opts ...Option) *Store {
	s := &Store{
		db:        db,
		registry:  registry,
		publisher: nopPublisher{},
		validate:  validator.New(),

		accounts:      repository.NewAccountRepository(db),
		posts:         repository.NewPostRepository(db),
		comments:      repository.NewCommentRepository(db),
		likes:         repository.NewLikeRepository(db),
		follows:       repository.NewFollowRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// txn 事务内的写上下文，收集本次提交要发布的事件
type txn struct {
	ctx    context.Context
	tx     *gorm.DB
	events []event.Event
}

func (t *txn) emit(kind event.EntityKind, op event.Operation, id string, before, after any) error {
	evt, err := event.New(kind, op, id, before, after)
	if err != nil {
		return err
	}
	if err := t.tx.Create(evt.Record()).Error; err != nil {
		return fmt.Errorf("append %s event: %w", evt.Route(), err)
	}
	t.events = append(t.events, evt)
	return nil
}

// remove deletes the row m (already loaded) and emits its deleted event.
func (t *txn) remove(kind event.EntityKind, id string, m any) error {
	res := t.tx.Where("id = ?", id).Delete(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return t.emit(kind, event.OpDeleted, id, m, nil)
}

func (t *txn) accounts() repository.AccountRepository { return repository.NewAccountRepository(t.tx) }

func (t *txn) posts() repository.PostRepository { return repository.NewPostRepository(t.tx) }

func (t *txn) comments() repository.CommentRepository { return repository.NewCommentRepository(t.tx) }

func (t *txn) likes() repository.LikeRepository { return repository.NewLikeRepository(t.tx) }

func (t *txn) follows() repository.FollowRepository { return repository.NewFollowRepository(t.tx) }

func (t *txn) notifications() repository.NotificationRepository {
	return repository.NewNotificationRepository(t.tx)
}

// write runs fn in a transaction and publishes the collected events after commit.
func (s *Store) write(ctx context.Context, fn func(t *txn) error) error {
	var committed []event.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t := &txn{ctx: ctx, tx: tx}
		if err := fn(t); err != nil {
			return err
		}
		committed = t.events
		return nil
	})
	if err != nil {
		return err
	}
	for _, evt := range committed {
		s.publisher.Publish(evt)
	}
	return nil
}

func (s *Store) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

func requireExists(ok bool, err error, what string) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}

func pageOffset(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return (page - 1) * size, size
}
