package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
)

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) (*model.Account, error) {
	if err := s.check(a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	// 未读数只由通知计数服务维护
	a.UnreadNotificationCount = 0

	err := s.write(ctx, func(t *txn) error {
		if err := t.accounts().Create(t.ctx, a); err != nil {
			return err
		}
		return t.emit(event.KindAccount, event.OpCreated, a.ID, nil, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	a, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "account "+id)
	}
	return a, nil
}

// DeleteAccount removes the account with everything it owns: its posts and
// comments (with their subtrees and likes), its likes, follows in both
// directions and notifications it sent or received.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.write(ctx, func(t *txn) error {
		a, err := t.accounts().Get(t.ctx, id)
		if err != nil {
			return notFound(err, "account "+id)
		}

		posts, err := t.posts().ListByAuthor(t.ctx, id)
		if err != nil {
			return err
		}
		for _, p := range posts {
			if err := t.deletePost(p); err != nil {
				return err
			}
		}

		comments, err := t.comments().ListByAuthor(t.ctx, id)
		if err != nil {
			return err
		}
		for _, c := range comments {
			// 可能已随上一个子树一起删除
			current, err := t.comments().Get(t.ctx, c.ID)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return err
			}
			if err := t.deleteComment(current); err != nil {
				return err
			}
		}

		likes, err := t.likes().ListByUser(t.ctx, id)
		if err != nil {
			return err
		}
		for _, l := range likes {
			if err := t.remove(event.KindLike, l.ID, l); err != nil {
				return err
			}
		}

		follows, err := t.follows().ListInvolving(t.ctx, id)
		if err != nil {
			return err
		}
		for _, f := range follows {
			if err := t.remove(event.KindFollow, f.ID, f); err != nil {
				return err
			}
		}

		notifications, err := t.notifications().ListInvolving(t.ctx, id)
		if err != nil {
			return err
		}
		for _, n := range notifications {
			if err := t.remove(event.KindNotification, n.ID, n); err != nil {
				return err
			}
		}

		return t.remove(event.KindAccount, a.ID, a)
	})
}
