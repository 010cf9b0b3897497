package store

import (
	"context"

	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
)

// Follow makes followerID follow followingID. Following twice is a no-op and
// returns the existing relation without emitting an event.
func (s *Store) Follow(ctx context.Context, followerID, followingID string) (*model.Follow, error) {
	if followerID == followingID {
		return nil, ErrFollowSelf
	}
	var f *model.Follow
	err := s.write(ctx, func(t *txn) error {
		for _, id := range []string{followerID, followingID} {
			ok, err := t.accounts().Exists(t.ctx, id)
			if err := requireExists(ok, err, "account "+id); err != nil {
				return err
			}
		}
		var inserted bool
		var err error
		f, inserted, err = t.follows().Create(t.ctx, followerID, followingID)
		if err != nil || !inserted {
			return err
		}
		return t.emit(event.KindFollow, event.OpCreated, f.ID, nil, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Unfollow is idempotent: removing a missing relation succeeds silently.
func (s *Store) Unfollow(ctx context.Context, followerID, followingID string) error {
	return s.write(ctx, func(t *txn) error {
		f, err := t.follows().Get(t.ctx, followerID, followingID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		return t.remove(event.KindFollow, f.ID, f)
	})
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.follows.Exists(ctx, followerID, followingID)
}

// ListFollowers 关注 accountID 的人，page 从 1 开始
func (s *Store) ListFollowers(ctx context.Context, accountID string, page, size int) ([]*model.Follow, error) {
	offset, limit := pageOffset(page, size)
	return s.follows.ListFollowers(ctx, accountID, offset, limit)
}

// ListFollowing accountID 关注的人
func (s *Store) ListFollowing(ctx context.Context, accountID string, page, size int) ([]*model.Follow, error) {
	offset, limit := pageOffset(page, size)
	return s.follows.ListFollowings(ctx, accountID, offset, limit)
}
