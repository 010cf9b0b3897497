package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
)

// CreateLike records userID's like or dislike on target. The target kind must
// be registered with like counters and the target must exist. A second
// reaction by the same user on the same target returns ErrAlreadyReacted.
func (s *Store) CreateLike(ctx context.Context, userID string, target content.Ref, likeType string) (*model.Like, error) {
	l := &model.Like{ID: uuid.NewString(), UserID: userID, Type: likeType}
	l.SetTarget(target)
	if err := s.check(l); err != nil {
		return nil, err
	}

	err := s.write(ctx, func(t *txn) error {
		ok, err := t.accounts().Exists(t.ctx, userID)
		if err := requireExists(ok, err, "account "+userID); err != nil {
			return err
		}

		bound, err := s.registry.Bind(t.tx, target)
		if err != nil {
			return err
		}
		if _, likeable := bound.(content.LikeCounters); !likeable {
			return ErrNotLikeable
		}
		ok, err = bound.Exists(t.ctx, target.ID)
		if err := requireExists(ok, err, target.String()); err != nil {
			return err
		}

		inserted, err := t.likes().Create(t.ctx, l)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrAlreadyReacted
		}
		return t.emit(event.KindLike, event.OpCreated, l.ID, nil, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteLike removes userID's reaction on target.
func (s *Store) DeleteLike(ctx context.Context, userID string, target content.Ref) error {
	return s.write(ctx, func(t *txn) error {
		l, err := t.likes().Get(t.ctx, userID, target)
		if err != nil {
			return notFound(err, "like on "+target.String())
		}
		return t.remove(event.KindLike, l.ID, l)
	})
}

func (s *Store) GetLike(ctx context.Context, userID string, target content.Ref) (*model.Like, error) {
	l, err := s.likes.Get(ctx, userID, target)
	if err != nil {
		return nil, notFound(err, "like on "+target.String())
	}
	return l, nil
}

// CountLikes counts the like rows of likeType on target. It reads the rows,
// not the denormalized counter.
func (s *Store) CountLikes(ctx context.Context, target content.Ref, likeType string) (int64, error) {
	return s.likes.Count(ctx, target, likeType)
}
