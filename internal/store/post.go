package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
)

func (s *Store) CreatePost(ctx context.Context, p *model.Post) (*model.Post, error) {
	if err := s.check(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.LikeCount, p.DislikeCount, p.CommentCount = 0, 0, 0

	err := s.write(ctx, func(t *txn) error {
		ok, err := t.accounts().Exists(t.ctx, p.AuthorID)
		if err := requireExists(ok, err, "author "+p.AuthorID); err != nil {
			return err
		}
		if err := t.posts().Create(t.ctx, p); err != nil {
			return err
		}
		return t.emit(event.KindPost, event.OpCreated, p.ID, nil, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "post "+id)
	}
	return p, nil
}

func (s *Store) ListPostsByAuthor(ctx context.Context, authorID string) ([]*model.Post, error) {
	return s.posts.ListByAuthor(ctx, authorID)
}

// DeletePost removes the post, all of its comments and every like on the
// post or on those comments.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.write(ctx, func(t *txn) error {
		p, err := t.posts().Get(t.ctx, id)
		if err != nil {
			return notFound(err, "post "+id)
		}
		return t.deletePost(p)
	})
}

func (t *txn) deletePost(p *model.Post) error {
	comments, err := t.comments().ListByPost(t.ctx, p.ID)
	if err != nil {
		return err
	}
	if err := t.deleteComments(comments); err != nil {
		return err
	}
	if err := t.removeLikesOn(content.KindPost, []string{p.ID}); err != nil {
		return err
	}
	return t.remove(event.KindPost, p.ID, p)
}

// CreateComment adds a top-level comment (ParentID nil) or a reply. A reply
// inherits its parent's PostID; a mismatching PostID is rejected.
func (s *Store) CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	if err := s.check(c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.LikeCount, c.DislikeCount = 0, 0

	err := s.write(ctx, func(t *txn) error {
		ok, err := t.accounts().Exists(t.ctx, c.AuthorID)
		if err := requireExists(ok, err, "author "+c.AuthorID); err != nil {
			return err
		}
		if c.ParentID != nil {
			parent, err := t.comments().Get(t.ctx, *c.ParentID)
			if err != nil {
				if isNotFound(err) {
					return ErrInvalidParent
				}
				return err
			}
			if c.PostID == "" {
				c.PostID = parent.PostID
			}
			if parent.PostID != c.PostID {
				return ErrInvalidParent
			}
		}
		ok, err = t.posts().Exists(t.ctx, c.PostID)
		if err := requireExists(ok, err, "post "+c.PostID); err != nil {
			return err
		}
		if err := t.comments().Create(t.ctx, c); err != nil {
			return err
		}
		return t.emit(event.KindComment, event.OpCreated, c.ID, nil, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := s.comments.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "comment "+id)
	}
	return c, nil
}

// ListReplies returns direct replies, oldest first.
func (s *Store) ListReplies(ctx context.Context, commentID string) ([]*model.Comment, error) {
	return s.comments.ListReplies(ctx, commentID)
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	return s.comments.ListByPost(ctx, postID)
}

// DeleteComment removes the comment, its whole reply subtree and every like
// on the removed comments.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.write(ctx, func(t *txn) error {
		c, err := t.comments().Get(t.ctx, id)
		if err != nil {
			return notFound(err, "comment "+id)
		}
		return t.deleteComment(c)
	})
}

func (t *txn) deleteComment(root *model.Comment) error {
	ids, err := t.comments().SubtreeIDs(t.ctx, root.ID)
	if err != nil {
		return err
	}
	subtree, err := t.comments().GetMany(t.ctx, ids)
	if err != nil {
		return err
	}
	// SubtreeIDs 父在前；按其顺序排列后逆序删除，先删叶子
	byID := make(map[string]*model.Comment, len(subtree))
	for _, c := range subtree {
		byID[c.ID] = c
	}
	ordered := make([]*model.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return t.deleteComments(ordered)
}

// deleteComments removes likes on the given comments, then the comments in
// reverse order.
func (t *txn) deleteComments(comments []*model.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	if err := t.removeLikesOn(content.KindComment, ids); err != nil {
		return err
	}
	for i := len(comments) - 1; i >= 0; i-- {
		c := comments[i]
		if err := t.remove(event.KindComment, c.ID, c); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) removeLikesOn(kind content.Kind, ids []string) error {
	likes, err := t.likes().ListByTargets(t.ctx, kind, ids)
	if err != nil {
		return err
	}
	for _, l := range likes {
		if err := t.remove(event.KindLike, l.ID, l); err != nil {
			return err
		}
	}
	return nil
}
