package store

import (
	"context"

	"github.com/d60-Lab/engagement/internal/content"
)

// ContentCounters loads the persisted counters of a post or comment. It is
// the loader behind cache-aside reads.
func (s *Store) ContentCounters(ctx context.Context, ref content.Ref) (content.Counts, error) {
	switch ref.Kind {
	case content.KindPost:
		p, err := s.GetPost(ctx, ref.ID)
		if err != nil {
			return content.Counts{}, err
		}
		return content.Counts{Likes: p.LikeCount, Dislikes: p.DislikeCount, Comments: p.CommentCount}, nil
	case content.KindComment:
		c, err := s.GetComment(ctx, ref.ID)
		if err != nil {
			return content.Counts{}, err
		}
		return content.Counts{Likes: c.LikeCount, Dislikes: c.DislikeCount}, nil
	}
	if _, err := s.registry.Resolve(ref); err != nil {
		return content.Counts{}, err
	}
	return content.Counts{}, ErrNotLikeable
}

// UnreadCount loads the persisted unread notification counter.
func (s *Store) UnreadCount(ctx context.Context, accountID string) (int64, error) {
	n, err := s.accounts.UnreadCount(ctx, accountID)
	if err != nil {
		return 0, notFound(err, "account "+accountID)
	}
	return n, nil
}
