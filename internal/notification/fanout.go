package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/store"
	"github.com/d60-Lab/engagement/pkg/logger"
)

// FanoutHandler is the subscriber name used for the fan-out routes.
const FanoutHandler = "notification.fanout"

// 通知 ID 由事件 ID 派生，重复投递写入同一行
var fanoutNamespace = uuid.MustParse("6f1c3f0e-8d5a-4c2b-9a57-3e0d2b7c9f41")

// Store is what Fanout needs from the engagement store.
type Store interface {
	GetPost(ctx context.Context, id string) (*model.Post, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error)
}

// Subscriber registers extra handlers on a dispatcher.
type Subscriber interface {
	Subscribe(route event.Route, name string, h event.Handler)
}

// Fanout 将点赞、评论、回复、关注转成通知；不给触发者自己发通知
type Fanout struct {
	store Store
}

func NewFanout(s Store) *Fanout { return &Fanout{store: s} }

// Register subscribes the fan-out handlers.
func (f *Fanout) Register(sub Subscriber) {
	sub.Subscribe(event.Route{Kind: event.KindLike, Op: event.OpCreated}, FanoutHandler, f.onLike)
	sub.Subscribe(event.Route{Kind: event.KindComment, Op: event.OpCreated}, FanoutHandler, f.onComment)
	sub.Subscribe(event.Route{Kind: event.KindFollow, Op: event.OpCreated}, FanoutHandler, f.onFollow)
}

func (f *Fanout) onLike(ctx context.Context, evt event.Event) error {
	var l model.Like
	if err := evt.DecodeState(&l); err != nil {
		return err
	}
	if l.Type != model.LikeTypeLike {
		return nil
	}

	target := l.Target()
	var author, what string
	switch target.Kind {
	case content.KindPost:
		p, err := f.store.GetPost(ctx, target.ID)
		if err != nil {
			return gone(err)
		}
		author, what = p.AuthorID, "post"
	case content.KindComment:
		c, err := f.store.GetComment(ctx, target.ID)
		if err != nil {
			return gone(err)
		}
		author, what = c.AuthorID, "comment"
	default:
		return nil
	}

	return f.notify(ctx, evt, &model.Notification{
		RecipientID: author,
		ActorID:     l.UserID,
		Type:        model.NotificationLike,
		Message:     "liked your " + what,
	}, target)
}

func (f *Fanout) onComment(ctx context.Context, evt event.Event) error {
	var c model.Comment
	if err := evt.DecodeState(&c); err != nil {
		return err
	}

	n := &model.Notification{ActorID: c.AuthorID}
	if c.IsReply() {
		parent, err := f.store.GetComment(ctx, *c.ParentID)
		if err != nil {
			return gone(err)
		}
		n.RecipientID, n.Type, n.Message = parent.AuthorID, model.NotificationReply, "replied to your comment"
	} else {
		p, err := f.store.GetPost(ctx, c.PostID)
		if err != nil {
			return gone(err)
		}
		n.RecipientID, n.Type, n.Message = p.AuthorID, model.NotificationComment, "commented on your post"
	}
	return f.notify(ctx, evt, n, c.Ref())
}

func (f *Fanout) onFollow(ctx context.Context, evt event.Event) error {
	var fl model.Follow
	if err := evt.DecodeState(&fl); err != nil {
		return err
	}
	return f.notify(ctx, evt, &model.Notification{
		RecipientID: fl.FollowingID,
		ActorID:     fl.FollowerID,
		Type:        model.NotificationFollow,
		Message:     "started following you",
	}, content.NewRef(content.KindAccount, fl.FollowerID))
}

func (f *Fanout) notify(ctx context.Context, evt event.Event, n *model.Notification, subject content.Ref) error {
	if n.RecipientID == n.ActorID {
		return nil
	}
	n.ID = uuid.NewSHA1(fanoutNamespace, []byte(evt.ID)).String()
	n.SetSubject(subject)

	_, err := f.store.CreateNotification(ctx, n)
	switch {
	case err == nil:
		logger.Debug("notification created",
			zap.String("event_id", evt.ID),
			zap.String("recipient_id", n.RecipientID),
			zap.String("type", n.Type))
		return nil
	case errors.Is(err, store.ErrDuplicate):
		return nil
	default:
		return gone(err)
	}
}

// gone maps a vanished recipient or subject to the benign ErrTargetGone.
func gone(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", content.ErrTargetGone, err)
	}
	return err
}
