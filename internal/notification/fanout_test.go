package notification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/store"
	"github.com/d60-Lab/engagement/internal/testutil"
)

type captured struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *captured) Publish(evt event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captured) last() event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

// routeTable is a minimal Subscriber.
type routeTable map[event.Route]event.Handler

func (r routeTable) Subscribe(route event.Route, _ string, h event.Handler) { r[route] = h }

func (r routeTable) deliver(ctx context.Context, evt event.Event) error {
	h, ok := r[evt.Route()]
	if !ok {
		return nil
	}
	return h(ctx, evt)
}

type fixture struct {
	store  *store.Store
	events *captured
	routes routeTable
	alice  *model.Account
	bob    *model.Account
	post   *model.Post
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{events: &captured{}, routes: routeTable{}}
	f.store = store.New(db, repository.NewRegistry(), store.WithPublisher(f.events))
	NewFanout(f.store).Register(f.routes)

	ctx := context.Background()
	var err error
	f.alice, err = f.store.CreateAccount(ctx, &model.Account{Username: "alice", Phone: "1"})
	require.NoError(t, err)
	f.bob, err = f.store.CreateAccount(ctx, &model.Account{Username: "bob", Phone: "2"})
	require.NoError(t, err)
	f.post, err = f.store.CreatePost(ctx, &model.Post{AuthorID: f.alice.ID, Title: "hi"})
	require.NoError(t, err)
	return f
}

func (f *fixture) inbox(t *testing.T, accountID string) []*model.Notification {
	t.Helper()
	list, err := f.store.ListNotifications(context.Background(), accountID, 1, 50)
	require.NoError(t, err)
	return list
}

func TestFanout_LikeNotifiesAuthorOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateLike(ctx, f.bob.ID, f.post.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	evt := f.events.last()
	require.NoError(t, f.routes.deliver(ctx, evt))
	require.NoError(t, f.routes.deliver(ctx, evt))

	inbox := f.inbox(t, f.alice.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationLike, inbox[0].Type)
	assert.Equal(t, f.bob.ID, inbox[0].ActorID)
	assert.Equal(t, f.post.Ref(), inbox[0].Subject())
}

func TestFanout_SkipsSelfAndDislike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateLike(ctx, f.alice.ID, f.post.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	require.NoError(t, f.routes.deliver(ctx, f.events.last()))

	_, err = f.store.CreateLike(ctx, f.bob.ID, f.post.Ref(), model.LikeTypeDislike)
	require.NoError(t, err)
	require.NoError(t, f.routes.deliver(ctx, f.events.last()))

	assert.Empty(t, f.inbox(t, f.alice.ID))
}

func TestFanout_CommentsAndReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	top, err := f.store.CreateComment(ctx, &model.Comment{PostID: f.post.ID, AuthorID: f.bob.ID, Content: "nice"})
	require.NoError(t, err)
	require.NoError(t, f.routes.deliver(ctx, f.events.last()))

	_, err = f.store.CreateComment(ctx, &model.Comment{ParentID: &top.ID, AuthorID: f.alice.ID, Content: "thanks"})
	require.NoError(t, err)
	require.NoError(t, f.routes.deliver(ctx, f.events.last()))

	aliceInbox := f.inbox(t, f.alice.ID)
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, model.NotificationComment, aliceInbox[0].Type)
	assert.Equal(t, top.Ref(), aliceInbox[0].Subject())

	bobInbox := f.inbox(t, f.bob.ID)
	require.Len(t, bobInbox, 1)
	assert.Equal(t, model.NotificationReply, bobInbox[0].Type)
}

func TestFanout_Follow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Follow(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)
	require.NoError(t, f.routes.deliver(ctx, f.events.last()))

	inbox := f.inbox(t, f.alice.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationFollow, inbox[0].Type)
	assert.Equal(t, content.NewRef(content.KindAccount, f.bob.ID), inbox[0].Subject())
}

func TestFanout_TargetGoneIsBenign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateLike(ctx, f.bob.ID, f.post.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	evt := f.events.last()
	require.NoError(t, f.store.DeletePost(ctx, f.post.ID))

	err = f.routes.deliver(ctx, evt)
	assert.ErrorIs(t, err, content.ErrTargetGone)
}
