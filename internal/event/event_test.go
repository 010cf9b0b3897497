package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engagement/internal/model"
)

func TestNew_SnapshotsRoundTripThroughRecord(t *testing.T) {
	before := &model.Notification{ID: "n1", RecipientID: "a1", IsRead: false}
	after := &model.Notification{ID: "n1", RecipientID: "a1", IsRead: true}

	evt, err := New(KindNotification, OpUpdated, "n1", before, after)
	require.NoError(t, err)
	require.NotEmpty(t, evt.ID)
	assert.Equal(t, Route{Kind: KindNotification, Op: OpUpdated}, evt.Route())
	assert.Equal(t, "notification.updated", evt.Route().String())

	rec := evt.Record()
	assert.Equal(t, model.EventStatusPending, rec.Status)
	require.NotNil(t, rec.Before)
	require.NotNil(t, rec.After)

	back := FromRecord(rec)
	var b, a model.Notification
	ok, err := back.DecodeBefore(&b)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = back.DecodeAfter(&a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, b.IsRead)
	assert.True(t, a.IsRead)
}

func TestNew_AbsentSnapshot(t *testing.T) {
	evt, err := New(KindLike, OpCreated, "l1", nil, &model.Like{ID: "l1"})
	require.NoError(t, err)
	assert.False(t, evt.HasBefore())
	assert.True(t, evt.HasAfter())
	assert.Nil(t, evt.Record().Before)

	var l model.Like
	ok, err := evt.DecodeBefore(&l)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeState(t *testing.T) {
	deleted, err := New(KindLike, OpDeleted, "l1", &model.Like{ID: "l1", Type: model.LikeTypeDislike}, nil)
	require.NoError(t, err)

	var l model.Like
	require.NoError(t, deleted.DecodeState(&l))
	assert.Equal(t, model.LikeTypeDislike, l.Type)

	bare := Event{ID: "x", EntityKind: KindLike, Operation: OpCreated}
	err = bare.DecodeState(&l)
	assert.True(t, errors.Is(err, ErrMalformed))

	garbled := Event{ID: "y", EntityKind: KindLike, Operation: OpCreated, After: []byte("{")}
	assert.True(t, errors.Is(garbled.DecodeState(&l), ErrMalformed))
}
