package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
)

// CreateNotification stores n. A caller supplied ID makes the call
// idempotent: a second create with the same ID returns ErrDuplicate.
func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if err := s.check(n); err != nil {
		return nil, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	err := s.write(ctx, func(t *txn) error {
		ok, err := t.accounts().Exists(t.ctx, n.RecipientID)
		if err := requireExists(ok, err, "recipient "+n.RecipientID); err != nil {
			return err
		}
		subject, err := s.registry.Bind(t.tx, n.Subject())
		if err != nil {
			return err
		}
		ok, err = subject.Exists(t.ctx, n.SubjectID)
		if err := requireExists(ok, err, n.Subject().String()); err != nil {
			return err
		}

		inserted, err := t.notifications().Create(t.ctx, n)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrDuplicate
		}
		return t.emit(event.KindNotification, event.OpCreated, n.ID, nil, n)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	n, err := s.notifications.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "notification "+id)
	}
	return n, nil
}

// SetNotificationRead sets IsRead and always emits an updated event carrying
// both snapshots, even when the flag does not change.
func (s *Store) SetNotificationRead(ctx context.Context, id string, isRead bool) (*model.Notification, error) {
	var after *model.Notification
	err := s.write(ctx, func(t *txn) error {
		before, err := t.notifications().Get(t.ctx, id)
		if err != nil {
			return notFound(err, "notification "+id)
		}
		var setErr error
		after, setErr = t.setRead(before, isRead)
		return setErr
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	return s.SetNotificationRead(ctx, id, true)
}

// MarkAllNotificationsRead marks every unread notification of recipientID as
// read and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	var changed int
	err := s.write(ctx, func(t *txn) error {
		unread, err := t.notifications().ListUnread(t.ctx, recipientID)
		if err != nil {
			return err
		}
		for _, n := range unread {
			if _, err := t.setRead(n, true); err != nil {
				return err
			}
		}
		changed = len(unread)
		return nil
	})
	return changed, err
}

func (t *txn) setRead(before *model.Notification, isRead bool) (*model.Notification, error) {
	after := *before
	after.IsRead = isRead
	if err := t.notifications().SetRead(t.ctx, before.ID, isRead); err != nil {
		return nil, err
	}
	if err := t.emit(event.KindNotification, event.OpUpdated, before.ID, before, &after); err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	return s.write(ctx, func(t *txn) error {
		n, err := t.notifications().Get(t.ctx, id)
		if err != nil {
			return notFound(err, "notification "+id)
		}
		return t.remove(event.KindNotification, n.ID, n)
	})
}

// ListNotifications returns recipientID's notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, recipientID string, page, size int) ([]*model.Notification, error) {
	offset, limit := pageOffset(page, size)
	return s.notifications.ListByRecipient(ctx, recipientID, offset, limit)
}
