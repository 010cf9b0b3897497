// Package event defines the mutation event the store emits for every
// committed write, and its conversion to and from the outbox row.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/internal/model"
)

// ErrMalformed marks an event that can never be handled, such as one missing
// the snapshot its route requires. It is not retried.
var ErrMalformed = errors.New("event: malformed")

type EntityKind string

const (
	KindAccount      EntityKind = "account"
	KindPost         EntityKind = "post"
	KindComment      EntityKind = "comment"
	KindLike         EntityKind = "like"
	KindFollow       EntityKind = "follow"
	KindNotification EntityKind = "notification"
)

type Operation string

const (
	OpCreated Operation = "created"
	OpUpdated Operation = "updated"
	OpDeleted Operation = "deleted"
)

// Route is the dispatch key of an event.
type Route struct {
	Kind EntityKind
	Op   Operation
}

func (r Route) String() string { return string(r.Kind) + "." + string(r.Op) }

// Handler reacts to one delivered event. Handlers must tolerate duplicate
// delivery.
type Handler func(ctx context.Context, evt Event) error

// Event is one committed mutation with optional before/after snapshots.
type Event struct {
	ID         string
	EntityKind EntityKind
	Operation  Operation
	EntityID   string
	Before     json.RawMessage
	After      json.RawMessage
	OccurredAt time.Time
}

// New builds an event; a nil before or after leaves that snapshot absent.
func New(kind EntityKind, op Operation, entityID string, before, after any) (Event, error) {
	evt := Event{
		ID:         uuid.NewString(),
		EntityKind: kind,
		Operation:  op,
		EntityID:   entityID,
		OccurredAt: time.Now(),
	}
	var err error
	if evt.Before, err = snapshot(before); err != nil {
		return Event{}, fmt.Errorf("event: encode before snapshot: %w", err)
	}
	if evt.After, err = snapshot(after); err != nil {
		return Event{}, fmt.Errorf("event: encode after snapshot: %w", err)
	}
	return evt, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (e Event) Route() Route { return Route{Kind: e.EntityKind, Op: e.Operation} }

func (e Event) HasBefore() bool { return len(e.Before) > 0 }

func (e Event) HasAfter() bool { return len(e.After) > 0 }

// DecodeBefore decodes the before snapshot into v. ok is false when absent.
func (e Event) DecodeBefore(v any) (ok bool, err error) { return decode(e.Before, v) }

// DecodeAfter decodes the after snapshot into v. ok is false when absent.
func (e Event) DecodeAfter(v any) (ok bool, err error) { return decode(e.After, v) }

// DecodeState decodes the snapshot that describes the entity for this
// operation: after for created/updated, before for deleted.
func (e Event) DecodeState(v any) error {
	raw := e.After
	if e.Operation == OpDeleted {
		raw = e.Before
	}
	ok, err := decode(raw, v)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %s has no snapshot", ErrMalformed, e.Route(), e.ID)
	}
	return nil
}

func decode(raw json.RawMessage, v any) (bool, error) {
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return true, nil
}

// Record converts the event into its outbox row.
func (e Event) Record() *model.MutationEvent {
	return &model.MutationEvent{
		ID:         e.ID,
		EntityKind: string(e.EntityKind),
		Operation:  string(e.Operation),
		EntityID:   e.EntityID,
		Before:     rawPtr(e.Before),
		After:      rawPtr(e.After),
		Status:     model.EventStatusPending,
		CreatedAt:  e.OccurredAt,
	}
}

// FromRecord rebuilds an event from its outbox row.
func FromRecord(r *model.MutationEvent) Event {
	return Event{
		ID:         r.ID,
		EntityKind: EntityKind(r.EntityKind),
		Operation:  Operation(r.Operation),
		EntityID:   r.EntityID,
		Before:     ptrRaw(r.Before),
		After:      ptrRaw(r.After),
		OccurredAt: r.CreatedAt,
	}
}

func rawPtr(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func ptrRaw(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return nil
	}
	return json.RawMessage(*s)
}
