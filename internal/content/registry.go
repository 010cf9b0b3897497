package content

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// Resolver is the minimum every registered kind provides.
type Resolver interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// LikeCounters is implemented by kinds that carry LikeCount/DislikeCount.
// RecomputeLikeCounts counts the current like rows of each type for the
// target, persists both counts and returns them. It returns ErrTargetGone
// when the target row does not exist.
type LikeCounters interface {
	RecomputeLikeCounts(ctx context.Context, id string) (likes, dislikes int64, err error)
}

// CommentCounters is implemented by kinds that carry CommentCount.
type CommentCounters interface {
	RecomputeCommentCount(ctx context.Context, id string) (int64, error)
}

// CountsReader is implemented by kinds whose persisted counters are cached.
// Counts returns ErrTargetGone when the target row does not exist.
type CountsReader interface {
	Counts(ctx context.Context, id string) (Counts, error)
}

// Binding binds a kind's operations to a database handle, usually a transaction.
// The returned value may additionally implement LikeCounters, CommentCounters
// and CountsReader.
type Binding func(db *gorm.DB) Resolver

// Registry maps kinds to their bindings. Registration happens at wiring time.
type Registry struct {
	mu    sync.RWMutex
	kinds map[Kind]Binding
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[Kind]Binding)}
}

// Register declares a kind. Registering the same kind twice is a configuration error.
func (r *Registry) Register(kind Kind, b Binding) error {
	if kind == "" || b == nil {
		return &ConfigurationError{Kind: kind, Reason: "empty kind or nil binding"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.kinds[kind]; dup {
		return &ConfigurationError{Kind: kind, Reason: "already registered"}
	}
	r.kinds[kind] = b
	return nil
}

// MustRegister is Register for wiring code; it panics on error.
func (r *Registry) MustRegister(kind Kind, b Binding) {
	if err := r.Register(kind, b); err != nil {
		panic(err)
	}
}

// Resolve returns the binding for ref's kind, or a *ConfigurationError.
func (r *Registry) Resolve(ref Ref) (Binding, error) {
	r.mu.RLock()
	b, ok := r.kinds[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Kind: ref.Kind, Reason: "not registered"}
	}
	return b, nil
}

// Bind resolves ref and binds it to db in one step.
func (r *Registry) Bind(db *gorm.DB, ref Ref) (Resolver, error) {
	b, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return b(db), nil
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
