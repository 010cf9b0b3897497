// Package content identifies engageable entities by a (kind, id) pair and
// resolves each kind to the counter operations it supports.
package content

import (
	"fmt"
	"strings"
)

// Kind tags the entity a Ref points at.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
	KindAccount Kind = "account"
)

// Ref is a polymorphic reference to any engageable entity.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func NewRef(kind Kind, id string) Ref { return Ref{Kind: kind, ID: id} }

func (r Ref) Valid() bool { return r.Kind != "" && r.ID != "" }

// Key is the stable "<kind>:<id>" form used for locks and cache keys.
func (r Ref) Key() string { return string(r.Kind) + ":" + r.ID }

func (r Ref) String() string { return r.Key() }

// ParseRef parses the Key form.
func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || kind == "" || id == "" {
		return Ref{}, fmt.Errorf("content: malformed ref %q", s)
	}
	return Ref{Kind: Kind(kind), ID: id}, nil
}
