// Package listing implements paginated, searchable, multi-select list views
// over backend-owned records.
//
// A view is made of three parts that share one lock:
//
//   - Controller owns the current page, the active criteria and the request
//     sequence used to discard stale responses.
//   - Selection tracks selected record ids across page navigation.
//   - Dispatcher issues mutations and, on success, re-fetches the current
//     page and prunes the affected ids from the selection.
package listing

import (
	"context"
	"maps"
	"strings"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

// Record is a backend entity addressed by a unique identifier.
type Record[ID comparable] interface {
	RecordID() ID
}

// Page is one fetched window over a result set.
type Page[T any] = domain.PageResult[T]

// Criteria maps a backend filter field to its value. Empty values mean no
// filter on that field.
type Criteria map[string]string

// Normalize returns a copy with trimmed values and empty entries removed.
func (c Criteria) Normalize() Criteria {
	out := make(Criteria, len(c))
	for k, v := range c {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Equal reports whether both criteria select the same records.
func (c Criteria) Equal(o Criteria) bool {
	return maps.Equal(c.Normalize(), o.Normalize())
}

// Without returns a normalized copy with keys removed.
func (c Criteria) Without(keys ...string) Criteria {
	out := c.Normalize()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Get returns the value for key, or "".
func (c Criteria) Get(key string) string {
	return c[key]
}

// Clone returns an independent copy.
func (c Criteria) Clone() Criteria {
	if c == nil {
		return Criteria{}
	}
	return maps.Clone(c)
}

// Query is a single search request.
type Query struct {
	Page     int
	PageSize int
	Criteria Criteria
}

// Source searches records.
type Source[T any] interface {
	Search(ctx context.Context, q Query) (*Page[T], error)
}

// Mutator applies changes to records.
type Mutator[T any, ID comparable] interface {
	Update(ctx context.Context, rec T) error
	Delete(ctx context.Context, id ID) error
	DeleteMany(ctx context.Context, ids []ID) error
}

// Creator is implemented by mutators that can create records.
type Creator[T any] interface {
	Create(ctx context.Context, rec T) error
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, q Query) (*Page[T], error)

// Search calls f.
func (f SourceFunc[T]) Search(ctx context.Context, q Query) (*Page[T], error) {
	return f(ctx, q)
}
