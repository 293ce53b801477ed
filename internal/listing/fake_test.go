package listing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

type item struct {
	ID   int
	Name string
}

func (i item) RecordID() int { return i.ID }

// fakeBackend serves and mutates an in-memory record set.
type fakeBackend struct {
	mu      sync.Mutex
	items   []item
	queries []Query

	searchErr error
	mutateErr error
	deleted   [][]int

	// gates blocks searches whose keyword matches until the channel is closed.
	gates map[string]chan struct{}
	// beforeDelete runs at the start of every DeleteMany call.
	beforeDelete func()
	// started receives the keyword of every search once it is running.
	started chan string
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{gates: map[string]chan struct{}{}}
	for i := 1; i <= n; i++ {
		b.items = append(b.items, item{ID: i, Name: fmt.Sprintf("user-%02d", i)})
	}
	return b
}

func (b *fakeBackend) Search(ctx context.Context, q Query) (*Page[item], error) {
	kw := q.Criteria.Get("keyword")

	b.mu.Lock()
	b.queries = append(b.queries, q)
	gate := b.gates[kw]
	started := b.started
	b.mu.Unlock()

	if started != nil {
		started <- kw
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.searchErr != nil {
		return nil, b.searchErr
	}

	var matched []item
	for _, it := range b.items {
		if kw == "" || strings.Contains(it.Name, kw) {
			matched = append(matched, it)
		}
	}
	total := len(matched)
	start := min((q.Page-1)*q.PageSize, total)
	end := min(start+q.PageSize, total)
	pages := max((total+q.PageSize-1)/q.PageSize, 1)

	return &Page[item]{
		Items:      slices.Clone(matched[start:end]),
		Total:      int64(total),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pages,
	}, nil
}

func (b *fakeBackend) Update(_ context.Context, rec item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mutateErr != nil {
		return b.mutateErr
	}
	for i := range b.items {
		if b.items[i].ID == rec.ID {
			b.items[i] = rec
			return nil
		}
	}
	return domain.NewApplicationError("user does not exist")
}

func (b *fakeBackend) Delete(_ context.Context, id int) error {
	return b.DeleteMany(context.Background(), []int{id})
}

func (b *fakeBackend) DeleteMany(_ context.Context, ids []int) error {
	if b.beforeDelete != nil {
		b.beforeDelete()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mutateErr != nil {
		return b.mutateErr
	}
	for _, id := range ids {
		if !slices.ContainsFunc(b.items, func(it item) bool { return it.ID == id }) {
			return domain.NewApplicationError(fmt.Sprintf("record %d not found", id))
		}
	}
	b.items = slices.DeleteFunc(b.items, func(it item) bool { return slices.Contains(ids, it.ID) })
	b.deleted = append(b.deleted, slices.Clone(ids))
	return nil
}

func (b *fakeBackend) lastQuery() Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[len(b.queries)-1]
}

func (b *fakeBackend) queryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queries)
}

func ids(items []item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
