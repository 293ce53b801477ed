package backend

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
)

// Sort orders accepted in the "sort" criterion.
const (
	SortDesc = "desc"
	SortAsc  = "asc"
)

// Reviews serves user comments.
type Reviews struct {
	c *Client
}

// Reviews returns the review resource.
func (c *Client) Reviews() *Reviews { return &Reviews{c: c} }

// Search fetches one page of reviews ordered by creation time. When the
// backend answers with every review as a bare array, filtering and paging
// happen here.
func (r *Reviews) Search(ctx context.Context, q listing.Query) (*listing.Page[domain.Review], error) {
	search := q.Criteria.Get("search")
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("size", strconv.Itoa(q.PageSize))
	if search != "" {
		params.Set("search", search)
	}

	resp, err := r.c.send(ctx, request{
		op:     "reviews.search",
		method: http.MethodGet,
		path:   "/api/comments",
		query:  params,
	})
	if err != nil {
		return nil, err
	}

	desc := q.Criteria.Get("sort") != SortAsc

	if body := bytes.TrimSpace(resp.body); len(body) > 0 && body[0] == '[' {
		all, err := DecodePage[domain.Review](body, q)
		if err != nil {
			return nil, err
		}
		return pageLocally(all.Items, search, desc, q), nil
	}

	page, err := DecodePage[domain.Review](resp.body, q)
	if err != nil {
		return nil, err
	}
	sortReviews(page.Items, desc)
	return page, nil
}

// DeleteMany deletes ids in one request. Any 2xx answer counts as success.
func (r *Reviews) DeleteMany(ctx context.Context, ids []string) error {
	return r.c.accept(ctx, request{
		op:     "reviews.delete_many",
		method: http.MethodPost,
		path:   "/api/comments/delete",
		body:   map[string][]string{"ids": ids},
	})
}

func (r *Reviews) Delete(ctx context.Context, id string) error {
	return r.DeleteMany(ctx, []string{id})
}

// Update is not offered by the backend.
func (r *Reviews) Update(context.Context, domain.Review) error {
	return listing.ErrUnsupported
}

func pageLocally(all []domain.Review, search string, desc bool, q listing.Query) *listing.Page[domain.Review] {
	if search != "" {
		needle := strings.ToLower(search)
		all = slices.DeleteFunc(all, func(rv domain.Review) bool {
			return !strings.Contains(strings.ToLower(rv.Content), needle)
		})
	}
	sortReviews(all, desc)

	size := max(q.PageSize, 1)
	total := len(all)
	start := min((max(q.Page, 1)-1)*size, total)
	end := min(start+size, total)
	pages := max((total+size-1)/size, 1)

	return &listing.Page[domain.Review]{
		Items:      slices.Clone(all[start:end]),
		Total:      int64(total),
		Page:       max(q.Page, 1),
		PageSize:   size,
		TotalPages: pages,
	}
}

// sortReviews orders by createdAt. Unparseable timestamps sort last in
// either direction.
func sortReviews(items []domain.Review, desc bool) {
	slices.SortStableFunc(items, func(a, b domain.Review) int {
		ta, okA := parseTime(a.CreatedAt)
		tb, okB := parseTime(b.CreatedAt)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		if desc {
			return tb.Compare(ta)
		}
		return ta.Compare(tb)
	})
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
