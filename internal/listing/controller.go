package listing

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

const (
	defaultPageSize = 10
	defaultTimeout  = 10 * time.Second
	loadFailMessage = "Failed to load data. Please try again."
)

// ErrStale is returned by Fetch when a newer fetch was issued while the
// response was in flight. The response has been discarded.
var ErrStale = errors.New("listing: stale response discarded")

// ErrUnknownRecord is returned when a record id is not on the current page.
var ErrUnknownRecord = domain.NewAppError(domain.CodeNotFound, "record is not on the current page", nil)

// Options configures a Controller.
type Options struct {
	// Name identifies the view in logs, e.g. "users".
	Name     string
	PageSize int
	// Timeout bounds each fetch. A timed-out fetch is a network error.
	Timeout time.Duration
	// OrderKeys are criteria that only reorder the result set, e.g. "sort".
	// Changing them keeps the selection.
	OrderKeys []string
	Logger    *slog.Logger
}

// Controller owns the current page, the active criteria and the selection of
// one list view. All methods are safe for concurrent use.
type Controller[T Record[ID], ID comparable] struct {
	source   Source[T]
	name     string
	pageSize int
	timeout  time.Duration
	logger   *slog.Logger
	order    []string

	mu         sync.Mutex
	seq        uint64
	records    []T
	page       int
	total      int64
	totalPages int
	criteria   Criteria
	err        error
	loaded     bool
	// known is true when the last completed fetch succeeded, so totalPages
	// can bound navigation.
	known     bool
	selection *Selection[ID]
}

// NewController creates a Controller reading from src.
func NewController[T Record[ID], ID comparable](src Source[T], opts Options) *Controller[T, ID] {
	if src == nil {
		panic("listing.NewController: source must not be nil")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller[T, ID]{
		source:     src,
		name:       opts.Name,
		pageSize:   opts.PageSize,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		order:      opts.OrderKeys,
		page:       1,
		totalPages: 1,
		criteria:   Criteria{},
		selection:  NewSelection[ID](),
	}
}

// Fetch requests page with criteria and replaces the current page with the
// result.
//
// A change of criteria clears the selection unless only order keys
// changed. When the criteria are unchanged
// and the last fetch succeeded, page is clamped to [1, TotalPages].
// If another Fetch starts before this one completes, the response is
// discarded and ErrStale is returned along with the current state.
// On failure the page is reset to an empty first page with the error
// recorded in the snapshot.
func (c *Controller[T, ID]) Fetch(ctx context.Context, page int, criteria Criteria) (Snapshot[T, ID], error) {
	criteria = criteria.Normalize()

	c.mu.Lock()
	if !criteria.Equal(c.criteria) {
		if !criteria.Without(c.order...).Equal(c.criteria.Without(c.order...)) {
			c.selection.Clear()
		}
		c.criteria = criteria
	} else if c.known && page > c.totalPages {
		page = c.totalPages
	}
	if page < 1 {
		page = 1
	}
	c.seq++
	seq := c.seq
	q := Query{Page: page, PageSize: c.pageSize, Criteria: criteria.Clone()}
	c.mu.Unlock()

	res, err := c.search(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		c.logger.DebugContext(ctx, "stale list response discarded",
			slog.String("view", c.name),
			slog.Uint64("seq", seq),
			slog.Uint64("latest", c.seq),
		)
		return c.snapshotLocked(), ErrStale
	}

	if err != nil {
		c.failLocked(err)
		c.logger.WarnContext(ctx, "list fetch failed",
			slog.String("view", c.name),
			slog.Int("page", q.Page),
			slog.Any("error", err),
		)
		return c.snapshotLocked(), err
	}

	c.applyLocked(res, q)
	return c.snapshotLocked(), nil
}

// Navigate fetches page with the active criteria.
func (c *Controller[T, ID]) Navigate(ctx context.Context, page int) (Snapshot[T, ID], error) {
	c.mu.Lock()
	criteria := c.criteria.Clone()
	c.mu.Unlock()
	return c.Fetch(ctx, page, criteria)
}

// Refetch reloads the current page with the active criteria. When the page
// no longer exists, for instance after deleting the last records of the
// final page, it loads the last remaining page instead.
func (c *Controller[T, ID]) Refetch(ctx context.Context) (Snapshot[T, ID], error) {
	c.mu.Lock()
	page := c.page
	criteria := c.criteria.Clone()
	c.mu.Unlock()

	snap, err := c.Fetch(ctx, page, criteria)
	if err != nil {
		return snap, err
	}
	if page > snap.TotalPages && len(snap.Records) == 0 {
		return c.Fetch(ctx, snap.TotalPages, criteria)
	}
	return snap, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller[T, ID]) Snapshot() Snapshot[T, ID] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Find returns the record with id if it is on the current page.
func (c *Controller[T, ID]) Find(id ID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// ToggleOne flips the selection of a record on the current page.
func (c *Controller[T, ID]) ToggleOne(id ID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.onPageLocked(id) && !c.selection.Contains(id) {
		return false, ErrUnknownRecord
	}
	return c.selection.ToggleOne(id), nil
}

// ToggleAllOnPage selects every record on the current page, or deselects
// them when all are already selected.
func (c *Controller[T, ID]) ToggleAllOnPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.ToggleAllOnPage(c.pageIDsLocked())
}

// ClearSelection empties the selection.
func (c *Controller[T, ID]) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

// SelectedIDs returns the selected ids in selection order.
func (c *Controller[T, ID]) SelectedIDs() []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IDs()
}

// Criteria returns the active criteria.
func (c *Controller[T, ID]) Criteria() Criteria {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criteria.Clone()
}

func (c *Controller[T, ID]) pruneSelection(ids []ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Prune(ids...)
}

func (c *Controller[T, ID]) search(ctx context.Context, q Query) (res *Page[T], err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err = c.source.Search(ctx, q)
	if err != nil {
		return nil, normalizeFetchError(err)
	}
	if res == nil {
		return nil, domain.NewResponseFormatError(errors.New("empty page"))
	}
	return res, nil
}

func normalizeFetchError(err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	// Timeouts, cancellations and transport errors all surface as network failures.
	return domain.NewNetworkError(err)
}

func (c *Controller[T, ID]) applyLocked(res *Page[T], q Query) {
	records := res.Items
	if records == nil {
		records = []T{}
	}
	page := res.Page
	if page < 1 {
		page = q.Page
	}
	totalPages := res.TotalPages
	if totalPages < 1 {
		totalPages = pageCount(res.Total, q.PageSize)
	}

	c.records = records
	c.page = page
	c.total = res.Total
	c.totalPages = totalPages
	c.err = nil
	c.loaded = true
	c.known = true
}

func (c *Controller[T, ID]) failLocked(err error) {
	c.records = []T{}
	c.page = 1
	c.total = 0
	c.totalPages = 1
	c.err = err
	c.loaded = true
	c.known = false
}

func (c *Controller[T, ID]) onPageLocked(id ID) bool {
	for _, r := range c.records {
		if r.RecordID() == id {
			return true
		}
	}
	return false
}

func (c *Controller[T, ID]) pageIDsLocked() []ID {
	ids := make([]ID, 0, len(c.records))
	for _, r := range c.records {
		ids = append(ids, r.RecordID())
	}
	return ids
}

func (c *Controller[T, ID]) snapshotLocked() Snapshot[T, ID] {
	records := make([]T, len(c.records))
	copy(records, c.records)

	selected := c.selection.IDs()
	set := make(map[ID]struct{}, len(selected))
	for _, id := range selected {
		set[id] = struct{}{}
	}

	return Snapshot[T, ID]{
		Records:           records,
		Page:              c.page,
		PageSize:          c.pageSize,
		Total:             c.total,
		TotalPages:        c.totalPages,
		Criteria:          c.criteria.Clone(),
		Selected:          selected,
		AllOnPageSelected: c.selection.AllSelected(c.pageIDsLocked()),
		Loaded:            c.loaded,
		Err:               c.err,
		selected:          set,
	}
}

// pageCount returns ceil(total/size), at least 1.
func pageCount(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return int(math.Ceil(float64(total) / float64(size)))
}
