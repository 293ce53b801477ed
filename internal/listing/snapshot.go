package listing

import "github.com/luofanlf/hdbPilot-admin/internal/domain"

// Snapshot is an immutable copy of a view's state, ready for rendering.
type Snapshot[T Record[ID], ID comparable] struct {
	Records           []T
	Page              int
	PageSize          int
	Total             int64
	TotalPages        int
	Criteria          Criteria
	Selected          []ID
	AllOnPageSelected bool
	// Loaded is false until the first fetch completes.
	Loaded bool
	Err    error

	selected map[ID]struct{}
}

// IsSelected reports whether id is selected.
func (s Snapshot[T, ID]) IsSelected(id ID) bool {
	_, ok := s.selected[id]
	return ok
}

// SelectedCount returns the number of selected ids across all pages.
func (s Snapshot[T, ID]) SelectedCount() int {
	return len(s.Selected)
}

// ErrorMessage returns the message to show for a failed fetch, or "".
func (s Snapshot[T, ID]) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return domain.UserMessage(s.Err, loadFailMessage)
}

// HasPrev reports whether a previous page exists.
func (s Snapshot[T, ID]) HasPrev() bool { return s.Page > 1 }

// HasNext reports whether a next page exists.
func (s Snapshot[T, ID]) HasNext() bool { return s.Page < s.TotalPages }

// PageWindow returns up to size page numbers centred on the current page.
func (s Snapshot[T, ID]) PageWindow(size int) []int {
	total := max(s.TotalPages, 1)
	if size <= 0 || size > total {
		size = total
	}
	start := s.Page - size/2
	start = max(start, 1)
	if start+size-1 > total {
		start = total - size + 1
	}
	out := make([]int, 0, size)
	for p := start; p < start+size; p++ {
		out = append(out, p)
	}
	return out
}
