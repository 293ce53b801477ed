package listpage

import (
	"errors"
	"maps"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
	"github.com/luofanlf/hdbPilot-admin/internal/session"
	"github.com/luofanlf/hdbPilot-admin/internal/workspace"
)

// Config describes one list view.
type Config[T listing.Record[ID], ID comparable] struct {
	// Resource keys the view in the workspace, e.g. "users".
	Resource string
	// Page is the template, e.g. "user/list.html". It must define a
	// "table" block.
	Page string
	// Base is the page path, e.g. "/users".
	Base string
	// Criteria lists the query parameters forwarded as search criteria.
	Criteria []string
	ParseID  func(string) (ID, error)
	NewView  func() *listing.View[T, ID]
	// Extra is merged into the data of every render.
	Extra gin.H
	// NoDelete leaves out the delete routes.
	NoDelete bool
	// Workspace resolves the caller's workspace; session.Workspace when nil.
	Workspace func(c *gin.Context) *workspace.Workspace
}

// Handler serves the routes every list view shares.
type Handler[T listing.Record[ID], ID comparable] struct {
	cfg Config[T, ID]
}

// New creates a Handler. It panics on an incomplete config.
func New[T listing.Record[ID], ID comparable](cfg Config[T, ID]) *Handler[T, ID] {
	if cfg.Resource == "" || cfg.Page == "" || cfg.Base == "" {
		panic("listpage.New: resource, page and base are required")
	}
	if cfg.ParseID == nil || cfg.NewView == nil {
		panic("listpage.New: ParseID and NewView are required")
	}
	if cfg.Workspace == nil {
		cfg.Workspace = session.Workspace
	}
	return &Handler[T, ID]{cfg: cfg}
}

// Register mounts the shared routes under api and pages and returns the
// signed-in page group so callers can add their own routes.
func (h *Handler[T, ID]) Register(api, pages *gin.RouterGroup) *gin.RouterGroup {
	api.GET("/"+h.cfg.Resource, session.RequireSignedIn(), h.API)

	g := pages.Group(h.cfg.Base, session.RequireSignedIn())
	g.GET("", h.List)
	g.POST("/:id/select", h.Toggle)
	g.POST("/select-page", h.TogglePage)
	g.POST("/clear-selection", h.ClearSelection)
	if !h.cfg.NoDelete {
		g.POST("/delete-selected", h.DeleteSelected)
		g.DELETE("/:id", h.Delete)
	}
	return g
}

// View returns the caller's view, creating it on first use. Without a
// workspace every call gets a fresh view.
func (h *Handler[T, ID]) View(c *gin.Context) *listing.View[T, ID] {
	ws := h.cfg.Workspace(c)
	if ws == nil {
		return h.cfg.NewView()
	}
	return workspace.View(ws, h.cfg.Resource, h.cfg.NewView)
}

// List renders the list page.
// GET /<base>?page=&<criteria>
func (h *Handler[T, ID]) List(c *gin.Context) {
	snap, _ := h.load(c)
	h.Render(c, http.StatusOK, snap, nil)
}

// API returns the caller's view as JSON.
// GET /api/v1/<resource>?page=&<criteria>
func (h *Handler[T, ID]) API(c *gin.Context) {
	snap, err := h.load(c)
	if err != nil && !errors.Is(err, listing.ErrStale) {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, NewSnapshotResponse(snap))
}

// Toggle flips the selection of one record.
// POST /<base>/:id/select
func (h *Handler[T, ID]) Toggle(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	v := h.View(c)
	if _, err := v.ToggleOne(id); err != nil {
		pkg.ToastOnly(c, http.StatusOK, domain.UserMessage(err, "Failed to update the selection."), pkg.ToastError)
		return
	}
	h.Render(c, http.StatusOK, v.Snapshot(), nil)
}

// TogglePage selects or deselects the whole current page.
// POST /<base>/select-page
func (h *Handler[T, ID]) TogglePage(c *gin.Context) {
	v := h.View(c)
	v.ToggleAllOnPage()
	h.Render(c, http.StatusOK, v.Snapshot(), nil)
}

// ClearSelection empties the selection.
// POST /<base>/clear-selection
func (h *Handler[T, ID]) ClearSelection(c *gin.Context) {
	v := h.View(c)
	v.ClearSelection()
	h.Render(c, http.StatusOK, v.Snapshot(), nil)
}

// Delete deletes one record.
// DELETE /<base>/:id?confirmed=true
func (h *Handler[T, ID]) Delete(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	v := h.View(c)
	n, _ := v.Mutations.DeleteOne(c.Request.Context(), id, Confirmed(c))
	h.Respond(c, v, n)
}

// DeleteSelected deletes every selected record.
// POST /<base>/delete-selected
func (h *Handler[T, ID]) DeleteSelected(c *gin.Context) {
	v := h.View(c)
	n, _ := v.Mutations.DeleteMany(c.Request.Context(), Confirmed(c))
	h.Respond(c, v, n)
}

// Respond answers a mutation. htmx gets a toast, plus the refreshed table
// on success, retargeted so forms outside the table can use it too. Other
// clients get the full page carrying the notice.
func (h *Handler[T, ID]) Respond(c *gin.Context, v *listing.View[T, ID], n listing.Notice) {
	if !pkg.IsHTMX(c) {
		h.render(c, http.StatusOK, v.Snapshot(), &n, false)
		return
	}
	if !n.OK() {
		pkg.ToastOnly(c, http.StatusOK, n.Message, pkg.ToastError)
		return
	}
	pkg.Toast(c, n.Message, pkg.ToastSuccess)
	c.Header("HX-Retarget", "#"+TableTarget)
	c.Header("HX-Reswap", "outerHTML")
	h.render(c, http.StatusOK, v.Snapshot(), nil, true)
}

// Render writes the page, or its table block for table-targeted htmx
// requests.
func (h *Handler[T, ID]) Render(c *gin.Context, status int, snap listing.Snapshot[T, ID], n *listing.Notice) {
	h.render(c, status, snap, n, WantsTable(c))
}

func (h *Handler[T, ID]) render(c *gin.Context, status int, snap listing.Snapshot[T, ID], n *listing.Notice, table bool) {
	data := gin.H{
		"View":     snap,
		"Base":     h.cfg.Base,
		"Resource": h.cfg.Resource,
		"Target":   TableTarget,
	}
	if n != nil {
		data["Notice"] = n
	}
	maps.Copy(data, h.cfg.Extra)

	name := h.cfg.Page
	if table {
		name = Fragment(name, TableBlock)
	}
	c.HTML(status, name, Data(c, data))
}

// load fetches according to the query string: criteria parameters start a
// search, a lone page parameter navigates, and no parameters reload the
// current page.
func (h *Handler[T, ID]) load(c *gin.Context) (listing.Snapshot[T, ID], error) {
	v := h.View(c)
	ctx := c.Request.Context()
	q := c.Request.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))

	searching := false
	criteria := listing.Criteria{}
	for _, key := range h.cfg.Criteria {
		if q.Has(key) {
			searching = true
			criteria[key] = q.Get(key)
		}
	}

	switch {
	case searching:
		return v.Fetch(ctx, page, criteria)
	case q.Has("page"):
		return v.Navigate(ctx, page)
	default:
		return v.Refetch(ctx)
	}
}

func (h *Handler[T, ID]) id(c *gin.Context) (ID, bool) {
	id, err := h.cfg.ParseID(c.Param("id"))
	if err != nil {
		pkg.ToastOnly(c, http.StatusOK, "Invalid record id.", pkg.ToastError)
		return id, false
	}
	return id, true
}

// Confirmed reports whether the request carries confirmed=true in its form
// or query.
func Confirmed(c *gin.Context) bool {
	v := c.PostForm("confirmed")
	if v == "" {
		v = c.Query("confirmed")
	}
	ok, _ := strconv.ParseBool(v)
	return ok
}

// ParseInt64ID parses a positive integer id.
func ParseInt64ID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("invalid id: " + s)
	}
	return id, nil
}

// ParseStringID accepts any non-blank id.
func ParseStringID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", domain.NewValidationError("id is required")
	}
	return s, nil
}

// SnapshotResponse is the JSON form of a list view.
type SnapshotResponse[T any, ID comparable] struct {
	Items      []T               `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
	Criteria   map[string]string `json:"criteria"`
	Selected   []ID              `json:"selected"`
	Error      string            `json:"error,omitempty"`
}

// NewSnapshotResponse converts snap for JSON output.
func NewSnapshotResponse[T listing.Record[ID], ID comparable](snap listing.Snapshot[T, ID]) SnapshotResponse[T, ID] {
	return SnapshotResponse[T, ID]{
		Items:      snap.Records,
		Page:       snap.Page,
		PageSize:   snap.PageSize,
		Total:      snap.Total,
		TotalPages: snap.TotalPages,
		Criteria:   snap.Criteria,
		Selected:   snap.Selected,
		Error:      snap.ErrorMessage(),
	}
}
