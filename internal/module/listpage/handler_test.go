package listpage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
	"github.com/luofanlf/hdbPilot-admin/internal/workspace"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (i item) RecordID() int64 { return i.ID }

// store is an in-memory backend for items.
type store struct {
	mu        sync.Mutex
	items     []item
	deleteErr error
}

func newStore(n int) *store {
	s := &store{}
	for i := 1; i <= n; i++ {
		s.items = append(s.items, item{ID: int64(i), Name: fmt.Sprintf("item-%d", i)})
	}
	return s
}

func (s *store) Search(_ context.Context, q listing.Query) (*listing.Page[item], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []item
	for _, it := range s.items {
		if strings.Contains(it.Name, q.Criteria.Get("name")) {
			matched = append(matched, it)
		}
	}
	start := min((q.Page-1)*q.PageSize, len(matched))
	end := min(start+q.PageSize, len(matched))
	return pkg.NewPageResult(matched[start:end], int64(len(matched)), domain.PageRequest{Page: q.Page, PageSize: q.PageSize}), nil
}

func (s *store) Update(context.Context, item) error { return nil }

func (s *store) Delete(ctx context.Context, id int64) error {
	return s.DeleteMany(ctx, []int64{id})
}

func (s *store) DeleteMany(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for _, id := range ids {
		for i, it := range s.items {
			if it.ID == id {
				s.items = append(s.items[:i], s.items[i+1:]...)
				break
			}
		}
	}
	return nil
}

const stubTemplates = `{{define "item/list.html"}}page:{{range .View.Records}}{{.ID}},{{end}}{{with .Notice}}notice:{{.Message}}{{end}}{{end}}` +
	`{{define "item/list.html#table"}}table:{{range .View.Records}}{{.ID}}{{if $.View.IsSelected .RecordID}}*{{end}},{{end}}{{end}}`

func setupRouter(t *testing.T, s *store) (*gin.Engine, *Handler[item, int64]) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ws := workspace.NewStore(time.Hour, nil).Get("")
	h := New(Config[item, int64]{
		Resource: "items",
		Page:     "item/list.html",
		Base:     "/items",
		Criteria: []string{"name"},
		ParseID:  ParseInt64ID,
		NewView: func() *listing.View[item, int64] {
			return listing.NewView[item, int64](s, s, listing.ViewConfig{
				Options:  listing.Options{Name: "items", PageSize: 10},
				Messages: listing.Messages{DeleteOK: "Item deleted.", DeleteManyOK: "Items deleted."},
			})
		},
		Workspace: func(*gin.Context) *workspace.Workspace { return ws },
	})

	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New("").Parse(stubTemplates)))
	r.GET("/api/v1/items", h.API)
	r.GET("/items", h.List)
	r.POST("/items/:id/select", h.Toggle)
	r.POST("/items/select-page", h.TogglePage)
	r.POST("/items/clear-selection", h.ClearSelection)
	r.POST("/items/delete-selected", h.DeleteSelected)
	r.DELETE("/items/:id", h.Delete)
	return r, h
}

func serve(r *gin.Engine, method, target string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", TableTarget)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func toast(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var data map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &data); err != nil {
		t.Fatalf("failed to parse HX-Trigger %q: %v", w.Header().Get("HX-Trigger"), err)
	}
	return data["showToast"]
}

func TestList_SearchNavigateReload(t *testing.T) {
	r, _ := setupRouter(t, newStore(25))

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"first load", "/items", "page:1,2,3,4,5,6,7,8,9,10,"},
		{"navigate", "/items?page=3", "page:21,22,23,24,25,"},
		{"reload keeps page", "/items", "page:21,22,23,24,25,"},
		{"page past the end is clamped", "/items?page=9", "page:21,22,23,24,25,"},
		{"search starts at page 1", "/items?name=item-1", "page:1,10,11,12,13,14,15,16,17,18,"},
		{"navigate keeps criteria", "/items?page=2", "page:19,"},
		{"empty search clears criteria", "/items?name=", "page:1,2,3,4,5,6,7,8,9,10,"},
	}
	for _, tt := range tests {
		w := serve(r, http.MethodGet, tt.target, false)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.name, w.Code)
		}
		if got := w.Body.String(); got != tt.want {
			t.Errorf("%s: body = %q; want %q", tt.name, got, tt.want)
		}
	}
}

func TestToggle_RendersTable(t *testing.T) {
	r, h := setupRouter(t, newStore(5))
	serve(r, http.MethodGet, "/items", false)

	w := serve(r, http.MethodPost, "/items/3/select", true)
	if got := w.Body.String(); got != "table:1,2,3*,4,5," {
		t.Errorf("body = %q", got)
	}

	w = serve(r, http.MethodPost, "/items/select-page", true)
	if got := w.Body.String(); got != "table:1*,2*,3*,4*,5*," {
		t.Errorf("body after select-page = %q", got)
	}

	serve(r, http.MethodPost, "/items/clear-selection", true)
	gc, _ := gin.CreateTestContext(httptest.NewRecorder())
	if ids := h.View(gc).SelectedIDs(); len(ids) != 0 {
		t.Errorf("selection = %v; want empty", ids)
	}
}

func TestToggle_UnknownRecord(t *testing.T) {
	r, _ := setupRouter(t, newStore(5))
	serve(r, http.MethodGet, "/items", false)

	w := serve(r, http.MethodPost, "/items/99/select", true)

	if w.Header().Get("HX-Reswap") != "none" {
		t.Error("expected HX-Reswap none")
	}
	if got := toast(t, w); got["type"] != pkg.ToastError {
		t.Errorf("toast = %v", got)
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	s := newStore(5)
	r, _ := setupRouter(t, s)
	serve(r, http.MethodGet, "/items", false)

	w := serve(r, http.MethodDelete, "/items/3", true)
	if got := toast(t, w); got["message"] != "Please confirm the deletion first." || got["type"] != pkg.ToastError {
		t.Errorf("toast = %v", got)
	}
	if len(s.items) != 5 {
		t.Fatalf("unconfirmed delete removed an item")
	}

	w = serve(r, http.MethodDelete, "/items/3?confirmed=true", true)
	if got := toast(t, w); got["message"] != "Item deleted." || got["type"] != pkg.ToastSuccess {
		t.Errorf("toast = %v", got)
	}
	if got := w.Body.String(); got != "table:1,2,4,5," {
		t.Errorf("body = %q", got)
	}
	if got := w.Header().Get("HX-Retarget"); got != "#"+TableTarget {
		t.Errorf("HX-Retarget = %q", got)
	}
}

func TestDeleteSelected_FailureKeepsSelection(t *testing.T) {
	s := newStore(5)
	r, h := setupRouter(t, s)
	serve(r, http.MethodGet, "/items", false)
	serve(r, http.MethodPost, "/items/2/select", true)
	serve(r, http.MethodPost, "/items/4/select", true)

	s.deleteErr = domain.NewApplicationError("Item 4 is locked")
	w := serve(r, http.MethodPost, "/items/delete-selected?confirmed=true", true)

	if got := toast(t, w); got["message"] != "Item 4 is locked" {
		t.Errorf("toast = %v", got)
	}
	gc, _ := gin.CreateTestContext(httptest.NewRecorder())
	if ids := h.View(gc).SelectedIDs(); len(ids) != 2 {
		t.Errorf("selection = %v; want [2 4]", ids)
	}

	s.deleteErr = nil
	w = serve(r, http.MethodPost, "/items/delete-selected?confirmed=true", true)
	if got := w.Body.String(); got != "table:1,3,5," {
		t.Errorf("body = %q", got)
	}
	if ids := h.View(gc).SelectedIDs(); len(ids) != 0 {
		t.Errorf("selection = %v; want empty", ids)
	}
}

func TestDelete_WithoutHTMXRendersNotice(t *testing.T) {
	r, _ := setupRouter(t, newStore(3))
	serve(r, http.MethodGet, "/items", false)

	w := serve(r, http.MethodDelete, "/items/1?confirmed=true", false)

	if got := w.Body.String(); got != "page:2,3,notice:Item deleted." {
		t.Errorf("body = %q", got)
	}
}

func TestDelete_InvalidID(t *testing.T) {
	r, _ := setupRouter(t, newStore(3))

	w := serve(r, http.MethodDelete, "/items/abc?confirmed=true", true)

	if got := toast(t, w); got["message"] != "Invalid record id." {
		t.Errorf("toast = %v", got)
	}
}

func TestAPI(t *testing.T) {
	r, _ := setupRouter(t, newStore(12))

	w := serve(r, http.MethodGet, "/api/v1/items?page=2", false)

	var resp struct {
		Code int                           `json:"code"`
		Data SnapshotResponse[item, int64] `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != pkg.CodeOK || resp.Data.Page != 2 || resp.Data.TotalPages != 2 || resp.Data.Total != 12 {
		t.Errorf("unexpected snapshot: %+v", resp.Data)
	}
	if len(resp.Data.Items) != 2 || resp.Data.Items[0].ID != 11 {
		t.Errorf("items = %+v", resp.Data.Items)
	}
}

type failingSource struct{}

func (failingSource) Search(context.Context, listing.Query) (*listing.Page[item], error) {
	return nil, errors.New("connection refused")
}

func TestAPI_FetchFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(Config[item, int64]{
		Resource: "items",
		Page:     "item/list.html",
		Base:     "/items",
		ParseID:  ParseInt64ID,
		NewView: func() *listing.View[item, int64] {
			return listing.NewView[item, int64](failingSource{}, listing.ReadOnly[item, int64]{}, listing.ViewConfig{})
		},
		Workspace: func(*gin.Context) *workspace.Workspace { return nil },
	})
	r := gin.New()
	r.GET("/api/v1/items", h.API)

	w := serve(r, http.MethodGet, "/api/v1/items", false)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d; want 502", w.Code)
	}
}

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(Config[item, int64]{
		Resource: "items",
		Page:     "item/list.html",
		Base:     "/items",
		ParseID:  ParseInt64ID,
		NewView:  func() *listing.View[item, int64] { return nil },
	})
	g := h.Register(r.Group("/api/v1"), r.Group("/"))
	g.GET("/:id/edit", func(*gin.Context) {})

	registered := map[string]bool{}
	for _, ri := range r.Routes() {
		registered[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/items",
		"GET /items",
		"POST /items/:id/select",
		"POST /items/select-page",
		"POST /items/clear-selection",
		"POST /items/delete-selected",
		"DELETE /items/:id",
		"GET /items/:id/edit",
	} {
		if !registered[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}

func TestRegister_NoDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(Config[item, int64]{
		Resource: "items",
		Page:     "item/list.html",
		Base:     "/items",
		ParseID:  ParseInt64ID,
		NewView:  func() *listing.View[item, int64] { return nil },
		NoDelete: true,
	}).Register(r.Group("/api/v1"), r.Group("/"))

	for _, ri := range r.Routes() {
		if ri.Method == "DELETE" || ri.Path == "/items/delete-selected" {
			t.Errorf("unexpected route %s %s", ri.Method, ri.Path)
		}
	}
}

func TestNew_PanicsOnIncompleteConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(Config[item, int64]{Resource: "items"})
}

func TestConfirmed(t *testing.T) {
	tests := []struct {
		target string
		body   string
		want   bool
	}{
		{"/x", "", false},
		{"/x?confirmed=true", "", true},
		{"/x?confirmed=1", "", true},
		{"/x", "confirmed=true", true},
		{"/x?confirmed=true", "confirmed=false", false},
		{"/x?confirmed=yes", "", false},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
		c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if got := Confirmed(c); got != tt.want {
			t.Errorf("Confirmed(%s, %q) = %v; want %v", tt.target, tt.body, got, tt.want)
		}
	}
}

func TestParseIDs(t *testing.T) {
	if id, err := ParseInt64ID(" 42 "); err != nil || id != 42 {
		t.Errorf("ParseInt64ID = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := ParseInt64ID(bad); !domain.IsValidation(err) {
			t.Errorf("ParseInt64ID(%q) error = %v; want validation error", bad, err)
		}
	}
	if id, err := ParseStringID(" c-1 "); err != nil || id != "c-1" {
		t.Errorf("ParseStringID = %q, %v", id, err)
	}
	if _, err := ParseStringID("  "); err == nil {
		t.Error("expected error for blank id")
	}
}

func TestOptions_ViewConfig(t *testing.T) {
	called := false
	o := Options{PageSize: 5, Timeout: time.Second, OnMutation: func(context.Context, listing.Outcome) { called = true }}

	cfg := o.ViewConfig("reviews", listing.Messages{DeleteOK: "gone"})

	if cfg.Name != "reviews" || cfg.PageSize != 5 || cfg.Timeout != time.Second {
		t.Errorf("options = %+v", cfg.Options)
	}
	if cfg.Messages.DeleteOK != "gone" {
		t.Errorf("messages = %+v", cfg.Messages)
	}
	cfg.OnMutation(context.Background(), listing.Outcome{})
	if !called {
		t.Error("hook not carried over")
	}
}

func TestData(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/users?page=2", nil)

	data := Data(c, gin.H{"Path": "/override", "Extra": 1})
	if data["Path"] != "/override" || data["Extra"] != 1 {
		t.Errorf("extra values not merged: %v", data)
	}
	if data["Audit"] != false {
		t.Errorf("Audit = %v, want false without the context flag", data["Audit"])
	}
	if _, ok := data["User"]; ok {
		t.Error("User set for a signed-out request")
	}

	c.Set(AuditEnabledKey, true)
	if got := Data(c, nil)["Audit"]; got != true {
		t.Errorf("Audit = %v, want true", got)
	}
}
