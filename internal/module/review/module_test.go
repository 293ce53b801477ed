package review

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
	"github.com/luofanlf/hdbPilot-admin/internal/workspace"
)

type mockBackend struct {
	mu      sync.Mutex
	reviews []domain.Review
	deleted [][]string
	queries []listing.Query
}

func newMockBackend() *mockBackend {
	return &mockBackend{reviews: []domain.Review{
		{ID: "r1", Rating: 5, Content: `Great <b>flat</b><script>alert(1)</script>`},
		{ID: "r2", Rating: 2, Content: "Noisy & dusty"},
		{ID: "r3", Rating: 4, Content: "Near MRT"},
	}}
}

func (m *mockBackend) Search(_ context.Context, q listing.Query) (*listing.Page[domain.Review], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	items := slices.Clone(m.reviews)
	if q.Criteria.Get("sort") == "asc" {
		slices.Reverse(items)
	}
	return pkg.NewPageResult(items, int64(len(items)), domain.PageRequest{Page: q.Page, PageSize: q.PageSize}), nil
}

func (m *mockBackend) Update(context.Context, domain.Review) error { return listing.ErrUnsupported }

func (m *mockBackend) Delete(ctx context.Context, id string) error {
	return m.DeleteMany(ctx, []string{id})
}

func (m *mockBackend) DeleteMany(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ids)
	m.reviews = slices.DeleteFunc(m.reviews, func(r domain.Review) bool { return slices.Contains(ids, string(r.ID)) })
	return nil
}

func setupTestRouter(t *testing.T, b *mockBackend) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New("").Parse(
		`{{define "review/list.html"}}list{{end}}` +
			`{{define "review/list.html#table"}}{{range .View.Records}}{{.ID}}:{{.Content}};{{end}}{{end}}`,
	)))

	ws := workspace.NewStore(time.Hour, nil).Get("")
	mod := NewModule(b, listpage.Options{
		PageSize:  5,
		Workspace: func(*gin.Context) *workspace.Workspace { return ws },
	})
	r.GET("/reviews", mod.list.List)
	r.POST("/reviews/:id/select", mod.list.Toggle)
	r.POST("/reviews/delete-selected", mod.list.DeleteSelected)
	return r
}

func htmxRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", listpage.TableTarget)
	r.ServeHTTP(w, req)
	return w
}

func TestList_SanitisesContent(t *testing.T) {
	r := setupTestRouter(t, newMockBackend())

	w := htmxRequest(r, http.MethodGet, "/reviews")

	want := "r1:Great flat;r2:Noisy &amp; dusty;r3:Near MRT;"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q; want %q", got, want)
	}
}

func TestList_SortCriterion(t *testing.T) {
	b := newMockBackend()
	r := setupTestRouter(t, b)

	w := htmxRequest(r, http.MethodGet, "/reviews?search=&sort=asc")

	if got := w.Body.String(); !strings.HasPrefix(got, "r3:") {
		t.Errorf("body = %q", got)
	}
	if q := b.queries[len(b.queries)-1]; q.Criteria.Get("sort") != "asc" {
		t.Errorf("criteria = %v", q.Criteria)
	}
}

func TestList_SortKeepsSelection(t *testing.T) {
	b := newMockBackend()
	r := setupTestRouter(t, b)
	htmxRequest(r, http.MethodGet, "/reviews?search=&sort=desc")
	htmxRequest(r, http.MethodPost, "/reviews/r2/select")

	htmxRequest(r, http.MethodGet, "/reviews?search=&sort=asc")
	htmxRequest(r, http.MethodPost, "/reviews/delete-selected?confirmed=true")

	if len(b.deleted) != 1 || !slices.Equal(b.deleted[0], []string{"r2"}) {
		t.Fatalf("deleted = %v; want [[r2]]", b.deleted)
	}
}

func TestDeleteSelected(t *testing.T) {
	b := newMockBackend()
	r := setupTestRouter(t, b)
	htmxRequest(r, http.MethodGet, "/reviews")
	htmxRequest(r, http.MethodPost, "/reviews/r1/select")
	htmxRequest(r, http.MethodPost, "/reviews/r3/select")

	w := htmxRequest(r, http.MethodPost, "/reviews/delete-selected?confirmed=true")

	if len(b.deleted) != 1 || !slices.Equal(b.deleted[0], []string{"r1", "r3"}) {
		t.Fatalf("deleted = %v", b.deleted)
	}
	if !strings.Contains(w.Header().Get("HX-Trigger"), "Selected reviews deleted successfully") {
		t.Errorf("HX-Trigger = %q", w.Header().Get("HX-Trigger"))
	}
	if got := w.Body.String(); got != "r2:Noisy &amp; dusty;" {
		t.Errorf("body = %q", got)
	}
}

func TestReviewModuleRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewModule(newMockBackend(), listpage.Options{}).RegisterRoutes(r.Group("/api/v1"), r.Group("/"))

	registered := make(map[string]bool)
	for _, ri := range r.Routes() {
		registered[ri.Method+":"+ri.Path] = true
	}
	for _, want := range []string{"GET:/api/v1/reviews", "GET:/reviews", "DELETE:/reviews/:id", "POST:/reviews/delete-selected"} {
		if !registered[want] {
			t.Errorf("expected route %s to be registered", want)
		}
	}
}

func TestNewModule_PanicsOnNilBackend(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewModule() expected panic for nil backend, got none")
		}
	}()

	_ = NewModule(nil, listpage.Options{})
}
