package user

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
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

// --- mock backend ---

type mockBackend struct {
	mu        sync.Mutex
	users     []domain.User
	updated   []domain.User
	updateErr error
}

func newMockBackend() *mockBackend {
	return &mockBackend{users: []domain.User{
		{ID: 1, Username: "alice", Nickname: "Al", Email: "alice@example.com"},
		{ID: 2, Username: "bob", Email: "bob@example.com"},
	}}
}

func (m *mockBackend) Search(_ context.Context, q listing.Query) (*listing.Page[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if strings.Contains(u.Username, q.Criteria.Get("keyword")) {
			items = append(items, u)
		}
	}
	return pkg.NewPageResult(items, int64(len(items)), domain.PageRequest{Page: q.Page, PageSize: q.PageSize}), nil
}

func (m *mockBackend) Update(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, u)
	for i := range m.users {
		if m.users[i].ID == u.ID {
			m.users[i] = u
		}
	}
	return nil
}

func (m *mockBackend) Delete(context.Context, int64) error       { return nil }
func (m *mockBackend) DeleteMany(context.Context, []int64) error { return nil }

// --- helper to set up gin test router with minimal templates ---

func setupTestRouter(t *testing.T, b *mockBackend) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	tmpl := template.Must(template.New("").Parse(
		`{{define "user/list.html"}}list{{end}}` +
			`{{define "user/list.html#table"}}table:{{range .View.Records}}{{.Username}}={{.Nickname}}/{{.Email}};{{end}}{{end}}` +
			`{{define "user/form.html"}}form:{{.Item.Username}}{{if .Error}}:{{.Error}}{{range $k, $v := .Errors}}|{{$k}}={{$v}}{{end}}{{end}}{{end}}`,
	))
	r.SetHTMLTemplate(tmpl)

	ws := workspace.NewStore(time.Hour, nil).Get("")
	mod := NewModule(b, listpage.Options{
		PageSize:  10,
		Workspace: func(*gin.Context) *workspace.Workspace { return ws },
	})

	// Register the module's handlers without the sign-in guard.
	r.GET("/users", mod.list.List)
	r.GET("/users/:id/edit", mod.pageHandler.EditPage)
	r.PUT("/users/:id", mod.pageHandler.UpdateHTMX)

	// Load the first page so records can be found.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
	return r
}

func putForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	r.ServeHTTP(w, req)
	return w
}

func toastOf(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var triggerData map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggerData); err != nil {
		t.Fatalf("failed to parse HX-Trigger: %v", err)
	}
	return triggerData["showToast"]
}

// --- tests ---

func TestEditPage(t *testing.T) {
	r := setupTestRouter(t, newMockBackend())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/1/edit", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "form:alice" {
		t.Errorf("body = %q", got)
	}
}

func TestEditPage_NotOnPage(t *testing.T) {
	r := setupTestRouter(t, newMockBackend())

	for _, path := range []string{"/users/99/edit", "/users/abc/edit"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if got := w.Header().Get("HX-Reswap"); got != "none" {
			t.Errorf("%s: expected HX-Reswap none, got %q", path, got)
		}
		if toast := toastOf(t, w); toast["type"] != "error" {
			t.Errorf("%s: toast = %v", path, toast)
		}
	}
}

func TestUpdateHTMX_Success(t *testing.T) {
	b := newMockBackend()
	r := setupTestRouter(t, b)

	form := url.Values{}
	form.Set("nickname", "Bobby")
	form.Set("email", "bobby@example.com")
	// The username is not editable.
	form.Set("username", "mallory")

	w := putForm(r, "/users/2", form)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if toast := toastOf(t, w); toast["message"] != "User updated successfully." || toast["type"] != "success" {
		t.Errorf("toast = %v", toast)
	}
	if got := w.Header().Get("HX-Retarget"); got != "#list-table" {
		t.Errorf("HX-Retarget = %q", got)
	}
	if got := w.Body.String(); got != "table:alice=Al/alice@example.com;bob=Bobby/bobby@example.com;" {
		t.Errorf("body = %q", got)
	}
	if len(b.updated) != 1 || b.updated[0].Username != "bob" {
		t.Errorf("updated = %+v", b.updated)
	}
}

func TestUpdateHTMX_ValidationError(t *testing.T) {
	b := newMockBackend()
	r := setupTestRouter(t, b)

	form := url.Values{}
	form.Set("email", "not-an-email")

	w := putForm(r, "/users/1", form)

	want := "form:alice:Please check the highlighted fields.|email=Must be a valid email address"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q; want %q", got, want)
	}
	if len(b.updated) != 0 {
		t.Error("invalid form must not reach the backend")
	}
}

func TestUpdateHTMX_BackendError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"backend message verbatim", domain.NewApplicationError("Email already in use"), "Email already in use"},
		{"network error uses fallback", domain.NewNetworkError(context.DeadlineExceeded), "Failed to update user."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newMockBackend()
			b.updateErr = tt.err
			r := setupTestRouter(t, b)

			form := url.Values{}
			form.Set("email", "alice@new.example.com")
			w := putForm(r, "/users/1", form)

			if got := w.Header().Get("HX-Reswap"); got != "none" {
				t.Errorf("expected HX-Reswap none, got %q", got)
			}
			if toast := toastOf(t, w); toast["message"] != tt.want || toast["type"] != "error" {
				t.Errorf("toast = %v; want message %q", toast, tt.want)
			}
		})
	}
}
