package app

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/module/auth"
	"github.com/luofanlf/hdbPilot-admin/internal/module/dashboard"
	"github.com/luofanlf/hdbPilot-admin/internal/module/property"
	"github.com/luofanlf/hdbPilot-admin/internal/module/user"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
	"github.com/luofanlf/hdbPilot-admin/web"
)

// pageData mirrors listpage.Data for a signed-in admin.
func pageData(extra gin.H) gin.H {
	data := gin.H{
		"CSRFToken": "tok",
		"Path":      "/users",
		"Audit":     true,
		"User":      &domain.SessionUser{ID: 1, Username: "admin", Nickname: "Root"},
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func listData[T listing.Record[ID], ID comparable](base string, records []T, extra gin.H) gin.H {
	data := gin.H{
		"View": listing.Snapshot[T, ID]{
			Records:    records,
			Page:       2,
			PageSize:   10,
			Total:      25,
			TotalPages: 3,
			Criteria:   listing.Criteria{"keyword": "al"},
			Loaded:     true,
		},
		"Base":     base,
		"Resource": strings.TrimPrefix(base, "/"),
		"Target":   "list-table",
		"Notice":   &listing.Notice{Kind: listing.NoticeSuccess, Message: "Saved."},
	}
	for k, v := range extra {
		data[k] = v
	}
	return pageData(data)
}

func TestEmbeddedPages_Render(t *testing.T) {
	r, err := NewTemplateRenderer(web.EmbeddedFS, false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer() error: %v", err)
	}

	users := []domain.User{{ID: 7, Username: "alice", Nickname: "Al", Email: "al@example.com"}}
	props := []domain.Property{{
		ID: 3, ListingTitle: "Sunny 4-room", Town: "Bedok", Block: "12", StreetName: "Bedok North",
		PostalCode: "460012", BedroomNumber: 3, BathroomNumber: 2, ResalePrice: 520000, Status: domain.StatusPending,
		Storey: "10-12", FloorAreaSqm: 93, TopYear: 1990, FlatModel: "Improved",
		ImageList: []domain.PropertyImage{{ImageURL: "https://img.example.com/a.jpg"}},
	}}
	reviews := []domain.Review{{ID: "r-1", Rating: 4, Content: "Great view", PropertyID: "3", UserID: "7"}}

	tests := []struct {
		name string
		page string
		data any
		want []string
	}{
		{
			name: "user list",
			page: "user/list.html",
			data: listData[domain.User, int64]("/users", users, nil),
			want: []string{`id="list-table"`, "alice", `/users/7/edit`, "Saved.", `content="tok"`, "Root", "Audit log"},
		},
		{
			name: "user table fragment",
			page: "user/list.html#table",
			data: listData[domain.User, int64]("/users", users, nil),
			want: []string{`id="list-table"`, "al@example.com", "Page 2 of 3"},
		},
		{
			name: "user form",
			page: "user/form.html",
			data: pageData(gin.H{
				"Item":   users[0],
				"Form":   user.UpdateUserRequest{Nickname: "Al", Email: "bad"},
				"Errors": map[string]string{"email": "must be a valid email"},
			}),
			want: []string{`hx-put="/users/7"`, "must be a valid email"},
		},
		{
			name: "property list",
			page: "property/list.html",
			data: listData[domain.Property, int64]("/properties", props, gin.H{"Towns": domain.HDBTowns, "Statuses": domain.PropertyStatuses}),
			want: []string{"Sunny 4-room", "520,000", "12 Bedok North 460012", "https://img.example.com/a.jpg"},
		},
		{
			name: "property form",
			page: "property/form.html",
			data: pageData(gin.H{
				"Item":     props[0],
				"Form":     property.UpdatePropertyRequest{ListingTitle: "Sunny 4-room", Town: "Bedok", ResalePrice: 520000, Status: domain.StatusPending},
				"Towns":    domain.HDBTowns,
				"Statuses": domain.PropertyStatuses,
			}),
			want: []string{`hx-put="/properties/3"`, `<option value="Bedok" selected>`, `value="520000"`},
		},
		{
			name: "pending list",
			page: "pending/list.html",
			data: listData[domain.Property, int64]("/pending", props, gin.H{
				"Towns": domain.HDBTowns, "Bedrooms": []int{1, 2, 3, 4, 5}, "Bathrooms": []int{1, 2, 3},
			}),
			want: []string{"/pending/3/approve", "/pending/3/reject", "/pending/approve-selected", "10-12 / 93 m² / 1990", "Improved"},
		},
		{
			name: "review list",
			page: "review/list.html",
			data: listData[domain.Review, string]("/reviews", reviews, gin.H{"SortDesc": "desc", "SortAsc": "asc"}),
			want: []string{"Great view", "/reviews/r-1", "&#9733;&#9733;&#9733;&#9733;"},
		},
		{
			name: "dashboard",
			page: "dashboard/index.html",
			data: pageData(gin.H{
				"Overview": dashboard.Overview{
					Year:  2026,
					Stats: domain.Stats{"totalUsers": 1200},
					Charts: &domain.ChartData{
						MonthlyCounts: []domain.MonthCount{{Label: "Jan", Count: 4}, {Label: "Feb", Count: 2}},
						StatusCounts:  []domain.StatusCount{{Status: "Approved", Count: 3}},
					},
				},
				"Years": []int{2026, 2025},
			}),
			want: []string{"Total Users", "1,200", `id="charts"`, "height: 50%", `<option value="2026" selected>`},
		},
		{
			name: "dashboard bad year",
			page: "dashboard/index.html#charts",
			data: pageData(gin.H{"Error": "Invalid year."}),
			want: []string{`id="charts"`, "Invalid year."},
		},
		{
			name: "audit list",
			page: "audit/list.html",
			data: pageData(gin.H{
				"Request": domain.PageRequest{Page: 1, PageSize: 20, Filter: map[string]string{"resource": "users"}},
				"Target":  "list-table",
				"Result": pkg.NewPageResult([]domain.AuditEntry{{
					ID: 1, Actor: "admin", Resource: "users", Action: "delete", TargetIDs: "7",
					Success: true, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				}}, 1, domain.PageRequest{Page: 1, PageSize: 20}),
			}),
			want: []string{"2026-01-02 03:04:05", `<option value="users" selected>`, "Page 1 of 1"},
		},
		{
			name: "login",
			page: "auth/login.html",
			data: pageData(gin.H{"User": nil, "Form": auth.LoginRequest{Username: "admin", Return: "/users"}, "Error": "Wrong password"}),
			want: []string{`name="_csrf_token"`, "Wrong password", `value="/users"`},
		},
		{
			name: "signup form fragment",
			page: "auth/signup.html#form",
			data: pageData(gin.H{"Form": auth.RegisterRequest{Username: "new"}, "Errors": map[string]string{"confirmPassword": "Passwords do not match"}}),
			want: []string{"Passwords do not match"},
		},
		{
			name: "not found",
			page: "errors/404.html",
			data: gin.H{"Status": 404, "Path": "/nope"},
			want: []string{"/nope"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if err := r.Instance(tt.page, tt.data).Render(w); err != nil {
				t.Fatalf("Render(%s) error: %v", tt.page, err)
			}
			body := w.Body.String()
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("%s missing %q:\n%s", tt.page, want, body)
				}
			}
		})
	}
}
