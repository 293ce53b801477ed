// Package review serves the moderation view of user reviews.
package review

import (
	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/backend"
	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
)

// Resource names the reviews view in workspaces and the audit log.
const Resource = "reviews"

var messages = listing.Messages{
	DeleteOK:       "Review deleted successfully",
	DeleteFail:     "Failed to delete review",
	DeleteManyOK:   "Selected reviews deleted successfully",
	DeleteManyFail: "Failed to delete selected reviews",
}

// Backend is the review API the module needs.
type Backend interface {
	listing.Source[domain.Review]
	listing.Mutator[domain.Review, string]
}

// ReviewModule implements the app.Module interface for reviews.
type ReviewModule struct {
	list *listpage.Handler[domain.Review, string]
}

// NewModule creates the reviews module over b.
// Panics if b is nil.
func NewModule(b Backend, opts listpage.Options) *ReviewModule {
	if b == nil {
		panic("review.NewModule: backend must not be nil")
	}
	src := newSanitizingSource(b)
	cfg := opts.ViewConfig(Resource, messages)
	cfg.OrderKeys = []string{"sort"}
	list := listpage.New(listpage.Config[domain.Review, string]{
		Resource: Resource,
		Page:     "review/list.html",
		Base:     "/reviews",
		Criteria: []string{"search", "sort"},
		ParseID:  listpage.ParseStringID,
		NewView: func() *listing.View[domain.Review, string] {
			return listing.NewView[domain.Review, string](src, b, cfg)
		},
		Extra: gin.H{
			"SortDesc": backend.SortDesc,
			"SortAsc":  backend.SortAsc,
		},
		Workspace: opts.Workspace,
	})
	return &ReviewModule{list: list}
}

// RegisterRoutes registers review API and page routes.
func (m *ReviewModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	m.list.Register(api, pages)
}
