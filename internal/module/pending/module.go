// Package pending serves the review queue of listings awaiting approval.
package pending

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
)

// Resource names the pending view in workspaces and the audit log.
const Resource = "pending"

// Backend is the pending-review API the module needs.
type Backend interface {
	listing.Source[domain.Property]
	Review(ctx context.Context, id int64, approved bool) error
}

// PendingModule implements the app.Module interface for listing review.
type PendingModule struct {
	list    *listpage.Handler[domain.Property, int64]
	handler *ReviewHandler
}

// NewModule creates the pending-review module over b.
// Panics if b is nil.
func NewModule(b Backend, opts listpage.Options) *PendingModule {
	if b == nil {
		panic("pending.NewModule: backend must not be nil")
	}
	list := listpage.New(listpage.Config[domain.Property, int64]{
		Resource: Resource,
		Page:     "pending/list.html",
		Base:     "/pending",
		Criteria: []string{"sellerId", "address", "town", "bedroomNumber", "bathroomNumber"},
		ParseID:  listpage.ParseInt64ID,
		NewView: func() *listing.View[domain.Property, int64] {
			return listing.NewView[domain.Property, int64](b, listing.ReadOnly[domain.Property, int64]{}, opts.ViewConfig(Resource, listing.Messages{}))
		},
		Extra: gin.H{
			"Towns":     domain.HDBTowns,
			"Bedrooms":  []int{1, 2, 3, 4, 5},
			"Bathrooms": []int{1, 2, 3},
		},
		NoDelete:  true,
		Workspace: opts.Workspace,
	})
	return &PendingModule{list: list, handler: NewReviewHandler(list, b)}
}

// RegisterRoutes registers pending-review API and page routes.
func (m *PendingModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	g := m.list.Register(api, pages)
	g.POST("/:id/approve", m.handler.Approve)
	g.POST("/:id/reject", m.handler.Reject)
	g.POST("/approve-selected", m.handler.ApproveSelected)
	g.POST("/reject-selected", m.handler.RejectSelected)
}
